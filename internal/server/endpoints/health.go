package endpoints

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jackzampolin/scriptex/internal/api"
	"github.com/jackzampolin/scriptex/internal/providers"
	"github.com/jackzampolin/scriptex/internal/svcctx"
)

// HealthProbeTimeout bounds each collaborator probe.
const HealthProbeTimeout = 5 * time.Second

// Service status values.
const (
	StatusConnected      = "connected"
	StatusError          = "error"
	StatusNotInitialized = "not_initialized"
)

// HealthResponse reports the reachability of every collaborator.
type HealthResponse struct {
	Status   string                   `json:"status"` // healthy or unhealthy
	Services map[string]ServiceStatus `json:"services"`
}

// ServiceStatus is the probe result for one collaborator.
type ServiceStatus struct {
	Status   string `json:"status"`
	URL      string `json:"url,omitempty"`
	Provider string `json:"provider,omitempty"`
	Error    string `json:"error,omitempty"`

	// RateLimit is set for the model only.
	RateLimit *providers.RateLimiterStatus `json:"rate_limit,omitempty"`
}

type probe struct {
	name     string
	url      string
	provider string
	check    func(context.Context) error
}

// HealthEndpoint handles GET /health.
type HealthEndpoint struct{}

func (e *HealthEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/health", e.handler
}

func (e *HealthEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary		Collaborator health
//	@Description	Probes the persistence service, the image source and the model provider.
//	@Description	Always answers 200; inspect status for the verdict.
//	@Tags			meta
//	@Produce		json
//	@Success		200	{object}	HealthResponse
//	@Router			/health [get]
func (e *HealthEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, checkHealth(r.Context()))
}

func checkHealth(ctx context.Context) HealthResponse {
	resp := HealthResponse{Status: "healthy", Services: map[string]ServiceStatus{}}

	svcs := svcctx.ServicesFrom(ctx)
	if svcs == nil {
		for _, name := range []string{"persistence", "image_source", "model"} {
			resp.Services[name] = ServiceStatus{Status: StatusNotInitialized}
		}
		resp.Status = "unhealthy"
		return resp
	}

	var modelURL string
	if svcs.Config != nil {
		modelURL = svcs.Config.ModelEndpoint
	}
	probes := []probe{
		{name: "persistence", url: svcs.Persist.BaseURL(), check: svcs.Persist.HealthCheck},
		{name: "image_source", url: svcs.Images.BaseURL(), check: svcs.Images.HealthCheck},
		{name: "model", url: modelURL, provider: svcs.Registry.Name(), check: svcs.Registry.HealthCheck},
	}

	results := make([]ServiceStatus, len(probes))
	var g errgroup.Group
	for i, p := range probes {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, HealthProbeTimeout)
			defer cancel()

			st := ServiceStatus{Status: StatusConnected, URL: p.url, Provider: p.provider}
			if err := p.check(pctx); err != nil {
				st.Status = StatusError
				st.Error = err.Error()
			}
			results[i] = st
			return nil
		})
	}
	_ = g.Wait()

	for i, p := range probes {
		resp.Services[p.name] = results[i]
		if results[i].Status != StatusConnected {
			resp.Status = "unhealthy"
		}
	}

	model := resp.Services["model"]
	limiter := svcs.Registry.Status()
	model.RateLimit = &limiter
	resp.Services["model"] = model
	return resp
}

func (e *HealthEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check collaborator health",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/health", &resp); err != nil {
				return err
			}
			if api.GetOutputFormat() == api.OutputFormatJSON {
				return api.Output(resp)
			}

			fmt.Printf("Status: %s\n", resp.Status)
			names := make([]string, 0, len(resp.Services))
			for name := range resp.Services {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				s := resp.Services[name]
				fmt.Printf("  %-13s %s", name+":", s.Status)
				if s.URL != "" {
					fmt.Printf("  %s", s.URL)
				}
				if s.Error != "" {
					fmt.Printf("  (%s)", s.Error)
				}
				fmt.Println()
			}
			return nil
		},
	}
}
