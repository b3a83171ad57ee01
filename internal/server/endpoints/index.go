package endpoints

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/scriptex/internal/api"
)

// IndexResponse describes the service.
type IndexResponse struct {
	Message     string            `json:"message"`
	Version     string            `json:"version"`
	Endpoints   map[string]string `json:"endpoints"`
	Description string            `json:"description"`
}

// IndexEndpoint handles GET /.
type IndexEndpoint struct {
	Version string
}

func (e *IndexEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/{$}", e.handler
}

func (e *IndexEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary		Service information
//	@Description	Name, version and the available routes
//	@Tags			meta
//	@Produce		json
//	@Success		200	{object}	IndexResponse
//	@Router			/ [get]
func (e *IndexEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, IndexResponse{
		Message: "LaTeX OCR Generation API",
		Version: e.Version,
		Endpoints: map[string]string{
			"generate_latex":         "/generate_latex/{scriptId}",
			"generate_latex_no_save": "/generate_latex/{scriptId}/no_save",
			"health":                 "/health",
			"test_images":            "/test_images/{scriptId}",
		},
		Description: "Generate LaTeX code from handwritten script images using a vision model",
	})
}

func (e *IndexEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show server name, version and routes",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp IndexResponse
			if err := client.Get(cmd.Context(), "/", &resp); err != nil {
				return err
			}
			if api.GetOutputFormat() == api.OutputFormatJSON {
				return api.Output(resp)
			}
			fmt.Printf("%s %s\n", resp.Message, resp.Version)
			return api.Output(resp.Endpoints)
		},
	}
}
