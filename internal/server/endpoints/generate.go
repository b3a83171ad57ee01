package endpoints

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/scriptex/internal/api"
	"github.com/jackzampolin/scriptex/internal/pipeline"
	"github.com/jackzampolin/scriptex/internal/svcctx"
)

// MsgScriptIDRequired is returned for a blank script id.
const MsgScriptIDRequired = "Script ID is required"

// StatusFor maps a run outcome to its HTTP status. An empty script is not
// an error; a failed save is, even though the content is returned.
func StatusFor(o pipeline.Outcome) int {
	switch o {
	case pipeline.OutcomeGenerated, pipeline.OutcomeSaved, pipeline.OutcomeNoImages:
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}

// GenerateEndpoint handles GET /generate_latex/{scriptId} and, when Persist
// is false, GET /generate_latex/{scriptId}/no_save.
type GenerateEndpoint struct {
	Persist bool
}

func (e *GenerateEndpoint) Route() (string, string, http.HandlerFunc) {
	if e.Persist {
		return "GET", "/generate_latex/{scriptId}", e.handler
	}
	return "GET", "/generate_latex/{scriptId}/no_save", e.handler
}

func (e *GenerateEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Generate LaTeX for a script
//	@Description	Transcribes every page image of the script and assembles a LaTeX document.
//	@Description	The /no_save variant skips persistence.
//	@Tags			latex
//	@Produce		json
//	@Param			scriptId	path		string	true	"Script ID"
//	@Success		200			{object}	pipeline.RunResult
//	@Failure		400			{object}	pipeline.RunResult
//	@Failure		500			{object}	pipeline.RunResult
//	@Failure		503			{object}	ErrorResponse
//	@Router			/generate_latex/{scriptId} [get]
//	@Router			/generate_latex/{scriptId}/no_save [get]
func (e *GenerateEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	scriptID := strings.TrimSpace(r.PathValue("scriptId"))
	if scriptID == "" {
		writeJSON(w, http.StatusBadRequest, &pipeline.RunResult{
			Message: MsgScriptIDRequired,
			Errors:  []string{MsgScriptIDRequired},
		})
		return
	}

	orch := svcctx.PipelineFrom(r.Context())
	if orch == nil {
		writeError(w, http.StatusServiceUnavailable, "pipeline not initialized")
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			msg := fmt.Sprintf("Unexpected error: %v", rec)
			if logger := svcctx.LoggerFrom(r.Context()); logger != nil {
				logger.Error("run panicked", "script_id", scriptID, "panic", rec)
			}
			writeJSON(w, http.StatusInternalServerError, &pipeline.RunResult{
				ScriptID: scriptID,
				Message:  msg,
				Errors:   []string{msg},
			})
		}
	}()

	result := orch.Run(r.Context(), scriptID, e.Persist)
	writeJSON(w, StatusFor(result.Outcome), result)
}

func (e *GenerateEndpoint) Command(getServerURL func() string) *cobra.Command {
	var outFile string
	use, short, suffix := "generate <scriptId>", "Generate and save LaTeX for a script", ""
	if !e.Persist {
		use, short, suffix = "preview <scriptId>", "Generate LaTeX for a script without saving", "/no_save"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var result pipeline.RunResult
			path := "/generate_latex/" + url.PathEscape(args[0]) + suffix
			if err := client.Get(cmd.Context(), path, &result); err != nil {
				return err
			}
			if outFile != "" && result.CompleteDocument != "" {
				if err := api.WriteText(outFile, result.CompleteDocument); err != nil {
					return err
				}
			}
			return api.Output(result)
		},
	}
	cmd.Flags().StringVarP(&outFile, "out", "f", "", "Write the complete document to this file")
	return cmd
}
