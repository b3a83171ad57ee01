package endpoints

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/scriptex/internal/api"
	"github.com/jackzampolin/scriptex/internal/images"
	"github.com/jackzampolin/scriptex/internal/svcctx"
)

// ImagesErrorResponse is returned when the image source cannot be read.
type ImagesErrorResponse struct {
	ScriptID string `json:"scriptId"`
	Error    string `json:"error"`
	Status   string `json:"status"`
}

// TestImagesEndpoint handles GET /test_images/{scriptId}.
type TestImagesEndpoint struct {
	ThumbnailWidth int
}

func (e *TestImagesEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/test_images/{scriptId}", e.handler
}

func (e *TestImagesEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Inspect a script's images
//	@Description	Fetches the page images without calling the model and reports sizes, a preview and thumbnails.
//	@Tags			diagnostics
//	@Produce		json
//	@Param			scriptId	path		string	true	"Script ID"
//	@Success		200			{object}	images.Report
//	@Failure		400			{object}	ImagesErrorResponse
//	@Failure		500			{object}	ImagesErrorResponse
//	@Router			/test_images/{scriptId} [get]
func (e *TestImagesEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	scriptID := strings.TrimSpace(r.PathValue("scriptId"))
	if scriptID == "" {
		writeJSON(w, http.StatusBadRequest, ImagesErrorResponse{Error: MsgScriptIDRequired, Status: "error"})
		return
	}

	src := svcctx.ImagesFrom(r.Context())
	if src == nil {
		writeError(w, http.StatusServiceUnavailable, "image source not initialized")
		return
	}

	pages, err := src.Fetch(r.Context(), scriptID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ImagesErrorResponse{
			ScriptID: scriptID,
			Error:    err.Error(),
			Status:   "error",
		})
		return
	}

	writeJSON(w, http.StatusOK, images.NewReport(scriptID, pages, e.ThumbnailWidth))
}

func (e *TestImagesEndpoint) Command(getServerURL func() string) *cobra.Command {
	var showThumbs bool
	cmd := &cobra.Command{
		Use:   "images <scriptId>",
		Short: "Check image retrieval for a script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var report images.Report
			if err := client.Get(cmd.Context(), "/test_images/"+url.PathEscape(args[0]), &report); err != nil {
				return err
			}
			if !showThumbs {
				report.Thumbnails = nil
			}
			return api.Output(report)
		},
	}
	cmd.Flags().BoolVar(&showThumbs, "thumbnails", false, "Include thumbnail data URLs in the output")
	return cmd
}
