package endpoints

import (
	"encoding/json"
	"net/http"

	"github.com/jackzampolin/scriptex/internal/api"
	"github.com/jackzampolin/scriptex/internal/images"
)

// Config holds dependencies needed by some endpoints.
type Config struct {
	Version        string
	ThumbnailWidth int // 0 uses images.DefaultThumbnailWidth
}

// All returns all endpoint instances.
func All(cfg Config) []api.Endpoint {
	if cfg.ThumbnailWidth <= 0 {
		cfg.ThumbnailWidth = images.DefaultThumbnailWidth
	}
	return []api.Endpoint{
		&IndexEndpoint{Version: cfg.Version},

		// Generation
		&GenerateEndpoint{Persist: true},
		&GenerateEndpoint{Persist: false},

		// Diagnostics
		&TestImagesEndpoint{ThumbnailWidth: cfg.ThumbnailWidth},
		&HealthEndpoint{},

		// Swagger/OpenAPI endpoints
		&SwaggerEndpoint{},
		&SwaggerUIEndpoint{},
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
