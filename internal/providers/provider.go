package providers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Transcriber turns one page image into LaTeX text using a vision model.
type Transcriber interface {
	// Name returns the provider identifier (e.g., "openai").
	Name() string

	// Transcribe sends one page image to the model.
	Transcribe(ctx context.Context, req *TranscribeRequest) (*TranscribeResult, error)

	// HealthCheck verifies the model endpoint is reachable and credentials resolve.
	HealthCheck(ctx context.Context) error
}

// TranscribeRequest is a single page sent to the model.
type TranscribeRequest struct {
	Image     []byte // raw image bytes
	MediaType string // e.g. "image/jpeg"; sniffed by the caller
	PageNum   int    // 1-based page index, used in the user prompt

	// Request tracking
	RequestID string
}

// TranscribeResult is the model's answer for one page.
type TranscribeResult struct {
	// Text is the raw model output. It may be empty.
	Text string `json:"text"`

	// Token counts
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`

	// Provider info
	Provider      string        `json:"provider"`
	ModelUsed     string        `json:"model_used"`
	RequestID     string        `json:"request_id"`
	ExecutionTime time.Duration `json:"execution_time"`
}

// ErrEmptyResponse is returned when the model answers without any choices.
var ErrEmptyResponse = errors.New("model returned no choices")

// APIError is a non-success answer from a model endpoint.
type APIError struct {
	Provider   string
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s error", e.Provider)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, " [%s]", e.Code)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

// RateLimitError indicates the provider rejected the call for rate reasons.
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
	StatusCode int
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s (retry after %s)", e.Message, e.RetryAfter)
	}
	return e.Message
}

// IsRateLimitError reports whether err wraps a RateLimitError.
func IsRateLimitError(err error) (*RateLimitError, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle, true
	}
	return nil, false
}

// temperatureOr returns *t, or def when t is nil.
func temperatureOr(t *float64, def float64) float64 {
	if t == nil {
		return def
	}
	return *t
}

// parseRetryAfter reads a Retry-After header value in seconds.
func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
