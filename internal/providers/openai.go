package providers

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	OpenAIName         = "openai"
	openAIDefaultModel = "gpt-4o"
)

// OpenAIConfig holds configuration for the OpenAI vision client.
type OpenAIConfig struct {
	APIKey      string
	Model       string        // "gpt-4o" (default)
	BaseURL     string        // Optional; any OpenAI-compatible endpoint
	Temperature *float64      // nil uses 0.1; 0 is sent as is
	MaxTokens   int           // 4000 (default)
	Detail      string        // image detail: "high" (default), "low", "auto"
	Timeout     time.Duration // HTTP timeout
	HTTPClient  *http.Client  // Optional (tests)
}

// OpenAIClient implements Transcriber using the official OpenAI SDK.
type OpenAIClient struct {
	model       string
	temperature float64
	maxTokens   int
	detail      string
	client      openai.Client
}

// NewOpenAIClient creates a new OpenAI vision client.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.Model == "" {
		cfg.Model = openAIDefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4000
	}
	if cfg.Detail == "" {
		cfg.Detail = "high"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	// Upstream calls are not retried; a failed page is reported as such.
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		model:       cfg.Model,
		temperature: temperatureOr(cfg.Temperature, 0.1),
		maxTokens:   cfg.MaxTokens,
		detail:      cfg.Detail,
		client:      openai.NewClient(opts...),
	}
}

// Name returns the provider identifier.
func (c *OpenAIClient) Name() string {
	return OpenAIName
}

// Model returns the configured model.
func (c *OpenAIClient) Model() string {
	return c.model
}

// HealthCheck verifies the endpoint is reachable and the API key is valid.
func (c *OpenAIClient) HealthCheck(ctx context.Context) error {
	page, err := c.client.Models.List(ctx)
	if err != nil {
		return fmt.Errorf("openai models list failed: %w", mapOpenAIError(err))
	}
	if page == nil {
		return fmt.Errorf("openai models list returned nil response")
	}
	return nil
}

// Transcribe sends the page image as a data URL with the transcription prompt.
func (c *OpenAIClient) Transcribe(ctx context.Context, req *TranscribeRequest) (*TranscribeResult, error) {
	start := time.Now()
	if req == nil || len(req.Image) == 0 {
		return nil, fmt.Errorf("image is required")
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(SystemPrompt),
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(UserPrompt(req.PageNum)),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL:    dataURL(req.MediaType, req.Image),
					Detail: c.detail,
				}),
			}),
		},
		Temperature: openai.Float(c.temperature),
		MaxTokens:   openai.Int(int64(c.maxTokens)),
	}

	var reqOpts []option.RequestOption
	if req.RequestID != "" {
		reqOpts = append(reqOpts, option.WithHeader("X-Request-ID", req.RequestID))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params, reqOpts...)
	if err != nil {
		return nil, mapOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	return &TranscribeResult{
		Text:             strings.TrimSpace(resp.Choices[0].Message.Content),
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		Provider:         OpenAIName,
		ModelUsed:        resp.Model,
		RequestID:        req.RequestID,
		ExecutionTime:    time.Since(start),
	}, nil
}

func dataURL(mediaType string, image []byte) string {
	if mediaType == "" {
		mediaType = "image/jpeg"
	}
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(image)
}

func mapOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			retryAfter := time.Duration(0)
			if apiErr.Response != nil {
				retryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
			}
			return &RateLimitError{
				Message:    fmt.Sprintf("OpenAI rate limited: %s", apiErr.Message),
				RetryAfter: retryAfter,
				StatusCode: apiErr.StatusCode,
			}
		}
		return &APIError{
			Provider:   OpenAIName,
			StatusCode: apiErr.StatusCode,
			Code:       apiErr.Code,
			Message:    apiErr.Message,
		}
	}
	return err
}

var _ Transcriber = (*OpenAIClient)(nil)
