package providers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"
	"github.com/aws/smithy-go/ptr"
)

const (
	BedrockName         = "bedrock"
	bedrockDefaultModel = "anthropic.claude-3-5-sonnet-20240620-v1:0"
	anthropicVersion    = "bedrock-2023-05-31"
)

// InvokeModelAPI is the subset of the Bedrock runtime client used here.
type InvokeModelAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockConfig holds configuration for the Bedrock vision client.
type BedrockConfig struct {
	Region      string
	Model       string
	Temperature *float64
	MaxTokens   int

	// Optional (tests)
	API         InvokeModelAPI
	Credentials aws.CredentialsProvider
}

// BedrockClient implements Transcriber with Anthropic models on Bedrock.
type BedrockClient struct {
	api         InvokeModelAPI
	credentials aws.CredentialsProvider
	model       string
	temperature float64
	maxTokens   int
}

type anthropicSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicContent struct {
	Type   string           `json:"type"`
	Text   string           `json:"text,omitempty"`
	Source *anthropicSource `json:"source,omitempty"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	System           string             `json:"system,omitempty"`
	Messages         []anthropicMessage `json:"messages"`
	MaxTokens        int                `json:"max_tokens"`
	Temperature      float64            `json:"temperature"`
}

type anthropicResponse struct {
	Model      string             `json:"model,omitempty"`
	Content    []anthropicContent `json:"content"`
	StopReason string             `json:"stop_reason,omitempty"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// NewBedrockClient creates a Bedrock client. Credentials and region come from
// the default AWS chain unless overridden in cfg.
func NewBedrockClient(ctx context.Context, cfg BedrockConfig) (*BedrockClient, error) {
	if cfg.Model == "" {
		cfg.Model = bedrockDefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4000
	}

	c := &BedrockClient{
		api:         cfg.API,
		credentials: cfg.Credentials,
		model:       cfg.Model,
		temperature: temperatureOr(cfg.Temperature, 0.1),
		maxTokens:   cfg.MaxTokens,
	}
	if c.api != nil {
		return c, nil
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	// No SDK-level retries; a failed page is reported as such.
	c.api = bedrockruntime.NewFromConfig(awsCfg, func(o *bedrockruntime.Options) {
		o.RetryMaxAttempts = 1
	})
	if c.credentials == nil {
		c.credentials = awsCfg.Credentials
	}
	return c, nil
}

// Name returns the provider identifier.
func (c *BedrockClient) Name() string {
	return BedrockName
}

// HealthCheck resolves AWS credentials.
func (c *BedrockClient) HealthCheck(ctx context.Context) error {
	if c.credentials == nil {
		return fmt.Errorf("bedrock: no credentials provider configured")
	}
	if _, err := c.credentials.Retrieve(ctx); err != nil {
		return fmt.Errorf("bedrock: credentials unavailable: %w", err)
	}
	return nil
}

// Transcribe invokes the model with the page image as a base64 block.
func (c *BedrockClient) Transcribe(ctx context.Context, req *TranscribeRequest) (*TranscribeResult, error) {
	start := time.Now()
	if req == nil || len(req.Image) == 0 {
		return nil, fmt.Errorf("image is required")
	}
	mediaType := req.MediaType
	if mediaType == "" {
		mediaType = "image/jpeg"
	}

	body, err := json.Marshal(anthropicRequest{
		AnthropicVersion: anthropicVersion,
		System:           SystemPrompt,
		Messages: []anthropicMessage{{
			Role: "user",
			Content: []anthropicContent{
				{Type: "text", Text: UserPrompt(req.PageNum)},
				{Type: "image", Source: &anthropicSource{
					Type:      "base64",
					MediaType: mediaType,
					Data:      base64.StdEncoding.EncodeToString(req.Image),
				}},
			},
		}},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock: failed to marshal request: %w", err)
	}

	output, err := c.api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     ptr.String(c.model),
		Body:        body,
		ContentType: ptr.String("application/json"),
		Accept:      ptr.String("application/json"),
	})
	if err != nil {
		return nil, mapBedrockError(err)
	}

	var resp anthropicResponse
	if err := json.Unmarshal(output.Body, &resp); err != nil {
		return nil, fmt.Errorf("bedrock: failed to unmarshal response: %w", err)
	}
	if len(resp.Content) == 0 {
		return nil, ErrEmptyResponse
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	model := resp.Model
	if model == "" {
		model = c.model
	}
	return &TranscribeResult{
		Text:             strings.TrimSpace(text.String()),
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
		Provider:         BedrockName,
		ModelUsed:        model,
		RequestID:        req.RequestID,
		ExecutionTime:    time.Since(start),
	}, nil
}

func mapBedrockError(err error) error {
	status := 0
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		status = respErr.HTTPStatusCode()
	}

	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("bedrock: %w", err)
	}
	if apiErr.ErrorCode() == "ThrottlingException" || status == http.StatusTooManyRequests {
		return &RateLimitError{
			Message:    fmt.Sprintf("Bedrock throttled: %s", apiErr.ErrorMessage()),
			StatusCode: http.StatusTooManyRequests,
		}
	}
	return &APIError{
		Provider:   BedrockName,
		StatusCode: status,
		Code:       apiErr.ErrorCode(),
		Message:    apiErr.ErrorMessage(),
	}
}

var _ Transcriber = (*BedrockClient)(nil)
