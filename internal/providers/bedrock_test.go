package providers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"
)

type fakeInvoker struct {
	input  *bedrockruntime.InvokeModelInput
	output []byte
	err    error
}

func (f *fakeInvoker) InvokeModel(_ context.Context, params *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: f.output}, nil
}

func TestBedrockTranscribe(t *testing.T) {
	fake := &fakeInvoker{
		output: []byte(`{"model":"claude","content":[{"type":"text","text":"$a$"},{"type":"text","text":" + $b$\n"}],"usage":{"input_tokens":50,"output_tokens":6}}`),
	}
	client, err := NewBedrockClient(context.Background(), BedrockConfig{API: fake, Model: "anthropic.test"})
	if err != nil {
		t.Fatalf("NewBedrockClient() error = %v", err)
	}

	result, err := client.Transcribe(context.Background(), &TranscribeRequest{
		Image:     []byte{0x89, 'P', 'N', 'G'},
		MediaType: "image/png",
		PageNum:   4,
	})
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if result.Text != "$a$ + $b$" {
		t.Errorf("Text = %q, want %q", result.Text, "$a$ + $b$")
	}
	if result.PromptTokens != 50 || result.CompletionTokens != 6 {
		t.Errorf("tokens = %d/%d, want 50/6", result.PromptTokens, result.CompletionTokens)
	}

	if got := aws.ToString(fake.input.ModelId); got != "anthropic.test" {
		t.Errorf("ModelId = %q, want anthropic.test", got)
	}

	var req anthropicRequest
	if err := json.Unmarshal(fake.input.Body, &req); err != nil {
		t.Fatalf("unmarshal request body: %v", err)
	}
	if req.AnthropicVersion != anthropicVersion {
		t.Errorf("anthropic_version = %q", req.AnthropicVersion)
	}
	if req.System != SystemPrompt {
		t.Error("system prompt not sent")
	}
	if req.MaxTokens != 4000 || req.Temperature != 0.1 {
		t.Errorf("params = %d/%v, want 4000/0.1", req.MaxTokens, req.Temperature)
	}
	if len(req.Messages) != 1 || len(req.Messages[0].Content) != 2 {
		t.Fatalf("unexpected message shape: %+v", req.Messages)
	}
	img := req.Messages[0].Content[1]
	if img.Type != "image" || img.Source == nil || img.Source.MediaType != "image/png" {
		t.Errorf("image block = %+v", img)
	}
	if req.Messages[0].Content[0].Text != UserPrompt(4) {
		t.Errorf("user prompt = %q", req.Messages[0].Content[0].Text)
	}
}

func TestBedrockTranscribeErrors(t *testing.T) {
	t.Run("empty content", func(t *testing.T) {
		client, _ := NewBedrockClient(context.Background(), BedrockConfig{API: &fakeInvoker{output: []byte(`{"content":[]}`)}})
		_, err := client.Transcribe(context.Background(), &TranscribeRequest{Image: []byte("x"), PageNum: 1})
		if !errors.Is(err, ErrEmptyResponse) {
			t.Errorf("expected ErrEmptyResponse, got %v", err)
		}
	})

	t.Run("throttling", func(t *testing.T) {
		fake := &fakeInvoker{err: &smithy.GenericAPIError{Code: "ThrottlingException", Message: "too many"}}
		client, _ := NewBedrockClient(context.Background(), BedrockConfig{API: fake})
		_, err := client.Transcribe(context.Background(), &TranscribeRequest{Image: []byte("x"), PageNum: 1})
		if _, ok := IsRateLimitError(err); !ok {
			t.Errorf("expected RateLimitError, got %T: %v", err, err)
		}
	})

	t.Run("validation", func(t *testing.T) {
		fake := &fakeInvoker{err: &smithy.GenericAPIError{Code: "ValidationException", Message: "bad model"}}
		client, _ := NewBedrockClient(context.Background(), BedrockConfig{API: fake})
		_, err := client.Transcribe(context.Background(), &TranscribeRequest{Image: []byte("x"), PageNum: 1})
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected APIError, got %T: %v", err, err)
		}
		if apiErr.Code != "ValidationException" || apiErr.Provider != BedrockName {
			t.Errorf("APIError = %+v", apiErr)
		}
	})
}

func TestBedrockHealthCheck(t *testing.T) {
	ok := aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
		return aws.Credentials{AccessKeyID: "AKID", SecretAccessKey: "secret"}, nil
	})
	client, _ := NewBedrockClient(context.Background(), BedrockConfig{API: &fakeInvoker{}, Credentials: ok})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	failing := aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
		return aws.Credentials{}, errors.New("no credentials")
	})
	client, _ = NewBedrockClient(context.Background(), BedrockConfig{API: &fakeInvoker{}, Credentials: failing})
	if err := client.HealthCheck(context.Background()); err == nil {
		t.Error("expected error for failing credentials")
	}
}

func TestBedrockZeroTemperature(t *testing.T) {
	fake := &fakeInvoker{output: []byte(`{"content":[{"type":"text","text":"x"}]}`)}
	zero := 0.0
	client, err := NewBedrockClient(context.Background(), BedrockConfig{API: fake, Temperature: &zero})
	if err != nil {
		t.Fatalf("NewBedrockClient() error = %v", err)
	}
	if _, err := client.Transcribe(context.Background(), &TranscribeRequest{Image: []byte{0xff, 0xd8}, PageNum: 1}); err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}

	var req anthropicRequest
	if err := json.Unmarshal(fake.input.Body, &req); err != nil {
		t.Fatalf("unmarshal request body: %v", err)
	}
	if req.Temperature != 0 {
		t.Errorf("temperature = %v, want 0", req.Temperature)
	}
}
