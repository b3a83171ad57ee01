package providers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Config selects and configures the model provider.
type Config struct {
	Provider    string  // "openai" (default), "bedrock", "mock"
	Model       string  // model name or Bedrock model id
	APIKey      string  // resolved API key (openai)
	BaseURL     string  // OpenAI-compatible endpoint override
	Temperature float64 // sampling temperature, sent as given
	MaxTokens   int     // completion token cap
	RateLimit   int     // requests per minute; 0 uses DefaultRequestsPerMinute
	Region      string  // AWS region (bedrock)
	Detail      string  // image detail (openai)
	Timeout     time.Duration
}

// New builds a rate-limited Transcriber from cfg.
func New(ctx context.Context, cfg Config) (*RateLimited, error) {
	var t Transcriber
	temperature := cfg.Temperature
	switch cfg.Provider {
	case "", OpenAIName:
		t = NewOpenAIClient(OpenAIConfig{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			BaseURL:     cfg.BaseURL,
			Temperature: &temperature,
			MaxTokens:   cfg.MaxTokens,
			Detail:      cfg.Detail,
			Timeout:     cfg.Timeout,
		})
	case BedrockName:
		c, err := NewBedrockClient(ctx, BedrockConfig{
			Region:      cfg.Region,
			Model:       cfg.Model,
			Temperature: &temperature,
			MaxTokens:   cfg.MaxTokens,
		})
		if err != nil {
			return nil, err
		}
		t = c
	case MockName:
		t = NewMockTranscriber()
	default:
		return nil, fmt.Errorf("unknown model provider: %q", cfg.Provider)
	}
	return WithRateLimit(t, cfg.RateLimit), nil
}

// Registry holds the active Transcriber and swaps it on config reload.
type Registry struct {
	mu     sync.RWMutex
	cfg    Config
	active *RateLimited
	logger *slog.Logger
}

// NewRegistry creates a registry with a Transcriber built from cfg.
func NewRegistry(ctx context.Context, cfg Config, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	t, err := New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("registered model provider", "provider", t.Name(), "model", cfg.Model)
	return &Registry{cfg: cfg, active: t, logger: logger}, nil
}

// Transcriber returns the active provider.
func (r *Registry) Transcriber() Transcriber {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Status reports the active provider's limiter state.
func (r *Registry) Status() RateLimiterStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active.Limiter().Status()
}

// Reload rebuilds the provider when cfg differs from the current one.
// On error the current provider stays active.
func (r *Registry) Reload(ctx context.Context, cfg Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cfg == r.cfg {
		return nil
	}
	t, err := New(ctx, cfg)
	if err != nil {
		r.logger.Warn("model provider reload failed, keeping current", "error", err)
		return err
	}
	r.cfg = cfg
	r.active = t
	r.logger.Info("updated model provider", "provider", t.Name(), "model", cfg.Model)
	return nil
}

// Name returns the active provider's name.
func (r *Registry) Name() string {
	return r.Transcriber().Name()
}

// Transcribe delegates to the active provider.
func (r *Registry) Transcribe(ctx context.Context, req *TranscribeRequest) (*TranscribeResult, error) {
	return r.Transcriber().Transcribe(ctx, req)
}

// HealthCheck delegates to the active provider.
func (r *Registry) HealthCheck(ctx context.Context) error {
	return r.Transcriber().HealthCheck(ctx)
}

var _ Transcriber = (*Registry)(nil)
