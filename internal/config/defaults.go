package config

import (
	"errors"
	"fmt"
	"unicode"

	"github.com/spf13/viper"
)

// ErrInvalidKey is returned when a config key contains invalid characters.
var ErrInvalidKey = errors.New("invalid config key")

// ErrNoDefault is returned when no default value exists for a config key.
var ErrNoDefault = errors.New("no default exists")

// Entry is a single configuration key with its default value.
type Entry struct {
	Key         string `json:"key" yaml:"key"`
	Value       any    `json:"value" yaml:"value"`
	Description string `json:"description" yaml:"description"`
}

// DefaultEntries returns every recognized configuration key.
// They seed viper's defaults, so each key can also be set through the
// environment as SCRIPTEX_<KEY> with dots replaced by underscores.
func DefaultEntries() []Entry {
	return []Entry{
		// ===================
		// Collaborators
		// ===================
		{
			Key:         "model_endpoint",
			Value:       "",
			Description: "Base URL of an OpenAI-compatible model endpoint (empty uses the provider default)",
		},
		{
			Key:         "image_source_url",
			Value:       "http://localhost:8001",
			Description: "Base URL of the image-storage service",
		},
		{
			Key:         "persistence_url",
			Value:       "http://localhost:8000",
			Description: "Base URL of the transcription-persistence service",
		},

		// ===================
		// Timeouts and limits
		// ===================
		{
			Key:         "request_timeout_ms",
			Value:       30000,
			Description: "Default timeout in milliseconds for each upstream call",
		},
		{
			Key:         "fetch_timeout_ms",
			Value:       0,
			Description: "Image fetch timeout in milliseconds (0 uses request_timeout_ms)",
		},
		{
			Key:         "model_timeout_ms",
			Value:       120000,
			Description: "Per-page model call timeout in milliseconds (0 uses request_timeout_ms)",
		},
		{
			Key:         "persist_timeout_ms",
			Value:       0,
			Description: "Persistence timeout in milliseconds (0 uses request_timeout_ms)",
		},
		{
			Key:         "max_page_concurrency",
			Value:       4,
			Description: "Maximum pages transcribed concurrently per script",
		},
		{
			Key:         "log_level",
			Value:       "info",
			Description: "Log level: debug, info, warn or error",
		},

		// ===================
		// Server
		// ===================
		{
			Key:         "server.host",
			Value:       "0.0.0.0",
			Description: "Address the HTTP server binds to",
		},
		{
			Key:         "server.port",
			Value:       5001,
			Description: "Port the HTTP server listens on",
		},
		{
			Key:         "server.cors_origins",
			Value:       []string{"http://localhost:3000"},
			Description: "Origins allowed to call the API from a browser",
		},

		// ===================
		// Model
		// ===================
		{
			Key:         "model.provider",
			Value:       "openai",
			Description: "Model provider: openai, bedrock or mock",
		},
		{
			Key:         "model.name",
			Value:       "gpt-4o",
			Description: "Model name, or Bedrock model id",
		},
		{
			Key:         "model.api_key",
			Value:       "${OPENAI_API_KEY}",
			Description: "Model API key (uses environment variable)",
		},
		{
			Key:         "model.temperature",
			Value:       0.1,
			Description: "Sampling temperature",
		},
		{
			Key:         "model.max_tokens",
			Value:       4000,
			Description: "Maximum completion tokens per page",
		},
		{
			Key:         "model.rate_limit",
			Value:       60,
			Description: "Model requests per minute",
		},
		{
			Key:         "model.region",
			Value:       "us-east-1",
			Description: "AWS region for the bedrock provider",
		},
		{
			Key:         "model.detail",
			Value:       "high",
			Description: "Image detail level sent to the openai provider",
		},

		// ===================
		// Archive
		// ===================
		{
			Key:         "archive.bucket",
			Value:       "",
			Description: "S3 bucket for archived documents (empty disables archiving)",
		},
		{
			Key:         "archive.prefix",
			Value:       "latex/",
			Description: "Key prefix for archived documents",
		},
		{
			Key:         "archive.region",
			Value:       "",
			Description: "AWS region for the archive bucket (empty uses the SDK default)",
		},
	}
}

// GetDefault returns the default entry for a config key.
// Returns nil if no default exists for the key.
func GetDefault(key string) *Entry {
	for _, entry := range DefaultEntries() {
		if entry.Key == key {
			return &entry
		}
	}
	return nil
}

// ValidateKey checks if a config key contains only allowed characters.
// Valid keys contain letters, digits, dots, underscores and hyphens.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: key cannot be empty", ErrInvalidKey)
	}
	for i, r := range key {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.' && r != '_' && r != '-' {
			return fmt.Errorf("%w: invalid character %q at position %d", ErrInvalidKey, r, i)
		}
	}
	if key[0] == '.' || key[len(key)-1] == '.' {
		return fmt.Errorf("%w: key cannot start or end with a dot", ErrInvalidKey)
	}
	return nil
}

// DefaultConfig returns the configuration built from DefaultEntries alone.
func DefaultConfig() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults are static; a decode failure here is a programming error.
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return &cfg
}

func setDefaults(v *viper.Viper) {
	for _, e := range DefaultEntries() {
		v.SetDefault(e.Key, e.Value)
	}
}
