package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"github.com/jackzampolin/scriptex/internal/providers"
)

// Config is the full scriptex configuration.
type Config struct {
	ModelEndpoint  string `mapstructure:"model_endpoint" yaml:"model_endpoint"`
	ImageSourceURL string `mapstructure:"image_source_url" yaml:"image_source_url"`
	PersistenceURL string `mapstructure:"persistence_url" yaml:"persistence_url"`

	RequestTimeoutMs   int    `mapstructure:"request_timeout_ms" yaml:"request_timeout_ms"`
	FetchTimeoutMs     int    `mapstructure:"fetch_timeout_ms" yaml:"fetch_timeout_ms"`
	ModelTimeoutMs     int    `mapstructure:"model_timeout_ms" yaml:"model_timeout_ms"`
	PersistTimeoutMs   int    `mapstructure:"persist_timeout_ms" yaml:"persist_timeout_ms"`
	MaxPageConcurrency int    `mapstructure:"max_page_concurrency" yaml:"max_page_concurrency"`
	LogLevel           string `mapstructure:"log_level" yaml:"log_level"`

	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Model   ModelConfig   `mapstructure:"model" yaml:"model"`
	Archive ArchiveConfig `mapstructure:"archive" yaml:"archive"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string   `mapstructure:"host" yaml:"host"`
	Port        int      `mapstructure:"port" yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// ModelConfig holds vision model settings.
type ModelConfig struct {
	Provider    string  `mapstructure:"provider" yaml:"provider"`
	Name        string  `mapstructure:"name" yaml:"name"`
	APIKey      string  `mapstructure:"api_key" yaml:"api_key"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	RateLimit   int     `mapstructure:"rate_limit" yaml:"rate_limit"`
	Region      string  `mapstructure:"region" yaml:"region"`
	Detail      string  `mapstructure:"detail" yaml:"detail"`
}

// ArchiveConfig holds the optional S3 archive settings.
type ArchiveConfig struct {
	Bucket string `mapstructure:"bucket" yaml:"bucket"`
	Prefix string `mapstructure:"prefix" yaml:"prefix"`
	Region string `mapstructure:"region" yaml:"region"`
}

// RequestTimeout is the default per-call timeout.
func (c *Config) RequestTimeout() time.Duration {
	return millis(c.RequestTimeoutMs)
}

// FetchTimeout is the image fetch timeout.
func (c *Config) FetchTimeout() time.Duration {
	return c.orDefault(c.FetchTimeoutMs)
}

// ModelTimeout is the per-page model call timeout.
func (c *Config) ModelTimeout() time.Duration {
	return c.orDefault(c.ModelTimeoutMs)
}

// PersistTimeout is the persistence timeout covering the read and the write.
func (c *Config) PersistTimeout() time.Duration {
	return c.orDefault(c.PersistTimeoutMs)
}

func (c *Config) orDefault(ms int) time.Duration {
	if ms > 0 {
		return millis(ms)
	}
	return c.RequestTimeout()
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// ProviderConfig converts the model settings for providers.New.
// It resolves ${ENV_VAR} references in the API key.
func (c *Config) ProviderConfig() providers.Config {
	return providers.Config{
		Provider:    c.Model.Provider,
		Model:       c.Model.Name,
		APIKey:      ResolveEnvVars(c.Model.APIKey),
		BaseURL:     c.ModelEndpoint,
		Temperature: c.Model.Temperature,
		MaxTokens:   c.Model.MaxTokens,
		RateLimit:   c.Model.RateLimit,
		Region:      c.Model.Region,
		Detail:      c.Model.Detail,
		Timeout:     c.ModelTimeout(),
	}
}

// SlogLevel maps log_level to a slog level. Unknown values mean info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var knownProviders = []string{providers.OpenAIName, providers.BedrockName, providers.MockName}

// Validate reports every out-of-range setting.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	for key, raw := range map[string]string{
		"image_source_url": c.ImageSourceURL,
		"persistence_url":  c.PersistenceURL,
	} {
		check(validURL(raw), "%s must be an http(s) URL, got %q", key, raw)
	}
	if c.ModelEndpoint != "" {
		check(validURL(c.ModelEndpoint), "model_endpoint must be an http(s) URL, got %q", c.ModelEndpoint)
	}

	check(c.RequestTimeoutMs > 0, "request_timeout_ms must be positive, got %d", c.RequestTimeoutMs)
	check(c.FetchTimeoutMs >= 0, "fetch_timeout_ms must not be negative, got %d", c.FetchTimeoutMs)
	check(c.ModelTimeoutMs >= 0, "model_timeout_ms must not be negative, got %d", c.ModelTimeoutMs)
	check(c.PersistTimeoutMs >= 0, "persist_timeout_ms must not be negative, got %d", c.PersistTimeoutMs)
	check(c.MaxPageConcurrency >= 1, "max_page_concurrency must be at least 1, got %d", c.MaxPageConcurrency)

	check(c.Server.Port > 0 && c.Server.Port < 65536, "server.port out of range: %d", c.Server.Port)

	check(slices.Contains(knownProviders, c.Model.Provider), "model.provider must be one of %v, got %q", knownProviders, c.Model.Provider)
	check(c.Model.Temperature >= 0 && c.Model.Temperature <= 2, "model.temperature must be in [0, 2], got %v", c.Model.Temperature)
	check(c.Model.MaxTokens > 0, "model.max_tokens must be positive, got %d", c.Model.MaxTokens)
	check(c.Model.RateLimit >= 0, "model.rate_limit must not be negative, got %d", c.Model.RateLimit)

	return errors.Join(errs...)
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	v *viper.Viper

	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
	logger    *slog.Logger
}

// NewManager creates a new config manager and loads initial config.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{
		v:         viper.New(),
		callbacks: make([]func(*Config), 0),
		logger:    slog.Default(),
	}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string) error {
	setDefaults(cm.v)

	// Environment variables with SCRIPTEX_ prefix, e.g. SCRIPTEX_SERVER_PORT
	cm.v.SetEnvPrefix("SCRIPTEX")
	cm.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cm.v.AutomaticEnv()

	if cfgFile != "" {
		cm.v.SetConfigFile(cfgFile)
	} else {
		cm.v.SetConfigName("config")
		cm.v.SetConfigType("yaml")
		cm.v.AddConfigPath(".")
		cm.v.AddConfigPath("$HOME/.scriptex")
	}

	// Config file is optional
	if err := cm.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// load parses and validates the current viper state.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// SetLogger sets the logger used for reload messages.
func (cm *Manager) SetLogger(logger *slog.Logger) {
	if logger == nil {
		return
	}
	cm.mu.Lock()
	cm.logger = logger
	cm.mu.Unlock()
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// Value returns the effective value of a single key.
func (cm *Manager) Value(key string) (any, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	if GetDefault(key) == nil && !cm.v.IsSet(key) {
		return nil, fmt.Errorf("%w for key %q", ErrNoDefault, key)
	}
	return cm.v.Get(key), nil
}

// ConfigFileUsed returns the path of the loaded config file, if any.
func (cm *Manager) ConfigFileUsed() string {
	return cm.v.ConfigFileUsed()
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration. A changed file that
// fails to parse or validate is ignored and the previous config stays active.
func (cm *Manager) WatchConfig() {
	cm.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			cm.mu.RLock()
			logger := cm.logger
			cm.mu.RUnlock()
			logger.Warn("ignoring config change", "file", e.Name, "error", err)
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		logger := cm.logger
		cm.mu.Unlock()

		logger.Info("config reloaded", "file", e.Name)
		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	cm.v.WatchConfig()
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envVarPattern.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# scriptex configuration
# API keys use ${ENV_VAR} syntax to reference environment variables
# Set these in your shell: export OPENAI_API_KEY=xxx
# Any key can be overridden as SCRIPTEX_<KEY>, e.g. SCRIPTEX_SERVER_PORT=8080

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
