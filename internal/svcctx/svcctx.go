// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackzampolin/scriptex/internal/archive"
	"github.com/jackzampolin/scriptex/internal/config"
	"github.com/jackzampolin/scriptex/internal/images"
	"github.com/jackzampolin/scriptex/internal/latex"
	"github.com/jackzampolin/scriptex/internal/persist"
	"github.com/jackzampolin/scriptex/internal/pipeline"
	"github.com/jackzampolin/scriptex/internal/providers"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	Config   *config.Config
	Registry *providers.Registry
	Images   *images.Client
	Persist  *persist.Client
	Archive  *archive.S3Archive // nil when archiving is disabled
	Pipeline *pipeline.Orchestrator
	Logger   *slog.Logger
}

// New builds the collaborator clients and the orchestrator for cfg. The
// registry is shared so that model reloads reach existing orchestrators.
func New(ctx context.Context, cfg *config.Config, registry *providers.Registry, logger *slog.Logger) (*Services, error) {
	if logger == nil {
		logger = slog.Default()
	}

	imgClient := images.NewClient(images.ClientConfig{
		BaseURL: cfg.ImageSourceURL,
		Timeout: cfg.FetchTimeout(),
		Logger:  logger,
	})
	persistClient := persist.NewClient(persist.ClientConfig{
		BaseURL: cfg.PersistenceURL,
		Timeout: cfg.PersistTimeout(),
		Logger:  logger,
	})
	arch, err := archive.New(ctx, archive.Config{
		Bucket: cfg.Archive.Bucket,
		Prefix: cfg.Archive.Prefix,
		Region: cfg.Archive.Region,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}

	pcfg := pipeline.Config{
		Images:         imgClient,
		Model:          registry,
		Persister:      persistClient,
		Assembler:      latex.Assembler{},
		MaxConcurrency: cfg.MaxPageConcurrency,
		ModelTimeout:   cfg.ModelTimeout(),
		ArchiveTimeout: cfg.PersistTimeout(),
		Logger:         logger,
	}
	if arch != nil {
		pcfg.Archive = arch
	}

	return &Services{
		Config:   cfg,
		Registry: registry,
		Images:   imgClient,
		Persist:  persistClient,
		Archive:  arch,
		Pipeline: pipeline.NewOrchestrator(pcfg),
		Logger:   logger,
	}, nil
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// ConfigFrom extracts the configuration snapshot from context.
func ConfigFrom(ctx context.Context) *config.Config {
	if s := ServicesFrom(ctx); s != nil {
		return s.Config
	}
	return nil
}

// RegistryFrom extracts the model provider registry from context.
func RegistryFrom(ctx context.Context) *providers.Registry {
	if s := ServicesFrom(ctx); s != nil {
		return s.Registry
	}
	return nil
}

// ImagesFrom extracts the image source client from context.
func ImagesFrom(ctx context.Context) *images.Client {
	if s := ServicesFrom(ctx); s != nil {
		return s.Images
	}
	return nil
}

// PersistFrom extracts the persistence client from context.
func PersistFrom(ctx context.Context) *persist.Client {
	if s := ServicesFrom(ctx); s != nil {
		return s.Persist
	}
	return nil
}

// PipelineFrom extracts the run orchestrator from context.
func PipelineFrom(ctx context.Context) *pipeline.Orchestrator {
	if s := ServicesFrom(ctx); s != nil {
		return s.Pipeline
	}
	return nil
}

// LoggerFrom extracts the logger from context.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil {
		return s.Logger
	}
	return nil
}
