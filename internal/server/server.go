// Package server runs the scriptex HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/jackzampolin/scriptex/docs/swagger" // registers the OpenAPI document
	"github.com/jackzampolin/scriptex/internal/api"
	"github.com/jackzampolin/scriptex/internal/config"
	"github.com/jackzampolin/scriptex/internal/providers"
	"github.com/jackzampolin/scriptex/internal/server/endpoints"
	"github.com/jackzampolin/scriptex/internal/svcctx"
)

// Server is the main scriptex HTTP server.
// Services are rebuilt whenever the configuration file changes.
type Server struct {
	httpServer *http.Server
	registry   *providers.Registry
	configMgr  *config.Manager
	logger     *slog.Logger

	// services holds all core services for context enrichment
	services atomic.Pointer[svcctx.Services]
	cors     atomic.Pointer[corsPolicy]

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host and Port override server.host and server.port when set
	Host string
	Port int
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Version is reported by the index route
	Version string
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(ctx context.Context, cfg Config) (*Server, error) {
	if cfg.ConfigManager == nil {
		return nil, errors.New("config manager is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	appCfg := cfg.ConfigManager.Get()

	host := cfg.Host
	if host == "" {
		host = appCfg.Server.Host
	}
	port := cfg.Port
	if port == 0 {
		port = appCfg.Server.Port
	}

	registry, err := providers.NewRegistry(ctx, appCfg.ProviderConfig(), cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create model provider: %w", err)
	}

	s := &Server{
		registry:  registry,
		configMgr: cfg.ConfigManager,
		logger:    cfg.Logger,
	}
	if err := s.applyConfig(ctx, appCfg); err != nil {
		return nil, err
	}

	// Watch for config changes
	cfg.ConfigManager.OnChange(func(c *config.Config) {
		if err := s.reload(context.Background(), c); err != nil {
			s.logger.Error("config reload failed, keeping current services", "error", err)
			return
		}
		s.logger.Info("services reloaded from config")
	})

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All(endpoints.Config{Version: cfg.Version}) {
		s.endpointRegistry.Register(ep)
	}

	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:        net.JoinHostPort(host, strconv.Itoa(port)),
		Handler:     s.withCORS(s.withServices(mux)),
		ReadTimeout: 30 * time.Second,
		// A run waits on every page; the per-call timeouts bound it instead.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// reload rebuilds the model provider and services for a changed config.
func (s *Server) reload(ctx context.Context, c *config.Config) error {
	if err := s.registry.Reload(ctx, c.ProviderConfig()); err != nil {
		return err
	}
	return s.applyConfig(ctx, c)
}

func (s *Server) applyConfig(ctx context.Context, c *config.Config) error {
	svcs, err := svcctx.New(ctx, c, s.registry, s.logger)
	if err != nil {
		return fmt.Errorf("failed to create services: %w", err)
	}
	s.services.Store(svcs)
	s.cors.Store(newCORSPolicy(c.Server.CORSOrigins))
	return nil
}

// Start starts the server.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()
	defer s.setNotRunning()

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr, "routes", len(s.endpointRegistry.Endpoints()))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// shutdown performs graceful shutdown of the HTTP server.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Registry returns the model provider registry.
func (s *Server) Registry() *providers.Registry {
	return s.registry
}

// Services returns the current service set.
func (s *Server) Services() *svcctx.Services {
	return s.services.Load()
}

// Handler returns the root HTTP handler, for in-process tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svcs := s.services.Load(); svcs != nil {
			ctx = svcctx.WithServices(ctx, svcs)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures services are available.
// Returns 503 Service Unavailable otherwise.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.services.Load() == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
