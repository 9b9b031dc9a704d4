package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/colloquyhq/colloquy/api/handlers"
	"github.com/colloquyhq/colloquy/config"
	"github.com/colloquyhq/colloquy/internal/metrics"
	"github.com/colloquyhq/colloquy/internal/server"
	"github.com/colloquyhq/colloquy/internal/telemetry"
	"github.com/colloquyhq/colloquy/providers"
	"github.com/colloquyhq/colloquy/providers/anthropic"
	"github.com/colloquyhq/colloquy/providers/openai"
	"github.com/colloquyhq/colloquy/session"
	"github.com/colloquyhq/colloquy/store"
	"github.com/colloquyhq/colloquy/types"
)

// Server wires the conversation arena, stores and HTTP listeners.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger
	otel   *telemetry.Providers

	httpManager    *server.Manager
	metricsManager *server.Manager

	collector *metrics.Collector
	store     store.ConversationStore
	manager   *session.Manager
}

// NewServer creates a server from validated configuration.
func NewServer(cfg *config.Config, logger *zap.Logger, otelProviders *telemetry.Providers) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger,
		otel:   otelProviders,
	}
}

// Start brings up the arena and both listeners.
func (s *Server) Start() error {
	s.collector = metrics.NewCollector("colloquy")

	st, err := openStore(s.cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	s.store = st

	registry, err := buildRegistry(s.cfg.Providers, s.logger)
	if err != nil {
		return fmt.Errorf("failed to build provider registry: %w", err)
	}
	s.logger.Info("Provider registry ready", zap.Strings("providers", registry.Identifiers()))

	broadcaster := handlers.NewBroadcaster(s.logger)
	s.manager = session.NewManager(registry, session.ManagerOptions{
		Store:          s.store,
		Sink:           types.Fanout(broadcaster, types.EventSinkFunc(s.collector.Observe)),
		Logger:         s.logger,
		PacingDelay:    s.cfg.Conversation.PacingDelay,
		AutoRoundDelay: s.cfg.Conversation.AutoRoundDelay,
	})

	if err := s.startHTTPServer(broadcaster); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("All servers started",
		zap.String("addr", s.cfg.Server.Addr),
		zap.String("metrics_addr", s.cfg.Server.MetricsAddr),
		zap.String("store_backend", s.cfg.Store.Backend),
	)
	return nil
}

func (s *Server) startHTTPServer(broadcaster *handlers.Broadcaster) error {
	mux := http.NewServeMux()

	handlers.RegisterHealth(mux)
	handlers.NewConversationHandler(s.manager, s.cfg.Conversation.Defaults, s.logger).Register(mux)
	handlers.NewEventsHandler(s.manager, broadcaster, s.logger).Register(mux)

	handler := Chain(mux,
		Recovery(s.logger),
		RequestID(),
		RequestLogger(s.logger, s.collector),
	)

	s.httpManager = server.New(server.Config{
		Addr:            s.cfg.Server.Addr,
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     s.cfg.Server.IdleTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}, handler, s.logger)

	if err := s.httpManager.Start(); err != nil {
		return err
	}
	s.logger.Info("HTTP server started", zap.String("addr", s.cfg.Server.Addr))
	return nil
}

func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	s.metricsManager = server.New(server.Config{
		Addr:            s.cfg.Server.MetricsAddr,
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}, mux, s.logger)

	if err := s.metricsManager.Start(); err != nil {
		return err
	}
	s.logger.Info("Metrics server started", zap.String("addr", s.cfg.Server.MetricsAddr))
	return nil
}

// WaitForShutdown blocks until a termination signal or a serve error,
// then shuts everything down.
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		if err := s.httpManager.WaitForSignal(); err != nil {
			s.logger.Error("server error", zap.Error(err))
		}
	}
	s.Shutdown()
}

// Shutdown stops the listeners and releases resources.
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(); err != nil {
			s.logger.Warn("HTTP server shutdown error", zap.Error(err))
		}
	}
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(); err != nil {
			s.logger.Warn("metrics server shutdown error", zap.Error(err))
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn("store close error", zap.Error(err))
		}
	}
	if s.otel != nil {
		if err := s.otel.Shutdown(context.Background()); err != nil {
			s.logger.Warn("telemetry shutdown error", zap.Error(err))
		}
	}

	s.logger.Info("Graceful shutdown complete")
}

// openStore constructs the conversation store selected by cfg.Backend.
func openStore(cfg config.StoreConfig) (store.ConversationStore, error) {
	switch cfg.Backend {
	case "memory":
		return store.NewMemoryStore(), nil
	case "file":
		return store.NewFileStore(cfg.BaseDir)
	case "redis":
		return store.NewRedisStore(store.RedisConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
	case "sqlite":
		return store.NewSQLiteStore(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Backend)
	}
}

// buildRegistry instantiates every configured response provider.
func buildRegistry(cfgs []config.ProviderConfig, logger *zap.Logger) (*providers.Registry, error) {
	registry := providers.NewRegistry()
	for _, pc := range cfgs {
		var p providers.ResponseProvider
		switch pc.Kind {
		case "openai":
			p = openai.New(openai.Config{
				Name:    pc.Name,
				APIKey:  pc.APIKey,
				BaseURL: pc.BaseURL,
				Model:   pc.Model,
				Timeout: pc.Timeout,
			}, logger)
		case "anthropic":
			p = anthropic.New(anthropic.Config{
				Name:    pc.Name,
				APIKey:  pc.APIKey,
				BaseURL: pc.BaseURL,
				Model:   pc.Model,
				Timeout: pc.Timeout,
			}, logger)
		default:
			return nil, fmt.Errorf("unknown provider kind %q for %q", pc.Kind, pc.Name)
		}
		registry.Register(p)
	}
	return registry, nil
}
