// Package server provides HTTP server lifecycle management: non-blocking
// start, graceful shutdown, and signal handling. This package is
// internal plumbing around net/http.Server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Config configures one managed listener.
type Config struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Manager wraps an http.Server with non-blocking start, an async error
// channel, and graceful shutdown.
type Manager struct {
	server *http.Server
	config Config
	errCh  chan error
	logger *zap.Logger

	mu      sync.RWMutex
	running bool
}

// New creates a manager serving handler on cfg.Addr.
func New(cfg Config, handler http.Handler, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	return &Manager{
		server: &http.Server{
			Addr:         cfg.Addr,
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		config: cfg,
		errCh:  make(chan error, 1),
		logger: logger.With(zap.String("component", "http_server"), zap.String("addr", cfg.Addr)),
	}
}

// Start begins serving in a background goroutine.
func (m *Manager) Start() error {
	ln, err := net.Listen("tcp", m.config.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", m.config.Addr, err)
	}

	m.mu.Lock()
	m.running = true
	m.mu.Unlock()

	go func() {
		m.logger.Info("server listening")
		if err := m.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.errCh <- err
		}
	}()
	return nil
}

// Shutdown drains in-flight requests within the configured timeout.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.config.ShutdownTimeout)
	defer cancel()
	m.logger.Info("server shutting down")
	return m.server.Shutdown(ctx)
}

// Errors returns the async serve error channel.
func (m *Manager) Errors() <-chan error {
	return m.errCh
}

// IsRunning reports whether the server is serving.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// WaitForSignal blocks until SIGINT or SIGTERM arrives or a serve error
// surfaces, then returns the cause.
func (m *Manager) WaitForSignal() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		m.logger.Info("signal received", zap.String("signal", sig.String()))
		return nil
	case err := <-m.errCh:
		return err
	}
}
