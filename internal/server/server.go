// Package server binds the HTTP control surface.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

type Config struct {
	Port            int
	PortAttempts    int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type Server struct {
	cfg      Config
	srv      *http.Server
	listener net.Listener
	logger   *slog.Logger
}

// Listen binds the first free port among Port..Port+PortAttempts on all
// interfaces.
func Listen(port, attempts int) (net.Listener, error) {
	if attempts < 0 {
		attempts = 0
	}
	var lastErr error
	for p := port; p <= port+attempts; p++ {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", p))
		if err == nil {
			return ln, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("no bindable port in %d-%d: %w", port, port+attempts, lastErr)
}

// New binds a listener for handler. It fails when no port in the fallback
// range can be bound.
func New(cfg Config, handler http.Handler, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 15 * time.Second
	}

	ln, err := Listen(cfg.Port, cfg.PortAttempts)
	if err != nil {
		return nil, err
	}

	return &Server{
		cfg: cfg,
		srv: &http.Server{
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		listener: ln,
		logger:   logger,
	}, nil
}

// Addr returns the bound address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Port returns the bound TCP port.
func (s *Server) Port() int {
	if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if s.Port() != s.cfg.Port {
		s.logger.Warn("preferred port unavailable, using fallback",
			slog.Int("preferred_port", s.cfg.Port),
			slog.Int("port", s.Port()),
		)
	}
	s.logger.Info("sensor API listening", slog.String("addr", s.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.Serve(s.listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
