// Package server owns the plain-HTTP listen/serve/graceful-shutdown
// machinery for the API role. The certificate lifecycle manager never
// terminates TLS itself; both the API and the ACME challenge endpoint
// speak plain HTTP behind the reverse proxy whose certificate pool this
// system manages.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/nfxvault/tlscertd/internal/config"
	"github.com/nfxvault/tlscertd/internal/observability"
)

// Server is one listener with a graceful stop.
type Server interface {
	// Start listens and serves until Stop is called. Blocking.
	Start(ctx context.Context) error

	// Stop drains in-flight requests within the shutdown timeout.
	Stop(ctx context.Context) error

	// ListenAddr returns the bound address, useful with port 0 in tests.
	ListenAddr() string
}

// Config carries the listener settings the API role needs.
type Config struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// ConfigFromMain projects the process configuration onto this package's
// listener settings.
func ConfigFromMain(cfg config.Config) Config {
	return Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.GracefulTimeout,
	}
}

func (c Config) addr() string {
	host := c.Host
	if host == "" {
		host = "0.0.0.0"
	}
	return fmt.Sprintf("%s:%d", host, c.Port)
}

type httpServer struct {
	cfg      Config
	srv      *http.Server
	logger   observability.Logger
	listener atomic.Pointer[net.Listener]
	running  atomic.Bool
}

// NewHTTPServer builds a server around handler. The handler arrives
// already wrapped in the middleware chain; this layer adds nothing per
// request.
func NewHTTPServer(cfg Config, handler http.Handler, logger observability.Logger) Server {
	return &httpServer{
		cfg:    cfg,
		logger: logger,
		srv: &http.Server{
			Addr:         cfg.addr(),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}
}

func (s *httpServer) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("server already running")
	}

	ln, err := net.Listen("tcp", s.cfg.addr())
	if err != nil {
		s.running.Store(false)
		return fmt.Errorf("listen on %s: %w", s.cfg.addr(), err)
	}
	s.listener.Store(&ln)

	s.logger.Info(ctx, "http server listening", observability.String("address", ln.Addr().String()))

	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.running.Store(false)
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

func (s *httpServer) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info(ctx, "http server stopped", observability.String("address", s.ListenAddr()))
	return nil
}

func (s *httpServer) ListenAddr() string {
	if ln := s.listener.Load(); ln != nil {
		return (*ln).Addr().String()
	}
	return s.cfg.addr()
}
