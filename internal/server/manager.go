package server

import (
	"context"
	"fmt"
	"sync"

	"github.com/nfxvault/tlscertd/internal/observability"
)

// ServerManager collects named servers behind one StartAll/StopAll
// pair so the API role's lifecycle stays a single call each way even if
// a second listener (metrics, debug) is registered later.
type ServerManager interface {
	AddServer(name string, srv Server) error
	StartAll(ctx context.Context) error
	StopAll(ctx context.Context) error
}

type manager struct {
	logger observability.Logger

	mu      sync.Mutex
	servers map[string]Server
	started bool
	wg      sync.WaitGroup
}

func NewServerManager(logger observability.Logger) ServerManager {
	return &manager{
		logger:  logger,
		servers: make(map[string]Server),
	}
}

func (m *manager) AddServer(name string, srv Server) error {
	if name == "" || srv == nil {
		return fmt.Errorf("server name and instance are required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return fmt.Errorf("cannot add server %q after StartAll", name)
	}
	if _, dup := m.servers[name]; dup {
		return fmt.Errorf("server %q already registered", name)
	}
	m.servers[name] = srv
	return nil
}

// StartAll launches every registered server in its own goroutine.
// Serve errors after a successful bind are logged rather than
// propagated; the caller notices a dead listener through its health
// checks, not through StartAll.
func (m *manager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return fmt.Errorf("servers already started")
	}
	if len(m.servers) == 0 {
		return fmt.Errorf("no servers registered")
	}
	m.started = true

	for name, srv := range m.servers {
		m.wg.Add(1)
		go func(name string, srv Server) {
			defer m.wg.Done()
			if err := srv.Start(ctx); err != nil {
				m.logger.Error(ctx, err, "server exited", observability.String("server", name))
			}
		}(name, srv)
	}
	return nil
}

func (m *manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return nil
	}

	var firstErr error
	for name, srv := range m.servers {
		if err := srv.Stop(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("stop server %q: %w", name, err)
		}
	}
	m.wg.Wait()
	m.started = false
	return firstErr
}
