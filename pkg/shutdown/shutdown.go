// Package shutdown runs registered teardown callbacks concurrently with a
// deadline, so one stuck collaborator cannot hang process exit.
package shutdown

import (
	"context"
	"sync"

	"github.com/goth-coder/stream-bit/pkg/logger"
)

// Handler is one teardown step.
type Handler func(ctx context.Context)

// Manager collects teardown callbacks.
type Manager struct {
	mu        sync.Mutex
	callbacks []Handler
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{}
}

// OnShutdown registers a callback; registration order does not imply
// execution order.
func (m *Manager) OnShutdown(handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, handler)
}

// Shutdown runs every callback and blocks until all finish or ctx expires.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	callbacks := make([]Handler, len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.mu.Unlock()

	if len(callbacks) == 0 {
		return
	}
	logger.Infof("shutting down, %d step(s)", len(callbacks))

	var wg sync.WaitGroup
	wg.Add(len(callbacks))
	for _, cb := range callbacks {
		go func(handler Handler) {
			defer wg.Done()
			handler(ctx)
		}(cb)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Infof("shutdown complete")
	case <-ctx.Done():
		logger.Warnf("shutdown timed out: %v", ctx.Err())
	}
}
