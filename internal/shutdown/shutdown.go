// Package shutdown stops a long-running command on SIGINT or SIGTERM and
// runs its registered cleanups in reverse order.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"grocat/internal/utils"
)

// CleanupFunc releases one resource. ctx is cancelled when the shutdown times out.
type CleanupFunc func(ctx context.Context) error

type cleanupEntry struct {
	name string
	fn   CleanupFunc
}

// Manager coordinates a graceful shutdown.
type Manager struct {
	mu         sync.Mutex
	cleanups   []cleanupEntry
	shutdownCh chan struct{}
	ctx        context.Context
	cancel     context.CancelFunc
	once       sync.Once
	stopSignal func()
}

// NewManager creates a manager whose Context is derived from parent.
func NewManager(parent context.Context) *Manager {
	ctx, cancel := context.WithCancel(parent)
	return &Manager{
		shutdownCh: make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// RegisterCleanup adds fn to run on shutdown. Cleanups run last registered first.
func (m *Manager) RegisterCleanup(name string, fn CleanupFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanups = append(m.cleanups, cleanupEntry{name: name, fn: fn})
}

// ListenForSignals starts a shutdown on SIGINT or SIGTERM.
func (m *Manager) ListenForSignals() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})

	m.mu.Lock()
	m.stopSignal = func() {
		signal.Stop(sigCh)
		close(done)
	}
	m.mu.Unlock()

	go func() {
		select {
		case sig := <-sigCh:
			utils.Infof("received %s, shutting down", sig)
			m.Shutdown()
		case <-done:
		}
	}()
}

// Shutdown cancels Context and closes Done. Only the first call has effect.
func (m *Manager) Shutdown() {
	m.once.Do(func() {
		m.cancel()
		close(m.shutdownCh)
	})
}

// Done is closed once shutdown starts.
func (m *Manager) Done() <-chan struct{} {
	return m.shutdownCh
}

// IsShutdown reports whether shutdown has started.
func (m *Manager) IsShutdown() bool {
	select {
	case <-m.shutdownCh:
		return true
	default:
		return false
	}
}

// Context is cancelled when shutdown starts.
func (m *Manager) Context() context.Context {
	return m.ctx
}

// Wait runs the cleanups and returns when they finish or ctx expires.
// A failing cleanup is logged and the remaining ones still run.
func (m *Manager) Wait(ctx context.Context) error {
	m.mu.Lock()
	cleanups := make([]cleanupEntry, len(m.cleanups))
	copy(cleanups, m.cleanups)
	stop := m.stopSignal
	m.stopSignal = nil
	m.mu.Unlock()

	if stop != nil {
		stop()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := len(cleanups) - 1; i >= 0; i-- {
			if err := cleanups[i].fn(ctx); err != nil {
				utils.Warnf("cleanup %s failed: %v", cleanups[i].name, err)
			}
		}
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
