// Package cache provides the TTL-bounded LRU cache behind rendered
// chart responses, plus a manager that runs their periodic cleanup.
package cache

import (
	"log/slog"
	"sync"
	"time"
)

// Cleaner is any cache that can drop its expired entries.
type Cleaner interface {
	CleanExpired() int
}

// Manager owns the cleanup loop for a set of caches, so each cache does
// not need its own goroutine.
type Manager struct {
	caches   []Cleaner
	quit     chan struct{}
	done     chan struct{}
	started  bool
	stopOnce sync.Once
}

// NewManager returns a manager with no caches registered.
func NewManager() *Manager {
	return &Manager{
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Register adds a cache to the cleanup rotation. Not safe to call after
// StartCleanup.
func (m *Manager) Register(c Cleaner) {
	m.caches = append(m.caches, c)
}

// StartCleanup begins sweeping registered caches at the given interval.
func (m *Manager) StartCleanup(interval time.Duration) {
	m.started = true
	go m.sweep(interval)
}

func (m *Manager) sweep(interval time.Duration) {
	defer close(m.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			expired := 0
			for _, c := range m.caches {
				expired += c.CleanExpired()
			}
			if expired > 0 {
				slog.Debug("Expired cache entries removed", "count", expired)
			}
		case <-m.quit:
			return
		}
	}
}

// Stop ends the cleanup loop and waits for it to exit. Safe to call
// more than once.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.quit)
		if m.started {
			<-m.done
		}
	})
}
