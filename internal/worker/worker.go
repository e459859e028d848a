// Package worker runs the engine's periodic background jobs: the perk expiry
// sweep and the event flush.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sportsin/territory/pkg/core"
)

// PerkExpirer deletes perks whose lifetime ended before now.
type PerkExpirer interface {
	ExpirePerks(ctx context.Context, now time.Time) ([]core.ActivePerk, error)
}

// EventFlusher writes buffered events out and reports how many it wrote.
type EventFlusher interface {
	Flush() (int, error)
}

// FlushFunc adapts a function to EventFlusher.
type FlushFunc func() (int, error)

func (f FlushFunc) Flush() (int, error) { return f() }

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Perks  PerkExpirer
	Events EventFlusher // optional
	Logger *slog.Logger
	Clock  func() time.Time
}

// Config sets the job periods. A zero period disables the job.
type Config struct {
	SweepInterval time.Duration
	FlushInterval time.Duration
}

// Manager manages worker goroutines
type Manager struct {
	deps Dependencies
	cfg  Config

	stopChan chan struct{}
	wg       sync.WaitGroup
	start    sync.Once
	stop     sync.Once
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies, cfg Config) *Manager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &Manager{
		deps:     deps,
		cfg:      cfg,
		stopChan: make(chan struct{}),
	}
}

// Start launches one goroutine per enabled job. Calling it again does nothing.
func (m *Manager) Start(ctx context.Context) {
	m.start.Do(func() {
		if m.deps.Perks != nil && m.cfg.SweepInterval > 0 {
			m.run(ctx, "perk-sweep", m.cfg.SweepInterval, func(ctx context.Context) {
				if _, err := m.Sweep(ctx); err != nil {
					m.deps.Logger.Error("Perk sweep failed", "error", err)
				}
			})
		}
		if m.deps.Events != nil && m.cfg.FlushInterval > 0 {
			m.run(ctx, "event-flush", m.cfg.FlushInterval, func(context.Context) {
				if _, err := m.FlushEvents(); err != nil {
					m.deps.Logger.Error("Event flush failed", "error", err)
				}
			})
		}
	})
}

// Stop ends the jobs, waits for them and flushes pending events one last time.
func (m *Manager) Stop() {
	m.stop.Do(func() {
		close(m.stopChan)
		m.wg.Wait()
		if _, err := m.FlushEvents(); err != nil {
			m.deps.Logger.Error("Final event flush failed", "error", err)
		}
	})
}

// Sweep expires perks as of the current clock.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	if m.deps.Perks == nil {
		return 0, nil
	}
	expired, err := m.deps.Perks.ExpirePerks(ctx, m.deps.Clock())
	if err != nil {
		return 0, err
	}
	if len(expired) > 0 {
		m.deps.Logger.Debug("Perk sweep", "expired", len(expired))
	}
	return len(expired), nil
}

// FlushEvents writes buffered events through the configured flusher.
func (m *Manager) FlushEvents() (int, error) {
	if m.deps.Events == nil {
		return 0, nil
	}
	n, err := m.deps.Events.Flush()
	if err != nil {
		return n, err
	}
	if n > 0 {
		m.deps.Logger.Debug("Events flushed", "count", n)
	}
	return n, nil
}

func (m *Manager) run(ctx context.Context, name string, interval time.Duration, job func(context.Context)) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		m.deps.Logger.Debug("Worker started", "job", name, "interval", interval)
		for {
			select {
			case <-m.stopChan:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				job(ctx)
			}
		}
	}()
}
