// Package monitor periodically writes a territory status report to disk.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sportsin/territory/internal/storage"
	"github.com/sportsin/territory/pkg/core"
)

// Territory is the read side of the territory registry.
type Territory interface {
	Points() []core.Point
	Zones() []core.Zone
	Routes() []core.Route
}

// Backlog reports events waiting to be flushed.
type Backlog interface {
	Len() int
	Dropped() int
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Territory  Territory
	Perks      storage.PerkStore
	Events     Backlog // optional
	Logger     *slog.Logger
	StatusPath string
	Interval   time.Duration
	Clock      func() time.Time
}

// TeamStatus counts what one team holds.
type TeamStatus struct {
	Points      int `json:"points"`
	Zones       int `json:"zones"`
	ActivePerks int `json:"activePerks"`
}

// Status is one snapshot of the engine state.
type Status struct {
	Time            time.Time                   `json:"time"`
	Points          int                         `json:"points"`
	OwnedPoints     int                         `json:"ownedPoints"`
	Zones           int                         `json:"zones"`
	ControlledZones int                         `json:"controlledZones"`
	Routes          int                         `json:"routes"`
	ActivePerks     int                         `json:"activePerks"`
	Teams           map[core.TeamID]*TeamStatus `json:"teams"`
	PendingEvents   int                         `json:"pendingEvents"`
	DroppedEvents   int                         `json:"droppedEvents"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Status collects the current engine status.
func (s *Service) Status(ctx context.Context) (Status, error) {
	st := Status{
		Time:  s.deps.Clock().UTC(),
		Teams: make(map[core.TeamID]*TeamStatus),
	}
	team := func(id core.TeamID) *TeamStatus {
		t, ok := st.Teams[id]
		if !ok {
			t = &TeamStatus{}
			st.Teams[id] = t
		}
		return t
	}

	if s.deps.Territory != nil {
		points := s.deps.Territory.Points()
		st.Points = len(points)
		for _, p := range points {
			if p.Owned() {
				st.OwnedPoints++
				team(p.Owner).Points++
			}
		}
		zones := s.deps.Territory.Zones()
		st.Zones = len(zones)
		for _, z := range zones {
			if z.Owner != core.NoTeam {
				st.ControlledZones++
				team(z.Owner).Zones++
			}
		}
		st.Routes = len(s.deps.Territory.Routes())
	}

	if s.deps.Perks != nil {
		perks, err := s.deps.Perks.ActivePerks(ctx, storage.PerkFilter{})
		if err != nil {
			return st, fmt.Errorf("listing active perks: %w", err)
		}
		for _, p := range perks {
			if !p.IsActive(st.Time) {
				continue
			}
			st.ActivePerks++
			team(p.Team).ActivePerks++
		}
	}

	if s.deps.Events != nil {
		st.PendingEvents = s.deps.Events.Len()
		st.DroppedEvents = s.deps.Events.Dropped()
	}
	return st, nil
}

// WriteStatus collects the status and replaces the status file with it.
func (s *Service) WriteStatus(ctx context.Context) error {
	st, err := s.Status(ctx)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding status: %w", err)
	}

	// write then rename so readers never see a half-written file
	tmp := s.deps.StatusPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing status file: %w", err)
	}
	return os.Rename(tmp, s.deps.StatusPath)
}

// Start starts the status monitor goroutine
func (s *Service) Start(ctx context.Context) error {
	if s.deps.StatusPath == "" {
		return fmt.Errorf("monitor needs a status path")
	}
	if err := os.MkdirAll(filepath.Dir(s.deps.StatusPath), 0755); err != nil {
		return fmt.Errorf("creating status directory: %w", err)
	}

	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		s.deps.Logger.Debug("Starting status monitor", "path", s.deps.StatusPath, "interval", s.deps.Interval)
		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.WriteStatus(ctx); err != nil {
					s.deps.Logger.Error("Error writing status file", "error", err)
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for it to exit
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	done := s.done
	s.isRunning = false
	s.mu.Unlock()
	<-done
}
