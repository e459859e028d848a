package monitor

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sportsin/territory/internal/config"
	"github.com/sportsin/territory/internal/storage/memory"
	"github.com/sportsin/territory/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

type fakeTerritory struct {
	points []core.Point
	zones  []core.Zone
	routes []core.Route
}

func (f fakeTerritory) Points() []core.Point { return f.points }
func (f fakeTerritory) Zones() []core.Zone   { return f.zones }
func (f fakeTerritory) Routes() []core.Route { return f.routes }

type fakeBacklog struct{ pending, dropped int }

func (f fakeBacklog) Len() int     { return f.pending }
func (f fakeBacklog) Dropped() int { return f.dropped }

func newTestService(t *testing.T, path string) *Service {
	t.Helper()
	ctx := context.Background()

	store := memory.New(config.MemoryConfig{})
	require.NoError(t, store.CreateActivePerk(ctx, core.ActivePerk{
		ID: "p1", Team: 1, DefinitionID: 1, Code: "INFLUENCE_BOOST",
		ActivatedAt: t0, ExpiresAt: t0.Add(time.Hour),
	}))
	// expired but not yet swept
	require.NoError(t, store.CreateActivePerk(ctx, core.ActivePerk{
		ID: "p2", Team: 2, DefinitionID: 2, Code: "SHIELD",
		ActivatedAt: t0.Add(-3 * time.Hour), ExpiresAt: t0.Add(-time.Hour),
	}))

	return NewService(Dependencies{
		Territory: fakeTerritory{
			points: []core.Point{{ID: "a", Owner: 1}, {ID: "b", Owner: 1}, {ID: "c", Owner: 2}, {ID: "d"}},
			zones:  []core.Zone{{ID: 1, Owner: 1}, {ID: 2}},
			routes: []core.Route{{ID: 1}},
		},
		Perks:      store,
		Events:     fakeBacklog{pending: 4, dropped: 1},
		StatusPath: path,
		Interval:   10 * time.Millisecond,
		Clock:      func() time.Time { return t0 },
	})
}

func TestStatus(t *testing.T) {
	s := newTestService(t, "")
	st, err := s.Status(context.Background())
	require.NoError(t, err)

	assert.Equal(t, t0, st.Time)
	assert.Equal(t, 4, st.Points)
	assert.Equal(t, 3, st.OwnedPoints)
	assert.Equal(t, 2, st.Zones)
	assert.Equal(t, 1, st.ControlledZones)
	assert.Equal(t, 1, st.Routes)
	assert.Equal(t, 1, st.ActivePerks)
	assert.Equal(t, 4, st.PendingEvents)
	assert.Equal(t, 1, st.DroppedEvents)

	require.Contains(t, st.Teams, core.TeamID(1))
	assert.Equal(t, TeamStatus{Points: 2, Zones: 1, ActivePerks: 1}, *st.Teams[1])
	assert.Equal(t, TeamStatus{Points: 1}, *st.Teams[2])
}

func TestStatus_NoDependencies(t *testing.T) {
	s := NewService(Dependencies{})
	st, err := s.Status(context.Background())
	require.NoError(t, err)
	assert.Zero(t, st.Points)
	assert.Empty(t, st.Teams)
}

func TestWriteStatus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	s := newTestService(t, path)
	require.NoError(t, s.WriteStatus(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got Status
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, 3, got.OwnedPoints)
	assert.Equal(t, 2, got.Teams[1].Points)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestStartStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "status.json")
	s := newTestService(t, path)

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	// starting twice is a no-op
	require.NoError(t, s.Start(context.Background()))

	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, time.Second, 5*time.Millisecond)

	s.Stop()
	assert.False(t, s.IsRunning())
	s.Stop()
}

func TestStart_NeedsPath(t *testing.T) {
	s := NewService(Dependencies{})
	assert.Error(t, s.Start(context.Background()))
}
