package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sportsin/territory/internal/catalog"
	"github.com/sportsin/territory/internal/config"
	"github.com/sportsin/territory/internal/storage/memory"
	"github.com/sportsin/territory/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	red  core.TeamID = 1
	blue core.TeamID = 2
)

var t0 = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

type recorder struct {
	mu     sync.Mutex
	events []core.Event
}

func (r *recorder) Publish(e core.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) count(kind core.EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func testWorld() catalog.World {
	return catalog.World{
		Teams: []core.Team{
			{ID: red, Name: "Red", XP: 1000},
			{ID: blue, Name: "Blue", XP: 1000},
		},
		Points: []core.Point{
			{ID: "a", Name: "A", Lat: 48.850, Lon: 2.350},
			{ID: "b", Name: "B", Lat: 48.851, Lon: 2.350},
			{ID: "c", Name: "C", Lat: 48.852, Lon: 2.350},
			{ID: "d", Name: "D", Lat: 48.853, Lon: 2.350},
		},
	}
}

func newEngine(t *testing.T, store *memory.Backend) (*Engine, *recorder) {
	t.Helper()
	if store == nil {
		store = memory.New(config.MemoryConfig{})
	}
	rec := &recorder{}
	e, err := New(Dependencies{
		Backend: store,
		Events:  rec,
		Clock:   func() time.Time { return t0 },
	})
	require.NoError(t, err)
	return e, rec
}

// bootstrapped has one zone a..d and one route a->b->c->d.
func bootstrapped(t *testing.T) (*Engine, *recorder) {
	t.Helper()
	ctx := context.Background()
	e, rec := newEngine(t, nil)
	require.NoError(t, e.Seed(ctx, testWorld(), catalog.DefaultPerks()))

	zones, err := e.BootstrapZones(ctx, e.Points(), 1.0, 3)
	require.NoError(t, err)
	require.Len(t, zones, 1)
	routes, err := e.BootstrapRoutes(ctx, e.Points(), 2.0, 3)
	require.NoError(t, err)
	require.Len(t, routes, 1)
	return e, rec
}

func TestNew_NeedsBackend(t *testing.T) {
	_, err := New(Dependencies{})
	assert.Error(t, err)
}

func TestModifierOrder(t *testing.T) {
	e, _ := newEngine(t, nil)
	assert.Equal(t, []string{"route", "perk"}, e.Modifiers())
}

func TestConquer_ZoneAndRouteBonus(t *testing.T) {
	ctx := context.Background()
	e, rec := bootstrapped(t)

	for _, p := range []core.PointID{"a", "b"} {
		_, err := e.Conquer(ctx, p, red)
		require.NoError(t, err)
	}
	assert.Zero(t, e.ScoreBonusFor(ctx, red, "b"))

	out, err := e.Conquer(ctx, "c", red)
	require.NoError(t, err)
	require.Len(t, out.ZoneChanges, 1)
	assert.Equal(t, red, out.ZoneChanges[0].New)
	require.Len(t, out.Bonuses, 1)

	assert.InDelta(t, 0.10, e.ScoreBonusFor(ctx, red, "b"), 1e-9)
	assert.Zero(t, e.ScoreBonusFor(ctx, blue, "b"))
	assert.Equal(t, 3, rec.count(core.EventPointCaptured))
	assert.Equal(t, 1, rec.count(core.EventZoneCaptured))
}

func TestConquer_UnknownPoint(t *testing.T) {
	e, _ := bootstrapped(t)
	_, err := e.Conquer(context.Background(), "nowhere", red)
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func TestScoreBonus_BoostAndShield(t *testing.T) {
	ctx := context.Background()
	e, _ := bootstrapped(t)
	for _, p := range []core.PointID{"a", "b", "c"} {
		_, err := e.Conquer(ctx, p, red)
		require.NoError(t, err)
	}

	_, err := e.ActivatePerk(ctx, red, "INFLUENCE_BOOST", "b")
	require.NoError(t, err)
	// 0.10 route bonus plus 25% of it
	assert.InDelta(t, 0.125, e.ScoreBonusFor(ctx, red, "b"), 1e-9)

	_, err = e.ActivatePerk(ctx, blue, "SHIELD", "b")
	require.NoError(t, err)
	// the shield takes 50% of the same 0.10 base
	assert.InDelta(t, 0.075, e.ScoreBonusFor(ctx, red, "b"), 1e-9)
	// neither perk helps blue, which holds no route run
	assert.Zero(t, e.ScoreBonusFor(ctx, blue, "b"))
	// nothing is aimed at c
	assert.InDelta(t, 0.10, e.ScoreBonusFor(ctx, red, "c"), 1e-9)

	onTarget, err := e.ActivePerksOnTarget(ctx, "b")
	require.NoError(t, err)
	assert.Len(t, onTarget, 2)

	mine, err := e.ActivePerks(ctx, red)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "INFLUENCE_BOOST", mine[0].Code)
}

func TestActivatePerk_Errors(t *testing.T) {
	ctx := context.Background()
	e, _ := bootstrapped(t)

	_, err := e.ActivatePerk(ctx, red, "NO_SUCH_PERK", "")
	assert.True(t, errors.Is(err, core.ErrNotFound))

	_, err = e.ActivatePerk(ctx, 99, "XP_BOOST", "")
	assert.True(t, errors.Is(err, core.ErrNotFound))

	_, err = e.ActivatePerk(ctx, red, "INFLUENCE_BOOST", "a")
	require.NoError(t, err)
	_, err = e.ActivatePerk(ctx, red, "INFLUENCE_BOOST", "a")
	var inel *core.IneligibleError
	assert.True(t, errors.As(err, &inel))
}

func TestActivePerksOnTarget_EmptyTarget(t *testing.T) {
	ctx := context.Background()
	e, _ := bootstrapped(t)
	_, err := e.ActivatePerk(ctx, red, "XP_BOOST", "")
	require.NoError(t, err)

	perks, err := e.ActivePerksOnTarget(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, perks)
}

func TestExpirePerks(t *testing.T) {
	ctx := context.Background()
	e, _ := bootstrapped(t)
	_, err := e.ActivatePerk(ctx, red, "INFLUENCE_BOOST", "a")
	require.NoError(t, err)
	_, err = e.ActivatePerk(ctx, blue, "SHIELD", "a")
	require.NoError(t, err)

	expired, err := e.ExpirePerks(ctx, t0.Add(90*time.Minute))
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "INFLUENCE_BOOST", expired[0].Code)

	expired, err = e.ExpirePerks(ctx, t0.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Len(t, expired, 1)
}

func TestSeed_KeepsStoredOwners(t *testing.T) {
	ctx := context.Background()
	store := memory.New(config.MemoryConfig{})

	first, _ := newEngine(t, store)
	require.NoError(t, first.Seed(ctx, testWorld(), catalog.DefaultPerks()))
	_, err := first.Conquer(ctx, "a", blue)
	require.NoError(t, err)

	second, _ := newEngine(t, store)
	require.NoError(t, second.Seed(ctx, testWorld(), catalog.DefaultPerks()))

	p, err := second.Registry().Point("a")
	require.NoError(t, err)
	assert.Equal(t, blue, p.Owner)
	assert.Len(t, second.Progression().Definitions(), 3)
}

func TestTeamStatus(t *testing.T) {
	ctx := context.Background()
	e, _ := bootstrapped(t)

	st, err := e.TeamStatus(ctx, red)
	require.NoError(t, err)
	assert.Equal(t, 5, st.Level)
	assert.Equal(t, int64(500), st.XPToNextLevel)
	assert.ElementsMatch(t, []string{"INFLUENCE_BOOST", "SHIELD", "XP_BOOST"}, st.Unlocked)
	assert.Equal(t, 1.0, st.XPMultiplier)

	_, err = e.ActivatePerk(ctx, red, "XP_BOOST", "")
	require.NoError(t, err)
	st, err = e.TeamStatus(ctx, red)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, st.XPMultiplier, 1e-9)

	_, err = e.TeamStatus(ctx, 42)
	assert.True(t, errors.Is(err, core.ErrNotFound))
}
