// Package influence computes the score bonus a team gets when it wins on a point.
package influence

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/sportsin/territory/pkg/core"
)

// Modifier contributes to the influence of a team on a point. Modifiers run in
// ascending Order; acc is whatever earlier modifiers left.
type Modifier interface {
	Name() string
	Order() int
	Apply(ctx context.Context, team core.TeamID, point core.PointID, acc float64) float64
}

// Pipeline runs its modifiers in order, starting from zero.
type Pipeline struct {
	mu        sync.RWMutex
	modifiers []Modifier
	logger    *slog.Logger
}

// NewPipeline creates a Pipeline. Modifiers with equal Order keep the order given.
func NewPipeline(logger *slog.Logger, modifiers ...Modifier) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{logger: logger}
	for _, m := range modifiers {
		p.Add(m)
	}
	return p
}

// Add registers m after every modifier of lower or equal Order.
func (p *Pipeline) Add(m Modifier) {
	p.mu.Lock()
	defer p.mu.Unlock()
	// copy so a running Compute keeps its own view
	mods := append(slices.Clone(p.modifiers), m)
	slices.SortStableFunc(mods, func(a, b Modifier) int {
		return a.Order() - b.Order()
	})
	p.modifiers = mods
}

// Names returns the modifier names in execution order.
func (p *Pipeline) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, len(p.modifiers))
	for i, m := range p.modifiers {
		out[i] = m.Name()
	}
	return out
}

// Compute folds every modifier over an accumulator that starts at 0.
func (p *Pipeline) Compute(ctx context.Context, team core.TeamID, point core.PointID) float64 {
	p.mu.RLock()
	mods := p.modifiers
	p.mu.RUnlock()

	acc := 0.0
	for _, m := range mods {
		next := m.Apply(ctx, team, point, acc)
		if next != acc {
			p.logger.Debug("Influence modified",
				"modifier", m.Name(),
				"team", team,
				"point", point,
				"before", acc,
				"after", next)
		}
		acc = next
	}
	return acc
}
