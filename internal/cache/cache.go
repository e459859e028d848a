package cache

import (
	"sort"
	"strings"
	"sync"

	"github.com/sportsin/territory/pkg/core"
)

// PerkCache holds the perk catalog after it is loaded so activations and influence
// queries avoid store reads. Codes are matched case-insensitively.
type PerkCache struct {
	mu     sync.RWMutex
	byCode map[string]core.PerkDefinition
	byID   map[int64]core.PerkDefinition
}

func NewPerkCache() *PerkCache {
	return &PerkCache{
		byCode: make(map[string]core.PerkDefinition),
		byID:   make(map[int64]core.PerkDefinition),
	}
}

// Replace swaps the cached catalog for defs.
func (c *PerkCache) Replace(defs []core.PerkDefinition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byCode = make(map[string]core.PerkDefinition, len(defs))
	c.byID = make(map[int64]core.PerkDefinition, len(defs))
	for _, d := range defs {
		c.byCode[strings.ToUpper(d.Code)] = d
		c.byID[d.ID] = d
	}
}

func (c *PerkCache) Reset() {
	c.Replace(nil)
}

// Get retrieves a definition by code
func (c *PerkCache) Get(code string) (core.PerkDefinition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.byCode[strings.ToUpper(code)]
	return d, ok
}

// GetByID retrieves a definition by id
func (c *PerkCache) GetByID(id int64) (core.PerkDefinition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.byID[id]
	return d, ok
}

// All returns the cached definitions ordered by id
func (c *PerkCache) All() []core.PerkDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]core.PerkDefinition, 0, len(c.byID))
	for _, d := range c.byID {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (c *PerkCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID)
}
