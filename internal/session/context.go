// Package session holds process-wide facts that every log record carries.
package session

import (
	"log/slog"
	"sync"
	"time"
)

// Context holds the active storage backend and world seed.
type Context struct {
	mu       sync.RWMutex
	ID       string
	Started  time.Time
	Storage  string
	SeedPath string
}

// NewContext creates a new Context with default values
func NewContext(id string, started time.Time) *Context {
	return &Context{
		ID:      id,
		Started: started,
		Storage: "none",
	}
}

// GetStorage returns the storage backend type
func (c *Context) GetStorage() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Storage
}

// SetStorage records the storage backend type once it is initialized
func (c *Context) SetStorage(kind string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Storage = kind
}

// GetSeedPath returns the world seed the session loaded
func (c *Context) GetSeedPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.SeedPath
}

// SetSeedPath records the world seed the session loaded
func (c *Context) SetSeedPath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SeedPath = path
}

// LogAttrs is a logging.ContextProvider.
func (c *Context) LogAttrs() []slog.Attr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	attrs := []slog.Attr{
		slog.String("session", c.ID),
		slog.String("storage", c.Storage),
	}
	if c.SeedPath != "" {
		attrs = append(attrs, slog.String("seed", c.SeedPath))
	}
	return attrs
}
