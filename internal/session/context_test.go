package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestContext_Defaults(t *testing.T) {
	ctx := NewContext("s1", time.Unix(0, 0))
	assert.Equal(t, "none", ctx.GetStorage())
	assert.Empty(t, ctx.GetSeedPath())

	attrs := ctx.LogAttrs()
	assert.Len(t, attrs, 2)
	assert.Equal(t, "s1", attrs[0].Value.String())
}

func TestContext_ThreadSafe(t *testing.T) {
	ctx := NewContext("s1", time.Now())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			ctx.SetStorage("sqlite")
			ctx.SetSeedPath("world.yaml")
		}()
		go func() {
			defer wg.Done()
			_ = ctx.LogAttrs()
		}()
	}
	wg.Wait()

	assert.Equal(t, "sqlite", ctx.GetStorage())
	attrs := ctx.LogAttrs()
	assert.Len(t, attrs, 3)
	assert.Equal(t, "world.yaml", attrs[2].Value.String())
}
