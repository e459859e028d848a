package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuffered(t *testing.T) {
	c := NewBuffered[string](2)
	assert.True(t, c.TrySend("a"))
	c.Send("b")
	assert.False(t, c.TrySend("c"))
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 2, c.Cap())

	c.Close()
	c.Close()

	var got []string
	for v := range c.Receive() {
		got = append(got, v)
	}
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestUnbuffered(t *testing.T) {
	c := NewUnbuffered[int]()
	assert.False(t, c.TrySend(1), "no receiver is waiting")
	assert.Zero(t, c.Len())

	done := make(chan int)
	go func() { done <- <-c.Receive() }()
	c.Send(7)
	assert.Equal(t, 7, <-done)

	c.Close()
	c.Close()
	_, ok := <-c.Receive()
	assert.False(t, ok)
}

func TestNew_ZeroSizeIsUnbuffered(t *testing.T) {
	c := New[int](0)
	assert.False(t, c.TrySend(1))
	c.Close()
}
