//go:build !debug

package channel

// New creates a channel for size pending values. Release builds buffer them.
func New[T any](size int) Channel[T] {
	if size <= 0 {
		return NewUnbuffered[T]()
	}
	return NewBuffered[T](size)
}
