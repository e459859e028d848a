// Package channel wraps Go channels behind small interfaces so the command
// reader can be swapped for an unbuffered one in debug builds.
package channel

// Receiver provides read access to a channel.
type Receiver[T any] interface {
	Receive() <-chan T
	Len() int
}

// Sender provides write access to a channel.
type Sender[T any] interface {
	Send(T)
	// TrySend reports false instead of blocking when nobody can take v.
	TrySend(T) bool
}

// Channel combines read and write access. Close may be called more than once.
type Channel[T any] interface {
	Receiver[T]
	Sender[T]
	Close()
}
