package progression

import (
	"sync"

	"github.com/sportsin/territory/pkg/core"
)

type perkKey struct {
	team         core.TeamID
	definitionID int64
}

type refLock struct {
	sync.Mutex
	refs int
}

// keyLocks hands out one mutex per (team, definition) pair and forgets it once
// nobody holds or waits for it.
type keyLocks struct {
	mu    sync.Mutex
	locks map[perkKey]*refLock
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[perkKey]*refLock)}
}

// lock blocks until the key is free and returns its unlock function.
func (k *keyLocks) lock(key perkKey) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyLocks) len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
