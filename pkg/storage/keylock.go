package storage

import "sync"

// KeyLock serializes read-modify-write cycles on individual document paths.
// Storage itself only guarantees atomic single writes; repositories that
// implement compare-and-swap updates hold the path's lock across the
// read-compare-write sequence.
type KeyLock struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewKeyLock() *KeyLock {
	return &KeyLock{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the lock for key and returns the unlock function.
func (l *KeyLock) Lock(key string) func() {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
