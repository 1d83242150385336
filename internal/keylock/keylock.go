// Package keylock provides a mutex keyed by string. The commitment engine
// serializes every state-changing operation for a bill through one of these
// locks; operations on different bills proceed in parallel since bills share
// no mutable state.
package keylock

import "sync"

// KeyedMutex hands out one mutex per key, created on first use. Mutexes are
// never discarded; the key space (bill ids) is bounded by registrations.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates an empty KeyedMutex.
func New() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key, creating it if needed, and returns the
// matching unlock function.
func (k *KeyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
