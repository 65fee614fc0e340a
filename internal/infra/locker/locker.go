// Package locker provides per-key mutual exclusion. The ledger uses it
// to serialize the read-check-mutate sequence per account identifier
// while letting operations on different accounts proceed independently.
package locker

import "sync"

// Keyed hands out one mutex per key, created lazily and retained for
// the life of the process. Account populations are bounded, so retained
// mutexes are not reclaimed.
type Keyed struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates an empty keyed locker.
func New() *Keyed {
	return &Keyed{locks: make(map[string]*sync.Mutex)}
}

func (k *Keyed) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()

	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	return m
}

// Lock acquires the mutex for key, blocking until it is available.
func (k *Keyed) Lock(key string) {
	k.get(key).Lock()
}

// Unlock releases the mutex for key.
func (k *Keyed) Unlock(key string) {
	k.get(key).Unlock()
}

// Do runs fn while holding the mutex for key.
func (k *Keyed) Do(key string, fn func() error) error {
	m := k.get(key)
	m.Lock()
	defer m.Unlock()
	return fn()
}
