package services

import "sync"

// keyedMutex serializes critical sections per string key. Ingestion locks
// the content family around its read-capacity/decide/write cycle and the
// target segment around each insert+allocation; the regenerator holds the
// same segment lock from reading the live entries through FinishGeneration,
// so a rebuild never writes back a stale count over a concurrent insert.
// Lock order is always family before segment.
//
// Mutexes are never removed: the key space (families plus segment names) is
// small and bounded by the never-deleted segment inventory.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key and returns its unlock function.
func (k *keyedMutex) Lock(key string) func() {
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

// Locks groups the shared lock tables handed to the services that must
// coordinate: the ingestion path and the regenerator.
type Locks struct {
	Families *keyedMutex
	Segments *keyedMutex
}

// NewLocks builds an empty lock table set.
func NewLocks() *Locks {
	return &Locks{Families: newKeyedMutex(), Segments: newKeyedMutex()}
}
