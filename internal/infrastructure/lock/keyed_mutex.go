package lock

import "sync"

// KeyedMutex provides per-key mutual exclusion. Operations on different keys
// never block one another; operations on the same key serialize. Entries are
// reference-counted and removed when the last holder releases, so the map
// does not grow with the number of keys ever seen.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

// NewKeyedMutex creates a new KeyedMutex
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{
		entries: make(map[string]*keyedEntry),
	}
}

// Lock acquires the mutex for the given key, blocking until it is available
func (k *KeyedMutex) Lock(key string) {
	k.mu.Lock()
	entry, ok := k.entries[key]
	if !ok {
		entry = &keyedEntry{}
		k.entries[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
}

// Unlock releases the mutex for the given key
func (k *KeyedMutex) Unlock(key string) {
	k.mu.Lock()
	entry, ok := k.entries[key]
	if !ok {
		k.mu.Unlock()
		panic("lock: unlock of unheld key " + key)
	}
	entry.refs--
	if entry.refs == 0 {
		delete(k.entries, key)
	}
	k.mu.Unlock()

	entry.mu.Unlock()
}

// Len returns the number of keys currently held or contended (for monitoring)
func (k *KeyedMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}
