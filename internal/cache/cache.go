// Package cache holds the latest snapshot per service kind.
package cache

import (
	"sync"
	"time"

	"github.com/vmunix/arrdash/internal/backend"
)

// Entry is what the cache knows about one kind.
type Entry struct {
	Current   backend.Snapshot
	LastGood  *backend.Snapshot // latest reachable snapshot, nil if none yet
	FirstSeen time.Time         // FetchedAt of the first snapshot stored
}

// Cache is safe for concurrent use. Snapshots are stored by value and
// replaced, never mutated, so readers never observe a partial update.
type Cache struct {
	mu      sync.RWMutex
	entries map[backend.Kind]Entry
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[backend.Kind]Entry)}
}

// Get returns the current snapshot for kind.
func (c *Cache) Get(kind backend.Kind) (backend.Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[kind]
	return e.Current, ok
}

// Entry returns the full entry for kind.
func (c *Cache) Entry(kind backend.Kind) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[kind]
	return e, ok
}

// Put stores snap as the current snapshot for kind. A snapshot older than
// the one held is dropped and Put reports false.
func (c *Cache) Put(kind backend.Kind, snap backend.Snapshot) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[kind]
	if ok && snap.FetchedAt.Before(e.Current.FetchedAt) {
		return false
	}
	if !ok {
		e.FirstSeen = snap.FetchedAt
	}
	e.Current = snap
	if snap.Reachable {
		good := snap
		e.LastGood = &good
	}
	c.entries[kind] = e
	return true
}

// Delete drops everything known about kind.
func (c *Cache) Delete(kind backend.Kind) {
	c.mu.Lock()
	delete(c.entries, kind)
	c.mu.Unlock()
}

// All returns a copy of every entry.
func (c *Cache) All() map[backend.Kind]Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[backend.Kind]Entry, len(c.entries))
	for k, e := range c.entries {
		out[k] = e
	}
	return out
}
