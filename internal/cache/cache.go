// Package cache implements the in-memory mirror of remote collections.
// The cache is authoritative only until the next confirmed write or
// reconciliation fetch; it is a mirror, never the source of truth.
package cache

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Key identifies a cached collection.
type Key string

const (
	// Deals is the collection of deal projections.
	Deals Key = "deals"
	// Stages is the collection of pipeline stages.
	Stages Key = "stages"
)

// Store is a keyed mirror of remote collections. Collections are held
// as value slices; Get and Set copy the slice header and elements so a
// Snapshot taken before a mutation is not aliased by later writes.
type Store[T any] struct {
	mu          sync.Mutex
	collections map[Key][]T
	inflight    map[Key]context.CancelFunc
	freshUntil  map[Key]time.Time
}

// New creates an empty Store.
func New[T any]() *Store[T] {
	return &Store[T]{
		collections: make(map[Key][]T),
		inflight:    make(map[Key]context.CancelFunc),
		freshUntil:  make(map[Key]time.Time),
	}
}

// Get returns the cached collection for key. The second return is
// false when the collection has never been set.
func (s *Store[T]) Get(key Key) ([]T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, ok := s.collections[key]
	if !ok {
		return nil, false
	}
	return slices.Clone(items), true
}

// Set replaces the collection for key.
func (s *Store[T]) Set(key Key, items []T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[key] = slices.Clone(items)
}

// Evict removes the collection for key, e.g. when the owning view
// unmounts or a broader invalidation occurs.
func (s *Store[T]) Evict(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, key)
	delete(s.freshUntil, key)
}

// Snapshot captures the current value of a collection. Restoring the
// snapshot with no intervening Set reproduces the prior value exactly.
type Snapshot[T any] struct {
	key     Key
	items   []T
	present bool
}

// Key returns the collection key the snapshot was taken from.
func (sn Snapshot[T]) Key() Key { return sn.key }

// Snapshot captures the collection under key.
func (s *Store[T]) Snapshot(key Key) Snapshot[T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, ok := s.collections[key]
	return Snapshot[T]{key: key, items: slices.Clone(items), present: ok}
}

// Restore puts the collection back to the snapshotted value. A
// snapshot of a never-set collection restores to absent.
func (s *Store[T]) Restore(sn Snapshot[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !sn.present {
		delete(s.collections, sn.key)
		return
	}
	s.collections[sn.key] = slices.Clone(sn.items)
}

// BeginRefetch registers a background refetch of key and returns a
// context for it. Any refetch already in flight for the same key is
// cancelled first, so two concurrent refetches never race each other.
func (s *Store[T]) BeginRefetch(ctx context.Context, key Key) (context.Context, context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cancel, ok := s.inflight[key]; ok {
		cancel()
	}
	refetchCtx, cancel := context.WithCancel(ctx)
	s.inflight[key] = cancel
	return refetchCtx, cancel
}

// CancelRefetch cancels any in-flight background refetch of key. It is
// called before applying an optimistic patch so a stale refetch cannot
// overwrite the just-applied optimistic value.
func (s *Store[T]) CancelRefetch(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cancel, ok := s.inflight[key]; ok {
		cancel()
		delete(s.inflight, key)
	}
}

// EndRefetch clears the in-flight registration for key if cancel is
// still the registered one.
func (s *Store[T]) EndRefetch(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, key)
}

// MarkFresh records that key was reconciled and stays fresh for the
// given window. Redundant reconciliations inside the window coalesce.
func (s *Store[T]) MarkFresh(key Key, window time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.freshUntil[key] = time.Now().Add(window)
}

// NeedsReconcile reports whether key is outside its staleness window.
func (s *Store[T]) NeedsReconcile(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Now().After(s.freshUntil[key])
}
