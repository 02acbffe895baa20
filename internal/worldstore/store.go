// Package worldstore holds every running narrative world in memory, keyed by
// world ID. The store itself only protects create/get/list/delete; mutation
// of a single world's contents is serialized through that world's own lock,
// held by [Entry.Lock], so that advancing one world never blocks another.
package worldstore

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/MrWong99/playwright-engine/pkg/types"
)

// ErrNotFound is returned by Get and Delete for an unknown world ID.
var ErrNotFound = errors.New("worldstore: world not found")

// Entry pairs a WorldState with the lock that serializes every Advance,
// Initialize, and director operation against it. A running advance, a
// running initialize, and any director call for the same world are mutually
// exclusive; concurrent callers are serialized in arrival order by Go's
// standard mutex FIFO-ish fairness.
type Entry struct {
	mu    sync.Mutex
	World *types.WorldState
}

// Lock acquires the entry's per-world lock. Callers must Unlock when done.
func (e *Entry) Lock() { e.mu.Lock() }

// Unlock releases the entry's per-world lock.
func (e *Entry) Unlock() { e.mu.Unlock() }

// Store is an in-memory, concurrency-safe map of world ID to Entry.
// The zero value is not ready to use; construct with New.
type Store struct {
	mu     sync.RWMutex
	worlds map[string]*Entry
}

// New returns an empty Store.
func New() *Store {
	return &Store{worlds: make(map[string]*Entry)}
}

// Create allocates a fresh world ID, registers world under it, and returns
// the ID. world.ID is set to the allocated ID before registration.
func (s *Store) Create(world *types.WorldState) string {
	id := uuid.NewString()
	world.ID = id

	s.mu.Lock()
	defer s.mu.Unlock()
	s.worlds[id] = &Entry{World: world}
	return id
}

// Get returns the Entry for id, or ErrNotFound.
func (s *Store) Get(id string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.worlds[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

// List returns a snapshot of every world currently in the store. The
// snapshot is shallow: callers must still acquire each world's lock before
// reading mutable fields if a concurrent Advance may be in flight.
func (s *Store) List() []*types.WorldState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.WorldState, 0, len(s.worlds))
	for _, e := range s.worlds {
		out = append(out, e.World)
	}
	return out
}

// Delete removes world id from the store. Per the deletion semantics: if an
// advance is currently running against this world, Delete still returns
// immediately — the running advance completes its current beat against the
// now-detached Entry and then abandons its result, since nothing else holds
// a reference to the Entry once it is unlinked from the map.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.worlds[id]; !ok {
		return ErrNotFound
	}
	delete(s.worlds, id)
	return nil
}
