// internal/store/memory.go
//
// In-memory implementation of the Store interface.
// Used for ephemeral HTTP sessions, in development/testing, or whenever
// durability is not required.
//
// Characteristics:
//   - Stores *game.Controller values keyed by round ID in a map.
//   - Concurrency-safe via a mutex (Get records the access time, so it writes too).
//   - With WithIdleTTL, rounds untouched for the TTL are closed and dropped.
//   - State is lost when the process restarts.

package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robalobadob/guesser/internal/game"
)

// ErrNotFound is returned when no round exists for an ID.
var ErrNotFound = errors.New("round not found")

// Store defines the persistence interface for round sessions.
type Store interface {
	// Save registers or updates a controller under its ID.
	Save(ctx context.Context, c *game.Controller) error

	// Get retrieves a controller by ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*game.Controller, error)

	// Delete closes the controller and forgets it. Missing IDs are not an error.
	Delete(ctx context.Context, id string) error
}

type memEntry struct {
	c       *game.Controller
	touched time.Time
}

// memory is an in-memory map-based Store implementation.
type memory struct {
	settings

	mu        sync.Mutex           // guards rounds and lastSweep
	rounds    map[string]*memEntry // keyed by Controller.ID()
	lastSweep time.Time
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore(opts ...Option) Store {
	return &memory{settings: newSettings(opts), rounds: make(map[string]*memEntry)}
}

// Save adds or replaces the controller in the map.
func (m *memory) Save(ctx context.Context, c *game.Controller) error {
	id := c.ID()
	now := m.now()

	m.mu.Lock()
	evicted := m.sweepLocked(now)
	if prev, ok := m.rounds[id]; ok && prev.c != c {
		evicted = append(evicted, prev.c)
	}
	m.rounds[id] = &memEntry{c: c, touched: now}
	m.mu.Unlock()

	closeAll(evicted)
	return nil
}

// Get looks up a controller by ID. An idle-expired round counts as missing.
func (m *memory) Get(ctx context.Context, id string) (*game.Controller, error) {
	now := m.now()

	m.mu.Lock()
	e, ok := m.rounds[id]
	if ok && m.expired(e.touched, now) {
		delete(m.rounds, id)
		m.mu.Unlock()
		e.c.Close()
		return nil, ErrNotFound
	}
	if ok {
		e.touched = now
	}
	m.mu.Unlock()

	if !ok {
		return nil, ErrNotFound
	}
	return e.c, nil
}

func (m *memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	e, ok := m.rounds[id]
	delete(m.rounds, id)
	m.mu.Unlock()
	if ok {
		e.c.Close()
	}
	return nil
}

// sweepLocked removes idle rounds and returns their controllers for the
// caller to close once mu is released.
func (m *memory) sweepLocked(now time.Time) []*game.Controller {
	if !m.dueForSweep(m.lastSweep, now) {
		return nil
	}
	m.lastSweep = now
	var out []*game.Controller
	for id, e := range m.rounds {
		if m.expired(e.touched, now) {
			delete(m.rounds, id)
			out = append(out, e.c)
		}
	}
	return out
}

func closeAll(cs []*game.Controller) {
	for _, c := range cs {
		c.Close()
	}
}
