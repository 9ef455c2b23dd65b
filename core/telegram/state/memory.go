package state

import (
	"sync"
	"time"
)

type entry[T any] struct {
	mu      sync.Mutex
	session Session[T]
	gone    bool
}

// Manager is an in-memory session store keyed by platform user id.
// Operations on different users never block each other; operations on the
// same user are applied one at a time.
type Manager[T any] struct {
	mu       sync.Mutex
	sessions map[int64]*entry[T]
	ttl      time.Duration
	now      func() time.Time
}

// NewManager constructs an empty Manager.
func NewManager[T any](opts Options) *Manager[T] {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Manager[T]{
		sessions: make(map[int64]*entry[T]),
		ttl:      opts.TTL,
		now:      now,
	}
}

// Put starts or replaces the session for userID.
func (m *Manager[T]) Put(userID int64, st State, data T) {
	e := &entry[T]{session: Session[T]{State: st, Data: data, UpdatedAt: m.now()}}
	m.mu.Lock()
	old := m.sessions[userID]
	m.sessions[userID] = e
	m.mu.Unlock()
	if old != nil {
		old.mu.Lock()
		old.gone = true
		old.mu.Unlock()
	}
}

// With runs fn against the live session for userID while holding that
// user's lock. Changes made through the pointer are kept. It returns
// ErrNoSession when the session is absent or expired.
func (m *Manager[T]) With(userID int64, fn func(*Session[T]) error) error {
	e := m.lookup(userID)
	if e == nil {
		return ErrNoSession
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gone || m.expired(e.session) {
		m.drop(userID, e)
		return ErrNoSession
	}
	if err := fn(&e.session); err != nil {
		return err
	}
	e.session.UpdatedAt = m.now()
	return nil
}

// Take removes the session for userID and returns it.
func (m *Manager[T]) Take(userID int64) (Session[T], bool) {
	m.mu.Lock()
	e := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()
	if e == nil {
		return Session[T]{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gone || m.expired(e.session) {
		e.gone = true
		return Session[T]{}, false
	}
	e.gone = true
	return e.session, true
}

// Clear discards the session for userID.
func (m *Manager[T]) Clear(userID int64) {
	m.Take(userID)
}

// Sweep evicts expired sessions and reports how many were removed.
func (m *Manager[T]) Sweep() int {
	if m.ttl <= 0 {
		return 0
	}
	m.mu.Lock()
	candidates := make(map[int64]*entry[T], len(m.sessions))
	for id, e := range m.sessions {
		candidates[id] = e
	}
	m.mu.Unlock()

	evicted := 0
	for id, e := range candidates {
		e.mu.Lock()
		if !e.gone && m.expired(e.session) {
			e.gone = true
			m.drop(id, e)
			evicted++
		}
		e.mu.Unlock()
	}
	return evicted
}

// Len returns the number of stored sessions, including expired ones not yet swept.
func (m *Manager[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager[T]) lookup(userID int64) *entry[T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[userID]
}

// drop removes e from the map only if it is still the current entry.
func (m *Manager[T]) drop(userID int64, e *entry[T]) {
	e.gone = true
	m.mu.Lock()
	if m.sessions[userID] == e {
		delete(m.sessions, userID)
	}
	m.mu.Unlock()
}

func (m *Manager[T]) expired(s Session[T]) bool {
	return m.ttl > 0 && m.now().Sub(s.UpdatedAt) > m.ttl
}
