package state

import "sync"

type memoryStore[T any] struct {
	mu       sync.RWMutex
	sessions map[int64]Session[T]
}

// NewMemoryStore constructs an unbounded in-memory Store for tests and development.
func NewMemoryStore[T any]() Store[T] {
	return &memoryStore[T]{sessions: make(map[int64]Session[T])}
}

func (m *memoryStore[T]) Get(userID int64) (Session[T], bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[userID]
	return s, ok
}

func (m *memoryStore[T]) Put(userID int64, s Session[T]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[userID] = s
}

func (m *memoryStore[T]) Delete(userID int64) (Session[T], bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if ok {
		delete(m.sessions, userID)
	}
	return s, ok
}

func (m *memoryStore[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
