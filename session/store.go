package session

import "sync"

// Store abstracts where conversation state lives. The in-memory store below
// is the only implementation today; the interface exists so a shared store
// can be swapped in for multi-instance deployments without touching the
// trigger logic.
type Store interface {
	Get(key string) (State, bool)
	Put(key string, st State)
	Delete(key string)
}

type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]State)}
}

func (s *MemoryStore) Get(key string) (State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[key]
	return st, ok
}

func (s *MemoryStore) Put(key string, st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[key] = st
}

func (s *MemoryStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, key)
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}
