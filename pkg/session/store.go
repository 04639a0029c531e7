package session

import "sync"

// Store is the owned registry of live sessions, keyed by session id. It is
// passed by reference to the components that need it rather than living as
// process-wide ambient state, so teardown and tests stay clean.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore creates an empty session registry.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Create registers a new session for id and returns it. An existing session
// with the same id is replaced (the init message resets session state).
// Creation fails closed: an empty id returns nil without registering.
func (s *Store) Create(id string) *Session {
	if id == "" {
		return nil
	}
	sess := newSession(id)
	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()
	return sess
}

// Get returns the session for id, or nil when absent.
func (s *Store) Get(id string) *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id]
}

// Delete closes and removes the session for id. Deleting an absent id is a
// no-op. Callers must also purge the session's synthesis queue so no pending
// worker writes to a freed connection.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	sess := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if sess != nil {
		sess.Close()
	}
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
