package session

import (
	"sync"

	"github.com/hupe1980/lifemesh/core"
)

// InMemoryStore is a volatile SessionStore implementation storing
// sessions in a process local map. It is safe for concurrent access and best
// suited for tests or single-process servers. Each returned session is a
// clone.
type InMemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*core.Session
}

var _ core.SessionStore = (*InMemoryStore)(nil)

// NewInMemoryStore constructs an empty in‑memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*core.Session)}
}

// Get returns an existing session (clone) or creates a new one lazily.
func (s *InMemoryStore) Get(sessionID string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateLocked(sessionID).Clone(), nil
}

// Append adds messages to an existing or newly created session.
func (s *InMemoryStore) Append(sessionID string, msgs ...core.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreateLocked(sessionID).Append(msgs...)
	return nil
}

// SetMetadata sets one metadata entry.
func (s *InMemoryStore) SetMetadata(sessionID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.getOrCreateLocked(sessionID)
	sess.Metadata[key] = value
	return nil
}

// Delete removes a session. Deleting an unknown session is a no-op.
func (s *InMemoryStore) Delete(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// IDs returns the known session IDs.
func (s *InMemoryStore) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}

// getOrCreateLocked returns the stored session, allocating it first when
// missing. The caller must hold the lock.
func (s *InMemoryStore) getOrCreateLocked(sessionID string) *core.Session {
	if sess, ok := s.sessions[sessionID]; ok {
		return sess
	}
	sess := core.NewSession(sessionID)
	s.sessions[sessionID] = sess
	return sess
}
