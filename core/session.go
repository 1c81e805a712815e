package core

import (
	"sync"
	"time"
)

// Session is the ordered transcript of one agent conversation plus free-form
// metadata. It is safe for concurrent access.
//
// Contract:
//   - Append updates Updated
//   - Messages returns a defensive copy to avoid external mutation
//   - Clone performs deep copies of maps/slices for safe divergence.
type Session struct {
	ID       string            `json:"id"`
	Messages []Message         `json:"messages"`
	Created  time.Time         `json:"created"`
	Updated  time.Time         `json:"updated"`
	Metadata map[string]string `json:"metadata"`
	mu       sync.RWMutex
}

// NewSession creates a new session with the given ID.
func NewSession(id string) *Session {
	now := time.Now()
	return &Session{ID: id, Messages: []Message{}, Created: now, Updated: now, Metadata: map[string]string{}}
}

// Append adds messages to the transcript updating Updated timestamp.
func (s *Session) Append(msgs ...Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Messages = append(s.Messages, msgs...)
	s.Updated = time.Now()
}

// Transcript returns a defensive copy of the message slice.
func (s *Session) Transcript() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.Messages))
	copy(out, s.Messages)
	return out
}

// Len returns the number of messages in the transcript.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.Messages)
}

// Clone returns a deep copy of the session safe for independent mutation.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := &Session{
		ID:       s.ID,
		Messages: make([]Message, len(s.Messages)),
		Created:  s.Created,
		Updated:  s.Updated,
		Metadata: make(map[string]string, len(s.Metadata)),
	}
	copy(clone.Messages, s.Messages)
	for k, v := range s.Metadata {
		clone.Metadata[k] = v
	}
	return clone
}

// SessionStore persists transcripts.
type SessionStore interface {
	// Get returns a snapshot of the session, creating it lazily.
	Get(id string) (*Session, error)
	// Append adds messages to the end of the session transcript.
	Append(id string, msgs ...Message) error
}
