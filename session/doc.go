// Package session houses concrete implementations of core.SessionStore, the
// transcript persistence used by agent loops. The interface lives in core so
// that loops never depend on a concrete backend; the wiring layer picks one.
//
// InMemoryStore keeps transcripts in process memory. Package session/redis
// keeps them in Redis lists.
package session
