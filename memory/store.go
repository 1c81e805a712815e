package memory

import (
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"
)

// SearchResult is a stored memory matching a query.
type SearchResult struct {
	ID       string
	Content  string
	Score    float64
	Metadata map[string]any
}

type storedMemory struct {
	id       string
	seq      int
	content  string
	metadata map[string]any
}

// Store is a naive process-local memory store. It offers:
//  1. Namespaced key/value memory (Get / Put)
//  2. Append-only stored memories with term Search
//
// Concurrency: protected by RWMutex.
// Search: linear scan, case-insensitive. The score is the fraction of query
// terms found in the content. Suitable for tests and demos; swap for a
// semantic index for production retrieval.
type Store struct {
	mu      sync.RWMutex
	values  map[string]map[string]any          // namespace -> key -> value
	storage map[string]map[string]storedMemory // namespace -> memoryID -> stored memory
	nextID  int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		values:  make(map[string]map[string]any),
		storage: make(map[string]map[string]storedMemory),
	}
}

// Get returns a shallow copy of the key/value memory of the namespace.
func (m *Store) Get(namespace string) (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := maps.Clone(m.values[namespace])
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// Put merges delta into the namespace's key/value memory.
func (m *Store) Put(namespace string, delta map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.values[namespace]; !exists {
		m.values[namespace] = make(map[string]any)
	}
	maps.Copy(m.values[namespace], delta)
	return nil
}

// Store appends a memory and returns its id.
func (m *Store) Store(namespace, content string, metadata map[string]any) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.storage[namespace]; !exists {
		m.storage[namespace] = make(map[string]storedMemory)
	}
	m.nextID++
	id := fmt.Sprintf("mem_%d", m.nextID)
	m.storage[namespace][id] = storedMemory{id: id, seq: m.nextID, content: content, metadata: maps.Clone(metadata)}
	return id, nil
}

// Search returns up to limit memories containing at least one query term,
// best matches first and older memories first among equal scores. An empty
// query matches everything.
func (m *Store) Search(namespace, query string, limit int) ([]SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	terms := strings.Fields(strings.ToLower(query))

	type hit struct {
		mem   storedMemory
		score float64
	}
	var hits []hit
	for _, stored := range m.storage[namespace] {
		if len(terms) == 0 {
			hits = append(hits, hit{stored, 1})
			continue
		}
		lc := strings.ToLower(stored.content)
		n := 0
		for _, t := range terms {
			if strings.Contains(lc, t) {
				n++
			}
		}
		if n > 0 {
			hits = append(hits, hit{stored, float64(n) / float64(len(terms))})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].mem.seq < hits[j].mem.seq
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}

	results := make([]SearchResult, len(hits))
	for i, h := range hits {
		results[i] = SearchResult{ID: h.mem.id, Content: h.mem.content, Score: h.score, Metadata: maps.Clone(h.mem.metadata)}
	}
	return results, nil
}

// Delete removes a stored memory.
func (m *Store) Delete(namespace, memoryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.storage[namespace][memoryID]; !exists {
		return fmt.Errorf("memory %q not found", memoryID)
	}
	delete(m.storage[namespace], memoryID)
	return nil
}
