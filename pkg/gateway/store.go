// In-memory message store
package gateway

import (
	"context"
	"sync"
)

// MemoryStore is the default MessageStore: per-session ordered history with
// identity-based deduplication. Suitable for tests and single-process
// development runs; use the sqlite store for durability.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*memorySession
}

type memorySession struct {
	order []Message
	seen  map[string]struct{}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*memorySession)}
}

// SaveMessages stores the given turns, skipping message IDs the session has
// already seen. Messages without an ID are assigned one on their stored copy.
func (s *MemoryStore) SaveMessages(_ context.Context, sessionID string, messages []Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.sessions[sessionID]
	if sess == nil {
		sess = &memorySession{seen: make(map[string]struct{})}
		s.sessions[sessionID] = sess
	}

	for _, m := range messages {
		stored := m.Clone()
		stored.EnsureID()
		if _, dup := sess.seen[stored.ID]; dup {
			continue
		}
		sess.seen[stored.ID] = struct{}{}
		sess.order = append(sess.order, stored)
	}
	return nil
}

// Messages returns the session's stored turns in first-persisted order.
func (s *MemoryStore) Messages(_ context.Context, sessionID string) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess := s.sessions[sessionID]
	if sess == nil {
		return nil, nil
	}
	return CloneMessages(sess.order), nil
}

// Count returns how many distinct messages the session has stored.
func (s *MemoryStore) Count(sessionID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess := s.sessions[sessionID]
	if sess == nil {
		return 0
	}
	return len(sess.order)
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

var _ MessageStore = (*MemoryStore)(nil)
