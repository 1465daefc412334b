package companion_store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu         sync.RWMutex
	companions map[uuid.UUID]Companion
	messages   []Message
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{companions: make(map[uuid.UUID]Companion)}
}

// PutCompanion inserts or replaces a companion, assigning an ID if unset.
func (s *MemoryStore) PutCompanion(c Companion) Companion {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	s.companions[c.ID] = c
	return c
}

func (s *MemoryStore) GetCompanion(_ context.Context, id uuid.UUID) (*Companion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.companions[id]
	if !ok {
		return nil, fmt.Errorf("companion %s: %w", id, ErrNotFound)
	}
	return &c, nil
}

func (s *MemoryStore) CreateMessage(_ context.Context, req CreateMessageRequest) (*Message, error) {
	if !req.Role.Valid() {
		return nil, fmt.Errorf("invalid message role %q", req.Role)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	m := Message{
		ID:          uuid.New(),
		CompanionID: req.CompanionID,
		UserID:      req.UserID,
		Role:        req.Role,
		Content:     req.Content,
		CreatedAt:   time.Now(),
	}
	s.messages = append(s.messages, m)
	return &m, nil
}

func (s *MemoryStore) ListMessages(_ context.Context, companionID uuid.UUID, userID string, limit int) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Message
	for _, m := range s.messages {
		if m.CompanionID == companionID && m.UserID == userID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
