package conversation

import (
	"context"
	"sync"

	"ragchat/internal/models"
)

// MemoryStore keeps conversations in process memory. Contents are lost on restart.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string][]models.Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{conversations: make(map[string][]models.Message)}
}

func (s *MemoryStore) Create(_ context.Context, seed ...models.Message) (string, error) {
	id := NewID()
	msgs := make([]models.Message, len(seed))
	copy(msgs, seed)

	s.mu.Lock()
	s.conversations[id] = msgs
	s.mu.Unlock()
	return id, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs, ok := s.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *MemoryStore) Append(_ context.Context, id string, msg models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs, ok := s.conversations[id]
	if !ok {
		return ErrNotFound
	}
	s.conversations[id] = append(msgs, msg)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[id]; !ok {
		return ErrNotFound
	}
	delete(s.conversations, id)
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.conversations))
	for id := range s.conversations {
		ids = append(ids, id)
	}
	return ids, nil
}
