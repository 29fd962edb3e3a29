package csrf

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store in process memory, for tests and
// single-instance development.
type MemoryStore struct {
	mu     sync.Mutex
	tokens map[string]time.Time // token -> expiry
}

// NewMemoryStore creates an empty in-memory CSRF token store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]time.Time)}
}

func (s *MemoryStore) SaveToken(ctx context.Context, token string, expiresIn time.Duration) error {
	if token == "" {
		return ErrInvalidToken
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = time.Now().Add(expiresIn)
	return nil
}

func (s *MemoryStore) ConsumeToken(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, ok := s.tokens[token]
	if !ok {
		return ErrInvalidToken
	}
	delete(s.tokens, token)
	if time.Now().After(expiry) {
		return ErrInvalidToken
	}
	return nil
}

func (s *MemoryStore) CheckHealth(ctx context.Context) error { return nil }
