package memstore

import (
	"context"
	"sync"

	"github.com/andresfernandez89/livestore/internal/domain"
)

// AuthSessionStore is an in-memory domain.AuthSessionStore. Tokens do not
// expire; acceptable for development and tests only.
type AuthSessionStore struct {
	mu       sync.Mutex
	sessions map[string]domain.Identity
}

func NewAuthSessionStore() *AuthSessionStore {
	return &AuthSessionStore{sessions: make(map[string]domain.Identity)}
}

func (s *AuthSessionStore) Put(_ context.Context, token string, identity domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = identity
	return nil
}

func (s *AuthSessionStore) Get(_ context.Context, token string) (domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	identity, ok := s.sessions[token]
	if !ok {
		return domain.Identity{}, domain.ErrSessionNotFound
	}
	return identity, nil
}

func (s *AuthSessionStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}
