package store

import (
	"sync"

	"github.com/dewonderstruck/vapor-oauth-sub001/internal/models"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/util"
)

// InMemoryTokenStore is the reference TokenStore, keyed by SHA-256 of the
// token string.
type InMemoryTokenStore struct {
	mu     sync.Mutex
	tokens map[string]*models.AccessToken
}

var _ TokenStore = (*InMemoryTokenStore)(nil)

func NewInMemoryTokenStore() *InMemoryTokenStore {
	return &InMemoryTokenStore{tokens: make(map[string]*models.AccessToken)}
}

func (s *InMemoryTokenStore) SaveToken(token *models.AccessToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *token
	s.tokens[util.SHA256Hex(token.TokenString)] = &copied
	return nil
}

func (s *InMemoryTokenStore) GetToken(tokenString string) (*models.AccessToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens[util.SHA256Hex(tokenString)]
	if !ok {
		return nil, ErrTokenNotFound
	}
	copied := *token
	return &copied, nil
}

func (s *InMemoryTokenStore) RevokeToken(tokenString string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens[util.SHA256Hex(tokenString)]
	if !ok {
		return ErrTokenNotFound
	}
	token.Status = models.TokenStatusRevoked
	return nil
}

func (s *InMemoryTokenStore) UpdateTokenScopes(tokenString string, scopes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens[util.SHA256Hex(tokenString)]
	if !ok {
		return ErrTokenNotFound
	}
	token.Scopes = append([]string(nil), scopes...)
	return nil
}
