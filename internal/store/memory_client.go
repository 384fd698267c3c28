package store

import (
	"sync"
	"time"

	"github.com/dewonderstruck/vapor-oauth-sub001/internal/models"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/validator"
)

// InMemoryClientStore is the reference ClientRetriever. Registration is
// where configuration-time validation happens: overly broad origin
// wildcard patterns are rejected before a client can ever be served.
type InMemoryClientStore struct {
	mu      sync.Mutex
	clients map[string]*models.OAuthClient
}

var _ ClientRetriever = (*InMemoryClientStore)(nil)

func NewInMemoryClientStore() *InMemoryClientStore {
	return &InMemoryClientStore{clients: make(map[string]*models.OAuthClient)}
}

// RegisterClient validates and stores a client. Returns an error when any
// authorized-origin pattern is overly broad (e.g. "*.com").
func (s *InMemoryClientStore) RegisterClient(client *models.OAuthClient) error {
	if err := validator.ValidateOriginPatterns(client.AuthorizedOrigins); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	stored := *client
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	s.clients[client.ClientID] = &stored
	return nil
}

func (s *InMemoryClientStore) GetClient(clientID string) (*models.OAuthClient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	client, ok := s.clients[clientID]
	if !ok {
		return nil, ErrClientNotFound
	}
	copied := *client
	return &copied, nil
}
