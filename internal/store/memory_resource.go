package store

import (
	"sync"

	"github.com/dewonderstruck/vapor-oauth-sub001/internal/models"
)

// InMemoryResourceServerStore is the reference ResourceServerRetriever.
type InMemoryResourceServerStore struct {
	mu      sync.Mutex
	servers map[string]*models.ResourceServer
}

var _ ResourceServerRetriever = (*InMemoryResourceServerStore)(nil)

func NewInMemoryResourceServerStore() *InMemoryResourceServerStore {
	return &InMemoryResourceServerStore{servers: make(map[string]*models.ResourceServer)}
}

func (s *InMemoryResourceServerStore) AddServer(server *models.ResourceServer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *server
	s.servers[server.Username] = &copied
}

func (s *InMemoryResourceServerStore) GetServer(username string) (*models.ResourceServer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	server, ok := s.servers[username]
	if !ok {
		return nil, ErrResourceServerNotFound
	}
	copied := *server
	return &copied, nil
}
