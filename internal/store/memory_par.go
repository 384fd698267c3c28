package store

import (
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/dewonderstruck/vapor-oauth-sub001/internal/models"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/util"

	"github.com/google/uuid"
)

// RequestURIPrefix is the URN prefix for pushed authorization request
// references (RFC 9126 §2.2).
const RequestURIPrefix = "urn:ietf:params:oauth:request_uri:"

// InMemoryPARStore is the reference PushedAuthorizationRequestManager.
type InMemoryPARStore struct {
	mu       sync.Mutex
	requests map[string]*models.PushedAuthorizationRequest // key: request_uri
}

var _ PushedAuthorizationRequestManager = (*InMemoryPARStore)(nil)

func NewInMemoryPARStore() *InMemoryPARStore {
	return &InMemoryPARStore{requests: make(map[string]*models.PushedAuthorizationRequest)}
}

func (s *InMemoryPARStore) StoreRequest(
	clientID string,
	parameters url.Values,
	lifetime time.Duration,
) (*models.PushedAuthorizationRequest, error) {
	// 32 random bytes = 256-bit reference
	ref, err := util.CryptoRandomURLString(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate request_uri: %w", err)
	}

	copied := make(url.Values, len(parameters))
	for k, v := range parameters {
		copied[k] = append([]string(nil), v...)
	}

	request := &models.PushedAuthorizationRequest{
		ID:         uuid.New().String(),
		ClientID:   clientID,
		RequestURI: RequestURIPrefix + ref,
		Parameters: copied,
		ExpiresAt:  time.Now().Add(lifetime),
		CreatedAt:  time.Now(),
	}

	s.mu.Lock()
	s.requests[request.RequestURI] = request
	s.mu.Unlock()

	result := *request
	return &result, nil
}

func (s *InMemoryPARStore) GetRequest(requestURI string) (*models.PushedAuthorizationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	request, ok := s.requests[requestURI]
	if !ok {
		return nil, ErrRequestURINotFound
	}
	copied := *request
	return &copied, nil
}

// ConsumeRequest atomically marks the request used; a second consume of
// the same request_uri observes ErrRequestURIAlreadyUsed.
func (s *InMemoryPARStore) ConsumeRequest(requestURI string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	request, ok := s.requests[requestURI]
	if !ok {
		return ErrRequestURINotFound
	}
	if request.IsUsed {
		return ErrRequestURIAlreadyUsed
	}
	request.IsUsed = true
	return nil
}
