package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/dewonderstruck/vapor-oauth-sub001/internal/metrics"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/models"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/store"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/token"
)

var ErrInvalidResourceServer = errors.New("invalid resource server credentials")

// IntrospectionResponse is the RFC 7662 §2.2 response body. Only "active"
// is present for inactive tokens; everything else is omitted.
type IntrospectionResponse struct {
	Active    bool   `json:"active"`
	Scope     string `json:"scope,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	Username  string `json:"username,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	Exp       int64  `json:"exp,omitempty"`
	Iat       int64  `json:"iat,omitempty"`
	Jti       string `json:"jti,omitempty"`

	// UserID and Sub carry the same value: user_id is the key resource
	// servers integrate against, sub the RFC 7662 §2.2 name.
	UserID string `json:"user_id,omitempty"`
	Sub    string `json:"sub,omitempty"`

	// EmailAddress is a local extension carried for first-party resource
	// servers that render user-facing views.
	EmailAddress string `json:"email_address,omitempty"`
}

// IntrospectionService answers resource-server token state queries
// (RFC 7662). Callers authenticate with resource server credentials, not
// OAuth client credentials.
type IntrospectionService struct {
	tokens          token.Manager
	resourceServers store.ResourceServerRetriever
	metrics         metrics.Recorder
}

func NewIntrospectionService(
	tokens token.Manager,
	resourceServers store.ResourceServerRetriever,
	m metrics.Recorder,
) *IntrospectionService {
	return &IntrospectionService{
		tokens:          tokens,
		resourceServers: resourceServers,
		metrics:         m,
	}
}

// AuthenticateResourceServer checks the Basic credentials of a resource
// server. Stored passwords may be bcrypt hashes or plaintext; both compare
// in constant time.
func (s *IntrospectionService) AuthenticateResourceServer(username, password string) error {
	rs, err := s.resourceServers.GetServer(username)
	if err != nil {
		return ErrInvalidResourceServer
	}
	if strings.HasPrefix(rs.Password, "$2a$") || strings.HasPrefix(rs.Password, "$2b$") {
		if bcrypt.CompareHashAndPassword([]byte(rs.Password), []byte(password)) != nil {
			return ErrInvalidResourceServer
		}
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(rs.Password), []byte(password)) != 1 {
		return ErrInvalidResourceServer
	}
	return nil
}

// IntrospectToken resolves the state of an access token. Unknown, revoked
// and expired tokens all produce {"active": false} with no further claims,
// so introspection never becomes a token oracle.
func (s *IntrospectionService) IntrospectToken(
	ctx context.Context,
	tokenString string,
) *IntrospectionResponse {
	record, err := s.tokens.GetAccessToken(tokenString)
	if err != nil {
		s.metrics.RecordTokenIntrospection(false)
		return &IntrospectionResponse{Active: false}
	}

	s.metrics.RecordTokenIntrospection(true)
	resp := &IntrospectionResponse{
		Active:       true,
		Scope:        record.ScopeString(),
		ClientID:     record.ClientID,
		Username:     record.Username,
		TokenType:    models.TokenTypeBearer,
		UserID:       record.UserID,
		Sub:          record.UserID,
		Jti:          record.ID,
		EmailAddress: record.EmailAddress,
	}
	if record.TokenType != "" {
		resp.TokenType = record.TokenType
	}
	if !record.ExpiresAt.IsZero() {
		resp.Exp = record.ExpiresAt.Unix()
	}
	if !record.CreatedAt.IsZero() {
		resp.Iat = record.CreatedAt.Unix()
	}
	return resp
}
