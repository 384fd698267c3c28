package models

import (
	"strings"
	"time"
)

// Token categories.
const (
	TokenCategoryAccess  = "access"
	TokenCategoryRefresh = "refresh"
)

// Token types on the wire.
const (
	TokenTypeBearer = "Bearer"
	TokenTypeDPoP   = "DPoP"
)

// Token statuses.
const (
	TokenStatusActive  = "active"
	TokenStatusRevoked = "revoked"
)

// AccessToken is a stored access or refresh token record. The same shape
// backs both opaque tokens (the record is the source of truth) and JWT
// tokens (the record exists for revocation bookkeeping).
type AccessToken struct {
	ID            string // internal record ID
	TokenString   string // the credential presented by clients
	TokenType     string // "Bearer" (or "DPoP" after extension rewrite)
	TokenCategory string // access | refresh
	Status        string // active | revoked

	ClientID string
	UserID   string // empty for client_credentials tokens
	Scopes   []string

	// Username and EmailAddress are optional introspection decorations,
	// carried when the deployment supplies them at mint time.
	Username     string
	EmailAddress string

	// ExpiresAt is required for access tokens. A zero value on a refresh
	// token means the token does not expire.
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (t *AccessToken) IsExpired() bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(t.ExpiresAt)
}

func (t *AccessToken) IsActive() bool {
	return t.Status == TokenStatusActive
}

func (t *AccessToken) IsAccessToken() bool {
	return t.TokenCategory == TokenCategoryAccess
}

func (t *AccessToken) IsRefreshToken() bool {
	return t.TokenCategory == TokenCategoryRefresh
}

// ScopeString renders the scope list as the space-separated wire form.
func (t *AccessToken) ScopeString() string {
	return strings.Join(t.Scopes, " ")
}
