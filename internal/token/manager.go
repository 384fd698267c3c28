// Package token owns token minting, lookup, scope narrowing and
// revocation. Two TokenManager implementations share the same storage
// contract: opaque (random string, store is the source of truth) and JWT
// (self-contained signed token, store kept for revocation bookkeeping).
package token

import (
	"errors"
	"time"

	"github.com/dewonderstruck/vapor-oauth-sub001/internal/models"
)

var (
	// ErrInvalidToken indicates the token string is unknown or malformed
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken indicates the token is past its expiry
	ErrExpiredToken = errors.New("token expired")

	// ErrRevokedToken indicates the token was revoked
	ErrRevokedToken = errors.New("token revoked")

	// ErrWrongCategory indicates an access token was presented where a
	// refresh token was expected, or the reverse
	ErrWrongCategory = errors.New("wrong token category")

	// ErrTokenGeneration indicates minting failed
	ErrTokenGeneration = errors.New("failed to generate token")
)

// Params carries everything needed to mint a token or token pair.
type Params struct {
	ClientID string
	UserID   string // empty for client_credentials tokens
	Scopes   []string

	// Optional introspection decorations.
	Username     string
	EmailAddress string
}

// Manager is the sole mutation point for tokens.
type Manager interface {
	// GenerateAccessToken mints a bare access token (client_credentials,
	// implicit).
	GenerateAccessToken(params Params) (*models.AccessToken, error)

	// GenerateRefreshToken mints a bare refresh token (rotation).
	GenerateRefreshToken(params Params) (*models.AccessToken, error)

	// GenerateTokenPair mints an access token and its refresh token.
	GenerateTokenPair(params Params) (access, refresh *models.AccessToken, err error)

	// GetAccessToken resolves an access-token string to its active record.
	GetAccessToken(tokenString string) (*models.AccessToken, error)

	// GetRefreshToken resolves a refresh-token string to its active record.
	GetRefreshToken(tokenString string) (*models.AccessToken, error)

	// UpdateRefreshTokenScopes narrows the scopes stored on a refresh
	// token. Callers enforce that scopes never widen.
	UpdateRefreshTokenScopes(tokenString string, scopes []string) error

	// RevokeToken revokes any token by its string. Unknown tokens are an
	// error the caller may choose to swallow (RFC 7009).
	RevokeToken(tokenString string) error

	// AccessTokenLifetime is the advertised expires_in for minted tokens.
	AccessTokenLifetime() time.Duration
}

// checkTokenState validates the common record state shared by both
// implementations.
func checkTokenState(t *models.AccessToken, wantCategory string) error {
	if t.TokenCategory != wantCategory {
		return ErrWrongCategory
	}
	if !t.IsActive() {
		return ErrRevokedToken
	}
	if t.IsExpired() {
		return ErrExpiredToken
	}
	return nil
}
