package models

import (
	"net/url"
	"time"
)

// PushedAuthorizationRequest stores one pushed authorization request
// (RFC 9126). Single-use and client-bound, with a short expiry.
type PushedAuthorizationRequest struct {
	ID         string
	ClientID   string
	RequestURI string // urn:ietf:params:oauth:request_uri:<base64url>

	// Parameters is the full authorization-request parameter set the
	// client pushed; the authorization endpoint substitutes these when it
	// sees request_uri.
	Parameters url.Values

	ExpiresAt time.Time
	IsUsed    bool
	CreatedAt time.Time
}

func (p *PushedAuthorizationRequest) IsExpired() bool {
	return time.Now().After(p.ExpiresAt)
}
