package models

import "time"

// AuthorizationCode stores OAuth 2.0 authorization codes (RFC 6749 §4.1).
// Codes are short-lived and single-use: the first token-endpoint exchange
// marks the code used, and any replay fails.
type AuthorizationCode struct {
	// CodeID is the opaque identifier handed to the client in the
	// redirect. Stores may keep only a hash of it at rest.
	CodeID string

	ClientID    string
	UserID      string
	RedirectURI string
	Scopes      []string

	// PKCE (RFC 7636). Empty CodeChallenge means PKCE was not used.
	CodeChallenge       string
	CodeChallengeMethod string // "S256" or "plain"

	ExpiryDate time.Time
	UsedAt     *time.Time // set exactly once at exchange; closes the replay window
	CreatedAt  time.Time
}

func (a *AuthorizationCode) IsExpired() bool {
	return time.Now().After(a.ExpiryDate)
}

func (a *AuthorizationCode) IsUsed() bool {
	return a.UsedAt != nil
}
