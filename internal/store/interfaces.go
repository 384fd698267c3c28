// Package store defines the storage contracts the engine consumes and
// provides mutex-guarded in-memory reference implementations. The engine
// never persists entities directly: it creates, reads, marks-used and
// deletes exclusively through these interfaces, so production deployments
// can substitute transactional datastores without touching flow logic.
package store

import (
	"net/url"
	"time"

	"github.com/dewonderstruck/vapor-oauth-sub001/internal/models"
)

// ClientRetriever resolves registered OAuth clients.
type ClientRetriever interface {
	GetClient(clientID string) (*models.OAuthClient, error)
}

// CodeParams carries everything needed to mint an authorization code.
type CodeParams struct {
	ClientID            string
	UserID              string
	RedirectURI         string
	Scopes              []string
	CodeChallenge       string
	CodeChallengeMethod string
}

// CodeManager owns authorization-code lifecycles. Implementations MUST
// guarantee atomic check-and-mark in CodeUsed: concurrent exchanges of the
// same code result in exactly one success, all others observing
// ErrAuthCodeAlreadyUsed.
type CodeManager interface {
	// GenerateCode mints an unguessable code, stores it, and returns the
	// plaintext code string alongside the stored record.
	GenerateCode(params CodeParams, lifetime time.Duration) (string, *models.AuthorizationCode, error)

	// GetCode looks up a code by the plaintext string handed to the client.
	GetCode(code string) (*models.AuthorizationCode, error)

	// CodeUsed atomically marks the code consumed.
	CodeUsed(code string) error
}

// TokenStore persists token records for the TokenManager implementations.
// Opaque tokens live entirely here; JWT tokens keep a record here for
// revocation bookkeeping.
type TokenStore interface {
	SaveToken(token *models.AccessToken) error
	GetToken(tokenString string) (*models.AccessToken, error)
	RevokeToken(tokenString string) error
	UpdateTokenScopes(tokenString string, scopes []string) error
}

// DeviceCodeParams carries everything needed to mint a device code pair.
type DeviceCodeParams struct {
	ClientID                string
	Scopes                  []string
	VerificationURI         string
	VerificationURIComplete string
	Interval                int
}

// DeviceCodeManager owns device-code lifecycles (RFC 8628). Terminal codes
// are removed, never reused.
type DeviceCodeManager interface {
	GenerateDeviceCode(params DeviceCodeParams, lifetime time.Duration) (*models.DeviceCode, error)
	GetDeviceCode(deviceCode string) (*models.DeviceCode, error)
	GetDeviceCodeByUserCode(userCode string) (*models.DeviceCode, error)

	// AuthorizeDeviceCode records the user's approval; DeclineDeviceCode
	// records a denial. Both act on the user code, the handle the
	// verification UI holds.
	AuthorizeDeviceCode(userCode, userID string) error
	DeclineDeviceCode(userCode string) error

	RemoveDeviceCode(deviceCode string) error
	UpdateLastPolled(deviceCode string, polledAt time.Time) error

	// IncreaseInterval grows the advisory poll spacing. Implementations
	// must never decrease the stored interval.
	IncreaseInterval(deviceCode string, seconds int) error
}

// PushedAuthorizationRequestManager owns PAR request lifecycles (RFC 9126).
// Consume must be atomic: one redeemer wins, replays observe
// ErrRequestURIAlreadyUsed.
type PushedAuthorizationRequestManager interface {
	StoreRequest(clientID string, parameters url.Values, lifetime time.Duration) (*models.PushedAuthorizationRequest, error)
	GetRequest(requestURI string) (*models.PushedAuthorizationRequest, error)
	ConsumeRequest(requestURI string) error
}

// ResourceServerRetriever resolves resource servers allowed to call the
// introspection endpoint.
type ResourceServerRetriever interface {
	GetServer(username string) (*models.ResourceServer, error)
}

// UserVerifier authenticates resource-owner credentials for the deprecated
// password grant. The engine has no user store; deployments supply one.
type UserVerifier interface {
	AuthenticateUser(username, password string) (userID string, err error)
}
