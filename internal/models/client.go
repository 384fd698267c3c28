package models

import "time"

// Grant type constants. A client is configured with exactly one allowed
// grant type, which gates the endpoints that will accept it.
const (
	GrantTypeAuthorization     = "authorization"
	GrantTypeImplicit          = "implicit" // deprecated
	GrantTypePassword          = "password" // deprecated, first-party only
	GrantTypeClientCredentials = "clientCredentials"
	GrantTypeRefresh           = "refresh"
	GrantTypeDeviceCode        = "deviceCode"
)

// OAuthClient is a registered OAuth 2.0 client application.
type OAuthClient struct {
	ClientID     string
	ClientSecret string // bcrypt hash for confidential clients; empty for public clients
	ClientName   string
	RedirectURIs []string
	ValidScopes  []string

	// Confidential clients authenticate with a secret and may never use
	// the implicit (token) response type.
	Confidential bool

	// FirstParty gates the deprecated password grant.
	FirstParty bool

	// AllowedGrantType holds exactly one of the GrantType* constants.
	AllowedGrantType string

	// AuthorizedOrigins enables browser-origin checking when non-empty.
	// Entries are exact origins or "*.domain.tld" wildcard patterns.
	AuthorizedOrigins []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasRedirectURI reports whether uri exactly matches a registered URI.
func (c *OAuthClient) HasRedirectURI(uri string) bool {
	for _, registered := range c.RedirectURIs {
		if registered == uri {
			return true
		}
	}
	return false
}

// AllowsGrant reports whether the client is configured for grantType.
func (c *OAuthClient) AllowsGrant(grantType string) bool {
	return c.AllowedGrantType == grantType
}
