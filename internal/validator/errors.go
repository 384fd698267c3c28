package validator

import "errors"

var (
	// ErrInvalidClientID indicates the client is not registered
	ErrInvalidClientID = errors.New("invalid client_id")

	// ErrConfidentialClientTokenGrant indicates a confidential client
	// requested the implicit (token) response type
	ErrConfidentialClientTokenGrant = errors.New(
		"confidential clients may not use the token response type",
	)

	// ErrInvalidRedirectURI indicates the redirect URI does not exactly
	// match a registered URI
	ErrInvalidRedirectURI = errors.New("invalid redirect_uri")

	// ErrHTTPRedirectURI indicates a non-HTTPS redirect URI in production
	ErrHTTPRedirectURI = errors.New("redirect_uri must use https")

	// ErrUnauthorizedClient indicates the client is not configured for
	// the requested grant or response type
	ErrUnauthorizedClient = errors.New("unauthorized_client")

	// ErrInvalidClientSecret indicates client authentication failed
	ErrInvalidClientSecret = errors.New("invalid client secret")

	// ErrClientNotConfidential indicates a public client attempted a
	// flow restricted to confidential clients
	ErrClientNotConfidential = errors.New("client must be confidential")

	// ErrClientNotFirstParty indicates a third-party client attempted
	// the password grant
	ErrClientNotFirstParty = errors.New("password grant requires a first-party client")

	// ErrMissingOrigin indicates origin validation was required but no
	// Origin header was present
	ErrMissingOrigin = errors.New("missing Origin header")

	// ErrUnauthorizedOrigin indicates the request origin matched none of
	// the client's authorized origins
	ErrUnauthorizedOrigin = errors.New("unauthorized origin")
)
