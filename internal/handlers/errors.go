package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dewonderstruck/vapor-oauth-sub001/internal/extension"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/services"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/token"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/validator"
)

// RFC 6749 error codes reused across handlers.
const (
	errInvalidRequest       = "invalid_request"
	errInvalidClient        = "invalid_client"
	errInvalidGrant         = "invalid_grant"
	errInvalidScope         = "invalid_scope"
	errUnauthorizedClient   = "unauthorized_client"
	errAccessDenied         = "access_denied"
	errUnsupportedGrantType = "unsupported_grant_type"
	errServerError          = "server_error"
)

// noStore marks a response uncacheable, required for every token-bearing
// response (RFC 6749 §5.1).
func noStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
}

// tokenError writes the RFC 6749 §5.2 error body for a token-endpoint
// failure, mapping internal errors to wire codes and statuses.
func tokenError(c *gin.Context, err error) {
	status, code := tokenErrorCode(err)
	noStore(c)
	body := gin.H{"error": code}
	if desc := err.Error(); code != errServerError && desc != code {
		body["error_description"] = desc
	}
	if status == http.StatusUnauthorized {
		c.Header("WWW-Authenticate", `Basic realm="oauth"`)
	}
	c.JSON(status, body)
}

func tokenErrorCode(err error) (int, string) {
	var extErr *extension.Error
	if errors.As(err, &extErr) {
		status := http.StatusBadRequest
		if extErr.OAuthErrorCode() == errServerError {
			status = http.StatusInternalServerError
		}
		return status, extErr.OAuthErrorCode()
	}

	var scopeErr *validator.ScopeError
	if errors.As(err, &scopeErr) {
		return http.StatusBadRequest, errInvalidScope
	}

	switch {
	case errors.Is(err, validator.ErrInvalidClientID),
		errors.Is(err, validator.ErrInvalidClientSecret):
		return http.StatusUnauthorized, errInvalidClient
	case errors.Is(err, validator.ErrUnauthorizedClient),
		errors.Is(err, validator.ErrClientNotConfidential),
		errors.Is(err, validator.ErrClientNotFirstParty):
		return http.StatusBadRequest, errUnauthorizedClient

	case errors.Is(err, services.ErrAuthorizationPending):
		return http.StatusBadRequest, "authorization_pending"
	case errors.Is(err, services.ErrSlowDown):
		return http.StatusBadRequest, "slow_down"
	case errors.Is(err, services.ErrExpiredToken):
		return http.StatusBadRequest, "expired_token"
	case errors.Is(err, services.ErrAccessDenied):
		return http.StatusBadRequest, errAccessDenied
	case errors.Is(err, services.ErrInvalidScope):
		return http.StatusBadRequest, errInvalidScope
	case errors.Is(err, services.ErrInvalidUserCredentials):
		return http.StatusBadRequest, errInvalidGrant

	case errors.Is(err, services.ErrAuthCodeNotFound),
		errors.Is(err, services.ErrAuthCodeExpired),
		errors.Is(err, services.ErrAuthCodeAlreadyUsed),
		errors.Is(err, services.ErrCodeClientMismatch),
		errors.Is(err, services.ErrCodeRedirectMismatch),
		errors.Is(err, services.ErrCodeVerifierRequired),
		errors.Is(err, services.ErrInvalidCodeVerifier):
		return http.StatusBadRequest, errInvalidGrant

	case errors.Is(err, token.ErrInvalidToken),
		errors.Is(err, token.ErrExpiredToken),
		errors.Is(err, token.ErrRevokedToken),
		errors.Is(err, token.ErrWrongCategory):
		return http.StatusBadRequest, errInvalidGrant

	default:
		return http.StatusInternalServerError, errServerError
	}
}

// authorizationErrorCode maps validation failures to the RFC 6749 §4.1.2.1
// error vocabulary for redirect responses.
func authorizationErrorCode(err error) string {
	var scopeErr *validator.ScopeError
	if errors.As(err, &scopeErr) {
		return errInvalidScope
	}

	var extErr *extension.Error
	if errors.As(err, &extErr) {
		return extErr.OAuthErrorCode()
	}

	switch {
	case errors.Is(err, services.ErrUnsupportedResponseType):
		return "unsupported_response_type"
	case errors.Is(err, validator.ErrUnauthorizedClient),
		errors.Is(err, validator.ErrConfidentialClientTokenGrant):
		return errUnauthorizedClient
	case errors.Is(err, validator.ErrMissingOrigin),
		errors.Is(err, validator.ErrUnauthorizedOrigin):
		return errAccessDenied
	case errors.Is(err, services.ErrMissingChallengeMethod),
		errors.Is(err, services.ErrInvalidChallengeMethod):
		return errInvalidRequest
	default:
		return errInvalidRequest
	}
}

// cannotRedirect reports whether the failure concerns the client identity
// or redirect target itself, in which case encoding the error into the
// redirect URI is unsafe.
func cannotRedirect(err error) bool {
	return errors.Is(err, validator.ErrInvalidClientID) ||
		errors.Is(err, validator.ErrInvalidRedirectURI) ||
		errors.Is(err, validator.ErrHTTPRedirectURI)
}

// clientCredentials reads client credentials from HTTP Basic auth first,
// then the form body (RFC 6749 §2.3.1).
func clientCredentials(c *gin.Context) (string, string) {
	if id, secret, ok := c.Request.BasicAuth(); ok {
		return id, secret
	}
	return c.PostForm("client_id"), c.PostForm("client_secret")
}
