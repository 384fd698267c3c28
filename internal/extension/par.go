package extension

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dewonderstruck/vapor-oauth-sub001/internal/config"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/store"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/validator"
)

const parExtensionID = "par"

// PARExtension implements Pushed Authorization Requests (RFC 9126). It
// adds POST /par under the OAuth group and substitutes stored parameters
// when the authorization endpoint receives a request_uri.
type PARExtension struct {
	Base

	requests        store.PushedAuthorizationRequestManager
	clientValidator *validator.ClientValidator
	config          *config.Config
}

var _ OAuthExtension = (*PARExtension)(nil)

func NewPARExtension(
	requests store.PushedAuthorizationRequestManager,
	clientValidator *validator.ClientValidator,
	cfg *config.Config,
) *PARExtension {
	return &PARExtension{
		requests:        requests,
		clientValidator: clientValidator,
		config:          cfg,
	}
}

func (e *PARExtension) ExtensionID() string { return parExtensionID }

func (e *PARExtension) Capabilities() Capabilities {
	return Capabilities{
		ModifiesAuthorizationRequest: true,
		AddsEndpoints:                true,
	}
}

func (e *PARExtension) Initialize() error {
	if e.requests == nil {
		return NewError(parExtensionID, ErrCodeConfiguration,
			"no pushed authorization request store configured",
			"provide a PushedAuthorizationRequestManager", nil)
	}
	if e.config.PARRequestExpiration <= 0 {
		return NewError(parExtensionID, ErrCodeConfiguration,
			"PAR request expiration must be positive",
			"set PAR_REQUEST_EXPIRATION to a positive duration", nil)
	}
	return nil
}

func (e *PARExtension) AddRoutes(rg *gin.RouterGroup) {
	rg.POST("/par", e.handlePush)
}

func (e *PARExtension) Metadata() map[string]any {
	return map[string]any{
		"pushed_authorization_request_endpoint": strings.TrimRight(e.config.BaseURL, "/") + "/oauth/par",
	}
}

// handlePush is the PAR endpoint (RFC 9126 §2). The client authenticates,
// pushes its full authorization parameter set, and receives a single-use
// request_uri reference.
func (e *PARExtension) handlePush(c *gin.Context) {
	clientID, clientSecret := clientCredentials(c)
	if clientID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":             "invalid_client",
			"error_description": "client authentication required",
		})
		return
	}
	if _, err := e.clientValidator.AuthenticateClient(clientID, clientSecret, "", false); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":             "invalid_client",
			"error_description": "client authentication failed",
		})
		return
	}

	// request_uri must not itself be pushed (RFC 9126 §2.1).
	if c.PostForm("request_uri") != "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "request_uri is not allowed in a pushed request",
		})
		return
	}
	if c.PostForm("response_type") == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "response_type is required",
		})
		return
	}

	if err := c.Request.ParseForm(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "malformed request body",
		})
		return
	}
	parameters := make(url.Values, len(c.Request.PostForm))
	for k, v := range c.Request.PostForm {
		if k == "client_secret" {
			continue
		}
		parameters[k] = append([]string(nil), v...)
	}
	parameters.Set("client_id", clientID)

	stored, err := e.requests.StoreRequest(clientID, parameters, e.config.PARRequestExpiration)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":             "server_error",
			"error_description": "failed to store pushed request",
		})
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(http.StatusCreated, gin.H{
		"request_uri": stored.RequestURI,
		"expires_in":  int(e.config.PARRequestExpiration.Seconds()),
	})
}

// ProcessAuthorizationRequest resolves a request_uri reference: the stored
// request must be unexpired, unused and pushed by the same client. On
// success the pushed parameter set replaces the incoming one.
func (e *PARExtension) ProcessAuthorizationRequest(
	_ *gin.Context,
	params url.Values,
) (url.Values, error) {
	requestURI := params.Get("request_uri")
	if requestURI == "" {
		return nil, nil
	}
	if !strings.HasPrefix(requestURI, store.RequestURIPrefix) {
		return nil, NewError(parExtensionID, ErrCodeInvalidParameter,
			"request_uri has an unrecognized format",
			"push the request first and use the returned request_uri", nil)
	}

	stored, err := e.requests.GetRequest(requestURI)
	if err != nil {
		return nil, NewError(parExtensionID, ErrCodeInvalidParameter,
			"request_uri is unknown or expired",
			"push a new authorization request", err)
	}
	if stored.IsExpired() {
		return nil, NewError(parExtensionID, ErrCodeInvalidParameter,
			"request_uri has expired",
			"push a new authorization request", nil)
	}
	if clientID := params.Get("client_id"); clientID != "" && clientID != stored.ClientID {
		return nil, NewError(parExtensionID, ErrCodeValidationFailed,
			"request_uri was pushed by another client",
			"use the request_uri issued to this client", nil)
	}

	if err := e.requests.ConsumeRequest(requestURI); err != nil {
		if errors.Is(err, store.ErrRequestURIAlreadyUsed) {
			return nil, NewError(parExtensionID, ErrCodeValidationFailed,
				"request_uri has already been used",
				"push a new authorization request", err)
		}
		return nil, NewError(parExtensionID, ErrCodeProcessingFailed,
			"failed to consume request_uri",
			"retry with a freshly pushed request", err)
	}

	substituted := make(url.Values, len(stored.Parameters))
	for k, v := range stored.Parameters {
		substituted[k] = append([]string(nil), v...)
	}
	substituted.Set("client_id", stored.ClientID)
	return substituted, nil
}

// clientCredentials reads client credentials from HTTP Basic auth first,
// then the form body (RFC 6749 §2.3.1).
func clientCredentials(c *gin.Context) (string, string) {
	if id, secret, ok := c.Request.BasicAuth(); ok {
		return id, secret
	}
	return c.PostForm("client_id"), c.PostForm("client_secret")
}
