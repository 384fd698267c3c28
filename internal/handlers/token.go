package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dewonderstruck/vapor-oauth-sub001/internal/extension"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/models"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/services"
)

// Grant types accepted at the token endpoint.
const (
	// https://datatracker.ietf.org/doc/html/rfc6749#section-4.1
	GrantTypeAuthorizationCode = "authorization_code"
	// https://datatracker.ietf.org/doc/html/rfc6749#section-4.4
	GrantTypeClientCredentials = "client_credentials"
	// https://datatracker.ietf.org/doc/html/rfc6749#section-6
	GrantTypeRefreshToken = "refresh_token"
	// https://datatracker.ietf.org/doc/html/rfc8628#section-3.4
	GrantTypeDeviceCode = "urn:ietf:params:oauth:grant-type:device_code"
	// https://datatracker.ietf.org/doc/html/rfc6749#section-4.3 (deprecated)
	GrantTypePassword = "password"
)

// TokenHandler dispatches POST /oauth/token on grant_type after running
// the request through the extension pipeline.
type TokenHandler struct {
	tokenService         *services.TokenService
	authorizationService *services.AuthorizationService
	extensions           *extension.Manager
}

func NewTokenHandler(
	ts *services.TokenService,
	as *services.AuthorizationService,
	extensions *extension.Manager,
) *TokenHandler {
	return &TokenHandler{
		tokenService:         ts,
		authorizationService: as,
		extensions:           extensions,
	}
}

func (h *TokenHandler) Token(c *gin.Context) {
	if err := h.extensions.ProcessTokenRequest(c); err != nil {
		tokenError(c, err)
		return
	}

	grantType := c.PostForm("grant_type")
	switch grantType {
	case GrantTypeAuthorizationCode:
		h.handleAuthorizationCodeGrant(c)
	case GrantTypeClientCredentials:
		h.handleClientCredentialsGrant(c)
	case GrantTypeRefreshToken:
		h.handleRefreshTokenGrant(c)
	case GrantTypeDeviceCode:
		h.handleDeviceCodeGrant(c)
	case GrantTypePassword:
		h.handlePasswordGrant(c)
	case "":
		noStore(c)
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             errInvalidRequest,
			"error_description": "grant_type is required",
		})
	default:
		noStore(c)
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             errUnsupportedGrantType,
			"error_description": "Supported grant types: authorization_code, client_credentials, refresh_token, device_code, password",
		})
	}
}

func (h *TokenHandler) handleAuthorizationCodeGrant(c *gin.Context) {
	code := c.PostForm("code")
	redirectURI := c.PostForm("redirect_uri")
	clientID, clientSecret := clientCredentials(c)

	if code == "" || clientID == "" || redirectURI == "" {
		noStore(c)
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             errInvalidRequest,
			"error_description": "code, client_id and redirect_uri are required",
		})
		return
	}

	authCode, err := h.authorizationService.ExchangeCode(
		c.Request.Context(),
		code, clientID, clientSecret, redirectURI,
		c.PostForm("code_verifier"),
	)
	if err != nil {
		tokenError(c, err)
		return
	}

	access, refresh, err := h.tokenService.ExchangeAuthorizationCode(c.Request.Context(), authCode)
	if err != nil {
		tokenError(c, err)
		return
	}
	h.respondTokenPair(c, access, refresh)
}

func (h *TokenHandler) handleClientCredentialsGrant(c *gin.Context) {
	clientID, clientSecret := clientCredentials(c)
	if clientID == "" || clientSecret == "" {
		noStore(c)
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             errInvalidRequest,
			"error_description": "client_id and client_secret are required",
		})
		return
	}

	access, err := h.tokenService.IssueClientCredentialsToken(
		c.Request.Context(), clientID, clientSecret, c.PostForm("scope"),
	)
	if err != nil {
		tokenError(c, err)
		return
	}
	h.respondTokenPair(c, access, nil)
}

func (h *TokenHandler) handleRefreshTokenGrant(c *gin.Context) {
	refreshToken := c.PostForm("refresh_token")
	clientID, clientSecret := clientCredentials(c)

	if refreshToken == "" || clientID == "" {
		noStore(c)
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             errInvalidRequest,
			"error_description": "refresh_token and client_id are required",
		})
		return
	}

	access, refresh, err := h.tokenService.RefreshAccessToken(
		c.Request.Context(), refreshToken, clientID, clientSecret, c.PostForm("scope"),
	)
	if err != nil {
		tokenError(c, err)
		return
	}
	h.respondTokenPair(c, access, refresh)
}

func (h *TokenHandler) handleDeviceCodeGrant(c *gin.Context) {
	deviceCode := c.PostForm("device_code")
	clientID, _ := clientCredentials(c)

	if deviceCode == "" || clientID == "" {
		noStore(c)
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             errInvalidRequest,
			"error_description": "device_code and client_id are required",
		})
		return
	}

	access, refresh, err := h.tokenService.ExchangeDeviceCode(
		c.Request.Context(), deviceCode, clientID,
	)
	if err != nil {
		tokenError(c, err)
		return
	}
	h.respondTokenPair(c, access, refresh)
}

func (h *TokenHandler) handlePasswordGrant(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")
	clientID, clientSecret := clientCredentials(c)

	if username == "" || password == "" || clientID == "" {
		noStore(c)
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             errInvalidRequest,
			"error_description": "username, password and client_id are required",
		})
		return
	}

	access, refresh, err := h.tokenService.IssuePasswordGrantTokens(
		c.Request.Context(), clientID, clientSecret, username, password, c.PostForm("scope"),
	)
	if err != nil {
		tokenError(c, err)
		return
	}
	h.respondTokenPair(c, access, refresh)
}

// respondTokenPair writes the RFC 6749 §5.1 success body, threading it
// through the extension pipeline first. refresh may be nil for grants
// that issue no refresh token.
func (h *TokenHandler) respondTokenPair(c *gin.Context, access, refresh *models.AccessToken) {
	response := map[string]any{
		"access_token": access.TokenString,
		"token_type":   models.TokenTypeBearer,
		"expires_in":   int(time.Until(access.ExpiresAt).Round(time.Second).Seconds()),
	}
	if scope := access.ScopeString(); scope != "" {
		response["scope"] = scope
	}
	if refresh != nil {
		response["refresh_token"] = refresh.TokenString
	}

	response, err := h.extensions.ProcessTokenResponse(c, response)
	if err != nil {
		tokenError(c, err)
		return
	}

	noStore(c)
	c.JSON(http.StatusOK, response)
}
