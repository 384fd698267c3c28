package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dewonderstruck/vapor-oauth-sub001/internal/services"
)

// TokenIntrospectionHandler serves POST /oauth/token_info (RFC 7662),
// protected by resource-server Basic credentials rather than OAuth client
// credentials.
type TokenIntrospectionHandler struct {
	introspectionService *services.IntrospectionService
}

func NewTokenIntrospectionHandler(is *services.IntrospectionService) *TokenIntrospectionHandler {
	return &TokenIntrospectionHandler{introspectionService: is}
}

func (h *TokenIntrospectionHandler) Introspect(c *gin.Context) {
	noStore(c)

	username, password, ok := c.Request.BasicAuth()
	if !ok {
		c.Header("WWW-Authenticate", `Basic realm="oauth"`)
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":             errInvalidClient,
			"error_description": "resource server authentication required",
		})
		return
	}
	if err := h.introspectionService.AuthenticateResourceServer(username, password); err != nil {
		c.Header("WWW-Authenticate", `Basic realm="oauth"`)
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":             errInvalidClient,
			"error_description": "resource server authentication failed",
		})
		return
	}

	tokenString := c.PostForm("token")
	if tokenString == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             errInvalidRequest,
			"error_description": "token is required",
		})
		return
	}

	c.JSON(http.StatusOK, h.introspectionService.IntrospectToken(c.Request.Context(), tokenString))
}
