package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dewonderstruck/vapor-oauth-sub001/internal/services"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/validator"
)

// TokenRevocationHandler serves POST /oauth/revoke (RFC 7009). The
// endpoint reports success for any syntactically valid revocation attempt
// so it cannot be used to probe token existence; only client
// authentication failures surface.
type TokenRevocationHandler struct {
	tokenService *services.TokenService
}

func NewTokenRevocationHandler(ts *services.TokenService) *TokenRevocationHandler {
	return &TokenRevocationHandler{tokenService: ts}
}

func (h *TokenRevocationHandler) Revoke(c *gin.Context) {
	noStore(c)

	tokenString := c.PostForm("token")
	if tokenString == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             errInvalidRequest,
			"error_description": "token is required",
		})
		return
	}

	clientID, clientSecret := clientCredentials(c)
	err := h.tokenService.RevokeToken(
		c.Request.Context(),
		tokenString, c.PostForm("token_type_hint"),
		clientID, clientSecret,
	)
	if err != nil {
		if errors.Is(err, validator.ErrInvalidClientID) ||
			errors.Is(err, validator.ErrInvalidClientSecret) {
			c.Header("WWW-Authenticate", `Basic realm="oauth"`)
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":             errInvalidClient,
				"error_description": "client authentication failed",
			})
			return
		}
		// Storage trouble still reports success per RFC 7009 §2.2; the
		// client cannot act on it and retrying is harmless.
	}

	c.Status(http.StatusOK)
}
