package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/dewonderstruck/vapor-oauth-sub001/internal/util"
)

const (
	csrfTokenKey    = "oauth_csrf_token"
	csrfFormField   = "csrf_token"
	csrfHeaderField = "X-CSRF-Token"
)

// MintCSRFToken returns the session's CSRF token, creating one on first
// use. The authorization GET hands this to the consent form; the POST must
// echo it back.
func MintCSRFToken(c *gin.Context) (string, error) {
	session := sessions.Default(c)
	if existing, ok := session.Get(csrfTokenKey).(string); ok && existing != "" {
		return existing, nil
	}

	token, err := util.CryptoRandomURLString(32)
	if err != nil {
		return "", err
	}
	session.Set(csrfTokenKey, token)
	if err := session.Save(); err != nil {
		return "", err
	}
	return token, nil
}

// ValidateCSRFToken compares a submitted token against the session's in
// constant time. A missing session token fails closed.
func ValidateCSRFToken(c *gin.Context, submitted string) bool {
	session := sessions.Default(c)
	expected, ok := session.Get(csrfTokenKey).(string)
	if !ok || expected == "" || submitted == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(submitted)) == 1
}

// CSRF is route middleware for state-changing session-backed endpoints
// outside the consent flow (the device verification form). The token is
// read from the form field first, then the header.
func CSRF() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			submitted := c.PostForm(csrfFormField)
			if submitted == "" {
				submitted = c.GetHeader(csrfHeaderField)
			}
			if !ValidateCSRFToken(c, submitted) {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
					"error":             "invalid_request",
					"error_description": "CSRF token validation failed",
				})
				return
			}
		}
		c.Next()
	}
}
