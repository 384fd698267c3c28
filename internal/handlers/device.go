package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dewonderstruck/vapor-oauth-sub001/internal/services"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/store"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/validator"
)

// DeviceAuthorizationHandler serves POST /oauth/device_authorization
// (RFC 8628 §3.1-3.2).
type DeviceAuthorizationHandler struct {
	deviceService *services.DeviceService
}

func NewDeviceAuthorizationHandler(ds *services.DeviceService) *DeviceAuthorizationHandler {
	return &DeviceAuthorizationHandler{deviceService: ds}
}

func (h *DeviceAuthorizationHandler) DeviceAuthorization(c *gin.Context) {
	clientID, clientSecret := clientCredentials(c)
	if clientID == "" {
		noStore(c)
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             errInvalidRequest,
			"error_description": "client_id is required",
		})
		return
	}

	dc, err := h.deviceService.GenerateDeviceCode(
		c.Request.Context(), clientID, clientSecret, c.PostForm("scope"), c.Request,
	)
	if err != nil {
		h.deviceError(c, err)
		return
	}

	noStore(c)
	c.JSON(http.StatusOK, gin.H{
		"device_code":               dc.DeviceCode,
		"user_code":                 store.FormatUserCode(dc.UserCode),
		"verification_uri":          dc.VerificationURI,
		"verification_uri_complete": dc.VerificationURIComplete,
		"expires_in":                int(time.Until(dc.ExpiryDate).Seconds()),
		"interval":                  dc.Interval,
	})
}

func (h *DeviceAuthorizationHandler) deviceError(c *gin.Context, err error) {
	noStore(c)

	var scopeErr *validator.ScopeError
	switch {
	case errors.Is(err, validator.ErrInvalidClientID),
		errors.Is(err, validator.ErrInvalidClientSecret):
		c.Header("WWW-Authenticate", `Basic realm="oauth"`)
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":             errInvalidClient,
			"error_description": "client authentication failed",
		})
	case errors.Is(err, validator.ErrUnauthorizedClient):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             errUnauthorizedClient,
			"error_description": "client is not configured for the device grant",
		})
	case errors.As(err, &scopeErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             errInvalidScope,
			"error_description": scopeErr.Error(),
		})
	case errors.Is(err, validator.ErrMissingOrigin),
		errors.Is(err, validator.ErrUnauthorizedOrigin):
		c.JSON(http.StatusForbidden, gin.H{
			"error":             errAccessDenied,
			"error_description": "request origin is not authorized for this client",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":             errServerError,
			"error_description": "failed to generate device code",
		})
	}
}
