package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ServerMetadataProvider supplies the RFC 8414 discovery document. The
// server facade builds the default provider from its configuration and
// registered extensions.
type ServerMetadataProvider interface {
	ServerMetadata() map[string]any
}

// MetadataHandler serves GET /.well-known/oauth-authorization-server.
type MetadataHandler struct {
	provider ServerMetadataProvider
}

func NewMetadataHandler(provider ServerMetadataProvider) *MetadataHandler {
	return &MetadataHandler{provider: provider}
}

func (h *MetadataHandler) Metadata(c *gin.Context) {
	// Discovery responses must never be cached: capability changes have
	// to propagate immediately (RFC 8414 §3.2).
	c.Header("Cache-Control", "no-store, no-cache, max-age=0, must-revalidate")
	c.Header("Pragma", "no-cache")
	c.JSON(http.StatusOK, h.provider.ServerMetadata())
}
