// Package extension hosts the OAuth extension framework: a registration
// order pipeline through which the authorization and token endpoints
// thread their requests and responses. Built-in extensions cover PAR
// (RFC 9126), RAR (RFC 9396) and DPoP (RFC 9449).
package extension

import (
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/dewonderstruck/vapor-oauth-sub001/internal/services"
)

// Capabilities declares which hooks an extension participates in. The
// manager skips hooks the extension does not claim.
type Capabilities struct {
	ModifiesAuthorizationRequest bool
	ModifiesTokenRequest         bool
	ModifiesTokenResponse        bool
	AddsEndpoints                bool
}

// OAuthExtension is one pluggable protocol extension. Hooks that rewrite
// a value return the replacement, or nil to leave the input untouched;
// failures surface as *Error, never as control flow.
type OAuthExtension interface {
	// ExtensionID is a stable identifier used in logs and metrics.
	ExtensionID() string

	Capabilities() Capabilities

	// Initialize validates the extension's configuration. Called once at
	// registration; a failure keeps the extension out of the pipeline.
	Initialize() error

	// ProcessAuthorizationRequest runs before parameter validation at the
	// authorization endpoint and may substitute the raw parameter set
	// (PAR resolves request_uri here).
	ProcessAuthorizationRequest(c *gin.Context, params url.Values) (url.Values, error)

	// ProcessValidatedAuthorizationRequest runs after the request passed
	// client, redirect, scope and PKCE validation (RAR parses
	// authorization_details here).
	ProcessValidatedAuthorizationRequest(c *gin.Context, req *services.AuthorizationRequest) (*services.AuthorizationRequest, error)

	// ProcessTokenRequest runs before grant dispatch at the token endpoint
	// (DPoP validates its proof here).
	ProcessTokenRequest(c *gin.Context) error

	// ProcessTokenResponse runs only for responses that will be served
	// with HTTP 200 and may rewrite the response body (DPoP rewrites
	// token_type here).
	ProcessTokenResponse(c *gin.Context, response map[string]any) (map[string]any, error)

	// ValidateRequest collects extension-specific problems with a request
	// without failing it; the endpoint decides what to do with them.
	ValidateRequest(c *gin.Context) []error

	// AddRoutes registers extension endpoints under the OAuth route group.
	AddRoutes(rg *gin.RouterGroup)

	// Metadata contributes fields to the RFC 8414 discovery document.
	Metadata() map[string]any
}

// Base is a no-op OAuthExtension for embedding; concrete extensions
// override only the hooks their capabilities claim.
type Base struct{}

func (Base) Initialize() error { return nil }

func (Base) ProcessAuthorizationRequest(_ *gin.Context, _ url.Values) (url.Values, error) {
	return nil, nil
}

func (Base) ProcessValidatedAuthorizationRequest(_ *gin.Context, _ *services.AuthorizationRequest) (*services.AuthorizationRequest, error) {
	return nil, nil
}

func (Base) ProcessTokenRequest(_ *gin.Context) error { return nil }

func (Base) ProcessTokenResponse(_ *gin.Context, _ map[string]any) (map[string]any, error) {
	return nil, nil
}

func (Base) ValidateRequest(_ *gin.Context) []error { return nil }

func (Base) AddRoutes(_ *gin.RouterGroup) {}

func (Base) Metadata() map[string]any { return nil }
