package extension

import (
	"log"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/dewonderstruck/vapor-oauth-sub001/internal/metrics"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/services"
)

// Manager runs registered extensions in registration order, threading the
// possibly-rewritten request or response through each hook. A nil return
// from a hook leaves the current value unchanged.
type Manager struct {
	extensions []OAuthExtension
	metrics    metrics.Recorder
}

func NewManager(m metrics.Recorder) *Manager {
	return &Manager{metrics: m}
}

// Register initializes the extension and adds it to the pipeline. An
// initialization failure keeps the extension out and is returned as a
// typed error.
func (m *Manager) Register(ext OAuthExtension) error {
	if err := ext.Initialize(); err != nil {
		m.metrics.RecordExtensionHook(ext.ExtensionID(), "initialize", false)
		if _, ok := err.(*Error); ok {
			return err
		}
		return NewError(ext.ExtensionID(), ErrCodeInitFailed,
			"extension initialization failed",
			"check the extension configuration", err)
	}
	m.extensions = append(m.extensions, ext)
	m.metrics.RecordExtensionHook(ext.ExtensionID(), "initialize", true)
	log.Printf("[Extension] Registered %s", ext.ExtensionID())
	return nil
}

// Extensions returns the pipeline in registration order.
func (m *Manager) Extensions() []OAuthExtension {
	return m.extensions
}

// ProcessAuthorizationRequest folds the raw authorization parameters
// through every extension that modifies authorization requests.
func (m *Manager) ProcessAuthorizationRequest(c *gin.Context, params url.Values) (url.Values, error) {
	current := params
	for _, ext := range m.extensions {
		if !ext.Capabilities().ModifiesAuthorizationRequest {
			continue
		}
		replaced, err := ext.ProcessAuthorizationRequest(c, current)
		if err != nil {
			m.metrics.RecordExtensionHook(ext.ExtensionID(), "authorization_request", false)
			return nil, err
		}
		m.metrics.RecordExtensionHook(ext.ExtensionID(), "authorization_request", true)
		if replaced != nil {
			current = replaced
		}
	}
	return current, nil
}

// ProcessValidatedAuthorizationRequest folds the validated request object
// through the pipeline.
func (m *Manager) ProcessValidatedAuthorizationRequest(
	c *gin.Context,
	req *services.AuthorizationRequest,
) (*services.AuthorizationRequest, error) {
	current := req
	for _, ext := range m.extensions {
		if !ext.Capabilities().ModifiesAuthorizationRequest {
			continue
		}
		replaced, err := ext.ProcessValidatedAuthorizationRequest(c, current)
		if err != nil {
			m.metrics.RecordExtensionHook(ext.ExtensionID(), "validated_authorization_request", false)
			return nil, err
		}
		m.metrics.RecordExtensionHook(ext.ExtensionID(), "validated_authorization_request", true)
		if replaced != nil {
			current = replaced
		}
	}
	return current, nil
}

// ProcessTokenRequest runs token-request hooks before grant dispatch.
func (m *Manager) ProcessTokenRequest(c *gin.Context) error {
	for _, ext := range m.extensions {
		if !ext.Capabilities().ModifiesTokenRequest {
			continue
		}
		if err := ext.ProcessTokenRequest(c); err != nil {
			m.metrics.RecordExtensionHook(ext.ExtensionID(), "token_request", false)
			return err
		}
		m.metrics.RecordExtensionHook(ext.ExtensionID(), "token_request", true)
	}
	return nil
}

// ProcessTokenResponse folds a successful token response body through the
// pipeline. Only called for responses about to be served with HTTP 200.
func (m *Manager) ProcessTokenResponse(c *gin.Context, response map[string]any) (map[string]any, error) {
	current := response
	for _, ext := range m.extensions {
		if !ext.Capabilities().ModifiesTokenResponse {
			continue
		}
		replaced, err := ext.ProcessTokenResponse(c, current)
		if err != nil {
			m.metrics.RecordExtensionHook(ext.ExtensionID(), "token_response", false)
			return nil, err
		}
		m.metrics.RecordExtensionHook(ext.ExtensionID(), "token_response", true)
		if replaced != nil {
			current = replaced
		}
	}
	return current, nil
}

// ValidateRequest collects extension-specific problems from every
// extension without short-circuiting.
func (m *Manager) ValidateRequest(c *gin.Context) []error {
	var problems []error
	for _, ext := range m.extensions {
		problems = append(problems, ext.ValidateRequest(c)...)
	}
	return problems
}

// AddRoutes registers every endpoint-adding extension's routes under the
// OAuth route group.
func (m *Manager) AddRoutes(rg *gin.RouterGroup) {
	for _, ext := range m.extensions {
		if ext.Capabilities().AddsEndpoints {
			ext.AddRoutes(rg)
		}
	}
}

// Metadata merges every extension's discovery-document contribution.
func (m *Manager) Metadata() map[string]any {
	merged := make(map[string]any)
	for _, ext := range m.extensions {
		for k, v := range ext.Metadata() {
			merged[k] = v
		}
	}
	return merged
}
