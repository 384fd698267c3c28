package validator

import (
	"fmt"
	"strings"

	"github.com/dewonderstruck/vapor-oauth-sub001/internal/models"
)

// ScopeError reports which requested scopes failed validation and why.
// Unknown scopes are absent from the server-wide list; Invalid scopes are
// known to the server but not granted to the client.
type ScopeError struct {
	Unknown []string
	Invalid []string
}

func (e *ScopeError) Error() string {
	var parts []string
	if len(e.Unknown) > 0 {
		parts = append(parts, fmt.Sprintf("unknown scopes: %s", strings.Join(e.Unknown, " ")))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, fmt.Sprintf("scopes not granted to client: %s", strings.Join(e.Invalid, " ")))
	}
	if len(parts) == 0 {
		return "invalid scope"
	}
	return strings.Join(parts, "; ")
}

// ScopeValidator checks requested scopes against the server-wide scope
// list and each client's granted scopes.
type ScopeValidator struct {
	validScopes map[string]bool
}

func NewScopeValidator(serverScopes []string) *ScopeValidator {
	valid := make(map[string]bool, len(serverScopes))
	for _, s := range serverScopes {
		valid[s] = true
	}
	return &ScopeValidator{validScopes: valid}
}

// ValidateScope returns nil when every requested scope is known to the
// server and granted to the client. An empty request is always valid.
func (v *ScopeValidator) ValidateScope(client *models.OAuthClient, scopes []string) error {
	if len(scopes) == 0 {
		return nil
	}

	clientScopes := make(map[string]bool, len(client.ValidScopes))
	for _, s := range client.ValidScopes {
		clientScopes[s] = true
	}

	scopeErr := &ScopeError{}
	for _, s := range scopes {
		switch {
		case !v.validScopes[s]:
			scopeErr.Unknown = append(scopeErr.Unknown, s)
		case !clientScopes[s]:
			scopeErr.Invalid = append(scopeErr.Invalid, s)
		}
	}
	if len(scopeErr.Unknown) > 0 || len(scopeErr.Invalid) > 0 {
		return scopeErr
	}
	return nil
}

// SplitScopes splits the space-separated wire form into a scope list.
func SplitScopes(scope string) []string {
	return strings.Fields(scope)
}
