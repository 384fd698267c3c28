package extension

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/dewonderstruck/vapor-oauth-sub001/internal/models"
	"github.com/dewonderstruck/vapor-oauth-sub001/internal/services"
)

const rarExtensionID = "rar"

// RARTypeRegistry is the pluggable registry of permitted
// authorization_details types. Keys are detail types; values list the
// actions allowed for that type, with an empty list meaning any action.
// An empty registry permits any type.
type RARTypeRegistry map[string][]string

// RARExtension implements Rich Authorization Requests (RFC 9396): it
// parses and validates the authorization_details parameter and attaches
// the typed descriptors to the validated authorization request.
type RARExtension struct {
	Base

	registry          RARTypeRegistry
	maxDetails        int
	validateLocations bool
}

var _ OAuthExtension = (*RARExtension)(nil)

func NewRARExtension(registry RARTypeRegistry, maxDetails int, validateLocations bool) *RARExtension {
	return &RARExtension{
		registry:          registry,
		maxDetails:        maxDetails,
		validateLocations: validateLocations,
	}
}

func (e *RARExtension) ExtensionID() string { return rarExtensionID }

func (e *RARExtension) Capabilities() Capabilities {
	return Capabilities{ModifiesAuthorizationRequest: true}
}

func (e *RARExtension) Initialize() error {
	if e.maxDetails <= 0 {
		return NewError(rarExtensionID, ErrCodeConfiguration,
			"maximum authorization detail count must be positive",
			"configure a positive MAX_AUTHORIZATION_DETAILS", nil)
	}
	return nil
}

func (e *RARExtension) Metadata() map[string]any {
	types := make([]string, 0, len(e.registry))
	for t := range e.registry {
		types = append(types, t)
	}
	if len(types) == 0 {
		return nil
	}
	return map[string]any{"authorization_details_types_supported": types}
}

// ProcessValidatedAuthorizationRequest parses authorization_details and
// attaches the validated descriptors to the request.
func (e *RARExtension) ProcessValidatedAuthorizationRequest(
	c *gin.Context,
	req *services.AuthorizationRequest,
) (*services.AuthorizationRequest, error) {
	raw := c.Query("authorization_details")
	if raw == "" {
		raw = c.PostForm("authorization_details")
	}
	if raw == "" {
		return nil, nil
	}

	details, err := e.parseDetails(raw)
	if err != nil {
		return nil, err
	}

	updated := *req
	updated.AuthorizationDetails = details
	return &updated, nil
}

// ValidateRequest reports authorization_details problems without failing
// the request.
func (e *RARExtension) ValidateRequest(c *gin.Context) []error {
	raw := c.Query("authorization_details")
	if raw == "" {
		raw = c.PostForm("authorization_details")
	}
	if raw == "" {
		return nil
	}
	if _, err := e.parseDetails(raw); err != nil {
		return []error{err}
	}
	return nil
}

func (e *RARExtension) parseDetails(raw string) ([]models.AuthorizationDetail, error) {
	var details []models.AuthorizationDetail
	if err := json.Unmarshal([]byte(raw), &details); err != nil {
		return nil, NewError(rarExtensionID, ErrCodeInvalidParameter,
			"authorization_details is not a valid JSON array",
			"send a JSON array of authorization detail objects", err)
	}
	if len(details) == 0 {
		return nil, NewError(rarExtensionID, ErrCodeInvalidParameter,
			"authorization_details must not be empty",
			"include at least one authorization detail", nil)
	}
	if len(details) > e.maxDetails {
		return nil, NewError(rarExtensionID, ErrCodeValidationFailed,
			fmt.Sprintf("authorization_details exceeds the maximum of %d entries", e.maxDetails),
			"request fewer authorization details", nil)
	}

	for i, d := range details {
		if err := e.validateDetail(i, d); err != nil {
			return nil, err
		}
	}
	return details, nil
}

func (e *RARExtension) validateDetail(index int, d models.AuthorizationDetail) error {
	if d.Type == "" {
		return NewError(rarExtensionID, ErrCodeInvalidParameter,
			fmt.Sprintf("authorization detail %d is missing a type", index),
			"every authorization detail requires a non-empty type", nil)
	}

	if len(e.registry) > 0 {
		allowedActions, ok := e.registry[d.Type]
		if !ok {
			return NewError(rarExtensionID, ErrCodeValidationFailed,
				fmt.Sprintf("authorization detail type %q is not supported", d.Type),
				"use a registered authorization detail type", nil)
		}
		if len(allowedActions) > 0 {
			permitted := make(map[string]bool, len(allowedActions))
			for _, a := range allowedActions {
				permitted[a] = true
			}
			for _, action := range d.Actions {
				if !permitted[action] {
					return NewError(rarExtensionID, ErrCodeValidationFailed,
						fmt.Sprintf("action %q is not allowed for type %q", action, d.Type),
						"use an action registered for this detail type", nil)
				}
			}
		}
	}

	if e.validateLocations {
		for _, loc := range d.Locations {
			parsed, err := url.Parse(loc)
			if err != nil || !parsed.IsAbs() {
				return NewError(rarExtensionID, ErrCodeInvalidParameter,
					fmt.Sprintf("location %q is not an absolute URI", loc),
					"locations must be absolute URIs", nil)
			}
		}
	}
	return nil
}
