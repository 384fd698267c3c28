package models

import "encoding/json"

// AuthorizationDetail is one typed permission descriptor from an
// authorization_details request parameter (RFC 9396 §2).
type AuthorizationDetail struct {
	Type      string         `json:"type"`
	Actions   []string       `json:"actions,omitempty"`
	Locations []string       `json:"locations,omitempty"`
	Data      map[string]any `json:"data,omitempty"`

	// Custom collects fields outside the registered set so deployments
	// can validate type-specific extensions.
	Custom map[string]any `json:"-"`
}

// UnmarshalJSON keeps unknown fields in Custom while decoding the
// registered fields normally.
func (d *AuthorizationDetail) UnmarshalJSON(data []byte) error {
	type alias AuthorizationDetail
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	delete(raw, "type")
	delete(raw, "actions")
	delete(raw, "locations")
	delete(raw, "data")

	*d = AuthorizationDetail(a)
	if len(raw) > 0 {
		d.Custom = raw
	}
	return nil
}

// ResourceServer holds the Basic-auth credentials of a resource server
// permitted to call the introspection endpoint (RFC 7662 §2.1).
type ResourceServer struct {
	Username string
	Password string // bcrypt hash or plaintext, compared by the introspection service
}
