package store

import "errors"

var (
	// ErrClientNotFound indicates the client ID is not registered
	ErrClientNotFound = errors.New("client not found")

	// ErrAuthCodeNotFound indicates no authorization code matches
	ErrAuthCodeNotFound = errors.New("authorization code not found")

	// ErrAuthCodeAlreadyUsed indicates a replay of a consumed code
	ErrAuthCodeAlreadyUsed = errors.New("authorization code already used")

	// ErrTokenNotFound indicates no token record matches the string
	ErrTokenNotFound = errors.New("token not found")

	// ErrDeviceCodeNotFound indicates no device code matches
	ErrDeviceCodeNotFound = errors.New("device code not found")

	// ErrUserCodeNotFound indicates no pending device code has this user code
	ErrUserCodeNotFound = errors.New("user code not found")

	// ErrRequestURINotFound indicates no pushed authorization request matches
	ErrRequestURINotFound = errors.New("request_uri not found")

	// ErrRequestURIAlreadyUsed indicates a replay of a consumed request_uri
	ErrRequestURIAlreadyUsed = errors.New("request_uri already used")

	// ErrResourceServerNotFound indicates unknown introspection credentials
	ErrResourceServerNotFound = errors.New("resource server not found")
)
