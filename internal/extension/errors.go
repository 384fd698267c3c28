package extension

import "fmt"

// Error codes for extension failures.
const (
	ErrCodeInvalidParameter     = "invalid_parameter"
	ErrCodeUnsupportedExtension = "unsupported_extension"
	ErrCodeValidationFailed     = "extension_validation_failed"
	ErrCodeProcessingFailed     = "extension_processing_failed"
	ErrCodeInitFailed           = "extension_initialization_failed"
	ErrCodeConfiguration        = "extension_configuration_error"
	ErrCodeServerError          = "server_error"
)

// Error is a typed extension failure. Extensions return these from hooks
// instead of ad-hoc errors so the endpoint layer can map them to protocol
// error codes, and operators get a recovery suggestion in the logs.
type Error struct {
	Code               string
	Extension          string
	Description        string
	RecoverySuggestion string
	Err                error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Extension, e.Code, e.Description, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Extension, e.Code, e.Description)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// OAuthErrorCode maps the extension failure onto the RFC 6749 error
// vocabulary for wire responses.
func (e *Error) OAuthErrorCode() string {
	switch e.Code {
	case ErrCodeInvalidParameter, ErrCodeValidationFailed:
		return "invalid_request"
	case ErrCodeUnsupportedExtension:
		return "invalid_request"
	default:
		return "server_error"
	}
}

// NewError builds a typed extension error.
func NewError(extensionID, code, description, recovery string, err error) *Error {
	return &Error{
		Code:               code,
		Extension:          extensionID,
		Description:        description,
		RecoverySuggestion: recovery,
		Err:                err,
	}
}
