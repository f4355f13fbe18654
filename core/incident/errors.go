package incident

import "errors"

// Failure taxonomy shared by the server handlers and the polling client.
// Validation and permission failures are resolved before any network or
// storage effect; network and rejection failures surface to the caller with
// prior state untouched.
var (
	ErrValidation       = errors.New("validation error")
	ErrPermissionDenied = errors.New("permission denied")
	ErrNetwork          = errors.New("network error")
	ErrServerRejected   = errors.New("server rejected")
)
