package core

// Error codes surfaced to clients as protocol error frames.
const (
	ErrCodeBadIdentity = "bad_identity"
	ErrCodeBadRequest  = "bad_request"
	ErrCodeUnknownType = "unknown_type"
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
