package core

import "fmt"

// Error codes for domain errors.
const (
	ErrCodeInvalidName     = "invalid_name"
	ErrCodeNameTaken       = "name_taken"
	ErrCodeNotLoggedIn     = "not_logged_in"
	ErrCodeAlreadyLoggedIn = "already_logged_in"
	ErrCodeChannelExists   = "channel_exists"
	ErrCodeChannelNotFound = "channel_not_found"
	ErrCodeAlreadyMember   = "already_member"
	ErrCodeNotMember       = "not_member"
	ErrCodeEmptyMessage    = "empty_message"
	ErrCodeBadPayload      = "bad_payload"
	ErrCodeUnknownCommand  = "unknown_command"
)

// CoreError wraps a code and the human-readable message sent back on the
// wire. Validation errors never tear down a connection.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreErrorf(code, format string, args ...any) *CoreError {
	return &CoreError{Code: code, Message: fmt.Sprintf(format, args...)}
}
