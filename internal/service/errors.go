package service

import (
	"errors"
	"fmt"
)

// UserError is a failure whose message is safe to show to the user as-is.
// Code is a short machine-readable reason.
type UserError struct {
	Message string
	Code    string
}

// Error returns the user-facing message.
func (e *UserError) Error() string {
	return e.Message
}

// userErrorf builds a UserError with a formatted message.
func userErrorf(code, format string, args ...interface{}) *UserError {
	return &UserError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AsUserError unwraps err into a UserError when it is one.
func AsUserError(err error) (*UserError, bool) {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}

// Error codes used by services.
const (
	CodeInvalidInput  = "invalid_input"
	CodeNotFound      = "not_found"
	CodeNotConnected  = "not_connected"
	CodeNeedsMoreInfo = "needs_more_info"
)
