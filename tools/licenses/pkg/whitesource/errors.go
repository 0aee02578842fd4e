package whitesource

import (
	"fmt"
)

type ErrorKind string

const (
	ErrorKindConfig     ErrorKind = "config_error"
	ErrorKindNetwork    ErrorKind = "network_error"
	ErrorKindAPI        ErrorKind = "api_error"
	ErrorKindAuth       ErrorKind = "auth_error"
	ErrorKindDecode     ErrorKind = "decode_error"
	ErrorKindValidation ErrorKind = "validation_error"
)

// maxBodyInError bounds how much of a response body is echoed into an error.
const maxBodyInError = 512

// Error is returned by every Client operation. StatusCode is zero when no
// HTTP response was received.
type Error struct {
	Kind       ErrorKind
	Operation  string
	Message    string
	StatusCode int
	Cause      error
}

func (e *Error) Error() string {
	if e.Operation == "" && e.Message == "" {
		return string(e.Kind)
	}
	msg := fmt.Sprintf("%s in %s: %s", e.Kind, e.Operation, e.Message)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind with no operation
// set, so the package sentinels below can be used with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Operation == "" && t.Kind == e.Kind
}

func newError(kind ErrorKind, operation, message string, cause error) *Error {
	return &Error{
		Kind:      kind,
		Operation: operation,
		Message:   message,
		Cause:     cause,
	}
}

func (e *Error) withStatus(code int) *Error {
	e.StatusCode = code
	return e
}

var (
	ErrConfig     = &Error{Kind: ErrorKindConfig}
	ErrNetwork    = &Error{Kind: ErrorKindNetwork}
	ErrAPI        = &Error{Kind: ErrorKindAPI}
	ErrAuth       = &Error{Kind: ErrorKindAuth}
	ErrDecode     = &Error{Kind: ErrorKindDecode}
	ErrValidation = &Error{Kind: ErrorKindValidation}
)

func truncateBody(body []byte) string {
	if len(body) <= maxBodyInError {
		return string(body)
	}
	return string(body[:maxBodyInError]) + "..."
}
