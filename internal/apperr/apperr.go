// Package apperr classifies failures so the dispatcher can decide how a
// failure is reported to the chat and to the operational logs.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the failure class of an error.
type Kind int

const (
	// KindInternal is anything that does not fit a more specific class.
	KindInternal Kind = iota
	// KindUserInput is a problem with what the user sent (bad caption, missing images).
	KindUserInput
	// KindLocalIO is a local file read/write failure.
	KindLocalIO
	// KindTransient is a remote failure that may succeed if attempted again.
	KindTransient
	// KindConfig is a missing or invalid configuration value or secret.
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindUserInput:
		return "user_input"
	case KindLocalIO:
		return "local_io"
	case KindTransient:
		return "transient"
	case KindConfig:
		return "config"
	default:
		return "internal"
	}
}

// Standard error codes.
const (
	CodeUnknown    = "UNKNOWN"
	CodeDatabase   = "DATABASE"
	CodeValidation = "VALIDATION"
	CodeStorage    = "STORAGE"
	CodeInference  = "INFERENCE"
	CodeIO         = "IO"
	CodeConfig     = "CONFIG"
	CodeUserInput  = "USER_INPUT"
	CodeChat       = "CHAT"
)

// Error is a classified application error.
type Error struct {
	kind    Kind
	code    string
	message string
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.message, e.err)
	}
	return e.message
}

// Kind returns the failure class.
func (e *Error) Kind() Kind { return e.kind }

// Code returns the error code.
func (e *Error) Code() string { return e.code }

// Message returns the message without the cause.
func (e *Error) Message() string { return e.message }

func (e *Error) Unwrap() error { return e.err }

// New creates a classified error.
func New(kind Kind, code, message string, cause error) error {
	return &Error{kind: kind, code: code, message: message, err: cause}
}

// UserInput creates an error whose message is shown to the user as is.
func UserInput(message string) error {
	return New(KindUserInput, CodeUserInput, message, nil)
}

// LocalIO wraps a local file failure.
func LocalIO(message string, cause error) error {
	return New(KindLocalIO, CodeIO, message, cause)
}

// Transient wraps a remote failure that may be retried.
func Transient(code, message string, cause error) error {
	return New(KindTransient, code, message, cause)
}

// Config wraps a configuration or secret failure.
func Config(message string, cause error) error {
	return New(KindConfig, CodeConfig, message, cause)
}

// Validation wraps a local validation failure. It is never retried.
func Validation(message string, cause error) error {
	return New(KindInternal, CodeValidation, message, cause)
}

// KindOf returns the kind of the first classified error in the chain,
// or KindInternal when there is none.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.kind
	}
	return KindInternal
}

// CodeOf returns the code of the first classified error in the chain,
// or CodeUnknown when there is none.
func CodeOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.code
	}
	return CodeUnknown
}

// IsUserInput reports whether err is a user input error.
func IsUserInput(err error) bool {
	return err != nil && KindOf(err) == KindUserInput
}

// UserMessage returns the text to show the user for a user input error.
func UserMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.kind == KindUserInput {
		return appErr.message
	}
	return err.Error()
}
