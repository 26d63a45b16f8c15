// Package llmerr defines the closed error taxonomy modelkit surfaces to
// callers: Unsupported, InvalidInput, Invariant, Refusal, and
// NotImplemented. Every variant is a typed struct implementing error;
// Unsupported, InvalidInput and Invariant also implement errors.Unwrap.
package llmerr

import (
	"errors"
	"fmt"
)

// UnsupportedError indicates the input uses a capability the selected
// provider/model cannot express (e.g. audio input to Anthropic).
type UnsupportedError struct {
	Provider string
	Detail   string
	Cause    error
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s: unsupported: %s", e.Provider, e.Detail)
}

func (e *UnsupportedError) Unwrap() error { return e.Cause }

// NewUnsupported creates an UnsupportedError carrying the provider name and
// offending detail (e.g. the part type).
func NewUnsupported(provider, detail string) *UnsupportedError {
	return &UnsupportedError{Provider: provider, Detail: detail}
}

// IsUnsupported reports whether err is (or wraps) an UnsupportedError.
func IsUnsupported(err error) bool {
	var e *UnsupportedError
	return errors.As(err, &e)
}

// InvalidInputError indicates the caller's input itself is malformed.
type InvalidInputError struct {
	Detail string
	Cause  error
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s", e.Detail)
}

func (e *InvalidInputError) Unwrap() error { return e.Cause }

func NewInvalidInput(detail string) *InvalidInputError {
	return &InvalidInputError{Detail: detail}
}

func IsInvalidInput(err error) bool {
	var e *InvalidInputError
	return errors.As(err, &e)
}

// InvariantError indicates the vendor response violated an expectation the
// library assumes always holds (no choices, unparsable tool-call JSON,
// refusal text with no finish reason, ...).
type InvariantError struct {
	Detail string
	Cause  error
}

func (e *InvariantError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invariant violated: %s: %v", e.Detail, e.Cause)
	}
	return fmt.Sprintf("invariant violated: %s", e.Detail)
}

func (e *InvariantError) Unwrap() error { return e.Cause }

func NewInvariant(detail string, cause error) *InvariantError {
	return &InvariantError{Detail: detail, Cause: cause}
}

func IsInvariant(err error) bool {
	var e *InvariantError
	return errors.As(err, &e)
}

// RefusalError indicates the vendor reported a policy refusal.
type RefusalError struct {
	Text string
}

func (e *RefusalError) Error() string {
	return fmt.Sprintf("refused: %s", e.Text)
}

func NewRefusal(text string) *RefusalError {
	return &RefusalError{Text: text}
}

func IsRefusal(err error) bool {
	var e *RefusalError
	return errors.As(err, &e)
}

// NotImplementedError indicates the library saw a known-but-unhandled
// vendor field that MUST be reported rather than silently discarded.
type NotImplementedError struct {
	Provider string
	Detail   string
}

func (e *NotImplementedError) Error() string {
	return fmt.Sprintf("%s: not implemented: %s", e.Provider, e.Detail)
}

func NewNotImplemented(provider, detail string) *NotImplementedError {
	return &NotImplementedError{Provider: provider, Detail: detail}
}

func IsNotImplemented(err error) bool {
	var e *NotImplementedError
	return errors.As(err, &e)
}
