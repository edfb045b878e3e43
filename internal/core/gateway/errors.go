package gateway

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every failure leaving this package matches exactly one of them
// with errors.Is.
var (
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrValidation          = errors.New("validation failed")
	ErrUpstreamUnavailable = errors.New("source host unavailable")
	ErrSubmission          = errors.New("job submission failed")
	ErrPollTransport       = errors.New("job status poll failed")
	ErrPersistence         = errors.New("documentation persistence failed")
	// ErrNotFound accompanies ErrPersistence or ErrUpstreamUnavailable when
	// the remote side answered 404.
	ErrNotFound = errors.New("not found")
)

// Error describes a failed gateway operation.
type Error struct {
	Op      string
	Kind    error
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": ")
	b.WriteString(e.Kind.Error())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// UserMessage is the text safe to show next to a form or in a notification.
func (e *Error) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.Error()
}

// ValidationError carries field-level problems reported by the backend.
type ValidationError struct {
	Message string
	Fields  map[string][]string
}

func (e *ValidationError) Error() string {
	if msg := e.First(); msg != "" {
		return msg
	}
	if e.Message != "" {
		return e.Message
	}
	return ErrValidation.Error()
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// First returns the first field message in a stable field order.
func (e *ValidationError) First() string {
	for _, field := range sortedKeys(e.Fields) {
		if msgs := e.Fields[field]; len(msgs) > 0 {
			return msgs[0]
		}
	}
	return ""
}

func newError(op string, kind error, status int, msg string, err error) *Error {
	return &Error{Op: op, Kind: kind, Status: status, Message: msg, Err: err}
}

// UserMessage extracts a presentable message from any error.
func UserMessage(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	var ge *Error
	if errors.As(err, &ge) {
		return ge.UserMessage()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
