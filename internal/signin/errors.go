package signin

import (
	"errors"
	"fmt"

	"github.com/Dicklesworthstone/stride/internal/identity"
)

// Code classifies why a flow did not end signed in.
type Code int

const (
	// CodeNotReady - preconditions missing (service not loaded, no activator).
	CodeNotReady Code = iota + 1
	// CodeBusy - a submission is already in flight.
	CodeBusy
	// CodeIncomplete - the service wants a further verification step.
	CodeIncomplete
	// CodeCancelled - the user backed out of the external provider.
	CodeCancelled
	// CodeTransport - the service, the provider or activation failed.
	CodeTransport
)

func (c Code) String() string {
	switch c {
	case CodeNotReady:
		return "not_ready"
	case CodeBusy:
		return "busy"
	case CodeIncomplete:
		return "incomplete"
	case CodeCancelled:
		return "cancelled"
	case CodeTransport:
		return "transport"
	default:
		return fmt.Sprintf("code(%d)", int(c))
	}
}

var (
	ErrNotReady   = errors.New("sign-in not ready")
	ErrBusy       = errors.New("sign-in already in progress")
	ErrIncomplete = errors.New("sign-in needs a further step")
	ErrCancelled  = errors.New("sign-in cancelled")
	ErrTransport  = errors.New("sign-in failed")
)

// errSuperseded is returned by the screen's activator when the gate already
// navigated because another sign-in landed first.
var errSuperseded = errors.New("session already active")

func (c Code) sentinel() error {
	switch c {
	case CodeNotReady:
		return ErrNotReady
	case CodeBusy:
		return ErrBusy
	case CodeIncomplete:
		return ErrIncomplete
	case CodeCancelled:
		return ErrCancelled
	case CodeTransport:
		return ErrTransport
	default:
		return nil
	}
}

// Error is a flow result other than a completed sign-in.
type Error struct {
	Code    Code
	Op      string
	Attempt *identity.SignInAttempt // set for CodeIncomplete
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return "sign-in error"
	}

	msg := e.Code.String()
	if sentinel := e.Code.sentinel(); sentinel != nil {
		msg = sentinel.Error()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Code == CodeIncomplete && e.Attempt != nil {
		msg += fmt.Sprintf(" (status %s)", e.Attempt.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches the sentinel for the error's code.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	return target != nil && target == e.Code.sentinel()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Silent reports whether the error should not be surfaced to the user.
func (e *Error) Silent() bool {
	if e == nil {
		return true
	}
	switch e.Code {
	case CodeNotReady, CodeBusy, CodeCancelled:
		return true
	default:
		return false
	}
}

// IsSilent reports whether err is a silent sign-in error.
func IsSilent(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Silent()
	}
	return false
}
