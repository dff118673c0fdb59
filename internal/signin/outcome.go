package signin

import (
	"errors"
	"time"

	"github.com/Dicklesworthstone/stride/internal/identity"
)

// Kind discriminates flow outcomes.
type Kind int

const (
	// KindSkipped - the flow did not run (not ready or busy).
	KindSkipped Kind = iota
	KindSignedIn
	KindIncomplete
	KindCancelled
	KindFailed
)

func (k Kind) String() string {
	switch k {
	case KindSkipped:
		return "skipped"
	case KindSignedIn:
		return "signed_in"
	case KindIncomplete:
		return "incomplete"
	case KindCancelled:
		return "cancelled"
	case KindFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Flow names which path produced an outcome.
type Flow string

const (
	FlowCredential Flow = "credential"
	FlowExternal   Flow = "external"
)

// Outcome is the result of one run of a sign-in flow.
type Outcome struct {
	ID   string
	Flow Flow
	Kind Kind
	// SessionID is the session this flow activated. It is empty on a
	// signed-in outcome when another sign-in was committed first.
	SessionID identity.SessionID
	Attempt   *identity.SignInAttempt
	Err       error
	Started   time.Time
	Duration  time.Duration
}

// SignedIn reports whether the flow ended with the user signed in.
func (o Outcome) SignedIn() bool { return o.Kind == KindSignedIn }

// Code returns the error code of the outcome, or 0 when signed in.
func (o Outcome) Code() Code {
	var se *Error
	if errors.As(o.Err, &se) {
		return se.Code
	}
	return 0
}

// Silent reports whether the outcome should be kept out of the UI.
func (o Outcome) Silent() bool {
	return o.Kind == KindSignedIn || IsSilent(o.Err)
}

func skipped(flow Flow, code Code, op string, at time.Time) Outcome {
	return Outcome{
		Flow:    flow,
		Kind:    KindSkipped,
		Err:     &Error{Code: code, Op: op},
		Started: at,
	}
}
