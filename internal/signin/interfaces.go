// Package signin implements the sign-in flows and the state machine of the
// sign-in screen.
//
// Two flows exist: credentials (identifier + secret) and an external
// provider redirect. Both end the same way on success: the issued session is
// activated, then the navigator replaces the current route with the main
// route. Anything else produces an Outcome carrying an *Error whose Code
// tells the caller whether to surface it.
package signin

import (
	"context"

	"github.com/Dicklesworthstone/stride/internal/identity"
	"github.com/Dicklesworthstone/stride/internal/session"
)

// Activator commits a session handle as the process's active session.
type Activator interface {
	Activate(ctx context.Context, id identity.SessionID) error
}

// Navigator moves between routes.
type Navigator interface {
	Replace(route string)
}

// ExternalProvider runs a redirect-based sign-in. An empty CreatedSessionID
// in the result means the user backed out.
type ExternalProvider interface {
	StartExternalFlow(ctx context.Context) (identity.OAuthResult, error)
}

// SessionContext is the read side of the session manager.
type SessionContext interface {
	Ready() bool
	Status() session.Status
}

// Reporter receives every outcome that is not skipped.
type Reporter interface {
	Report(o Outcome)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Outcome)

// Report implements Reporter.
func (f ReporterFunc) Report(o Outcome) { f(o) }

// Reporters fans an outcome out to several reporters.
type Reporters []Reporter

// Report implements Reporter.
func (rs Reporters) Report(o Outcome) {
	for _, r := range rs {
		if r != nil {
			r.Report(o)
		}
	}
}
