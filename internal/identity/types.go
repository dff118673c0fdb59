// Package identity talks to the hosted identity service that owns stride's
// credentials and sessions.
//
// The service is treated as an opaque system of record: the client submits
// sign-in attempts, reads back the attempt status and asks the service to make
// a session the active one. Nothing in here knows about screens or routes.
package identity

import (
	"context"
	"time"
)

// SessionID is the opaque handle the identity service issues for an
// authenticated session.
type SessionID string

// String implements fmt.Stringer.
func (s SessionID) String() string { return string(s) }

// IsZero reports whether no session was issued.
func (s SessionID) IsZero() bool { return s == "" }

// Credentials is the identifier/secret pair typed by the user.
type Credentials struct {
	Identifier string
	Secret     string
}

// SignInStatus is the state of a sign-in attempt as reported by the service.
type SignInStatus string

const (
	StatusComplete          SignInStatus = "complete"
	StatusNeedsIdentifier   SignInStatus = "needs_identifier"
	StatusNeedsFirstFactor  SignInStatus = "needs_first_factor"
	StatusNeedsSecondFactor SignInStatus = "needs_second_factor"
	StatusNeedsNewPassword  SignInStatus = "needs_new_password"
)

// Complete reports whether the attempt produced a session.
func (s SignInStatus) Complete() bool { return s == StatusComplete }

// Strategy selects how a sign-in attempt is verified.
type Strategy string

const (
	StrategyPassword         Strategy = "password"
	StrategyGoogleOAuthToken Strategy = "oauth_token_google"
)

// SignInParams is the body of a sign-in attempt.
type SignInParams struct {
	Strategy   Strategy `json:"strategy"`
	Identifier string   `json:"identifier,omitempty"`
	Password   string   `json:"password,omitempty"`
	Token      string   `json:"token,omitempty"`
}

// PasswordParams builds password sign-in params from typed credentials.
func PasswordParams(c Credentials) SignInParams {
	return SignInParams{
		Strategy:   StrategyPassword,
		Identifier: c.Identifier,
		Password:   c.Secret,
	}
}

// SignInAttempt is the service's answer to a submitted sign-in.
type SignInAttempt struct {
	ID                    string       `json:"id"`
	Status                SignInStatus `json:"status"`
	Identifier            string       `json:"identifier,omitempty"`
	CreatedSessionID      SessionID    `json:"created_session_id,omitempty"`
	SupportedFirstFactors []Factor     `json:"supported_first_factors,omitempty"`
	SupportedSecondFactor []Factor     `json:"supported_second_factors,omitempty"`
}

// Factor describes a verification step the service can ask for.
type Factor struct {
	Strategy  string `json:"strategy"`
	SafeIdent string `json:"safe_identifier,omitempty"`
}

// OAuthResult is what an external provider flow hands back. An empty
// CreatedSessionID means the user backed out or the provider declined.
type OAuthResult struct {
	CreatedSessionID SessionID
}

// Session is a session known to the current client.
type Session struct {
	ID         SessionID `json:"id"`
	Status     string    `json:"status"`
	UserID     string    `json:"user_id"`
	LastActive time.Time `json:"last_active_at"`
}

// ClientState is the client object returned by Load.
type ClientState struct {
	ID                  string    `json:"id"`
	Sessions            []Session `json:"sessions"`
	LastActiveSessionID SessionID `json:"last_active_session_id,omitempty"`
}

// Find returns the session with the given ID.
func (c *ClientState) Find(id SessionID) (Session, bool) {
	if c == nil || id.IsZero() {
		return Session{}, false
	}
	for _, s := range c.Sessions {
		if s.ID == id {
			return s, true
		}
	}
	return Session{}, false
}

// Service is the slice of the identity service the sign-in flows use.
type Service interface {
	// Loaded reports whether the client finished its initial load.
	Loaded() bool
	CreateSignIn(ctx context.Context, params SignInParams) (*SignInAttempt, error)
	SetActiveSession(ctx context.Context, id SessionID) (*Session, error)
}
