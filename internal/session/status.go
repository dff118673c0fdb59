package session

import "github.com/Dicklesworthstone/stride/internal/identity"

// Status is the authentication status of the process.
type Status int

const (
	// StatusLoading - the identity service has not finished its initial load.
	StatusLoading Status = iota
	// StatusSignedIn - an active session is committed.
	StatusSignedIn
	// StatusSignedOut - no active session.
	StatusSignedOut
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusSignedIn:
		return "signed-in"
	case StatusSignedOut:
		return "signed-out"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time view of the session context.
type Snapshot struct {
	Ready     bool
	Status    Status
	SessionID identity.SessionID
	UserID    string
	// Offline is set when the stored session was trusted without confirming
	// it against the identity service.
	Offline bool
}

// SignedIn reports whether the snapshot is ready and signed in.
func (s Snapshot) SignedIn() bool {
	return s.Ready && s.Status == StatusSignedIn
}
