package signin

import (
	"sync/atomic"

	"github.com/Dicklesworthstone/stride/internal/session"
)

// Gate lets at most one navigation through per screen instance. It wraps
// the real navigator and is handed to the flows in its place, so the
// auto-redirect and a flow finishing can never both navigate.
type Gate struct {
	nav     Navigator
	route   string
	fired   atomic.Bool
	onEnter func(route string)
}

// NewGate returns a gate navigating to route through nav.
func NewGate(nav Navigator, route string) *Gate {
	return &Gate{nav: nav, route: route}
}

// Replace implements Navigator. Only the first call reaches the wrapped
// navigator.
func (g *Gate) Replace(route string) {
	g.fire(route)
}

// Enter navigates to the gate's route if nothing navigated yet. It reports
// whether this call navigated.
func (g *Gate) Enter() bool {
	return g.fire(g.route)
}

func (g *Gate) fire(route string) bool {
	if route == "" {
		route = g.route
	}
	if !g.fired.CompareAndSwap(false, true) {
		return false
	}
	if g.nav != nil {
		g.nav.Replace(route)
	}
	if g.onEnter != nil {
		g.onEnter(route)
	}
	return true
}

// Evaluate enters when snap is ready and signed in.
func (g *Gate) Evaluate(snap session.Snapshot) bool {
	if !snap.SignedIn() {
		return false
	}
	return g.Enter()
}

// Fired reports whether the gate already navigated.
func (g *Gate) Fired() bool {
	return g.fired.Load()
}
