// Package nav holds the route stack the screens move through.
package nav

import (
	"strings"
	"sync"
)

// Default routes.
const (
	RouteLogin    = "/login"
	RouteRegister = "/register"
	RouteMain     = "/main"
)

// Listener is called after every change of the current route.
type Listener func(route string)

// History is a route stack. Replace swaps the top entry so the replaced route
// is unreachable with Back; Push adds an entry on top.
type History struct {
	mu        sync.RWMutex
	stack     []string
	listeners []Listener
}

// NewHistory returns a history whose only entry is initial.
func NewHistory(initial string) *History {
	return &History{stack: []string{normalize(initial)}}
}

// Current returns the route on top of the stack.
func (h *History) Current() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.stack) == 0 {
		return ""
	}
	return h.stack[len(h.stack)-1]
}

// Depth returns the number of entries in the stack.
func (h *History) Depth() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.stack)
}

// Entries returns a copy of the stack, bottom first.
func (h *History) Entries() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, len(h.stack))
	copy(out, h.stack)
	return out
}

// Replace swaps the current route for route.
func (h *History) Replace(route string) {
	route = normalize(route)
	h.mu.Lock()
	if len(h.stack) == 0 {
		h.stack = append(h.stack, route)
	} else {
		h.stack[len(h.stack)-1] = route
	}
	listeners := h.snapshotListeners()
	h.mu.Unlock()

	notify(listeners, route)
}

// Push adds route on top of the stack.
func (h *History) Push(route string) {
	route = normalize(route)
	h.mu.Lock()
	h.stack = append(h.stack, route)
	listeners := h.snapshotListeners()
	h.mu.Unlock()

	notify(listeners, route)
}

// Back pops the current route. It reports false when there is nothing to go
// back to.
func (h *History) Back() bool {
	h.mu.Lock()
	if len(h.stack) < 2 {
		h.mu.Unlock()
		return false
	}
	h.stack = h.stack[:len(h.stack)-1]
	route := h.stack[len(h.stack)-1]
	listeners := h.snapshotListeners()
	h.mu.Unlock()

	notify(listeners, route)
	return true
}

// OnChange registers fn to be called after each route change.
func (h *History) OnChange(fn Listener) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, fn)
}

func (h *History) snapshotListeners() []Listener {
	if len(h.listeners) == 0 {
		return nil
	}
	out := make([]Listener, len(h.listeners))
	copy(out, h.listeners)
	return out
}

func notify(listeners []Listener, route string) {
	for _, fn := range listeners {
		fn(route)
	}
}

func normalize(route string) string {
	route = strings.TrimSpace(route)
	if route == "" {
		return "/"
	}
	if !strings.HasPrefix(route, "/") {
		route = "/" + route
	}
	return route
}
