// Package debounce throttles bursts of pw-mon events into single refreshes.
package debounce

import (
	"sync"
	"time"
)

// DefaultWindow is the minimum spacing between two accepted events
const DefaultWindow = 50 * time.Millisecond

// Gate accepts an event only if the window has elapsed since the last
// accepted one. A fresh or reset gate accepts its first event unconditionally.
type Gate struct {
	mu     sync.Mutex
	window time.Duration
	last   time.Time
	primed bool
}

// NewGate creates a gate with the given window, DefaultWindow if not positive
func NewGate(window time.Duration) *Gate {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Gate{window: window}
}

// Accept reports whether an event arriving at now should trigger a refresh.
// Rejected events leave the gate untouched.
func (g *Gate) Accept(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.primed && now.Sub(g.last) < g.window {
		return false
	}
	g.last = now
	g.primed = true
	return true
}

// Reset forgets the last accepted event
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.last = time.Time{}
	g.primed = false
}

// Window returns the configured window
func (g *Gate) Window() time.Duration {
	return g.window
}
