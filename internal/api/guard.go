package api

import (
	"sync"

	"github.com/banshee-data/balance.report/internal/session"
)

// Session is the part of an instrument session the guard needs.
type Session interface {
	Connect() error
	Disconnect() error
	State() session.State
}

// Guarded serialises access to a session shared by HTTP handlers and the
// reconnect loop. It satisfies reconnect.Target.
type Guarded[S Session] struct {
	mu   sync.Mutex
	name string
	s    S
	// held is set by Disconnect and cleared by Connect; the reconnect loop
	// leaves a held session alone.
	held bool
}

// Guard wraps s under name.
func Guard[S Session](name string, s S) *Guarded[S] {
	return &Guarded[S]{name: name, s: s}
}

// Name identifies the instrument in logs and responses.
func (g *Guarded[S]) Name() string { return g.name }

// State returns the session state.
func (g *Guarded[S]) State() session.State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.s.State()
}

// Held reports whether the session was disconnected on request and has not
// been connected since.
func (g *Guarded[S]) Held() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.held
}

// Connect (re)connects the session and lets the reconnect loop retry it
// again after a fault.
func (g *Guarded[S]) Connect() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.held = false
	return g.s.Connect()
}

// Disconnect releases the session and keeps the reconnect loop from
// reopening it until the next Connect.
func (g *Guarded[S]) Disconnect() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.held = true
	return g.s.Disconnect()
}

// Reconnect connects the session unless it is identified or held. The check
// and the connect happen under one lock so a concurrent Disconnect cannot
// slip in between.
func (g *Guarded[S]) Reconnect() (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held || g.s.State() == session.Identified {
		return false, nil
	}
	return true, g.s.Connect()
}

// Do runs fn with exclusive use of the session.
func (g *Guarded[S]) Do(fn func(S) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fn(g.s)
}
