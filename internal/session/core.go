// Package session holds the connection lifecycle shared by instrument
// sessions: resolving and opening the port, the Disconnected → Connecting →
// Identified → Faulted state machine, and the rule that only transport-level
// failures fault a session.
package session

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/banshee-data/balance.report/internal/discovery"
	"github.com/banshee-data/balance.report/internal/monitoring"
	"github.com/banshee-data/balance.report/internal/transport"
)

// Core owns one instrument's transport and lifecycle state. Instrument
// sessions embed it as a private field and expose their own operations.
// It is not safe for concurrent use.
type Core struct {
	cfg        transport.PortConfig
	filter     discovery.Filter
	opener     transport.Opener
	enumerator discovery.Enumerator
	logger     *slog.Logger

	state State
	port  string
	tr    *transport.Transport
	err   error
}

// Option configures a Core.
type Option func(*Core)

// WithOpener replaces the serial port opener, e.g. with a test double.
func WithOpener(o transport.Opener) Option {
	return func(c *Core) { c.opener = o }
}

// WithEnumerator replaces the port enumerator used when no path is
// configured.
func WithEnumerator(e discovery.Enumerator) Option {
	return func(c *Core) { c.enumerator = e }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Core) { c.logger = l }
}

// NewCore creates a disconnected Core. An empty cfg.Path is resolved at
// Open time among the candidates accepted by filter.
func NewCore(instrument string, cfg transport.PortConfig, filter discovery.Filter, opts ...Option) *Core {
	c := &Core{
		cfg:        cfg,
		filter:     filter,
		opener:     transport.SerialOpener{},
		enumerator: discovery.SerialEnumerator{},
		logger:     monitoring.Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("instrument", instrument, "session", uuid.NewString())
	return c
}

// Config returns the port configuration the session was created with.
func (c *Core) Config() transport.PortConfig { return c.cfg }

// State returns the current lifecycle state.
func (c *Core) State() State { return c.state }

// Port returns the device path in use, resolved by discovery when the
// configuration left it empty.
func (c *Core) Port() string { return c.port }

// Err returns the error that last faulted the session, or nil.
func (c *Core) Err() error { return c.err }

// Logger returns the session logger.
func (c *Core) Logger() *slog.Logger { return c.logger }

// Open releases any previous transport, enters Connecting, resolves the port
// and opens it. Failures fault the session.
func (c *Core) Open() (*transport.Transport, error) {
	c.release()
	c.state = Connecting
	c.err = nil

	path := c.cfg.Path
	if path == "" {
		candidates, err := discovery.Discover(c.enumerator, c.filter)
		if err != nil {
			return nil, c.Fault(err)
		}
		candidate, err := discovery.Resolve(candidates)
		if err != nil {
			return nil, c.Fault(err)
		}
		path = candidate.Path
		c.logger.Info("discovered serial port", "port", path, "description", candidate.Description)
	}
	c.port = path

	tr, err := transport.Open(c.cfg.WithPath(path), c.opener)
	if err != nil {
		return nil, c.Fault(err)
	}
	c.tr = tr
	return tr, nil
}

// Establish completes Connect and makes the session accept operations.
func (c *Core) Establish() {
	c.state = Identified
	c.logger.Info("instrument connected", "port", c.port)
}

// Fault records err as the cause and moves the session to Faulted. The
// transport stays owned by the session until Disconnect or the next Open.
func (c *Core) Fault(err error) error {
	c.state = Faulted
	c.err = err
	c.logger.Warn("instrument session faulted", "port", c.port, "error", err)
	return err
}

// Ready returns the transport if the session accepts operations, or an
// error naming the state without touching the link.
func (c *Core) Ready() (*transport.Transport, error) {
	switch c.state {
	case Identified:
		return c.tr, nil
	case Faulted:
		return nil, fmt.Errorf("%w (last error: %v)", ErrFaulted, c.err)
	}
	return nil, fmt.Errorf("%w: session is %s", ErrNotConnected, c.state)
}

// Observe inspects the outcome of an operation. Transport-level failures
// fault the session; decode failures on a healthy link are returned as is.
func (c *Core) Observe(err error) error {
	if transport.IsLinkFailure(err) {
		return c.Fault(err)
	}
	return err
}

// Close releases the transport and returns to Disconnected. It is valid in
// every state and a no-op when already disconnected.
func (c *Core) Close() error {
	if c.state == Disconnected && c.tr == nil {
		return nil
	}
	err := c.release()
	c.state = Disconnected
	c.logger.Info("instrument disconnected", "port", c.port)
	return err
}

func (c *Core) release() error {
	if c.tr == nil {
		return nil
	}
	err := c.tr.Close()
	c.tr = nil
	return err
}
