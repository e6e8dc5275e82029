// Package probe is the session for the MicroPython temperature probe. The
// probe runs a REPL: it echoes every request behind a ">>> " prompt before
// printing the result.
package probe

import (
	"errors"
	"fmt"

	"github.com/banshee-data/balance.report/internal/command"
	"github.com/banshee-data/balance.report/internal/discovery"
	"github.com/banshee-data/balance.report/internal/protocol"
	"github.com/banshee-data/balance.report/internal/session"
	"github.com/banshee-data/balance.report/internal/transport"
)

// DevicePrefix is where the probe's USB CDC port appears on Linux.
const DevicePrefix = "/dev/ttyA"

// Probe is a session with one temperature probe. It is not safe for
// concurrent use.
type Probe struct {
	core  *session.Core
	proto protocol.Protocol
}

// New creates a disconnected session. An empty cfg.Path is resolved among
// ports under DevicePrefix at Connect time.
func New(cfg transport.PortConfig, opts ...session.Option) *Probe {
	return &Probe{
		core:  session.NewCore("probe", cfg, discovery.PathPrefix(DevicePrefix), opts...),
		proto: protocol.Echo{Prompt: protocol.DefaultPrompt},
	}
}

// Connect opens the port and drops whatever the REPL printed before it.
func (p *Probe) Connect() error {
	tr, err := p.core.Open()
	if err != nil {
		return fmt.Errorf("failed to connect probe: %w", err)
	}
	if err := tr.Discard(); err != nil {
		return fmt.Errorf("failed to connect probe: %w", p.core.Fault(err))
	}
	p.core.Establish()
	return nil
}

// Read returns one temperature sample.
func (p *Probe) Read() (float64, error) {
	tr, err := p.core.Ready()
	if err != nil {
		return 0, err
	}
	if err := tr.Discard(); err != nil {
		return 0, p.core.Observe(err)
	}

	line, err := p.proto.Exchange(tr, command.Encode(command.ReadTemperature))
	if err != nil {
		var mismatch *protocol.ProtocolMismatchError
		if errors.As(err, &mismatch) {
			// the payload that followed the bad echo is meaningless
			p.core.Logger().Warn("probe echo mismatch", "expected", mismatch.Expected, "actual", mismatch.Actual)
			if derr := tr.Discard(); derr != nil {
				return 0, p.core.Observe(derr)
			}
			return 0, err
		}
		return 0, p.core.Observe(err)
	}
	return protocol.ParseNumeric(line)
}

// Disconnect releases the port. It is valid in every state.
func (p *Probe) Disconnect() error {
	return p.core.Close()
}

// State returns the session state.
func (p *Probe) State() session.State { return p.core.State() }

// Port returns the device path in use.
func (p *Probe) Port() string { return p.core.Port() }

// Err returns the error that last faulted the session.
func (p *Probe) Err() error { return p.core.Err() }
