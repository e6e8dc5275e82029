// Package balance is the session for A&D FX-i/FX-iN laboratory balances,
// which answer each request with a single CR LF terminated line.
package balance

import (
	"errors"
	"fmt"
	"strings"

	"github.com/banshee-data/balance.report/internal/command"
	"github.com/banshee-data/balance.report/internal/discovery"
	"github.com/banshee-data/balance.report/internal/protocol"
	"github.com/banshee-data/balance.report/internal/session"
	"github.com/banshee-data/balance.report/internal/transport"
)

// ErrUnsupportedCommand is returned by Send for commands the balance
// session does not issue on its own.
var ErrUnsupportedCommand = errors.New("command not supported by the balance session")

// Mode selects how the balance reports a weight.
type Mode int

const (
	// Stable waits for the reading to settle.
	Stable Mode = iota
	// Immediate returns the current reading, settled or not.
	Immediate
	// Continuous asks the balance to stream readings. Each GetWeight call
	// returns the next line; nothing reads ahead between calls.
	Continuous
)

// ParseMode accepts "stable", "immediate" and "continuous".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "stable":
		return Stable, nil
	case "immediate":
		return Immediate, nil
	case "continuous":
		return Continuous, nil
	}
	return Stable, fmt.Errorf("unknown weight mode %q: expected stable, immediate or continuous", s)
}

func (m Mode) String() string {
	switch m {
	case Stable:
		return "stable"
	case Immediate:
		return "immediate"
	case Continuous:
		return "continuous"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Command returns the request issued for m.
func (m Mode) Command() command.Command {
	switch m {
	case Immediate:
		return command.GetWeightImmediate
	case Continuous:
		return command.GetWeightContinuous
	}
	return command.GetWeightStable
}

// Identity is captured from the balance while connecting.
type Identity struct {
	Model        string `json:"model"`
	SerialNumber string `json:"serial_number"`
	ID           string `json:"id"`
}

// Balance is a session with one balance. It is not safe for concurrent use.
type Balance struct {
	core     *session.Core
	proto    protocol.Protocol
	identity Identity
}

// New creates a disconnected session. An empty cfg.Path is resolved among
// USB-serial adapters at Connect time.
func New(cfg transport.PortConfig, opts ...session.Option) *Balance {
	return &Balance{
		core:  session.NewCore("balance", cfg, discovery.USBSerial, opts...),
		proto: protocol.Plain{},
	}
}

// Connect opens the port, reads the balance's id, serial number and model,
// then switches the display on. Any failure leaves the session Faulted.
func (b *Balance) Connect() error {
	tr, err := b.core.Open()
	if err != nil {
		return fmt.Errorf("failed to connect balance: %w", err)
	}

	var id Identity
	queries := []struct {
		cmd command.Command
		dst *string
	}{
		{command.GetID, &id.ID},
		{command.GetSerialNumber, &id.SerialNumber},
		{command.GetModelName, &id.Model},
	}
	for _, q := range queries {
		fields, err := b.query(tr, q.cmd)
		if err != nil {
			return fmt.Errorf("failed to identify balance (%s): %w", q.cmd, b.core.Fault(err))
		}
		*q.dst = fields[len(fields)-1]
	}

	if err := tr.WriteLine(command.Encode(command.On)); err != nil {
		return fmt.Errorf("failed to switch balance on: %w", b.core.Fault(err))
	}

	b.identity = id
	b.core.Establish()
	b.core.Logger().Info("balance identified",
		"model", id.Model, "serial_number", id.SerialNumber, "id", id.ID)
	return nil
}

// GetWeight requests a weight in the given mode.
func (b *Balance) GetWeight(mode Mode) (protocol.Reading, error) {
	return b.reading(mode.Command())
}

// Tare zeroes the balance and returns the reading it reports.
func (b *Balance) Tare() (protocol.Reading, error) {
	return b.reading(command.Tare)
}

// GetTare returns the current tare without changing it.
func (b *Balance) GetTare() (protocol.Reading, error) {
	return b.reading(command.GetTare)
}

// On switches the balance display on.
func (b *Balance) On() error {
	return b.fire(command.On)
}

// Off switches the balance display off.
func (b *Balance) Off() error {
	return b.fire(command.Off)
}

// Send issues one command and returns the comma-separated fields of its
// reply. On and Off have no reply and return nil fields.
func (b *Balance) Send(c command.Command) ([]string, error) {
	switch c {
	case command.On, command.Off:
		return nil, b.fire(c)
	case command.SetTare, command.ReadTemperature:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCommand, c)
	}
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCommand, c)
	}

	tr, err := b.core.Ready()
	if err != nil {
		return nil, err
	}
	fields, err := b.query(tr, c)
	if err != nil {
		return nil, b.core.Observe(err)
	}
	return fields, nil
}

// Disconnect releases the port. It is valid in every state and may be
// called repeatedly.
func (b *Balance) Disconnect() error {
	return b.core.Close()
}

// Identity returns what the balance reported during the last successful
// Connect.
func (b *Balance) Identity() Identity { return b.identity }

// State returns the session state.
func (b *Balance) State() session.State { return b.core.State() }

// Port returns the device path in use.
func (b *Balance) Port() string { return b.core.Port() }

// Err returns the error that last faulted the session.
func (b *Balance) Err() error { return b.core.Err() }

// Summary describes the balance and its current stable weight.
func (b *Balance) Summary() (string, error) {
	r, err := b.GetWeight(Stable)
	if err != nil {
		return "", err
	}

	lines := []string{
		fmt.Sprintf("A&D %s Balance", b.identity.Model),
		fmt.Sprintf("  Serial Number: %s", b.identity.SerialNumber),
		fmt.Sprintf("  ID: %s", b.identity.ID),
		"---",
		fmt.Sprintf("Current Weight: %s", r),
	}
	width := 0
	for _, l := range lines {
		width = max(width, len(l))
	}
	rule := strings.Repeat("*", width)
	return strings.Join(append(append([]string{rule}, lines...), rule), "\n"), nil
}

func (b *Balance) reading(c command.Command) (protocol.Reading, error) {
	tr, err := b.core.Ready()
	if err != nil {
		return protocol.Reading{}, err
	}
	line, err := b.exchange(tr, c)
	if err != nil {
		return protocol.Reading{}, b.core.Observe(err)
	}
	r, err := protocol.ParseWeight(line)
	if err != nil {
		return protocol.Reading{}, fmt.Errorf("%s: %w", c, err)
	}
	return r, nil
}

func (b *Balance) fire(c command.Command) error {
	tr, err := b.core.Ready()
	if err != nil {
		return err
	}
	if err := tr.WriteLine(command.Encode(c)); err != nil {
		return b.core.Observe(err)
	}
	return nil
}

func (b *Balance) query(tr *transport.Transport, c command.Command) ([]string, error) {
	line, err := b.exchange(tr, c)
	if err != nil {
		return nil, err
	}
	return protocol.ParseFields(line), nil
}

// exchange drops stale input, e.g. a late reply to an earlier request,
// before sending c so the reply read is the one c produced.
func (b *Balance) exchange(tr *transport.Transport, c command.Command) (string, error) {
	if err := tr.Discard(); err != nil {
		return "", err
	}
	return b.proto.Exchange(tr, command.Encode(c))
}
