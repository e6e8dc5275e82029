package transport

import (
	"fmt"
	"strings"
	"time"

	"go.bug.st/serial"
)

// Parity defines serial port parity options.
type Parity int

const (
	NoParity Parity = iota
	EvenParity
	OddParity
)

// ParseParity accepts the single-letter and spelled-out parity names used in
// configuration files ("N", "none", "E", "even", "O", "odd").
func ParseParity(s string) (Parity, error) {
	switch strings.TrimSpace(strings.ToUpper(s)) {
	case "", "N", "NONE":
		return NoParity, nil
	case "E", "EVEN":
		return EvenParity, nil
	case "O", "ODD":
		return OddParity, nil
	}
	return NoParity, fmt.Errorf("unsupported parity %q: expected N, E, or O", s)
}

func (p Parity) String() string {
	switch p {
	case NoParity:
		return "N"
	case EvenParity:
		return "E"
	case OddParity:
		return "O"
	}
	return fmt.Sprintf("Parity(%d)", int(p))
}

// MarshalText implements encoding.TextMarshaler.
func (p Parity) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Parity) UnmarshalText(b []byte) error {
	v, err := ParseParity(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Line endings used by the supported instrument families.
const (
	CRLF = "\r\n"
	CR   = "\r"
	// CRFF submits a line to a MicroPython REPL and clears its prompt.
	CRFF = "\r\f"
)

// DefaultReadTimeout is applied when a PortConfig leaves ReadTimeout unset.
const DefaultReadTimeout = time.Second

var standardBaudRates = map[int]bool{
	110: true, 300: true, 600: true, 1200: true, 2400: true, 4800: true,
	9600: true, 14400: true, 19200: true, 28800: true, 38400: true,
	57600: true, 115200: true, 128000: true, 256000: true,
}

// PortConfig describes the serial link to one instrument: the physical line
// settings, how long a single reply may take, and how lines are framed.
type PortConfig struct {
	Path        string        `json:"port_path"`
	BaudRate    int           `json:"baud_rate"`
	DataBits    int           `json:"data_bits"`
	Parity      Parity        `json:"parity"`
	StopBits    int           `json:"stop_bits"`
	ReadTimeout time.Duration `json:"read_timeout"`
	// LineEnding terminates every reply line.
	LineEnding string `json:"line_ending"`
	// RequestEnding is appended to every request. Defaults to LineEnding.
	RequestEnding string `json:"request_ending"`
}

// BalancePortConfig returns the line settings of an A&D FX-i/FX-iN balance:
// 2400 baud, 7E1, CR LF framing and a one second reply window.
func BalancePortConfig(path string) PortConfig {
	return PortConfig{
		Path:          path,
		BaudRate:      2400,
		DataBits:      7,
		Parity:        EvenParity,
		StopBits:      1,
		ReadTimeout:   time.Second,
		LineEnding:    CRLF,
		RequestEnding: CRLF,
	}
}

// ProbePortConfig returns the line settings of the MicroPython temperature
// probe: 115200 baud 8N1, replies terminated by CR, requests by CR FF.
func ProbePortConfig(path string, timeout time.Duration) PortConfig {
	return PortConfig{
		Path:          path,
		BaudRate:      115200,
		DataBits:      8,
		Parity:        NoParity,
		StopBits:      1,
		ReadTimeout:   timeout,
		LineEnding:    CR,
		RequestEnding: CRFF,
	}
}

// Normalise validates the configuration and applies defaults for any unset
// values. The path is not checked; an empty path asks the session to discover
// the port.
func (c PortConfig) Normalise() (PortConfig, error) {
	cfg := c

	if cfg.BaudRate <= 0 {
		return cfg, fmt.Errorf("invalid baud rate %d: must be positive", cfg.BaudRate)
	}
	if !standardBaudRates[cfg.BaudRate] {
		return cfg, fmt.Errorf("invalid baud rate %d: not a standard rate", cfg.BaudRate)
	}

	if cfg.DataBits == 0 {
		cfg.DataBits = 8
	}
	if cfg.DataBits < 5 || cfg.DataBits > 8 {
		return cfg, fmt.Errorf("invalid data bits %d: must be between 5 and 8", cfg.DataBits)
	}

	if cfg.StopBits == 0 {
		cfg.StopBits = 1
	}
	if cfg.StopBits != 1 && cfg.StopBits != 2 {
		return cfg, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", cfg.StopBits)
	}

	switch cfg.Parity {
	case NoParity, EvenParity, OddParity:
	default:
		return cfg, fmt.Errorf("unsupported parity %v", cfg.Parity)
	}

	if cfg.ReadTimeout < 0 {
		return cfg, fmt.Errorf("invalid read timeout %s: must not be negative", cfg.ReadTimeout)
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}

	if cfg.LineEnding == "" {
		cfg.LineEnding = CRLF
	}
	if cfg.RequestEnding == "" {
		cfg.RequestEnding = cfg.LineEnding
	}

	return cfg, nil
}

// WithPath returns a copy of c addressing a different device path.
func (c PortConfig) WithPath(path string) PortConfig {
	c.Path = path
	return c
}

// SerialMode converts the configuration into the serial.Mode structure
// required by go.bug.st/serial when opening a port.
func (c PortConfig) SerialMode() (*serial.Mode, error) {
	cfg, err := c.Normalise()
	if err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
	}

	switch cfg.StopBits {
	case 1:
		mode.StopBits = serial.OneStopBit
	case 2:
		mode.StopBits = serial.TwoStopBits
	}

	switch cfg.Parity {
	case NoParity:
		mode.Parity = serial.NoParity
	case EvenParity:
		mode.Parity = serial.EvenParity
	case OddParity:
		mode.Parity = serial.OddParity
	}

	return mode, nil
}
