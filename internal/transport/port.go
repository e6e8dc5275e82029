package transport

import (
	"io"
	"time"
)

// SerialPorter defines the minimal interface needed for a serial port.
// This abstraction enables unit testing without real serial hardware.
type SerialPorter interface {
	io.ReadWriter
	io.Closer
}

// TimeoutSerialPorter extends SerialPorter with timeout capabilities.
// This is an optional interface that serial ports may implement.
type TimeoutSerialPorter interface {
	SerialPorter
	// SetReadTimeout sets the read timeout for the serial port.
	SetReadTimeout(timeout time.Duration) error
}

// InputResetter is implemented by ports that can drop bytes waiting in the
// OS receive buffer.
type InputResetter interface {
	ResetInputBuffer() error
}

// Opener opens a serial port at the path named in cfg.
type Opener interface {
	Open(cfg PortConfig) (SerialPorter, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(cfg PortConfig) (SerialPorter, error)

// Open calls f(cfg).
func (f OpenerFunc) Open(cfg PortConfig) (SerialPorter, error) {
	return f(cfg)
}
