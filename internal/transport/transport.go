// Package transport owns the physical serial link to an instrument. It frames
// outgoing requests with the instrument's line ending and splits the incoming
// byte stream into terminator-delimited lines. It never retries; retry policy
// belongs to the session or its caller.
package transport

import (
	"bytes"
	"fmt"
	"time"
)

const readChunk = 256

// Transport is a line-oriented wrapper over one open serial port. It is not
// safe for concurrent use; a single session owns it.
type Transport struct {
	port    SerialPorter
	cfg     PortConfig
	pending []byte
	closed  bool
}

// Open normalises cfg, opens the port through opener and applies the read
// timeout when the port supports one.
func Open(cfg PortConfig, opener Opener) (*Transport, error) {
	cfg, err := cfg.Normalise()
	if err != nil {
		return nil, &ConnectionError{Path: cfg.Path, Err: err}
	}
	if opener == nil {
		opener = SerialOpener{}
	}

	port, err := opener.Open(cfg)
	if err != nil {
		return nil, &ConnectionError{Path: cfg.Path, Err: err}
	}

	if tp, ok := port.(TimeoutSerialPorter); ok {
		if err := tp.SetReadTimeout(cfg.ReadTimeout); err != nil {
			port.Close()
			return nil, &ConnectionError{Path: cfg.Path, Err: fmt.Errorf("failed to set read timeout: %w", err)}
		}
	}

	return New(port, cfg), nil
}

// New wraps an already open port. cfg is expected to be normalised.
func New(port SerialPorter, cfg PortConfig) *Transport {
	return &Transport{port: port, cfg: cfg}
}

// Config returns the configuration the transport was opened with.
func (t *Transport) Config() PortConfig {
	return t.cfg
}

// WriteLine writes payload followed by the request ending.
func (t *Transport) WriteLine(payload []byte) error {
	if t.closed {
		return &IOError{Op: "write", Err: ErrClosed}
	}

	frame := make([]byte, 0, len(payload)+len(t.cfg.RequestEnding))
	frame = append(frame, payload...)
	frame = append(frame, t.cfg.RequestEnding...)

	n, err := t.port.Write(frame)
	if err != nil {
		return &IOError{Op: "write", Err: err}
	}
	if n != len(frame) {
		return &IOError{Op: "write", Err: ErrShortWrite}
	}
	return nil
}

// ReadLine blocks until the line ending is observed or the read timeout
// elapses and returns the line without its terminator. Bytes that arrive
// after the terminator are kept for the next call.
func (t *Transport) ReadLine() ([]byte, error) {
	if t.closed {
		return nil, &IOError{Op: "read", Err: ErrClosed}
	}

	term := []byte(t.cfg.LineEnding)
	deadline := time.Now().Add(t.cfg.ReadTimeout)
	buf := make([]byte, readChunk)

	for {
		if i := bytes.Index(t.pending, term); i >= 0 {
			line := append([]byte(nil), t.pending[:i]...)
			t.pending = t.pending[i+len(term):]
			return line, nil
		}
		if !time.Now().Before(deadline) {
			return nil, t.timeout()
		}

		n, err := t.port.Read(buf)
		t.pending = append(t.pending, buf[:n]...)
		if err != nil {
			return nil, &IOError{Op: "read", Err: err}
		}
		// go.bug.st/serial reports an expired read timeout as an empty read
		if n == 0 {
			return nil, t.timeout()
		}
	}
}

func (t *Transport) timeout() error {
	err := &TimeoutError{After: t.cfg.ReadTimeout}
	if len(t.pending) > 0 {
		err.Partial = t.pending
		t.pending = nil
	}
	return err
}

// Discard drops buffered input, both bytes already read past the last line
// and bytes still queued in the port.
func (t *Transport) Discard() error {
	if t.closed {
		return &IOError{Op: "reset", Err: ErrClosed}
	}
	t.pending = nil
	if r, ok := t.port.(InputResetter); ok {
		if err := r.ResetInputBuffer(); err != nil {
			return &IOError{Op: "reset", Err: err}
		}
	}
	return nil
}

// Close releases the port. Closing twice is a no-op.
func (t *Transport) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	t.pending = nil
	if err := t.port.Close(); err != nil {
		return &IOError{Op: "close", Err: err}
	}
	return nil
}
