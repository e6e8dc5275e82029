package transport

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTimeout matches any read that saw no line terminator within the
	// configured read timeout.
	ErrTimeout = errors.New("timed out waiting for line terminator")
	// ErrClosed is wrapped in an IOError when a closed transport is used.
	ErrClosed = errors.New("transport closed")
	// ErrShortWrite is wrapped in an IOError when the port accepted fewer
	// bytes than the frame holds.
	ErrShortWrite = errors.New("failed to write full frame to serial port")
)

// ConnectionError reports a port that could not be opened.
type ConnectionError struct {
	Path string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to open serial port %q: %v", e.Path, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// IOError is a transport failure other than a timeout.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("serial %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// TimeoutError is returned by ReadLine when the read window elapses. Partial
// holds whatever arrived before the window closed.
type TimeoutError struct {
	After   time.Duration
	Partial []byte
}

func (e *TimeoutError) Error() string {
	if len(e.Partial) == 0 {
		return fmt.Sprintf("no reply within %s", e.After)
	}
	return fmt.Sprintf("incomplete reply %q within %s", e.Partial, e.After)
}

// Is reports ErrTimeout as a match.
func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// IsLinkFailure reports whether err was raised by the transport itself, a
// timeout or an I/O error, as opposed to a reply that failed to decode.
func IsLinkFailure(err error) bool {
	if err == nil {
		return false
	}
	var ioErr *IOError
	return errors.Is(err, ErrTimeout) || errors.As(err, &ioErr)
}
