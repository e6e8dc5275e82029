package session

import (
	"errors"
	"fmt"
)

// State is the lifecycle state of an instrument session.
type State int

const (
	// Disconnected is the initial state and the state after Disconnect.
	Disconnected State = iota
	// Connecting covers opening the port and identifying the instrument.
	Connecting
	// Identified sessions accept operations.
	Identified
	// Faulted sessions refuse operations until reconnected.
	Faulted
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Identified:
		return "identified"
	case Faulted:
		return "faulted"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var (
	// ErrNotConnected is returned for operations on a session that has not
	// completed Connect.
	ErrNotConnected = errors.New("instrument session not connected")
	// ErrFaulted is returned for operations on a session whose link failed.
	ErrFaulted = errors.New("instrument session faulted")
)

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	for st := Disconnected; st <= Faulted; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", text)
}
