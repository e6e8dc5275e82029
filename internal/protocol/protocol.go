// Package protocol decodes instrument replies. It holds the two framing
// disciplines spoken by the supported instruments, a plain one-line
// request/response and an echo-validated REPL exchange, together with the
// field parsers for the lines they return.
package protocol

import (
	"strings"
)

// LineTransport is the framed link a Protocol exchanges lines over.
// *transport.Transport satisfies it.
type LineTransport interface {
	WriteLine(payload []byte) error
	ReadLine() ([]byte, error)
}

// Protocol performs one request/response exchange and returns the payload
// line of the reply, trimmed of surrounding whitespace.
type Protocol interface {
	Exchange(t LineTransport, request []byte) (string, error)
}

// Plain is the balance discipline: one request line, one reply line.
type Plain struct{}

// Exchange writes request and returns the next reply line.
func (Plain) Exchange(t LineTransport, request []byte) (string, error) {
	if err := t.WriteLine(request); err != nil {
		return "", err
	}
	line, err := t.ReadLine()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(line)), nil
}

// DefaultPrompt is the MicroPython REPL prompt.
const DefaultPrompt = ">>> "

// Echo is the REPL discipline: the instrument first echoes the request,
// prefixed by its prompt on every line after the first, then emits the
// payload on the following line.
type Echo struct {
	Prompt string
}

// Exchange writes request, checks the echoed line against it and returns
// the line after the echo. A wrong echo is a ProtocolMismatchError.
func (e Echo) Exchange(t LineTransport, request []byte) (string, error) {
	if err := t.WriteLine(request); err != nil {
		return "", err
	}

	echo, err := t.ReadLine()
	if err != nil {
		return "", err
	}
	got := e.stripPrompt(string(echo))
	if got != string(request) {
		return "", &ProtocolMismatchError{Expected: string(request), Actual: got}
	}

	payload, err := t.ReadLine()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(payload)), nil
}

func (e Echo) stripPrompt(line string) string {
	prompt := e.Prompt
	if prompt == "" {
		prompt = DefaultPrompt
	}
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, strings.TrimSpace(prompt))
	return strings.TrimSpace(line)
}
