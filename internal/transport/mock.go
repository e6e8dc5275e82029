package transport

import (
	"bytes"
	"errors"
	"sync"
	"time"
)

// ScriptedPort implements SerialPorter for testing. It plays the instrument
// side of a request/response link: every complete request frame written to
// it queues the scripted reply for that request. An empty receive buffer
// reads as (0, nil), which is how go.bug.st/serial reports an expired read
// timeout.
type ScriptedPort struct {
	mu sync.Mutex

	// RequestEnding splits written bytes into request frames.
	RequestEnding string

	// Chunk limits the bytes returned per Read when positive, simulating a
	// slow link that delivers replies piecemeal.
	Chunk int

	// ReadError is returned by the next Read call if set.
	ReadError error

	// WriteError is returned by the next Write call if set.
	WriteError error

	// ShortWrite makes the next Write report one byte fewer than given.
	ShortWrite bool

	// CloseError is returned by Close if set.
	CloseError error

	// Closed indicates whether Close was called.
	Closed bool

	// ReadTimeout is the last timeout applied through SetReadTimeout.
	ReadTimeout time.Duration

	// ResetCalls counts ResetInputBuffer calls.
	ResetCalls int

	replies  map[string][]string
	requests []string
	written  bytes.Buffer
	frame    bytes.Buffer
	inbound  bytes.Buffer
}

// NewScriptedPort creates a ScriptedPort splitting requests on ending.
func NewScriptedPort(ending string) *ScriptedPort {
	return &ScriptedPort{
		RequestEnding: ending,
		replies:       make(map[string][]string),
	}
}

// On scripts the replies to request. Successive requests consume successive
// replies; the last reply repeats once the others are used up.
func (p *ScriptedPort) On(request string, replies ...string) *ScriptedPort {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replies[request] = replies
	return p
}

// Feed queues unsolicited bytes for the next Read calls.
func (p *ScriptedPort) Feed(data string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inbound.WriteString(data)
}

// Requests returns the request payloads received so far, without endings.
func (p *ScriptedPort) Requests() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.requests...)
}

// Written returns every byte written to the port.
func (p *ScriptedPort) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.String()
}

// Read returns queued reply bytes.
func (p *ScriptedPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Closed {
		return 0, errors.New("serial port closed")
	}
	if p.ReadError != nil {
		err := p.ReadError
		p.ReadError = nil
		return 0, err
	}
	if p.inbound.Len() == 0 {
		return 0, nil
	}
	if p.Chunk > 0 && len(b) > p.Chunk {
		b = b[:p.Chunk]
	}
	return p.inbound.Read(b)
}

// Write records the bytes and answers every completed request frame.
func (p *ScriptedPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Closed {
		return 0, errors.New("serial port closed")
	}
	if p.WriteError != nil {
		err := p.WriteError
		p.WriteError = nil
		return 0, err
	}

	n := len(b)
	if p.ShortWrite {
		p.ShortWrite = false
		n--
		b = b[:n]
	}

	p.written.Write(b)
	p.frame.Write(b)

	ending := []byte(p.RequestEnding)
	for {
		i := bytes.Index(p.frame.Bytes(), ending)
		if i < 0 || len(ending) == 0 {
			break
		}
		request := string(p.frame.Next(i))
		p.frame.Next(len(ending))
		p.requests = append(p.requests, request)
		p.answer(request)
	}
	return n, nil
}

func (p *ScriptedPort) answer(request string) {
	replies := p.replies[request]
	if len(replies) == 0 {
		return
	}
	p.inbound.WriteString(replies[0])
	if len(replies) > 1 {
		p.replies[request] = replies[1:]
	}
}

// Close marks the port as closed.
func (p *ScriptedPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	return p.CloseError
}

// SetReadTimeout implements TimeoutSerialPorter.
func (p *ScriptedPort) SetReadTimeout(timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ReadTimeout = timeout
	return nil
}

// ResetInputBuffer implements InputResetter.
func (p *ScriptedPort) ResetInputBuffer() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ResetCalls++
	p.inbound.Reset()
	return nil
}

// MockOpener implements Opener for testing.
type MockOpener struct {
	mu sync.Mutex

	// Port is the port to return from Open.
	Port SerialPorter

	// Error is returned by Open if set.
	Error error

	// OpenCalls records the configuration of every Open call.
	OpenCalls []PortConfig
}

// NewMockOpener creates a MockOpener handing out port.
func NewMockOpener(port SerialPorter) *MockOpener {
	return &MockOpener{Port: port}
}

// Open returns the configured port or error.
func (o *MockOpener) Open(cfg PortConfig) (SerialPorter, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.OpenCalls = append(o.OpenCalls, cfg)
	if o.Error != nil {
		return nil, o.Error
	}
	return o.Port, nil
}

// LastCall returns the most recent Open configuration, or nil if none.
func (o *MockOpener) LastCall() *PortConfig {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.OpenCalls) == 0 {
		return nil
	}
	return &o.OpenCalls[len(o.OpenCalls)-1]
}
