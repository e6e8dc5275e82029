package probe

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/balance.report/internal/discovery"
	"github.com/banshee-data/balance.report/internal/protocol"
	"github.com/banshee-data/balance.report/internal/session"
	"github.com/banshee-data/balance.report/internal/transport"
)

var quiet = session.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

func newProbe(t *testing.T, port *transport.ScriptedPort, path string, opts ...session.Option) (*Probe, *transport.MockOpener) {
	t.Helper()
	opener := transport.NewMockOpener(port)
	opts = append([]session.Option{quiet, session.WithOpener(opener)}, opts...)
	return New(transport.ProbePortConfig(path, 2*time.Second), opts...), opener
}

func replPort(replies ...string) *transport.ScriptedPort {
	return transport.NewScriptedPort(transport.CRFF).On("read()", replies...)
}

func TestRead(t *testing.T) {
	port := replPort(">>> read()\r23.57\r")
	p, opener := newProbe(t, port, "/dev/ttyACM0")

	require.NoError(t, p.Connect())
	assert.Equal(t, session.Identified, p.State())

	v, err := p.Read()
	require.NoError(t, err)
	assert.Equal(t, 23.57, v)
	assert.Equal(t, "read()\r\f", port.Written())

	want := transport.PortConfig{
		Path:          "/dev/ttyACM0",
		BaudRate:      115200,
		DataBits:      8,
		Parity:        transport.NoParity,
		StopBits:      1,
		ReadTimeout:   2 * time.Second,
		LineEnding:    "\r",
		RequestEnding: "\r\f",
	}
	if diff := cmp.Diff(want, *opener.LastCall()); diff != "" {
		t.Errorf("port config mismatch (-want +got):\n%s", diff)
	}
}

func TestRead_REPLStream(t *testing.T) {
	// The REPL answers with CR LF and leaves a fresh prompt behind.
	port := replPort(
		"read()\r\n23.57\r\n>>> ",
		"read()\r\n-4.125\r\n>>> ",
	)
	p, _ := newProbe(t, port, "/dev/ttyACM0")
	require.NoError(t, p.Connect())

	first, err := p.Read()
	require.NoError(t, err)
	assert.Equal(t, 23.57, first)

	second, err := p.Read()
	require.NoError(t, err)
	assert.Equal(t, -4.125, second)
}

func TestRead_EchoMismatch(t *testing.T) {
	port := replPort(">>> readd()\r99.9\r", ">>> read()\r21.5\r")
	p, _ := newProbe(t, port, "/dev/ttyACM0")
	require.NoError(t, p.Connect())

	_, err := p.Read()
	var mismatch *protocol.ProtocolMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, &protocol.ProtocolMismatchError{Expected: "read()", Actual: "readd()"}, mismatch)
	assert.Equal(t, session.Identified, p.State(), "a bad echo is not a link failure")

	v, err := p.Read()
	require.NoError(t, err)
	assert.Equal(t, 21.5, v, "the stale payload is not returned by the next read")
}

func TestRead_MalformedPayload(t *testing.T) {
	port := replPort(">>> read()\rTraceback\r")
	p, _ := newProbe(t, port, "/dev/ttyACM0")
	require.NoError(t, p.Connect())

	_, err := p.Read()
	var malformed *protocol.MalformedNumericFieldError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "Traceback", malformed.Field)
	assert.Equal(t, session.Identified, p.State())
}

func TestRead_TimeoutFaults(t *testing.T) {
	port := replPort(">>> read()\r")
	p, _ := newProbe(t, port, "/dev/ttyACM0")
	require.NoError(t, p.Connect())

	_, err := p.Read()
	assert.ErrorIs(t, err, transport.ErrTimeout)
	assert.Equal(t, session.Faulted, p.State())

	written := port.Written()
	_, err = p.Read()
	assert.ErrorIs(t, err, session.ErrFaulted)
	assert.Equal(t, written, port.Written())
}

func TestRead_ReadErrorFaults(t *testing.T) {
	port := replPort(">>> read()\r1.0\r")
	p, _ := newProbe(t, port, "/dev/ttyACM0")
	require.NoError(t, p.Connect())
	port.ReadError = errors.New("input/output error")

	_, err := p.Read()
	var ioErr *transport.IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, session.Faulted, p.State())
	assert.ErrorAs(t, p.Err(), &ioErr)
}

func TestRead_BeforeConnect(t *testing.T) {
	port := replPort(">>> read()\r1.0\r")
	p, _ := newProbe(t, port, "/dev/ttyACM0")

	_, err := p.Read()
	assert.ErrorIs(t, err, session.ErrNotConnected)
	assert.Empty(t, port.Written())
}

func TestConnect_Discovery(t *testing.T) {
	enumerator := session.WithEnumerator(discovery.EnumeratorFunc(func() ([]discovery.Candidate, error) {
		return []discovery.Candidate{
			{Path: "/dev/ttyUSB0", USB: true},
			{Path: "/dev/ttyACM1", USB: true},
		}, nil
	}))
	p, opener := newProbe(t, replPort(), "", enumerator)

	require.NoError(t, p.Connect())
	assert.Equal(t, "/dev/ttyACM1", p.Port())
	assert.Equal(t, "/dev/ttyACM1", opener.LastCall().Path)
}

func TestConnect_DropsBanner(t *testing.T) {
	port := replPort(">>> read()\r20.0\r")
	port.Feed("MicroPython v1.22.0 on 2024-01-05\r\n>>> ")
	p, _ := newProbe(t, port, "/dev/ttyACM0")
	require.NoError(t, p.Connect())

	v, err := p.Read()
	require.NoError(t, err)
	assert.Equal(t, 20.0, v)
}

func TestDisconnect(t *testing.T) {
	port := replPort()
	p, _ := newProbe(t, port, "/dev/ttyACM0")
	require.NoError(t, p.Connect())

	require.NoError(t, p.Disconnect())
	assert.Equal(t, session.Disconnected, p.State())
	assert.True(t, port.Closed)
	require.NoError(t, p.Disconnect())
}

func TestNew_EchoProtocol(t *testing.T) {
	p, _ := newProbe(t, transport.NewScriptedPort(transport.CRFF), "/dev/ttyACM0")
	assert.Equal(t, protocol.Protocol(protocol.Echo{Prompt: protocol.DefaultPrompt}), p.proto)
}
