package api

import (
	"errors"
	"net/http"

	"github.com/banshee-data/balance.report/internal/balance"
	"github.com/banshee-data/balance.report/internal/discovery"
	"github.com/banshee-data/balance.report/internal/httputil"
	"github.com/banshee-data/balance.report/internal/protocol"
	"github.com/banshee-data/balance.report/internal/session"
	"github.com/banshee-data/balance.report/internal/transport"
)

// Error kinds reported in the "kind" field of instrument error responses.
const (
	KindUnsupportedCommand = "unsupported_command"
	KindNotConnected       = "not_connected"
	KindFaulted            = "faulted"
	KindNoPortFound        = "no_port_found"
	KindAmbiguousPort      = "ambiguous_port"
	KindConnectionFailure  = "connection_failure"
	KindTimeout            = "timeout"
	KindIOError            = "io_error"
	KindUnknownCondition   = "unknown_condition_code"
	KindMalformedWeight    = "malformed_weight_field"
	KindMalformedNumeric   = "malformed_numeric_field"
	KindProtocolMismatch   = "protocol_mismatch"
	KindInternal           = "internal"
)

// classify maps an instrument error to an HTTP status and kind. Session
// state errors win over the link error they may wrap.
func classify(err error) (int, string) {
	var (
		ambiguous  *discovery.AmbiguousPortError
		connErr    *transport.ConnectionError
		ioErr      *transport.IOError
		unknown    *protocol.UnknownConditionCodeError
		badWeight  *protocol.MalformedWeightFieldError
		badNumeric *protocol.MalformedNumericFieldError
		mismatch   *protocol.ProtocolMismatchError
	)
	switch {
	case errors.Is(err, balance.ErrUnsupportedCommand):
		return http.StatusBadRequest, KindUnsupportedCommand
	case errors.Is(err, session.ErrNotConnected):
		return http.StatusServiceUnavailable, KindNotConnected
	case errors.Is(err, session.ErrFaulted):
		return http.StatusServiceUnavailable, KindFaulted
	case errors.Is(err, discovery.ErrNoPortFound):
		return http.StatusServiceUnavailable, KindNoPortFound
	case errors.As(err, &ambiguous):
		return http.StatusServiceUnavailable, KindAmbiguousPort
	case errors.As(err, &connErr):
		return http.StatusServiceUnavailable, KindConnectionFailure
	case errors.Is(err, transport.ErrTimeout):
		return http.StatusGatewayTimeout, KindTimeout
	case errors.As(err, &ioErr):
		return http.StatusBadGateway, KindIOError
	case errors.As(err, &unknown):
		return http.StatusBadGateway, KindUnknownCondition
	case errors.As(err, &badWeight):
		return http.StatusBadGateway, KindMalformedWeight
	case errors.As(err, &badNumeric):
		return http.StatusBadGateway, KindMalformedNumeric
	case errors.As(err, &mismatch):
		return http.StatusBadGateway, KindProtocolMismatch
	default:
		return http.StatusInternalServerError, KindInternal
	}
}

func writeInstrumentError(w http.ResponseWriter, err error) {
	status, kind := classify(err)
	httputil.WriteKindError(w, status, kind, err.Error())
}
