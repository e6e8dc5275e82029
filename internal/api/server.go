package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/balance.report/internal/balance"
	"github.com/banshee-data/balance.report/internal/command"
	"github.com/banshee-data/balance.report/internal/httputil"
	"github.com/banshee-data/balance.report/internal/monitoring"
	"github.com/banshee-data/balance.report/internal/probe"
	"github.com/banshee-data/balance.report/internal/protocol"
	"github.com/banshee-data/balance.report/internal/session"
)

// ANSI escape codes for the request log
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Server exposes the instrument sessions over HTTP. Either session may be
// nil when that instrument is not configured.
type Server struct {
	balance *Guarded[*balance.Balance]
	probe   *Guarded[*probe.Probe]
}

func NewServer(b *Guarded[*balance.Balance], p *Guarded[*probe.Probe]) *Server {
	return &Server{balance: b, probe: p}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.showStatus)
	mux.HandleFunc("/api/connect", s.connect)
	mux.HandleFunc("/api/disconnect", s.disconnect)
	mux.HandleFunc("/api/weight", s.showWeight)
	mux.HandleFunc("/api/tare", s.handleTare)
	mux.HandleFunc("/api/power", s.setPower)
	mux.HandleFunc("/api/command", s.sendCommand)
	mux.HandleFunc("/api/temperature", s.showTemperature)
	return mux
}

// InstrumentStatus is one entry of /api/status.
type InstrumentStatus struct {
	State    session.State     `json:"state"`
	Port     string            `json:"port,omitempty"`
	Identity *balance.Identity `json:"identity,omitempty"`
	Error    string            `json:"error,omitempty"`
	// Held is true after an explicit disconnect; the reconnect loop skips it.
	Held bool `json:"held,omitempty"`
}

func (s *Server) status() map[string]InstrumentStatus {
	out := make(map[string]InstrumentStatus)
	if s.balance != nil {
		s.balance.Do(func(b *balance.Balance) error {
			st := InstrumentStatus{State: b.State(), Port: b.Port(), Error: errString(b.Err()), Held: s.balance.held}
			if st.State == session.Identified {
				id := b.Identity()
				st.Identity = &id
			}
			out[s.balance.Name()] = st
			return nil
		})
	}
	if s.probe != nil {
		s.probe.Do(func(p *probe.Probe) error {
			out[s.probe.Name()] = InstrumentStatus{State: p.State(), Port: p.Port(), Error: errString(p.Err()), Held: s.probe.held}
			return nil
		})
	}
	return out
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.status())
}

func (s *Server) connect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var err error
	switch name := r.FormValue("instrument"); name {
	case "", "balance":
		if s.balance == nil {
			httputil.NotFound(w, "balance not configured")
			return
		}
		err = s.balance.Connect()
	case "probe":
		if s.probe == nil {
			httputil.NotFound(w, "probe not configured")
			return
		}
		err = s.probe.Connect()
	default:
		httputil.BadRequest(w, fmt.Sprintf("unknown instrument %q", name))
		return
	}
	if err != nil {
		writeInstrumentError(w, err)
		return
	}
	httputil.WriteJSONOK(w, s.status())
}

func (s *Server) disconnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var err error
	switch name := r.FormValue("instrument"); name {
	case "", "balance":
		if s.balance == nil {
			httputil.NotFound(w, "balance not configured")
			return
		}
		err = s.balance.Disconnect()
	case "probe":
		if s.probe == nil {
			httputil.NotFound(w, "probe not configured")
			return
		}
		err = s.probe.Disconnect()
	default:
		httputil.BadRequest(w, fmt.Sprintf("unknown instrument %q", name))
		return
	}
	if err != nil {
		writeInstrumentError(w, err)
		return
	}
	httputil.WriteJSONOK(w, s.status())
}

func (s *Server) showWeight(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	mode, err := balance.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	s.withReading(w, func(b *balance.Balance) (protocol.Reading, error) {
		return b.GetWeight(mode)
	})
}

// handleTare reads the tare on GET and tares the balance on POST.
func (s *Server) handleTare(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.withReading(w, (*balance.Balance).GetTare)
	case http.MethodPost:
		s.withReading(w, (*balance.Balance).Tare)
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) setPower(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.balance == nil {
		httputil.NotFound(w, "balance not configured")
		return
	}
	state := strings.ToLower(strings.TrimSpace(r.FormValue("state")))
	var op func(*balance.Balance) error
	switch state {
	case "on":
		op = (*balance.Balance).On
	case "off":
		op = (*balance.Balance).Off
	default:
		httputil.BadRequest(w, "state must be on or off")
		return
	}
	if err := s.balance.Do(op); err != nil {
		writeInstrumentError(w, err)
		return
	}
	httputil.WriteJSONOK(w, map[string]string{"power": state})
}

// CommandResult is the reply to /api/command.
type CommandResult struct {
	Command string   `json:"command"`
	Fields  []string `json:"fields"`
}

func (s *Server) sendCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.balance == nil {
		httputil.NotFound(w, "balance not configured")
		return
	}
	name := strings.TrimSpace(r.FormValue("command"))
	if name == "" {
		httputil.BadRequest(w, "Missing command")
		return
	}
	c, ok := command.Lookup(name)
	if !ok {
		httputil.BadRequest(w,
			fmt.Sprintf("unknown command %q: expected one of %s", name, strings.Join(command.Names(), ", ")))
		return
	}

	var fields []string
	err := s.balance.Do(func(b *balance.Balance) error {
		var err error
		fields, err = b.Send(c)
		return err
	})
	if err != nil {
		writeInstrumentError(w, err)
		return
	}
	if fields == nil {
		fields = []string{}
	}
	httputil.WriteJSONOK(w, CommandResult{Command: c.String(), Fields: fields})
}

// Temperature is the reply to /api/temperature.
type Temperature struct {
	Celsius float64 `json:"celsius"`
}

func (s *Server) showTemperature(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.probe == nil {
		httputil.NotFound(w, "probe not configured")
		return
	}
	var v float64
	err := s.probe.Do(func(p *probe.Probe) error {
		var err error
		v, err = p.Read()
		return err
	})
	if err != nil {
		writeInstrumentError(w, err)
		return
	}
	httputil.WriteJSONOK(w, Temperature{Celsius: v})
}

func (s *Server) withReading(w http.ResponseWriter, op func(*balance.Balance) (protocol.Reading, error)) {
	if s.balance == nil {
		httputil.NotFound(w, "balance not configured")
		return
	}
	var reading protocol.Reading
	err := s.balance.Do(func(b *balance.Balance) error {
		var err error
		reading, err = op(b)
		return err
	})
	if err != nil {
		writeInstrumentError(w, err)
		return
	}
	httputil.WriteJSONOK(w, reading)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
