package api

import (
	"bytes"
	"embed"
	"html/template"
	"io"
	"net/http"

	"tailscale.com/tsweb"

	"github.com/banshee-data/balance.report/internal/balance"
	"github.com/banshee-data/balance.report/internal/command"
)

//go:embed templates/*
var adminTemplateFS embed.FS

var consoleTemplate = template.Must(template.ParseFS(adminTemplateFS, "templates/console.html.tmpl"))

// consoleCommands lists the commands an operator may send from the console.
func consoleCommands() []string {
	var names []string
	for _, name := range command.Names() {
		c, _ := command.Lookup(name)
		if c == command.SetTare || c == command.ReadTemperature {
			continue
		}
		names = append(names, name)
	}
	return names
}

// AttachAdminRoutes registers the operator console under /debug/.
func (s *Server) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.Handle("balance", "instrument status and command console", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data := struct {
			Status   map[string]InstrumentStatus
			Commands []string
		}{s.status(), consoleCommands()}

		buf := bytes.NewBuffer(nil)
		if err := consoleTemplate.Execute(buf, data); err != nil {
			http.Error(w, "Failed to render template", http.StatusInternalServerError)
			return
		}
		io.Copy(w, buf)
	}))

	debug.HandleSilent("balance-command-api", http.HandlerFunc(s.sendCommand))

	debug.Handle("balance-summary", "current weight and balance identity", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.balance == nil {
			http.Error(w, "balance not configured", http.StatusNotFound)
			return
		}
		var summary string
		err := s.balance.Do(func(b *balance.Balance) error {
			var err error
			summary, err = b.Summary()
			return err
		})
		if err != nil {
			status, _ := classify(err)
			http.Error(w, err.Error(), status)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, summary+"\n")
	}))
}
