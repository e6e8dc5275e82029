package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/balance.report/internal/api"
	"github.com/banshee-data/balance.report/internal/balance"
	"github.com/banshee-data/balance.report/internal/config"
	"github.com/banshee-data/balance.report/internal/monitoring"
	"github.com/banshee-data/balance.report/internal/probe"
	"github.com/banshee-data/balance.report/internal/reconnect"
	"github.com/banshee-data/balance.report/internal/session"
	"github.com/banshee-data/balance.report/internal/transport"
	"github.com/banshee-data/balance.report/internal/version"
)

var (
	configPath  = flag.String("config", "", "Path to a JSON config file")
	envFile     = flag.String("env", "", "Path to a .env file (default ./.env when present)")
	devMode     = flag.Bool("dev", false, "Run against simulated instruments")
	listen      = flag.String("listen", "", "Listen address (overrides config)")
	balancePort = flag.String("balance-port", "", "Balance serial port (overrides config, empty to discover)")
	probePort   = flag.String("probe-port", "", "Probe serial port (overrides config and enables the probe)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func loadConfig() (*config.Config, error) {
	var dotenv []string
	if *envFile != "" {
		dotenv = append(dotenv, *envFile)
	}
	cfg, err := config.Load(*configPath, dotenv...)
	if err != nil {
		return nil, err
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "listen":
			cfg.ListenAddr = listen
		case "balance-port":
			cfg.BalancePort = balancePort
		case "probe-port":
			cfg.ProbePort = probePort
			enabled := true
			cfg.ProbeEnabled = &enabled
		}
	})
	return cfg, cfg.Validate()
}

// instruments holds the guarded sessions; probe is nil when disabled.
type instruments struct {
	balance *api.Guarded[*balance.Balance]
	probe   *api.Guarded[*probe.Probe]
}

func (in instruments) targets() []reconnect.Target {
	targets := []reconnect.Target{in.balance}
	if in.probe != nil {
		targets = append(targets, in.probe)
	}
	return targets
}

func (in instruments) disconnect() {
	in.balance.Disconnect()
	if in.probe != nil {
		in.probe.Disconnect()
	}
}

func newInstruments(cfg *config.Config, dev bool) instruments {
	var balanceOpts, probeOpts []session.Option
	if dev {
		balanceOpts = append(balanceOpts, session.WithOpener(simulatedOpener(simulatedBalance)))
		probeOpts = append(probeOpts, session.WithOpener(simulatedOpener(simulatedProbe)))
	}

	balanceCfg := cfg.BalancePortConfig()
	probeCfg := cfg.ProbePortConfig()
	if dev {
		balanceCfg = balanceCfg.WithPath("/dev/ttyUSB-sim")
		probeCfg = probeCfg.WithPath("/dev/ttyACM-sim")
	}

	in := instruments{balance: api.Guard("balance", balance.New(balanceCfg, balanceOpts...))}
	if cfg.GetProbeEnabled() || dev {
		in.probe = api.Guard("probe", probe.New(probeCfg, probeOpts...))
	}
	return in
}

// simulatedOpener hands out a fresh simulated port on every open, since a
// session closes its previous port before reopening.
func simulatedOpener(newPort func() *transport.ScriptedPort) transport.Opener {
	return transport.OpenerFunc(func(transport.PortConfig) (transport.SerialPorter, error) {
		return newPort(), nil
	})
}

// simulatedBalance answers like an FX-120i holding a 12.345 g sample.
func simulatedBalance() *transport.ScriptedPort {
	return transport.NewScriptedPort(transport.CRLF).
		On("?ID", "ID,SIM-0001\r\n").
		On("?SN", "SN,00000000\r\n").
		On("?TN", "TN,  FX-120i\r\n").
		On("S", "ST,+00012.345  g\r\n").
		On("SI", "US,+00012.341  g\r\n").
		On("SIR", "US,+00012.339  g\r\n", "ST,+00012.345  g\r\n").
		On("T", "ST,+00000.000  g\r\n").
		On("?PT", "PT,+00000.000  g\r\n")
}

func simulatedProbe() *transport.ScriptedPort {
	return transport.NewScriptedPort(transport.CRFF).
		On("read()", "read()\r\n21.75\r\n>>> ")
}

func newHandler(in instruments) http.Handler {
	server := api.NewServer(in.balance, in.probe)
	mux := server.ServeMux()
	server.AttachAdminRoutes(mux)
	return api.LoggingMiddleware(mux)
}

// Main
func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := monitoring.NewSlog(monitoring.Options{Level: cfg.GetLogLevel(), Format: cfg.GetLogFormat()})
	if err != nil {
		log.Fatalf("failed to configure logging: %v", err)
	}
	monitoring.SetSlog(logger)
	logger.Info("starting", "version", version.Version, "git_sha", version.GitSHA, "dev", *devMode)

	in := newInstruments(cfg, *devMode)
	defer in.disconnect()

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// the reconnect loop also performs the initial Connect
	wg.Add(1)
	go func() {
		defer wg.Done()
		loop := reconnect.New(reconnect.Config{Interval: cfg.GetPollInterval()}, in.targets()...)
		if err := loop.Run(ctx); err != nil {
			monitoring.Logf("reconnect loop stopped: %v", err)
		}
		monitoring.Logf("reconnect routine terminated")
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		server := &http.Server{
			Addr:    cfg.GetListenAddr(),
			Handler: newHandler(in),
		}

		go func() {
			logger.Info("listening", "addr", server.Addr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("failed to start server", "error", err)
				os.Exit(1)
			}
		}()

		<-ctx.Done()
		monitoring.Logf("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			monitoring.Logf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				monitoring.Logf("HTTP server force close error: %v", err)
			}
		}

		monitoring.Logf("HTTP server routine stopped")
	}()

	wg.Wait()
	monitoring.Logf("Graceful shutdown complete")
}
