package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/balance.report/internal/transport"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestDefaults(t *testing.T) {
	cfg := &Config{}

	if got := cfg.GetBalancePort(); got != "" {
		t.Errorf("GetBalancePort() = %q, want empty", got)
	}
	if got := cfg.GetBalanceTimeout(); got != time.Second {
		t.Errorf("GetBalanceTimeout() = %v, want 1s", got)
	}
	if cfg.GetProbeEnabled() {
		t.Error("GetProbeEnabled() = true, want false")
	}
	if got := cfg.GetPollInterval(); got != 5*time.Second {
		t.Errorf("GetPollInterval() = %v, want 5s", got)
	}
	if got := cfg.GetListenAddr(); got != "localhost:8080" {
		t.Errorf("GetListenAddr() = %q, want localhost:8080", got)
	}
	if got := cfg.GetLogLevel(); got != "info" {
		t.Errorf("GetLogLevel() = %q, want info", got)
	}
	if got := cfg.GetLogFormat(); got != "json" {
		t.Errorf("GetLogFormat() = %q, want json", got)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on defaults: %v", err)
	}
}

func TestLoadConfig(t *testing.T) {
	path := writeFile(t, "balance.json", `{
  "balance_port": "/dev/ttyUSB1",
  "balance_timeout": "1500ms",
  "probe_enabled": true,
  "probe_timeout": "3s",
  "poll_interval": "10s",
  "log_format": "console"
}`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	want := transport.BalancePortConfig("/dev/ttyUSB1")
	want.ReadTimeout = 1500 * time.Millisecond
	if diff := cmp.Diff(want, cfg.BalancePortConfig()); diff != "" {
		t.Errorf("BalancePortConfig() mismatch (-want +got):\n%s", diff)
	}

	wantProbe := transport.ProbePortConfig("", 3*time.Second)
	if diff := cmp.Diff(wantProbe, cfg.ProbePortConfig()); diff != "" {
		t.Errorf("ProbePortConfig() mismatch (-want +got):\n%s", diff)
	}

	if !cfg.GetProbeEnabled() {
		t.Error("GetProbeEnabled() = false, want true")
	}
	if got := cfg.GetPollInterval(); got != 10*time.Second {
		t.Errorf("GetPollInterval() = %v, want 10s", got)
	}
	if got := cfg.GetLogFormat(); got != "console" {
		t.Errorf("GetLogFormat() = %q, want console", got)
	}
	// omitted fields keep their defaults
	if got := cfg.GetListenAddr(); got != "localhost:8080" {
		t.Errorf("GetListenAddr() = %q, want localhost:8080", got)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"wrong extension", "balance.yaml", "{}", ".json extension"},
		{"bad json", "bad.json", "{", "failed to parse"},
		{"bad duration", "d.json", `{"poll_interval": "soon"}`, "invalid poll_interval"},
		{"negative duration", "n.json", `{"probe_timeout": "-1s"}`, "must be positive"},
		{"bad level", "l.json", `{"log_level": "chatty"}`, "unknown log level"},
		{"bad format", "f.json", `{"log_format": "xml"}`, "log_format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeFile(t, tt.file, tt.content))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestLoadConfig_TooLarge(t *testing.T) {
	big := `{"listen_addr": "` + strings.Repeat("x", 1024*1024) + `"}`
	_, err := LoadConfig(writeFile(t, "big.json", big))
	if err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("expected a size error, got %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := &Config{BalancePort: ptrString("/dev/ttyUSB0"), LogLevel: ptrString("debug")}
	cfg.ApplyEnv(envMap(map[string]string{
		EnvBalancePort:  "/dev/ttyUSB3",
		EnvProbePort:    "/dev/ttyACM0",
		EnvProbeTimeout: "2s",
		EnvListenAddr:   ":9000",
	}))

	if got := cfg.GetBalancePort(); got != "/dev/ttyUSB3" {
		t.Errorf("GetBalancePort() = %q, want the environment value", got)
	}
	if got := cfg.GetLogLevel(); got != "debug" {
		t.Errorf("GetLogLevel() = %q, want the file value kept", got)
	}
	if !cfg.GetProbeEnabled() {
		t.Error("PROBE_PORT should enable the probe")
	}
	if got := cfg.GetProbeTimeout(); got != 2*time.Second {
		t.Errorf("GetProbeTimeout() = %v, want 2s", got)
	}
	if got := cfg.GetListenAddr(); got != ":9000" {
		t.Errorf("GetListenAddr() = %q, want :9000", got)
	}
}

func TestApplyEnv_ProbeDisabledExplicitly(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyEnv(envMap(map[string]string{EnvProbePort: "/dev/ttyACM0", EnvProbeEnabled: "false"}))
	if cfg.GetProbeEnabled() {
		t.Error("PROBE_ENABLED=false should win over PROBE_PORT")
	}
}

func TestLoad_DotEnv(t *testing.T) {
	for _, key := range []string{EnvBalancePort, EnvPollInterval, EnvLogFormat} {
		if old, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, old) })
		} else {
			t.Cleanup(func() { os.Unsetenv(key) })
		}
		os.Unsetenv(key)
	}
	// variables already in the environment take precedence over .env
	t.Setenv(EnvLogFormat, "console")

	jsonPath := writeFile(t, "balance.json", `{"balance_port": "/dev/ttyUSB0", "poll_interval": "30s"}`)
	envPath := writeFile(t, "test.env", "BALANCE_PORT=/dev/ttyUSB7\nLOG_FORMAT=json\n")

	cfg, err := Load(jsonPath, envPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.GetBalancePort(); got != "/dev/ttyUSB7" {
		t.Errorf("GetBalancePort() = %q, want /dev/ttyUSB7 from .env", got)
	}
	if got := cfg.GetPollInterval(); got != 30*time.Second {
		t.Errorf("GetPollInterval() = %v, want 30s from the file", got)
	}
	if got := cfg.GetLogFormat(); got != "console" {
		t.Errorf("GetLogFormat() = %q, want console from the environment", got)
	}
}

func TestLoad_MissingEnvFile(t *testing.T) {
	if _, err := Load("", filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Error("expected an error for an explicitly named env file that does not exist")
	}
}
