// Package config loads the service configuration: an optional JSON file,
// then .env files and environment variables, which take precedence.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/banshee-data/balance.report/internal/monitoring"
	"github.com/banshee-data/balance.report/internal/transport"
)

// Environment variables read by ApplyEnv.
const (
	EnvBalancePort    = "BALANCE_PORT"
	EnvBalanceTimeout = "BALANCE_TIMEOUT"
	EnvProbeEnabled   = "PROBE_ENABLED"
	EnvProbePort      = "PROBE_PORT"
	EnvProbeTimeout   = "PROBE_TIMEOUT"
	EnvPollInterval   = "POLL_INTERVAL"
	EnvListenAddr     = "LISTEN_ADDR"
	EnvLogLevel       = "LOG_LEVEL"
	EnvLogFormat      = "LOG_FORMAT"
)

// Config is the service configuration. Nil fields fall back to the defaults
// returned by the getters, so partial files are safe.
type Config struct {
	// BalancePort is the balance device path. Empty means discover it.
	BalancePort    *string `json:"balance_port,omitempty"`
	BalanceTimeout *string `json:"balance_timeout,omitempty"` // duration string like "1s"

	ProbeEnabled *bool   `json:"probe_enabled,omitempty"`
	ProbePort    *string `json:"probe_port,omitempty"`
	ProbeTimeout *string `json:"probe_timeout,omitempty"`

	// PollInterval is how often faulted sessions are reconnected.
	PollInterval *string `json:"poll_interval,omitempty"`
	ListenAddr   *string `json:"listen_addr,omitempty"`

	LogLevel  *string `json:"log_level,omitempty"`
	LogFormat *string `json:"log_format,omitempty"`
}

func ptrString(v string) *string { return &v }
func ptrBool(v bool) *bool       { return &v }

// LoadConfig reads a JSON config file.
// The file must have a .json extension and be under 1MB.
func LoadConfig(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Load builds the effective configuration: the JSON file at path (skipped
// when empty), overridden by dotenv files and the environment. With no
// dotenv files given, ./.env is loaded if present.
func Load(path string, dotenv ...string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		var err error
		if cfg, err = LoadConfig(path); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(dotenv...); err != nil {
		if len(dotenv) > 0 || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the variables lookup finds.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	strs := []struct {
		key string
		dst **string
	}{
		{EnvBalancePort, &c.BalancePort},
		{EnvBalanceTimeout, &c.BalanceTimeout},
		{EnvProbePort, &c.ProbePort},
		{EnvProbeTimeout, &c.ProbeTimeout},
		{EnvPollInterval, &c.PollInterval},
		{EnvListenAddr, &c.ListenAddr},
		{EnvLogLevel, &c.LogLevel},
		{EnvLogFormat, &c.LogFormat},
	}
	for _, s := range strs {
		if v, ok := lookup(s.key); ok {
			*s.dst = ptrString(v)
		}
	}

	if v, ok := lookup(EnvProbeEnabled); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.ProbeEnabled = ptrBool(b)
		} else {
			monitoring.Logf("config: ignoring %s=%q: %v", EnvProbeEnabled, v, err)
		}
	}
	// naming a probe port implies the probe is wanted
	if c.ProbeEnabled == nil && c.ProbePort != nil && *c.ProbePort != "" {
		c.ProbeEnabled = ptrBool(true)
	}
}

// Validate checks that the configuration values are valid.
func (c *Config) Validate() error {
	durations := []struct {
		name string
		v    *string
	}{
		{"balance_timeout", c.BalanceTimeout},
		{"probe_timeout", c.ProbeTimeout},
		{"poll_interval", c.PollInterval},
	}
	for _, d := range durations {
		if d.v == nil || *d.v == "" {
			continue
		}
		v, err := time.ParseDuration(*d.v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", d.name, *d.v, err)
		}
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.name, v)
		}
	}

	if _, err := monitoring.ParseLevel(c.GetLogLevel()); err != nil {
		return err
	}
	switch c.GetLogFormat() {
	case "json", "console":
	default:
		return fmt.Errorf("log_format must be json or console, got %q", c.GetLogFormat())
	}

	if _, err := c.BalancePortConfig().Normalise(); err != nil {
		return fmt.Errorf("balance port: %w", err)
	}
	if _, err := c.ProbePortConfig().Normalise(); err != nil {
		return fmt.Errorf("probe port: %w", err)
	}
	return nil
}

func duration(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def
	}
	return d
}

func str(v *string, def string) string {
	if v == nil || *v == "" {
		return def
	}
	return *v
}

// GetBalancePort returns the balance device path, empty for discovery.
func (c *Config) GetBalancePort() string { return str(c.BalancePort, "") }

// GetBalanceTimeout returns the balance read timeout.
func (c *Config) GetBalanceTimeout() time.Duration {
	return duration(c.BalanceTimeout, transport.DefaultReadTimeout)
}

// GetProbeEnabled reports whether a probe session should be created.
func (c *Config) GetProbeEnabled() bool {
	if c.ProbeEnabled == nil {
		return false
	}
	return *c.ProbeEnabled
}

// GetProbePort returns the probe device path, empty for discovery.
func (c *Config) GetProbePort() string { return str(c.ProbePort, "") }

// GetProbeTimeout returns the probe read timeout.
func (c *Config) GetProbeTimeout() time.Duration {
	return duration(c.ProbeTimeout, transport.DefaultReadTimeout)
}

// GetPollInterval returns the reconnect interval.
func (c *Config) GetPollInterval() time.Duration {
	return duration(c.PollInterval, 5*time.Second)
}

// GetListenAddr returns the HTTP listen address.
func (c *Config) GetListenAddr() string { return str(c.ListenAddr, "localhost:8080") }

// GetLogLevel returns the log level name.
func (c *Config) GetLogLevel() string { return str(c.LogLevel, "info") }

// GetLogFormat returns the log format name.
func (c *Config) GetLogFormat() string { return str(c.LogFormat, "json") }

// BalancePortConfig returns the serial settings for the balance.
func (c *Config) BalancePortConfig() transport.PortConfig {
	cfg := transport.BalancePortConfig(c.GetBalancePort())
	cfg.ReadTimeout = c.GetBalanceTimeout()
	return cfg
}

// ProbePortConfig returns the serial settings for the probe.
func (c *Config) ProbePortConfig() transport.PortConfig {
	return transport.ProbePortConfig(c.GetProbePort(), c.GetProbeTimeout())
}
