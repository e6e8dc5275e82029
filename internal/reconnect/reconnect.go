// Package reconnect periodically re-connects instrument sessions that lost
// their link, e.g. after a USB adapter was unplugged and plugged back in.
package reconnect

import (
	"context"
	"sync"
	"time"

	"github.com/banshee-data/balance.report/internal/monitoring"
	"github.com/banshee-data/balance.report/internal/timeutil"
)

// DefaultInterval is used when Config.Interval is zero.
const DefaultInterval = 5 * time.Second

// Target is a session the loop keeps connected. Implementations must be
// safe to call from the loop's goroutine while other goroutines use them.
type Target interface {
	Name() string
	// Reconnect connects the target if it wants a retry, typically when it
	// is neither identified nor disconnected on request. attempted reports
	// whether a connect ran.
	Reconnect() (attempted bool, err error)
}

// Config configures a Loop.
type Config struct {
	// Interval between sweeps. Zero means DefaultInterval.
	Interval time.Duration
	// Clock is optional; if nil, the real clock is used.
	Clock timeutil.Clock
	// Logf is optional; if nil, monitoring.Logf is used.
	Logf func(format string, v ...interface{})
}

// Loop reconnects its targets on a fixed interval.
type Loop struct {
	targets  []Target
	interval time.Duration
	clock    timeutil.Clock
	logf     func(format string, v ...interface{})

	mu       sync.Mutex
	failures map[string]failure
	running  bool
}

// failure is the last error seen for a target and when its outage began.
type failure struct {
	msg   string
	since time.Time
}

// New creates a Loop over targets.
func New(cfg Config, targets ...Target) *Loop {
	l := &Loop{
		targets:  targets,
		interval: cfg.Interval,
		clock:    cfg.Clock,
		logf:     cfg.Logf,
		failures: make(map[string]failure),
	}
	if l.interval <= 0 {
		l.interval = DefaultInterval
	}
	if l.clock == nil {
		l.clock = timeutil.RealClock{}
	}
	if l.logf == nil {
		l.logf = func(format string, v ...interface{}) { monitoring.Logf(format, v...) }
	}
	return l
}

// Sweep reconnects every target that wants a retry and returns how many
// connected. A failure is logged once until its message changes.
func (l *Loop) Sweep() int {
	connected := 0
	for _, t := range l.targets {
		attempted, err := t.Reconnect()
		if !attempted {
			continue
		}
		name := t.Name()
		now := l.clock.Now()

		l.mu.Lock()
		f, failing := l.failures[name]
		if err != nil {
			if !failing {
				f.since = now
			}
			if msg := err.Error(); msg != f.msg {
				l.logf("reconnect: %s: %v", name, err)
				f.msg = msg
			}
			l.failures[name] = f
		} else {
			delete(l.failures, name)
			if failing {
				l.logf("reconnect: %s connected after failing for %s", name, now.Sub(f.since))
			}
			connected++
		}
		l.mu.Unlock()
	}
	return connected
}

// Run sweeps immediately and then on every tick until ctx is done. It
// returns nil on clean shutdown.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return nil
	}
	l.running = true
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
	}()

	l.Sweep()

	ticker := l.clock.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			l.Sweep()
		}
	}
}
