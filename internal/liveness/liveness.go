// Package liveness terminates the local process once its parent link is gone.
//
// Two independent detectors feed one Monitor: an explicit disconnect
// notification (the transport's Disconnected channel, or a call to Notify)
// and a periodic poll of the link state. Whichever fires first moves the
// monitor from Connected to Terminated and runs the terminate action. Any
// later trigger is a no-op.
package liveness

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
	"syscall"
	"time"
)

// DefaultInterval is the poll period used when Config.Interval is zero.
const DefaultInterval = 10 * time.Second

// State is the monitor state.
type State int32

const (
	// Connected means no detector has fired yet.
	Connected State = iota
	// Terminated means the terminate action has run.
	Terminated
	// Stopped means the monitor was disarmed by a local shutdown before any
	// detector fired. The terminate action never runs once stopped.
	Stopped
)

func (s State) String() string {
	switch s {
	case Connected:
		return "connected"
	case Terminated:
		return "terminated"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Probe reports the health of the parent link.
type Probe interface {
	IsConnected() bool
	Disconnected() <-chan struct{}
}

// Config configures a Monitor.
type Config struct {
	// Interval is the poll period. Zero means DefaultInterval.
	Interval time.Duration

	// Terminate runs exactly once when the link is lost. Nil sends SIGTERM
	// to the current process.
	Terminate func()
}

// Monitor watches a Probe and terminates on the first sign of disconnect.
type Monitor struct {
	log       *slog.Logger
	probe     Probe
	interval  time.Duration
	terminate func()

	state      atomic.Int32
	terminated chan struct{}
	stopped    chan struct{}
}

// New creates a Monitor for probe.
func New(log *slog.Logger, probe Probe, cfg Config) *Monitor {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	terminate := cfg.Terminate
	if terminate == nil {
		terminate = SignalSelf
	}

	return &Monitor{
		log:        log.With("component", "liveness"),
		probe:      probe,
		interval:   interval,
		terminate:  terminate,
		terminated: make(chan struct{}),
		stopped:    make(chan struct{}),
	}
}

// Run watches the probe until the monitor terminates, is disarmed, or ctx
// is done.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.log.Debug("Liveness monitor started", "interval", m.interval)

	for {
		select {
		case <-m.probe.Disconnected():
			m.trip("disconnect")

			return

		case <-ticker.C:
			if !m.probe.IsConnected() {
				m.trip("poll")

				return
			}

		case <-m.terminated:
			return

		case <-m.stopped:
			return

		case <-ctx.Done():
			m.log.Debug("Liveness monitor stopped")

			return
		}
	}
}

// Notify reports an explicit disconnect. It terminates immediately, whether
// or not Run is active.
func (m *Monitor) Notify() {
	m.trip("notified")
}

// State returns the current state.
func (m *Monitor) State() State {
	return State(m.state.Load())
}

// Terminated returns a channel closed once the terminate action has run.
func (m *Monitor) Terminated() <-chan struct{} {
	return m.terminated
}

// Disarm stops the monitor without running the terminate action. Use it
// before closing the link locally. It reports whether the monitor was still
// connected.
func (m *Monitor) Disarm() bool {
	if !m.state.CompareAndSwap(int32(Connected), int32(Stopped)) {
		return false
	}

	m.log.Debug("Liveness monitor disarmed")
	close(m.stopped)

	return true
}

func (m *Monitor) trip(reason string) {
	if !m.state.CompareAndSwap(int32(Connected), int32(Terminated)) {
		return
	}

	m.log.Info("Parent link lost, terminating", "reason", reason)

	m.terminate()
	close(m.terminated)
}

// SignalSelf sends SIGTERM to the current process.
func SignalSelf() {
	p, err := os.FindProcess(os.Getpid())
	if err != nil {
		return
	}

	_ = p.Signal(syscall.SIGTERM)
}
