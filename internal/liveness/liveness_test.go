package liveness

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeProbe struct {
	connected atomic.Bool
	gone      chan struct{}
	goneOnce  sync.Once
}

func newFakeProbe() *fakeProbe {
	p := &fakeProbe{gone: make(chan struct{})}
	p.connected.Store(true)

	return p
}

func (p *fakeProbe) IsConnected() bool             { return p.connected.Load() }
func (p *fakeProbe) Disconnected() <-chan struct{} { return p.gone }
func (p *fakeProbe) disconnect()                   { p.goneOnce.Do(func() { close(p.gone) }) }

func waitTerminated(t *testing.T, m *Monitor) {
	t.Helper()

	select {
	case <-m.Terminated():
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not terminate")
	}
}

func TestMonitor_DisconnectSignal(t *testing.T) {
	probe := newFakeProbe()

	var calls atomic.Int32

	m := New(slog.Default(), probe, Config{Interval: time.Hour, Terminate: func() { calls.Add(1) }})
	require.Equal(t, Connected, m.State())

	go m.Run(context.Background())

	probe.disconnect()
	waitTerminated(t, m)

	require.Equal(t, Terminated, m.State())
	require.Equal(t, int32(1), calls.Load())
}

func TestMonitor_PollDetectsLostLink(t *testing.T) {
	probe := newFakeProbe()

	var calls atomic.Int32

	m := New(slog.Default(), probe, Config{Interval: 5 * time.Millisecond, Terminate: func() { calls.Add(1) }})

	go m.Run(context.Background())

	probe.connected.Store(false)
	waitTerminated(t, m)

	require.Equal(t, int32(1), calls.Load())
}

func TestMonitor_TerminatesExactlyOnce(t *testing.T) {
	probe := newFakeProbe()

	var calls atomic.Int32

	m := New(slog.Default(), probe, Config{Interval: time.Millisecond, Terminate: func() { calls.Add(1) }})

	go m.Run(context.Background())

	// Every detector fires at once.
	probe.connected.Store(false)
	probe.disconnect()

	var wg sync.WaitGroup
	for range 20 {
		wg.Go(m.Notify)
	}

	wg.Wait()
	waitTerminated(t, m)

	require.Equal(t, int32(1), calls.Load())
}

func TestMonitor_HealthyLinkStaysConnected(t *testing.T) {
	probe := newFakeProbe()

	m := New(slog.Default(), probe, Config{
		Interval:  time.Millisecond,
		Terminate: func() { t.Error("terminate must not run") },
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	m.Run(ctx)

	require.Equal(t, Connected, m.State())
}

func TestNew_Defaults(t *testing.T) {
	m := New(slog.Default(), newFakeProbe(), Config{})

	require.Equal(t, DefaultInterval, m.interval)
	require.NotNil(t, m.terminate)
	require.Equal(t, "connected", m.State().String())
}

func TestMonitor_DisarmPreventsTerminate(t *testing.T) {
	probe := newFakeProbe()

	m := New(slog.Default(), probe, Config{
		Interval:  time.Millisecond,
		Terminate: func() { t.Error("terminate must not run after Disarm") },
	})

	done := make(chan struct{})

	go func() {
		m.Run(context.Background())
		close(done)
	}()

	require.True(t, m.Disarm())
	require.False(t, m.Disarm())

	probe.disconnect()
	m.Notify()

	<-done

	require.Equal(t, Stopped, m.State())
}
