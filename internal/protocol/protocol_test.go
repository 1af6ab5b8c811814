package protocol

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wagiedev/homebridge-plugin-ui-go/internal/codec"
	internalerrors "github.com/wagiedev/homebridge-plugin-ui-go/internal/errors"
	"github.com/wagiedev/homebridge-plugin-ui-go/internal/message"
	"github.com/wagiedev/homebridge-plugin-ui-go/internal/transport"
)

type collector struct {
	mu   sync.Mutex
	msgs []message.Message
	seen chan struct{}
}

func newCollector() *collector {
	return &collector{seen: make(chan struct{}, 64)}
}

func (c *collector) handle(_ context.Context, msg message.Message) {
	c.mu.Lock()
	c.msgs = append(c.msgs, msg)
	c.mu.Unlock()

	c.seen <- struct{}{}
}

func (c *collector) wait(t *testing.T, n int) []message.Message {
	t.Helper()

	for range n {
		select {
		case <-c.seen:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for messages")
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]message.Message(nil), c.msgs...)
}

func TestController_RoutesInOrderAndSkipsAnomalies(t *testing.T) {
	local, remote := transport.NewPipe(slog.Default(), codec.JSON())
	col := newCollector()

	controller := NewController(slog.Default(), local, col.handle)
	require.NoError(t, controller.Start(context.Background()))

	defer controller.Stop()

	ctx := context.Background()
	require.NoError(t, remote.SendMessage(ctx, map[string]any{"action": "stream", "event": "a", "data": 1}))
	require.NoError(t, remote.SendMessage(ctx, map[string]any{"action": "no-such-action"}))
	require.NoError(t, remote.SendMessage(ctx, map[string]any{"action": "request"}))
	require.NoError(t, remote.SendMessage(ctx, map[string]any{"action": "stream", "event": "b", "data": 2}))

	got := col.wait(t, 2)
	require.Len(t, got, 2)
	require.Equal(t, "a", got[0].(*message.Stream).Event)
	require.Equal(t, "b", got[1].(*message.Stream).Event)
}

func TestController_SendEncodesEnvelope(t *testing.T) {
	local, remote := transport.NewPipe(slog.Default(), codec.JSON())

	controller := NewController(slog.Default(), local, func(context.Context, message.Message) {})
	require.NoError(t, controller.Start(context.Background()))

	defer controller.Stop()

	incoming, _ := remote.ReadMessages(context.Background())

	require.NoError(t, controller.Send(context.Background(), &message.Ready{Server: true}))

	select {
	case env := <-incoming:
		require.Equal(t, map[string]any{"action": "ready", "server": true}, env)
	case <-time.After(2 * time.Second):
		t.Fatal("no envelope received")
	}
}

func TestController_DoneWhenPeerCloses(t *testing.T) {
	local, remote := transport.NewPipe(slog.Default(), codec.JSON())

	controller := NewController(slog.Default(), local, func(context.Context, message.Message) {})
	require.NoError(t, controller.Start(context.Background()))

	require.NoError(t, remote.Close())

	select {
	case <-controller.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("controller did not observe peer close")
	}

	controller.Stop()
}

func TestController_StartTwice(t *testing.T) {
	local, _ := transport.NewPipe(slog.Default(), codec.JSON())

	controller := NewController(slog.Default(), local, func(context.Context, message.Message) {})
	require.NoError(t, controller.Start(context.Background()))

	defer controller.Stop()

	require.ErrorIs(t, controller.Start(context.Background()), internalerrors.ErrAlreadyStarted)
}

func TestController_StopCancelsWorkers(t *testing.T) {
	local, _ := transport.NewPipe(slog.Default(), codec.JSON())

	controller := NewController(slog.Default(), local, func(context.Context, message.Message) {})
	require.NoError(t, controller.Start(context.Background()))

	cancelled := make(chan struct{})

	controller.Go(func() {
		<-controller.Done()
		close(cancelled)
	})

	controller.Stop()

	select {
	case <-cancelled:
	default:
		t.Fatal("worker should have finished before Stop returned")
	}
}

func TestController_SetFatalError_ConcurrentWithStop(t *testing.T) {
	for range 100 {
		local, _ := transport.NewPipe(slog.Default(), codec.JSON())
		controller := NewController(slog.Default(), local, func(context.Context, message.Message) {})

		require.NoError(t, controller.Start(context.Background()))

		var wg sync.WaitGroup

		wg.Go(func() { controller.SetFatalError(errors.New("transport error")) })
		wg.Go(controller.Stop)

		wg.Wait()

		select {
		case <-controller.Done():
		default:
			t.Fatal("done channel should be closed")
		}
	}
}

func TestController_SetFatalError_MultipleCalls(t *testing.T) {
	local, _ := transport.NewPipe(slog.Default(), codec.JSON())
	controller := NewController(slog.Default(), local, func(context.Context, message.Message) {})

	require.NoError(t, controller.Start(context.Background()))

	defer controller.Stop()

	controller.SetFatalError(errors.New("first error"))
	require.EqualError(t, controller.FatalError(), "first error")

	controller.SetFatalError(errors.New("second error"))
	require.EqualError(t, controller.FatalError(), "first error")
}
