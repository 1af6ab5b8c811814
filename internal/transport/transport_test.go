package transport

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wagiedev/homebridge-plugin-ui-go/internal/codec"
	"github.com/wagiedev/homebridge-plugin-ui-go/internal/errors"
)

func receive(t *testing.T, messages <-chan map[string]any) map[string]any {
	t.Helper()

	select {
	case msg, ok := <-messages:
		require.True(t, ok, "message channel closed")

		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")

		return nil
	}
}

func TestPipe_DeliversBothDirections(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, c := range []codec.Codec{codec.JSON(), codec.CBOR()} {
		a, b := NewPipe(slog.Default(), c)
		require.NoError(t, a.Start(ctx))
		require.NoError(t, b.Start(ctx))

		aIn, _ := a.ReadMessages(ctx)
		bIn, _ := b.ReadMessages(ctx)

		require.NoError(t, a.SendMessage(ctx, map[string]any{"action": "ready"}))
		require.NoError(t, b.SendMessage(ctx, map[string]any{"action": "stream", "event": "tick"}))

		require.Equal(t, "ready", receive(t, bIn)["action"])
		require.Equal(t, "tick", receive(t, aIn)["event"])

		require.NoError(t, a.Close())
	}
}

func TestPipe_DoesNotShareMemory(t *testing.T) {
	ctx := context.Background()
	a, b := NewPipe(slog.Default(), nil)

	in, _ := b.ReadMessages(ctx)

	body := map[string]any{"n": "before"}
	require.NoError(t, a.SendMessage(ctx, map[string]any{"action": "stream", "event": "e", "data": body}))

	body["n"] = "after"

	msg := receive(t, in)
	require.Equal(t, "before", msg["data"].(map[string]any)["n"])
}

func TestPipe_CloseDisconnectsBothEnds(t *testing.T) {
	ctx := context.Background()
	a, b := NewPipe(slog.Default(), nil)

	require.True(t, a.IsConnected())
	require.True(t, b.IsConnected())

	require.NoError(t, b.Close())

	select {
	case <-a.Disconnected():
	case <-time.After(time.Second):
		t.Fatal("other end not disconnected")
	}

	require.False(t, a.IsConnected())
	require.ErrorIs(t, a.SendMessage(ctx, map[string]any{"action": "ready"}), errors.ErrTransportNotConnected)

	// Close is idempotent.
	require.NoError(t, a.Close())
}

func TestPipe_QueuedMessagesSurviveClose(t *testing.T) {
	ctx := context.Background()
	a, b := NewPipe(slog.Default(), nil)

	require.NoError(t, a.SendMessage(ctx, map[string]any{"action": "response", "requestId": "r1"}))
	require.NoError(t, a.Close())

	in, _ := b.ReadMessages(ctx)
	require.Equal(t, "r1", receive(t, in)["requestId"])

	_, ok := <-in
	require.False(t, ok)
}

func TestStream_EOFDisconnects(t *testing.T) {
	ctx := context.Background()
	r, w := io.Pipe()

	s := NewStream(slog.Default(), r, io.Discard, codec.JSON())
	require.NoError(t, s.Start(ctx))
	require.True(t, s.IsConnected())

	in, errs := s.ReadMessages(ctx)

	go func() {
		_, _ = w.Write([]byte("{\"action\":\"ready\"}\nnot json\n{\"action\":\"close\"}\n"))
		_ = w.Close()
	}()

	require.Equal(t, "ready", receive(t, in)["action"])
	require.Equal(t, "close", receive(t, in)["action"], "malformed line must be skipped")

	_, ok := <-in
	require.False(t, ok)

	// EOF is a clean disconnect, not an error.
	err, ok := <-errs
	require.False(t, ok)
	require.NoError(t, err)

	<-s.Disconnected()
	require.False(t, s.IsConnected())
}

func TestStream_SendBeforeStart(t *testing.T) {
	s := NewStream(slog.Default(), eofReader{}, io.Discard, nil)

	err := s.SendMessage(context.Background(), map[string]any{"action": "ready"})
	require.ErrorIs(t, err, errors.ErrTransportNotConnected)
}

func TestStream_CancelledWriteKeepsStream(t *testing.T) {
	r, w := io.Pipe()

	s := NewStream(slog.Default(), eofReader{}, w, codec.JSON())
	require.NoError(t, s.Start(context.Background()))

	// Nobody reads yet, so the write blocks until the caller gives up.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := s.SendMessage(ctx, map[string]any{"action": "stream", "event": "first"})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case <-s.Disconnected():
		t.Fatal("cancelled write disconnected the stream")
	default:
	}

	sent := make(chan error, 1)

	go func() {
		sent <- s.SendMessage(context.Background(), map[string]any{"action": "stream", "event": "second"})
	}()

	dec := codec.JSON().NewDecoder(r)

	first, err := dec.Decode()
	require.NoError(t, err)
	require.Equal(t, "first", first["event"])

	second, err := dec.Decode()
	require.NoError(t, err)
	require.Equal(t, "second", second["event"])

	require.NoError(t, <-sent)
}

func TestTCP_DialAccept(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ln, err := Listen(slog.Default(), "127.0.0.1:0", codec.JSON())
	require.NoError(t, err)

	defer ln.Close()

	accepted := make(chan *Stream, 1)

	go func() {
		s, err := ln.Accept(ctx)
		if err == nil {
			accepted <- s
		}
	}()

	client, err := Dial(ctx, slog.Default(), ln.Addr().(*net.TCPAddr).String(), codec.JSON())
	require.NoError(t, err)
	require.NoError(t, client.Start(ctx))

	defer client.Close()

	var server *Stream
	select {
	case server = <-accepted:
	case <-ctx.Done():
		t.Fatal("accept timed out")
	}

	require.NoError(t, server.Start(ctx))

	in, _ := server.ReadMessages(ctx)
	require.NoError(t, client.SendMessage(ctx, map[string]any{"action": "request", "path": "/x", "requestId": "r"}))
	require.Equal(t, "/x", receive(t, in)["path"])

	require.NoError(t, client.Close())

	select {
	case <-server.Disconnected():
	case <-ctx.Done():
		t.Fatal("server side did not observe disconnect")
	}
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }
