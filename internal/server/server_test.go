package server

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wagiedev/homebridge-plugin-ui-go/internal/codec"
	"github.com/wagiedev/homebridge-plugin-ui-go/internal/config"
	internalerrors "github.com/wagiedev/homebridge-plugin-ui-go/internal/errors"
	"github.com/wagiedev/homebridge-plugin-ui-go/internal/message"
	"github.com/wagiedev/homebridge-plugin-ui-go/internal/transport"
)

func TestRegistry_Dispatch(t *testing.T) {
	r := NewRegistry(slog.Default())

	r.Register("/hello", func(_ context.Context, body any) (any, error) {
		return map[string]any{"echo": body}, nil
	})
	r.Register("/declared", func(context.Context, any) (any, error) {
		return nil, internalerrors.NewRequestError("Bad token", map[string]any{"status": 401})
	})
	r.Register("/plain", func(context.Context, any) (any, error) {
		return nil, errors.New("disk full")
	})
	r.Register("/panics", func(context.Context, any) (any, error) {
		panic("boom")
	})

	ctx := context.Background()

	tests := []struct {
		name    string
		req     *message.Request
		success bool
		data    any
	}{
		{
			name:    "success echoes body",
			req:     &message.Request{Path: "/hello", Body: "x", RequestID: "1"},
			success: true,
			data:    map[string]any{"echo": "x"},
		},
		{
			name:    "nil body becomes empty object",
			req:     &message.Request{Path: "/hello", RequestID: "2"},
			success: true,
			data:    map[string]any{"echo": map[string]any{}},
		},
		{
			name: "missing path is Not Found",
			req:  &message.Request{Path: "/missing", RequestID: "3"},
			data: map[string]any{"message": "Not Found", "path": "/missing"},
		},
		{
			name: "declared failure carries payload",
			req:  &message.Request{Path: "/declared", RequestID: "4"},
			data: map[string]any{"message": "Bad token", "error": map[string]any{"status": 401}},
		},
		{
			name: "plain error carries message only",
			req:  &message.Request{Path: "/plain", RequestID: "5"},
			data: map[string]any{"message": "disk full"},
		},
		{
			name: "panic is a failure",
			req:  &message.Request{Path: "/panics", RequestID: "6"},
			data: map[string]any{"message": "boom"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := r.Dispatch(ctx, tt.req)

			require.Equal(t, tt.req.RequestID, resp.RequestID)
			require.Equal(t, tt.success, resp.Success)
			require.Equal(t, tt.data, resp.Data)
		})
	}
}

func TestRegistry_LastRegistrationWins(t *testing.T) {
	r := NewRegistry(slog.Default())

	r.Register("/x", func(context.Context, any) (any, error) { return "first", nil })
	r.Register("/x", func(context.Context, any) (any, error) { return "second", nil })

	resp := r.Dispatch(context.Background(), &message.Request{Path: "/x", RequestID: "1"})
	require.Equal(t, "second", resp.Data)
	require.Equal(t, []string{"/x"}, r.Paths())
}

// startServer runs a Server over a pipe and returns the UI-side end.
func startServer(t *testing.T, opts *config.Options) (*Server, *transport.Pipe, <-chan map[string]any) {
	t.Helper()

	local, remote := transport.NewPipe(slog.Default(), codec.JSON())

	opts.Logger = slog.Default()
	opts.Transport = local

	s := New(opts)
	require.NoError(t, s.Start(context.Background()))

	t.Cleanup(func() { _ = s.Close() })

	incoming, _ := remote.ReadMessages(context.Background())

	return s, remote, incoming
}

func next(t *testing.T, incoming <-chan map[string]any) map[string]any {
	t.Helper()

	select {
	case env := <-incoming:
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for envelope")

		return nil
	}
}

func TestServer_ReadyAndPush(t *testing.T) {
	s, _, incoming := startServer(t, &config.Options{DisableLiveness: true})

	ctx := context.Background()
	require.NoError(t, s.Ready(ctx))
	require.NoError(t, s.PushEvent(ctx, "server-time-event", 1234.0))

	require.Equal(t, map[string]any{"action": "ready", "server": true}, next(t, incoming))
	require.Equal(t, map[string]any{
		"action": "stream",
		"event":  "server-time-event",
		"data":   1234.0,
	}, next(t, incoming))
}

func TestServer_SlowHandlerDoesNotBlockOthers(t *testing.T) {
	s, remote, incoming := startServer(t, &config.Options{DisableLiveness: true})

	release := make(chan struct{})

	s.OnRequest("/slow", func(ctx context.Context, _ any) (any, error) {
		select {
		case <-release:
			return "slow", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	s.OnRequest("/fast", func(context.Context, any) (any, error) { return "fast", nil })

	ctx := context.Background()
	require.NoError(t, remote.SendMessage(ctx, map[string]any{"action": "request", "path": "/slow", "requestId": "a"}))
	require.NoError(t, remote.SendMessage(ctx, map[string]any{"action": "request", "path": "/fast", "requestId": "b"}))

	first := next(t, incoming)
	require.Equal(t, "b", first["requestId"])
	require.Equal(t, "fast", first["data"])

	close(release)

	second := next(t, incoming)
	require.Equal(t, "a", second["requestId"])
	require.Equal(t, true, second["success"])
}

func TestServer_UnknownPathAnswersNotFound(t *testing.T) {
	_, remote, incoming := startServer(t, &config.Options{DisableLiveness: true})

	require.NoError(t, remote.SendMessage(context.Background(),
		map[string]any{"action": "request", "path": "/nope", "requestId": "r1", "body": map[string]any{}}))

	env := next(t, incoming)
	require.Equal(t, "response", env["action"])
	require.Equal(t, "r1", env["requestId"])
	require.Equal(t, false, env["success"])
	require.Equal(t, map[string]any{"message": "Not Found", "path": "/nope"}, env["data"])
}

func TestServer_RunTerminatesOnParentLoss(t *testing.T) {
	var terminations atomic.Int32

	s, remote, _ := startServer(t, &config.Options{
		LivenessInterval: time.Hour,
		Terminate:        func() { terminations.Add(1) },
	})

	errCh := make(chan error, 1)

	go func() { errCh <- s.Run(context.Background()) }()

	require.NoError(t, remote.Close())

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after parent loss")
	}

	require.Equal(t, int32(1), terminations.Load())
}

func TestServer_RunStopsOnContextWithoutTerminating(t *testing.T) {
	s, _, _ := startServer(t, &config.Options{
		LivenessInterval: time.Millisecond,
		Terminate:        func() { t.Error("local shutdown must not terminate") },
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)

	go func() { errCh <- s.Run(ctx) }()

	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestEnvFromOS(t *testing.T) {
	t.Setenv(config.EnvStoragePath, "/var/lib/homebridge")
	t.Setenv(config.EnvConfigPath, "/var/lib/homebridge/config.json")
	t.Setenv(config.EnvUIVersion, "4.50.0")

	require.Equal(t, Env{
		StoragePath: "/var/lib/homebridge",
		ConfigPath:  "/var/lib/homebridge/config.json",
		UIVersion:   "4.50.0",
	}, EnvFromOS())
}
