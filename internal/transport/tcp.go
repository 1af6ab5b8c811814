package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/wagiedev/homebridge-plugin-ui-go/internal/codec"
	"github.com/wagiedev/homebridge-plugin-ui-go/internal/errors"
)

// Dial connects to a bridge listening on addr.
func Dial(ctx context.Context, log *slog.Logger, addr string, c codec.Codec) (*Stream, error) {
	var dialer net.Dialer

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &errors.ConnectionError{Err: fmt.Errorf("dial %s: %w", addr, err)}
	}

	return NewConn(log, conn, c), nil
}

// Listener accepts bridge peers over TCP.
type Listener struct {
	log      *slog.Logger
	codec    codec.Codec
	listener net.Listener
}

// Listen binds addr. Port 0 selects an ephemeral port; see Addr.
func Listen(log *slog.Logger, addr string, c codec.Codec) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, &errors.ConnectionError{Err: fmt.Errorf("listen on %s: %w", addr, err)}
	}

	return &Listener{
		log:      log.With("component", "tcp_listener"),
		codec:    c,
		listener: ln,
	}, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr {
	return l.listener.Addr()
}

// Accept waits for one peer. Cancelling ctx closes the listener.
func (l *Listener) Accept(ctx context.Context) (*Stream, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = l.listener.Close()
	})
	defer stop()

	conn, err := l.listener.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		return nil, fmt.Errorf("accept: %w", err)
	}

	l.log.Info("Accepted bridge peer", "remote_addr", conn.RemoteAddr().String())

	return NewConn(l.log, conn, l.codec), nil
}

// Close stops listening.
func (l *Listener) Close() error {
	return l.listener.Close()
}
