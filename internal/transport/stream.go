package transport

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"

	"github.com/wagiedev/homebridge-plugin-ui-go/internal/codec"
	"github.com/wagiedev/homebridge-plugin-ui-go/internal/config"
	"github.com/wagiedev/homebridge-plugin-ui-go/internal/errors"
)

// Stream implements config.Transport over a reader/writer pair.
type Stream struct {
	log     *slog.Logger
	codec   codec.Codec
	reader  io.Reader
	writer  io.Writer
	closers []io.Closer

	writeSlot chan struct{} // Held for the whole of one frame write
	started   atomic.Bool
	closing atomic.Bool

	disconnectOnce sync.Once
	disconnected   chan struct{}
}

// Compile-time verification that Stream implements the Transport interface.
var _ config.Transport = (*Stream)(nil)

// NewStream creates a transport reading from r and writing to w.
// The closers are closed by Close, in order.
func NewStream(log *slog.Logger, r io.Reader, w io.Writer, c codec.Codec, closers ...io.Closer) *Stream {
	if c == nil {
		c = codec.JSON()
	}

	return &Stream{
		log:          log.With("component", "stream_transport", "codec", c.Name()),
		codec:        c,
		reader:       r,
		writer:       w,
		closers:      closers,
		writeSlot:    make(chan struct{}, 1),
		disconnected: make(chan struct{}),
	}
}

// NewStdio creates a transport over the process's stdin and stdout.
// EOF on stdin means the parent is gone.
func NewStdio(log *slog.Logger, c codec.Codec) *Stream {
	return NewStream(log, os.Stdin, os.Stdout, c)
}

// NewConn creates a transport over a network connection.
func NewConn(log *slog.Logger, conn net.Conn, c codec.Codec) *Stream {
	return NewStream(log.With("remote_addr", conn.RemoteAddr().String()), conn, conn, c, conn)
}

// Start marks the transport ready for communication.
func (t *Stream) Start(_ context.Context) error {
	if t.closing.Load() {
		return errors.ErrTransportNotConnected
	}

	t.started.Store(true)

	return nil
}

// ReadMessages reads framed envelopes until EOF, a fatal decode error, or
// context cancellation. Malformed single messages are logged and skipped.
func (t *Stream) ReadMessages(ctx context.Context) (<-chan map[string]any, <-chan error) {
	messages := make(chan map[string]any)
	errs := make(chan error, 1)

	go func() {
		defer close(messages)
		defer close(errs)
		defer t.log.Debug("ReadMessages goroutine stopped")

		dec := t.codec.NewDecoder(t.reader)
		messageCount := 0

		for {
			msg, err := dec.Decode()
			if err != nil {
				if _, ok := stderrors.AsType[*errors.DecodeError](err); ok {
					t.log.Warn("Skipping malformed message", "error", err)

					continue
				}

				if stderrors.Is(err, io.EOF) || t.closing.Load() {
					t.log.Debug("Stream reached end of input")
				} else {
					t.log.Error("Fatal read error", "error", err)

					errs <- err
				}

				t.markDisconnected()

				return
			}

			messageCount++
			t.log.Debug("Received message", "message_count", messageCount, "action", msg["action"])

			select {
			case messages <- msg:
			case <-ctx.Done():
				t.log.Debug("Context cancelled during message send", "error", ctx.Err())

				return
			}
		}
	}()

	return messages, errs
}

// SendMessage writes one framed envelope. It is safe for concurrent use and
// respects context cancellation even during blocking writes.
//
// If the context is cancelled during a blocked write, SendMessage returns
// ctx.Err() while the frame finishes in the background. The stream stays
// connected and later writes wait for that frame.
func (t *Stream) SendMessage(ctx context.Context, msg map[string]any) error {
	if !t.started.Load() || t.closing.Load() {
		return errors.ErrTransportNotConnected
	}

	select {
	case t.writeSlot <- struct{}{}:
	case <-t.disconnected:
		return errors.ErrTransportNotConnected
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-t.disconnected:
		<-t.writeSlot

		return errors.ErrTransportNotConnected
	default:
	}

	done := make(chan error, 1)

	go func() {
		defer func() { <-t.writeSlot }()

		err := t.codec.Encode(t.writer, msg)
		if err != nil {
			if t.closing.Load() {
				t.log.Debug("Write interrupted by close", "error", err)
			} else {
				t.log.Error("Failed to write message", "error", err)
			}

			t.markDisconnected()
		}

		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send message: %w", err)
		}

		return nil

	case <-ctx.Done():
		t.log.Debug("Context cancelled during write, frame completes in the background")

		return ctx.Err()
	}
}

// IsConnected reports whether the stream is started and has not lost its peer.
func (t *Stream) IsConnected() bool {
	if !t.started.Load() || t.closing.Load() {
		return false
	}

	select {
	case <-t.disconnected:
		return false
	default:
		return true
	}
}

// Disconnected returns a channel closed when the peer is lost.
func (t *Stream) Disconnected() <-chan struct{} {
	return t.disconnected
}

// Close disconnects the stream and closes the underlying resources.
// It's safe to call Close multiple times.
func (t *Stream) Close() error {
	if !t.closing.CompareAndSwap(false, true) {
		return nil
	}

	err := t.closeUnderlying()
	t.markDisconnected()

	return err
}

func (t *Stream) closeUnderlying() error {
	var errs []error

	for _, c := range t.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return stderrors.Join(errs...)
}

func (t *Stream) markDisconnected() {
	t.disconnectOnce.Do(func() {
		t.log.Debug("Stream disconnected")
		close(t.disconnected)
	})
}
