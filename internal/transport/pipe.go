package transport

import (
	"bytes"
	"context"
	"log/slog"
	"sync"

	"github.com/wagiedev/homebridge-plugin-ui-go/internal/codec"
	"github.com/wagiedev/homebridge-plugin-ui-go/internal/config"
	"github.com/wagiedev/homebridge-plugin-ui-go/internal/errors"
)

// pipeBufferSize bounds the number of undelivered messages per direction.
const pipeBufferSize = 256

// pipeLink is shared by both ends; closing it disconnects both.
type pipeLink struct {
	once sync.Once
	done chan struct{}
}

func (l *pipeLink) close() {
	l.once.Do(func() { close(l.done) })
}

// Pipe is one end of an in-memory connected pair.
type Pipe struct {
	log   *slog.Logger
	codec codec.Codec
	link  *pipeLink
	inbox chan []byte
	peer  *Pipe
}

// Compile-time verification that Pipe implements the Transport interface.
var _ config.Transport = (*Pipe)(nil)

// NewPipe creates a connected pair of in-memory transports. Messages are
// serialized with c on send and decoded on receipt.
func NewPipe(log *slog.Logger, c codec.Codec) (*Pipe, *Pipe) {
	if c == nil {
		c = codec.JSON()
	}

	link := &pipeLink{done: make(chan struct{})}

	a := &Pipe{
		log:   log.With("component", "pipe_transport", "end", "a"),
		codec: c,
		link:  link,
		inbox: make(chan []byte, pipeBufferSize),
	}
	b := &Pipe{
		log:   log.With("component", "pipe_transport", "end", "b"),
		codec: c,
		link:  link,
		inbox: make(chan []byte, pipeBufferSize),
	}

	a.peer, b.peer = b, a

	return a, b
}

// Start is a no-op; pipes are connected on creation.
func (p *Pipe) Start(_ context.Context) error {
	if !p.IsConnected() {
		return errors.ErrTransportNotConnected
	}

	return nil
}

// ReadMessages delivers messages sent by the other end. Messages already
// queued when the pipe closes are still delivered.
func (p *Pipe) ReadMessages(ctx context.Context) (<-chan map[string]any, <-chan error) {
	messages := make(chan map[string]any)
	errs := make(chan error, 1)

	go func() {
		defer close(messages)
		defer close(errs)

		deliver := func(data []byte) bool {
			msg, err := p.codec.NewDecoder(bytes.NewReader(data)).Decode()
			if err != nil {
				p.log.Warn("Skipping undecodable message", "error", err)

				return true
			}

			select {
			case messages <- msg:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			select {
			case data := <-p.inbox:
				if !deliver(data) {
					return
				}

			case <-p.link.done:
				for {
					select {
					case data := <-p.inbox:
						if !deliver(data) {
							return
						}
					default:
						return
					}
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	return messages, errs
}

// SendMessage queues msg on the other end.
func (p *Pipe) SendMessage(ctx context.Context, msg map[string]any) error {
	select {
	case <-p.link.done:
		return errors.ErrTransportNotConnected
	default:
	}

	var buf bytes.Buffer
	if err := p.codec.Encode(&buf, msg); err != nil {
		return err
	}

	select {
	case p.peer.inbox <- buf.Bytes():
		return nil
	case <-p.link.done:
		return errors.ErrTransportNotConnected
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsConnected reports whether neither end has closed.
func (p *Pipe) IsConnected() bool {
	select {
	case <-p.link.done:
		return false
	default:
		return true
	}
}

// Disconnected returns a channel closed when either end closes.
func (p *Pipe) Disconnected() <-chan struct{} {
	return p.link.done
}

// Close disconnects both ends.
func (p *Pipe) Close() error {
	p.link.close()

	return nil
}
