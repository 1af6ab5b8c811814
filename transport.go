package pluginui

import (
	"context"

	"github.com/wagiedev/homebridge-plugin-ui-go/internal/codec"
	"github.com/wagiedev/homebridge-plugin-ui-go/internal/config"
	"github.com/wagiedev/homebridge-plugin-ui-go/internal/transport"
)

// Transport defines the interface for the message channel between the two
// sides of the bridge. Implement this to provide custom transports for
// testing, mocking, or alternative channels.
//
// The plugin server defaults to a stdio transport. Custom transports can be
// injected via WithTransport.
type Transport = config.Transport

// Codec frames envelopes on a byte stream.
type Codec = codec.Codec

// JSONCodec returns the newline-delimited JSON codec, the default.
func JSONCodec() Codec { return codec.JSON() }

// CBORCodec returns the CBOR sequence codec.
func CBORCodec() Codec { return codec.CBOR() }

// NewPipe returns two connected in-memory transports. Messages are encoded
// on send, so the ends never share memory. Closing either end disconnects
// both.
func NewPipe() (Transport, Transport) {
	a, b := transport.NewPipe(NopLogger(), nil)

	return a, b
}

// Dial connects to a host listening on a TCP address and returns the
// transport for a UI peer.
func Dial(ctx context.Context, addr string, opts ...Option) (Transport, error) {
	options := applyOptions(opts)

	log := options.Logger
	if log == nil {
		log = NopLogger()
	}

	t, err := transport.Dial(ctx, log, addr, options.Codec)
	if err != nil {
		return nil, err
	}

	return t, nil
}
