package pluginui

import (
	"log/slog"
	"time"

	"github.com/wagiedev/homebridge-plugin-ui-go/internal/bus"
	"github.com/wagiedev/homebridge-plugin-ui-go/internal/config"
)

// Options configures either side of the bridge.
type Options = config.Options

// Layout is the UI peer's view of its own document.
type Layout = config.Layout

// NopLayout ignores cosmetic actions and reports a zero content height.
type NopLayout = config.NopLayout

// EventBus is a string-keyed publish/subscribe facility. Supply one with
// WithEventBus to share events with an existing embedding.
type EventBus = bus.Bus

// NewEventBus returns the built-in in-memory EventBus.
func NewEventBus() EventBus { return bus.New() }

// Option configures Options using the functional options pattern.
type Option func(*Options)

// applyOptions applies functional options to an Options struct.
func applyOptions(opts []Option) *Options {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// ===== Basic Configuration =====

// WithLogger sets the logger for debug output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithTransport injects a custom transport.
// If not set, the side talks over os.Stdin and os.Stdout.
func WithTransport(t Transport) Option {
	return func(o *Options) {
		o.Transport = t
	}
}

// WithCodec selects the framing for the default stream transports.
func WithCodec(c Codec) Option {
	return func(o *Options) {
		o.Codec = c
	}
}

// WithEventBus routes pushes, responses and form events through b instead of
// a private bus.
func WithEventBus(b EventBus) Option {
	return func(o *Options) {
		o.EventBus = b
	}
}

// ===== UI Peer =====

// WithLayout sets the document the UI peer applies cosmetic actions to and
// samples its content height from.
func WithLayout(l Layout) Option {
	return func(o *Options) {
		o.Layout = l
	}
}

// WithHeightPollInterval sets how often the UI peer samples its content
// height after ready. Defaults to 250 milliseconds.
func WithHeightPollInterval(d time.Duration) Option {
	return func(o *Options) {
		o.HeightPollInterval = d
	}
}

// WithExitOnDisconnect makes the UI peer run a liveness monitor as the plugin
// server does.
func WithExitOnDisconnect() Option {
	return func(o *Options) {
		o.ExitOnDisconnect = true
	}
}

// ===== Liveness =====

// WithLivenessInterval sets the disconnect poll period. Defaults to 10 seconds.
func WithLivenessInterval(d time.Duration) Option {
	return func(o *Options) {
		o.LivenessInterval = d
	}
}

// WithTerminate replaces the action taken once the parent link is lost.
// The default sends SIGTERM to the current process.
func WithTerminate(fn func()) Option {
	return func(o *Options) {
		o.Terminate = fn
	}
}

// WithDisableLiveness turns off the plugin server's liveness monitor.
func WithDisableLiveness() Option {
	return func(o *Options) {
		o.DisableLiveness = true
	}
}
