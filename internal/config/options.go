package config

import (
	"log/slog"
	"time"

	"github.com/wagiedev/homebridge-plugin-ui-go/internal/bus"
	"github.com/wagiedev/homebridge-plugin-ui-go/internal/codec"
)

// Environment variables exported to the plugin server process.
const (
	EnvStoragePath = "HOMEBRIDGE_STORAGE_PATH"
	EnvConfigPath  = "HOMEBRIDGE_CONFIG_PATH"
	EnvUIVersion   = "HOMEBRIDGE_UI_VERSION"
)

// Layout is the UI peer's view of its own document. The dispatcher applies
// cosmetic actions from the host through it and samples the content height.
type Layout interface {
	// AddBodyClass adds a class to the document body.
	AddBodyClass(class string)

	// InjectStyle adds an inline stylesheet.
	InjectStyle(css string)

	// InjectLink adds a link element, typically a stylesheet.
	InjectLink(href, rel string)

	// Reveal makes the content visible once the server is ready.
	Reveal()

	// ContentHeight returns the current content height in pixels.
	ContentHeight() int
}

// NopLayout ignores every cosmetic action and reports a zero height.
type NopLayout struct{}

func (NopLayout) AddBodyClass(string)       {}
func (NopLayout) InjectStyle(string)        {}
func (NopLayout) InjectLink(string, string) {}
func (NopLayout) Reveal()                   {}
func (NopLayout) ContentHeight() int        { return 0 }

var _ Layout = NopLayout{}

// Options configures either side of the bridge.
type Options struct {
	// Logger is the slog logger for debug output.
	// If nil, logging is disabled (silent operation).
	Logger *slog.Logger

	// Codec frames messages on stream transports. Nil means JSON.
	Codec codec.Codec

	// EventBus is an externally supplied bus. Nil means a private in-memory bus.
	EventBus bus.Bus

	// Layout receives cosmetic actions on the UI side. Nil means NopLayout.
	Layout Layout

	// LivenessInterval is the disconnect poll period. Zero means 10 seconds.
	LivenessInterval time.Duration

	// Terminate runs once when the parent link is lost. Nil means SIGTERM to
	// the current process.
	Terminate func()

	// ExitOnDisconnect enables the liveness monitor on the UI side. The plugin
	// server always runs one unless DisableLiveness is set.
	ExitOnDisconnect bool

	// DisableLiveness turns off the plugin server's liveness monitor. Useful
	// when the server is embedded in a process it must not signal.
	DisableLiveness bool

	// HeightPollInterval is the content height sampling period on the UI side.
	// Zero means 250 milliseconds.
	HeightPollInterval time.Duration

	// Stderr is a callback for lines the plugin server writes to stderr.
	Stderr func(string)

	// Env provides additional environment variables for the plugin server.
	Env map[string]string

	// Transport allows injecting a custom transport implementation.
	// If nil, the side's default transport is used (stdio for the server).
	Transport Transport `json:"-"`
}
