// Package host implements the relay between a UI peer and a plugin server.
//
// The Host forwards requests from the UI to the plugin server and relays
// responses, stream events and the server's ready announcement back. It
// answers the config.* and i18n.* calls itself from a ConfigStore, renders
// toasts, spinners and forms through a Surface, and pushes form sub-events
// to the UI.
package host

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/wagiedev/homebridge-plugin-ui-go/internal/config"
	"github.com/wagiedev/homebridge-plugin-ui-go/internal/errors"
	"github.com/wagiedev/homebridge-plugin-ui-go/internal/message"
	"github.com/wagiedev/homebridge-plugin-ui-go/internal/protocol"
	"github.com/wagiedev/homebridge-plugin-ui-go/internal/server"
)

// Config wires a Host to its two peers.
type Config struct {
	// Logger is the slog logger for debug output.
	// If nil, logging is disabled (silent operation).
	Logger *slog.Logger

	// UI is the transport to the UI peer. Required.
	UI config.Transport

	// Server is the transport to the plugin server, usually a
	// subprocess.Process. Nil means the plugin has no server: the host
	// announces ready itself and fails every request.
	Server config.Transport

	// Store answers config.* and i18n.* calls. Nil means an empty MemoryStore.
	Store ConfigStore

	// Surface renders display requests. Nil means NopSurface.
	Surface Surface
}

// Host relays between one UI peer and one plugin server.
type Host struct {
	log     *slog.Logger
	ui      config.Transport
	server  config.Transport
	store   ConfigStore
	surface Surface

	uiCtl     *protocol.Controller
	serverCtl *protocol.Controller
	calls     *server.Registry

	formMu  sync.Mutex
	forms   map[string]struct{}
	current string

	closeOnce sync.Once
	closeErr  error
}

// New creates a Host. Nothing is started until Start.
func New(cfg Config) *Host {
	base := cfg.Logger
	if base == nil {
		base = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	h := &Host{
		log:     base.With("component", "host"),
		ui:      cfg.UI,
		server:  cfg.Server,
		store:   cfg.Store,
		surface: cfg.Surface,
		calls:   server.NewRegistry(base),
		forms:   make(map[string]struct{}),
	}

	if h.store == nil {
		h.store = NewMemoryStore(nil, map[string]any{})
	}

	if h.surface == nil {
		h.surface = NopSurface{}
	}

	h.uiCtl = protocol.NewController(base.With("peer", "ui"), h.ui, h.handleUI)

	if h.server != nil {
		h.serverCtl = protocol.NewController(base.With("peer", "server"), h.server, h.handleServer)
	}

	h.registerCalls()

	return h
}

// Calls returns the registry answering host calls, keyed by action name.
// Registering an action replaces the store-backed handler.
func (h *Host) Calls() *server.Registry {
	return h.calls
}

func (h *Host) registerCalls() {
	h.calls.Register(string(message.ActionConfigGet), func(ctx context.Context, _ any) (any, error) {
		return h.store.Get(ctx)
	})

	h.calls.Register(string(message.ActionConfigUpdate), func(ctx context.Context, body any) (any, error) {
		var blocks []any
		if err := message.Bind(body, &blocks); err != nil {
			return nil, errors.NewRequestError("pluginConfig must be an array of config blocks", err.Error())
		}

		return h.store.Update(ctx, blocks)
	})

	h.calls.Register(string(message.ActionConfigSave), func(ctx context.Context, _ any) (any, error) {
		if err := h.store.Save(ctx); err != nil {
			return nil, err
		}

		return h.store.Get(ctx)
	})

	h.calls.Register(string(message.ActionConfigSchema), func(ctx context.Context, _ any) (any, error) {
		return h.store.Schema(ctx)
	})

	h.calls.Register(string(message.ActionI18nLang), func(ctx context.Context, _ any) (any, error) {
		return h.store.Lang(ctx)
	})

	h.calls.Register(string(message.ActionI18nTranslations), func(ctx context.Context, _ any) (any, error) {
		return h.store.Translations(ctx)
	})
}

// Start spawns or connects the plugin server, then starts relaying.
func (h *Host) Start(ctx context.Context) error {
	h.log.Debug("Starting host")

	if h.server != nil {
		if err := h.server.Start(ctx); err != nil {
			return fmt.Errorf("start plugin server: %w", err)
		}
	}

	if err := h.ui.Start(ctx); err != nil {
		if h.server != nil {
			_ = h.server.Close()
		}

		return &errors.ConnectionError{Err: err}
	}

	if err := h.uiCtl.Start(ctx); err != nil {
		return fmt.Errorf("start ui protocol: %w", err)
	}

	if h.serverCtl == nil {
		h.log.Info("Plugin has no server, announcing ready")

		return h.uiCtl.Send(ctx, &message.Ready{})
	}

	if err := h.serverCtl.Start(ctx); err != nil {
		return fmt.Errorf("start server protocol: %w", err)
	}

	h.log.Info("Host started")

	return nil
}

// Run blocks until ctx is done or either peer goes away, then closes the
// host. It returns the first fatal transport error, if any.
func (h *Host) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		select {
		case <-gctx.Done():
			h.log.Debug("Host context done")
		case <-h.uiCtl.Done():
			h.log.Info("UI peer disconnected")
		case <-h.serverDone():
			h.log.Info("Plugin server disconnected")
		}

		return h.Close()
	})

	if err := g.Wait(); err != nil {
		return err
	}

	var fatal []error

	if err := h.uiCtl.FatalError(); err != nil {
		fatal = append(fatal, fmt.Errorf("ui: %w", err))
	}

	if h.serverCtl != nil {
		if err := h.serverCtl.FatalError(); err != nil {
			fatal = append(fatal, fmt.Errorf("plugin server: %w", err))
		}
	}

	return stderrors.Join(fatal...)
}

func (h *Host) serverDone() <-chan struct{} {
	if h.serverCtl == nil {
		return nil
	}

	return h.serverCtl.Done()
}

// Close stops relaying and closes both transports. Closing the server
// transport terminates a spawned plugin server. It's safe to call Close
// multiple times.
func (h *Host) Close() error {
	h.closeOnce.Do(func() {
		h.log.Debug("Closing host")

		var errs []error

		h.uiCtl.Stop()

		if h.serverCtl != nil {
			h.serverCtl.Stop()
		}

		if err := h.ui.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close ui: %w", err))
		}

		if h.server != nil {
			if err := h.server.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close plugin server: %w", err))
			}
		}

		h.closeErr = stderrors.Join(errs...)
	})

	return h.closeErr
}

// SendFormEvent pushes a change, submit or cancel event for an open form.
// Returns errors.ErrUnknownForm when formID is not open.
func (h *Host) SendFormEvent(ctx context.Context, formID string, kind message.FormEventKind, data any) error {
	if !kind.Valid() {
		return fmt.Errorf("invalid form event kind %q", kind)
	}

	h.formMu.Lock()
	_, open := h.forms[formID]
	h.formMu.Unlock()

	if !open {
		return fmt.Errorf("%w: %s", errors.ErrUnknownForm, formID)
	}

	return h.uiCtl.Send(ctx, &message.FormEvent{FormID: formID, Kind: kind, FormData: data})
}

// OpenForms returns the ids of the forms the UI has open, sorted.
func (h *Host) OpenForms() []string {
	h.formMu.Lock()
	defer h.formMu.Unlock()

	return slices.Sorted(maps.Keys(h.forms))
}

// AddBodyClass asks the UI to add a class to its document body.
func (h *Host) AddBodyClass(ctx context.Context, class string) error {
	return h.uiCtl.Send(ctx, &message.BodyClass{Class: class})
}

// InjectStyle asks the UI to add an inline stylesheet.
func (h *Host) InjectStyle(ctx context.Context, css string) error {
	return h.uiCtl.Send(ctx, &message.InlineStyle{Style: css})
}

// InjectLink asks the UI to add a link element.
func (h *Host) InjectLink(ctx context.Context, href, rel string) error {
	return h.uiCtl.Send(ctx, &message.LinkElement{Href: href, Rel: rel})
}

// handleUI routes traffic from the UI peer.
func (h *Host) handleUI(ctx context.Context, msg message.Message) {
	switch m := msg.(type) {
	case *message.Request:
		h.forwardRequest(ctx, m)

	case *message.HostCall:
		h.uiCtl.Go(func() { h.answerCall(ctx, m) })

	case *message.Toast:
		h.surface.Toast(m.Level, m.Message, m.Title)
	case *message.Spinner:
		h.surface.SetSpinner(m.Visible)
	case *message.SchemaForm:
		h.surface.SetSchemaForm(m.Visible)
	case *message.ScrollHeight:
		h.surface.SetHeight(m.Height)
	case *message.CloseSettings:
		h.surface.CloseSettings()

	case *message.FormCreate:
		h.formMu.Lock()
		h.forms[m.FormID] = struct{}{}
		h.current = m.FormID
		h.formMu.Unlock()

		h.surface.OpenForm(m)

	case *message.FormEnd:
		h.endForm(m.FormID)

	default:
		h.log.Warn("Ignoring message not addressed to the host", "action", msg.Action())
	}
}

func (h *Host) endForm(formID string) {
	h.formMu.Lock()

	if formID == "" {
		formID = h.current
	}

	_, open := h.forms[formID]
	delete(h.forms, formID)

	if h.current == formID {
		h.current = ""
	}

	h.formMu.Unlock()

	if !open {
		h.log.Debug("Ignoring end for a form that is not open", "form_id", formID)

		return
	}

	h.surface.CloseForm(formID)
}

// forwardRequest relays a request to the plugin server. When it cannot be
// delivered the UI gets a failure response so its call still settles.
func (h *Host) forwardRequest(ctx context.Context, req *message.Request) {
	if h.serverCtl == nil {
		h.log.Warn("Request for a plugin without a server", "path", req.Path, "request_id", req.RequestID)

		h.reply(ctx, &message.Response{
			RequestID: req.RequestID,
			Data:      map[string]any{"message": "Plugin server not available", "path": req.Path},
		})

		return
	}

	if err := h.serverCtl.Send(ctx, req); err != nil {
		h.log.Error("Failed to forward request", "path", req.Path, "request_id", req.RequestID, "error", err)

		h.reply(ctx, &message.Response{
			RequestID: req.RequestID,
			Data:      map[string]any{"message": err.Error(), "path": req.Path},
		})
	}
}

func (h *Host) answerCall(ctx context.Context, call *message.HostCall) {
	resp := h.calls.Dispatch(ctx, &message.Request{
		Path:      string(call.Op),
		Body:      call.PluginConfig,
		RequestID: call.RequestID,
	})

	h.reply(ctx, resp)
}

func (h *Host) reply(ctx context.Context, resp *message.Response) {
	if err := h.uiCtl.Send(ctx, resp); err != nil {
		if ctx.Err() != nil {
			h.log.Debug("Could not reply during shutdown", "request_id", resp.RequestID, "error", err)

			return
		}

		h.log.Error("Failed to reply to UI", "request_id", resp.RequestID, "error", err)
	}
}

// handleServer relays traffic from the plugin server to the UI.
func (h *Host) handleServer(ctx context.Context, msg message.Message) {
	switch m := msg.(type) {
	case *message.Ready:
		h.log.Info("Plugin server is ready")
	case *message.Response, *message.Stream:
	default:
		h.log.Warn("Ignoring message not addressed to the UI", "action", m.Action())

		return
	}

	if err := h.uiCtl.Send(ctx, msg); err != nil {
		h.log.Debug("Could not relay to UI", "action", msg.Action(), "error", err)
	}
}
