// Package form implements the nested form sub-session protocol.
//
// A Session owns one formId for the lifetime of one interactive form. It
// subscribes to the event bus under that id, so the dispatcher can hand it
// every form.event carrying the id, and routes each event to the change,
// submit or cancel callback by its formEvent tag. End unsubscribes and asks
// the host to tear the form down.
package form

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/oklog/ulid/v2"

	"github.com/wagiedev/homebridge-plugin-ui-go/internal/bus"
	"github.com/wagiedev/homebridge-plugin-ui-go/internal/message"
)

// Callback receives the formData of one sub-event.
type Callback func(data any)

// Sender delivers an outbound message to the transport.
type Sender func(ctx context.Context, msg message.Message) error

// Options configures the rendered form.
type Options struct {
	// SubmitButton is the submit button label. Empty hides the button.
	SubmitButton string

	// CancelButton is the cancel button label. Empty hides the button.
	CancelButton string
}

// Session is the handle for one open form.
type Session struct {
	id     string
	log    *slog.Logger
	bus    bus.Bus
	send   Sender
	schema any
	data   any

	mu         sync.Mutex
	callbacks  map[message.FormEventKind]Callback
	ended      bool
	listenerID bus.ListenerID
}

// Open generates a form id, subscribes to it on b, and sends form.create.
// schema and data are passed to the host unexamined.
func Open(
	ctx context.Context,
	log *slog.Logger,
	b bus.Bus,
	send Sender,
	schema any,
	data any,
	opts Options,
) (*Session, error) {
	s := &Session{
		id:        strings.ToLower(ulid.Make().String()),
		bus:       b,
		send:      send,
		schema:    schema,
		data:      data,
		callbacks: make(map[message.FormEventKind]Callback, 3),
	}
	s.log = log.With("component", "form", "form_id", s.id)

	// Subscribe before create so an immediate change event is not missed.
	s.listenerID = b.On(s.id, s.handle)

	err := send(ctx, &message.FormCreate{
		FormID:       s.id,
		Schema:       schema,
		Data:         data,
		SubmitButton: opts.SubmitButton,
		CancelButton: opts.CancelButton,
	})
	if err != nil {
		b.Off(s.id, s.listenerID)

		return nil, fmt.Errorf("send form.create: %w", err)
	}

	s.log.Debug("Form opened")

	return s, nil
}

// ID returns the form id.
func (s *Session) ID() string {
	return s.id
}

// OnChange sets the change callback, replacing any previous one.
func (s *Session) OnChange(fn Callback) { s.set(message.FormChange, fn) }

// OnSubmit sets the submit callback, replacing any previous one.
func (s *Session) OnSubmit(fn Callback) { s.set(message.FormSubmit, fn) }

// OnCancel sets the cancel callback, replacing any previous one.
func (s *Session) OnCancel(fn Callback) { s.set(message.FormCancel, fn) }

func (s *Session) set(kind message.FormEventKind, fn Callback) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fn == nil {
		delete(s.callbacks, kind)

		return
	}

	s.callbacks[kind] = fn
}

// Ended reports whether End has been called.
func (s *Session) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ended
}

// End unsubscribes the form id and sends form.end. Only the first call has
// any effect.
func (s *Session) End(ctx context.Context) error {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()

		return nil
	}

	s.ended = true
	s.mu.Unlock()

	s.bus.Off(s.id, s.listenerID)

	if err := s.send(ctx, &message.FormEnd{FormID: s.id, Schema: s.schema, Data: s.data}); err != nil {
		return fmt.Errorf("send form.end: %w", err)
	}

	s.log.Debug("Form ended")

	return nil
}

func (s *Session) handle(e bus.Event) {
	ev, ok := e.Data.(*message.FormEvent)
	if !ok {
		s.log.Warn("Non-form event on form id", "type", fmt.Sprintf("%T", e.Data))

		return
	}

	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()

		return
	}

	fn := s.callbacks[ev.Kind]
	s.mu.Unlock()

	if fn == nil {
		s.log.Debug("Missing form handler", "form_event", ev.Kind)

		return
	}

	fn(ev.FormData)
}

// Validate checks data against the JSON Schema carried in the form's schema
// under "schema" (or the schema itself when it has no such key).
func (s *Session) Validate(data any) error {
	return Validate(s.schema, data)
}

// Validate checks data against a form schema.
func Validate(formSchema any, data any) error {
	raw := formSchema
	if m, ok := formSchema.(map[string]any); ok {
		if inner, ok := m["schema"]; ok {
			raw = inner
		}
	}

	encoded, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("marshal form schema: %w", err)
	}

	var schema jsonschema.Schema
	if err := json.Unmarshal(encoded, &schema); err != nil {
		return fmt.Errorf("unmarshal form schema: %w", err)
	}

	resolved, err := schema.Resolve(nil)
	if err != nil {
		return fmt.Errorf("resolve form schema: %w", err)
	}

	// Validate expects JSON-decoded values.
	instance, err := normalize(data)
	if err != nil {
		return err
	}

	if err := resolved.Validate(instance); err != nil {
		return fmt.Errorf("invalid form data: %w", err)
	}

	return nil
}

func normalize(v any) (any, error) {
	encoded, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal form data: %w", err)
	}

	var out any
	if err := json.Unmarshal(encoded, &out); err != nil {
		return nil, fmt.Errorf("unmarshal form data: %w", err)
	}

	return out, nil
}
