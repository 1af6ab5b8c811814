package message

import (
	stderrors "errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wagiedev/homebridge-plugin-ui-go/internal/errors"
)

func TestParse_Request(t *testing.T) {
	msg, err := Parse(slog.Default(), map[string]any{
		"action":    "request",
		"path":      "/token",
		"body":      map[string]any{"username": "alice"},
		"requestId": "abc123",
	})
	require.NoError(t, err)

	req, ok := msg.(*Request)
	require.True(t, ok, "expected *Request, got %T", msg)
	require.Equal(t, "/token", req.Path)
	require.Equal(t, "abc123", req.RequestID)
	require.Equal(t, map[string]any{"username": "alice"}, req.Body)
}

func TestParse_RequestMissingID(t *testing.T) {
	_, err := Parse(slog.Default(), map[string]any{
		"action": "request",
		"path":   "/token",
	})
	require.Error(t, err)

	parseErr, ok := stderrors.AsType[*errors.MessageParseError](err)
	require.True(t, ok)
	require.Contains(t, parseErr.Message, "requestId")
}

func TestParse_Response(t *testing.T) {
	msg, err := Parse(slog.Default(), map[string]any{
		"action":    "response",
		"requestId": "abc123",
		"success":   false,
		"data":      map[string]any{"message": "Not Found", "path": "/nope"},
	})
	require.NoError(t, err)

	resp := msg.(*Response)
	require.False(t, resp.Success)
	require.Equal(t, "abc123", resp.RequestID)
}

func TestParse_FormEventKinds(t *testing.T) {
	for _, kind := range []FormEventKind{FormChange, FormSubmit, FormCancel} {
		msg, err := Parse(slog.Default(), map[string]any{
			"action":    "form.event",
			"formId":    "f1",
			"formEvent": string(kind),
			"formData":  map[string]any{"name": "x"},
		})
		require.NoError(t, err)
		require.Equal(t, kind, msg.(*FormEvent).Kind)
	}

	_, err := Parse(slog.Default(), map[string]any{
		"action":    "form.event",
		"formId":    "f1",
		"formEvent": "explode",
	})
	require.Error(t, err)
}

func TestParse_UnknownAction(t *testing.T) {
	_, err := Parse(slog.Default(), map[string]any{"action": "teleport"})
	require.ErrorIs(t, err, errors.ErrUnknownAction)
}

func TestParse_MissingAction(t *testing.T) {
	_, err := Parse(slog.Default(), map[string]any{"path": "/x"})
	require.Error(t, err)
	require.NotErrorIs(t, err, errors.ErrUnknownAction)
}

func TestParse_ScrollHeightNumericTypes(t *testing.T) {
	for _, v := range []any{float64(420), uint64(420), int64(420)} {
		msg, err := Parse(slog.Default(), map[string]any{
			"action":       "scrollHeight",
			"scrollHeight": v,
		})
		require.NoError(t, err)
		require.Equal(t, 420, msg.(*ScrollHeight).Height)
	}
}

// Every action constant must survive Encode followed by Parse with the same tag.
func TestEncodeParse_EveryAction(t *testing.T) {
	messages := []Message{
		&Ready{Server: true},
		&Request{Path: "/a", RequestID: "r1"},
		&Response{RequestID: "r1", Success: true},
		&Stream{Event: "e"},
		&FormCreate{FormID: "f", SubmitButton: "Go"},
		&FormEnd{FormID: "f"},
		&FormEvent{FormID: "f", Kind: FormSubmit},
		&HostCall{Op: ActionConfigGet, RequestID: "r2"},
		&HostCall{Op: ActionConfigUpdate, RequestID: "r3", PluginConfig: []any{}},
		&HostCall{Op: ActionConfigSave, RequestID: "r4"},
		&HostCall{Op: ActionConfigSchema, RequestID: "r5"},
		&HostCall{Op: ActionI18nLang, RequestID: "r6"},
		&HostCall{Op: ActionI18nTranslations, RequestID: "r7"},
		&BodyClass{Class: "dark-mode"},
		&InlineStyle{Style: "body{}"},
		&LinkElement{Href: "/x.css", Rel: "stylesheet"},
		&ScrollHeight{Height: 10},
		&CloseSettings{},
		&Spinner{Visible: true},
		&Spinner{},
		&SchemaForm{Visible: true},
		&SchemaForm{},
		&Toast{Level: ToastSuccess, Message: "ok"},
		&Toast{Level: ToastError, Message: "no"},
		&Toast{Level: ToastWarning, Message: "hm"},
		&Toast{Level: ToastInfo, Message: "fyi", Title: "Note"},
	}

	for _, original := range messages {
		parsed, err := Parse(slog.Default(), Encode(original))
		require.NoError(t, err, "action %s", original.Action())
		require.Equal(t, original.Action(), parsed.Action())
		require.IsType(t, original, parsed)
	}
}

func TestBind(t *testing.T) {
	var dst struct {
		Username string `json:"username"`
	}

	require.NoError(t, Bind(map[string]any{"username": "alice"}, &dst))
	require.Equal(t, "alice", dst.Username)

	require.NoError(t, Bind(nil, &dst))
	require.Equal(t, "alice", dst.Username)
}
