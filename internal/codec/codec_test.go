package codec

import (
	"bytes"
	stderrors "errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wagiedev/homebridge-plugin-ui-go/internal/errors"
)

func TestJSON_OneLinePerMessage(t *testing.T) {
	var buf bytes.Buffer

	c := JSON()
	require.NoError(t, c.Encode(&buf, map[string]any{"action": "ready"}))
	require.NoError(t, c.Encode(&buf, map[string]any{"action": "stream", "event": "tick"}))

	require.Equal(t, 2, strings.Count(buf.String(), "\n"))

	dec := c.NewDecoder(&buf)

	first, err := dec.Decode()
	require.NoError(t, err)
	require.Equal(t, "ready", first["action"])

	second, err := dec.Decode()
	require.NoError(t, err)
	require.Equal(t, "tick", second["event"])

	_, err = dec.Decode()
	require.ErrorIs(t, err, io.EOF)
}

func TestJSON_MalformedLineIsNotFatal(t *testing.T) {
	input := "{\"action\":\n\n[1,2]\n{\"action\":\"ready\"}\n"
	dec := JSON().NewDecoder(strings.NewReader(input))

	_, err := dec.Decode()
	decodeErr, ok := stderrors.AsType[*errors.DecodeError](err)
	require.True(t, ok, "expected DecodeError, got %v", err)
	require.Equal(t, `{"action":`, decodeErr.RawData)

	// An array is valid JSON but not an envelope.
	_, err = dec.Decode()
	_, ok = stderrors.AsType[*errors.DecodeError](err)
	require.True(t, ok, "expected DecodeError, got %v", err)

	msg, err := dec.Decode()
	require.NoError(t, err)
	require.Equal(t, "ready", msg["action"])
}

func TestCBOR_StreamRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	c := CBOR()
	require.NoError(t, c.Encode(&buf, map[string]any{
		"action":    "response",
		"requestId": "r1",
		"success":   true,
		"data":      map[string]any{"token": "abc", "nested": map[string]any{"n": 1}},
	}))
	require.NoError(t, c.Encode(&buf, map[string]any{"action": "ready"}))

	dec := c.NewDecoder(&buf)

	msg, err := dec.Decode()
	require.NoError(t, err)
	require.Equal(t, "response", msg["action"])

	data, ok := msg["data"].(map[string]any)
	require.True(t, ok, "nested maps must decode as map[string]any, got %T", msg["data"])

	_, ok = data["nested"].(map[string]any)
	require.True(t, ok)

	msg, err = dec.Decode()
	require.NoError(t, err)
	require.Equal(t, "ready", msg["action"])

	_, err = dec.Decode()
	require.ErrorIs(t, err, io.EOF)
}

func TestByName(t *testing.T) {
	for name, want := range map[string]string{"": "json", "JSON": "json", "ndjson": "json", "cbor": "cbor"} {
		c, err := ByName(name)
		require.NoError(t, err)
		require.Equal(t, want, c.Name())
	}

	_, err := ByName("xml")
	require.Error(t, err)
}
