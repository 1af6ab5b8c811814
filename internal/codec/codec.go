// Package codec frames bridge envelopes on a byte stream.
//
// A Codec writes exactly one logical message per Encode call and yields one
// decoded envelope per Decode call, so the bridge never needs framing of its
// own. JSON is newline-delimited and the default; CBOR uses self-delimiting
// data items in Core Deterministic Encoding.
package codec

import (
	"fmt"
	"io"
	"strings"
)

// maxLineSize is the maximum size of a single newline-delimited JSON message.
const maxLineSize = 1024 * 1024 // 1MB

// Codec encodes and decodes framed envelopes.
type Codec interface {
	// Name returns the configuration name of the codec.
	Name() string

	// Encode writes v as one framed message.
	Encode(w io.Writer, v any) error

	// NewDecoder returns a Decoder reading framed messages from r.
	NewDecoder(r io.Reader) Decoder
}

// Decoder yields one decoded envelope per call.
//
// Decode returns io.EOF when the stream ends cleanly. A *errors.DecodeError
// means one message was malformed and the stream is still usable; any other
// error is fatal for the stream.
type Decoder interface {
	Decode() (map[string]any, error)
}

// ByName selects a codec from its configuration name. An empty name selects JSON.
func ByName(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json", "ndjson":
		return JSON(), nil
	case "cbor":
		return CBOR(), nil
	default:
		return nil, fmt.Errorf("unsupported codec %q", name)
	}
}
