package codec

import (
	stderrors "errors"
	"fmt"
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// encMode uses Core Deterministic Encoding (RFC 8949 §4.2): sorted map keys,
// smallest integer encoding, no indefinite-length items.
var encMode cbor.EncMode

// decMode decodes any-typed maps as map[string]any so decoded envelopes have
// the same shape as the JSON codec produces.
var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

type cborCodec struct{}

// CBOR returns the CBOR sequence codec.
func CBOR() Codec { return cborCodec{} }

func (cborCodec) Name() string { return "cbor" }

func (cborCodec) Encode(w io.Writer, v any) error {
	data, err := encMode.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write message: %w", err)
	}

	return nil
}

func (cborCodec) NewDecoder(r io.Reader) Decoder {
	return &cborDecoder{dec: decMode.NewDecoder(r)}
}

type cborDecoder struct {
	dec *cbor.Decoder
}

func (d *cborDecoder) Decode() (map[string]any, error) {
	var msg map[string]any
	if err := d.dec.Decode(&msg); err != nil {
		if stderrors.Is(err, io.EOF) {
			return nil, io.EOF
		}

		// A CBOR stream cannot resynchronize after a bad item.
		return nil, fmt.Errorf("decode cbor: %w", err)
	}

	return msg, nil
}
