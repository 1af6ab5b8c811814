package codec

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/wagiedev/homebridge-plugin-ui-go/internal/errors"
)

type jsonCodec struct{}

// JSON returns the newline-delimited JSON codec.
func JSON() Codec { return jsonCodec{} }

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Encode(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	// Single write so concurrent writers serialized by the caller never interleave.
	data = append(data, '\n')

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write message: %w", err)
	}

	return nil
}

func (jsonCodec) NewDecoder(r io.Reader) Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	return &jsonDecoder{scanner: scanner}
}

type jsonDecoder struct {
	scanner *bufio.Scanner
}

func (d *jsonDecoder) Decode() (map[string]any, error) {
	for d.scanner.Scan() {
		line := d.scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var msg map[string]any
		if err := json.Unmarshal(line, &msg); err != nil {
			return nil, &errors.DecodeError{RawData: string(line), Err: err}
		}

		if msg == nil {
			return nil, &errors.DecodeError{RawData: string(line), Err: fmt.Errorf("message is not an object")}
		}

		return msg, nil
	}

	if err := d.scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanner error: %w", err)
	}

	return nil, io.EOF
}
