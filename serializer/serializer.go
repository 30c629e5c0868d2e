// Package serializer implements the two wire formats a Task/Result may be
// encoded in: JSON (safe, structured text) and gob (binary, unsafe to
// decode from an untrusted peer). A security warning is logged on both
// the encode and decode path whenever the binary format is selected (see
// DESIGN.md for why tinylib/msgp was rejected in its favor).
package serializer

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"

	"github.com/neul-labs/fastworker-go/internal/logging"
)

// Format selects the wire encoding.
type Format string

const (
	// FormatJSON is the safe, structured-text format.
	FormatJSON Format = "JSON"
	// FormatGob is the insecure binary format. Decoding gob from an
	// untrusted source can execute arbitrary registered types; only use
	// it between processes that already trust each other's binaries.
	FormatGob Format = "GOB"
)

const securityWarning = "binary (GOB) serialization is insecure: decoding data from an untrusted peer can execute arbitrary registered types"

// Serialize encodes v in the given format. A nil logger disables the
// security warning.
func Serialize(logger logging.Logger, format Format, v any) ([]byte, error) {
	if logger == nil {
		logger = logging.Noop()
	}
	switch format {
	case FormatGob:
		logger.Warn(securityWarning, "operation", "encode")
		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(v); err != nil {
			return nil, fmt.Errorf("serializer: gob encode: %w", err)
		}
		return buf.Bytes(), nil
	case FormatJSON, "":
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("serializer: json encode: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("serializer: unknown format %q", format)
	}
}

// Deserialize decodes data into v according to format.
func Deserialize(logger logging.Logger, format Format, data []byte, v any) error {
	if logger == nil {
		logger = logging.Noop()
	}
	switch format {
	case FormatGob:
		logger.Warn(securityWarning, "operation", "decode")
		if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
			return fmt.Errorf("serializer: gob decode: %w", err)
		}
		return nil
	case FormatJSON, "":
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("serializer: json decode: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("serializer: unknown format %q", format)
	}
}
