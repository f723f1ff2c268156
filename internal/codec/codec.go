package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrDecode is returned for malformed transport payloads.
var ErrDecode = errors.New("malformed task payload")

// Payload is the wire form of a task invocation.
type Payload struct {
	Path string         `json:"path"`
	Data map[string]any `json:"data"`
}

// Encode serializes path and data to canonical JSON and base64-encodes it.
func Encode(path string, data map[string]any) ([]byte, error) {
	normalized, err := normalizeMap(data)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(Payload{Path: path, Data: normalized})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task payload: %w", err)
	}

	out := make([]byte, base64.StdEncoding.EncodedLen(len(raw)))
	base64.StdEncoding.Encode(out, raw)
	return out, nil
}

// EncodeString is Encode returning a string.
func EncodeString(path string, data map[string]any) (string, error) {
	b, err := Encode(path, data)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Decode reverses Encode. An empty body yields (nil, nil) so callers can tell
// "no body" apart from a malformed one; malformed input wraps ErrDecode.
// A missing path is not a decode failure and is left to resolution.
func Decode(b []byte) (*Payload, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, nil
	}

	raw := make([]byte, base64.StdEncoding.DecodedLen(len(b)))
	n, err := base64.StdEncoding.Decode(raw, b)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64: %v", ErrDecode, err)
	}

	var p Payload
	if err := json.Unmarshal(raw[:n], &p); err != nil {
		return nil, fmt.Errorf("%w: invalid json: %v", ErrDecode, err)
	}
	if p.Data == nil {
		p.Data = map[string]any{}
	}

	return &p, nil
}
