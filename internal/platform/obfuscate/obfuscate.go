// Package obfuscate encodes values for client-side storage. The encoding is Base64 over JSON and
// hides nothing from anyone who looks; it only keeps cart contents from being casually edited.
package obfuscate

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// MaxEncodedLength bounds accepted input so oversized snapshots are rejected before decoding.
const MaxEncodedLength = 64 << 10

// ErrInvalidPayload is returned for input that is not Base64 encoded JSON.
var ErrInvalidPayload = errors.New("obfuscate: invalid payload")

// EncodeForDisplay marshals value to JSON and returns it URL-safe Base64 encoded.
func EncodeForDisplay(value any) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("obfuscate: marshal: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodeForDisplay reverses EncodeForDisplay into dst. Standard and padded encodings are accepted
// for snapshots written by older clients.
func DecodeForDisplay(encoded string, dst any) error {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" || len(encoded) > MaxEncodedLength {
		return ErrInvalidPayload
	}
	data, err := decode(encoded)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

func decode(encoded string) ([]byte, error) {
	trimmed := strings.TrimRight(encoded, "=")
	if strings.ContainsAny(trimmed, "+/") {
		return base64.RawStdEncoding.DecodeString(trimmed)
	}
	return base64.RawURLEncoding.DecodeString(trimmed)
}
