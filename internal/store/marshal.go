package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// marshalCodes converts diagnostic codes to JSON TEXT for storage.
// HTML escaping is disabled so stored text matches what callers passed.
func marshalCodes(codes []string) (string, error) {
	if codes == nil {
		codes = []string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(codes); err != nil {
		return "", fmt.Errorf("marshal codes: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

// unmarshalCodes parses JSON TEXT to diagnostic codes. Empty input yields
// an empty (non-nil) slice.
func unmarshalCodes(data string) ([]string, error) {
	codes := []string{}
	if data == "" || data == "[]" {
		return codes, nil
	}
	if err := json.Unmarshal([]byte(data), &codes); err != nil {
		return nil, fmt.Errorf("unmarshal codes: %w", err)
	}
	return codes, nil
}
