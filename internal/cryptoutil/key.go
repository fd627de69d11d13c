package cryptoutil

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ParseKey decodes a 256-bit archive/config encryption key. Accepts
// explicit "base64:" or "hex:" prefixes; unprefixed input is tried as
// base64 first, then hex.
func ParseKey(key string) ([]byte, error) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return nil, errors.New("encryption key is empty (pass a 32-byte key, base64 or hex)")
	}
	var data []byte
	var err error

	switch {
	case strings.HasPrefix(trimmed, "base64:"):
		data, err = base64.StdEncoding.DecodeString(strings.TrimPrefix(trimmed, "base64:"))
	case strings.HasPrefix(trimmed, "hex:"):
		data, err = hex.DecodeString(strings.TrimPrefix(trimmed, "hex:"))
	default:
		data, err = base64.StdEncoding.DecodeString(trimmed)
		if err != nil {
			data, err = hex.DecodeString(trimmed)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("encryption key is neither base64 nor hex: %w", err)
	}
	if len(data) != 32 {
		return nil, fmt.Errorf("encryption key must decode to 32 bytes, got %d", len(data))
	}
	return data, nil
}
