package util

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

func NewID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}

// ValidID reports whether value has the shape produced by NewID:
// an optional short prefix, then 32 lowercase hex characters.
func ValidID(value string) bool {
	body := value
	if idx := strings.IndexByte(value, '_'); idx >= 0 {
		prefix := value[:idx]
		if prefix == "" || len(prefix) > 8 {
			return false
		}
		body = value[idx+1:]
	}
	if len(body) != 32 {
		return false
	}
	for i := 0; i < len(body); i++ {
		c := body[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
