package logger

import (
	"fmt"
	"log/slog"
	"strings"
)

// Keys whose values are never logged in clear. Session attribute values
// and replication payloads may carry user data.
var sensitiveKeyPatterns = []string{
	"payload",
	"diff",
	"attribute_value",
	"password",
	"secret",
	"credential",
}

// redactedValue is the placeholder for redacted sensitive data.
const redactedValue = "***REDACTED***"

// redactSensitive masks sensitive attributes. Byte slices are always
// replaced by their length.
func redactSensitive(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindGroup:
		attrs := a.Value.Group()
		newAttrs := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			newAttrs[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(newAttrs...)}
	case slog.KindAny:
		if b, ok := a.Value.Any().([]byte); ok {
			return slog.String(a.Key, SummarizeBytes(b))
		}
	}

	// Only text can carry attribute content; sizes and counts pass.
	if a.Value.Kind() == slog.KindString && a.Value.String() != "" && IsSensitiveKey(a.Key) {
		return slog.String(a.Key, redactedValue)
	}
	return a
}

// SummarizeBytes describes a payload without its content.
func SummarizeBytes(b []byte) string {
	return fmt.Sprintf("<%d bytes>", len(b))
}

// IsSensitiveKey checks if a key name suggests sensitive content.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}
