package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue is the canonical placeholder for sensitive log fields.
const RedactedValue = "[REDACTED]"

// Keys safe to emit verbatim. Everything else passed through MaskField is
// replaced: caller addresses and free-form request payloads never reach the
// log stream in clear.
var redactionAllowlist = map[string]struct{}{
	"service":   {},
	"env":       {},
	"message":   {},
	"severity":  {},
	"timestamp": {},
	"error":     {},
	"reason":    {},
	"component": {},
	"operation": {},
	"asset":     {},
	"method":    {},
}

// IsAllowlisted reports whether the key is exempt from redaction.
func IsAllowlisted(key string) bool {
	_, ok := redactionAllowlist[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// MaskField returns a slog.Attr that redacts the value unless the key is
// allowlisted. Empty values pass through unchanged to avoid log noise.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsAllowlisted(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}
