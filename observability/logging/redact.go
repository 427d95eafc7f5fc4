package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue replaces secrets in log output.
const RedactedValue = "[REDACTED]"

// secretKeys are attribute keys whose string values never reach a sink,
// whichever call site logs them.
var secretKeys = map[string]struct{}{
	"passphrase":  {},
	"password":    {},
	"private_key": {},
	"privkey":     {},
	"seed_phrase": {},
	"mnemonic":    {},
	"token":       {},
}

// IsSecret reports whether values logged under key are masked.
func IsSecret(key string) bool {
	_, ok := secretKeys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// MaskField always masks non-empty values. Use it for data that is sensitive
// in context but logged under an ordinary key, such as client addresses.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" {
		return slog.String(key, "")
	}
	return slog.String(key, RedactedValue)
}

// redactAttr is applied by the handler to every attribute.
func redactAttr(attr slog.Attr) slog.Attr {
	if IsSecret(attr.Key) && attr.Value.Kind() != slog.KindGroup {
		if s := attr.Value.String(); strings.TrimSpace(s) != "" {
			return slog.String(attr.Key, RedactedValue)
		}
	}
	return attr
}
