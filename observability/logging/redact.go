package logging

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"
)

// RedactedValue replaces sensitive values in log output.
const RedactedValue = "[REDACTED]"

// Session handles and reimbursement references travel as 32-byte hex strings,
// usually inside request paths.
var bearerIdentifier = regexp.MustCompile(`(0[xX])?[0-9a-fA-F]{64}`)

var redactionAllowlist = map[string]struct{}{
	"service":    {},
	"env":        {},
	"message":    {},
	"severity":   {},
	"timestamp":  {},
	"error":      {},
	"reason":     {},
	"module":     {},
	"campaign":   {},
	"sequence":   {},
	"status":     {},
	"method":     {},
	"route":      {},
	"path":       {},
	"request_id": {},
}

// IsAllowlisted reports whether key may be logged in clear.
func IsAllowlisted(key string) bool {
	_, ok := redactionAllowlist[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// RedactionAllowlist returns the allowlisted keys in sorted order.
func RedactionAllowlist() []string {
	keys := make([]string, 0, len(redactionAllowlist))
	for key := range redactionAllowlist {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// MaskIdentifiers replaces every embedded session handle or reference in s.
func MaskIdentifiers(s string) string {
	return bearerIdentifier.ReplaceAllString(s, RedactedValue)
}

// MaskField builds a string attribute for key. Values under allowlisted keys
// are kept with embedded identifiers masked; anything else is replaced
// wholesale.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" {
		return slog.String(key, value)
	}
	if IsAllowlisted(key) {
		return slog.String(key, MaskIdentifiers(value))
	}
	return slog.String(key, RedactedValue)
}
