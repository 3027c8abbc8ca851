package observability

import (
	"strings"
	"unicode"
)

// clip drops control characters and truncates to limit runes.
func clip(value string, limit int) string {
	var b strings.Builder
	count := 0
	for _, r := range value {
		if unicode.IsControl(r) {
			continue
		}
		if count == limit {
			break
		}
		b.WriteRune(r)
		count++
	}
	return b.String()
}

// SanitizeRoute bounds a route pattern before it is logged or used as a metric label.
func SanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return clip(route, 180)
}

// SanitizeUserID bounds user identifiers written to logs.
func SanitizeUserID(uid string) string {
	return clip(uid, 64)
}
