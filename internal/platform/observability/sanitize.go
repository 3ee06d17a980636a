package observability

import (
	"strings"
	"unicode"
)

const (
	maxRouteRunes  = 180
	maxMethodRunes = 10
	unmatchedRoute = "unmatched"
)

// sanitizeString drops control characters and keeps at most limit runes. Client supplied paths and
// headers pass through here before they reach logs or span attributes.
func sanitizeString(value string, limit int) string {
	var b strings.Builder
	b.Grow(min(len(value), limit))
	n := 0
	for _, r := range value {
		if unicode.IsControl(r) {
			continue
		}
		if n == limit {
			break
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}

// SanitizeRoute cleans a route pattern or raw path. Requests that matched no route log as "unmatched".
func SanitizeRoute(route string) string {
	if route = sanitizeString(route, maxRouteRunes); route == "" {
		return unmatchedRoute
	}
	return route
}

func SanitizeMethod(method string) string {
	return strings.ToUpper(sanitizeString(method, maxMethodRunes))
}
