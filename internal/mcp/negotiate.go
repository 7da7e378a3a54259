package mcp

import (
	"strconv"
	"strings"
)

// acceptsStreamable reports whether an Accept header value carries both
// application/json and text/event-stream with a positive quality factor,
// the §6 rule for whether a /mcp request may use the streamable transport.
func acceptsStreamable(accept string) bool {
	hasJSON, hasEventStream := false, false
	for _, part := range strings.Split(accept, ",") {
		mediaType, q := parseMediaRange(part)
		if q <= 0 {
			continue
		}
		switch mediaType {
		case "application/json":
			hasJSON = true
		case "text/event-stream":
			hasEventStream = true
		case "*/*":
			hasJSON, hasEventStream = true, true
		}
	}
	return hasJSON && hasEventStream
}

// parseMediaRange splits one comma-separated Accept segment into its
// media type and quality factor, defaulting q to 1 when absent or
// unparsable.
func parseMediaRange(segment string) (mediaType string, q float64) {
	q = 1
	parts := strings.Split(segment, ";")
	mediaType = strings.ToLower(strings.TrimSpace(parts[0]))
	for _, param := range parts[1:] {
		param = strings.TrimSpace(param)
		name, value, ok := strings.Cut(param, "=")
		if !ok || strings.TrimSpace(name) != "q" {
			continue
		}
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			q = parsed
		}
	}
	return mediaType, q
}
