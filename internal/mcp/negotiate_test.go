package mcp

import "testing"

func TestAcceptsStreamable(t *testing.T) {
	cases := []struct {
		name   string
		accept string
		want   bool
	}{
		{"both present", "application/json, text/event-stream", true},
		{"both present with q", "application/json;q=0.9, text/event-stream;q=0.5", true},
		{"json only", "application/json", false},
		{"event-stream only", "text/event-stream", false},
		{"json zero quality", "application/json;q=0, text/event-stream", false},
		{"wildcard", "*/*", true},
		{"empty", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := acceptsStreamable(tc.accept); got != tc.want {
				t.Errorf("acceptsStreamable(%q) = %v, want %v", tc.accept, got, tc.want)
			}
		})
	}
}
