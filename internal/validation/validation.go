// Package validation sanitizes identifiers used across the room and keeps
// operational rejection statistics, the way beads validates issue IDs and
// priorities before they ever reach storage.
package validation

import (
	"fmt"
	"strings"
	"sync"
)

// Stats is the process-wide rejection counter. A singleton instance is
// kept at package scope; tests call ResetStats in setup.
type Stats struct {
	mu        sync.Mutex
	rejected  uint64
	lastError string
}

var global Stats

// RecordRejection increments the rejection counter and stores reason as the
// most recent rejection message.
func RecordRejection(reason string) {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.rejected++
	global.lastError = reason
}

// Snapshot is a point-in-time copy of the rejection counters.
type Snapshot struct {
	Rejected  uint64
	LastError string
}

// GetStats returns a snapshot of the current rejection statistics.
func GetStats() Snapshot {
	global.mu.Lock()
	defer global.mu.Unlock()
	return Snapshot{Rejected: global.rejected, LastError: global.lastError}
}

// ResetStats zeroes the rejection counters. Tests must call this in setup.
func ResetStats() {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.rejected = 0
	global.lastError = ""
}

func isAllowedIDChar(c byte, allowColon bool) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '_' || c == '-':
		return true
	case c == ':' && allowColon:
		return true
	default:
		return false
	}
}

func validateID(s string, maxLen int, allowColon bool) error {
	if s == "" {
		RecordRejection("empty identifier")
		return fmt.Errorf("identifier must not be empty")
	}
	if len(s) > maxLen {
		reason := fmt.Sprintf("identifier %q exceeds max length %d", s, maxLen)
		RecordRejection(reason)
		return fmt.Errorf("%s", reason)
	}
	if strings.Contains(s, "..") {
		RecordRejection("identifier contains path traversal sequence")
		return fmt.Errorf("identifier %q must not contain \"..\"", s)
	}
	for i := 0; i < len(s); i++ {
		if !isAllowedIDChar(s[i], allowColon) {
			reason := fmt.Sprintf("identifier %q contains disallowed character %q", s, s[i])
			RecordRejection(reason)
			return fmt.Errorf("%s", reason)
		}
	}
	return nil
}

// ValidateAgentID accepts non-empty strings of length <= 64 drawn from
// [A-Za-z0-9_-]; it rejects '/', '\', ".." or any other byte.
func ValidateAgentID(s string) error {
	return validateID(s, 64, false)
}

// ValidateTaskID is identical to ValidateAgentID except it permits length
// up to 128 and additionally allows ':'.
func ValidateTaskID(s string) error {
	return validateID(s, 128, true)
}

// ValidatePath rejects empty paths, absolute paths, and any path that
// contains a ".." segment, whether or not it would escape the room root.
func ValidatePath(p string) error {
	if p == "" {
		RecordRejection("empty path")
		return fmt.Errorf("path must not be empty")
	}
	if strings.HasPrefix(p, "/") || strings.HasPrefix(p, "\\") {
		RecordRejection("absolute path rejected")
		return fmt.Errorf("path %q must be relative to the room root", p)
	}
	for _, seg := range strings.FieldsFunc(p, func(r rune) bool { return r == '/' || r == '\\' }) {
		if seg == ".." {
			RecordRejection("path traversal rejected")
			return fmt.Errorf("path %q must not contain \"..\" segments", p)
		}
	}
	return nil
}
