// Package clock provides the room's notion of time, agent nickname
// generation, and checkpoint ID formatting, mirroring the way beads'
// idgen package builds stable, human-readable identifiers.
package clock

import (
	"fmt"
	"time"
)

// Clock abstracts wall-clock time so tests can substitute a fixed one.
type Clock interface {
	Now() time.Time
}

// System is the default Clock backed by time.Now.
type System struct{}

// Now returns the current UTC time.
func (System) Now() time.Time { return time.Now().UTC() }

// FormatISO8601 renders t as a second-precision ISO-8601 UTC timestamp.
func FormatISO8601(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

// ParseISO8601 parses a second-precision ISO-8601 UTC timestamp.
func ParseISO8601(s string) (time.Time, error) {
	return time.Parse("2006-01-02T15:04:05Z", s)
}

// CheckpointID builds the fixed cp-<task_id>-<step>-<epoch_seconds> format.
func CheckpointID(taskID string, step int, at time.Time) string {
	return fmt.Sprintf("cp-%s-%d-%d", taskID, step, at.Unix())
}
