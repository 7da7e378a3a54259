// Package errs defines the room's structured error model: every mutator
// returns (T, error) where a failure is an *Error carrying a Kind, a
// Severity, and whether the caller may retry.
package errs

import (
	"fmt"
	"strings"
)

// Kind groups related failure codes by the component that raised them.
type Kind string

const (
	// Room
	KindRoomNotFound     Kind = "room_not_found"
	KindRoomAlreadyExist Kind = "room_already_exists"
	KindRoomLocked       Kind = "room_locked"
	KindRoomFull         Kind = "room_full"

	// Task
	KindTaskNotFound       Kind = "task_not_found"
	KindTaskAlreadyClaimed Kind = "task_already_claimed"
	KindTaskInvalidState   Kind = "task_invalid_state"
	KindTaskCycleDetected  Kind = "task_cycle_detected"

	// Agent
	KindAgentNotFound         Kind = "agent_not_found"
	KindAgentTimeout          Kind = "agent_timeout"
	KindAgentHeartbeatMissing Kind = "agent_heartbeat_missing"
	KindAgentCapabilityMismatch Kind = "agent_capability_mismatch"

	// Storage
	KindFileNotFound        Kind = "file_not_found"
	KindFilePermissionDenied Kind = "file_permission_denied"
	KindFileLocked          Kind = "file_locked"
	KindStorageUnavailable  Kind = "storage_unavailable"
	KindStorageConflict     Kind = "storage_conflict"
	KindStorageCorrupt      Kind = "storage_corrupt"

	// Federation
	KindPortalConnectionFailed Kind = "portal_connection_failed"
	KindPortalAuthFailed       Kind = "portal_auth_failed"
	KindPortalTimeout          Kind = "portal_timeout"
	KindPortalProtocolError    Kind = "portal_protocol_error"

	// Protocol
	KindParseError     Kind = "parse_error"
	KindMethodNotFound Kind = "method_not_found"
	KindInvalidParams  Kind = "invalid_params"
	KindAuthError      Kind = "auth_error"
	KindInternalError  Kind = "internal_error"

	// Catch-all
	KindInternal Kind = "internal"
)

// Severity is the operational weight of an error.
type Severity string

const (
	SeverityDebug    Severity = "debug"
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// recoverableKinds are retried by the backoff layer; everything else is
// terminal at the operation boundary.
var recoverableKinds = map[Kind]bool{
	KindRoomLocked:          true,
	KindTaskAlreadyClaimed:  true,
	KindAgentTimeout:        true,
	KindAgentHeartbeatMissing: true,
	KindFileLocked:          true,
	KindPortalTimeout:       true,
}

var severityByKind = map[Kind]Severity{
	KindRoomNotFound:            SeverityWarning,
	KindRoomAlreadyExist:        SeverityWarning,
	KindRoomLocked:              SeverityInfo,
	KindRoomFull:                SeverityWarning,
	KindTaskNotFound:            SeverityWarning,
	KindTaskAlreadyClaimed:      SeverityInfo,
	KindTaskInvalidState:        SeverityWarning,
	KindTaskCycleDetected:       SeverityError,
	KindAgentNotFound:           SeverityWarning,
	KindAgentTimeout:            SeverityWarning,
	KindAgentHeartbeatMissing:   SeverityInfo,
	KindAgentCapabilityMismatch: SeverityWarning,
	KindFileNotFound:            SeverityWarning,
	KindFilePermissionDenied:    SeverityError,
	KindFileLocked:              SeverityInfo,
	KindStorageUnavailable:      SeverityError,
	KindStorageConflict:         SeverityWarning,
	KindStorageCorrupt:          SeverityCritical,
	KindPortalConnectionFailed:  SeverityError,
	KindPortalAuthFailed:        SeverityError,
	KindPortalTimeout:           SeverityWarning,
	KindPortalProtocolError:     SeverityError,
	KindParseError:              SeverityWarning,
	KindMethodNotFound:          SeverityWarning,
	KindInvalidParams:           SeverityWarning,
	KindAuthError:               SeverityError,
	KindInternalError:           SeverityCritical,
	KindInternal:                SeverityCritical,
}

// Error is the structured failure type returned by every mutator.
type Error struct {
	Kind        Kind
	Message     string
	Recoverable bool
	Severity    Severity
	// Fields carries kind-specific structured context, e.g. BlockedBy for
	// TaskInvalidState or Elapsed for AgentTimeout.
	Fields map[string]any
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return string(e.Kind)
}

// New builds an Error for kind, deriving Severity and Recoverable from the
// kind's fixed classification, with an optional formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{
		Kind:        kind,
		Message:     fmt.Sprintf(format, args...),
		Recoverable: recoverableKinds[kind],
		Severity:    severityFor(kind),
	}
}

// WithFields attaches structured context to an Error and returns it.
func (e *Error) WithFields(fields map[string]any) *Error {
	e.Fields = fields
	return e
}

func severityFor(kind Kind) Severity {
	if s, ok := severityByKind[kind]; ok {
		return s
	}
	return SeverityError
}

// As extracts an *Error from err, if it is one.
func As(err error) (*Error, bool) {
	e, ok := err.(*Error)
	return e, ok
}

// IsRecoverable reports whether err is an *Error marked recoverable. A
// plain error (one that never passed through New) falls back to the §7
// generic network-error pattern match against its message: "timeout",
// "429", "503", or "connection refused" — the same patterns a raw
// net/http or net.Dial failure surfaces before anything in this module
// has a chance to classify it by Kind.
func IsRecoverable(err error) bool {
	if e, ok := As(err); ok {
		return e.Recoverable
	}
	return matchesRecoverablePattern(err.Error())
}

var recoverableMessagePatterns = []string{
	"timeout",
	"429",
	"503",
	"connection refused",
}

func matchesRecoverablePattern(message string) bool {
	lower := strings.ToLower(message)
	for _, pattern := range recoverableMessagePatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}
