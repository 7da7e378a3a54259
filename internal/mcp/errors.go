package mcp

import "github.com/masc-mcp/masc/internal/errs"

// httpStatus maps an errs.Kind to the HTTP status §6 assigns it: 400
// invalid params, 404 missing room/task/agent, 409 conflict
// (locked/claimed), 500 internal.
func httpStatus(kind errs.Kind) int {
	switch kind {
	case errs.KindInvalidParams, errs.KindParseError:
		return 400
	case errs.KindRoomNotFound, errs.KindTaskNotFound, errs.KindAgentNotFound,
		errs.KindFileNotFound, errs.KindMethodNotFound:
		return 404
	case errs.KindRoomLocked, errs.KindRoomAlreadyExist, errs.KindTaskAlreadyClaimed,
		errs.KindTaskInvalidState, errs.KindTaskCycleDetected, errs.KindFileLocked:
		return 409
	case errs.KindAuthError:
		return 401
	default:
		return 500
	}
}

// jsonRPCCode maps an errs.Kind to a JSON-RPC 2.0 error code. The four
// reserved ranges (-32700..-32600) are used where the protocol error
// matches their meaning; every room/task/agent/storage kind becomes a
// server-defined error in the -32000 range, keeping the HTTP status (via
// httpStatus) as the authoritative signal for transport-level callers.
func jsonRPCCode(kind errs.Kind) int {
	switch kind {
	case errs.KindParseError:
		return -32700
	case errs.KindInvalidParams:
		return -32602
	case errs.KindMethodNotFound:
		return -32601
	case errs.KindInternal, errs.KindInternalError:
		return -32603
	default:
		return -32000
	}
}

// toolError is the structured payload returned as a tool's error result;
// it mirrors *errs.Error's fields so a host can branch on kind without
// string-matching a message.
type toolError struct {
	Kind        string         `json:"kind"`
	Message     string         `json:"message"`
	Recoverable bool           `json:"recoverable"`
	Severity    string         `json:"severity"`
	Fields      map[string]any `json:"fields,omitempty"`
}

func asToolError(err error) toolError {
	e, ok := errs.As(err)
	if !ok {
		return toolError{Kind: string(errs.KindInternal), Message: err.Error(), Severity: string(errs.SeverityCritical)}
	}
	return toolError{
		Kind:        string(e.Kind),
		Message:     e.Message,
		Recoverable: e.Recoverable,
		Severity:    string(e.Severity),
		Fields:      e.Fields,
	}
}
