package room

import (
	"context"
	"encoding/json"

	"github.com/masc-mcp/masc/internal/errs"
	"github.com/masc-mcp/masc/internal/types"
)

// setCurrentTask records that nickname now holds taskID as its current
// task. Two agents never share a current task, so this is only ever
// called right after a successful Claim. nickname must already be a live
// agent — Claim checks this before the backlog is mutated, but an agent
// that leaves in the narrow window between that check and this call is
// still rejected here rather than silently dropped.
func (r *Room) setCurrentTask(ctx context.Context, nickname, taskID string) error {
	_, err := r.store.AtomicUpdate(ctx, docAgents, func(raw json.RawMessage) (json.RawMessage, error) {
		doc, err := decodeAgents(raw)
		if err != nil {
			return nil, err
		}
		a, ok := doc.Agents[nickname]
		if !ok {
			return nil, errs.New(errs.KindAgentNotFound, "agent %q not found", nickname)
		}
		a.CurrentTask = taskID
		return json.Marshal(doc)
	})
	if err != nil {
		return asError(err)
	}
	return nil
}

// clearCurrentTask removes taskID as nickname's current task, if it is
// still recorded as such.
func (r *Room) clearCurrentTask(ctx context.Context, nickname, taskID string) error {
	_, err := r.store.AtomicUpdate(ctx, docAgents, func(raw json.RawMessage) (json.RawMessage, error) {
		doc, err := decodeAgents(raw)
		if err != nil {
			return nil, err
		}
		if a, ok := doc.Agents[nickname]; ok && a.CurrentTask == taskID {
			a.CurrentTask = ""
		}
		return json.Marshal(doc)
	})
	if err != nil {
		return asError(err)
	}
	return nil
}

// revertAgentWork reverts any Claimed/InProgress task held by nickname back
// to Todo and releases every lock nickname holds. Called when an agent
// leaves or is reaped as a zombie.
func (r *Room) revertAgentWork(ctx context.Context, nickname string) error {
	_, err := r.store.AtomicUpdate(ctx, docBacklog, func(raw json.RawMessage) (json.RawMessage, error) {
		doc, err := decodeBacklog(raw)
		if err != nil {
			return nil, err
		}
		for _, t := range doc.Tasks {
			if t.Assignee != nickname {
				continue
			}
			if t.State != types.TaskClaimed && t.State != types.TaskInProgress {
				continue
			}
			t.State = types.TaskTodo
			t.Assignee = ""
			t.ClaimedAt = nil
			t.StartedAt = nil
		}
		return json.Marshal(doc)
	})
	if err != nil {
		return asError(err)
	}

	_, err = r.store.AtomicUpdate(ctx, docLocks, func(raw json.RawMessage) (json.RawMessage, error) {
		doc, err := decodeLocks(raw)
		if err != nil {
			return nil, err
		}
		for path, l := range doc.Locks {
			if l.Holder == nickname {
				delete(doc.Locks, path)
			}
		}
		return json.Marshal(doc)
	})
	if err != nil {
		return asError(err)
	}
	return nil
}
