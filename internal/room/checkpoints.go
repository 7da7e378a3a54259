package room

import (
	"context"
	"encoding/json"
	"time"

	"github.com/masc-mcp/masc/internal/clock"
	"github.com/masc-mcp/masc/internal/errs"
	"github.com/masc-mcp/masc/internal/types"
)

// checkpointsDoc holds every checkpoint plus the relay-generation counter.
// The counter is persisted here (rather than only in memory) so a restart
// of the filesystem/SQL Store backends doesn't silently reset handoff
// numbering.
type checkpointsDoc struct {
	Checkpoints     map[string]*types.Checkpoint `json:"checkpoints"`
	RelayGeneration int                          `json:"relay_generation"`
}

func decodeCheckpoints(raw json.RawMessage) (*checkpointsDoc, error) {
	doc := &checkpointsDoc{Checkpoints: make(map[string]*types.Checkpoint)}
	if len(raw) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, errs.New(errs.KindStorageCorrupt, "decoding checkpoints document: %v", err)
	}
	if doc.Checkpoints == nil {
		doc.Checkpoints = make(map[string]*types.Checkpoint)
	}
	return doc, nil
}

// CreateCheckpoint starts a new Pending checkpoint for taskID at step,
// performing the named action on behalf of agent.
func (r *Room) CreateCheckpoint(ctx context.Context, taskID string, step int, action, agent string) (*types.Checkpoint, error) {
	if step < 1 {
		return nil, errs.New(errs.KindInvalidParams, "checkpoint step must be >= 1, got %d", step)
	}
	now := r.clock.Now()
	id := clock.CheckpointID(taskID, step, now)
	cp := &types.Checkpoint{
		ID:        id,
		TaskID:    taskID,
		Step:      step,
		Action:    action,
		Agent:     agent,
		Status:    types.CheckpointPending,
		Timestamp: now,
	}
	_, err := r.store.AtomicUpdate(ctx, docCheckpoints, func(raw json.RawMessage) (json.RawMessage, error) {
		doc, err := decodeCheckpoints(raw)
		if err != nil {
			return nil, err
		}
		doc.Checkpoints[id] = cp
		return json.Marshal(doc)
	})
	if err != nil {
		return nil, asError(err)
	}
	r.publish(ctx, "checkpoint_created", map[string]string{"id": id, "task_id": taskID})
	return cp, nil
}

// TransitionCheckpoint moves id to newStatus if the move is permitted by
// the checkpoint state machine.
func (r *Room) TransitionCheckpoint(ctx context.Context, id string, newStatus types.CheckpointStatus, interrupt string) error {
	now := r.clock.Now()
	_, err := r.store.AtomicUpdate(ctx, docCheckpoints, func(raw json.RawMessage) (json.RawMessage, error) {
		doc, err := decodeCheckpoints(raw)
		if err != nil {
			return nil, err
		}
		cp, ok := doc.Checkpoints[id]
		if !ok {
			return nil, errs.New(errs.KindTaskNotFound, "checkpoint %q not found", id)
		}
		if !types.CanTransitionCheckpoint(cp.Status, newStatus) {
			return nil, errs.New(errs.KindTaskInvalidState, "checkpoint %q cannot move from %s to %s", id, cp.Status, newStatus)
		}
		cp.Status = newStatus
		cp.Timestamp = now
		if newStatus == types.CheckpointInterrupted {
			cp.Interrupt = interrupt
		}
		return json.Marshal(doc)
	})
	if err != nil {
		return asError(err)
	}
	r.publish(ctx, "checkpoint_transitioned", map[string]string{"id": id, "status": string(newStatus)})
	return nil
}

// ListPendingUserAction returns every checkpoint currently Interrupted,
// i.e. awaiting a human decision.
func (r *Room) ListPendingUserAction(ctx context.Context) ([]*types.Checkpoint, error) {
	raw, err := r.store.Load(ctx, docCheckpoints)
	if err != nil {
		return nil, asError(err)
	}
	doc, err := decodeCheckpoints(raw)
	if err != nil {
		return nil, asError(err)
	}
	var out []*types.Checkpoint
	for _, cp := range doc.Checkpoints {
		if cp.Status == types.CheckpointInterrupted {
			out = append(out, cp)
		}
	}
	return out, nil
}

// ReapTimedOut transitions every InProgress checkpoint older than timeout
// to Interrupted, so it surfaces for human action instead of hanging
// forever.
func (r *Room) ReapTimedOut(ctx context.Context, timeout time.Duration) ([]string, error) {
	now := r.clock.Now()
	var reaped []string
	_, err := r.store.AtomicUpdate(ctx, docCheckpoints, func(raw json.RawMessage) (json.RawMessage, error) {
		doc, err := decodeCheckpoints(raw)
		if err != nil {
			return nil, err
		}
		for id, cp := range doc.Checkpoints {
			if cp.Status != types.CheckpointInProgress {
				continue
			}
			if now.Sub(cp.Timestamp) <= timeout {
				continue
			}
			cp.Status = types.CheckpointInterrupted
			cp.Interrupt = "timed out awaiting completion"
			cp.Timestamp = now
			reaped = append(reaped, id)
		}
		return json.Marshal(doc)
	})
	if err != nil {
		return nil, asError(err)
	}
	if len(reaped) > 0 {
		r.publish(ctx, "checkpoints_timed_out", map[string]any{"ids": reaped})
	}
	return reaped, nil
}

// NextRelayGeneration atomically increments and returns the room's relay
// generation counter, used to number successive handoffs.
func (r *Room) NextRelayGeneration(ctx context.Context) (int, error) {
	var gen int
	_, err := r.store.AtomicUpdate(ctx, docCheckpoints, func(raw json.RawMessage) (json.RawMessage, error) {
		doc, err := decodeCheckpoints(raw)
		if err != nil {
			return nil, err
		}
		doc.RelayGeneration++
		gen = doc.RelayGeneration
		return json.Marshal(doc)
	})
	if err != nil {
		return 0, asError(err)
	}
	return gen, nil
}
