package room

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/masc-mcp/masc/internal/errs"
	"github.com/masc-mcp/masc/internal/types"
	"github.com/masc-mcp/masc/internal/validation"
)

type backlogDoc struct {
	Tasks map[string]*types.Task `json:"tasks"`
}

func decodeBacklog(raw json.RawMessage) (*backlogDoc, error) {
	doc := &backlogDoc{Tasks: make(map[string]*types.Task)}
	if len(raw) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, errs.New(errs.KindStorageCorrupt, "decoding backlog document: %v", err)
	}
	if doc.Tasks == nil {
		doc.Tasks = make(map[string]*types.Task)
	}
	return doc, nil
}

// hasCycle runs an incremental DFS from start, looking for a path back to
// start through the depends_on edges, as if candidateDeps were start's
// dependency list. The whole graph fits in RAM so this is O(V+E).
func hasCycle(tasks map[string]*types.Task, start string, candidateDeps []string) bool {
	visited := make(map[string]bool)
	var visit func(id string, deps []string) bool
	visit = func(id string, deps []string) bool {
		for _, dep := range deps {
			if dep == start {
				return true
			}
			if visited[dep] {
				continue
			}
			visited[dep] = true
			t, ok := tasks[dep]
			if !ok {
				continue
			}
			if visit(dep, t.DependsOn) {
				return true
			}
		}
		return false
	}
	return visit(start, candidateDeps)
}

// AddTask inserts a new Todo task into the backlog. The dependency graph
// must remain acyclic; if adding task.DependsOn would introduce a cycle,
// the task is rejected.
func (r *Room) AddTask(ctx context.Context, task *types.Task) error {
	if err := validation.ValidateTaskID(task.ID); err != nil {
		return errs.New(errs.KindTaskNotFound, "%v", err)
	}
	now := r.clock.Now()
	_, err := r.store.AtomicUpdate(ctx, docBacklog, func(raw json.RawMessage) (json.RawMessage, error) {
		doc, err := decodeBacklog(raw)
		if err != nil {
			return nil, err
		}
		if _, exists := doc.Tasks[task.ID]; exists {
			// Re-adding an existing task ID is a no-op: the stored task
			// is kept as it is, whatever fields the new value carries.
			return json.Marshal(doc)
		}
		if hasCycle(doc.Tasks, task.ID, task.DependsOn) {
			return nil, errs.New(errs.KindTaskCycleDetected, "adding task %q would create a dependency cycle", task.ID)
		}
		t := *task
		t.State = types.TaskTodo
		t.CreatedAt = now
		doc.Tasks[task.ID] = &t
		return json.Marshal(doc)
	})
	if err != nil {
		return asError(err)
	}
	r.publish(ctx, "task_added", map[string]string{"task_id": task.ID})
	return nil
}

// ListTasks returns tasks matching filter, sorted by ascending priority
// then ascending creation timestamp (the order list_tasks uses for its
// pending_only view, applied uniformly here).
func (r *Room) ListTasks(ctx context.Context, filter types.TaskFilter) ([]*types.Task, error) {
	raw, err := r.store.Load(ctx, docBacklog)
	if err != nil {
		return nil, asError(err)
	}
	doc, err := decodeBacklog(raw)
	if err != nil {
		return nil, asError(err)
	}
	var out []*types.Task
	for _, t := range doc.Tasks {
		if filter.Matches(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// GetTask returns a copy of the named task.
func (r *Room) GetTask(ctx context.Context, taskID string) (*types.Task, error) {
	raw, err := r.store.Load(ctx, docBacklog)
	if err != nil {
		return nil, asError(err)
	}
	doc, err := decodeBacklog(raw)
	if err != nil {
		return nil, asError(err)
	}
	t, ok := doc.Tasks[taskID]
	if !ok {
		return nil, errs.New(errs.KindTaskNotFound, "task %q not found", taskID)
	}
	return t, nil
}

// blockedBy returns the dependency IDs of taskID that are not yet Done.
func blockedBy(tasks map[string]*types.Task, task *types.Task) []string {
	var blocking []string
	for _, dep := range task.DependsOn {
		if d, ok := tasks[dep]; !ok || d.State != types.TaskDone {
			blocking = append(blocking, dep)
		}
	}
	return blocking
}

// Claim is the at-most-once binding of a Todo task to nickname. Before
// attempting the claim it reaps zombies, since a zombie's held task may
// need to revert to Todo first.
func (r *Room) Claim(ctx context.Context, taskID, nickname string) (*types.Task, error) {
	if _, err := r.ReapZombies(ctx); err != nil {
		r.log.Printf("room %s: zombie sweep before claim failed: %v", r.Name, err)
	}
	if _, err := r.GetAgent(ctx, nickname); err != nil {
		return nil, err
	}
	now := r.clock.Now()
	var claimed *types.Task
	_, err := r.store.AtomicUpdate(ctx, docBacklog, func(raw json.RawMessage) (json.RawMessage, error) {
		doc, err := decodeBacklog(raw)
		if err != nil {
			return nil, err
		}
		t, ok := doc.Tasks[taskID]
		if !ok {
			return nil, errs.New(errs.KindTaskNotFound, "task %q not found", taskID)
		}
		if t.State != types.TaskTodo {
			return nil, errs.New(errs.KindTaskAlreadyClaimed, "task %q is %s, not todo", taskID, t.State)
		}
		if blocking := blockedBy(doc.Tasks, t); len(blocking) > 0 {
			return nil, errs.New(errs.KindTaskInvalidState, "task %q blocked by incomplete dependencies", taskID).
				WithFields(map[string]any{"blocked_by": blocking})
		}
		t.State = types.TaskClaimed
		t.Assignee = nickname
		t.ClaimedAt = &now
		claimed = t
		return json.Marshal(doc)
	})
	if err != nil {
		return nil, asError(err)
	}
	if err := r.setCurrentTask(ctx, nickname, taskID); err != nil {
		if revertErr := r.revertClaim(ctx, taskID, nickname); revertErr != nil {
			r.log.Printf("room %s: reverting orphaned claim of %q by %q: %v", r.Name, taskID, nickname, revertErr)
		}
		return nil, err
	}
	r.publish(ctx, "task_claimed", map[string]string{"task_id": taskID, "assignee": nickname})
	return claimed, nil
}

// revertClaim undoes a Claim whose backlog mutation committed but whose
// companion agent-side setCurrentTask failed, e.g. because nickname left
// the room in the window between Claim's liveness check and that update.
func (r *Room) revertClaim(ctx context.Context, taskID, nickname string) error {
	_, err := r.store.AtomicUpdate(ctx, docBacklog, func(raw json.RawMessage) (json.RawMessage, error) {
		doc, err := decodeBacklog(raw)
		if err != nil {
			return nil, err
		}
		t, ok := doc.Tasks[taskID]
		if !ok || t.Assignee != nickname || t.State != types.TaskClaimed {
			return json.Marshal(doc)
		}
		t.State = types.TaskTodo
		t.Assignee = ""
		t.ClaimedAt = nil
		return json.Marshal(doc)
	})
	if err != nil {
		return asError(err)
	}
	return nil
}

// Release moves a Claimed or InProgress task back to Todo and clears its
// assignee.
func (r *Room) Release(ctx context.Context, taskID, nickname string) error {
	_, err := r.store.AtomicUpdate(ctx, docBacklog, func(raw json.RawMessage) (json.RawMessage, error) {
		doc, err := decodeBacklog(raw)
		if err != nil {
			return nil, err
		}
		t, ok := doc.Tasks[taskID]
		if !ok {
			return nil, errs.New(errs.KindTaskNotFound, "task %q not found", taskID)
		}
		if t.Assignee != nickname {
			return nil, errs.New(errs.KindTaskInvalidState, "task %q is not assigned to %q", taskID, nickname)
		}
		if !types.CanTransition(t.State, types.TaskTodo) {
			return nil, errs.New(errs.KindTaskInvalidState, "task %q cannot release from %s", taskID, t.State)
		}
		t.State = types.TaskTodo
		t.Assignee = ""
		t.ClaimedAt = nil
		t.StartedAt = nil
		return json.Marshal(doc)
	})
	if err != nil {
		return asError(err)
	}
	if err := r.clearCurrentTask(ctx, nickname, taskID); err != nil {
		return err
	}
	r.publish(ctx, "task_released", map[string]string{"task_id": taskID})
	return nil
}

// UpdateTaskState applies any transition the task state table permits. It
// only sets StartedAt (on a move to InProgress); the assignee, completion
// and cancellation fields that Claim/Release/Complete/Cancel maintain are
// left as they are.
func (r *Room) UpdateTaskState(ctx context.Context, taskID string, newState types.TaskState) error {
	now := r.clock.Now()
	_, err := r.store.AtomicUpdate(ctx, docBacklog, func(raw json.RawMessage) (json.RawMessage, error) {
		doc, err := decodeBacklog(raw)
		if err != nil {
			return nil, err
		}
		t, ok := doc.Tasks[taskID]
		if !ok {
			return nil, errs.New(errs.KindTaskNotFound, "task %q not found", taskID)
		}
		if !types.CanTransition(t.State, newState) {
			return nil, errs.New(errs.KindTaskInvalidState, "task %q cannot move from %s to %s", taskID, t.State, newState)
		}
		t.State = newState
		if newState == types.TaskInProgress {
			t.StartedAt = &now
		}
		return json.Marshal(doc)
	})
	if err != nil {
		return asError(err)
	}
	r.publish(ctx, "task_state_changed", map[string]string{"task_id": taskID, "state": string(newState)})
	return nil
}

// Complete marks a task Done with optional notes.
func (r *Room) Complete(ctx context.Context, taskID, notes string) error {
	now := r.clock.Now()
	_, err := r.store.AtomicUpdate(ctx, docBacklog, func(raw json.RawMessage) (json.RawMessage, error) {
		doc, err := decodeBacklog(raw)
		if err != nil {
			return nil, err
		}
		t, ok := doc.Tasks[taskID]
		if !ok {
			return nil, errs.New(errs.KindTaskNotFound, "task %q not found", taskID)
		}
		if !types.CanTransition(t.State, types.TaskDone) {
			return nil, errs.New(errs.KindTaskInvalidState, "task %q cannot complete from %s", taskID, t.State)
		}
		t.State = types.TaskDone
		t.CompletedAt = &now
		t.Notes = notes
		return json.Marshal(doc)
	})
	if err != nil {
		return asError(err)
	}
	r.publish(ctx, "task_completed", map[string]string{"task_id": taskID})
	return nil
}

// Cancel marks a task Cancelled with an optional reason.
func (r *Room) Cancel(ctx context.Context, taskID, by, reason string) error {
	now := r.clock.Now()
	_, err := r.store.AtomicUpdate(ctx, docBacklog, func(raw json.RawMessage) (json.RawMessage, error) {
		doc, err := decodeBacklog(raw)
		if err != nil {
			return nil, err
		}
		t, ok := doc.Tasks[taskID]
		if !ok {
			return nil, errs.New(errs.KindTaskNotFound, "task %q not found", taskID)
		}
		if !types.CanTransition(t.State, types.TaskCancelled) {
			return nil, errs.New(errs.KindTaskInvalidState, "task %q cannot cancel from %s", taskID, t.State)
		}
		t.State = types.TaskCancelled
		t.CancelledBy = by
		t.CancelledAt = &now
		t.CancelReason = reason
		return json.Marshal(doc)
	})
	if err != nil {
		return asError(err)
	}
	r.publish(ctx, "task_cancelled", map[string]string{"task_id": taskID})
	return nil
}
