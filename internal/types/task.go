package types

import "time"

// TaskState is the state-machine position of a task.
type TaskState string

const (
	TaskTodo       TaskState = "todo"
	TaskClaimed    TaskState = "claimed"
	TaskInProgress TaskState = "in_progress"
	TaskDone       TaskState = "done"
	TaskCancelled  TaskState = "cancelled"
)

// IsTerminal reports whether state has no further transitions.
func (s TaskState) IsTerminal() bool {
	return s == TaskDone || s == TaskCancelled
}

// validTaskTransitions is the rigid task transition table.
// Release (Claimed/InProgress -> Todo) is represented as the "todo" entry.
var validTaskTransitions = map[TaskState]map[TaskState]bool{
	TaskTodo:       {TaskClaimed: true, TaskCancelled: true},
	TaskClaimed:    {TaskInProgress: true, TaskTodo: true, TaskCancelled: true},
	TaskInProgress: {TaskDone: true, TaskTodo: true, TaskCancelled: true},
	TaskDone:       {},
	TaskCancelled:  {},
}

// CanTransition reports whether moving from `from` to `to` is permitted by
// the task state machine.
func CanTransition(from, to TaskState) bool {
	return validTaskTransitions[from][to]
}

// Task is a unit of scheduling work shared across the room's backlog.
type Task struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Priority     int       `json:"priority"` // 1 highest, 5 lowest
	CreatedAt    time.Time `json:"created_at"`
	State        TaskState `json:"state"`
	DependsOn    []string  `json:"depends_on,omitempty"`
	WorktreeHint string    `json:"worktree_hint,omitempty"`
	FilesTouched []string  `json:"files_touched,omitempty"`

	// Assignment, populated depending on State.
	Assignee    string     `json:"assignee,omitempty"`
	ClaimedAt   *time.Time `json:"claimed_at,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Notes       string     `json:"notes,omitempty"`

	// Cancellation metadata, populated when State == TaskCancelled.
	CancelledBy  string     `json:"cancelled_by,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CancelReason string     `json:"cancel_reason,omitempty"`
}

// TaskFilter selects a subset of tasks by field — status, assignee, and a
// priority range — rather than a single pending-only flag.
type TaskFilter struct {
	States      []TaskState
	Assignee    string
	MinPriority int // 0 = unset
	MaxPriority int // 0 = unset
	PendingOnly bool
}

// Matches reports whether t satisfies f.
func (f TaskFilter) Matches(t *Task) bool {
	if f.PendingOnly {
		if t.State != TaskTodo && t.State != TaskClaimed {
			return false
		}
	}
	if len(f.States) > 0 {
		found := false
		for _, s := range f.States {
			if t.State == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Assignee != "" && t.Assignee != f.Assignee {
		return false
	}
	if f.MinPriority != 0 && t.Priority < f.MinPriority {
		return false
	}
	if f.MaxPriority != 0 && t.Priority > f.MaxPriority {
		return false
	}
	return true
}
