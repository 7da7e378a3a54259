package types

import (
	"encoding/json"
	"time"
)

// CheckpointStatus is the state-machine position of a checkpoint.
type CheckpointStatus string

const (
	CheckpointPending     CheckpointStatus = "pending"
	CheckpointInProgress  CheckpointStatus = "in_progress"
	CheckpointInterrupted CheckpointStatus = "interrupted"
	CheckpointCompleted   CheckpointStatus = "completed"
	CheckpointRejected    CheckpointStatus = "rejected"
	CheckpointReverted    CheckpointStatus = "reverted"
	CheckpointBranched    CheckpointStatus = "branched"
)

// IsTerminal reports whether status is one of the terminal statuses:
// completed, rejected or reverted. Branched is not counted as terminal,
// although the transition table lists no move out of it.
func (s CheckpointStatus) IsTerminal() bool {
	switch s {
	case CheckpointCompleted, CheckpointRejected, CheckpointReverted:
		return true
	default:
		return false
	}
}

var validCheckpointTransitions = map[CheckpointStatus]map[CheckpointStatus]bool{
	CheckpointPending: {
		CheckpointInProgress: true,
	},
	CheckpointInProgress: {
		CheckpointInterrupted: true,
		CheckpointCompleted:   true,
	},
	CheckpointInterrupted: {
		CheckpointCompleted: true,
		CheckpointRejected:  true,
		CheckpointReverted:  true,
		CheckpointBranched:  true,
	},
	CheckpointCompleted: {},
	CheckpointRejected:  {},
	CheckpointReverted:  {},
	CheckpointBranched:  {},
}

// CanTransitionCheckpoint reports whether moving from `from` to `to` is a
// permitted checkpoint status transition.
func CanTransitionCheckpoint(from, to CheckpointStatus) bool {
	return validCheckpointTransitions[from][to]
}

// Checkpoint is a resumable point within a multi-step task. Interrupted
// checkpoints require a human decision before the task can proceed.
type Checkpoint struct {
	ID        string           `json:"id"`
	TaskID    string           `json:"task_id"`
	Step      int              `json:"step"`
	Action    string           `json:"action"`
	Agent     string           `json:"agent"`
	Status    CheckpointStatus `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
	Interrupt string           `json:"interrupt,omitempty"`
	State     json.RawMessage  `json:"state,omitempty"`
}
