package types

import "time"

// Worktree is a sandboxed edit area — typically a clone of the source tree
// — owned by at most one agent at a time.
type Worktree struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Owner     string    `json:"owner"`
	CreatedAt time.Time `json:"created_at"`
}
