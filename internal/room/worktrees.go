package room

import (
	"context"
	"encoding/json"

	"github.com/masc-mcp/masc/internal/errs"
	"github.com/masc-mcp/masc/internal/types"
)

type worktreesDoc struct {
	Worktrees map[string]*types.Worktree `json:"worktrees"`
}

func decodeWorktrees(raw json.RawMessage) (*worktreesDoc, error) {
	doc := &worktreesDoc{Worktrees: make(map[string]*types.Worktree)}
	if len(raw) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, errs.New(errs.KindStorageCorrupt, "decoding worktrees document: %v", err)
	}
	if doc.Worktrees == nil {
		doc.Worktrees = make(map[string]*types.Worktree)
	}
	return doc, nil
}

// CreateWorktree registers a new sandboxed edit area owned by nickname.
func (r *Room) CreateWorktree(ctx context.Context, name, path, nickname string) (*types.Worktree, error) {
	now := r.clock.Now()
	var wt *types.Worktree
	_, err := r.store.AtomicUpdate(ctx, docWorktrees, func(raw json.RawMessage) (json.RawMessage, error) {
		doc, err := decodeWorktrees(raw)
		if err != nil {
			return nil, err
		}
		if _, exists := doc.Worktrees[name]; exists {
			return nil, errs.New(errs.KindRoomAlreadyExist, "worktree %q already exists", name)
		}
		wt = &types.Worktree{Name: name, Path: path, Owner: nickname, CreatedAt: now}
		doc.Worktrees[name] = wt
		return json.Marshal(doc)
	})
	if err != nil {
		return nil, asError(err)
	}
	r.publish(ctx, "worktree_created", map[string]string{"name": name})
	return wt, nil
}

// RemoveWorktree deletes name. It fails if any task that is not done or
// cancelled references it via WorktreeHint. The backlog is read once,
// before the worktrees document is updated: the two documents are separate
// atomic units, so a task that picks up the worktree between that read and
// the delete is not seen.
func (r *Room) RemoveWorktree(ctx context.Context, name string) error {
	backlogRaw, err := r.store.Load(ctx, docBacklog)
	if err != nil {
		return asError(err)
	}
	backlog, err := decodeBacklog(backlogRaw)
	if err != nil {
		return asError(err)
	}
	_, err = r.store.AtomicUpdate(ctx, docWorktrees, func(raw json.RawMessage) (json.RawMessage, error) {
		doc, err := decodeWorktrees(raw)
		if err != nil {
			return nil, err
		}
		if _, ok := doc.Worktrees[name]; !ok {
			return nil, errs.New(errs.KindFileNotFound, "worktree %q not found", name)
		}
		for _, t := range backlog.Tasks {
			if t.WorktreeHint == name && !t.State.IsTerminal() {
				return nil, errs.New(errs.KindRoomLocked, "worktree %q is referenced by task %q", name, t.ID)
			}
		}
		delete(doc.Worktrees, name)
		return json.Marshal(doc)
	})
	if err != nil {
		return asError(err)
	}
	r.publish(ctx, "worktree_removed", map[string]string{"name": name})
	return nil
}

// ListWorktrees returns every registered worktree.
func (r *Room) ListWorktrees(ctx context.Context) ([]*types.Worktree, error) {
	raw, err := r.store.Load(ctx, docWorktrees)
	if err != nil {
		return nil, asError(err)
	}
	doc, err := decodeWorktrees(raw)
	if err != nil {
		return nil, asError(err)
	}
	out := make([]*types.Worktree, 0, len(doc.Worktrees))
	for _, wt := range doc.Worktrees {
		out = append(out, wt)
	}
	return out, nil
}
