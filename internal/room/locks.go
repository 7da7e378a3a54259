package room

import (
	"context"
	"encoding/json"
	"time"

	"github.com/masc-mcp/masc/internal/errs"
	"github.com/masc-mcp/masc/internal/types"
	"github.com/masc-mcp/masc/internal/validation"
)

type locksDoc struct {
	Locks map[string]*types.FileLock `json:"locks"`
}

func decodeLocks(raw json.RawMessage) (*locksDoc, error) {
	doc := &locksDoc{Locks: make(map[string]*types.FileLock)}
	if len(raw) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, errs.New(errs.KindStorageCorrupt, "decoding locks document: %v", err)
	}
	if doc.Locks == nil {
		doc.Locks = make(map[string]*types.FileLock)
	}
	return doc, nil
}

// Acquire succeeds iff no lock exists for path, or the existing lock is
// stale, in which case it is reclaimed inside this same update.
func (r *Room) Acquire(ctx context.Context, path, nickname, reason string, ttl time.Duration) (*types.FileLock, error) {
	if err := validation.ValidatePath(path); err != nil {
		return nil, errs.New(errs.KindFilePermissionDenied, "%v", err)
	}
	now := r.clock.Now()
	var lock *types.FileLock
	_, err := r.store.AtomicUpdate(ctx, docLocks, func(raw json.RawMessage) (json.RawMessage, error) {
		doc, err := decodeLocks(raw)
		if err != nil {
			return nil, err
		}
		if existing, ok := doc.Locks[path]; ok && !existing.IsStale(now) {
			return nil, errs.New(errs.KindFileLocked, "path %q is held by %q", path, existing.Holder)
		}
		lock = &types.FileLock{
			Path:       path,
			Holder:     nickname,
			AcquiredAt: now,
			Expiry:     now.Add(ttl),
			Reason:     reason,
		}
		doc.Locks[path] = lock
		return json.Marshal(doc)
	})
	if err != nil {
		return nil, asError(err)
	}
	r.publish(ctx, "lock_acquired", map[string]string{"path": path, "holder": nickname})
	return lock, nil
}

// ReleaseLock releases path's lock; the caller must be its holder.
func (r *Room) ReleaseLock(ctx context.Context, path, nickname string) error {
	_, err := r.store.AtomicUpdate(ctx, docLocks, func(raw json.RawMessage) (json.RawMessage, error) {
		doc, err := decodeLocks(raw)
		if err != nil {
			return nil, err
		}
		l, ok := doc.Locks[path]
		if !ok {
			return nil, errs.New(errs.KindFileNotFound, "no lock held on %q", path)
		}
		if l.Holder != nickname {
			return nil, errs.New(errs.KindFilePermissionDenied, "lock on %q is held by %q, not %q", path, l.Holder, nickname)
		}
		delete(doc.Locks, path)
		return json.Marshal(doc)
	})
	if err != nil {
		return asError(err)
	}
	r.publish(ctx, "lock_released", map[string]string{"path": path})
	return nil
}

// ListLocks returns every currently-held lock.
func (r *Room) ListLocks(ctx context.Context) ([]*types.FileLock, error) {
	raw, err := r.store.Load(ctx, docLocks)
	if err != nil {
		return nil, asError(err)
	}
	doc, err := decodeLocks(raw)
	if err != nil {
		return nil, asError(err)
	}
	locks := make([]*types.FileLock, 0, len(doc.Locks))
	for _, l := range doc.Locks {
		locks = append(locks, l)
	}
	return locks, nil
}

// WarnLongHeldLocks scans for locks held longer than the room's configured
// warning threshold and emits one diagnostic per offender. Nothing in this
// module calls it on a schedule; the daemon's periodic sweep covers
// checkpoints only.
func (r *Room) WarnLongHeldLocks(ctx context.Context) error {
	now := r.clock.Now()
	locks, err := r.ListLocks(ctx)
	if err != nil {
		return err
	}
	for _, l := range locks {
		if now.Sub(l.AcquiredAt) > r.lockWarnThreshold {
			r.warn(ctx, "lock on "+l.Path+" held by "+l.Holder+" past warning threshold")
		}
	}
	return nil
}
