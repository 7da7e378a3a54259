package room_test

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/masc-mcp/masc/internal/errs"
	"github.com/masc-mcp/masc/internal/room"
	"github.com/masc-mcp/masc/internal/store"
	"github.com/stretchr/testify/require"
)

func TestAcquireAndReleaseLock(t *testing.T) {
	ctx := context.Background()
	fc := &fixedClock{now: time.Now().UTC()}
	r := newTestRoom("default", fc)

	lock, err := r.Acquire(ctx, "src/main.go", "alice", "editing", time.Minute)
	require.NoError(t, err)
	require.Equal(t, "alice", lock.Holder)

	_, err = r.Acquire(ctx, "src/main.go", "bob", "", time.Minute)
	require.Error(t, err)
	e, ok := errs.As(err)
	require.True(t, ok)
	require.Equal(t, errs.KindFileLocked, e.Kind)

	require.NoError(t, r.ReleaseLock(ctx, "src/main.go", "alice"))
	locks, err := r.ListLocks(ctx)
	require.NoError(t, err)
	require.Empty(t, locks)
}

func TestReleaseLockRejectsWrongHolder(t *testing.T) {
	ctx := context.Background()
	fc := &fixedClock{now: time.Now().UTC()}
	r := newTestRoom("default", fc)

	_, err := r.Acquire(ctx, "src/main.go", "alice", "", time.Minute)
	require.NoError(t, err)

	err = r.ReleaseLock(ctx, "src/main.go", "bob")
	require.Error(t, err)
	e, ok := errs.As(err)
	require.True(t, ok)
	require.Equal(t, errs.KindFilePermissionDenied, e.Kind)
}

func TestStaleLockIsReclaimedOnAcquire(t *testing.T) {
	ctx := context.Background()
	fc := &fixedClock{now: time.Now().UTC()}
	r := newTestRoom("default", fc)

	_, err := r.Acquire(ctx, "src/main.go", "alice", "", time.Second)
	require.NoError(t, err)

	fc.Advance(2 * time.Second)

	lock, err := r.Acquire(ctx, "src/main.go", "bob", "", time.Minute)
	require.NoError(t, err)
	require.Equal(t, "bob", lock.Holder)
}

func TestWarnLongHeldLocksEmitsDiagnostic(t *testing.T) {
	ctx := context.Background()
	fc := &fixedClock{now: time.Now().UTC()}
	r := room.New("default", store.NewMemory(),
		room.WithClock(fc),
		room.WithLogger(log.New(io.Discard, "", 0)),
		room.WithLockWarnThreshold(30*time.Second),
	)

	sub, err := r.SubscribeDiagnostics(ctx)
	require.NoError(t, err)
	defer sub.Close()

	_, err = r.Acquire(ctx, "src/main.go", "alice", "", time.Hour)
	require.NoError(t, err)

	fc.Advance(time.Minute)
	require.NoError(t, r.WarnLongHeldLocks(ctx))

	select {
	case payload := <-sub.C():
		require.Contains(t, string(payload), "src/main.go")
	case <-time.After(time.Second):
		t.Fatal("expected a diagnostic for the long-held lock")
	}
}

func TestReleaseLockNoSuchLock(t *testing.T) {
	ctx := context.Background()
	fc := &fixedClock{now: time.Now().UTC()}
	r := newTestRoom("default", fc)

	err := r.ReleaseLock(ctx, "src/missing.go", "alice")
	require.Error(t, err)
	e, ok := errs.As(err)
	require.True(t, ok)
	require.Equal(t, errs.KindFileNotFound, e.Kind)
}
