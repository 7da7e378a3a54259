package room_test

import (
	"context"
	"testing"
	"time"

	"github.com/masc-mcp/masc/internal/errs"
	"github.com/masc-mcp/masc/internal/types"
	"github.com/stretchr/testify/require"
)

func TestCheckpointLifecycleThroughCompletion(t *testing.T) {
	ctx := context.Background()
	fc := &fixedClock{now: time.Now().UTC()}
	r := newTestRoom("default", fc)

	cp, err := r.CreateCheckpoint(ctx, "T1", 1, "edit src/main.go", "alice")
	require.NoError(t, err)
	require.Equal(t, types.CheckpointPending, cp.Status)

	require.NoError(t, r.TransitionCheckpoint(ctx, cp.ID, types.CheckpointInProgress, ""))
	require.NoError(t, r.TransitionCheckpoint(ctx, cp.ID, types.CheckpointCompleted, ""))

	err = r.TransitionCheckpoint(ctx, cp.ID, types.CheckpointInProgress, "")
	require.Error(t, err)
	e, ok := errs.As(err)
	require.True(t, ok)
	require.Equal(t, errs.KindTaskInvalidState, e.Kind)
}

func TestCheckpointInterruptedBranchesToUserDecisions(t *testing.T) {
	ctx := context.Background()
	fc := &fixedClock{now: time.Now().UTC()}
	r := newTestRoom("default", fc)

	cp, err := r.CreateCheckpoint(ctx, "T1", 1, "rm -rf build/", "alice")
	require.NoError(t, err)
	require.NoError(t, r.TransitionCheckpoint(ctx, cp.ID, types.CheckpointInProgress, ""))
	require.NoError(t, r.TransitionCheckpoint(ctx, cp.ID, types.CheckpointInterrupted, "destructive command needs approval"))

	pending, err := r.ListPendingUserAction(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, cp.ID, pending[0].ID)
	require.Equal(t, "destructive command needs approval", pending[0].Interrupt)

	require.NoError(t, r.TransitionCheckpoint(ctx, cp.ID, types.CheckpointRejected, ""))

	pending, err = r.ListPendingUserAction(ctx)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestReapTimedOutInterruptsStaleInProgressCheckpoints(t *testing.T) {
	ctx := context.Background()
	fc := &fixedClock{now: time.Now().UTC()}
	r := newTestRoom("default", fc)

	cp, err := r.CreateCheckpoint(ctx, "T1", 1, "long running build", "alice")
	require.NoError(t, err)
	require.NoError(t, r.TransitionCheckpoint(ctx, cp.ID, types.CheckpointInProgress, ""))

	fc.Advance(10 * time.Minute)
	reaped, err := r.ReapTimedOut(ctx, 5*time.Minute)
	require.NoError(t, err)
	require.Equal(t, []string{cp.ID}, reaped)

	pending, err := r.ListPendingUserAction(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "timed out awaiting completion", pending[0].Interrupt)
}

func TestNextRelayGenerationIncrementsMonotonically(t *testing.T) {
	ctx := context.Background()
	fc := &fixedClock{now: time.Now().UTC()}
	r := newTestRoom("default", fc)

	g1, err := r.NextRelayGeneration(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, g1)

	g2, err := r.NextRelayGeneration(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, g2)
}

func TestCreateCheckpointRejectsNonPositiveStep(t *testing.T) {
	ctx := context.Background()
	fc := &fixedClock{now: time.Now().UTC()}
	r := newTestRoom("default", fc)

	_, err := r.CreateCheckpoint(ctx, "T1", 0, "noop", "alice")
	require.Error(t, err)
	e, ok := errs.As(err)
	require.True(t, ok)
	require.Equal(t, errs.KindInvalidParams, e.Kind)
}
