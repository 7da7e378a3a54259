package room_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/masc-mcp/masc/internal/errs"
	"github.com/masc-mcp/masc/internal/types"
	"github.com/stretchr/testify/require"
)

func TestAddTaskAndClaimLifecycle(t *testing.T) {
	ctx := context.Background()
	fc := &fixedClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	r := newTestRoom("default", fc)

	require.NoError(t, r.AddTask(ctx, &types.Task{ID: "T1", Title: "do the thing", Priority: 2}))

	_, err := r.Join(ctx, types.AgentClaude, nil)
	require.NoError(t, err)
	agents, err := r.ListAgents(ctx)
	require.NoError(t, err)
	require.Len(t, agents, 1)
	nick := agents[0].Nickname

	task, err := r.Claim(ctx, "T1", nick)
	require.NoError(t, err)
	require.Equal(t, types.TaskClaimed, task.State)
	require.Equal(t, nick, task.Assignee)

	agent, err := r.GetAgent(ctx, nick)
	require.NoError(t, err)
	require.Equal(t, "T1", agent.CurrentTask)

	require.NoError(t, r.UpdateTaskState(ctx, "T1", types.TaskInProgress))
	require.NoError(t, r.Complete(ctx, "T1", "done, all tests pass"))

	done, err := r.GetTask(ctx, "T1")
	require.NoError(t, err)
	require.Equal(t, types.TaskDone, done.State)
	require.NotNil(t, done.CompletedAt)
}

func TestClaimByUnknownAgentIsRejected(t *testing.T) {
	ctx := context.Background()
	fc := &fixedClock{now: time.Now().UTC()}
	r := newTestRoom("default", fc)
	require.NoError(t, r.AddTask(ctx, &types.Task{ID: "T1", Priority: 1}))

	_, err := r.Claim(ctx, "T1", "totally-bogus-nick")
	require.Error(t, err)
	e, ok := errs.As(err)
	require.True(t, ok)
	require.Equal(t, errs.KindAgentNotFound, e.Kind)

	task, err := r.GetTask(ctx, "T1")
	require.NoError(t, err)
	require.Equal(t, types.TaskTodo, task.State)
	require.Empty(t, task.Assignee)
}

func TestClaimIsAtMostOnceUnderContention(t *testing.T) {
	ctx := context.Background()
	fc := &fixedClock{now: time.Now().UTC()}
	r := newTestRoom("default", fc)
	require.NoError(t, r.AddTask(ctx, &types.Task{ID: "T1", Priority: 1}))

	nickA, err := r.Join(ctx, types.AgentClaude, nil)
	require.NoError(t, err)
	nickB, err := r.Join(ctx, types.AgentGemini, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	claimers := []string{nickA, nickB}
	for _, nick := range claimers {
		wg.Add(1)
		go func(nick string) {
			defer wg.Done()
			_, err := r.Claim(ctx, "T1", nick)
			results <- err
		}(nick)
	}
	wg.Wait()
	close(results)

	var oks, conflicts int
	for err := range results {
		if err == nil {
			oks++
			continue
		}
		e, ok := errs.As(err)
		require.True(t, ok)
		require.Equal(t, errs.KindTaskAlreadyClaimed, e.Kind)
		conflicts++
	}
	require.Equal(t, 1, oks)
	require.Equal(t, 1, conflicts)

	task, err := r.GetTask(ctx, "T1")
	require.NoError(t, err)
	require.Equal(t, types.TaskClaimed, task.State)
	require.Contains(t, claimers, task.Assignee)
}

func TestDependencyCycleRejected(t *testing.T) {
	ctx := context.Background()
	fc := &fixedClock{now: time.Now().UTC()}
	r := newTestRoom("default", fc)

	require.NoError(t, r.AddTask(ctx, &types.Task{ID: "A", DependsOn: []string{"B"}}))
	require.NoError(t, r.AddTask(ctx, &types.Task{ID: "B", DependsOn: []string{"C"}}))

	err := r.AddTask(ctx, &types.Task{ID: "C", DependsOn: []string{"A"}})
	require.Error(t, err)
	e, ok := errs.As(err)
	require.True(t, ok)
	require.Equal(t, errs.KindTaskCycleDetected, e.Kind)
}

func TestClaimBlockedByIncompleteDependency(t *testing.T) {
	ctx := context.Background()
	fc := &fixedClock{now: time.Now().UTC()}
	r := newTestRoom("default", fc)
	require.NoError(t, r.AddTask(ctx, &types.Task{ID: "base"}))
	require.NoError(t, r.AddTask(ctx, &types.Task{ID: "dependent", DependsOn: []string{"base"}}))

	nick, err := r.Join(ctx, types.AgentClaude, nil)
	require.NoError(t, err)

	_, err = r.Claim(ctx, "dependent", nick)
	require.Error(t, err)
	e, ok := errs.As(err)
	require.True(t, ok)
	require.Equal(t, errs.KindTaskInvalidState, e.Kind)
	require.Equal(t, []string{"base"}, e.Fields["blocked_by"])
}

func TestListTasksOrderingByPriorityThenCreatedAt(t *testing.T) {
	ctx := context.Background()
	fc := &fixedClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	r := newTestRoom("default", fc)

	require.NoError(t, r.AddTask(ctx, &types.Task{ID: "low", Priority: 5}))
	fc.Advance(time.Second)
	require.NoError(t, r.AddTask(ctx, &types.Task{ID: "high-first", Priority: 1}))
	fc.Advance(time.Second)
	require.NoError(t, r.AddTask(ctx, &types.Task{ID: "high-second", Priority: 1}))

	// Among tasks of equal priority, the one created earlier sorts first.
	tasks, err := r.ListTasks(ctx, types.TaskFilter{PendingOnly: true})
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	require.Equal(t, "high-first", tasks[0].ID)
	require.Equal(t, "high-second", tasks[1].ID)
	require.Equal(t, "low", tasks[2].ID)
}

func TestReleaseAndTerminalStatesAreFinal(t *testing.T) {
	ctx := context.Background()
	fc := &fixedClock{now: time.Now().UTC()}
	r := newTestRoom("default", fc)
	require.NoError(t, r.AddTask(ctx, &types.Task{ID: "T1"}))
	nick, err := r.Join(ctx, types.AgentClaude, nil)
	require.NoError(t, err)

	_, err = r.Claim(ctx, "T1", nick)
	require.NoError(t, err)
	require.NoError(t, r.Release(ctx, "T1", nick))

	task, err := r.GetTask(ctx, "T1")
	require.NoError(t, err)
	require.Equal(t, types.TaskTodo, task.State)
	require.Empty(t, task.Assignee)

	require.NoError(t, r.Cancel(ctx, "T1", nick, "no longer needed"))
	err = r.UpdateTaskState(ctx, "T1", types.TaskInProgress)
	require.Error(t, err)
	e, ok := errs.As(err)
	require.True(t, ok)
	require.Equal(t, errs.KindTaskInvalidState, e.Kind)
}
