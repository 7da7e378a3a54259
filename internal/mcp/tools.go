package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/masc-mcp/masc/internal/relay"
	"github.com/masc-mcp/masc/internal/room"
	"github.com/masc-mcp/masc/internal/types"
)

// result renders v as pretty-printed JSON text content, the wire shape
// every document in this system already uses.
func result(v any) (*mcpsdk.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(err), nil, nil
	}
	return &mcpsdk.CallToolResult{Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}}}, v, nil
}

// errorResult renders err as a structured tool error, never as a
// transport-level failure: MCP clients are expected to branch on
// IsError/the embedded Kind rather than an RPC fault.
func errorResult(err error) *mcpsdk.CallToolResult {
	data, _ := json.MarshalIndent(asToolError(err), "", "  ")
	return &mcpsdk.CallToolResult{Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}}, IsError: true}
}

func roomOrError(mgr *Manager, name string) (*room.Room, *mcpsdk.CallToolResult) {
	r, err := mgr.Room(name)
	if err != nil {
		return nil, errorResult(err)
	}
	return r, nil
}

// --- agents ---

type joinArgs struct {
	Room         string   `json:"room,omitempty" jsonschema:"Room to join; defaults to the server's default room"`
	AgentType    string   `json:"agent_type" jsonschema:"Model family driving this agent: claude, gemini, codex, or other"`
	Capabilities []string `json:"capabilities,omitempty" jsonschema:"Capability strings this agent declares"`
}

type nicknameArgs struct {
	Room     string `json:"room,omitempty"`
	Nickname string `json:"nickname" jsonschema:"This agent's nickname, as returned by join"`
}

type listAgentsArgs struct {
	Room string `json:"room,omitempty"`
}

// --- tasks ---

type addTaskArgs struct {
	Room         string   `json:"room,omitempty"`
	Title        string   `json:"title" jsonschema:"Short task title"`
	Description  string   `json:"description,omitempty"`
	Priority     int      `json:"priority,omitempty" jsonschema:"1 (highest) through 5 (lowest); defaults to 3"`
	DependsOn    []string `json:"depends_on,omitempty" jsonschema:"Task IDs this task depends on"`
	WorktreeHint string   `json:"worktree_hint,omitempty"`
}

type listTasksArgs struct {
	Room        string `json:"room,omitempty"`
	PendingOnly bool   `json:"pending_only,omitempty" jsonschema:"Restrict to todo/claimed tasks, priority-then-age ordered"`
	Assignee    string `json:"assignee,omitempty"`
}

type taskIDArgs struct {
	Room   string `json:"room,omitempty"`
	TaskID string `json:"task_id" jsonschema:"Opaque task identifier"`
}

type claimArgs struct {
	Room     string `json:"room,omitempty"`
	TaskID   string `json:"task_id"`
	Nickname string `json:"nickname"`
}

type releaseTaskArgs struct {
	Room     string `json:"room,omitempty"`
	TaskID   string `json:"task_id"`
	Nickname string `json:"nickname"`
}

type updateTaskStateArgs struct {
	Room     string `json:"room,omitempty"`
	TaskID   string `json:"task_id"`
	NewState string `json:"new_state" jsonschema:"One of todo, claimed, in_progress, done, cancelled"`
}

type completeArgs struct {
	Room   string `json:"room,omitempty"`
	TaskID string `json:"task_id"`
	Notes  string `json:"notes,omitempty"`
}

type cancelArgs struct {
	Room   string `json:"room,omitempty"`
	TaskID string `json:"task_id"`
	By     string `json:"by"`
	Reason string `json:"reason,omitempty"`
}

// --- locks ---

type acquireArgs struct {
	Room       string `json:"room,omitempty"`
	Path       string `json:"path" jsonschema:"File path, rooted inside the room"`
	Nickname   string `json:"nickname"`
	Reason     string `json:"reason,omitempty"`
	TTLSeconds int    `json:"ttl_seconds,omitempty" jsonschema:"Lock lifetime in seconds; defaults to 1800"`
}

type releaseLockArgs struct {
	Room     string `json:"room,omitempty"`
	Path     string `json:"path"`
	Nickname string `json:"nickname"`
}

type listLocksArgs struct {
	Room string `json:"room,omitempty"`
}

// --- messages ---

type broadcastArgs struct {
	Room    string `json:"room,omitempty"`
	From    string `json:"from" jsonschema:"Author nickname"`
	Content string `json:"content" jsonschema:"Message body; @mentions are parsed automatically"`
}

type readArgs struct {
	Room     string `json:"room,omitempty"`
	SinceSeq uint64 `json:"since_seq,omitempty" jsonschema:"Return messages with seq > since_seq"`
	Limit    int    `json:"limit,omitempty" jsonschema:"Maximum messages to return; defaults to 50"`
}

// --- worktrees ---

type createWorktreeArgs struct {
	Room     string `json:"room,omitempty"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	Nickname string `json:"nickname"`
}

type worktreeNameArgs struct {
	Room string `json:"room,omitempty"`
	Name string `json:"name"`
}

type listWorktreesArgs struct {
	Room string `json:"room,omitempty"`
}

// --- checkpoints ---

type createCheckpointArgs struct {
	Room   string `json:"room,omitempty"`
	TaskID string `json:"task_id"`
	Step   int    `json:"step" jsonschema:"Strictly positive step index"`
	Action string `json:"action"`
	Agent  string `json:"agent"`
}

type transitionCheckpointArgs struct {
	Room      string `json:"room,omitempty"`
	ID        string `json:"id"`
	NewStatus string `json:"new_status" jsonschema:"One of in_progress, interrupted, completed, rejected, reverted, branched"`
	Interrupt string `json:"interrupt,omitempty"`
}

type listPendingArgs struct {
	Room string `json:"room,omitempty"`
}

// --- relay ---

type relayDecisionArgs struct {
	MessageCount  int    `json:"message_count"`
	ToolCallCount int    `json:"tool_call_count"`
	Model         string `json:"model" jsonschema:"claude, gemini, gpt, or codex"`
	TaskKind      string `json:"task_kind,omitempty" jsonschema:"simple, large_file_read, multi_file_edit, long_running, or exploration"`
	FileCount     int    `json:"file_count,omitempty" jsonschema:"Only meaningful for multi_file_edit"`
	Threshold     float64 `json:"threshold,omitempty" jsonschema:"Usage ratio threshold; defaults to 0.8"`
}

type buildHandoffArgs struct {
	Summary         string   `json:"summary"`
	CurrentTask     string   `json:"current_task,omitempty"`
	Todos           []string `json:"todos,omitempty"`
	PDCAState       string   `json:"pdca_state,omitempty"`
	RelevantFiles   []string `json:"relevant_files,omitempty"`
	SessionID       string   `json:"session_id,omitempty"`
	RelayGeneration int      `json:"relay_generation,omitempty"`
}

// RegisterTools registers every room operation as an MCP tool on server,
// dispatching through mgr. It is the pure routing layer §4.L describes:
// no tool body contains room logic, only argument translation.
func RegisterTools(server *mcpsdk.Server, mgr *Manager) {
	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "join",
		Description: "Join a room as a new agent, receiving a generated nickname.",
	}, func(ctx context.Context, _ *mcpsdk.CallToolRequest, a joinArgs) (*mcpsdk.CallToolResult, any, error) {
		r, errRes := roomOrError(mgr, a.Room)
		if errRes != nil {
			return errRes, nil, nil
		}
		nick, err := r.Join(ctx, types.AgentType(a.AgentType), a.Capabilities)
		if err != nil {
			return errorResult(err), nil, nil
		}
		return result(map[string]string{"nickname": nick})
	})

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "leave",
		Description: "Leave a room, freeing the agent's nickname and current task.",
	}, func(ctx context.Context, _ *mcpsdk.CallToolRequest, a nicknameArgs) (*mcpsdk.CallToolResult, any, error) {
		r, errRes := roomOrError(mgr, a.Room)
		if errRes != nil {
			return errRes, nil, nil
		}
		if err := r.Leave(ctx, a.Nickname); err != nil {
			return errorResult(err), nil, nil
		}
		return result(map[string]bool{"ok": true})
	})

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "heartbeat",
		Description: "Record a liveness heartbeat for an agent, preventing zombie reclamation.",
	}, func(ctx context.Context, _ *mcpsdk.CallToolRequest, a nicknameArgs) (*mcpsdk.CallToolResult, any, error) {
		r, errRes := roomOrError(mgr, a.Room)
		if errRes != nil {
			return errRes, nil, nil
		}
		if err := r.Heartbeat(ctx, a.Nickname); err != nil {
			return errorResult(err), nil, nil
		}
		return result(map[string]bool{"ok": true})
	})

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "list_agents",
		Description: "List every live agent in a room.",
	}, func(ctx context.Context, _ *mcpsdk.CallToolRequest, a listAgentsArgs) (*mcpsdk.CallToolResult, any, error) {
		r, errRes := roomOrError(mgr, a.Room)
		if errRes != nil {
			return errRes, nil, nil
		}
		agents, err := r.ListAgents(ctx)
		if err != nil {
			return errorResult(err), nil, nil
		}
		return result(agents)
	})

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "add_task",
		Description: "Add a new Todo task to the room's backlog.",
	}, func(ctx context.Context, _ *mcpsdk.CallToolRequest, a addTaskArgs) (*mcpsdk.CallToolResult, any, error) {
		r, errRes := roomOrError(mgr, a.Room)
		if errRes != nil {
			return errRes, nil, nil
		}
		priority := a.Priority
		if priority == 0 {
			priority = 3
		}
		task := &types.Task{
			ID:           uuid.NewString(),
			Title:        a.Title,
			Description:  a.Description,
			Priority:     priority,
			DependsOn:    a.DependsOn,
			WorktreeHint: a.WorktreeHint,
		}
		if err := r.AddTask(ctx, task); err != nil {
			return errorResult(err), nil, nil
		}
		return result(task)
	})

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "list_tasks",
		Description: "List tasks, optionally restricted to the pending (todo/claimed) view or one assignee.",
	}, func(ctx context.Context, _ *mcpsdk.CallToolRequest, a listTasksArgs) (*mcpsdk.CallToolResult, any, error) {
		r, errRes := roomOrError(mgr, a.Room)
		if errRes != nil {
			return errRes, nil, nil
		}
		tasks, err := r.ListTasks(ctx, types.TaskFilter{PendingOnly: a.PendingOnly, Assignee: a.Assignee})
		if err != nil {
			return errorResult(err), nil, nil
		}
		return result(tasks)
	})

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "get_task",
		Description: "Fetch one task by ID.",
	}, func(ctx context.Context, _ *mcpsdk.CallToolRequest, a taskIDArgs) (*mcpsdk.CallToolResult, any, error) {
		r, errRes := roomOrError(mgr, a.Room)
		if errRes != nil {
			return errRes, nil, nil
		}
		task, err := r.GetTask(ctx, a.TaskID)
		if err != nil {
			return errorResult(err), nil, nil
		}
		return result(task)
	})

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "claim",
		Description: "Claim a Todo task for an agent. At-most-once: fails with task_already_claimed under contention.",
	}, func(ctx context.Context, _ *mcpsdk.CallToolRequest, a claimArgs) (*mcpsdk.CallToolResult, any, error) {
		r, errRes := roomOrError(mgr, a.Room)
		if errRes != nil {
			return errRes, nil, nil
		}
		task, err := r.Claim(ctx, a.TaskID, a.Nickname)
		if err != nil {
			return errorResult(err), nil, nil
		}
		return result(task)
	})

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "release_task",
		Description: "Release a claimed/in-progress task back to Todo.",
	}, func(ctx context.Context, _ *mcpsdk.CallToolRequest, a releaseTaskArgs) (*mcpsdk.CallToolResult, any, error) {
		r, errRes := roomOrError(mgr, a.Room)
		if errRes != nil {
			return errRes, nil, nil
		}
		if err := r.Release(ctx, a.TaskID, a.Nickname); err != nil {
			return errorResult(err), nil, nil
		}
		return result(map[string]bool{"ok": true})
	})

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "update_task_state",
		Description: "Move a task along the state machine (todo, claimed, in_progress, done, cancelled).",
	}, func(ctx context.Context, _ *mcpsdk.CallToolRequest, a updateTaskStateArgs) (*mcpsdk.CallToolResult, any, error) {
		r, errRes := roomOrError(mgr, a.Room)
		if errRes != nil {
			return errRes, nil, nil
		}
		if err := r.UpdateTaskState(ctx, a.TaskID, types.TaskState(a.NewState)); err != nil {
			return errorResult(err), nil, nil
		}
		return result(map[string]bool{"ok": true})
	})

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "complete_task",
		Description: "Mark a task Done with optional completion notes.",
	}, func(ctx context.Context, _ *mcpsdk.CallToolRequest, a completeArgs) (*mcpsdk.CallToolResult, any, error) {
		r, errRes := roomOrError(mgr, a.Room)
		if errRes != nil {
			return errRes, nil, nil
		}
		if err := r.Complete(ctx, a.TaskID, a.Notes); err != nil {
			return errorResult(err), nil, nil
		}
		return result(map[string]bool{"ok": true})
	})

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "cancel_task",
		Description: "Cancel a task with an attributed reason.",
	}, func(ctx context.Context, _ *mcpsdk.CallToolRequest, a cancelArgs) (*mcpsdk.CallToolResult, any, error) {
		r, errRes := roomOrError(mgr, a.Room)
		if errRes != nil {
			return errRes, nil, nil
		}
		if err := r.Cancel(ctx, a.TaskID, a.By, a.Reason); err != nil {
			return errorResult(err), nil, nil
		}
		return result(map[string]bool{"ok": true})
	})

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "acquire_lock",
		Description: "Acquire an exclusive, time-limited lock on a file path; stale locks are reclaimed automatically.",
	}, func(ctx context.Context, _ *mcpsdk.CallToolRequest, a acquireArgs) (*mcpsdk.CallToolResult, any, error) {
		r, errRes := roomOrError(mgr, a.Room)
		if errRes != nil {
			return errRes, nil, nil
		}
		ttl := time.Duration(a.TTLSeconds) * time.Second
		if ttl <= 0 {
			ttl = 30 * time.Minute
		}
		lock, err := r.Acquire(ctx, a.Path, a.Nickname, a.Reason, ttl)
		if err != nil {
			return errorResult(err), nil, nil
		}
		return result(lock)
	})

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "release_lock",
		Description: "Release a file lock; the caller must be its holder.",
	}, func(ctx context.Context, _ *mcpsdk.CallToolRequest, a releaseLockArgs) (*mcpsdk.CallToolResult, any, error) {
		r, errRes := roomOrError(mgr, a.Room)
		if errRes != nil {
			return errRes, nil, nil
		}
		if err := r.ReleaseLock(ctx, a.Path, a.Nickname); err != nil {
			return errorResult(err), nil, nil
		}
		return result(map[string]bool{"ok": true})
	})

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "list_locks",
		Description: "List every outstanding file lock.",
	}, func(ctx context.Context, _ *mcpsdk.CallToolRequest, a listLocksArgs) (*mcpsdk.CallToolResult, any, error) {
		r, errRes := roomOrError(mgr, a.Room)
		if errRes != nil {
			return errRes, nil, nil
		}
		locks, err := r.ListLocks(ctx)
		if err != nil {
			return errorResult(err), nil, nil
		}
		return result(locks)
	})

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "broadcast",
		Description: "Post a message to the room. @mentions are parsed automatically: @@type broadcasts, @nick-word-word targets an exact nickname, @type targets the first live agent of that type.",
	}, func(ctx context.Context, _ *mcpsdk.CallToolRequest, a broadcastArgs) (*mcpsdk.CallToolResult, any, error) {
		r, errRes := roomOrError(mgr, a.Room)
		if errRes != nil {
			return errRes, nil, nil
		}
		seq, err := r.Broadcast(ctx, a.From, a.Content)
		if err != nil {
			return errorResult(err), nil, nil
		}
		return result(map[string]uint64{"seq": seq})
	})

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "read_messages",
		Description: "Read messages with seq greater than since_seq, in order, up to limit.",
	}, func(ctx context.Context, _ *mcpsdk.CallToolRequest, a readArgs) (*mcpsdk.CallToolResult, any, error) {
		r, errRes := roomOrError(mgr, a.Room)
		if errRes != nil {
			return errRes, nil, nil
		}
		limit := a.Limit
		if limit <= 0 {
			limit = 50
		}
		msgs, err := r.Read(ctx, a.SinceSeq, limit)
		if err != nil {
			return errorResult(err), nil, nil
		}
		return result(msgs)
	})

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "create_worktree",
		Description: "Register a sandboxed edit area owned by an agent.",
	}, func(ctx context.Context, _ *mcpsdk.CallToolRequest, a createWorktreeArgs) (*mcpsdk.CallToolResult, any, error) {
		r, errRes := roomOrError(mgr, a.Room)
		if errRes != nil {
			return errRes, nil, nil
		}
		wt, err := r.CreateWorktree(ctx, a.Name, a.Path, a.Nickname)
		if err != nil {
			return errorResult(err), nil, nil
		}
		return result(wt)
	})

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "remove_worktree",
		Description: "Remove a worktree. Fails if any task that is not done or cancelled still references it.",
	}, func(ctx context.Context, _ *mcpsdk.CallToolRequest, a worktreeNameArgs) (*mcpsdk.CallToolResult, any, error) {
		r, errRes := roomOrError(mgr, a.Room)
		if errRes != nil {
			return errRes, nil, nil
		}
		if err := r.RemoveWorktree(ctx, a.Name); err != nil {
			return errorResult(err), nil, nil
		}
		return result(map[string]bool{"ok": true})
	})

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "list_worktrees",
		Description: "List every registered worktree.",
	}, func(ctx context.Context, _ *mcpsdk.CallToolRequest, a listWorktreesArgs) (*mcpsdk.CallToolResult, any, error) {
		r, errRes := roomOrError(mgr, a.Room)
		if errRes != nil {
			return errRes, nil, nil
		}
		wts, err := r.ListWorktrees(ctx)
		if err != nil {
			return errorResult(err), nil, nil
		}
		return result(wts)
	})

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "create_checkpoint",
		Description: "Start a new Pending checkpoint for a task step.",
	}, func(ctx context.Context, _ *mcpsdk.CallToolRequest, a createCheckpointArgs) (*mcpsdk.CallToolResult, any, error) {
		r, errRes := roomOrError(mgr, a.Room)
		if errRes != nil {
			return errRes, nil, nil
		}
		cp, err := r.CreateCheckpoint(ctx, a.TaskID, a.Step, a.Action, a.Agent)
		if err != nil {
			return errorResult(err), nil, nil
		}
		return result(cp)
	})

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "transition_checkpoint",
		Description: "Move a checkpoint to a new status per the checkpoint state machine.",
	}, func(ctx context.Context, _ *mcpsdk.CallToolRequest, a transitionCheckpointArgs) (*mcpsdk.CallToolResult, any, error) {
		r, errRes := roomOrError(mgr, a.Room)
		if errRes != nil {
			return errRes, nil, nil
		}
		if err := r.TransitionCheckpoint(ctx, a.ID, types.CheckpointStatus(a.NewStatus), a.Interrupt); err != nil {
			return errorResult(err), nil, nil
		}
		return result(map[string]bool{"ok": true})
	})

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "list_pending_user_action",
		Description: "List checkpoints stuck in Interrupted, awaiting a human decision.",
	}, func(ctx context.Context, _ *mcpsdk.CallToolRequest, a listPendingArgs) (*mcpsdk.CallToolResult, any, error) {
		r, errRes := roomOrError(mgr, a.Room)
		if errRes != nil {
			return errRes, nil, nil
		}
		cps, err := r.ListPendingUserAction(ctx)
		if err != nil {
			return errorResult(err), nil, nil
		}
		return result(cps)
	})

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "relay_decision",
		Description: "Compute should_relay_smart: whether the calling agent should hand off its task to a fresh agent now.",
	}, func(_ context.Context, _ *mcpsdk.CallToolRequest, a relayDecisionArgs) (*mcpsdk.CallToolResult, any, error) {
		usage := relay.Estimate(a.MessageCount, a.ToolCallCount, relay.Model(a.Model))
		threshold := a.Threshold
		if threshold <= 0 {
			threshold = relay.DefaultThreshold
		}
		taskCost := relay.TaskCostHint(relay.TaskKind(a.TaskKind), a.FileCount)
		decision := relay.ShouldRelay(usage, taskCost, threshold)
		return result(map[string]any{
			"decision":         decision,
			"usage":            usage,
			"task_cost":        taskCost,
			"threshold":        threshold,
		})
	})

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "build_handoff_prompt",
		Description: "Render a Markdown RELAY HANDOFF document for a fresh agent to continue from.",
	}, func(ctx context.Context, _ *mcpsdk.CallToolRequest, a buildHandoffArgs) (*mcpsdk.CallToolResult, any, error) {
		_ = ctx
		prompt := relay.BuildPrompt(relay.Payload{
			Summary:         a.Summary,
			CurrentTask:     a.CurrentTask,
			Todos:           a.Todos,
			PDCAState:       a.PDCAState,
			RelevantFiles:   a.RelevantFiles,
			SessionID:       a.SessionID,
			RelayGeneration: a.RelayGeneration,
		})
		return &mcpsdk.CallToolResult{Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: prompt}}}, prompt, nil
	})
}
