// Command masc is a thin CLI over mascd's MCP surface: every subcommand
// connects over the streamable HTTP transport, calls exactly one tool,
// and prints its JSON result, mirroring the daemon/CLI split a coordinating
// agent host would otherwise implement itself.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/masc-mcp/masc/internal/errs"
)

var (
	serverAddr  string
	roomName    string
	retryPolicy errs.RetryPolicy
)

func main() {
	root := &cobra.Command{
		Use:   "masc",
		Short: "masc-mcp CLI — call room coordination tools against a running mascd",
	}
	root.PersistentFlags().StringVar(&serverAddr, "server", "http://127.0.0.1:8420/mcp", "mascd MCP endpoint")
	root.PersistentFlags().StringVar(&roomName, "room", "", "room name (defaults to the daemon's configured default room)")
	root.PersistentFlags().IntVar(&retryPolicy.MaxRetries, "max-retries", 5, "retries for recoverable tool errors (room_locked, task_already_claimed, file_locked, ...)")
	root.PersistentFlags().DurationVar(&retryPolicy.BaseDelay, "retry-base-delay", 100*time.Millisecond, "base·2^attempt backoff starting delay")
	root.PersistentFlags().DurationVar(&retryPolicy.MaxDelay, "retry-max-delay", 10*time.Second, "backoff delay cap")

	root.AddCommand(
		joinCmd(),
		listTasksCmd(),
		claimCmd(),
		addTaskCmd(),
		broadcastCmd(),
		locksCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "masc:", err)
		os.Exit(1)
	}
}

// toolErrorBody mirrors internal/mcp's toolError wire shape: enough of it
// to decide whether a failed call is worth retrying.
type toolErrorBody struct {
	Kind        string `json:"kind"`
	Message     string `json:"message"`
	Recoverable bool   `json:"recoverable"`
}

// callTool connects to the daemon, invokes name with args, and prints the
// tool's rendered JSON content. A recoverable failure (room_locked,
// task_already_claimed, file_locked, ...) is re-issued with exponential
// backoff per §7's retry layer; anything else surfaces on the first
// attempt.
func callTool(ctx context.Context, name string, args map[string]any) error {
	var lastText string
	var lastIsError bool

	err := errs.Retry(ctx, retryPolicy, func() error {
		session, err := connect(ctx)
		if err != nil {
			return errs.New(errs.KindPortalConnectionFailed, "%v", err)
		}
		defer session.Close()

		res, err := session.CallTool(ctx, &mcpsdk.CallToolParams{Name: name, Arguments: args})
		if err != nil {
			return errs.New(errs.KindPortalTimeout, "%v", err)
		}
		lastIsError = res.IsError
		lastText = ""
		for _, c := range res.Content {
			if tc, ok := c.(*mcpsdk.TextContent); ok {
				lastText = tc.Text
			}
		}
		if !res.IsError {
			return nil
		}
		var body toolErrorBody
		if jsonErr := json.Unmarshal([]byte(lastText), &body); jsonErr == nil && body.Recoverable {
			return errs.New(errs.Kind(body.Kind), "%s", body.Message)
		}
		return newToolError(name, lastText)
	})

	if lastText != "" {
		fmt.Println(lastText)
	}
	if err != nil {
		return err
	}
	if lastIsError {
		return fmt.Errorf("%s reported an error", name)
	}
	return nil
}

func connect(ctx context.Context) (*mcpsdk.ClientSession, error) {
	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "masc", Version: "dev"}, nil)
	transport := &mcpsdk.StreamableClientTransport{Endpoint: serverAddr}
	return client.Connect(ctx, transport, nil)
}

// newToolError wraps a non-recoverable tool failure as a terminal
// *errs.Error so errs.Retry surfaces it on the first attempt.
func newToolError(tool, body string) error {
	return errs.New(errs.KindInternal, "%s: %s", tool, body)
}

func withRoom(args map[string]any) map[string]any {
	if roomName != "" {
		args["room"] = roomName
	}
	return args
}

func joinCmd() *cobra.Command {
	var agentType string
	var caps []string
	cmd := &cobra.Command{
		Use:   "join",
		Short: "Join the room as a new agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			return callTool(cmd.Context(), "join", withRoom(map[string]any{
				"agent_type":   agentType,
				"capabilities": caps,
			}))
		},
	}
	cmd.Flags().StringVar(&agentType, "type", "claude", "agent type (claude, gemini, codex, ...)")
	cmd.Flags().StringSliceVar(&caps, "capability", nil, "capability string (repeatable)")
	return cmd
}

func listTasksCmd() *cobra.Command {
	var pendingOnly bool
	var assignee string
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List tasks in the room",
		RunE: func(cmd *cobra.Command, args []string) error {
			return callTool(cmd.Context(), "list_tasks", withRoom(map[string]any{
				"pending_only": pendingOnly,
				"assignee":     assignee,
			}))
		},
	}
	cmd.Flags().BoolVar(&pendingOnly, "pending", false, "restrict to todo/claimed tasks, priority-then-age ordered")
	cmd.Flags().StringVar(&assignee, "assignee", "", "filter by assignee nickname")
	return cmd
}

func claimCmd() *cobra.Command {
	var nickname string
	cmd := &cobra.Command{
		Use:   "claim <task-id>",
		Short: "Claim a task for an agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return callTool(cmd.Context(), "claim", withRoom(map[string]any{
				"task_id":  args[0],
				"nickname": nickname,
			}))
		},
	}
	cmd.Flags().StringVar(&nickname, "as", "", "claiming agent's nickname")
	_ = cmd.MarkFlagRequired("as")
	return cmd
}

func addTaskCmd() *cobra.Command {
	var title, description string
	var priority int
	var dependsOn []string
	cmd := &cobra.Command{
		Use:   "add-task",
		Short: "Add a task to the backlog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return callTool(cmd.Context(), "add_task", withRoom(map[string]any{
				"title":       title,
				"description": description,
				"priority":    priority,
				"depends_on":  dependsOn,
			}))
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "task title")
	cmd.Flags().StringVar(&description, "description", "", "task description")
	cmd.Flags().IntVar(&priority, "priority", 3, "1 (highest) through 5 (lowest)")
	cmd.Flags().StringSliceVar(&dependsOn, "depends-on", nil, "task IDs this task depends on")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func broadcastCmd() *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "say <message>",
		Short: "Broadcast a message to the room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return callTool(cmd.Context(), "broadcast", withRoom(map[string]any{
				"from":    from,
				"content": args[0],
			}))
		},
	}
	cmd.Flags().StringVar(&from, "as", "", "author nickname")
	_ = cmd.MarkFlagRequired("as")
	return cmd
}

func locksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "locks",
		Short: "List file locks held in the room",
		RunE: func(cmd *cobra.Command, args []string) error {
			return callTool(cmd.Context(), "list_locks", withRoom(map[string]any{}))
		},
	}
}
