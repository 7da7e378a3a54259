package mcp

import (
	"encoding/json"
	"net/http"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/masc-mcp/masc/internal/config"
)

// version is stamped into the agent-card and the MCP server's own
// implementation metadata. Overridden at link time in release builds.
var version = "dev"

// NewServer builds the MCP server with every room operation registered as
// a tool, per §4.L: the protocol surface is a pure routing layer over
// Manager, which itself routes into internal/room.
func NewServer(mgr *Manager) *mcpsdk.Server {
	server := mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    "masc-mcp",
		Version: version,
	}, nil)
	RegisterTools(server, mgr)
	return server
}

// NewHTTPHandler builds the §6 HTTP surface: POST /mcp (the MCP JSON-RPC
// endpoint, streamable when the caller's Accept header qualifies per
// acceptsStreamable), GET /health (liveness), and GET /agent-card (an A2A
// metadata document).
func NewHTTPHandler(cfg config.Config, mgr *Manager) http.Handler {
	server := NewServer(mgr)
	mcpHandler := mcpsdk.NewStreamableHTTPHandler(func(*http.Request) *mcpsdk.Server {
		return server
	}, nil)

	mux := http.NewServeMux()
	mux.Handle("/mcp", withStreamableNegotiation(mcpHandler))
	mux.HandleFunc("/health", handleHealth)
	mux.HandleFunc("/agent-card", handleAgentCard(cfg))
	return mux
}

// withStreamableNegotiation presets a JSON Content-Type on POST responses
// whose Accept header does not carry both application/json and
// text/event-stream with a positive quality factor (see acceptsStreamable).
// It never rejects a request and does not itself pick the transport: next
// handles every request.
func withStreamableNegotiation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && !acceptsStreamable(r.Header.Get("Accept")) {
			w.Header().Set("Content-Type", "application/json")
		}
		next.ServeHTTP(w, r)
	})
}

type healthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(healthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// agentCard is the A2A metadata document §6 requires: provider, skills,
// bindings. It is a static description of the tool surface, not a live
// room snapshot.
type agentCard struct {
	Provider string       `json:"provider"`
	Name     string       `json:"name"`
	Version  string       `json:"version"`
	Skills   []agentSkill `json:"skills"`
	Bindings []binding    `json:"bindings"`
}

type agentSkill struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

type binding struct {
	Transport string `json:"transport"`
	URL       string `json:"url"`
}

func handleAgentCard(cfg config.Config) http.HandlerFunc {
	card := agentCard{
		Provider: "masc-mcp",
		Name:     "masc-mcp room coordinator",
		Version:  version,
		Skills: []agentSkill{
			{ID: "join", Description: "Join a room as a new agent."},
			{ID: "claim", Description: "Claim a task from the shared backlog."},
			{ID: "broadcast", Description: "Send a message to the room, optionally @-mentioning a recipient."},
			{ID: "acquire_lock", Description: "Take an exclusive lock on a file path."},
			{ID: "relay_decision", Description: "Decide whether the calling agent should hand off its task."},
		},
		Bindings: []binding{
			{Transport: "mcp-streamable-http", URL: cfg.Addr + "/mcp"},
		},
	}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(card)
	}
}
