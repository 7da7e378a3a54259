// Package room implements the coordination engine: the durable,
// concurrency-safe data model for agents, tasks, messages, locks,
// worktrees, and checkpoints, and every state machine that governs their
// transitions. Every mutating operation below is exactly one
// store.AtomicUpdate against the relevant document; the function passed to
// AtomicUpdate recomputes invariants and either returns the new value or
// fails, aborting the update.
package room

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/masc-mcp/masc/internal/clock"
	"github.com/masc-mcp/masc/internal/errs"
	"github.com/masc-mcp/masc/internal/store"
)

const (
	docAgents      = "agents"
	docBacklog     = "backlog"
	docMessages    = "messages"
	docLocks       = "locks"
	docWorktrees   = "worktrees"
	docCheckpoints = "checkpoints"
)

// DefaultHeartbeatThreshold is how long an agent may go without a
// heartbeat before it is considered a zombie.
const DefaultHeartbeatThreshold = 300 * time.Second

// DefaultLockWarnThreshold is how long a lock may be held before the room
// emits a diagnostic through the pub/sub dispatcher.
const DefaultLockWarnThreshold = 30 * time.Minute

// Room is one coordination container: a named set of agents, tasks,
// messages, locks, worktrees, and checkpoints backed by a single Store.
type Room struct {
	Name  string
	store store.Store
	clock clock.Clock
	log   *log.Logger

	heartbeatThreshold time.Duration
	lockWarnThreshold  time.Duration
}

// Option configures a Room at construction time.
type Option func(*Room)

// WithClock overrides the Room's time source; tests use this to substitute
// a fixed clock.
func WithClock(c clock.Clock) Option {
	return func(r *Room) { r.clock = c }
}

// WithHeartbeatThreshold overrides DefaultHeartbeatThreshold.
func WithHeartbeatThreshold(d time.Duration) Option {
	return func(r *Room) { r.heartbeatThreshold = d }
}

// WithLockWarnThreshold overrides DefaultLockWarnThreshold.
func WithLockWarnThreshold(d time.Duration) Option {
	return func(r *Room) { r.lockWarnThreshold = d }
}

// WithLogger overrides the Room's logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Room) { r.log = l }
}

// New constructs a Room named name backed by st.
func New(name string, st store.Store, opts ...Option) *Room {
	r := &Room{
		Name:               name,
		store:              st,
		clock:              clock.System{},
		log:                log.Default(),
		heartbeatThreshold: DefaultHeartbeatThreshold,
		lockWarnThreshold:  DefaultLockWarnThreshold,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// channel is the pub/sub channel name for this room's state-change events.
func (r *Room) channel() string { return "room." + r.Name }

// diagnostics is the pub/sub channel for long-held-lock warnings, kept
// separate from state-change events (zombie reaping is a state-change
// event).
func (r *Room) diagnostics() string { return "room." + r.Name + ".diag" }

// event is the envelope published on the room's channel whenever state
// changes; it is intentionally permissive so dashboards and voice-stream
// consumers can filter by Kind without the room depending on them.
type event struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

func (r *Room) publish(ctx context.Context, kind string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		r.log.Printf("room %s: failed to marshal %s event: %v", r.Name, kind, err)
		return
	}
	payload, err := json.Marshal(event{Kind: kind, Data: raw})
	if err != nil {
		r.log.Printf("room %s: failed to marshal event envelope: %v", r.Name, kind)
		return
	}
	if err := r.store.Publish(ctx, r.channel(), payload); err != nil {
		r.log.Printf("room %s: publish %s failed: %v", r.Name, kind, err)
	}
}

func (r *Room) warn(ctx context.Context, message string) {
	payload, _ := json.Marshal(map[string]string{"message": message})
	if err := r.store.Publish(ctx, r.diagnostics(), payload); err != nil {
		r.log.Printf("room %s: diagnostic publish failed: %v", r.Name, err)
	}
}

// Subscribe returns a bounded subscription to this room's state-change
// events, backed by the same pub/sub contract as the Store's channels.
func (r *Room) Subscribe(ctx context.Context) (store.Subscription, error) {
	return r.store.Subscribe(ctx, r.channel())
}

// SubscribeDiagnostics returns a bounded subscription to long-held-lock
// warnings, independent of state-change events.
func (r *Room) SubscribeDiagnostics(ctx context.Context) (store.Subscription, error) {
	return r.store.Subscribe(ctx, r.diagnostics())
}

// SubscribeMessages returns a bounded subscription to this room's
// broadcast messages, published on a channel separate from state-change
// events so high-volume chat traffic never starves task/agent watchers.
func (r *Room) SubscribeMessages(ctx context.Context) (store.Subscription, error) {
	return r.store.Subscribe(ctx, r.channel()+".messages")
}

func asError(err error) *errs.Error {
	if e, ok := errs.As(err); ok {
		return e
	}
	return errs.New(errs.KindInternal, "%v", err)
}
