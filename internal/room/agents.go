package room

import (
	"context"
	"encoding/json"
	"time"

	"github.com/masc-mcp/masc/internal/clock"
	"github.com/masc-mcp/masc/internal/errs"
	"github.com/masc-mcp/masc/internal/types"
	"github.com/masc-mcp/masc/internal/validation"
)

// agentsDoc is the on-disk/in-store shape of the agents document: a map
// keyed by nickname.
type agentsDoc struct {
	Agents map[string]*types.Agent `json:"agents"`
}

func decodeAgents(raw json.RawMessage) (*agentsDoc, error) {
	doc := &agentsDoc{Agents: make(map[string]*types.Agent)}
	if len(raw) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, errs.New(errs.KindStorageCorrupt, "decoding agents document: %v", err)
	}
	if doc.Agents == nil {
		doc.Agents = make(map[string]*types.Agent)
	}
	return doc, nil
}

// reapZombiesLocked removes every agent whose last heartbeat is older than
// threshold, returning the reclaimed nicknames. Callers must run this
// inside the same AtomicUpdate pass that reads agents, so the sweep sees a
// consistent snapshot.
func reapZombiesLocked(now time.Time, threshold time.Duration, doc *agentsDoc) []string {
	var zombies []string
	for nick, a := range doc.Agents {
		if a.IsZombie(now, threshold) {
			zombies = append(zombies, nick)
			delete(doc.Agents, nick)
		}
	}
	return zombies
}

// Join admits a new agent of type agentType with the given capabilities,
// generating a unique nickname, and returns it. Joining also performs a
// zombie sweep, per the "zombies are reaped lazily" rule.
func (r *Room) Join(ctx context.Context, agentType types.AgentType, capabilities []string) (string, error) {
	now := r.clock.Now()
	var nickname string
	var zombies []string
	_, err := r.store.AtomicUpdate(ctx, docAgents, func(raw json.RawMessage) (json.RawMessage, error) {
		doc, err := decodeAgents(raw)
		if err != nil {
			return nil, err
		}
		zombies = reapZombiesLocked(now, r.heartbeatThreshold, doc)
		for _, z := range zombies {
			r.log.Printf("room %s: reaped zombie agent %s", r.Name, z)
		}

		var candidate string
		for attempt := 0; attempt < clock.MaxNicknameAttempts; attempt++ {
			candidate, err = clock.NextNickname(string(agentType))
			if err != nil {
				return nil, errs.New(errs.KindInternal, "generating nickname: %v", err)
			}
			if _, taken := doc.Agents[candidate]; !taken {
				break
			}
			candidate = ""
		}
		if candidate == "" {
			return nil, errs.New(errs.KindRoomFull, "exhausted %d nickname attempts", clock.MaxNicknameAttempts)
		}

		doc.Agents[candidate] = &types.Agent{
			Nickname:      candidate,
			Type:          agentType,
			Capabilities:  capabilities,
			JoinedAt:      now,
			LastHeartbeat: now,
			Generation:    1,
			Control:       types.AgentRunning,
		}
		nickname = candidate
		return json.Marshal(doc)
	})
	if err != nil {
		return "", asError(err)
	}
	for _, z := range zombies {
		if err := r.revertAgentWork(ctx, z); err != nil {
			r.log.Printf("room %s: failed to revert work for zombie %s: %v", r.Name, z, err)
		}
	}
	r.publish(ctx, "agent_joined", map[string]string{"nickname": nickname})
	return nickname, nil
}

// Leave removes nickname from the room. Tasks it held revert to Todo and
// its locks are released.
func (r *Room) Leave(ctx context.Context, nickname string) error {
	if err := validation.ValidateAgentID(nickname); err != nil {
		return errs.New(errs.KindAgentNotFound, "%v", err)
	}
	_, err := r.store.AtomicUpdate(ctx, docAgents, func(raw json.RawMessage) (json.RawMessage, error) {
		doc, err := decodeAgents(raw)
		if err != nil {
			return nil, err
		}
		if _, ok := doc.Agents[nickname]; !ok {
			return nil, errs.New(errs.KindAgentNotFound, "agent %q not found", nickname)
		}
		delete(doc.Agents, nickname)
		return json.Marshal(doc)
	})
	if err != nil {
		return asError(err)
	}
	if err := r.revertAgentWork(ctx, nickname); err != nil {
		return err
	}
	r.publish(ctx, "agent_left", map[string]string{"nickname": nickname})
	return nil
}

// Heartbeat refreshes nickname's last-heartbeat timestamp.
func (r *Room) Heartbeat(ctx context.Context, nickname string) error {
	now := r.clock.Now()
	_, err := r.store.AtomicUpdate(ctx, docAgents, func(raw json.RawMessage) (json.RawMessage, error) {
		doc, err := decodeAgents(raw)
		if err != nil {
			return nil, err
		}
		a, ok := doc.Agents[nickname]
		if !ok {
			return nil, errs.New(errs.KindAgentNotFound, "agent %q not found", nickname)
		}
		a.LastHeartbeat = now
		return json.Marshal(doc)
	})
	if err != nil {
		return asError(err)
	}
	return nil
}

// GetAgent returns a copy of the named agent's state.
func (r *Room) GetAgent(ctx context.Context, nickname string) (*types.Agent, error) {
	raw, err := r.store.Load(ctx, docAgents)
	if err != nil {
		return nil, asError(err)
	}
	doc, err := decodeAgents(raw)
	if err != nil {
		return nil, asError(err)
	}
	a, ok := doc.Agents[nickname]
	if !ok {
		return nil, errs.New(errs.KindAgentNotFound, "agent %q not found", nickname)
	}
	return a, nil
}

// ListAgents returns every currently-joined agent.
func (r *Room) ListAgents(ctx context.Context) ([]*types.Agent, error) {
	raw, err := r.store.Load(ctx, docAgents)
	if err != nil {
		return nil, asError(err)
	}
	doc, err := decodeAgents(raw)
	if err != nil {
		return nil, asError(err)
	}
	agents := make([]*types.Agent, 0, len(doc.Agents))
	for _, a := range doc.Agents {
		agents = append(agents, a)
	}
	return agents, nil
}

// ReapZombies performs the zombie sweep as its own idempotent operation, so
// a background ticker can invoke it directly rather than relying on it as
// a side effect of Join or claim. It returns the nicknames reclaimed.
func (r *Room) ReapZombies(ctx context.Context) ([]string, error) {
	now := r.clock.Now()
	var zombies []string
	_, err := r.store.AtomicUpdate(ctx, docAgents, func(raw json.RawMessage) (json.RawMessage, error) {
		doc, err := decodeAgents(raw)
		if err != nil {
			return nil, err
		}
		zombies = reapZombiesLocked(now, r.heartbeatThreshold, doc)
		return json.Marshal(doc)
	})
	if err != nil {
		return nil, asError(err)
	}
	for _, z := range zombies {
		r.log.Printf("room %s: reaped zombie agent %s", r.Name, z)
		if err := r.revertAgentWork(ctx, z); err != nil {
			r.log.Printf("room %s: failed to revert work for zombie %s: %v", r.Name, z, err)
		}
	}
	if len(zombies) > 0 {
		r.publish(ctx, "zombies_reaped", map[string]any{"nicknames": zombies})
	}
	return zombies, nil
}

// SetControl records nickname's Walph (work-loop) control state in the
// agents document. It only stores the value: it does not signal or wait on
// any work loop, it accepts any state after any other, and the room has no
// operation that removes an agent's control state.
func (r *Room) SetControl(ctx context.Context, nickname string, state types.AgentControlState) error {
	_, err := r.store.AtomicUpdate(ctx, docAgents, func(raw json.RawMessage) (json.RawMessage, error) {
		doc, err := decodeAgents(raw)
		if err != nil {
			return nil, err
		}
		a, ok := doc.Agents[nickname]
		if !ok {
			return nil, errs.New(errs.KindAgentNotFound, "agent %q not found", nickname)
		}
		a.Control = state
		return json.Marshal(doc)
	})
	if err != nil {
		return asError(err)
	}
	return nil
}
