// Package mcp is the protocol surface (component L): a thin MCP tool
// dispatcher and HTTP front door over internal/room. It owns no state of
// its own beyond which Room backs which room name; every tool call is one
// call into the room package.
package mcp

import (
	"fmt"
	"sync"

	"github.com/masc-mcp/masc/internal/config"
	"github.com/masc-mcp/masc/internal/room"
	"github.com/masc-mcp/masc/internal/store"
)

// StoreOpener constructs the durable Store backing a newly created room.
// The daemon supplies one bound to its configured backend; tests supply
// one that always returns a fresh in-memory Store.
type StoreOpener func(roomName string) (store.Store, error)

// Manager lazily creates and caches one Room per room name, all sharing
// whatever Store topology the StoreOpener implements (a single store.SQL
// or store.Filesystem instance may itself multiplex many rooms by
// document-name prefix; Manager does not care which).
type Manager struct {
	mu     sync.Mutex
	rooms  map[string]*room.Room
	stores map[string]store.Store
	open   StoreOpener
	cfg    config.Config
}

// NewManager constructs a Manager whose rooms are opened with open and
// configured per cfg's heartbeat/lock thresholds.
func NewManager(cfg config.Config, open StoreOpener) *Manager {
	return &Manager{
		rooms:  make(map[string]*room.Room),
		stores: make(map[string]store.Store),
		open:   open,
		cfg:    cfg,
	}
}

// Room returns the Room named name, creating it (and its backing Store)
// on first use.
func (m *Manager) Room(name string) (*room.Room, error) {
	if name == "" {
		name = m.cfg.DefaultRoom
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rooms[name]; ok {
		return r, nil
	}
	st, err := m.open(name)
	if err != nil {
		return nil, fmt.Errorf("open store for room %q: %w", name, err)
	}
	r := room.New(name, st,
		room.WithHeartbeatThreshold(m.cfg.HeartbeatThreshold),
		room.WithLockWarnThreshold(m.cfg.LockWarnThreshold),
	)
	m.rooms[name] = r
	m.stores[name] = st
	return r, nil
}

// Names returns every room name created so far, in no particular order.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.rooms))
	for n := range m.rooms {
		names = append(names, n)
	}
	return names
}

// Close releases every room's underlying Store.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var first error
	for name, st := range m.stores {
		if err := st.Close(); err != nil && first == nil {
			first = fmt.Errorf("close room %q: %w", name, err)
		}
	}
	return first
}
