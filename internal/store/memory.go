package store

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/masc-mcp/masc/internal/pubsub"
)

// Memory is an in-memory Store: a mapping guarded by a lock, with
// publish/subscribe delegated per-channel to a pubsub.Dispatcher.
type Memory struct {
	mu   sync.Mutex
	docs map[string]json.RawMessage

	chMu sync.Mutex
	chans map[string]*pubsub.Dispatcher[json.RawMessage]
}

// NewMemory constructs an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{
		docs:  make(map[string]json.RawMessage),
		chans: make(map[string]*pubsub.Dispatcher[json.RawMessage]),
	}
}

func (m *Memory) Load(_ context.Context, doc string) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.docs[doc], nil
}

func (m *Memory) AtomicUpdate(_ context.Context, doc string, f UpdateFunc) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next, err := f(m.docs[doc])
	if err != nil {
		return nil, err
	}
	m.docs[doc] = next
	return next, nil
}

func (m *Memory) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for name := range m.docs {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (m *Memory) dispatcher(channel string) *pubsub.Dispatcher[json.RawMessage] {
	m.chMu.Lock()
	defer m.chMu.Unlock()
	d, ok := m.chans[channel]
	if !ok {
		d = pubsub.New[json.RawMessage]()
		m.chans[channel] = d
	}
	return d
}

func (m *Memory) Publish(_ context.Context, channel string, payload json.RawMessage) error {
	m.dispatcher(channel).Publish(payload)
	return nil
}

func (m *Memory) Subscribe(_ context.Context, channel string) (Subscription, error) {
	return &memSubscription{sub: m.dispatcher(channel).Subscribe()}, nil
}

func (m *Memory) Close() error { return nil }

// memSubscription adapts a pubsub.Subscription to the Store Subscription
// interface, whose Close returns an error.
type memSubscription struct {
	sub *pubsub.Subscription[json.RawMessage]
}

func (s *memSubscription) C() <-chan json.RawMessage { return s.sub.C() }
func (s *memSubscription) Overflows() uint64         { return s.sub.Overflows() }
func (s *memSubscription) Close() error              { s.sub.Close(); return nil }
