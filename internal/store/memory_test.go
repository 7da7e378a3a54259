package store_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/masc-mcp/masc/internal/store"
	"github.com/stretchr/testify/require"
)

func TestMemoryLoadAbsentDoc(t *testing.T) {
	m := store.NewMemory()
	v, err := m.Load(context.Background(), "nope")
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestMemoryAtomicUpdateRoundTrip(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	_, err := m.AtomicUpdate(ctx, "doc", func(current json.RawMessage) (json.RawMessage, error) {
		require.Nil(t, current)
		return json.RawMessage(`{"n":1}`), nil
	})
	require.NoError(t, err)

	next, err := m.AtomicUpdate(ctx, "doc", func(current json.RawMessage) (json.RawMessage, error) {
		require.JSONEq(t, `{"n":1}`, string(current))
		return json.RawMessage(`{"n":2}`), nil
	})
	require.NoError(t, err)
	require.JSONEq(t, `{"n":2}`, string(next))
}

func TestMemoryAtomicUpdateIdentitySettlesUnchanged(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	_, err := m.AtomicUpdate(ctx, "doc", func(current json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`{"n":1}`), nil
	})
	require.NoError(t, err)

	identity := func(current json.RawMessage) (json.RawMessage, error) { return current, nil }
	first, err := m.AtomicUpdate(ctx, "doc", identity)
	require.NoError(t, err)
	second, err := m.AtomicUpdate(ctx, "doc", identity)
	require.NoError(t, err)
	require.JSONEq(t, string(first), string(second))
}

func TestMemoryAtomicUpdateSerializesConcurrentWriters(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	_, err := m.AtomicUpdate(ctx, "counter", func(json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`0`), nil
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.AtomicUpdate(ctx, "counter", func(current json.RawMessage) (json.RawMessage, error) {
				var n int
				_ = json.Unmarshal(current, &n)
				return json.Marshal(n + 1)
			})
		}()
	}
	wg.Wait()

	final, err := m.Load(ctx, "counter")
	require.NoError(t, err)
	var n int
	require.NoError(t, json.Unmarshal(final, &n))
	require.Equal(t, 50, n)
}

func TestMemoryList(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	for _, name := range []string{"room.a", "room.b", "other"} {
		_, err := m.AtomicUpdate(ctx, name, func(json.RawMessage) (json.RawMessage, error) {
			return json.RawMessage(`{}`), nil
		})
		require.NoError(t, err)
	}
	names, err := m.List(ctx, "room.")
	require.NoError(t, err)
	require.Equal(t, []string{"room.a", "room.b"}, names)
}

func TestMemoryPublishSubscribe(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	sub, err := m.Subscribe(ctx, "events")
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, m.Publish(ctx, "events", json.RawMessage(`{"kind":"x"}`)))
	payload := <-sub.C()
	require.JSONEq(t, `{"kind":"x"}`, string(payload))
}
