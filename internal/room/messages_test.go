package room_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/masc-mcp/masc/internal/compress"
	"github.com/masc-mcp/masc/internal/types"
	"github.com/stretchr/testify/require"
)

func TestBroadcastAssignsDenseSequenceNumbers(t *testing.T) {
	ctx := context.Background()
	fc := &fixedClock{now: time.Now().UTC()}
	r := newTestRoom("default", fc)

	seq1, err := r.Broadcast(ctx, "alice", "hello room")
	require.NoError(t, err)
	require.EqualValues(t, 1, seq1)

	seq2, err := r.Broadcast(ctx, "bob", "hi alice")
	require.NoError(t, err)
	require.EqualValues(t, 2, seq2)

	msgs, err := r.Read(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, "alice", msgs[0].From)
	require.Equal(t, "bob", msgs[1].From)
}

func TestReadRespectsSinceSeqAndLimit(t *testing.T) {
	ctx := context.Background()
	fc := &fixedClock{now: time.Now().UTC()}
	r := newTestRoom("default", fc)

	for i := 0; i < 5; i++ {
		_, err := r.Broadcast(ctx, "alice", "msg")
		require.NoError(t, err)
	}

	msgs, err := r.Read(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.EqualValues(t, 3, msgs[0].Seq)
	require.EqualValues(t, 4, msgs[1].Seq)
}

func TestBroadcastCarriesMention(t *testing.T) {
	ctx := context.Background()
	fc := &fixedClock{now: time.Now().UTC()}
	r := newTestRoom("default", fc)

	_, err := r.Broadcast(ctx, "alice", "@@claude please review this")
	require.NoError(t, err)

	msgs, err := r.Read(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.NotNil(t, msgs[0].Mention)
	require.Equal(t, types.MentionBroadcast, msgs[0].Mention.Kind)
}

func TestBroadcastCompressesLargePayloadOnThePubsubChannel(t *testing.T) {
	ctx := context.Background()
	fc := &fixedClock{now: time.Now().UTC()}
	r := newTestRoom("default", fc)

	sub, err := r.SubscribeMessages(ctx)
	require.NoError(t, err)
	defer sub.Close()

	large := strings.Repeat("x", 1000)
	_, err = r.Broadcast(ctx, "alice", large)
	require.NoError(t, err)

	select {
	case payload := <-sub.C():
		require.True(t, compress.IsCompressed(payload))
		decoded, err := compress.DecompressAuto(payload)
		require.NoError(t, err)
		require.Contains(t, string(decoded), large)
	case <-time.After(time.Second):
		t.Fatal("expected a broadcast event on the room channel")
	}
}
