package room

import (
	"context"
	"encoding/json"

	"github.com/masc-mcp/masc/internal/compress"
	"github.com/masc-mcp/masc/internal/errs"
	"github.com/masc-mcp/masc/internal/types"
)

// MessageWindow bounds how many recent messages the messages document
// retains in memory; older entries are dropped once exceeded.
const MessageWindow = 2000

type messagesDoc struct {
	Messages []*types.Message `json:"messages"`
	NextSeq  uint64           `json:"next_seq"`
}

func decodeMessages(raw json.RawMessage) (*messagesDoc, error) {
	doc := &messagesDoc{NextSeq: 1}
	if len(raw) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, errs.New(errs.KindStorageCorrupt, "decoding messages document: %v", err)
	}
	if doc.NextSeq == 0 {
		doc.NextSeq = 1
	}
	return doc, nil
}

// compressThreshold is the payload size above which broadcast bodies are
// compressed with the room's standard envelope before publication.
const compressThreshold = 256

// Broadcast appends content as a new message from nickname, assigning it
// the next dense sequence number, and publishes the envelope to the room's
// pub/sub channel.
func (r *Room) Broadcast(ctx context.Context, from, content string) (uint64, error) {
	now := r.clock.Now()
	mention := types.ParseMention(content)
	var seq uint64
	_, err := r.store.AtomicUpdate(ctx, docMessages, func(raw json.RawMessage) (json.RawMessage, error) {
		doc, err := decodeMessages(raw)
		if err != nil {
			return nil, err
		}
		seq = doc.NextSeq
		msg := &types.Message{
			Seq:       seq,
			From:      from,
			Content:   content,
			Timestamp: now,
		}
		if mention.Kind != types.MentionNone {
			m := mention
			msg.Mention = &m
		}
		doc.Messages = append(doc.Messages, msg)
		if len(doc.Messages) > MessageWindow {
			doc.Messages = doc.Messages[len(doc.Messages)-MessageWindow:]
		}
		doc.NextSeq = seq + 1
		return json.Marshal(doc)
	})
	if err != nil {
		return 0, asError(err)
	}

	payload, err := json.Marshal(struct {
		Seq     uint64        `json:"seq"`
		From    string        `json:"from"`
		Content string        `json:"content"`
		Mention *types.Mention `json:"mention,omitempty"`
	}{Seq: seq, From: from, Content: content, Mention: mentionOrNil(mention)})
	if err != nil {
		return seq, asError(err)
	}
	if len(payload) > compressThreshold {
		payload = compress.Compress(payload)
	}
	if err := r.store.Publish(ctx, r.channel()+".messages", payload); err != nil {
		r.log.Printf("room %s: publish broadcast seq %d failed: %v", r.Name, seq, err)
	}
	return seq, nil
}

func mentionOrNil(m types.Mention) *types.Mention {
	if m.Kind == types.MentionNone {
		return nil
	}
	return &m
}

// Read returns up to limit messages with seq > sinceSeq, in sequence
// order.
func (r *Room) Read(ctx context.Context, sinceSeq uint64, limit int) ([]*types.Message, error) {
	raw, err := r.store.Load(ctx, docMessages)
	if err != nil {
		return nil, asError(err)
	}
	doc, err := decodeMessages(raw)
	if err != nil {
		return nil, asError(err)
	}
	var out []*types.Message
	for _, m := range doc.Messages {
		if m.Seq <= sinceSeq {
			continue
		}
		out = append(out, m)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
