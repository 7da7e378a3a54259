package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/masc-mcp/masc/internal/pubsub"
	"github.com/nats-io/nats.go"
)

// natsSub delivers payloads received over the embedded NATS notify
// side-channel, falling back to nothing else — a dropped NATS message is
// recovered by the poller another subscriber may be running, not by this
// one, matching the "otherwise only writes to the queue table" contract at
// the Store level rather than per-subscriber.
type natsSub struct {
	sub       *nats.Subscription
	ch        chan json.RawMessage
	overflows atomic.Uint64
}

func newNATSSub(nc *nats.Conn, channel string) (*natsSub, error) {
	n := &natsSub{ch: make(chan json.RawMessage, pubsub.DefaultQueueSize)}
	ch := n.ch
	sub, err := nc.Subscribe("masc."+channel, func(msg *nats.Msg) {
		payload := append(json.RawMessage(nil), msg.Data...)
		select {
		case ch <- payload:
		default:
			// Drop-oldest to keep this subscriber bounded.
			select {
			case <-ch:
				n.overflows.Add(1)
			default:
			}
			select {
			case ch <- payload:
			default:
			}
		}
	})
	if err != nil {
		return nil, &Error{Kind: Unavailable, Doc: channel, Err: err}
	}
	n.sub = sub
	return n, nil
}

func (n *natsSub) C() <-chan json.RawMessage { return n.ch }

func (n *natsSub) Overflows() uint64 { return n.overflows.Load() }

func (n *natsSub) Close() error {
	err := n.sub.Unsubscribe()
	close(n.ch)
	return err
}

// pollSub is the polling fallback used when no NATS connection is
// available: it periodically scans the queue table for new rows on its
// channel.
type pollSub struct {
	ch        chan json.RawMessage
	overflows atomic.Uint64
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

func newPollSub(ctx context.Context, db *sql.DB, channel string) *pollSub {
	ctx, cancel := context.WithCancel(ctx)
	p := &pollSub{
		ch:     make(chan json.RawMessage, pubsub.DefaultQueueSize),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go p.run(ctx, db, channel)
	return p
}

func (p *pollSub) run(ctx context.Context, db *sql.DB, channel string) {
	defer close(p.done)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	var lastID int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rows, err := db.QueryContext(ctx, `SELECT id, payload FROM queue WHERE channel = ? AND id > ? ORDER BY id ASC`, channel, lastID)
			if err != nil {
				continue
			}
			for rows.Next() {
				var id int64
				var payload []byte
				if err := rows.Scan(&id, &payload); err != nil {
					continue
				}
				lastID = id
				p.deliver(json.RawMessage(payload))
			}
			rows.Close()
		}
	}
}

func (p *pollSub) deliver(payload json.RawMessage) {
	select {
	case p.ch <- payload:
		return
	default:
	}
	select {
	case <-p.ch:
		p.overflows.Add(1)
	default:
	}
	select {
	case p.ch <- payload:
	default:
	}
}

func (p *pollSub) C() <-chan json.RawMessage { return p.ch }

func (p *pollSub) Overflows() uint64 { return p.overflows.Load() }

func (p *pollSub) Close() error {
	p.closeOnce.Do(func() {
		p.cancel()
		<-p.done
		close(p.ch)
	})
	return nil
}
