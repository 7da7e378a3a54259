package sctp

import (
	"context"
	"net"
	"sync/atomic"
	"time"
)

// Receiver reads framed data datagrams off a connected UDP socket and
// emits cumulative ACKs, per-packet or batched depending on Mode.
type Receiver struct {
	conn net.Conn
	cfg  Config

	received  atomic.Uint64
	lastTSN   atomic.Uint32
	sinceAck  int
}

// NewReceiver wraps a connected UDP socket for inbound framed receives.
func NewReceiver(conn net.Conn, cfg Config) *Receiver {
	return &Receiver{conn: conn, cfg: cfg.withDefaults()}
}

// Run reads data datagrams until ctx is cancelled or the socket errors,
// delivering each body on out and acking per Mode. The socket is closed
// unconditionally on return.
func (r *Receiver) Run(ctx context.Context, out chan<- []byte) (Stats, error) {
	defer r.conn.Close()

	buf := make([]byte, TSNSize+65536)
	for {
		select {
		case <-ctx.Done():
			return r.stats(), nil
		default:
		}
		_ = r.conn.SetReadDeadline(time.Now().Add(time.Duration(DefaultAckPollInterval)))
		n, err := r.conn.Read(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return r.stats(), nil
			}
			return r.stats(), err
		}
		tsn, body, derr := DecodeData(buf[:n])
		if derr != nil {
			continue
		}
		r.received.Add(1)
		r.lastTSN.Store(tsn)
		if out != nil {
			delivered := append([]byte(nil), body...)
			select {
			case out <- delivered:
			case <-ctx.Done():
				return r.stats(), nil
			}
		}
		r.sinceAck++
		if r.cfg.Mode == PerPacket || r.sinceAck >= r.cfg.AckBatchSize {
			if err := r.sendAck(tsn); err != nil {
				return r.stats(), err
			}
			r.sinceAck = 0
		}
	}
}

func (r *Receiver) sendAck(tsn uint32) error {
	_, err := r.conn.Write(EncodeAck(tsn))
	return err
}

func (r *Receiver) stats() Stats {
	return Stats{Received: r.received.Load()}
}
