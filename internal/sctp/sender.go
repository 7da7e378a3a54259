package sctp

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Config tunes a Sender/Receiver pair. Zero-value fields fall back to the
// package defaults.
type Config struct {
	MSS          int
	Cwnd         int
	BurstLimit   int
	AckBatchSize int
	Mode         Mode
}

func (c Config) withDefaults() Config {
	if c.MSS <= 0 {
		c.MSS = DefaultMSS
	}
	if c.Cwnd <= 0 {
		c.Cwnd = DefaultCWnd
	}
	if c.BurstLimit <= 0 {
		c.BurstLimit = DefaultBurstLimit
	}
	if c.AckBatchSize <= 0 {
		c.AckBatchSize = DefaultAckBatchSize
	}
	return c
}

// Stats summarizes a completed send or receive run: sent never exceeds
// acked·AckBatchSize + AckBatchSize.
type Stats struct {
	Sent     uint64
	Received uint64
	Acked    uint64
}

// Sender pushes framed payloads over a connected UDP socket, respecting a
// congestion window and draining cumulative ACKs.
//
// OnTimeout is an unset extension point for an implementer to add SACK
// or fast-retransmit without changing the rest of the control loop. Nil
// means no retransmission is attempted.
type Sender struct {
	conn   net.Conn
	cfg    Config
	window *Window
	limiter *rate.Limiter

	nextTSN uint32
	sent    atomic.Uint64
	acked   atomic.Uint64

	OnTimeout func(tsn uint32)
}

// NewSender wraps a connected UDP socket (net.DialUDP) for outbound
// framed sends.
func NewSender(conn net.Conn, cfg Config) *Sender {
	cfg = cfg.withDefaults()
	return &Sender{
		conn:    conn,
		cfg:     cfg,
		window:  NewWindow(cfg.Cwnd),
		limiter: rate.NewLimiter(rate.Inf, cfg.BurstLimit),
	}
}

// Run sends every payload from payloads in order, then drains outstanding
// ACKs for up to DefaultDrainTimeoutNanos before returning. It stops early
// if ctx is cancelled; the stop flag terminates both the send loop and the
// ACK-drain loop on their next poll, and the socket is closed unconditionally.
func (s *Sender) Run(ctx context.Context, payloads <-chan []byte) (Stats, error) {
	defer s.conn.Close()

	ackCh := make(chan uint32, s.cfg.BurstLimit*2)
	ackErrCh := make(chan error, 1)
	go s.readAcks(ctx, ackCh, ackErrCh)

	releasePerAck := s.cfg.MSS
	if s.cfg.Mode == Batched {
		releasePerAck = s.cfg.MSS * s.cfg.AckBatchSize
	}

sendLoop:
	for {
		select {
		case <-ctx.Done():
			break sendLoop
		case payload, ok := <-payloads:
			if !ok {
				break sendLoop
			}
			if err := s.sendOne(ctx, payload, ackCh, releasePerAck); err != nil {
				return s.stats(), err
			}
		case tsn := <-ackCh:
			s.onAck(tsn, releasePerAck)
		}
	}

	s.drainAcks(ackCh, releasePerAck, time.Duration(DefaultDrainTimeoutNanos))
	return s.stats(), nil
}

// sendOne waits for congestion-window room (draining ACKs, or waiting up to
// 1 ms at a time while the window is full), writes the framed datagram, and
// advances the TSN. The limiter is built with rate.Inf, so it never delays
// a send: bursts are bounded by the congestion window only.
func (s *Sender) sendOne(ctx context.Context, body []byte, ackCh chan uint32, releasePerAck int) error {
	size := len(body)
	if size == 0 {
		size = s.cfg.MSS
	}
	for !s.window.CanSend(size) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tsn := <-ackCh:
			s.onAck(tsn, releasePerAck)
		case <-time.After(time.Duration(DefaultNearCWndWaitNanos)):
		}
	}
	if err := s.limiter.WaitN(ctx, 1); err != nil {
		return err
	}
	frame := EncodeData(s.nextTSN, body)
	if _, err := s.conn.Write(frame); err != nil {
		return err
	}
	s.window.Reserve(size)
	s.sent.Add(1)
	s.nextTSN++
	return nil
}

func (s *Sender) onAck(tsn uint32, releasePerAck int) {
	_ = tsn
	s.window.Release(releasePerAck)
	s.acked.Add(1)
}

// readAcks decodes ACK datagrams off the socket until ctx is cancelled or
// the socket errors.
func (s *Sender) readAcks(ctx context.Context, out chan<- uint32, errc chan<- error) {
	buf := make([]byte, TSNSize)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(time.Duration(DefaultAckPollInterval)))
		n, err := s.conn.Read(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			select {
			case errc <- err:
			default:
			}
			return
		}
		tsn, derr := DecodeAck(buf[:n])
		if derr != nil {
			continue
		}
		select {
		case out <- tsn:
		case <-ctx.Done():
			return
		}
	}
}

// drainAcks keeps releasing the window from any ACK that arrives within
// timeout, used at session end to flush outstanding acknowledgments.
func (s *Sender) drainAcks(ackCh chan uint32, releasePerAck int, timeout time.Duration) {
	deadline := time.After(timeout)
	for {
		select {
		case tsn := <-ackCh:
			s.onAck(tsn, releasePerAck)
		case <-deadline:
			return
		}
	}
}

func (s *Sender) stats() Stats {
	return Stats{Sent: s.sent.Load(), Acked: s.acked.Load()}
}
