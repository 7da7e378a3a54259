package sctp

import "sync"

// Window tracks a sender's congestion window and bytes in flight. It never
// lets inFlight go negative: Release clamps at zero rather than
// underflowing, since a duplicate or late ACK must not corrupt the count
// that bounds the session's correctness.
type Window struct {
	mu       sync.Mutex
	cwnd     int
	inFlight int
}

// NewWindow constructs a Window with the given congestion window size in
// bytes (DefaultCWnd or HighThroughputCWnd).
func NewWindow(cwnd int) *Window {
	return &Window{cwnd: cwnd}
}

// CanSend reports whether size more bytes may be sent without exceeding
// cwnd.
func (w *Window) CanSend(size int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.inFlight+size <= w.cwnd
}

// Reserve accounts for size bytes now in flight. Callers must have
// confirmed CanSend first; Reserve does not itself block.
func (w *Window) Reserve(size int) {
	w.mu.Lock()
	w.inFlight += size
	w.mu.Unlock()
}

// Release frees size bytes from in-flight accounting, as ACKs arrive.
func (w *Window) Release(size int) {
	w.mu.Lock()
	w.inFlight -= size
	if w.inFlight < 0 {
		w.inFlight = 0
	}
	w.mu.Unlock()
}

// InFlight returns the current bytes-in-flight count.
func (w *Window) InFlight() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.inFlight
}

// Cwnd returns the configured congestion window size in bytes.
func (w *Window) Cwnd() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cwnd
}

// SetCwnd updates the congestion window, e.g. switching to the
// high-throughput preset.
func (w *Window) SetCwnd(cwnd int) {
	w.mu.Lock()
	w.cwnd = cwnd
	w.mu.Unlock()
}
