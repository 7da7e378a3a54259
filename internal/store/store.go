// Package store defines the pluggable durable-state contract shared by the
// in-memory, filesystem, and SQL backends, and the bounded pub/sub fan-out
// every backend must offer.
package store

import (
	"context"
	"encoding/json"
)

// UpdateFunc recomputes a document's invariants. It must be pure: given the
// same current value it always produces the same next value or error.
// Absent documents are passed as a nil json.RawMessage.
type UpdateFunc func(current json.RawMessage) (json.RawMessage, error)

// ErrorKind classifies Store-level failures.
type ErrorKind string

const (
	Unavailable ErrorKind = "unavailable"
	Conflict    ErrorKind = "conflict"
	Corrupt     ErrorKind = "corrupt"
)

// Error is the error type every Store implementation returns.
type Error struct {
	Kind ErrorKind
	Doc  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Kind) + " on " + e.Doc + ": " + e.Err.Error()
	}
	return string(e.Kind) + " on " + e.Doc
}

func (e *Error) Unwrap() error { return e.Err }

// Store is the durable state layer shared by every room. Every mutation
// against one document is a single atomic read-modify-write; references
// between entities cross documents only by identifier.
type Store interface {
	// Load returns the current value of doc, or (nil, nil) if absent.
	Load(ctx context.Context, doc string) (json.RawMessage, error)

	// AtomicUpdate serializes concurrent updates to doc through f and
	// returns the value f produced.
	AtomicUpdate(ctx context.Context, doc string, f UpdateFunc) (json.RawMessage, error)

	// List returns the names of all documents whose name has the given
	// prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Publish sends payload to channel's subscribers.
	Publish(ctx context.Context, channel string, payload json.RawMessage) error

	// Subscribe registers a new subscriber on channel. The returned
	// Subscription must be closed when no longer needed.
	Subscribe(ctx context.Context, channel string) (Subscription, error)

	// Close releases any resources held by the backend.
	Close() error
}

// Subscription is a lazy sequence of payloads published to one channel.
type Subscription interface {
	// C delivers payloads in publication order for this subscriber.
	C() <-chan json.RawMessage

	// Overflows counts payloads dropped because the subscriber's bounded
	// queue was full (drop-oldest policy).
	Overflows() uint64

	// Close stops delivery and releases the subscription's queue.
	Close() error
}
