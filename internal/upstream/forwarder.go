package upstream

import "context"

// Forwarder dispatches one serialized event payload to the configured
// upstream. Implementations must be safe for concurrent use: the server
// calls Send from every in-flight request's goroutine.
type Forwarder interface {
	Send(ctx context.Context, projectID string, payload []byte) error
	Close() error
}

// DefaultMaxConcurrentSends bounds how many Send calls any Bounded
// forwarder admits to the underlying transport at once.
const DefaultMaxConcurrentSends = 64

// Bounded wraps a Forwarder with a fixed-size semaphore instead of an
// unbounded goroutine-per-request fan-out: once maxConcurrent Sends are
// in flight, callers (the ingest server's request goroutines) block in
// Send until a slot frees up, applying the stalled upstream's
// backpressure onto the HTTP server.
type Bounded struct {
	inner Forwarder
	sem   chan struct{}
}

// NewBounded wraps inner with a semaphore sized maxConcurrent (falling
// back to DefaultMaxConcurrentSends for a non-positive value).
func NewBounded(inner Forwarder, maxConcurrent int) *Bounded {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentSends
	}
	return &Bounded{inner: inner, sem: make(chan struct{}, maxConcurrent)}
}

// Send acquires a slot, forwards to inner, then releases it. Respects
// ctx cancellation while waiting for a slot, same as while waiting on the
// network call itself.
func (b *Bounded) Send(ctx context.Context, projectID string, payload []byte) error {
	select {
	case b.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-b.sem }()
	return b.inner.Send(ctx, projectID, payload)
}

// Close closes the wrapped forwarder.
func (b *Bounded) Close() error {
	return b.inner.Close()
}
