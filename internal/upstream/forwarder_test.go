package upstream

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingForwarder struct {
	inFlight int32
	peak     int32
	release  chan struct{}
}

func (f *blockingForwarder) Send(ctx context.Context, projectID string, payload []byte) error {
	n := atomic.AddInt32(&f.inFlight, 1)
	for {
		p := atomic.LoadInt32(&f.peak)
		if n <= p || atomic.CompareAndSwapInt32(&f.peak, p, n) {
			break
		}
	}
	<-f.release
	atomic.AddInt32(&f.inFlight, -1)
	return nil
}

func (f *blockingForwarder) Close() error { return nil }

func TestBoundedLimitsConcurrentSends(t *testing.T) {
	inner := &blockingForwarder{release: make(chan struct{})}
	b := NewBounded(inner, 2)

	done := make(chan struct{}, 4)
	for i := 0; i < 4; i++ {
		go func() {
			_ = b.Send(context.Background(), "1", nil)
			done <- struct{}{}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 2, atomic.LoadInt32(&inner.peak), "at most maxConcurrent Sends should be in flight at once")

	close(inner.release)
	for i := 0; i < 4; i++ {
		<-done
	}
}

func TestBoundedRespectsContextCancelWhileWaiting(t *testing.T) {
	inner := &blockingForwarder{release: make(chan struct{})}
	defer close(inner.release)
	b := NewBounded(inner, 1)

	go func() { _ = b.Send(context.Background(), "1", nil) }()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := b.Send(ctx, "1", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewBoundedDefaultsNonPositive(t *testing.T) {
	b := NewBounded(&blockingForwarder{release: make(chan struct{})}, 0)
	assert.Equal(t, DefaultMaxConcurrentSends, cap(b.sem))
}
