package controller

import (
	"context"
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

// TestMain verifies this package's signal-handling goroutines never
// outlive the test that spawned them.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	return logger
}

func TestRunInvokesSubscribersOnCallerCancel(t *testing.T) {
	c := New(newTestLogger(), time.Second)

	var called int32
	c.Subscribe("one", func(ctx context.Context) error {
		atomic.AddInt32(&called, 1)
		return nil
	})
	c.Subscribe("two", func(ctx context.Context) error {
		atomic.AddInt32(&called, 1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after ctx was canceled")
	}
	assert.EqualValues(t, 2, atomic.LoadInt32(&called))
}

func TestRunSIGINTSkipsShutdownTimeout(t *testing.T) {
	c := New(newTestLogger(), 10*time.Second)

	c.Subscribe("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()

	// Give Run a moment to install its signal handler before signaling.
	time.Sleep(50 * time.Millisecond)
	assert.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGINT))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("SIGINT should shut down immediately, not wait out the configured timeout")
	}
}

func TestNewDefaultsNonPositiveTimeout(t *testing.T) {
	c := New(newTestLogger(), 0)
	assert.Equal(t, DefaultShutdownTimeout, c.timeout)
}
