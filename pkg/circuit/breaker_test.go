package circuit

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	return logger
}

func TestBreakerStartsClosed(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "t"}, testLogger())
	assert.Equal(t, Closed, b.State())
	assert.False(t, b.IsOpen())
}

func TestBreakerOpensAfterFailureThreshold(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "t", FailureThreshold: 3}, testLogger())
	fail := errors.New("boom")

	for i := 0; i < 3; i++ {
		err := b.Execute(func() error { return fail })
		assert.ErrorIs(t, err, fail)
	}

	assert.Equal(t, Open, b.State())
}

func TestBreakerRejectsWhileOpen(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "t", FailureThreshold: 1, Timeout: time.Hour}, testLogger())
	_ = b.Execute(func() error { return errors.New("boom") })
	require := assert.New(t)
	require.Equal(Open, b.State())

	called := false
	err := b.Execute(func() error { called = true; return nil })
	require.Error(err)
	require.False(called, "fn must not run while the breaker is open")
}

func TestBreakerHalfOpensAfterTimeout(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "t", FailureThreshold: 1, SuccessThreshold: 1, Timeout: 10 * time.Millisecond}, testLogger())
	_ = b.Execute(func() error { return errors.New("boom") })
	assert.Equal(t, Open, b.State())

	time.Sleep(20 * time.Millisecond)

	assert.NoError(t, b.Execute(func() error { return nil }))
	assert.Equal(t, Closed, b.State())
}

func TestBreakerReopensOnHalfOpenFailure(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "t", FailureThreshold: 1, SuccessThreshold: 2, Timeout: 10 * time.Millisecond}, testLogger())
	_ = b.Execute(func() error { return errors.New("boom") })
	time.Sleep(20 * time.Millisecond)

	err := b.Execute(func() error { return errors.New("still broken") })
	assert.Error(t, err)
	assert.Equal(t, Open, b.State())
}

func TestBreakerResetClearsState(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "t", FailureThreshold: 1, Timeout: time.Hour}, testLogger())
	_ = b.Execute(func() error { return errors.New("boom") })
	require := assert.New(t)
	require.Equal(Open, b.State())

	b.Reset()
	require.Equal(Closed, b.State())
	require.Zero(b.Stats().Failures)
}

func TestBreakerStateChangeCallback(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "t", FailureThreshold: 1, Timeout: time.Hour}, testLogger())

	var from, to State
	b.SetStateChangeCallback(func(f, t State) { from, to = f, t })

	_ = b.Execute(func() error { return errors.New("boom") })
	assert.Equal(t, Closed, from)
	assert.Equal(t, Open, to)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", Closed.String())
	assert.Equal(t, "open", Open.String())
	assert.Equal(t, "half-open", HalfOpen.String())
}
