// Package circuit implements a three-state circuit breaker (closed, open,
// half-open) for wrapping upstream calls that can fail: the HTTP and
// Kafka forwarders both wrap their send attempt in one, so a struggling
// upstream stops being hammered once it starts failing.
package circuit

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// State is one of the three circuit breaker states.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// BreakerConfig configures a Breaker.
type BreakerConfig struct {
	Name             string        `yaml:"name"`
	FailureThreshold int           `yaml:"failure_threshold"`
	SuccessThreshold int           `yaml:"success_threshold"`
	Timeout          time.Duration `yaml:"timeout"`
	HalfOpenMaxCalls int           `yaml:"half_open_max_calls"`
}

// Stats is a point-in-time snapshot of a Breaker's counters.
type Stats struct {
	State         State
	Failures      int64
	Successes     int64
	Requests      int64
	LastFailure   time.Time
	LastSuccess   time.Time
	NextRetryTime time.Time
}

// Breaker implements the circuit breaker pattern around an arbitrary
// fallible operation.
type Breaker struct {
	config BreakerConfig
	logger *logrus.Logger

	state         State
	failures      int64
	successes     int64
	requests      int64
	lastFailure   time.Time
	lastSuccess   time.Time
	nextRetryTime time.Time

	halfOpenCalls     int
	halfOpenSuccesses int
	halfOpenStartTime time.Time
	maxHalfOpen       int

	onStateChange func(from, to State)

	mu sync.RWMutex
}

// NewBreaker builds a Breaker, filling in sane defaults for any zero-value
// threshold/timeout field.
func NewBreaker(config BreakerConfig, logger *logrus.Logger) *Breaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 3
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	if config.HalfOpenMaxCalls <= 0 {
		config.HalfOpenMaxCalls = 10
	}

	return &Breaker{
		config:      config,
		logger:      logger,
		state:       Closed,
		maxHalfOpen: config.HalfOpenMaxCalls,
	}
}

// Execute runs fn under the breaker's protection: rejected outright while
// open, admitted (and rate-limited) while half-open, otherwise passed
// through. fn runs without the breaker's lock held, so concurrent calls
// execute in parallel; only the state bookkeeping before and after is
// serialized.
func (b *Breaker) Execute(fn func() error) error {
	b.mu.Lock()
	b.requests++

	if b.state == Open {
		if time.Now().Before(b.nextRetryTime) {
			b.mu.Unlock()
			return fmt.Errorf("circuit breaker %s is open", b.config.Name)
		}
		b.setState(HalfOpen)
		b.halfOpenCalls = 0
		b.halfOpenSuccesses = 0
		b.halfOpenStartTime = time.Now()
	}

	if b.state == HalfOpen {
		halfOpenTimeout := b.config.Timeout * 2
		if time.Since(b.halfOpenStartTime) > halfOpenTimeout {
			b.trip()
			b.mu.Unlock()
			return fmt.Errorf("circuit breaker %s half-open timeout", b.config.Name)
		}
		if b.halfOpenCalls >= b.maxHalfOpen {
			b.mu.Unlock()
			return fmt.Errorf("circuit breaker %s is half-open (max calls reached)", b.config.Name)
		}
		b.halfOpenCalls++
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.onExecutionFailure()
		if b.state == Closed && b.failures >= int64(b.config.FailureThreshold) {
			b.trip()
		}
		return err
	}

	b.onExecutionSuccess()
	return nil
}

func (b *Breaker) trip() {
	if b.state == Open {
		return
	}
	b.setState(Open)
	b.nextRetryTime = time.Now().Add(b.config.Timeout)
	if b.logger != nil {
		b.logger.WithFields(logrus.Fields{
			"breaker":         b.config.Name,
			"failures":        b.failures,
			"next_retry_time": b.nextRetryTime,
		}).Warn("circuit breaker opened")
	}
}

func (b *Breaker) onExecutionFailure() {
	b.failures++
	b.lastFailure = time.Now()
	if b.state == HalfOpen {
		b.trip()
	}
}

func (b *Breaker) onExecutionSuccess() {
	b.successes++
	b.lastSuccess = time.Now()

	if b.state == HalfOpen {
		b.halfOpenSuccesses++
		if b.halfOpenSuccesses >= b.config.SuccessThreshold {
			b.setState(Closed)
			b.reset()
		}
	} else if b.state == Closed && b.failures > 0 {
		b.failures--
	}
}

func (b *Breaker) reset() {
	b.failures = 0
	b.halfOpenCalls = 0
	b.halfOpenSuccesses = 0
	b.nextRetryTime = time.Time{}
}

func (b *Breaker) setState(newState State) {
	if b.state == newState {
		return
	}
	oldState := b.state
	b.state = newState
	if b.onStateChange != nil {
		b.onStateChange(oldState, newState)
	}
}

// State returns the breaker's current state.
func (b *Breaker) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// IsOpen reports whether the breaker is currently rejecting calls outright.
func (b *Breaker) IsOpen() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state == Open
}

// Reset forces the breaker back to closed, clearing its failure count.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setState(Closed)
	b.reset()
}

// Stats returns a snapshot of the breaker's counters.
func (b *Breaker) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Stats{
		State:         b.state,
		Failures:      b.failures,
		Successes:     b.successes,
		Requests:      b.requests,
		LastFailure:   b.lastFailure,
		LastSuccess:   b.lastSuccess,
		NextRetryTime: b.nextRetryTime,
	}
}

// SetStateChangeCallback registers fn to run whenever the breaker
// transitions between states.
func (b *Breaker) SetStateChangeCallback(fn func(from, to State)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onStateChange = fn
}
