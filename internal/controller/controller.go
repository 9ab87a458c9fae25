// Package controller renders the supervisor actor that starts and stops
// the agent as a whole: subscribers register a shutdown hook, and the
// controller runs them all, with a timeout, once SIGINT, SIGQUIT, or
// SIGTERM arrives. It is the idiomatic-Go shape of an actor that had no
// OS thread of its own to block: subscribe/notify over channels instead
// of actor mailboxes, context.Context instead of a timeout message field.
package controller

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultShutdownTimeout bounds how long SIGTERM gives subscribers to wind
// down before the process exits regardless of what they're doing.
const DefaultShutdownTimeout = 30 * time.Second

// ShutdownFunc is what a subscriber runs when asked to stop. It should
// respect ctx's deadline and return promptly once work is flushed; the
// controller does not kill it after the deadline, it only stops waiting.
type ShutdownFunc func(ctx context.Context) error

type subscriber struct {
	name string
	fn   ShutdownFunc
}

// Controller coordinates graceful shutdown across every long-running
// component of the agent (the HTTP server, the upstream dispatcher, the
// config hot-reload watcher, ...). Construct with New; it is safe for
// concurrent Subscribe calls but Run must only be called once.
type Controller struct {
	logger  *logrus.Logger
	timeout time.Duration

	mu          sync.Mutex
	subscribers []subscriber
}

// New builds a Controller with the given graceful-shutdown timeout for
// SIGTERM. SIGINT and SIGQUIT always request an immediate shutdown, same
// as the actor this is adapted from.
func New(logger *logrus.Logger, timeout time.Duration) *Controller {
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	return &Controller{logger: logger, timeout: timeout}
}

// Subscribe registers fn to run when the controller shuts down. name is
// used only for logging.
func (c *Controller) Subscribe(name string, fn ShutdownFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, subscriber{name: name, fn: fn})
}

// Run blocks until a shutdown signal arrives (or ctx is canceled by the
// caller), then runs every subscriber's ShutdownFunc concurrently and
// waits for them, bounded by the applicable timeout: none for SIGINT and
// SIGQUIT (subscribers get ctx already past its deadline, an immediate,
// best-effort stop), and the configured timeout for SIGTERM.
func (c *Controller) Run(ctx context.Context) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var timeout time.Duration
	select {
	case sig := <-sigChan:
		switch sig {
		case syscall.SIGINT:
			c.logger.Info("SIGINT received, shutting down")
			timeout = 0
		case syscall.SIGQUIT:
			c.logger.Info("SIGQUIT received, shutting down")
			timeout = 0
		case syscall.SIGTERM:
			c.logger.WithField("timeout", c.timeout).Info("SIGTERM received, shutting down gracefully")
			timeout = c.timeout
		}
	case <-ctx.Done():
		c.logger.Info("shutdown requested by caller")
		timeout = c.timeout
	}

	c.shutdown(timeout)
	return nil
}

func (c *Controller) shutdown(timeout time.Duration) {
	c.mu.Lock()
	subs := append([]subscriber(nil), c.subscribers...)
	c.mu.Unlock()

	shutdownCtx := context.Background()
	var cancel context.CancelFunc
	if timeout > 0 {
		shutdownCtx, cancel = context.WithTimeout(shutdownCtx, timeout)
		defer cancel()
	} else {
		var immCancel context.CancelFunc
		shutdownCtx, immCancel = context.WithCancel(shutdownCtx)
		immCancel()
	}

	var wg sync.WaitGroup
	for _, s := range subs {
		wg.Add(1)
		go func(s subscriber) {
			defer wg.Done()
			if err := s.fn(shutdownCtx); err != nil {
				c.logger.WithError(err).WithField("subscriber", s.name).Warn("shutdown hook returned an error")
			}
		}(s)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("shutdown complete")
	case <-time.After(timeout + 100*time.Millisecond):
		c.logger.Warn("shutdown timed out, exiting anyway")
	}
}
