// Package drain holds shutdown until every queue submission has settled.
package drain

import (
	"context"
	"time"

	errspkg "github.com/drblury/sqsreporter/internal/runtime/errors"
	loggingpkg "github.com/drblury/sqsreporter/internal/runtime/logging"
)

// DefaultPollInterval matches the reporter's default drain cadence.
const DefaultPollInterval = 200 * time.Millisecond

// Counter reports sends whose outcome is still unknown.
type Counter interface {
	Outstanding() int64
}

// Options tunes the drain loop.
type Options struct {
	PollInterval time.Duration
	// Timeout gives up waiting after this long. Zero waits indefinitely.
	Timeout time.Duration
}

// Controller polls a Counter until it reaches zero.
type Controller struct {
	counter Counter
	logger  loggingpkg.ServiceLogger
	opts    Options
}

// New returns a Controller. A non-positive PollInterval falls back to
// DefaultPollInterval.
func New(counter Counter, logger loggingpkg.ServiceLogger, opts Options) (*Controller, error) {
	if counter == nil {
		return nil, errspkg.ErrCounterRequired
	}
	if logger == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return &Controller{counter: counter, logger: logger, opts: opts}, nil
}

// AwaitDrain blocks until the counter reads zero, the context ends, or the
// configured timeout elapses. It checks once before the first tick, so an
// idle counter returns without delay.
func (c *Controller) AwaitDrain(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	pending := c.counter.Outstanding()
	if pending <= 0 {
		return nil
	}

	c.logger.Info("Waiting for in-flight messages to settle", loggingpkg.LogFields{
		"outstanding":   pending,
		"poll_interval": c.opts.PollInterval.String(),
		"timeout":       c.opts.Timeout.String(),
	})

	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if c.opts.Timeout > 0 {
		timer := time.NewTimer(c.opts.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	started := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			remaining := c.counter.Outstanding()
			if remaining <= 0 {
				return nil
			}
			c.logger.Error("Gave up waiting for in-flight messages", errspkg.ErrDrainTimeout, loggingpkg.LogFields{
				"outstanding": remaining,
			})
			return errspkg.ErrDrainTimeout
		case <-ticker.C:
			remaining := c.counter.Outstanding()
			if remaining <= 0 {
				c.logger.Info("All messages settled", loggingpkg.LogFields{
					"waited": time.Since(started).String(),
				})
				return nil
			}
			c.logger.Trace("Still waiting for in-flight messages", loggingpkg.LogFields{"outstanding": remaining})
		}
	}
}

// Cleanup is the host-facing shutdown hook. The wait runs on its own
// goroutine and done is called exactly once with its result.
func (c *Controller) Cleanup(done func(error)) {
	go func() {
		err := c.AwaitDrain(context.Background())
		if done != nil {
			done(err)
		}
	}()
}
