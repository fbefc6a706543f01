// Package retry provides a bounded-retry primitive for network-facing steps:
// a fixed attempt cap, a per-attempt deadline derived from the outer context,
// and transient/permanent error classification supplied by the caller.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Class is the retry classification of an error.
type Class int

const (
	Transient Class = iota // worth retrying: network-level, 5xx/408/429
	Permanent              // propagate immediately
)

// Classifier decides whether an error is worth another attempt. Keeping this
// a capability boundary decouples the primitive from any particular I/O
// library's error hierarchy.
type Classifier func(error) Class

// Config bounds the retry loop.
type Config struct {
	MaxAttempts    int           // default 3
	AttemptTimeout time.Duration // per-attempt deadline, default 30s
	BackoffStep    time.Duration // linear backoff increment, default 500ms
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = 30 * time.Second
	}
	if c.BackoffStep <= 0 {
		c.BackoffStep = 500 * time.Millisecond
	}
	return c
}

// TimeoutError is raised when every attempt failed transiently. It wraps the
// last cause.
type TimeoutError struct {
	Attempts int
	Last     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("exhausted %d attempts: %v", e.Attempts, e.Last)
}

func (e *TimeoutError) Unwrap() error {
	return e.Last
}

// Do runs op under the bounded-retry policy. Each attempt gets a fresh
// deadline derived from ctx that never outlives the attempt. When the outer
// ctx is cancelled the cancellation propagates immediately and is never
// mistaken for a retryable timeout.
func Do(ctx context.Context, cfg Config, classify Classifier, logger *slog.Logger, name string, op func(context.Context) error) error {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	var last error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, cfg.AttemptTimeout)
		err := op(attemptCtx)
		cancel()

		if err == nil {
			return nil
		}
		// outer cancellation wins over any per-attempt classification
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if classify != nil && classify(err) == Permanent {
			return err
		}
		last = err
		logger.Warn("retry.attempt_failed", "op", name, "attempt", attempt, "max", cfg.MaxAttempts, "error", err)

		if attempt < cfg.MaxAttempts {
			select {
			case <-time.After(time.Duration(attempt) * cfg.BackoffStep):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return &TimeoutError{Attempts: cfg.MaxAttempts, Last: last}
}

// DoValue is Do for operations that return a value.
func DoValue[T any](ctx context.Context, cfg Config, classify Classifier, logger *slog.Logger, name string, op func(context.Context) (T, error)) (T, error) {
	var out T
	err := Do(ctx, cfg, classify, logger, name, func(c context.Context) error {
		v, err := op(c)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// IsTimeout reports whether err is the exhaustion error.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}
