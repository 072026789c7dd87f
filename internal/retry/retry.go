package retry

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// Config contains configuration for exponential backoff session rebuilds
type Config struct {
	MaxAttempts  int           // Maximum number of rebuild attempts (default: 5)
	InitialDelay time.Duration // Initial retry delay (default: 1 second)
	MaxDelay     time.Duration // Maximum retry delay cap (default: 30 seconds)

	// Retryable reports whether a failure is worth another attempt.
	// nil retries every error.
	Retryable func(error) bool
}

// DefaultConfig returns default retry configuration
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  5,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
	}
}

// State tracks the current run of failed attempts
type State struct {
	CurrentAttempts int
	Rebuilds        atomic.Uint32 // Total rebuild attempts across runs
}

// OpenFunc attempts to bring a capture session up
type OpenFunc func(ctx context.Context) error

// RunWithRetry calls openFn until it succeeds, backing off exponentially
// between failures.
//
// Backoff schedule with the default config:
//   - Attempt 1: 1 second
//   - Attempt 2: 2 seconds
//   - Attempt 3: 4 seconds
//   - Attempt 4: 8 seconds
//   - Attempt 5: 16 seconds
//   - After 5 failures: stop (max attempts exceeded)
//
// Returns the last error when it is not retryable or attempts run out, or
// the context error when ctx is cancelled.
func RunWithRetry(ctx context.Context, openFn OpenFunc, cfg Config, state *State) error {
	for {
		select {
		case <-ctx.Done():
			slog.Info("retry: context cancelled, stopping")
			return ctx.Err()
		default:
		}

		err := openFn(ctx)
		if err == nil {
			if state.CurrentAttempts > 0 {
				slog.Info("retry: session rebuilt", "attempts", state.CurrentAttempts)
			}
			state.CurrentAttempts = 0
			return nil
		}

		if cfg.Retryable != nil && !cfg.Retryable(err) {
			slog.Error("retry: permanent failure, not retrying", "error", err)
			return err
		}

		state.CurrentAttempts++
		state.Rebuilds.Add(1)

		if state.CurrentAttempts > cfg.MaxAttempts {
			return fmt.Errorf("retry: max attempts exceeded (%d attempts): %w", cfg.MaxAttempts, err)
		}

		delay := Backoff(state.CurrentAttempts, cfg)

		slog.Warn("retry: open failed, retrying",
			"error", err,
			"attempt", state.CurrentAttempts,
			"max_attempts", cfg.MaxAttempts,
			"delay", delay,
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			slog.Info("retry: context cancelled during backoff")
			return ctx.Err()
		}
	}
}

// Backoff returns the delay before the given attempt (1-based).
//
// Formula: delay = InitialDelay * 2^(attempt-1), capped at MaxDelay
func Backoff(attempt int, cfg Config) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := cfg.InitialDelay
	for i := 1; i < attempt && delay < cfg.MaxDelay; i++ {
		delay *= 2
	}
	if delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	return delay
}
