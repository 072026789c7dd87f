package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBackoff(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1 * time.Second},
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{5, 16 * time.Second},
		{6, 30 * time.Second},
		{100, 30 * time.Second},
	}

	for _, tt := range tests {
		if got := Backoff(tt.attempt, cfg); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func fastConfig(max int) Config {
	return Config{MaxAttempts: max, InitialDelay: time.Millisecond, MaxDelay: 4 * time.Millisecond}
}

func TestRunWithRetry_SucceedsAfterFailures(t *testing.T) {
	var state State
	calls := 0
	err := RunWithRetry(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("device busy")
		}
		return nil
	}, fastConfig(5), &state)

	if err != nil {
		t.Fatalf("RunWithRetry() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if state.CurrentAttempts != 0 {
		t.Errorf("CurrentAttempts = %d, want reset to 0", state.CurrentAttempts)
	}
	if n := state.Rebuilds.Load(); n != 2 {
		t.Errorf("Rebuilds = %d, want 2", n)
	}
}

func TestRunWithRetry_MaxAttempts(t *testing.T) {
	var state State
	busy := errors.New("device busy")
	calls := 0
	err := RunWithRetry(context.Background(), func(ctx context.Context) error {
		calls++
		return busy
	}, fastConfig(2), &state)

	if !errors.Is(err, busy) {
		t.Fatalf("RunWithRetry() error = %v, want wrapping %v", err, busy)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3 (initial + 2 retries)", calls)
	}
}

func TestRunWithRetry_Permanent(t *testing.T) {
	var state State
	permanent := errors.New("negotiation failed")
	cfg := fastConfig(5)
	cfg.Retryable = func(err error) bool { return !errors.Is(err, permanent) }

	calls := 0
	err := RunWithRetry(context.Background(), func(ctx context.Context) error {
		calls++
		return permanent
	}, cfg, &state)

	if !errors.Is(err, permanent) || calls != 1 {
		t.Errorf("RunWithRetry() = %v after %d calls, want permanent error after 1", err, calls)
	}
}

func TestRunWithRetry_Cancelled(t *testing.T) {
	var state State
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{MaxAttempts: 5, InitialDelay: time.Hour, MaxDelay: time.Hour}

	done := make(chan error, 1)
	go func() {
		done <- RunWithRetry(ctx, func(ctx context.Context) error { return errors.New("unplugged") }, cfg, &state)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("RunWithRetry() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("RunWithRetry() did not return after cancel")
	}
}
