package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	webcamcapture "github.com/e7canasta/orion-care-sensor/modules/webcam-capture"
	"github.com/e7canasta/orion-care-sensor/modules/webcam-capture/internal/config"
)

func TestApp_RunMockCapture(t *testing.T) {
	for _, mode := range []string{"sync", "async"} {
		t.Run(mode, func(t *testing.T) {
			dir := t.TempDir()

			cfg := config.Default()
			cfg.Capture.Backend = "mock"
			cfg.Capture.Mode = mode
			cfg.Capture.Warmup = 0
			cfg.Output.Dir = dir
			cfg.Output.MaxFrames = 3
			cfg.Output.StatsInterval = 0
			if err := config.Validate(cfg); err != nil {
				t.Fatalf("Validate() error = %v", err)
			}

			a := newApp(cfg, newBackend(cfg.Capture.Backend))

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := a.run(ctx); err != nil {
				t.Fatalf("run() error = %v", err)
			}

			if n := a.frameCount.Load(); n != 3 {
				t.Errorf("frames captured = %d, want 3", n)
			}
			if s := a.session.Load(); s == nil || s.State() != webcamcapture.StateStopped {
				t.Errorf("session not stopped after run")
			}

			saved, _ := a.saver.Stats()
			entries, err := os.ReadDir(dir)
			if err != nil {
				t.Fatal(err)
			}
			if saved == 0 || int(saved) != len(entries) {
				t.Errorf("saved = %d, files = %d; want at least one and equal", saved, len(entries))
			}
			t.Logf("%s: saved %d snapshots", mode, saved)
		})
	}
}

func TestApp_NegotiationFailureNotRetried(t *testing.T) {
	cfg := config.Default()
	cfg.Capture.Backend = "mock"
	cfg.Capture.Width = 4096
	cfg.Capture.Height = 2160
	cfg.Capture.Warmup = 0
	cfg.Retry.InitialDelay = time.Millisecond
	cfg.Retry.MaxDelay = time.Millisecond

	a := newApp(cfg, newBackend(cfg.Capture.Backend))
	err := a.run(context.Background())
	if !errors.Is(err, webcamcapture.ErrNegotiationFailed) {
		t.Fatalf("run() error = %v, want ErrNegotiationFailed", err)
	}
	if n := a.retryState.Rebuilds.Load(); n != 0 {
		t.Errorf("Rebuilds = %d, want 0", n)
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{webcamcapture.ErrStreamFault, true},
		{webcamcapture.ErrDeviceUnavailable, true},
		{webcamcapture.ErrBackendConfiguration, true},
		{webcamcapture.ErrNegotiationFailed, false},
		{webcamcapture.ErrUnsupportedEncoding, false},
		{fmt.Errorf("wrapped: %w", webcamcapture.ErrInvalidParameters), false},
	}

	for _, tt := range tests {
		if got := isTransient(tt.err); got != tt.want {
			t.Errorf("isTransient(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestPollInterval(t *testing.T) {
	if got := pollInterval(25); got != 20*time.Millisecond {
		t.Errorf("pollInterval(25) = %v, want 20ms", got)
	}
	if got := pollInterval(0); got != 5*time.Millisecond {
		t.Errorf("pollInterval(0) = %v, want 5ms", got)
	}
}
