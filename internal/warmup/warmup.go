package warmup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Poller captures at most one frame. It returns true when a new frame was
// delivered by this call.
type Poller func() (bool, error)

// WarmupStats contains statistics collected during warm-up phase
type WarmupStats struct {
	FramesReceived int           // Number of frames received during warm-up
	Duration       time.Duration // Actual warm-up duration
	FPSMean        float64       // Mean FPS across all frames
	FPSStdDev      float64       // Standard deviation of FPS
	FPSMin         float64       // Minimum instantaneous FPS
	FPSMax         float64       // Maximum instantaneous FPS
	IsStable       bool          // True if FPS is stable (stddev < 15% of mean AND jitter < 20%)
	JitterMean     float64       // Average inter-frame interval variance (seconds)
	JitterStdDev   float64       // Standard deviation of jitter (seconds)
	JitterMax      float64       // Maximum jitter observed (seconds)
}

// Collect polls for frames during duration and records their arrival times
//
// interval is the pause between polls that produced nothing; blocking
// pollers (sync capture) can pass 0. Stops early with the poller's error.
func Collect(ctx context.Context, poll Poller, duration, interval time.Duration) ([]time.Time, time.Duration, error) {
	startTime := time.Now()
	frameTimes := make([]time.Time, 0, 100) // Pre-allocate for ~30 FPS @ 3s

	warmupCtx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	for warmupCtx.Err() == nil {
		ok, err := poll()
		if err != nil {
			return frameTimes, time.Since(startTime), err
		}
		if ok {
			frameTimes = append(frameTimes, time.Now())
			slog.Debug("warmup: frame received", "frames_collected", len(frameTimes))
			continue
		}
		if interval > 0 {
			select {
			case <-warmupCtx.Done():
			case <-time.After(interval):
			}
		}
	}

	// Parent cancellation is an error; our own deadline is the normal exit
	if err := ctx.Err(); err != nil {
		return frameTimes, time.Since(startTime), err
	}
	return frameTimes, time.Since(startTime), nil
}

// WarmupCapture warms up a capture by polling frames for the specified duration
//
// This function:
//  1. Polls frames without processing them
//  2. Tracks frame arrival times to measure FPS statistics
//  3. Calculates FPS mean, standard deviation, min, max and jitter
//  4. Determines if the capture is stable (stddev < 15% of mean)
//
// Returns WarmupStats with collected statistics, or an error if:
//   - The poller fails (stream fault)
//   - Not enough frames received (< 2)
//   - Context is cancelled
//   - FPS is unstable
func WarmupCapture(ctx context.Context, poll Poller, duration, interval time.Duration) (*WarmupStats, error) {
	slog.Info("warmup: starting capture warm-up",
		"duration", duration,
		"reason", "measure real FPS and stabilize device",
	)

	frameTimes, elapsed, err := Collect(ctx, poll, duration, interval)
	if err != nil {
		return nil, fmt.Errorf("warmup: capture failed after %d frames: %w", len(frameTimes), err)
	}

	// Validate minimum frames received
	if len(frameTimes) < 2 {
		return nil, fmt.Errorf(
			"warmup: not enough frames received (got %d, need at least 2)",
			len(frameTimes),
		)
	}

	stats := CalculateFPSStats(frameTimes, elapsed)

	slog.Info("warmup: capture warm-up complete",
		"frames", stats.FramesReceived,
		"duration", stats.Duration,
		"fps_mean", fmt.Sprintf("%.2f", stats.FPSMean),
		"fps_stddev", fmt.Sprintf("%.2f", stats.FPSStdDev),
		"fps_range", fmt.Sprintf("%.1f-%.1f", stats.FPSMin, stats.FPSMax),
		"jitter_mean", fmt.Sprintf("%.3fs", stats.JitterMean),
		"stable", stats.IsStable,
	)

	// Unstable FPS usually means USB bandwidth contention or auto-exposure
	// lowering the rate in dim light
	if !stats.IsStable {
		return stats, fmt.Errorf(
			"warmup: capture FPS unstable (mean=%.2f Hz, stddev=%.2f, jitter=%.3fs, threshold: FPS<15%%, jitter<20%%)",
			stats.FPSMean,
			stats.FPSStdDev,
			stats.JitterMean,
		)
	}

	return stats, nil
}
