package webcamcapture

import (
	"context"
	"fmt"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/webcam-capture/internal/warmup"
)

// CalculateFPSStats calculates FPS statistics from frame arrival times
//
// Thin wrapper around internal/warmup.CalculateFPSStats.
//
// Stability threshold:
//   - FPS: stddev < 15% of mean FPS
//   - Jitter: mean jitter < 20% of expected interval
//
// Example: 30 FPS mean → stable if stddev < 4.5 AND jitter < 0.007s
func CalculateFPSStats(frameTimes []time.Time, totalDuration time.Duration) *WarmupStats {
	return fromInternal(warmup.CalculateFPSStats(frameTimes, totalDuration))
}

// OptimalPollRate returns the rate (Hz) at which an async consumer should
// call DoCapture, capped at maxRate
func OptimalPollRate(stats *WarmupStats, maxRate float64) float64 {
	if stats == nil {
		return maxRate
	}
	return warmup.CalculateOptimalPollRate(&warmup.WarmupStats{FPSMean: stats.FPSMean}, maxRate)
}

// Warmup captures frames for duration to let the device settle (exposure,
// white balance) and measures the delivered frame rate.
//
// Frames land in the output buffer as usual. In async mode DoCapture is
// polled at twice the negotiated rate. Returns the collected stats together
// with an error when the rate was unstable.
func (s *Session) Warmup(ctx context.Context, duration time.Duration) (*WarmupStats, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("webcam-capture: warmup duration %s: %w", duration, ErrInvalidParameters)
	}

	var interval time.Duration
	if s.Mode() == ModeAsync {
		if fps := s.Format().FPS(); fps > 0 {
			interval = time.Duration(float64(time.Second) / (2 * fps))
		} else {
			interval = 5 * time.Millisecond
		}
	}

	stats, err := warmup.WarmupCapture(ctx, s.DoCapture, duration, interval)
	if err != nil {
		return fromInternal(stats), fmt.Errorf("webcam-capture: %w", err)
	}
	return fromInternal(stats), nil
}

func fromInternal(st *warmup.WarmupStats) *WarmupStats {
	if st == nil {
		return nil
	}
	return &WarmupStats{
		FramesReceived: st.FramesReceived,
		Duration:       st.Duration,
		FPSMean:        st.FPSMean,
		FPSStdDev:      st.FPSStdDev,
		FPSMin:         st.FPSMin,
		FPSMax:         st.FPSMax,
		IsStable:       st.IsStable,
		JitterMean:     st.JitterMean,
		JitterStdDev:   st.JitterStdDev,
		JitterMax:      st.JitterMax,
	}
}
