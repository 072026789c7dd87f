package warmup

import (
	"math"
	"time"
)

const (
	// fpsStabilityThreshold is the maximum allowed FPS standard deviation as a fraction of mean FPS.
	// Example: 30 FPS mean → stable if stddev < 4.5 FPS
	fpsStabilityThreshold = 0.15

	// jitterStabilityThreshold is the maximum allowed mean jitter as a fraction of expected interval.
	// Example: 30 FPS (33ms interval) → stable if jitter < 6.6ms
	jitterStabilityThreshold = 0.20
)

// CalculateFPSStats calculates FPS statistics from frame arrival times
//
// This function:
//  1. Calculates mean FPS (frames / total duration)
//  2. Calculates instantaneous FPS for each frame interval
//  3. Finds min/max instantaneous FPS and their standard deviation
//  4. Calculates jitter (deviation from the expected inter-frame interval)
//  5. Determines stability (stddev < 15% of mean AND jitter < 20%)
//
// NOTE: This is the canonical implementation. The root package wraps it.
func CalculateFPSStats(frameTimes []time.Time, totalDuration time.Duration) *WarmupStats {
	n := len(frameTimes)
	stats := &WarmupStats{
		FramesReceived: n,
		Duration:       totalDuration,
	}
	if n == 0 || totalDuration <= 0 {
		return stats
	}

	stats.FPSMean = float64(n) / totalDuration.Seconds()

	intervals := make([]float64, 0, n-1)
	instantaneousFPS := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		interval := frameTimes[i].Sub(frameTimes[i-1]).Seconds()
		intervals = append(intervals, interval)
		if interval > 0 {
			instantaneousFPS = append(instantaneousFPS, 1.0/interval)
		}
	}

	// One frame or simultaneous timestamps: nothing to judge stability on
	if len(instantaneousFPS) == 0 {
		return stats
	}

	stats.FPSMin, stats.FPSMax = minMax(instantaneousFPS)
	stats.FPSStdDev = deviationAround(instantaneousFPS, stats.FPSMean)

	expectedInterval := 1.0 / stats.FPSMean
	jitters := make([]float64, len(intervals))
	for i, interval := range intervals {
		jitters[i] = math.Abs(interval - expectedInterval)
	}
	stats.JitterMean = mean(jitters)
	stats.JitterStdDev = deviationAround(jitters, stats.JitterMean)
	_, stats.JitterMax = minMax(jitters)

	fpsStable := stats.FPSStdDev < stats.FPSMean*fpsStabilityThreshold
	jitterStable := stats.JitterMean < expectedInterval*jitterStabilityThreshold
	stats.IsStable = fpsStable && jitterStable

	return stats
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// deviationAround is the root mean square distance of values from center
func deviationAround(values []float64, center float64) float64 {
	var sumSquares float64
	for _, v := range values {
		diff := v - center
		sumSquares += diff * diff
	}
	return math.Sqrt(sumSquares / float64(len(values)))
}

func minMax(values []float64) (lo, hi float64) {
	lo, hi = values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// CalculateOptimalPollRate returns how often an async consumer should poll
// DoCapture, based on warm-up stats
//
// Logic:
//   - If capture FPS >= maxRate: return maxRate
//   - If capture FPS < maxRate: return 90% of capture FPS (safety margin)
//
// Example:
//   - maxRate=60, capture FPS=30 → return 27 (90% of 30)
//   - maxRate=10, capture FPS=30 → return 10 (use max)
func CalculateOptimalPollRate(warmupStats *WarmupStats, maxRate float64) float64 {
	if warmupStats == nil {
		return maxRate
	}
	if warmupStats.FPSMean < maxRate {
		return warmupStats.FPSMean * 0.9
	}
	return maxRate
}
