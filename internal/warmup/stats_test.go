package warmup

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
	"testing/quick"
	"time"
)

// webcamFrameTimes spaces n frames one period apart, each period stretched
// or shrunk by up to spread (fraction of period)
func webcamFrameTimes(rng *rand.Rand, n int, period time.Duration, spread float64) []time.Time {
	times := make([]time.Time, n)
	times[0] = time.Unix(1000, 0)
	for i := 1; i < n; i++ {
		f := 1 + spread*(2*rng.Float64()-1)
		times[i] = times[i-1].Add(time.Duration(f * float64(period)))
	}
	return times
}

func TestCalculateFPSStats_Degenerate(t *testing.T) {
	t0 := time.Unix(1000, 0)

	tests := []struct {
		name       string
		frameTimes []time.Time
		duration   time.Duration
		wantMean   float64
	}{
		{"no frames", nil, time.Second, 0},
		{"zero duration", []time.Time{t0, t0.Add(33 * time.Millisecond)}, 0, 0},
		{"negative duration", []time.Time{t0, t0.Add(33 * time.Millisecond)}, -time.Second, 0},
		{"single frame", []time.Time{t0}, time.Second, 1},
		{"simultaneous timestamps", []time.Time{t0, t0, t0}, time.Second, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats := CalculateFPSStats(tt.frameTimes, tt.duration)
			if stats.FramesReceived != len(tt.frameTimes) || stats.Duration != tt.duration {
				t.Errorf("frames=%d duration=%s, want %d and %s", stats.FramesReceived, stats.Duration, len(tt.frameTimes), tt.duration)
			}
			if math.Abs(stats.FPSMean-tt.wantMean) > 1e-9 {
				t.Errorf("FPSMean = %.3f, want %.3f", stats.FPSMean, tt.wantMean)
			}
			if stats.IsStable || stats.FPSStdDev != 0 || stats.JitterMean != 0 {
				t.Errorf("stats = %+v, want no stability data", stats)
			}
		})
	}
}

// A camera within 5% of its period is always stable
func TestCalculateFPSStats_SmallJitterStable(t *testing.T) {
	f := func(seed int64, rate uint8) bool {
		fps := 5 + float64(rate%56) // 5..60 fps
		period := time.Duration(float64(time.Second) / fps)
		const n = 60
		times := webcamFrameTimes(rand.New(rand.NewSource(seed)), n, period, 0.05)
		total := times[n-1].Sub(times[0]) + period

		stats := CalculateFPSStats(times, total)
		if !stats.IsStable {
			t.Logf("fps=%.0f mean=%.2f stddev=%.2f jitter=%.4f", fps, stats.FPSMean, stats.FPSStdDev, stats.JitterMean)
		}
		return stats.IsStable && stats.FPSMin <= stats.FPSMean*1.1 && stats.FPSMax >= stats.FPSMean*0.9
	}
	if err := quick.Check(f, &quick.Config{MaxCount: 200}); err != nil {
		t.Error(err)
	}
}

// Alternating half and one-and-a-half periods keeps the mean rate exact but
// puts every frame half a period off
func TestCalculateFPSStats_AlternatingUnstable(t *testing.T) {
	period := 33 * time.Millisecond
	const n = 40
	times := make([]time.Time, n)
	times[0] = time.Unix(1000, 0)
	for i := 1; i < n; i++ {
		step := period / 2
		if i%2 == 0 {
			step = period * 3 / 2
		}
		times[i] = times[i-1].Add(step)
	}

	stats := CalculateFPSStats(times, time.Duration(n)*period)
	if stats.IsStable {
		t.Fatalf("IsStable = true, want false (stats %+v)", stats)
	}
	if want := period.Seconds() / 2; math.Abs(stats.JitterMean-want) > 0.002 {
		t.Errorf("JitterMean = %.4fs, want about %.4fs", stats.JitterMean, want)
	}
	if stats.JitterMax < stats.JitterMean {
		t.Errorf("JitterMax %.4f below JitterMean %.4f", stats.JitterMax, stats.JitterMean)
	}
}

func TestMinMax(t *testing.T) {
	tests := []struct {
		values []float64
		lo, hi float64
	}{
		{[]float64{30}, 30, 30},
		{[]float64{29.5, 30.2, 15, 31}, 15, 31},
		{[]float64{-1, -3, -2}, -3, -1},
	}
	for _, tt := range tests {
		lo, hi := minMax(tt.values)
		if lo != tt.lo || hi != tt.hi {
			t.Errorf("minMax(%v) = %v, %v, want %v, %v", tt.values, lo, hi, tt.lo, tt.hi)
		}
	}
}

func TestDeviationAround(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		center float64
		want   float64
	}{
		{"all at center", []float64{30, 30, 30}, 30, 0},
		{"symmetric", []float64{28, 32}, 30, 2},
		// Distance from a center that is not the sample mean
		{"off-mean center", []float64{30, 30}, 27, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := deviationAround(tt.values, tt.center); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("deviationAround() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCalculateOptimalPollRate(t *testing.T) {
	tests := []struct {
		name    string
		stats   *WarmupStats
		maxRate float64
		want    float64
	}{
		{"no stats", nil, 20, 20},
		{"slow camera", &WarmupStats{FPSMean: 10}, 20, 9},
		{"fast camera", &WarmupStats{FPSMean: 60}, 20, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CalculateOptimalPollRate(tt.stats, tt.maxRate); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CalculateOptimalPollRate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCollect_PollerError(t *testing.T) {
	errFault := errors.New("device unplugged")
	calls := 0
	poll := func() (bool, error) {
		calls++
		if calls > 3 {
			return false, errFault
		}
		return true, nil
	}

	frames, _, err := Collect(context.Background(), poll, time.Second, 0)
	if !errors.Is(err, errFault) {
		t.Fatalf("Collect() error = %v, want %v", err, errFault)
	}
	if len(frames) != 3 {
		t.Errorf("collected %d frames, want 3", len(frames))
	}
}

func TestWarmupCapture_NotEnoughFrames(t *testing.T) {
	poll := func() (bool, error) { return false, nil }

	stats, err := WarmupCapture(context.Background(), poll, 30*time.Millisecond, 5*time.Millisecond)
	if err == nil || stats != nil {
		t.Errorf("WarmupCapture() = %v, %v, want nil stats and an error", stats, err)
	}
}

func TestWarmupCapture_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	poll := func() (bool, error) { return true, nil }

	if _, err := WarmupCapture(ctx, poll, time.Second, 0); !errors.Is(err, context.Canceled) {
		t.Errorf("WarmupCapture() error = %v, want context.Canceled", err)
	}
}
