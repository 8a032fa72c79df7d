package telemetry

import (
	"math/rand"
	"testing"
	"time"
)

// generateFrameTimes returns n timestamps at fps with relative jitter
func generateFrameTimes(n int, fps, jitter float64, seed int64) []time.Time {
	rng := rand.New(rand.NewSource(seed))
	interval := time.Duration(float64(time.Second) / fps)

	times := make([]time.Time, n)
	t0 := time.Unix(1_700_000_000, 0)
	for i := range times {
		offset := (rng.Float64()*2 - 1) * jitter * float64(interval)
		times[i] = t0.Add(time.Duration(i)*interval + time.Duration(offset))
	}
	return times
}

// TestCadence_StabilityThresholds tests the stability criteria
//
// Property: FPS stddev < 15% of mean AND jitter < 20% of expected interval → IsStable = true
func TestCadence_StabilityThresholds(t *testing.T) {
	t.Run("perfect stream", func(t *testing.T) {
		times := generateFrameTimes(30, 30, 0, 1)
		stats := CalculateCadence(times, times[len(times)-1].Sub(times[0]))
		if !stats.IsStable {
			t.Errorf("Expected stable output (FPS stddev %.3f, jitter %.4fs)", stats.FPSStdDev, stats.JitterMean)
		}
		t.Logf("✅ perfect 30 FPS → %.2f FPS mean", stats.FPSMean)
	})

	t.Run("bursty stream", func(t *testing.T) {
		// Decoder buffering: frames come out in pairs
		t0 := time.Unix(1_700_000_000, 0)
		var times []time.Time
		for i := 0; i < 20; i++ {
			base := t0.Add(time.Duration(i) * 100 * time.Millisecond)
			times = append(times, base, base.Add(time.Millisecond))
		}
		stats := CalculateCadence(times, times[len(times)-1].Sub(times[0]))
		if stats.IsStable {
			t.Errorf("Expected unstable output for bursts, FPS range %.1f-%.1f", stats.FPSMin, stats.FPSMax)
		}
		t.Logf("✅ bursty output → IsStable=false (jitter max %.3fs)", stats.JitterMax)
	})
}

// TestCadence_EdgeCases covers degenerate inputs
func TestCadence_EdgeCases(t *testing.T) {
	testCases := []struct {
		name     string
		times    []time.Time
		duration time.Duration
		frames   int
	}{
		{"no frames", nil, time.Second, 0},
		{"zero duration", generateFrameTimes(3, 30, 0, 1), 0, 3},
		{"identical timestamps", []time.Time{time.Unix(1, 0), time.Unix(1, 0)}, time.Second, 2},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			stats := CalculateCadence(tc.times, tc.duration)
			if stats == nil {
				t.Fatal("CalculateCadence returned nil")
			}
			if stats.Frames != tc.frames {
				t.Errorf("Expected Frames=%d, got %d", tc.frames, stats.Frames)
			}
			if stats.IsStable {
				t.Error("Degenerate input must not report stable")
			}
		})
	}
}
