package telemetry

import (
	"math"
	"testing"
	"testing/quick"
)

// TestLatencyWindow_Properties checks the invariants of the ring buffer
func TestLatencyWindow_Properties(t *testing.T) {
	// Property 1: Count never exceeds the window size
	t.Run("Property_1_BoundedGrowth", func(t *testing.T) {
		var w LatencyWindow
		for i := 0; i < 3*latencyWindowSize; i++ {
			w.AddSample(float64(i))
			if w.Count > latencyWindowSize {
				t.Fatalf("Count %d exceeds window size %d", w.Count, latencyWindowSize)
			}
		}
		if w.Count != latencyWindowSize {
			t.Errorf("Expected full window, got Count=%d", w.Count)
		}
		t.Logf("✅ %d samples → Count=%d", 3*latencyWindowSize, w.Count)
	})

	// Property 2: the oldest samples are overwritten first
	t.Run("Property_2_OldestEvicted", func(t *testing.T) {
		var w LatencyWindow
		for i := 0; i < latencyWindowSize+10; i++ {
			w.AddSample(float64(i))
		}
		_, _, max := w.GetStats()
		if max != float64(latencyWindowSize+9) {
			t.Errorf("Expected max=%d, got %.0f", latencyWindowSize+9, max)
		}
		for _, s := range w.Samples {
			if s < 10 {
				t.Fatalf("Sample %.0f should have been evicted", s)
			}
		}
	})

	// Property 3: mean ≤ p95 ≤ max for any non-empty input
	t.Run("Property_3_Ordering", func(t *testing.T) {
		f := func(samples []uint16) bool {
			if len(samples) == 0 {
				return true
			}
			var w LatencyWindow
			for _, s := range samples {
				w.AddSample(float64(s))
			}
			mean, p95, max := w.GetStats()
			return p95 <= max && mean <= max && !math.IsNaN(mean)
		}
		if err := quick.Check(f, nil); err != nil {
			t.Error(err)
		}
	})
}

// TestLatencyWindow_P95Calculation verifies nearest-rank percentiles
func TestLatencyWindow_P95Calculation(t *testing.T) {
	testCases := []struct {
		name     string
		samples  []float64
		wantMean float64
		wantP95  float64
		wantMax  float64
	}{
		{
			name:     "single sample",
			samples:  []float64{7},
			wantMean: 7, wantP95: 7, wantMax: 7,
		},
		{
			name:     "uniform",
			samples:  []float64{5, 5, 5, 5},
			wantMean: 5, wantP95: 5, wantMax: 5,
		},
		{
			name:     "1..20",
			samples:  seq(1, 20),
			wantMean: 10.5, wantP95: 19, wantMax: 20,
		},
		{
			name:     "1..100",
			samples:  seq(1, 100),
			wantMean: 50.5, wantP95: 95, wantMax: 100,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var w LatencyWindow
			for _, s := range tc.samples {
				w.AddSample(s)
			}
			mean, p95, max := w.GetStats()
			if math.Abs(mean-tc.wantMean) > 1e-9 || p95 != tc.wantP95 || max != tc.wantMax {
				t.Errorf("got mean=%.2f p95=%.2f max=%.2f, want %.2f/%.2f/%.2f",
					mean, p95, max, tc.wantMean, tc.wantP95, tc.wantMax)
			}
		})
	}
}

// TestLatencyWindow_EdgeCases covers the empty and reset windows
func TestLatencyWindow_EdgeCases(t *testing.T) {
	var w LatencyWindow
	if mean, p95, max := w.GetStats(); mean != 0 || p95 != 0 || max != 0 {
		t.Errorf("Empty window should report zeros, got %.2f/%.2f/%.2f", mean, p95, max)
	}

	w.AddSample(3)
	w.Reset()
	if w.Count != 0 || w.Index != 0 {
		t.Errorf("Reset left Count=%d Index=%d", w.Count, w.Index)
	}
}

func seq(from, to int) []float64 {
	out := make([]float64, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, float64(i))
	}
	return out
}
