// Package telemetry holds the decode-side statistics: a bounded latency
// window and output cadence analysis.
package telemetry

import (
	"sort"
)

// latencyWindowSize is the number of samples kept by LatencyWindow
const latencyWindowSize = 100

// LatencyWindow is a fixed-size ring buffer of latency samples (milliseconds)
//
// Not safe for concurrent use; callers guard it with their own lock.
type LatencyWindow struct {
	Samples [latencyWindowSize]float64
	Index   int // Next write position
	Count   int // Valid samples (≤ len(Samples))
}

// AddSample records one latency sample, overwriting the oldest when full
func (w *LatencyWindow) AddSample(ms float64) {
	w.Samples[w.Index] = ms
	w.Index = (w.Index + 1) % len(w.Samples)
	if w.Count < len(w.Samples) {
		w.Count++
	}
}

// GetStats returns mean, P95 and max over the valid samples.
// All zero when the window is empty.
func (w *LatencyWindow) GetStats() (mean, p95, max float64) {
	if w.Count == 0 {
		return 0, 0, 0
	}

	sorted := make([]float64, w.Count)
	copy(sorted, w.Samples[:w.Count])
	sort.Float64s(sorted)

	var sum float64
	for _, s := range sorted {
		sum += s
	}
	mean = sum / float64(w.Count)
	max = sorted[len(sorted)-1]

	// Nearest-rank percentile
	idx := (95*w.Count+99)/100 - 1
	if idx < 0 {
		idx = 0
	}
	p95 = sorted[idx]

	return mean, p95, max
}

// Reset clears the window
func (w *LatencyWindow) Reset() {
	*w = LatencyWindow{}
}
