package detect

import (
	"math"
	"slices"
	"time"
)

// defaultStatsWindow is the number of latency samples retained per series.
const defaultStatsWindow = 256

// Percentiles holds p50 and p95 values for a latency series.
type Percentiles struct {
	P50 time.Duration
	P95 time.Duration
}

// latencyStats keeps bounded windows of recent cycle and trigger latencies.
// It is guarded by the owning [State]'s mutex.
type latencyStats struct {
	cycle   latencyBuffer
	trigger latencyBuffer
}

func newLatencyStats(window int) latencyStats {
	if window <= 0 {
		window = defaultStatsWindow
	}
	return latencyStats{
		cycle:   newLatencyBuffer(window),
		trigger: newLatencyBuffer(window),
	}
}

func (s *latencyStats) reset() {
	s.cycle.reset()
	s.trigger.reset()
}

// latencyBuffer is a bounded ring buffer of duration samples.
type latencyBuffer struct {
	data []time.Duration
	pos  int
	full bool
}

func newLatencyBuffer(size int) latencyBuffer {
	return latencyBuffer{data: make([]time.Duration, size)}
}

func (lb *latencyBuffer) add(d time.Duration) {
	lb.data[lb.pos] = d
	lb.pos++
	if lb.pos == len(lb.data) {
		lb.pos = 0
		lb.full = true
	}
}

func (lb *latencyBuffer) reset() {
	lb.pos = 0
	lb.full = false
}

// samples returns a copy of the retained samples in no particular order.
func (lb *latencyBuffer) samples() []time.Duration {
	n := lb.pos
	if lb.full {
		n = len(lb.data)
	}
	return slices.Clone(lb.data[:n])
}

func (lb *latencyBuffer) percentiles() Percentiles {
	return summarize(lb.samples())
}

// summarize sorts samples in place and returns their p50 and p95.
func summarize(samples []time.Duration) Percentiles {
	if len(samples) == 0 {
		return Percentiles{}
	}
	slices.Sort(samples)
	return Percentiles{
		P50: percentile(samples, 0.50),
		P95: percentile(samples, 0.95),
	}
}

// percentile returns the nearest-rank value at p (0.0-1.0) of a sorted slice.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}
