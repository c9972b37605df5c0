package metrics

import (
	"math"
	"sort"
	"sync"
	"time"
)

// summaryQuantiles are reported in every HistogramSummary.
var summaryQuantiles = []float64{0.5, 0.9, 0.95, 0.99}

// Histogram counts observations into fixed buckets. Bucket i holds values
// v with bounds[i-1] < v <= bounds[i]; the last slot is +Inf. Safe for
// concurrent use.
type Histogram struct {
	mu       sync.RWMutex
	bounds   []float64
	counts   []uint64
	sum      float64
	n        uint64
	min, max float64
}

// NewHistogram returns a histogram over a sorted copy of bounds.
func NewHistogram(bounds []float64) *Histogram {
	b := append([]float64(nil), bounds...)
	sort.Float64s(b)
	h := &Histogram{bounds: b, counts: make([]uint64, len(b)+1)}
	h.clear()
	return h
}

func (h *Histogram) clear() {
	clear(h.counts)
	h.sum, h.n = 0, 0
	h.min, h.max = math.Inf(1), math.Inf(-1)
}

// Observe records v.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	h.counts[sort.SearchFloat64s(h.bounds, v)]++
	h.sum += v
	h.n++
	h.min = math.Min(h.min, v)
	h.max = math.Max(h.max, v)
	h.mu.Unlock()
}

// ObserveDuration records d in fractional milliseconds, the unit of the
// latency buckets.
func (h *Histogram) ObserveDuration(d time.Duration) {
	h.Observe(float64(d) / float64(time.Millisecond))
}

// HistogramSummary is a point-in-time copy of a histogram. Buckets are
// cumulative, as in the Prometheus exposition format.
type HistogramSummary struct {
	Count       uint64              `json:"count"`
	Sum         float64             `json:"sum"`
	Min         float64             `json:"min"`
	Max         float64             `json:"max"`
	Mean        float64             `json:"mean"`
	Buckets     []BucketCount       `json:"buckets"`
	Percentiles map[float64]float64 `json:"percentiles,omitempty"`
}

// BucketCount is the number of observations less than or equal to
// UpperBound.
type BucketCount struct {
	UpperBound float64 `json:"le"`
	Count      uint64  `json:"count"`
}

// Summary snapshots the histogram.
func (h *Histogram) Summary() HistogramSummary {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s := HistogramSummary{
		Buckets:     make([]BucketCount, 0, len(h.counts)),
		Percentiles: make(map[float64]float64, len(summaryQuantiles)),
	}
	if h.n == 0 {
		return s
	}

	var cum uint64
	for i, c := range h.counts {
		cum += c
		le := math.Inf(1)
		if i < len(h.bounds) {
			le = h.bounds[i]
		}
		s.Buckets = append(s.Buckets, BucketCount{UpperBound: le, Count: cum})
	}
	for _, p := range summaryQuantiles {
		s.Percentiles[p] = h.quantile(p)
	}

	s.Count, s.Sum = h.n, h.sum
	s.Min, s.Max = h.min, h.max
	s.Mean = h.sum / float64(h.n)
	return s
}

// quantile interpolates linearly inside the bucket holding rank p*n.
// Values in the first bucket report half its bound; values in the +Inf
// bucket report the maximum seen. Callers hold mu.
func (h *Histogram) quantile(p float64) float64 {
	if h.n == 0 {
		return 0
	}
	rank := p * float64(h.n)
	var cum uint64
	for i, c := range h.counts {
		prev := cum
		cum += c
		if float64(cum) < rank {
			continue
		}
		switch {
		case i == 0:
			return h.bounds[0] / 2
		case i == len(h.bounds):
			return h.max
		}
		lo, hi := h.bounds[i-1], h.bounds[i]
		return lo + (rank-float64(prev))/float64(c)*(hi-lo)
	}
	return h.max
}

// Quantile estimates the p-quantile, 0 < p <= 1. An empty histogram
// reports 0.
func (h *Histogram) Quantile(p float64) float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.quantile(p)
}

// Reset drops every observation.
func (h *Histogram) Reset() {
	h.mu.Lock()
	h.clear()
	h.mu.Unlock()
}

// Count returns the number of observations.
func (h *Histogram) Count() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.n
}

// Mean returns the average observation, or 0 when empty.
func (h *Histogram) Mean() float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.n == 0 {
		return 0
	}
	return h.sum / float64(h.n)
}
