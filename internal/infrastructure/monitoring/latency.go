package monitoring

import (
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// windowSize is how many recent samples a latency window keeps.
const windowSize = 512

// LatencySummary describes the recent samples of a latency window, in
// seconds.
type LatencySummary struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Max   float64 `json:"max"`
}

// window is a fixed-size ring of latency samples.
type window struct {
	mu      sync.Mutex
	samples []float64
	next    int
	full    bool
}

func newWindow(size int) *window {
	return &window{samples: make([]float64, size)}
}

func (w *window) add(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.samples[w.next] = d.Seconds()
	w.next = (w.next + 1) % len(w.samples)
	if w.next == 0 {
		w.full = true
	}
}

func (w *window) summary() LatencySummary {
	w.mu.Lock()
	n := w.next
	if w.full {
		n = len(w.samples)
	}
	sorted := append([]float64(nil), w.samples[:n]...)
	w.mu.Unlock()

	if len(sorted) == 0 {
		return LatencySummary{}
	}
	sort.Float64s(sorted)

	return LatencySummary{
		Count: len(sorted),
		Mean:  stat.Mean(sorted, nil),
		P50:   stat.Quantile(0.50, stat.Empirical, sorted, nil),
		P95:   stat.Quantile(0.95, stat.Empirical, sorted, nil),
		P99:   stat.Quantile(0.99, stat.Empirical, sorted, nil),
		Max:   sorted[len(sorted)-1],
	}
}
