// Package metrics provides performance instrumentation for sv.
//
// Timings cover the selection engine's hot paths (visible value
// recomputation, batch submission, model replacement) and the host around it
// (source loading, transport sends, rendering). Counters track event traffic.
// Everything lives in memory; --metrics dumps a Snapshot as JSON on exit.
//
// Collection is on by default and can be disabled with SV_METRICS=0.
//
//	func recompute() {
//	    defer metrics.Timer(metrics.VisibleRecompute)()
//	    ...
//	}
package metrics

import (
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/stat"
)

// window is how many recent samples a Timing keeps for quantiles.
const window = 512

var enabled atomic.Bool

func init() {
	enabled.Store(os.Getenv("SV_METRICS") != "0")
}

// Enabled returns whether metrics collection is enabled.
func Enabled() bool {
	return enabled.Load()
}

// SetEnabled turns collection on or off.
func SetEnabled(e bool) {
	enabled.Store(e)
}

// Timing accumulates durations of one named operation. Totals cover every
// sample; quantiles cover the most recent window.
type Timing struct {
	name string

	mu     sync.Mutex
	count  int64
	total  time.Duration
	max    time.Duration
	recent []float64 // milliseconds, ring buffer
	next   int
}

func newTiming(name string) *Timing {
	t := &Timing{name: name}
	registry.timings = append(registry.timings, t)
	return t
}

// Name returns the metric name.
func (t *Timing) Name() string { return t.name }

// Record adds one measurement.
func (t *Timing) Record(d time.Duration) {
	if !Enabled() || t == nil {
		return
	}
	if d <= 0 {
		d = time.Nanosecond
	}
	ms := float64(d) / float64(time.Millisecond)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.count++
	t.total += d
	if d > t.max {
		t.max = d
	}
	if len(t.recent) < window {
		t.recent = append(t.recent, ms)
		return
	}
	t.recent[t.next] = ms
	t.next = (t.next + 1) % window
}

// Count returns the number of recorded measurements.
func (t *Timing) Count() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// Stats summarizes the recorded measurements.
func (t *Timing) Stats() TimingStats {
	t.mu.Lock()
	count, total, max := t.count, t.total, t.max
	sorted := append([]float64(nil), t.recent...)
	t.mu.Unlock()

	s := TimingStats{
		Name:    t.name,
		Count:   count,
		TotalMs: float64(total) / float64(time.Millisecond),
		MaxMs:   float64(max) / float64(time.Millisecond),
	}
	if count == 0 {
		return s
	}
	s.AvgMs = s.TotalMs / float64(count)
	sort.Float64s(sorted)
	s.P50Ms = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	s.P95Ms = stat.Quantile(0.95, stat.Empirical, sorted, nil)
	return s
}

// Reset clears all recorded measurements.
func (t *Timing) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count, t.total, t.max = 0, 0, 0
	t.recent = t.recent[:0]
	t.next = 0
}

// TimingStats is a point-in-time summary of a Timing.
type TimingStats struct {
	Name    string  `json:"name"`
	Count   int64   `json:"count"`
	TotalMs float64 `json:"total_ms"`
	AvgMs   float64 `json:"avg_ms"`
	P50Ms   float64 `json:"p50_ms"`
	P95Ms   float64 `json:"p95_ms"`
	MaxMs   float64 `json:"max_ms"`
}

// Timer returns a function that records the elapsed time when called:
//
//	defer metrics.Timer(metrics.SelectionApply)()
func Timer(t *Timing) func() {
	if !Enabled() || t == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		t.Record(time.Since(start))
	}
}

var registry struct {
	timings  []*Timing
	counters []*Counter
}

var (
	VisibleRecompute = newTiming("visible_recompute")
	SelectionApply   = newTiming("selection_apply")
	ModelReplace     = newTiming("model_replace")
	SourceLoad       = newTiming("source_load")
	TransportSend    = newTiming("transport_send")
	UIRender         = newTiming("ui_render")
)

// AllTimings returns every registered timing in registration order.
func AllTimings() []*Timing {
	return registry.timings
}

// ResetAll resets all timings and counters.
func ResetAll() {
	for _, t := range registry.timings {
		t.Reset()
	}
	for _, c := range registry.counters {
		c.Reset()
	}
}

// AllTimingStats returns stats for timings that have data.
func AllTimingStats() []TimingStats {
	stats := make([]TimingStats, 0, len(registry.timings))
	for _, t := range registry.timings {
		if t.Count() > 0 {
			stats = append(stats, t.Stats())
		}
	}
	return stats
}
