package metrics

import "sync/atomic"

// Counter is a monotonically increasing event count.
type Counter struct {
	name string
	n    atomic.Int64
}

func newCounter(name string) *Counter {
	c := &Counter{name: name}
	registry.counters = append(registry.counters, c)
	return c
}

// Inc adds one.
func (c *Counter) Inc() {
	c.Add(1)
}

// Add adds delta.
func (c *Counter) Add(delta int64) {
	if !Enabled() || c == nil {
		return
	}
	c.n.Add(delta)
}

// Name returns the counter name.
func (c *Counter) Name() string { return c.name }

// Value returns the current count.
func (c *Counter) Value() int64 { return c.n.Load() }

// Reset sets the count back to zero.
func (c *Counter) Reset() { c.n.Store(0) }

// Global event counters.
var (
	EventsSent     = newCounter("events_sent")
	EventsFailed   = newCounter("events_failed")
	EventsDropped  = newCounter("events_dropped")
	ModelRefetches = newCounter("model_refetches")
	SourceReloads  = newCounter("source_reloads")
)

// AllCounters returns every registered counter.
func AllCounters() []*Counter {
	return registry.counters
}

// Snapshot is the JSON shape written by --metrics.
type Snapshot struct {
	Timings  []TimingStats    `json:"timings"`
	Counters map[string]int64 `json:"counters"`
}

// TakeSnapshot collects every metric with data.
func TakeSnapshot() Snapshot {
	s := Snapshot{Timings: AllTimingStats(), Counters: make(map[string]int64)}
	for _, c := range AllCounters() {
		if v := c.Value(); v > 0 {
			s.Counters[c.Name()] = v
		}
	}
	return s
}
