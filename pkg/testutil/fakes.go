package testutil

import (
	"sync"

	"github.com/vanderheijden86/sheetview/pkg/model"
)

// SentEvent is one call recorded by RecordingTransport.
type SentEvent struct {
	Path    string
	Payload any
}

// Apply returns the payload as an apply event. ok is false for other kinds.
func (e SentEvent) Apply() (model.ApplySelectionEvent, bool) {
	ev, ok := e.Payload.(model.ApplySelectionEvent)
	return ev, ok
}

// RecordingTransport keeps every event it is asked to send.
type RecordingTransport struct {
	mu     sync.Mutex
	events []SentEvent
}

// SendEvent records the call.
func (r *RecordingTransport) SendEvent(path string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, SentEvent{Path: path, Payload: payload})
}

// Events returns a copy of the recorded calls.
func (r *RecordingTransport) Events() []SentEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]SentEvent(nil), r.events...)
}

// Len returns the number of recorded calls.
func (r *RecordingTransport) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Last returns the most recent call; ok is false when nothing was sent.
func (r *RecordingTransport) Last() (SentEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return SentEvent{}, false
	}
	return r.events[len(r.events)-1], true
}

// Applies returns every recorded apply event in order.
func (r *RecordingTransport) Applies() []model.ApplySelectionEvent {
	var out []model.ApplySelectionEvent
	for _, e := range r.Events() {
		if ev, ok := e.Apply(); ok {
			out = append(out, ev)
		}
	}
	return out
}

// Reset forgets every recorded call.
func (r *RecordingTransport) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// Guard is a form guard whose answer is set by the test.
type Guard struct {
	mu     sync.Mutex
	Dirty  bool
	checks int
}

// CheckFormData calls onDirty when Dirty is set and onClean otherwise.
func (g *Guard) CheckFormData(_, _ string, _ any, onClean, onDirty func()) {
	g.mu.Lock()
	g.checks++
	dirty := g.Dirty
	g.mu.Unlock()
	if dirty {
		if onDirty != nil {
			onDirty()
		}
		return
	}
	if onClean != nil {
		onClean()
	}
}

// Checks returns how many times the guard was consulted.
func (g *Guard) Checks() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.checks
}

// RecordingRefresher keeps every model request.
type RecordingRefresher struct {
	mu       sync.Mutex
	requests []string
}

// RequestModel records the assembly name.
func (r *RecordingRefresher) RequestModel(assembly string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, assembly)
}

// Requests returns a copy of the recorded names.
func (r *RecordingRefresher) Requests() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.requests...)
}
