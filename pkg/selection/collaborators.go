package selection

import (
	"github.com/vanderheijden86/sheetview/pkg/debug"
	"github.com/vanderheijden86/sheetview/pkg/metrics"
)

// Transport delivers controller events to the server. Sends are
// fire-and-forget: the controller never waits for, or retries, a send.
type Transport interface {
	SendEvent(path string, payload any)
}

// FormGuard gates destructive applies on the state of the surrounding form.
// Exactly one of onClean and onDirty is called.
type FormGuard interface {
	CheckFormData(sessionID, assembly string, extra any, onClean, onDirty func())
}

// Refresher requests a fresh copy of an assembly's model from the server.
type Refresher interface {
	RequestModel(assembly string)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(path string, payload any)

// SendEvent calls f(path, payload).
func (f TransportFunc) SendEvent(path string, payload any) { f(path, payload) }

// RefresherFunc adapts a function to Refresher.
type RefresherFunc func(assembly string)

// RequestModel calls f(assembly).
func (f RefresherFunc) RequestModel(assembly string) { f(assembly) }

// CleanForm is a FormGuard that never reports a dirty form.
type CleanForm struct{}

// CheckFormData always calls onClean.
func (CleanForm) CheckFormData(_, _ string, _ any, onClean, _ func()) {
	if onClean != nil {
		onClean()
	}
}

// Deps are the collaborators a controller talks to. Nil members degrade to
// no-ops; a nil Guard behaves like CleanForm.
type Deps struct {
	Transport Transport
	Guard     FormGuard
	Refresher Refresher
	SessionID string
}

func (d Deps) send(path string, payload any) {
	if d.Transport == nil {
		debug.Log("selection: no transport, dropping %s", path)
		metrics.EventsDropped.Inc()
		return
	}
	d.Transport.SendEvent(path, payload)
}

func (d Deps) check(assembly string, onClean, onDirty func()) {
	guard := d.Guard
	if guard == nil {
		guard = CleanForm{}
	}
	guard.CheckFormData(d.SessionID, assembly, nil, onClean, onDirty)
}

func (d Deps) refresh(assembly string) {
	if d.Refresher == nil {
		debug.Log("selection: no refresher, cannot refetch %s", assembly)
		return
	}
	metrics.ModelRefetches.Inc()
	d.Refresher.RequestModel(assembly)
}
