package selection

import (
	"github.com/vanderheijden86/sheetview/pkg/debug"
	"github.com/vanderheijden86/sheetview/pkg/metrics"
	"github.com/vanderheijden86/sheetview/pkg/model"
)

// topology is implemented by the concrete controllers and called back from
// the shared base.
type topology interface {
	resetValues()
	setVisibleValues()
	updateSelection(values []model.SelectionState, eventSource string, toggle, toggleAll bool)
	SelectionStateUpdated(v *model.Value, state model.State, toggle, toggleAll bool)
}

// base holds the state and protocol shared by list and tree controllers:
// the visible values, the deferred queue and the sticky toggle flags.
type base struct {
	deps  Deps
	hooks topology
	opts  *model.SelectionOptions

	visible    []*model.Value
	unapplied  []model.SelectionState
	showAll    bool
	showOthers bool
	toggle     bool
	toggleAll  bool
}

func (b *base) init(deps Deps, hooks topology) {
	b.deps = deps
	b.hooks = hooks
}

// rebind drops every piece of local state after a model replacement.
// Whatever was queued against the old model is discarded.
func (b *base) rebind(opts *model.SelectionOptions) {
	defer metrics.Timer(metrics.ModelReplace)()
	if len(b.unapplied) > 0 {
		debug.Log("selection: %s replaced, dropping %d unapplied selections", opts.Name, len(b.unapplied))
	}
	b.opts = opts
	b.hooks.resetValues()
	b.unapplied = nil
	b.toggle = false
	b.toggleAll = false
	b.hooks.setVisibleValues()
}

func (b *base) bound() bool { return b.opts != nil }

// Name returns the qualified name of the bound assembly.
func (b *base) Name() string {
	if b.opts == nil {
		return ""
	}
	return b.opts.Name
}

// VisibleValues returns the values the view shows, in display order.
func (b *base) VisibleValues() []*model.Value { return b.visible }

// UnappliedSelections returns a copy of the deferred queue.
func (b *base) UnappliedSelections() []model.SelectionState {
	return model.CloneSelections(b.unapplied)
}

// ShowAll reports whether excluded values are forced visible.
func (b *base) ShowAll() bool { return b.showAll }

// ShowOthers reports whether the last filter pass hid an excluded top-level
// value, i.e. whether the view should offer a way to show them.
func (b *base) ShowOthers() bool { return b.showOthers }

// Sticky returns the sticky toggle flags of the pending batch.
func (b *base) Sticky() (toggle, toggleAll bool) { return b.toggle, b.toggleAll }

// IsAdhocFilter reports whether the assembly is an ad hoc filter.
func (b *base) IsAdhocFilter() bool {
	return b.opts != nil && b.opts.AdhocFilter
}

// filterSelectionValue decides whether v stays visible and refreshes its
// Excluded cache. Excluded values are only hidden under the specific sort.
func (b *base) filterSelectionValue(v *model.Value, level int) bool {
	if b.showAll || b.opts.SortType != model.SortSpecific {
		v.Excluded = false
		return true
	}

	v.Excluded = v.State.IsExcluded()
	selected := v.State.IsSelected()
	if v.Excluded && !selected && level == 0 {
		b.showOthers = true
	}
	return !v.Excluded || selected
}

// CellFormat resolves the format of v. The first visible row drops its top
// border so it does not double up with the title row above it.
func (b *base) CellFormat(v *model.Value) model.Format {
	if v == nil || b.opts == nil {
		return model.Format{}
	}
	f := b.opts.Formats.Lookup(v.FormatIndex, b.opts.ObjectFormat)
	if len(b.visible) > 0 && v.Label == b.visible[0].Label {
		f.Border.Top = model.BorderNone
	}
	return f
}

// Click applies the state a click on v produces.
func (b *base) Click(v *model.Value, toggle, toggleAll bool) {
	if v == nil {
		return
	}
	b.hooks.SelectionStateUpdated(v, v.State.NextClickState(toggle), toggle, toggleAll)
}

// ApplySelections submits the deferred queue as one batch and resets it.
// An empty queue is a no-op.
func (b *base) ApplySelections(eventSource string) {
	if len(b.unapplied) == 0 {
		return
	}
	defer metrics.Timer(metrics.SelectionApply)()

	values := model.CloneSelections(b.unapplied)
	toggle, toggleAll := b.toggle, b.toggleAll
	b.unapplied = nil
	b.toggle = false
	b.toggleAll = false
	b.hooks.updateSelection(values, eventSource, toggle, toggleAll)
}

// HideExcludedValues goes back to hiding excluded values.
func (b *base) HideExcludedValues() {
	if !b.bound() {
		return
	}
	b.showAll = false
	b.hooks.setVisibleValues()
}

// ShowAllValues makes excluded values visible.
func (b *base) ShowAllValues() {
	if !b.bound() {
		return
	}
	b.showAll = true
	b.hooks.setVisibleValues()
}

// submit sends or queues one change. Exclusive gestures replace the queue.
func (b *base) submit(sel model.SelectionState, exclusive, toggle, toggleAll bool) {
	switch {
	case b.opts.SubmitOnChange:
		b.hooks.updateSelection([]model.SelectionState{sel}, "", toggle, toggleAll)
	case exclusive:
		b.unapplied = []model.SelectionState{sel}
	default:
		b.unapplied = append(b.unapplied, sel)
	}
	b.toggle = toggle
	b.toggleAll = toggleAll
}

// submitBatch sends or appends several changes at once.
func (b *base) submitBatch(changes []model.SelectionState) {
	if len(changes) == 0 {
		return
	}
	if b.opts.SubmitOnChange {
		b.hooks.updateSelection(changes, "", false, false)
		return
	}
	b.unapplied = append(b.unapplied, changes...)
}

// sendGuarded sends an event once the form guard reports a clean form. On a
// dirty form the event is dropped and the model is refetched instead.
func (b *base) sendGuarded(path string, payload any) {
	name := b.Name()
	b.deps.check(name, func() {
		defer metrics.Timer(metrics.TransportSend)()
		b.deps.send(path, payload)
	}, func() {
		debug.Log("selection: %s has a dirty form, refetching instead of %s", name, path)
		b.deps.refresh(name)
	})
}

// sendApply sends an APPLY or REVERSE batch through the form guard.
func (b *base) sendApply(typ model.ApplyType, values []model.SelectionState, eventSource string, toggle, toggleAll bool, levels []int) {
	event := model.NewApplyEvent(typ, values, eventSource)
	event.Toggle = toggle
	event.ToggleAll = toggleAll
	if len(levels) > 0 {
		event.ToggleLevels = append([]int(nil), levels...)
	}
	b.sendGuarded(model.PathListUpdate+b.Name(), event)
}

// ReverseSelections asks the server to invert the current selection.
func (b *base) ReverseSelections() {
	if !b.bound() {
		return
	}
	b.unapplied = nil
	b.toggle = false
	b.toggleAll = false
	b.sendApply(model.ApplyTypeReverse, nil, "", false, false, nil)
}

// SortSelections asks the server to re-sort the values.
func (b *base) SortSelections() {
	if !b.bound() {
		return
	}
	b.deps.send(model.PathListSort+b.Name(), model.SortSelectionEvent{})
}

// SearchSelections runs a server-side search. Callers debounce it.
func (b *base) SearchSelections(search string) {
	if !b.bound() {
		return
	}
	b.opts.SearchString = search
	b.deps.send(model.PathListSort+b.Name(), model.SortSelectionEvent{Search: search})
}

// HideChild hides the assembly inside its container.
func (b *base) HideChild() { b.setHidden(true) }

// ShowChild shows the assembly inside its container.
func (b *base) ShowChild() { b.setHidden(false) }

func (b *base) setHidden(hidden bool) {
	if !b.bound() {
		return
	}
	path := model.ContainerUpdatePath(b.opts.ContainerType, b.Name())
	if path == "" {
		debug.Log("selection: %s is not in a container, ignoring hidden=%v", b.Name(), hidden)
		return
	}
	b.deps.send(path, model.HideChildEvent{Hidden: hidden})
}
