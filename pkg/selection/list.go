package selection

import (
	"github.com/vanderheijden86/sheetview/pkg/debug"
	"github.com/vanderheijden86/sheetview/pkg/metrics"
	"github.com/vanderheijden86/sheetview/pkg/model"
)

// ListController drives a flat selection list.
type ListController struct {
	base
	model *model.ListModel
}

// NewList returns a controller bound to m.
func NewList(m *model.ListModel, deps Deps) *ListController {
	c := &ListController{}
	c.init(deps, c)
	if m != nil {
		c.bind(m)
	}
	return c
}

// Kind returns model.KindList.
func (c *ListController) Kind() model.AssemblyKind { return model.KindList }

// Model returns the bound list model.
func (c *ListController) Model() *model.ListModel { return c.model }

// SetModel replaces the bound model with a list assembly pushed by the server.
func (c *ListController) SetModel(a *model.Assembly) {
	if a == nil || a.Kind != model.KindList || a.List == nil {
		debug.Log("selection: list controller %s ignoring non-list model", c.Name())
		return
	}
	c.bind(a.List)
}

func (c *ListController) bind(m *model.ListModel) {
	c.model = m
	c.rebind(&m.SelectionOptions)
}

func (c *ListController) resetValues() {}

func (c *ListController) source() []*model.Value {
	values := make([]*model.Value, 0, len(c.model.Values))
	for _, v := range c.model.Values {
		if v != nil {
			values = append(values, v)
		}
	}
	return values
}

// setVisibleValues filters the source list. If the filter would leave the
// selector empty, the whole unfiltered list is shown instead.
func (c *ListController) setVisibleValues() {
	defer metrics.Timer(metrics.VisibleRecompute)()

	c.showOthers = false
	source := c.source()
	visible := make([]*model.Value, 0, len(source))
	for _, v := range source {
		if c.filterSelectionValue(v, 0) {
			visible = append(visible, v)
		}
	}
	if len(visible) == 0 && len(source) > 0 {
		visible = source
	}
	c.visible = visible
}

// SelectionStateUpdated records a new state for v and submits or queues the
// change. Single selection and toggle gestures are exclusive: they replace
// the queue and clear every other visible value.
func (c *ListController) SelectionStateUpdated(v *model.Value, state model.State, toggle, toggleAll bool) {
	if v == nil || !c.bound() {
		return
	}
	v.State = state

	exclusive := c.opts.SingleSelection || toggle || toggleAll
	if exclusive {
		for _, other := range c.visible {
			if other != v {
				other.State = 0
			}
		}
	}

	sel := model.SelectionState{Value: []string{v.Value}, Selected: state.IsSelected()}
	c.submit(sel, exclusive, toggle, toggleAll)
}

// updateSelection sends an APPLY batch once the form is known to be clean.
func (c *ListController) updateSelection(values []model.SelectionState, eventSource string, toggle, toggleAll bool) {
	c.sendApply(model.ApplyTypeApply, values, eventSource, toggle, toggleAll, nil)
}

// SelectRange selects the visible rows between start and end (inclusive) on
// the server, as a shift-click does.
func (c *ListController) SelectRange(start, end int) {
	if !c.bound() {
		return
	}
	if start > end {
		start, end = end, start
	}
	event := model.NewApplyEvent(model.ApplyTypeApply, nil, "")
	event.SelectStart = start
	event.SelectEnd = end
	c.sendGuarded(model.PathListUpdate+c.Name(), event)
}

// ClearSelections deselects every selected value and sends the change as a
// single APPLY.
func (c *ListController) ClearSelections() {
	if !c.bound() {
		return
	}
	var changes []model.SelectionState
	for _, v := range c.source() {
		if !v.State.IsSelected() {
			continue
		}
		v.State = v.State.NextClickState(false)
		changes = append(changes, model.SelectionState{Value: []string{v.Value}, Selected: false})
	}
	c.unapplied = nil
	c.toggle = false
	c.toggleAll = false
	c.setVisibleValues()
	c.sendApply(model.ApplyTypeApply, changes, "", false, false, nil)
}

// UpdateStatusByValues applies externally supplied selection states. Entries
// that do not name exactly one existing value are ignored.
func (c *ListController) UpdateStatusByValues(values []model.SelectionState) {
	if !c.bound() {
		return
	}
	for _, sv := range values {
		if len(sv.Value) != 1 {
			continue
		}
		v := c.find(sv.Value[0])
		if v == nil {
			continue
		}
		c.SelectionStateUpdated(v, withSelected(v.State, sv.Selected), false, false)
	}
}

func (c *ListController) find(value string) *model.Value {
	for _, v := range c.model.Values {
		if v != nil && v.Value == value {
			return v
		}
	}
	return nil
}

func withSelected(s model.State, selected bool) model.State {
	if selected {
		return s | model.StateSelected
	}
	return s &^ model.StateSelected
}
