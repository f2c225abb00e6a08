// Package selection implements the state engine behind selection list and
// selection tree filter widgets.
//
// A controller is bound to a server model with SetModel. User gestures
// (Click, SelectionStateUpdated and friends) mutate value states and either
// submit a change immediately (submit-on-change) or queue it until
// ApplySelections. Binding a new model discards whatever was still queued:
// the server state always wins.
//
// Controllers are not safe for concurrent use. They are meant to be driven
// from a single event loop; the transport they send through is asynchronous.
package selection

import (
	"fmt"

	"github.com/vanderheijden86/sheetview/pkg/model"
)

// Controller is the contract shared by ListController and TreeController.
type Controller interface {
	Kind() model.AssemblyKind
	Name() string
	SetModel(a *model.Assembly)

	VisibleValues() []*model.Value
	UnappliedSelections() []model.SelectionState
	ShowAll() bool
	ShowOthers() bool
	Sticky() (toggle, toggleAll bool)
	IsAdhocFilter() bool
	CellFormat(v *model.Value) model.Format

	Click(v *model.Value, toggle, toggleAll bool)
	SelectionStateUpdated(v *model.Value, state model.State, toggle, toggleAll bool)
	ApplySelections(eventSource string)
	HideExcludedValues()
	ShowAllValues()
	ReverseSelections()
	ClearSelections()
	SortSelections()
	SearchSelections(search string)
	HideChild()
	ShowChild()
	UpdateStatusByValues(values []model.SelectionState)
}

var (
	_ Controller = (*ListController)(nil)
	_ Controller = (*TreeController)(nil)
)

// New builds the controller matching the assembly kind and binds it.
func New(a *model.Assembly, deps Deps) (Controller, error) {
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("binding selection controller: %w", err)
	}
	switch a.Kind {
	case model.KindList:
		return NewList(a.List, deps), nil
	case model.KindTree:
		return NewTree(a.Tree, deps), nil
	}
	return nil, fmt.Errorf("unsupported assembly kind: %q", a.Kind)
}
