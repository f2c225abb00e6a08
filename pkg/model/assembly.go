package model

import (
	"fmt"

	"github.com/goccy/go-json"
	"gonum.org/v1/gonum/floats"
)

// AssemblyKind discriminates the two selection topologies.
type AssemblyKind string

const (
	KindList AssemblyKind = "list"
	KindTree AssemblyKind = "tree"
)

// IsValid returns true if the kind is a recognized value
func (k AssemblyKind) IsValid() bool {
	return k == KindList || k == KindTree
}

// TreeMode selects how a selection tree interprets its levels.
type TreeMode int

const (
	// ModeColumn is a drill-down grouping hierarchy: selecting a node
	// selects its ancestors.
	ModeColumn TreeMode = 1
	// ModeID treats every node as an independent identifier.
	ModeID TreeMode = 2
)

// String returns "COLUMN" or "ID".
func (m TreeMode) String() string {
	if m == ModeID {
		return "ID"
	}
	return "COLUMN"
}

// SelectionOptions are the settings shared by lists and trees.
type SelectionOptions struct {
	Name            string        `json:"absoluteName"`
	SingleSelection bool          `json:"singleSelection,omitempty"`
	SubmitOnChange  bool          `json:"submitOnChange,omitempty"`
	SortType        SortType      `json:"sortType"`
	SearchString    string        `json:"searchString,omitempty"`
	AdhocFilter     bool          `json:"adhocFilter,omitempty"`
	ContainerType   ContainerType `json:"containerType,omitempty"`
	Formats         FormatTable   `json:"formats,omitempty"`
	ObjectFormat    Format        `json:"objectFormat"`
}

// ListModel is the server model of a flat selection list.
type ListModel struct {
	SelectionOptions
	Values     []*Value `json:"selectionValues"`
	MeasureMin *float64 `json:"measureMin,omitempty"`
	MeasureMax *float64 `json:"measureMax,omitempty"`
}

// Index assigns list positions as value ids. Decoders call it once.
func (m *ListModel) Index() {
	for i, v := range m.Values {
		if v == nil {
			continue
		}
		v.ID = NodeID(i)
		v.Excluded = false
	}
}

// MeasureBounds returns the aggregate range used to scale measure bars. When
// the server did not send bounds they are derived from the values.
func (m *ListModel) MeasureBounds() (lo, hi float64, ok bool) {
	if m.MeasureMin != nil && m.MeasureMax != nil {
		return *m.MeasureMin, *m.MeasureMax, true
	}
	var measures []float64
	for _, v := range m.Values {
		if v != nil && v.MeasureValue != nil {
			measures = append(measures, *v.MeasureValue)
		}
	}
	if len(measures) == 0 {
		return 0, 0, false
	}
	lo, hi = floats.Min(measures), floats.Max(measures)
	if m.MeasureMin != nil {
		lo = *m.MeasureMin
	}
	if m.MeasureMax != nil {
		hi = *m.MeasureMax
	}
	return lo, hi, true
}

// TreeModel is the server model of a hierarchical selection tree.
type TreeModel struct {
	SelectionOptions
	Root                  TreeValue `json:"root"`
	Mode                  TreeMode  `json:"mode"`
	SelectChildren        bool      `json:"selectChildren,omitempty"`
	SingleSelectionLevels []int     `json:"singleSelectionLevels,omitempty"`
	ExpandAll             bool      `json:"expandAll,omitempty"`

	tree *Tree
}

// Tree returns the arena built from Root, building it on first use.
func (m *TreeModel) Tree() *Tree {
	if m.tree == nil {
		m.tree = NewTree(m.Root)
	}
	return m.tree
}

// IsSingleSelectionLevel reports whether level is single-select.
func (m *TreeModel) IsSingleSelectionLevel(level int) bool {
	for _, l := range m.SingleSelectionLevels {
		if l == level {
			return true
		}
	}
	return false
}

// Assembly is one selection widget of a viewsheet. Exactly one of List and
// Tree is set, as named by Kind.
type Assembly struct {
	Kind AssemblyKind `json:"kind"`
	List *ListModel   `json:"list,omitempty"`
	Tree *TreeModel   `json:"tree,omitempty"`
}

// Name returns the qualified assembly name.
func (a *Assembly) Name() string {
	if a == nil {
		return ""
	}
	switch a.Kind {
	case KindList:
		if a.List != nil {
			return a.List.Name
		}
	case KindTree:
		if a.Tree != nil {
			return a.Tree.Name
		}
	}
	return ""
}

// Validate checks that the assembly is well formed.
func (a *Assembly) Validate() error {
	if a == nil {
		return fmt.Errorf("assembly is nil")
	}
	if !a.Kind.IsValid() {
		return fmt.Errorf("invalid assembly kind: %q", a.Kind)
	}
	switch a.Kind {
	case KindList:
		if a.List == nil || a.Tree != nil {
			return fmt.Errorf("list assembly must carry exactly a list model")
		}
	case KindTree:
		if a.Tree == nil || a.List != nil {
			return fmt.Errorf("tree assembly must carry exactly a tree model")
		}
		if a.Tree.Mode != ModeColumn && a.Tree.Mode != ModeID {
			return fmt.Errorf("invalid tree mode: %d", a.Tree.Mode)
		}
	}
	if a.Name() == "" {
		return fmt.Errorf("assembly name cannot be empty")
	}
	return nil
}

// Viewsheet is a dashboard document holding selection assemblies.
type Viewsheet struct {
	Name       string      `json:"name"`
	Assemblies []*Assembly `json:"assemblies"`
}

// Find returns the assembly with the given name, or nil.
func (vs *Viewsheet) Find(name string) *Assembly {
	if vs == nil {
		return nil
	}
	for _, a := range vs.Assemblies {
		if a.Name() == name {
			return a
		}
	}
	return nil
}

// Names lists assembly names in document order.
func (vs *Viewsheet) Names() []string {
	if vs == nil {
		return nil
	}
	names := make([]string, 0, len(vs.Assemblies))
	for _, a := range vs.Assemblies {
		names = append(names, a.Name())
	}
	return names
}

// DecodeAssembly parses one assembly and prepares it for binding.
func DecodeAssembly(data []byte) (*Assembly, error) {
	var a Assembly
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decoding assembly: %w", err)
	}
	if err := a.prepare(); err != nil {
		return nil, err
	}
	return &a, nil
}

// DecodeViewsheet parses a viewsheet document.
func DecodeViewsheet(data []byte) (*Viewsheet, error) {
	var vs Viewsheet
	if err := json.Unmarshal(data, &vs); err != nil {
		return nil, fmt.Errorf("decoding viewsheet: %w", err)
	}
	for i, a := range vs.Assemblies {
		if err := a.prepare(); err != nil {
			return nil, fmt.Errorf("assembly %d: %w", i, err)
		}
	}
	return &vs, nil
}

func (a *Assembly) prepare() error {
	if err := a.Validate(); err != nil {
		return err
	}
	switch a.Kind {
	case KindList:
		a.List.Index()
	case KindTree:
		a.Tree.tree = NewTree(a.Tree.Root)
	}
	return nil
}
