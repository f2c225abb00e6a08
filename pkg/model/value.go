package model

// NodeID addresses a value inside the list or tree that owns it.
type NodeID int32

// NoNode is returned by lookups that did not resolve.
const NoNode NodeID = -1

// Value is one selectable cell of a selection list or tree.
type Value struct {
	ID NodeID `json:"-"`

	Label string `json:"label"`
	// Value is the identity of the cell; it survives a model refresh.
	Value string `json:"value"`
	State State  `json:"state"`
	// Level is the depth below the synthetic root (0 = top level).
	Level int `json:"level"`

	MeasureLabel string   `json:"measureLabel,omitempty"`
	MeasureValue *float64 `json:"measureValue,omitempty"`

	MaxLines    int `json:"maxLines,omitempty"`
	FormatIndex int `json:"formatIndex"`

	// Others and More mark synthetic rows that are not data values.
	Others bool `json:"others,omitempty"`
	More   bool `json:"more,omitempty"`

	// Excluded is recomputed on every filter pass.
	Excluded bool `json:"-"`
}

// DisplayLabel returns the label, or the value when no label is set.
func (v *Value) DisplayLabel() string {
	if v.Label != "" {
		return v.Label
	}
	return v.Value
}

// HasMeasure reports whether the value carries an aggregate.
func (v *Value) HasMeasure() bool {
	return v.MeasureValue != nil
}

// SelectionState is the wire-level change unit sent to the server.
type SelectionState struct {
	// Value is the identity path from the root-adjacent ancestor down to the
	// target; flat lists use a single element.
	Value    []string `json:"value"`
	Selected bool     `json:"selected"`
}

// Clone returns a deep copy.
func (s SelectionState) Clone() SelectionState {
	clone := s
	if s.Value != nil {
		clone.Value = make([]string, len(s.Value))
		copy(clone.Value, s.Value)
	}
	return clone
}

// CloneSelections deep-copies a queue of selection changes.
func CloneSelections(in []SelectionState) []SelectionState {
	if in == nil {
		return nil
	}
	out := make([]SelectionState, len(in))
	for i, s := range in {
		out[i] = s.Clone()
	}
	return out
}

// SortType is the ordering a selection assembly uses.
type SortType int

const (
	SortNone SortType = 0
	SortAsc  SortType = 1
	SortDesc SortType = 2
	// SortSpecific hides excluded values unless the user asks for them.
	SortSpecific SortType = 8
)

// String returns the lower-case name of the sort type.
func (s SortType) String() string {
	switch s {
	case SortNone:
		return "none"
	case SortAsc:
		return "asc"
	case SortDesc:
		return "desc"
	case SortSpecific:
		return "specific"
	}
	return "unknown"
}

// ContainerType names the container an assembly lives in.
type ContainerType string

const (
	ContainerNone      ContainerType = ""
	ContainerSelection ContainerType = "selectionContainer"
	ContainerGroup     ContainerType = "groupContainer"
)

// IsValid returns true if the container type is a recognized value
func (c ContainerType) IsValid() bool {
	switch c {
	case ContainerNone, ContainerSelection, ContainerGroup:
		return true
	}
	return false
}
