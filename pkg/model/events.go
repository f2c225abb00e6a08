package model

// ApplyType tells the server how to treat an apply event.
type ApplyType string

const (
	ApplyTypeApply   ApplyType = "APPLY"
	ApplyTypeReverse ApplyType = "REVERSE"
)

// ApplySelectionEvent carries a batch of selection changes.
type ApplySelectionEvent struct {
	Type         ApplyType        `json:"type"`
	Values       []SelectionState `json:"values"`
	SelectStart  int              `json:"selectStart"`
	SelectEnd    int              `json:"selectEnd"`
	EventSource  string           `json:"eventSource,omitempty"`
	Toggle       bool             `json:"toggle"`
	ToggleAll    bool             `json:"toggleAll"`
	ToggleLevels []int            `json:"toggleLevels,omitempty"`
}

// NewApplyEvent returns an event with no range selection.
func NewApplyEvent(typ ApplyType, values []SelectionState, eventSource string) ApplySelectionEvent {
	if values == nil {
		values = []SelectionState{}
	}
	return ApplySelectionEvent{
		Type:        typ,
		Values:      values,
		SelectStart: -1,
		SelectEnd:   -1,
		EventSource: eventSource,
	}
}

// SortSelectionEvent asks the server to re-sort, or to search when Search is set.
type SortSelectionEvent struct {
	Search string `json:"search,omitempty"`
}

// HideChildEvent hides or shows an assembly inside its container.
type HideChildEvent struct {
	Hidden bool `json:"hidden"`
}

// Event paths, each followed by the assembly name.
const (
	PathListUpdate    = "/events/selectionList/update/"
	PathListSort      = "/events/selectionList/sort/"
	PathTreeSubtree   = "/events/selectionTree/selectSubtree/"
	pathEventsPrefix  = "/events/"
	pathUpdateSegment = "/update/"
)

// ContainerUpdatePath returns the hide/show path for an assembly in container c,
// or "" when the assembly has no container.
func ContainerUpdatePath(c ContainerType, assembly string) string {
	if c == ContainerNone || !c.IsValid() {
		return ""
	}
	return pathEventsPrefix + string(c) + pathUpdateSegment + assembly
}
