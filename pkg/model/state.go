package model

import (
	"strconv"
	"strings"
)

// State is the selection bitmask carried by every selection value.
//
// The low bits are semantic and come from the server:
//
//	Selected   = 1
//	Included   = 2
//	Excluded   = 4
//	Compatible = 8
//
// WasExcluded (1024) is a client-only marker that remembers an EXCLUDED value
// while a SELECTED overlay is shown on top of it. It never leaves the client.
type State int

const (
	StateSelected   State = 1
	StateIncluded   State = 2
	StateExcluded   State = 4
	StateCompatible State = 8

	// DisplayStates are the mutually informative visual classes.
	DisplayStates = StateSelected | StateIncluded | StateExcluded

	StateWasExcluded State = 1024
)

// IsSelected reports whether the SELECTED bit is set.
func (s State) IsSelected() bool { return s&StateSelected != 0 }

// IsIncluded reports whether the INCLUDED bit is set.
func (s State) IsIncluded() bool { return s&StateIncluded != 0 }

// IsExcluded reports whether the EXCLUDED bit is set.
func (s State) IsExcluded() bool { return s&StateExcluded != 0 }

// IsCompatible reports whether the COMPATIBLE bit is set.
func (s State) IsCompatible() bool { return s&StateCompatible != 0 }

// WasExcluded reports whether the client-only WAS_EXCLUDED marker is set.
func (s State) WasExcluded() bool { return s&StateWasExcluded != 0 }

// ApplyWasExcluded sets the WAS_EXCLUDED marker and leaves every other bit alone.
func (s State) ApplyWasExcluded() State { return s | StateWasExcluded }

// ApplyWasNotExcluded clears the WAS_EXCLUDED marker and leaves every other bit alone.
func (s State) ApplyWasNotExcluded() State { return s &^ StateWasExcluded }

// Display returns only the DISPLAY_STATES bits.
func (s State) Display() State { return s & DisplayStates }

// Wire returns the state as it may be sent to the server.
func (s State) Wire() State { return s &^ StateWasExcluded }

// MarshalJSON encodes the wire form, so WAS_EXCLUDED never leaves the client
// whether a value is posted, exported or printed.
func (s State) MarshalJSON() ([]byte, error) {
	return strconv.AppendInt(nil, int64(s.Wire()), 10), nil
}

// NextClickState returns the state a click on a value in state s produces.
//
// A selected value stays selected while toggling. Otherwise SELECTED flips.
// Selecting an excluded value hides EXCLUDED behind the WAS_EXCLUDED marker,
// and deselecting such a value brings EXCLUDED back.
func (s State) NextClickState(toggle bool) State {
	if s.IsSelected() {
		if toggle {
			return s
		}
		s &^= StateSelected
		if s.WasExcluded() {
			s = (s | StateExcluded).ApplyWasNotExcluded()
		}
		return s
	}

	if s.IsExcluded() {
		s = (s &^ StateExcluded).ApplyWasExcluded()
	}
	return s | StateSelected
}

// String renders the set bits, e.g. "SELECTED|COMPATIBLE".
func (s State) String() string {
	if s == 0 {
		return "NONE"
	}
	var parts []string
	if s.IsSelected() {
		parts = append(parts, "SELECTED")
	}
	if s.IsIncluded() {
		parts = append(parts, "INCLUDED")
	}
	if s.IsExcluded() {
		parts = append(parts, "EXCLUDED")
	}
	if s.IsCompatible() {
		parts = append(parts, "COMPATIBLE")
	}
	if s.WasExcluded() {
		parts = append(parts, "WAS_EXCLUDED")
	}
	if len(parts) == 0 {
		return "NONE"
	}
	return strings.Join(parts, "|")
}
