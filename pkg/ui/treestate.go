package ui

import (
	"log"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/sheetview/pkg/selection"
)

// TreeState is the persisted open/closed state of tree assemblies, so that
// folders stay expanded across sessions and reloads.
//
// File format (JSON):
//
//	{
//	  "version": 1,
//	  "assemblies": {
//	    "Sales.Geo": {"US": true, "US/CA": false}
//	  }
//	}
//
// Only explicit user changes are stored; a corrupted or missing file means
// the model's own ExpandAll default applies.
type TreeState struct {
	Version    int                        `json:"version"`
	Assemblies map[string]map[string]bool `json:"assemblies"`
}

// TreeStateVersion is the current schema version for tree persistence
const TreeStateVersion = 1

// DefaultTreeState returns an empty TreeState.
func DefaultTreeState() *TreeState {
	return &TreeState{
		Version:    TreeStateVersion,
		Assemblies: make(map[string]map[string]bool),
	}
}

// LoadTreeState reads the state file at path. Missing or invalid files yield
// an empty state.
func LoadTreeState(path string) *TreeState {
	state := DefaultTreeState()
	if path == "" {
		return state
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return state
	}
	var loaded TreeState
	if err := json.Unmarshal(data, &loaded); err != nil {
		log.Printf("warning: invalid tree state file, using defaults: %v", err)
		return state
	}
	if loaded.Version != TreeStateVersion {
		log.Printf("warning: tree state version %d not supported, using defaults", loaded.Version)
		return state
	}
	if loaded.Assemblies != nil {
		state.Assemblies = loaded.Assemblies
	}
	return state
}

// Save writes the state to path, creating its directory.
func (s *TreeState) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// capture records the open state of a tree controller.
func (s *TreeState) capture(tc *selection.TreeController) {
	if tc == nil || tc.Name() == "" {
		return
	}
	open := tc.OpenState()
	if len(open) == 0 {
		delete(s.Assemblies, tc.Name())
		return
	}
	s.Assemblies[tc.Name()] = open
}

// restore applies the saved open state, if any, to a tree controller.
func (s *TreeState) restore(tc *selection.TreeController) {
	if tc == nil {
		return
	}
	if open, ok := s.Assemblies[tc.Name()]; ok {
		tc.RestoreOpenState(open)
	}
}

// saveTreeState persists the open state of the bound tree. Errors are logged
// but do not interrupt the session.
func (m *Model) saveTreeState() {
	if m.treeStatePath == "" || m.treeState == nil {
		return
	}
	tc, ok := m.ctrl.(*selection.TreeController)
	if !ok {
		return
	}
	m.treeState.capture(tc)
	if err := m.treeState.Save(m.treeStatePath); err != nil {
		log.Printf("warning: failed to write tree state to %s: %v", m.treeStatePath, err)
	}
}
