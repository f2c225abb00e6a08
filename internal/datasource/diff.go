package datasource

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/sheetview/pkg/model"
)

// SnapshotDiff describes how a reloaded viewsheet differs from the previous one.
type SnapshotDiff struct {
	Added   []string `json:"added,omitempty"`
	Removed []string `json:"removed,omitempty"`
	// Changed lists assemblies whose kind, options, or values changed
	Changed []string `json:"changed,omitempty"`
	// StateChanged lists assemblies whose only changes are value states
	StateChanged []string `json:"state_changed,omitempty"`
}

// Empty reports whether the snapshots are equivalent.
func (d SnapshotDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0 && len(d.StateChanged) == 0
}

// Touches reports whether the named assembly was added, removed, or changed.
func (d SnapshotDiff) Touches(name string) bool {
	for _, list := range [][]string{d.Added, d.Removed, d.Changed, d.StateChanged} {
		for _, n := range list {
			if n == name {
				return true
			}
		}
	}
	return false
}

// Summary returns a one-line human-readable description.
func (d SnapshotDiff) Summary() string {
	if d.Empty() {
		return "no changes"
	}
	var parts []string
	add := func(label string, names []string) {
		if len(names) > 0 {
			parts = append(parts, fmt.Sprintf("%s: %s", label, strings.Join(names, ", ")))
		}
	}
	add("added", d.Added)
	add("removed", d.Removed)
	add("changed", d.Changed)
	add("state", d.StateChanged)
	return strings.Join(parts, "; ")
}

// DiffViewsheets compares two snapshots assembly by assembly.
func DiffViewsheets(prev, next *model.Viewsheet) SnapshotDiff {
	var diff SnapshotDiff
	before := indexAssemblies(prev)
	after := indexAssemblies(next)

	for name, a := range after {
		b, ok := before[name]
		if !ok {
			diff.Added = append(diff.Added, name)
			continue
		}
		switch {
		case !sameAssembly(a, b, false):
			diff.Changed = append(diff.Changed, name)
		case !sameAssembly(a, b, true):
			diff.StateChanged = append(diff.StateChanged, name)
		}
	}
	for name := range before {
		if _, ok := after[name]; !ok {
			diff.Removed = append(diff.Removed, name)
		}
	}

	sort.Strings(diff.Added)
	sort.Strings(diff.Removed)
	sort.Strings(diff.Changed)
	sort.Strings(diff.StateChanged)
	return diff
}

func indexAssemblies(vs *model.Viewsheet) map[string]*model.Assembly {
	out := make(map[string]*model.Assembly)
	if vs == nil {
		return out
	}
	for _, a := range vs.Assemblies {
		if a != nil {
			out[a.Name()] = a
		}
	}
	return out
}

// sameAssembly compares canonical encodings. With withStates false, value
// states are masked out first so that a state-only change still compares equal.
func sameAssembly(a, b *model.Assembly, withStates bool) bool {
	if a.Kind != b.Kind {
		return false
	}
	ea, errA := canonical(a, withStates)
	eb, errB := canonical(b, withStates)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ea, eb)
}

func canonical(a *model.Assembly, withStates bool) ([]byte, error) {
	data, err := encodeModel(a)
	if err != nil {
		return nil, err
	}
	if withStates {
		return data, nil
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, err
	}
	stripStates(generic)
	return json.Marshal(generic)
}

func stripStates(v any) {
	switch t := v.(type) {
	case map[string]any:
		delete(t, "state")
		for _, child := range t {
			stripStates(child)
		}
	case []any:
		for _, child := range t {
			stripStates(child)
		}
	}
}

// CompareSources loads two sources and diffs them.
func CompareSources(a, b DataSource) (SnapshotDiff, error) {
	vsA, err := LoadFromSource(a)
	if err != nil {
		return SnapshotDiff{}, fmt.Errorf("failed to load source A (%s): %w", a.Path, err)
	}
	vsB, err := LoadFromSource(b)
	if err != nil {
		return SnapshotDiff{}, fmt.Errorf("failed to load source B (%s): %w", b.Path, err)
	}
	return DiffViewsheets(vsA, vsB), nil
}

// Inconsistency is a pair of valid sources that disagree.
type Inconsistency struct {
	SourceA string       `json:"source_a"`
	SourceB string       `json:"source_b"`
	Diff    SnapshotDiff `json:"diff"`
}

// CheckAllSourcesConsistent compares every pair of valid sources.
func CheckAllSourcesConsistent(sources []DataSource) []Inconsistency {
	var out []Inconsistency
	for i := 0; i < len(sources); i++ {
		if !sources[i].Valid {
			continue
		}
		for j := i + 1; j < len(sources); j++ {
			if !sources[j].Valid {
				continue
			}
			diff, err := CompareSources(sources[i], sources[j])
			if err != nil || diff.Empty() {
				continue
			}
			out = append(out, Inconsistency{SourceA: sources[i].Path, SourceB: sources[j].Path, Diff: diff})
		}
	}
	return out
}
