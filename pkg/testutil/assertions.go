package testutil

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/sheetview/pkg/model"
)

// Labels returns the display labels of values in order.
func Labels(values []*model.Value) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, v.DisplayLabel())
	}
	return out
}

// FindValue returns the first value with the given identity, or nil.
func FindValue(values []*model.Value, value string) *model.Value {
	for _, v := range values {
		if v.Value == value {
			return v
		}
	}
	return nil
}

// AssertLabels verifies the visible labels, in order.
func AssertLabels(t *testing.T, values []*model.Value, expected ...string) {
	t.Helper()
	got := Labels(values)
	if len(expected) == 0 && len(got) == 0 {
		return
	}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("labels mismatch:\nexpected: %v\nactual:   %v", expected, got)
	}
}

// AssertSelected verifies exactly which values are selected.
func AssertSelected(t *testing.T, values []*model.Value, expected ...string) {
	t.Helper()
	var got []string
	for _, v := range values {
		if v.State.IsSelected() {
			got = append(got, v.Value)
		}
	}
	if len(expected) == 0 && len(got) == 0 {
		return
	}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("selected mismatch:\nexpected: %v\nactual:   %v", expected, got)
	}
}

// AssertSelections compares two queues of selection changes.
func AssertSelections(t *testing.T, expected, actual []model.SelectionState) {
	t.Helper()
	if len(expected) == 0 && len(actual) == 0 {
		return
	}
	if !reflect.DeepEqual(expected, actual) {
		t.Errorf("selections mismatch:\nexpected: %+v\nactual:   %+v", expected, actual)
	}
}

// Sel builds one selection change.
func Sel(selected bool, path ...string) model.SelectionState {
	return model.SelectionState{Value: path, Selected: selected}
}

// AssertJSONEqual compares two values after JSON round-tripping.
func AssertJSONEqual(t *testing.T, expected, actual any) {
	t.Helper()

	expectedJSON, err := json.Marshal(expected)
	if err != nil {
		t.Fatalf("failed to marshal expected: %v", err)
	}
	actualJSON, err := json.Marshal(actual)
	if err != nil {
		t.Fatalf("failed to marshal actual: %v", err)
	}
	if string(expectedJSON) != string(actualJSON) {
		t.Errorf("JSON mismatch:\nexpected: %s\nactual:   %s", expectedJSON, actualJSON)
	}
}

// GoldenFile handles golden file comparisons.
type GoldenFile struct {
	t      *testing.T
	dir    string
	name   string
	update bool
}

// NewGoldenFile creates a golden file helper.
// If GENERATE_GOLDEN env var is set, golden files will be updated.
func NewGoldenFile(t *testing.T, dir, name string) *GoldenFile {
	t.Helper()
	return &GoldenFile{
		t:      t,
		dir:    dir,
		name:   name,
		update: os.Getenv("GENERATE_GOLDEN") != "",
	}
}

// Path returns the full path to the golden file.
func (g *GoldenFile) Path() string {
	return filepath.Join(g.dir, g.name)
}

// Assert compares actual content against the golden file.
// If GENERATE_GOLDEN is set, updates the golden file instead.
func (g *GoldenFile) Assert(actual string) {
	g.t.Helper()

	path := g.Path()
	if g.update {
		if err := os.MkdirAll(g.dir, 0755); err != nil {
			g.t.Fatalf("failed to create golden dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(actual), 0644); err != nil {
			g.t.Fatalf("failed to write golden file: %v", err)
		}
		g.t.Logf("updated golden file: %s", path)
		return
	}

	expected, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			g.t.Fatalf("golden file does not exist: %s\nRun with GENERATE_GOLDEN=1 to create it", path)
		}
		g.t.Fatalf("failed to read golden file: %v", err)
	}

	if string(expected) == actual {
		return
	}
	expectedLines := strings.Split(string(expected), "\n")
	actualLines := strings.Split(actual, "\n")
	for i := 0; i < len(expectedLines) || i < len(actualLines); i++ {
		var expLine, actLine string
		if i < len(expectedLines) {
			expLine = expectedLines[i]
		}
		if i < len(actualLines) {
			actLine = actualLines[i]
		}
		if expLine != actLine {
			g.t.Errorf("golden file mismatch at line %d:\nexpected: %s\nactual:   %s", i+1, expLine, actLine)
			return
		}
	}
	g.t.Errorf("golden file mismatch (length differs)")
}

// WriteViewsheetFile writes vs as viewsheet.json in dir and returns the path.
func WriteViewsheetFile(t *testing.T, dir string, vs *model.Viewsheet) string {
	t.Helper()

	data, err := json.MarshalIndent(vs, "", "  ")
	if err != nil {
		t.Fatalf("failed to marshal viewsheet: %v", err)
	}
	path := filepath.Join(dir, "viewsheet.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write viewsheet: %v", err)
	}
	return path
}
