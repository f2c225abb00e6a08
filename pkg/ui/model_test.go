package ui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/sheetview/pkg/model"
	"github.com/vanderheijden86/sheetview/pkg/selection"
	"github.com/vanderheijden86/sheetview/pkg/testutil"
)

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

func stripANSI(s string) string { return ansiRe.ReplaceAllString(s, "") }

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var keySpace = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}

func listAssembly(name string, states ...model.State) *model.Assembly {
	return &model.Assembly{Kind: model.KindList, List: testutil.QuickList(name, states...)}
}

func treeAssembly(name string) *model.Assembly {
	return &model.Assembly{Kind: model.KindTree, Tree: testutil.RegionTree(name, model.ModeColumn)}
}

func newTestModel(t *testing.T, a *model.Assembly, deps selection.Deps, opts Options) Model {
	t.Helper()
	if opts.Renderer == nil {
		opts.Renderer = lipgloss.NewRenderer(nil)
	}
	m, err := NewModel(a, deps, opts)
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 20})
	return updated.(Model)
}

func press(t *testing.T, m Model, msgs ...tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, msg := range msgs {
		var updated tea.Model
		updated, cmd = m.Update(msg)
		m = updated.(Model)
	}
	return m, cmd
}

// runCmd executes cmd and flattens batches into their messages.
func runCmd(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, runCmd(c)...)
		}
		return out
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

func rowPaths(rows []Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Path
	}
	return out
}

func TestNewModelRejectsInvalidAssembly(t *testing.T) {
	_, err := NewModel(&model.Assembly{Kind: model.KindList}, selection.Deps{}, Options{})
	if err == nil {
		t.Fatal("expected error for list assembly without a model")
	}
}

func TestListRowsAndNavigation(t *testing.T) {
	m := newTestModel(t, listAssembly("sales", 0, 0, 0), selection.Deps{}, Options{})
	if got := rowPaths(m.Rows()); strings.Join(got, ",") != "v0,v1,v2" {
		t.Fatalf("rows = %v", got)
	}

	m, _ = press(t, m, keyRunes("j"), keyRunes("j"), keyRunes("j"))
	if m.Cursor() != 2 {
		t.Errorf("cursor should stop at last row, got %d", m.Cursor())
	}
	m, _ = press(t, m, keyRunes("g"))
	if m.Cursor() != 0 {
		t.Errorf("g should jump to top, got %d", m.Cursor())
	}
	m, _ = press(t, m, keyRunes("G"))
	if m.Cursor() != 2 {
		t.Errorf("G should jump to bottom, got %d", m.Cursor())
	}
}

func TestClickQueuesUntilApply(t *testing.T) {
	tr := &testutil.RecordingTransport{}
	m := newTestModel(t, listAssembly("sales", 0, 0, 0), selection.Deps{Transport: tr}, Options{})

	m, _ = press(t, m, keySpace, keyRunes("j"), keySpace)
	if n := len(m.Controller().UnappliedSelections()); n != 2 {
		t.Fatalf("expected 2 queued changes, got %d", n)
	}
	if tr.Len() != 0 {
		t.Fatalf("nothing should be sent before apply, got %d events", tr.Len())
	}
	testutil.AssertSelected(t, m.Controller().VisibleValues(), "v0", "v1")

	view := stripANSI(m.View())
	if !strings.Contains(view, "2 unapplied") {
		t.Errorf("footer should show pending count:\n%s", view)
	}

	m, _ = press(t, m, keyRunes("a"))
	applies := tr.Applies()
	if len(applies) != 1 {
		t.Fatalf("expected one apply event, got %d", len(applies))
	}
	if len(applies[0].Values) != 2 {
		t.Errorf("apply should carry both changes, got %d", len(applies[0].Values))
	}
	if len(m.Controller().UnappliedSelections()) != 0 {
		t.Error("queue should be empty after apply")
	}
	if !strings.Contains(m.Status(), "Applied 2") {
		t.Errorf("status = %q", m.Status())
	}

	// Applying again is a no-op.
	press(t, m, keyRunes("a"))
	if tr.Len() != 1 {
		t.Errorf("second apply should not send, got %d events", tr.Len())
	}
}

func TestToggleClickIsExclusive(t *testing.T) {
	m := newTestModel(t, listAssembly("sales", model.StateSelected, model.StateSelected, 0), selection.Deps{}, Options{})
	m, _ = press(t, m, keyRunes("G"), keyRunes("t"))
	testutil.AssertSelected(t, m.Controller().VisibleValues(), "v2")
	if n := len(m.Controller().UnappliedSelections()); n != 1 {
		t.Errorf("toggle click should replace the queue, got %d entries", n)
	}
	if toggle, _ := m.Controller().Sticky(); !toggle {
		t.Error("toggle flag should be latched until apply")
	}
}

func TestRangeSelectSendsBounds(t *testing.T) {
	tr := &testutil.RecordingTransport{}
	m := newTestModel(t, listAssembly("sales", 0, 0, 0, 0), selection.Deps{Transport: tr}, Options{})

	m, _ = press(t, m, keyRunes("j"), keyRunes("v"))
	if tr.Len() != 0 {
		t.Fatal("marking the anchor should not send")
	}
	press(t, m, keyRunes("G"), keyRunes("v"))

	applies := tr.Applies()
	if len(applies) != 1 {
		t.Fatalf("expected one range apply, got %d", len(applies))
	}
	if applies[0].SelectStart != 1 || applies[0].SelectEnd != 3 {
		t.Errorf("range = %d-%d, want 1-3", applies[0].SelectStart, applies[0].SelectEnd)
	}
}

func TestDirtyFormRefetchesModel(t *testing.T) {
	tr := &testutil.RecordingTransport{}
	guard := &testutil.Guard{Dirty: true}
	var requested []string
	reload := func(_ context.Context, name string, force bool) (*model.Assembly, error) {
		if !force {
			t.Error("refetch after a dirty form must be forced")
		}
		requested = append(requested, name)
		return listAssembly("sales", 0, model.StateSelected, 0), nil
	}
	m := newTestModel(t, listAssembly("sales", 0, 0, 0), selection.Deps{Transport: tr, Guard: guard}, Options{Reload: reload})

	m, _ = press(t, m, keySpace)
	m, cmd := press(t, m, keyRunes("a"))
	if tr.Len() != 0 {
		t.Fatalf("dirty form must not send, got %d events", tr.Len())
	}
	msgs := runCmd(cmd)
	if len(requested) != 1 || requested[0] != "sales" {
		t.Fatalf("reload requests = %v", requested)
	}
	m, _ = press(t, m, msgs...)
	testutil.AssertSelected(t, m.Controller().VisibleValues(), "v1")
	if !strings.Contains(m.Status(), "refetch") {
		t.Errorf("status = %q", m.Status())
	}
}

func TestReloadFailureShowsError(t *testing.T) {
	reload := func(context.Context, string, bool) (*model.Assembly, error) {
		return nil, errors.New("boom")
	}
	m := newTestModel(t, listAssembly("sales", 0), selection.Deps{}, Options{Reload: reload})
	m, cmd := press(t, m, keyRunes("R"))
	m, _ = press(t, m, runCmd(cmd)...)
	if !strings.Contains(m.Status(), "boom") {
		t.Errorf("status = %q", m.Status())
	}
	if !m.statusIsError {
		t.Error("reload failure should be flagged as an error")
	}
}

func TestReloadWithoutChanges(t *testing.T) {
	reload := func(context.Context, string, bool) (*model.Assembly, error) { return nil, nil }
	m := newTestModel(t, listAssembly("sales", 0), selection.Deps{}, Options{Reload: reload})
	m, cmd := press(t, m, keyRunes("R"))
	m, _ = press(t, m, runCmd(cmd)...)
	if m.Status() != "No changes" {
		t.Errorf("status = %q", m.Status())
	}
}

func TestReplacementOfDifferentKindIsRejected(t *testing.T) {
	m := newTestModel(t, listAssembly("sales", 0), selection.Deps{}, Options{})
	m, _ = press(t, m, ModelReplacedMsg{Assembly: treeAssembly("sales")})
	if m.Controller().Kind() != model.KindList {
		t.Fatal("controller kind must not change")
	}
	if !m.statusIsError {
		t.Error("kind change should be reported")
	}
}

func TestFileChangedReloadsModel(t *testing.T) {
	calls := 0
	reload := func(_ context.Context, _ string, force bool) (*model.Assembly, error) {
		calls++
		if force {
			t.Error("file change reload should not be forced")
		}
		return listAssembly("sales", model.StateSelected, 0), nil
	}
	m := newTestModel(t, listAssembly("sales", 0, 0, 0), selection.Deps{}, Options{Reload: reload})
	m, cmd := press(t, m, FileChangedMsg{})
	m, _ = press(t, m, runCmd(cmd)...)
	if calls != 1 {
		t.Fatalf("reload calls = %d", calls)
	}
	testutil.AssertLabels(t, m.Controller().VisibleValues(), "v0", "v1")
	testutil.AssertSelected(t, m.Controller().VisibleValues(), "v0")
}

func TestTransportErrorIsShown(t *testing.T) {
	m := newTestModel(t, listAssembly("sales", 0), selection.Deps{}, Options{})
	m, _ = press(t, m, TransportErrorMsg{Path: "/events/x", Err: errors.New("503")})
	if !strings.Contains(m.Status(), "503") || !m.statusIsError {
		t.Errorf("status = %q (error=%v)", m.Status(), m.statusIsError)
	}
}

func TestShowAllTogglesExcludedValues(t *testing.T) {
	a := listAssembly("sales", 0, model.StateExcluded, 0)
	a.List.SortType = model.SortSpecific
	m := newTestModel(t, a, selection.Deps{}, Options{})
	testutil.AssertLabels(t, m.Controller().VisibleValues(), "v0", "v2")

	m, _ = press(t, m, keyRunes("e"))
	testutil.AssertLabels(t, m.Controller().VisibleValues(), "v0", "v1", "v2")
	if !strings.Contains(stripANSI(m.View()), "[all]") {
		t.Error("header should flag show-all")
	}

	m, _ = press(t, m, keyRunes("e"))
	testutil.AssertLabels(t, m.Controller().VisibleValues(), "v0", "v2")
}

func TestShowAllOption(t *testing.T) {
	a := listAssembly("sales", 0, model.StateExcluded)
	a.List.SortType = model.SortSpecific
	m := newTestModel(t, a, selection.Deps{}, Options{ShowAll: true})
	if !m.Controller().ShowAll() {
		t.Error("ShowAll option should start with excluded values visible")
	}
	testutil.AssertLabels(t, m.Controller().VisibleValues(), "v0", "v1")
}

func TestTreeExpandCollapse(t *testing.T) {
	m := newTestModel(t, treeAssembly("geo"), selection.Deps{}, Options{})
	want := []string{"US", "US/CA", "US/CA/SF", "US/CA/LA", "US/NY", "EU", "EU/FR"}
	if got := rowPaths(m.Rows()); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("rows = %v", got)
	}

	m, _ = press(t, m, keyRunes("h"))
	if got := rowPaths(m.Rows()); strings.Join(got, ",") != "US,EU,EU/FR" {
		t.Fatalf("after collapse rows = %v", got)
	}

	m, _ = press(t, m, keyRunes("l"))
	if len(m.Rows()) != 7 {
		t.Fatalf("after expand rows = %v", rowPaths(m.Rows()))
	}

	// Collapse on a leaf moves to its parent.
	m, _ = press(t, m, keyRunes("j"), keyRunes("j"), keyRunes("h"))
	if got := m.Rows()[m.Cursor()].Path; got != "US/CA" {
		t.Errorf("cursor on %q, want US/CA", got)
	}

	m, _ = press(t, m, keyRunes("Z"))
	if got := rowPaths(m.Rows()); strings.Join(got, ",") != "US,EU" {
		t.Errorf("collapse all rows = %v", got)
	}
	m, _ = press(t, m, keyRunes("X"))
	if len(m.Rows()) != 7 {
		t.Errorf("expand all rows = %v", rowPaths(m.Rows()))
	}
}

func TestTreeSubtreeSelection(t *testing.T) {
	m := newTestModel(t, treeAssembly("geo"), selection.Deps{}, Options{})
	m, _ = press(t, m, keyRunes("j"), keyRunes("s"))
	testutil.AssertSelected(t, m.Controller().VisibleValues(), "CA", "SF", "LA")
	queued := m.Controller().UnappliedSelections()
	if len(queued) != 1 {
		t.Fatalf("subtree should queue one entry, got %d", len(queued))
	}
	if got := strings.Join(queued[0].Value, ","); got != "CA,SF,LA" {
		t.Errorf("subtree values = %s", got)
	}
}

func TestTreeStatePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree-state", "snap.json")
	m := newTestModel(t, treeAssembly("geo"), selection.Deps{}, Options{TreeStatePath: path})
	press(t, m, keyRunes("h"))

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("tree state not written: %v", err)
	}
	state := LoadTreeState(path)
	if open, ok := state.Assemblies["geo"]["US"]; !ok || open {
		t.Fatalf("saved state = %v", state.Assemblies)
	}

	m2 := newTestModel(t, treeAssembly("geo"), selection.Deps{}, Options{TreeStatePath: path})
	if got := rowPaths(m2.Rows()); strings.Join(got, ",") != "US,EU,EU/FR" {
		t.Errorf("restored rows = %v", got)
	}
}

func TestLoadTreeStateInvalid(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
	}{
		{"garbage", "{not json"},
		{"wrong version", `{"version": 99, "assemblies": {"geo": {"US": false}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_")+".json")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			state := LoadTreeState(path)
			if len(state.Assemblies) != 0 {
				t.Errorf("expected empty state, got %v", state.Assemblies)
			}
		})
	}

	if s := LoadTreeState(""); s == nil || s.Version != TreeStateVersion {
		t.Error("empty path should yield a default state")
	}
}

func TestSearchDebouncesAndJumps(t *testing.T) {
	tr := &testutil.RecordingTransport{}
	m := newTestModel(t, treeAssembly("geo"), selection.Deps{Transport: tr}, Options{})

	m, _ = press(t, m, keyRunes("/"))
	if !m.search.Active() {
		t.Fatal("search should be active")
	}
	m, _ = press(t, m, keyRunes("F"))
	stale := m.search.seq
	m, cmd := press(t, m, keyRunes("R"))
	if got := m.Rows()[m.Cursor()].Path; got != "EU/FR" {
		t.Errorf("cursor on %q, want EU/FR", got)
	}

	// An older tick is ignored.
	m, _ = press(t, m, searchDebounceMsg{seq: stale, query: "F"})
	if tr.Len() != 0 {
		t.Fatalf("stale tick should not search, got %d events", tr.Len())
	}

	for _, msg := range runCmd(cmd) {
		if dm, ok := msg.(searchDebounceMsg); ok {
			m, _ = press(t, m, dm)
		}
	}
	last, ok := tr.Last()
	if !ok || last.Path != model.PathListSort+"geo" {
		t.Fatalf("expected a search event, got %+v", last)
	}
	if ev, _ := last.Payload.(model.SortSelectionEvent); ev.Search != "FR" {
		t.Errorf("search payload = %+v", last.Payload)
	}

	// The same query is not sent twice.
	press(t, m, searchDebounceMsg{seq: m.search.seq, query: "FR"})
	if tr.Len() != 1 {
		t.Errorf("duplicate query sent, %d events", tr.Len())
	}

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.search.Active() {
		t.Error("enter should close the prompt")
	}
}

func TestNextHitCycles(t *testing.T) {
	m := newTestModel(t, listAssembly("sales", 0, 0, 0), selection.Deps{}, Options{})
	m.search.SetValue("v")
	m.search.match(m.rows)
	if len(m.search.hits) != 3 {
		t.Fatalf("hits = %v", m.search.hits)
	}
	first := m.search.current()
	m, _ = press(t, m, keyRunes("n"))
	if m.Cursor() == first {
		t.Error("n should move to the next hit")
	}
}

func TestHelpOverlay(t *testing.T) {
	m := newTestModel(t, listAssembly("sales", 0), selection.Deps{}, Options{HelpWidth: 60})
	m, _ = press(t, m, keyRunes("?"))
	if !m.showHelp {
		t.Fatal("? should open help")
	}
	if !strings.Contains(stripANSI(m.View()), "Selection") {
		t.Error("help should list the selection section")
	}
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.showHelp {
		t.Error("esc should close help")
	}
}

func TestHelpMarkdownListsEveryBinding(t *testing.T) {
	md := helpMarkdown(DefaultKeyMap())
	for _, want := range []string{"select subtree", "apply", "expand all", "copy path", "reverse"} {
		if !strings.Contains(md, want) {
			t.Errorf("help missing %q", want)
		}
	}
}

func TestViewRendersMeasuresAndPage(t *testing.T) {
	a := listAssembly("sales", 0, 0)
	lo, hi := 1.0, 9.0
	a.List.Values[0].MeasureValue = &lo
	a.List.Values[1].MeasureValue = &hi
	a.List.Values[1].MeasureLabel = "9k"
	m := newTestModel(t, a, selection.Deps{}, Options{})

	view := stripANSI(m.View())
	for _, want := range []string{"sales · list", "9k", "Page 1/1 (1-2 of 2)"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestCopyPathWithoutRows(t *testing.T) {
	m := newTestModel(t, listAssembly("sales"), selection.Deps{}, Options{})
	m, _ = press(t, m, keyRunes("y"))
	if !m.statusIsError {
		t.Errorf("copy with no rows should fail, status %q", m.Status())
	}
}

func TestPageIndicator(t *testing.T) {
	tests := []struct {
		offset, page, total int
		want                string
	}{
		{0, 10, 0, "Page 1/1 (0 of 0)"},
		{0, 10, 5, "Page 1/1 (1-5 of 5)"},
		{0, 10, 25, "Page 1/3 (1-10 of 25)"},
		{10, 10, 25, "Page 2/3 (11-20 of 25)"},
		{18, 10, 25, "Page 3/3 (19-25 of 25)"},
	}
	for _, tt := range tests {
		if got := pageIndicator(tt.offset, tt.page, tt.total); got != tt.want {
			t.Errorf("pageIndicator(%d,%d,%d) = %q, want %q", tt.offset, tt.page, tt.total, got, tt.want)
		}
	}
}

func TestQuitSavesTreeState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	m := newTestModel(t, treeAssembly("geo"), selection.Deps{}, Options{TreeStatePath: path})
	_, cmd := press(t, m, keyRunes("q"))
	if cmd == nil {
		t.Fatal("q should return a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("quit should persist tree state: %v", err)
	}
}
