// Package ui is the terminal viewer for one selection list or tree. It hosts
// a selection.Controller, maps keys to controller gestures, and replaces the
// bound model whenever the controller asks for a refetch or the snapshot on
// disk changes.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/sheetview/pkg/debug"
	"github.com/vanderheijden86/sheetview/pkg/metrics"
	"github.com/vanderheijden86/sheetview/pkg/model"
	"github.com/vanderheijden86/sheetview/pkg/selection"
	"github.com/vanderheijden86/sheetview/pkg/watcher"
)

const reloadTimeout = 15 * time.Second

// ReloadFunc fetches a fresh copy of an assembly. Without force a nil
// assembly with a nil error means the assembly did not change. A forced
// reload always returns the current model.
type ReloadFunc func(ctx context.Context, assembly string, force bool) (*model.Assembly, error)

// ModelReplacedMsg carries a freshly fetched assembly model.
type ModelReplacedMsg struct {
	Assembly *model.Assembly
	Err      error
	// Reason is shown in the status line ("refetch", "source changed", ...).
	Reason string
}

// FileChangedMsg is sent when the snapshot file changes on disk
type FileChangedMsg struct{}

// TransportErrorMsg reports a failed event send.
type TransportErrorMsg struct {
	Path string
	Err  error
}

// WatchFileCmd returns a command that waits for file changes and sends FileChangedMsg
func WatchFileCmd(w *watcher.Watcher) tea.Cmd {
	return func() tea.Msg {
		<-w.Changed()
		return FileChangedMsg{}
	}
}

// refreshQueue is the Refresher handed to the controller. Requests are
// collected during a gesture and turned into reload commands afterwards.
type refreshQueue struct {
	pending []string
}

func (q *refreshQueue) RequestModel(assembly string) {
	q.pending = append(q.pending, assembly)
}

func (q *refreshQueue) drain() []string {
	out := q.pending
	q.pending = nil
	return out
}

// Options configure a Model.
type Options struct {
	Reload         ReloadFunc
	Watcher        *watcher.Watcher
	TreeStatePath  string
	SearchDebounce time.Duration
	ShowAll        bool
	HelpWidth      int
	Renderer       *lipgloss.Renderer
}

// Model is the bubbletea model of the viewer.
type Model struct {
	ctrl      selection.Controller
	refresher *refreshQueue
	reload    ReloadFunc
	watcher   *watcher.Watcher

	theme  Theme
	keys   KeyMap
	search SearchBar

	rows   []Row
	cursor int
	offset int
	anchor int

	width  int
	height int

	showHelp  bool
	helpText  string
	helpWidth int

	statusMsg     string
	statusIsError bool

	treeState     *TreeState
	treeStatePath string
}

// NewModel binds a controller to a and wraps it in a viewer. deps.Refresher
// is replaced by the viewer's own refetch queue.
func NewModel(a *model.Assembly, deps selection.Deps, opts Options) (Model, error) {
	q := &refreshQueue{}
	deps.Refresher = q
	ctrl, err := selection.New(a, deps)
	if err != nil {
		return Model{}, err
	}

	r := opts.Renderer
	if r == nil {
		r = lipgloss.DefaultRenderer()
	}
	m := Model{
		ctrl:          ctrl,
		refresher:     q,
		reload:        opts.Reload,
		watcher:       opts.Watcher,
		theme:         DefaultTheme(r),
		keys:          DefaultKeyMap(),
		search:        NewSearchBar(opts.SearchDebounce),
		anchor:        -1,
		helpWidth:     opts.HelpWidth,
		treeStatePath: opts.TreeStatePath,
	}
	if m.treeStatePath != "" {
		m.treeState = LoadTreeState(m.treeStatePath)
		if tc, ok := ctrl.(*selection.TreeController); ok {
			m.treeState.restore(tc)
		}
	}
	if opts.ShowAll {
		ctrl.ShowAllValues()
	}
	m.rebuildRows()
	return m, nil
}

// Controller returns the bound controller.
func (m Model) Controller() selection.Controller { return m.ctrl }

// Rows returns the rows currently on display.
func (m Model) Rows() []Row { return m.rows }

// Cursor returns the index of the highlighted row.
func (m Model) Cursor() int { return m.cursor }

// Status returns the status line message.
func (m Model) Status() string { return m.statusMsg }

func (m *Model) isTree() bool { return m.ctrl.Kind() == model.KindTree }

func (m *Model) tree() *selection.TreeController {
	tc, _ := m.ctrl.(*selection.TreeController)
	return tc
}

// current returns the value under the cursor, or nil.
func (m *Model) current() *Row {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return nil
	}
	return &m.rows[m.cursor]
}

// rebuildRows refreshes the rows and keeps the cursor on the same path when
// it is still visible.
func (m *Model) rebuildRows() {
	var keep string
	if r := m.current(); r != nil {
		keep = r.Path
	}
	m.rows = buildRows(m.ctrl)
	if keep != "" {
		for i, r := range m.rows {
			if r.Path == keep {
				m.cursor = i
				break
			}
		}
	}
	m.clampCursor()
	m.search.match(m.rows)
}

func (m *Model) clampCursor() {
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	page := m.pageSize()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+page {
		m.offset = m.cursor - page + 1
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

// pageSize is the number of rows that fit between header and footer.
func (m *Model) pageSize() int {
	h := m.height - 3
	if m.search.Active() {
		h--
	}
	if h < 1 {
		return 1
	}
	return h
}

func (m *Model) setStatus(msg string, isErr bool) {
	m.statusMsg = msg
	m.statusIsError = isErr
}

// reloadCmd fetches a fresh model for assembly in the background.
func (m *Model) reloadCmd(assembly, reason string, force bool) tea.Cmd {
	if m.reload == nil {
		debug.Log("ui: no reload function, ignoring refetch of %s", assembly)
		return nil
	}
	reload := m.reload
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
		defer cancel()
		a, err := reload(ctx, assembly, force)
		return ModelReplacedMsg{Assembly: a, Err: err, Reason: reason}
	}
}

// afterGesture rebuilds rows and turns queued refetch requests into commands.
func (m *Model) afterGesture() tea.Cmd {
	m.rebuildRows()
	var cmds []tea.Cmd
	seen := make(map[string]bool)
	for _, name := range m.refresher.drain() {
		if seen[name] {
			continue
		}
		seen[name] = true
		cmds = append(cmds, m.reloadCmd(name, "refetch", true))
	}
	if len(cmds) > 0 {
		m.setStatus("Refetching "+m.ctrl.Name()+"…", false)
	}
	return tea.Batch(cmds...)
}

// replaceModel binds a freshly fetched assembly.
func (m *Model) replaceModel(msg ModelReplacedMsg) {
	if msg.Err != nil {
		m.setStatus(fmt.Sprintf("❌ Reload failed: %v", msg.Err), true)
		return
	}
	if msg.Assembly == nil {
		m.setStatus("No changes", false)
		return
	}
	if msg.Assembly.Kind != m.ctrl.Kind() {
		m.setStatus(fmt.Sprintf("❌ %s changed kind to %s", m.ctrl.Name(), msg.Assembly.Kind), true)
		return
	}
	m.ctrl.SetModel(msg.Assembly)
	m.anchor = -1
	m.rebuildRows()
	reason := msg.Reason
	if reason == "" {
		reason = "reloaded"
	}
	m.setStatus(fmt.Sprintf("Model replaced (%s)", reason), false)
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	if m.watcher != nil {
		return WatchFileCmd(m.watcher)
	}
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.showHelp {
			m.helpText = renderHelp(m.keys, m.helpViewWidth())
		}
		m.clampCursor()
		return m, nil

	case ModelReplacedMsg:
		m.replaceModel(msg)
		return m, nil

	case FileChangedMsg:
		metrics.SourceReloads.Inc()
		m.setStatus("Source changed, reloading…", false)
		cmds := []tea.Cmd{m.reloadCmd(m.ctrl.Name(), "source changed", false)}
		if m.watcher != nil {
			cmds = append(cmds, WatchFileCmd(m.watcher))
		}
		return m, tea.Batch(cmds...)

	case TransportErrorMsg:
		m.setStatus(fmt.Sprintf("❌ Send to %s failed: %v", msg.Path, msg.Err), true)
		return m, nil

	case searchDebounceMsg:
		if m.search.due(msg) {
			m.ctrl.SearchSelections(msg.query)
			return m, m.afterGesture()
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.search.Active() {
		return m, m.search.Update(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		switch msg.String() {
		case "?", "esc", "q":
			m.showHelp = false
		}
		return m, nil
	}
	if m.search.Active() {
		return m.handleSearchKey(msg)
	}

	k := m.keys
	switch {
	case key.Matches(msg, k.Quit):
		m.saveTreeState()
		return m, tea.Quit
	case key.Matches(msg, k.Help):
		m.showHelp = true
		m.helpText = renderHelp(m.keys, m.helpViewWidth())
		return m, nil

	case key.Matches(msg, k.Up):
		m.cursor--
	case key.Matches(msg, k.Down):
		m.cursor++
	case key.Matches(msg, k.PageUp):
		m.cursor -= m.pageSize()
	case key.Matches(msg, k.PageDown):
		m.cursor += m.pageSize()
	case key.Matches(msg, k.Top):
		m.cursor = 0
	case key.Matches(msg, k.Bottom):
		m.cursor = len(m.rows) - 1

	case key.Matches(msg, k.Search):
		return m, m.search.Open()
	case key.Matches(msg, k.NextHit):
		if i := m.search.next(); i >= 0 {
			m.cursor = i
		}
	case key.Matches(msg, k.CopyPath):
		m.copyPath()
	case key.Matches(msg, k.Reload):
		m.setStatus("Reloading…", false)
		return m, m.reloadCmd(m.ctrl.Name(), "manual reload", true)

	default:
		if cmd, handled := m.handleGesture(msg); handled {
			return m, cmd
		}
		if cmd, handled := m.handleTreeKey(msg); handled {
			return m, cmd
		}
	}
	m.clampCursor()
	return m, nil
}

// handleGesture maps selection keys to controller operations.
func (m *Model) handleGesture(msg tea.KeyMsg) (tea.Cmd, bool) {
	k := m.keys
	row := m.current()
	switch {
	case key.Matches(msg, k.Click):
		if row == nil {
			return nil, true
		}
		m.ctrl.Click(row.Value, false, false)
	case key.Matches(msg, k.Toggle):
		if row == nil {
			return nil, true
		}
		m.ctrl.Click(row.Value, true, false)
	case key.Matches(msg, k.ToggleAll):
		if row == nil {
			return nil, true
		}
		m.ctrl.Click(row.Value, false, true)
	case key.Matches(msg, k.Subtree):
		tc := m.tree()
		if tc == nil || row == nil {
			return nil, true
		}
		tc.SetSubtree(row.Value, row.Value.State.NextClickState(false), false, false)
	case key.Matches(msg, k.Range):
		lc, ok := m.ctrl.(*selection.ListController)
		if !ok {
			return nil, true
		}
		if m.anchor < 0 {
			m.anchor = m.cursor
			m.setStatus("Range start marked", false)
			return nil, true
		}
		lc.SelectRange(m.anchor, m.cursor)
		m.anchor = -1
	case key.Matches(msg, k.Apply):
		n := len(m.ctrl.UnappliedSelections())
		m.ctrl.ApplySelections("")
		if n > 0 {
			m.setStatus(fmt.Sprintf("Applied %d change(s)", n), false)
		}
	case key.Matches(msg, k.ShowAll):
		if m.ctrl.ShowAll() {
			m.ctrl.HideExcludedValues()
		} else {
			m.ctrl.ShowAllValues()
		}
	case key.Matches(msg, k.Reverse):
		m.ctrl.ReverseSelections()
	case key.Matches(msg, k.Clear):
		m.ctrl.ClearSelections()
	case key.Matches(msg, k.Sort):
		m.ctrl.SortSelections()
	case key.Matches(msg, k.Hide):
		m.ctrl.HideChild()
	case key.Matches(msg, k.Unhide):
		m.ctrl.ShowChild()
	default:
		return nil, false
	}
	return m.afterGesture(), true
}

// handleTreeKey handles folder expansion. Collapsing on a leaf or a closed
// folder moves the cursor to the parent row.
func (m *Model) handleTreeKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	tc := m.tree()
	if tc == nil {
		return nil, false
	}
	k := m.keys
	row := m.current()
	switch {
	case key.Matches(msg, k.Expand):
		if row == nil || !row.Folder {
			return nil, true
		}
		tc.SetOpen(row.Value, true)
	case key.Matches(msg, k.Collapse):
		if row == nil {
			return nil, true
		}
		if row.Folder && row.Open {
			tc.SetOpen(row.Value, false)
		} else {
			m.cursor = m.parentRow(m.cursor)
			m.clampCursor()
			return nil, true
		}
	case key.Matches(msg, k.ExpandAll):
		tc.ExpandAll()
	case key.Matches(msg, k.CollapseAll):
		tc.CollapseAll()
	default:
		return nil, false
	}
	m.rebuildRows()
	m.saveTreeState()
	return nil, true
}

// parentRow returns the index of the closest row above i with a smaller
// depth, or i when there is none.
func (m *Model) parentRow(i int) int {
	if i <= 0 || i >= len(m.rows) {
		return i
	}
	depth := m.rows[i].Depth
	for j := i - 1; j >= 0; j-- {
		if m.rows[j].Depth < depth {
			return j
		}
	}
	return i
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.search.Close()
		m.search.SetValue("")
		m.search.match(m.rows)
		return m, m.search.schedule()
	case tea.KeyEnter:
		m.search.Close()
		m.clampCursor()
		return m, nil
	}
	cmd := m.search.Update(msg)
	m.search.match(m.rows)
	if i := m.search.current(); i >= 0 {
		m.cursor = i
	}
	m.clampCursor()
	return m, cmd
}

func (m *Model) copyPath() {
	row := m.current()
	if row == nil {
		m.setStatus("❌ Nothing selected", true)
		return
	}
	if err := clipboard.WriteAll(row.Path); err != nil {
		m.setStatus(fmt.Sprintf("❌ Clipboard error: %v", err), true)
		return
	}
	m.setStatus(fmt.Sprintf("📋 Copied %s to clipboard", row.Path), false)
}

func (m *Model) helpViewWidth() int {
	w := m.helpWidth
	if m.width > 0 && (w <= 0 || w > m.width-2) {
		w = m.width - 2
	}
	return w
}

// View implements tea.Model.
func (m Model) View() string {
	defer metrics.Timer(metrics.UIRender)()

	if m.showHelp {
		return m.helpText
	}
	width := m.width
	if width <= 0 {
		width = 80
	}

	var sb strings.Builder
	sb.WriteString(m.renderHeader(width))
	sb.WriteString("\n")

	page := m.pageSize()
	end := m.offset + page
	if end > len(m.rows) {
		end = len(m.rows)
	}
	lo, hi, hasMeasure := measureBounds(m.ctrl, m.rows)
	if len(m.rows) == 0 {
		sb.WriteString(m.theme.Footer.Render("  (no values)"))
		sb.WriteString("\n")
	}
	for i := m.offset; i < end; i++ {
		line := m.renderRow(m.rows[i], width-1, lo, hi, hasMeasure)
		if i == m.cursor {
			line = m.theme.Cursor.Render(line)
		} else {
			line = " " + line
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	if m.search.Active() {
		sb.WriteString(m.search.View(m.theme))
		sb.WriteString("\n")
	}
	sb.WriteString(m.renderFooter(width))
	return sb.String()
}

func (m *Model) renderHeader(width int) string {
	title := m.ctrl.Name()
	if title == "" {
		title = "(unnamed)"
	}
	var flags []string
	if m.ctrl.ShowAll() {
		flags = append(flags, "all")
	}
	if m.ctrl.IsAdhocFilter() {
		flags = append(flags, "adhoc")
	}
	if toggle, toggleAll := m.ctrl.Sticky(); toggle || toggleAll {
		flags = append(flags, "toggle")
	}
	text := fmt.Sprintf("%s · %s", title, m.ctrl.Kind())
	if len(flags) > 0 {
		text += " [" + strings.Join(flags, ",") + "]"
	}
	return m.theme.Header.Width(width).Render(truncate(text, width-2))
}

func (m *Model) renderFooter(width int) string {
	var parts []string
	parts = append(parts, pageIndicator(m.offset, m.pageSize(), len(m.rows)))
	if n := len(m.ctrl.UnappliedSelections()); n > 0 {
		parts = append(parts, m.theme.Pending.Render(fmt.Sprintf("● %d unapplied", n)))
	}
	if m.statusMsg != "" {
		style := m.theme.Footer
		if m.statusIsError {
			style = style.Foreground(m.theme.Danger)
		}
		parts = append(parts, style.Render(m.statusMsg))
	}
	line := strings.Join(parts, "  ")

	var help []string
	for _, b := range m.keys.ShortHelp() {
		h := b.Help()
		help = append(help, h.Key+" "+h.Desc)
	}
	return padRight(line, width) + "\n" + m.theme.Footer.Render(truncate(strings.Join(help, " • "), width))
}

// pageIndicator renders "Page X/Y (a-b of n)".
func pageIndicator(offset, page, total int) string {
	if total == 0 || page <= 0 {
		return "Page 1/1 (0 of 0)"
	}
	pages := (total + page - 1) / page
	current := offset/page + 1
	if offset+page >= total {
		current = pages
	}
	end := offset + page
	if end > total {
		end = total
	}
	return fmt.Sprintf("Page %d/%d (%d-%d of %d)", current, pages, offset+1, end, total)
}
