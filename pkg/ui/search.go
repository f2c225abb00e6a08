package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"
)

// searchDebounceMsg fires once typing has paused for the debounce window.
// Only the tick whose seq matches the bar's latest seq is acted on.
type searchDebounceMsg struct {
	seq   int
	query string
}

// SearchBar is the "/" prompt. Typing sends a debounced server-side search
// and jumps the cursor to local fuzzy matches.
type SearchBar struct {
	input    textinput.Model
	active   bool
	seq      int
	debounce time.Duration
	sent     string

	hits []int
	hit  int
}

// NewSearchBar creates an inactive search prompt.
func NewSearchBar(debounce time.Duration) SearchBar {
	ti := textinput.New()
	ti.Prompt = "/"
	ti.Placeholder = "search values..."
	ti.CharLimit = 100
	ti.Width = 30
	return SearchBar{input: ti, debounce: debounce}
}

// Active reports whether the prompt has focus.
func (s *SearchBar) Active() bool { return s.active }

// Query returns the current input.
func (s *SearchBar) Query() string { return strings.TrimSpace(s.input.Value()) }

// Open focuses the prompt, keeping the last query for editing.
func (s *SearchBar) Open() tea.Cmd {
	s.active = true
	return s.input.Focus()
}

// Close blurs the prompt.
func (s *SearchBar) Close() {
	s.active = false
	s.input.Blur()
}

// SetValue replaces the query.
func (s *SearchBar) SetValue(q string) {
	s.input.SetValue(q)
}

// Update feeds a key to the input. When the query changed it returns a tick
// that fires after the debounce window.
func (s *SearchBar) Update(msg tea.Msg) tea.Cmd {
	before := s.input.Value()
	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	if s.input.Value() == before {
		return cmd
	}
	return tea.Batch(cmd, s.schedule())
}

// schedule starts a new debounce window, invalidating older ticks.
func (s *SearchBar) schedule() tea.Cmd {
	s.seq++
	seq, query := s.seq, s.Query()
	if s.debounce <= 0 {
		return func() tea.Msg { return searchDebounceMsg{seq: seq, query: query} }
	}
	return tea.Tick(s.debounce, func(time.Time) tea.Msg {
		return searchDebounceMsg{seq: seq, query: query}
	})
}

// due reports whether msg is the latest debounce tick and its query differs
// from what was last sent.
func (s *SearchBar) due(msg searchDebounceMsg) bool {
	if msg.seq != s.seq || msg.query == s.sent {
		return false
	}
	s.sent = msg.query
	return true
}

// match ranks rows against the query and remembers the hit order.
func (s *SearchBar) match(rows []Row) {
	s.hits = s.hits[:0]
	s.hit = 0
	query := s.Query()
	if query == "" || len(rows) == 0 {
		return
	}
	searchStrings := make([]string, len(rows))
	for i, r := range rows {
		searchStrings[i] = r.Value.DisplayLabel() + " " + r.Value.Value
	}
	for _, m := range fuzzy.Find(query, searchStrings) {
		s.hits = append(s.hits, m.Index)
	}
}

// current returns the row index of the active hit, or -1.
func (s *SearchBar) current() int {
	if len(s.hits) == 0 {
		return -1
	}
	return s.hits[s.hit]
}

// next advances to the following hit, wrapping around.
func (s *SearchBar) next() int {
	if len(s.hits) == 0 {
		return -1
	}
	s.hit = (s.hit + 1) % len(s.hits)
	return s.hits[s.hit]
}

// View renders the prompt line.
func (s *SearchBar) View(t Theme) string {
	v := s.input.View()
	if n := len(s.hits); n > 0 && s.Query() != "" {
		v += t.Footer.Render(" " + matchCount(s.hit+1, n))
	}
	return v
}

func matchCount(i, n int) string {
	return fmt.Sprintf("[%d/%d]", i, n)
}
