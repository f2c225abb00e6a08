package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/glamour"
)

// helpSection groups bindings under a heading in the help overlay.
type helpSection struct {
	title    string
	bindings []key.Binding
}

func (k KeyMap) sections() []helpSection {
	return []helpSection{
		{"Navigation", []key.Binding{k.Up, k.Down, k.PageUp, k.PageDown, k.Top, k.Bottom}},
		{"Selection", []key.Binding{k.Click, k.Toggle, k.ToggleAll, k.Subtree, k.Range, k.Apply, k.Reverse, k.Clear}},
		{"Tree", []key.Binding{k.Expand, k.Collapse, k.ExpandAll, k.CollapseAll}},
		{"View", []key.Binding{k.ShowAll, k.Sort, k.Search, k.NextHit, k.Hide, k.Unhide}},
		{"Other", []key.Binding{k.CopyPath, k.Reload, k.Help, k.Quit}},
	}
}

// helpMarkdown renders the key map as a markdown document.
func helpMarkdown(k KeyMap) string {
	var sb strings.Builder
	sb.WriteString("# Keys\n\n")
	for _, s := range k.sections() {
		fmt.Fprintf(&sb, "## %s\n\n", s.title)
		sb.WriteString("| Key | Action |\n|---|---|\n")
		for _, b := range s.bindings {
			h := b.Help()
			fmt.Fprintf(&sb, "| `%s` | %s |\n", h.Key, h.Desc)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("Unapplied changes are marked in the footer. ")
	sb.WriteString("Press `a` to send them as one batch.\n")
	return sb.String()
}

// renderHelp renders the help document for the given width. If glamour
// fails the raw markdown is shown.
func renderHelp(k KeyMap, width int) string {
	md := helpMarkdown(k)
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}
