package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds every binding the viewer reacts to.
type KeyMap struct {
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Top      key.Binding
	Bottom   key.Binding

	Click     key.Binding
	Toggle    key.Binding
	ToggleAll key.Binding
	Subtree   key.Binding
	Range     key.Binding
	Apply     key.Binding

	Expand      key.Binding
	Collapse    key.Binding
	ExpandAll   key.Binding
	CollapseAll key.Binding

	ShowAll  key.Binding
	Reverse  key.Binding
	Clear    key.Binding
	Sort     key.Binding
	Search   key.Binding
	NextHit  key.Binding
	Hide     key.Binding
	Unhide   key.Binding
	CopyPath key.Binding
	Reload   key.Binding

	Help key.Binding
	Quit key.Binding
}

// DefaultKeyMap returns the standard bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up:       key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
		Down:     key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
		PageUp:   key.NewBinding(key.WithKeys("ctrl+u", "pgup"), key.WithHelp("^u", "page up")),
		PageDown: key.NewBinding(key.WithKeys("ctrl+d", "pgdown"), key.WithHelp("^d", "page down")),
		Top:      key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g", "top")),
		Bottom:   key.NewBinding(key.WithKeys("G", "end"), key.WithHelp("G", "bottom")),

		Click:     key.NewBinding(key.WithKeys(" ", "enter"), key.WithHelp("space", "select")),
		Toggle:    key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "toggle")),
		ToggleAll: key.NewBinding(key.WithKeys("T"), key.WithHelp("T", "toggle all")),
		Subtree:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "select subtree")),
		Range:     key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "mark/select range")),
		Apply:     key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "apply")),

		Expand:      key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l/→", "expand")),
		Collapse:    key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/←", "collapse")),
		ExpandAll:   key.NewBinding(key.WithKeys("X"), key.WithHelp("X", "expand all")),
		CollapseAll: key.NewBinding(key.WithKeys("Z"), key.WithHelp("Z", "collapse all")),

		ShowAll:  key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "show/hide excluded")),
		Reverse:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reverse")),
		Clear:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear")),
		Sort:     key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "sort")),
		Search:   key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		NextHit:  key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next match")),
		Hide:     key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "hide in container")),
		Unhide:   key.NewBinding(key.WithKeys("+"), key.WithHelp("+", "show in container")),
		CopyPath: key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy path")),
		Reload:   key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "reload")),

		Help: key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit: key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp returns the bindings shown in the footer.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Click, k.Apply, k.Search, k.ShowAll, k.Help, k.Quit}
}
