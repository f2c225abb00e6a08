package ui

import (
	"os"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/sheetview/pkg/model"
)

// TermProfile holds the detected terminal color profile. Computed once at
// package init so every style helper can branch without re-detecting.
var TermProfile colorprofile.Profile

func init() {
	TermProfile = colorprofile.Detect(os.Stdout, os.Environ())
}

// ThemeBg returns the given hex color for TrueColor terminals and
// lipgloss.NoColor{} otherwise, so 16/256-color terminals keep their own
// background.
func ThemeBg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.TrueColor {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(hex)
}

// ThemeFg returns the given hex color for ANSI256+ terminals and a safe
// ANSI white (color 7) for 16-color or lower terminals.
func ThemeFg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.ANSI256 {
		return lipgloss.ANSIColor(7)
	}
	return lipgloss.Color(hex)
}

type Theme struct {
	Renderer *lipgloss.Renderer

	Primary   lipgloss.AdaptiveColor
	Secondary lipgloss.AdaptiveColor
	Subtext   lipgloss.AdaptiveColor

	// Selection states
	SelectedState   lipgloss.AdaptiveColor
	IncludedState   lipgloss.AdaptiveColor
	ExcludedState   lipgloss.AdaptiveColor
	CompatibleState lipgloss.AdaptiveColor

	Border    lipgloss.AdaptiveColor
	Highlight lipgloss.AdaptiveColor
	Muted     lipgloss.AdaptiveColor
	Danger    lipgloss.AdaptiveColor

	Base     lipgloss.Style
	Cursor   lipgloss.Style
	Header   lipgloss.Style
	Footer   lipgloss.Style
	Pending  lipgloss.Style
	Measure  lipgloss.Style
	TreeLine lipgloss.Style

	// Pre-computed state styles, indexed by the display bits.
	stateStyles map[model.State]lipgloss.Style
}

// DefaultTheme returns the standard Dracula-inspired theme (adaptive)
func DefaultTheme(r *lipgloss.Renderer) Theme {
	t := Theme{
		Renderer: r,

		Primary:   lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"},
		Secondary: lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"},
		Subtext:   lipgloss.AdaptiveColor{Light: "#666666", Dark: "#BFBFBF"},

		SelectedState:   lipgloss.AdaptiveColor{Light: "#007700", Dark: "#50FA7B"},
		IncludedState:   lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#F8F8F2"},
		ExcludedState:   lipgloss.AdaptiveColor{Light: "#888888", Dark: "#6272A4"},
		CompatibleState: lipgloss.AdaptiveColor{Light: "#006080", Dark: "#8BE9FD"},

		Border:    lipgloss.AdaptiveColor{Light: "#AAAAAA", Dark: "#44475A"},
		Highlight: lipgloss.AdaptiveColor{Light: "#E0E0E0", Dark: "#44475A"},
		Muted:     lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"},
		Danger:    lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"},
	}

	t.Base = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#F8F8F2"})

	t.Cursor = r.NewStyle().
		Background(t.Highlight).
		Border(lipgloss.ThickBorder(), false, false, false, true).
		BorderForeground(t.Primary).
		Bold(true)

	t.Header = r.NewStyle().
		Background(t.Primary).
		Foreground(lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#282A36"}).
		Bold(true).
		Padding(0, 1)

	t.Footer = r.NewStyle().Foreground(t.Muted)
	t.Pending = r.NewStyle().Foreground(ThemeFg("#FFB86C")).Bold(true)
	t.Measure = r.NewStyle().Foreground(t.Secondary)
	t.TreeLine = r.NewStyle().Foreground(t.Muted)

	t.stateStyles = map[model.State]lipgloss.Style{
		model.StateSelected:   r.NewStyle().Foreground(t.SelectedState).Bold(true),
		model.StateIncluded:   r.NewStyle().Foreground(t.IncludedState),
		model.StateExcluded:   r.NewStyle().Foreground(t.ExcludedState).Faint(true),
		model.StateCompatible: r.NewStyle().Foreground(t.CompatibleState),
	}
	return t
}

// StateStyle returns the label style for a value state. Selected wins over
// the other bits.
func (t Theme) StateStyle(s model.State) lipgloss.Style {
	switch {
	case s.IsSelected():
		return t.stateStyles[model.StateSelected]
	case s.IsExcluded():
		return t.stateStyles[model.StateExcluded]
	case s.IsCompatible():
		return t.stateStyles[model.StateCompatible]
	case s.IsIncluded():
		return t.stateStyles[model.StateIncluded]
	}
	return t.Base
}

// StateMarker returns the one-cell checkbox glyph for a state.
func StateMarker(s model.State) string {
	switch {
	case s.IsSelected():
		return "■"
	case s.IsExcluded():
		return "×"
	case s.IsCompatible():
		return "◇"
	}
	return "□"
}

// TestTheme returns a theme suitable for use in tests.
func TestTheme() Theme {
	return DefaultTheme(lipgloss.NewRenderer(os.Stdout))
}
