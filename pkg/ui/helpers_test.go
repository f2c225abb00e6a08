package ui

import (
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/sheetview/pkg/model"
	"github.com/vanderheijden86/sheetview/pkg/selection"
)

func TestAlignCell(t *testing.T) {
	tests := []struct {
		in    string
		width int
		align string
		want  string
	}{
		{"ab", 5, "", "ab   "},
		{"ab", 5, "right", "   ab"},
		{"ab", 5, "Center", " ab  "},
		{"abcdef", 4, "left", "abc…"},
		{"日本語", 4, "", "日… "},
	}
	for _, tt := range tests {
		got := alignCell(tt.in, tt.width, tt.align)
		if got != tt.want {
			t.Errorf("alignCell(%q, %d, %q) = %q, want %q", tt.in, tt.width, tt.align, got, tt.want)
		}
		if w := runewidth.StringWidth(got); w > tt.width {
			t.Errorf("alignCell(%q) width %d exceeds %d", tt.in, w, tt.width)
		}
	}
}

func TestMeasureFraction(t *testing.T) {
	tests := []struct {
		v, lo, hi, want float64
	}{
		{5, 0, 10, 0.5},
		{-1, 0, 10, 0},
		{20, 0, 10, 1},
		{3, 3, 3, 1},
		{0, 0, 0, 0},
	}
	for _, tt := range tests {
		if got := measureFraction(tt.v, tt.lo, tt.hi); got != tt.want {
			t.Errorf("measureFraction(%v, %v, %v) = %v, want %v", tt.v, tt.lo, tt.hi, got, tt.want)
		}
	}
}

func TestRenderMiniBar(t *testing.T) {
	theme := TestTheme()
	bar := stripANSI(RenderMiniBar(0.5, 10, theme))
	if strings.Count(bar, "█") != 5 || strings.Count(bar, "░") != 5 {
		t.Errorf("half bar = %q", bar)
	}
	if RenderMiniBar(1, 0, theme) != "" {
		t.Error("zero width bar should be empty")
	}
}

func TestIsHexColor(t *testing.T) {
	for _, c := range []string{"#FFAA00", "#abcdef"} {
		if !isHexColor(c) {
			t.Errorf("%q should be a hex color", c)
		}
	}
	for _, c := range []string{"", "red", "#FFF", "#GGGGGG", "FFAA000"} {
		if isHexColor(c) {
			t.Errorf("%q should not be a hex color", c)
		}
	}
}

func TestStateMarker(t *testing.T) {
	tests := []struct {
		state model.State
		want  string
	}{
		{0, "□"},
		{model.StateIncluded, "□"},
		{model.StateSelected | model.StateExcluded, "■"},
		{model.StateExcluded, "×"},
		{model.StateCompatible, "◇"},
	}
	for _, tt := range tests {
		if got := StateMarker(tt.state); got != tt.want {
			t.Errorf("StateMarker(%v) = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestRenderRowOthers(t *testing.T) {
	a := listAssembly("sales", 0)
	a.List.Values = append(a.List.Values, &model.Value{Value: "__others__", Others: true})
	a.List.Index()
	m := newTestModel(t, a, selection.Deps{}, Options{})
	var found bool
	for _, r := range m.Rows() {
		if r.Value.Others {
			found = true
			line := stripANSI(m.renderRow(r, 40, 0, 0, false))
			if !strings.Contains(line, "(others)") {
				t.Errorf("others row = %q", line)
			}
			if w := runewidth.StringWidth(line); w != 40 {
				t.Errorf("row width = %d, want 40", w)
			}
		}
	}
	if !found {
		t.Fatal("others row missing")
	}
}
