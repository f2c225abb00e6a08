package ui

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
	"gonum.org/v1/gonum/floats"

	"github.com/vanderheijden86/sheetview/pkg/model"
	"github.com/vanderheijden86/sheetview/pkg/selection"
)

const (
	measureBarWidth   = 10
	measureLabelWidth = 10
)

// Row is one rendered line of the selector.
type Row struct {
	Value  *model.Value
	Depth  int
	Folder bool
	Open   bool
	Path   string
}

// buildRows turns the controller's visible values into display rows.
func buildRows(c selection.Controller) []Row {
	if c == nil {
		return nil
	}
	values := c.VisibleValues()
	rows := make([]Row, 0, len(values))
	tc, isTree := c.(*selection.TreeController)
	for _, v := range values {
		r := Row{Value: v, Path: v.DisplayLabel()}
		if isTree {
			r.Depth = v.Level
			r.Path = tc.Path(v)
			if n := tc.Node(v); n != nil && n.Kind == model.KindFolder {
				r.Folder = true
				r.Open = tc.IsOpen(v)
			}
		}
		rows = append(rows, r)
	}
	return rows
}

// measureBounds returns the range measure bars are scaled to.
func measureBounds(c selection.Controller, rows []Row) (lo, hi float64, ok bool) {
	if lc, isList := c.(*selection.ListController); isList && lc.Model() != nil {
		return lc.Model().MeasureBounds()
	}
	var measures []float64
	for _, r := range rows {
		if r.Value.HasMeasure() {
			measures = append(measures, *r.Value.MeasureValue)
		}
	}
	if len(measures) == 0 {
		return 0, 0, false
	}
	return floats.Min(measures), floats.Max(measures), true
}

// expandIndicator returns the folder glyph for a row.
func expandIndicator(r Row) string {
	if !r.Folder {
		return "•"
	}
	if r.Open {
		return "▾"
	}
	return "▸"
}

// renderRow renders one row to exactly width cells (before cursor styling).
func (m *Model) renderRow(r Row, width int, lo, hi float64, hasMeasure bool) string {
	theme := m.theme
	v := r.Value

	var prefix strings.Builder
	prefix.WriteString(StateMarker(v.State))
	prefix.WriteString(" ")
	if m.isTree() {
		prefix.WriteString(strings.Repeat("  ", r.Depth))
		prefix.WriteString(expandIndicator(r))
		prefix.WriteString(" ")
	}
	prefixText := prefix.String()

	var tail string
	tailWidth := 0
	if hasMeasure {
		tailWidth = measureLabelWidth + 1 + measureBarWidth + 1
		if v.HasMeasure() {
			label := v.MeasureLabel
			if label == "" {
				label = fmt.Sprintf("%.4g", *v.MeasureValue)
			}
			tail = " " + alignCell(label, measureLabelWidth, "right") + " " +
				RenderMiniBar(measureFraction(*v.MeasureValue, lo, hi), measureBarWidth, theme)
		} else {
			tail = strings.Repeat(" ", tailWidth)
		}
	}

	labelWidth := width - runewidth.StringWidth(prefixText) - tailWidth
	if labelWidth < 1 {
		labelWidth = 1
	}

	format := m.ctrl.CellFormat(v)
	label := v.DisplayLabel()
	if v.Others {
		label = "(others)"
	} else if v.More {
		label = "(more…)"
	}
	label = alignCell(label, labelWidth, format.Align)
	style := formatStyle(theme.StateStyle(v.State), format)

	return theme.TreeLine.Render(prefixText) + style.Render(label) + tail
}
