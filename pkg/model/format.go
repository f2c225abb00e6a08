package model

// BorderNone is the border style that draws nothing.
const BorderNone = "none"

// Border holds one style name per side, e.g. "thin", "thick", "none".
type Border struct {
	Top    string `json:"top,omitempty"`
	Right  string `json:"right,omitempty"`
	Bottom string `json:"bottom,omitempty"`
	Left   string `json:"left,omitempty"`
}

// Format is the presentation of one cell. It is a value type: handing a
// Format out never lets the caller mutate the table it came from.
type Format struct {
	Background string `json:"background,omitempty"`
	Foreground string `json:"foreground,omitempty"`
	Font       string `json:"font,omitempty"`
	Bold       bool   `json:"bold,omitempty"`
	Italic     bool   `json:"italic,omitempty"`
	Align      string `json:"align,omitempty"`
	Wrapping   bool   `json:"wrapping,omitempty"`
	Border     Border `json:"border"`
}

// FormatTable maps a value's FormatIndex to its format.
type FormatTable map[int]Format

// Lookup resolves index, falling back to entry 0 and then to fallback.
func (t FormatTable) Lookup(index int, fallback Format) Format {
	if f, ok := t[index]; ok {
		return f
	}
	if f, ok := t[0]; ok {
		return f
	}
	return fallback
}
