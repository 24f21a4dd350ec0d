package diagram

import (
	"maps"
	"slices"
)

// Palette maps single-character quick-color tokens to color values.
type Palette map[string]string

// DefaultPalette returns the seven quick colors: pastel red, orange, yellow,
// green, blue, indigo and violet.
func DefaultPalette() Palette {
	return Palette{
		"r": "#e6b8af",
		"o": "#fce5cd",
		"y": "#fff2cc",
		"g": "#d9ead3",
		"b": "#c9daf8",
		"i": "#d9d2e9",
		"v": "#ead1dc",
	}
}

// Resolve returns the palette value for a quick-color token, or the value
// itself when it is not a token.
func (p Palette) Resolve(value string) string {
	if c, ok := p[value]; ok {
		return c
	}
	return value
}

// WithOverrides returns a copy of the palette with overrides applied.
func (p Palette) WithOverrides(overrides map[string]string) Palette {
	out := maps.Clone(p)
	if out == nil {
		out = Palette{}
	}
	maps.Copy(out, overrides)
	return out
}

// Tokens returns the palette tokens in sorted order.
func (p Palette) Tokens() []string {
	return slices.Sorted(maps.Keys(p))
}
