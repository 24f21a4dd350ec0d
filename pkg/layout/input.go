package layout

import (
	"strings"
	"unicode/utf8"

	"github.com/matzehuels/flowsketch/pkg/diagram"
)

// Node measuring defaults in pixels.
const (
	DefaultNodeWidth = 172
	DefaultFreeTail  = 2

	charWidth  = 8
	lineHeight = 20
	padX       = 24
	padY       = 16
)

// Size is the rendered size of a node.
type Size struct {
	Width  float64
	Height float64
}

// MeasureFunc estimates the rendered size of a node.
type MeasureFunc func(diagram.Node) Size

// Measure estimates a node's size from its label: at least DefaultNodeWidth
// wide, growing with the longest label line, and one text line high per
// label line.
func Measure(n diagram.Node) Size {
	return measure(n, DefaultNodeWidth)
}

// MeasureMinWidth returns a MeasureFunc like Measure with a different
// minimum width. A non-positive width means DefaultNodeWidth.
func MeasureMinWidth(width float64) MeasureFunc {
	if width <= 0 {
		width = DefaultNodeWidth
	}
	return func(n diagram.Node) Size { return measure(n, width) }
}

func measure(n diagram.Node, minWidth float64) Size {
	lines := strings.Split(n.Label, "\n")
	longest := 0
	for _, l := range lines {
		longest = max(longest, utf8.RuneCountInString(l))
	}
	return Size{
		Width:  max(minWidth, float64(longest*charWidth+padX)),
		Height: float64(len(lines)*lineHeight + padY),
	}
}

// BuildInput converts a snapshot into engine input.
//
// In Incremental mode every node except the last freeTail nodes is pinned.
// Edges with a missing endpoint are left out and returned as dangling.
func BuildInput(g diagram.Graph, mode Mode, freeTail int, measure MeasureFunc) (Input, []diagram.Edge) {
	if measure == nil {
		measure = Measure
	}

	in := Input{Boxes: make([]Box, len(g.Nodes))}
	present := make(map[string]bool, len(g.Nodes))
	for i, n := range g.Nodes {
		size := measure(n)
		in.Boxes[i] = Box{
			ID:       n.ID,
			Width:    size.Width,
			Height:   size.Height,
			Position: n.Position,
			Pinned:   mode == Incremental && i < len(g.Nodes)-freeTail,
		}
		present[n.ID] = true
	}

	var dangling []diagram.Edge
	for _, e := range g.Edges {
		if !present[e.Source] || !present[e.Target] {
			dangling = append(dangling, e)
			continue
		}
		in.Links = append(in.Links, Link{Source: e.Source, Target: e.Target})
	}
	return in, dangling
}
