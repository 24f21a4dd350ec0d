package command

import (
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/matzehuels/flowsketch/pkg/diagram"
)

// Serialize renders g in canonical command-language form:
//
//	awi <id> <label>      one per node, in insertion order
//	append <id> <line>    one per further label line
//	move <id> <x> <y>     one per node
//	link <src> <dst> <label>  line breaks in the label become spaces
//	color <id> <color>    one per colored node
//
// Executing the result on an empty store reproduces g.
func Serialize(g diagram.Graph) string {
	var b strings.Builder
	_ = WriteTo(&b, g)
	return b.String()
}

// WriteTo writes the canonical form of g to w.
func WriteTo(w io.Writer, g diagram.Graph) error {
	sw := &scriptWriter{w: w}
	for _, n := range g.Nodes {
		first, more, multiline := strings.Cut(n.Label, "\n")
		sw.line("awi", n.ID, first)
		if multiline {
			for _, l := range strings.Split(more, "\n") {
				sw.line("append", n.ID, l)
			}
		}
		sw.line("move", n.ID, coord(n.Position.X), coord(n.Position.Y))
	}
	for _, e := range g.Edges {
		sw.line("link", e.Source, e.Target, singleLine(e.Label))
	}
	for _, n := range g.Nodes {
		if n.Color != "" {
			sw.line("color", n.ID, n.Color)
		}
	}
	return sw.err
}

// singleLine joins the lines of an edge label with spaces. A link line
// cannot carry a line break, and the text after one would run as a command.
func singleLine(s string) string {
	if !strings.ContainsAny(s, "\r\n") {
		return s
	}
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool { return r == '\r' || r == '\n' }), " ")
}

func coord(v float64) string {
	return strconv.FormatInt(int64(math.Round(v)), 10)
}

// scriptWriter keeps the first write error so callers check once.
type scriptWriter struct {
	w   io.Writer
	err error
}

func (s *scriptWriter) line(parts ...string) {
	if s.err != nil {
		return
	}
	_, s.err = io.WriteString(s.w, strings.Join(parts, " ")+"\n")
}
