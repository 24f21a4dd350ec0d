package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/flowsketch/pkg/diagram"
	"github.com/matzehuels/flowsketch/pkg/layout"
	"github.com/matzehuels/flowsketch/pkg/render"
)

// Options configures diagram rendering.
type Options struct {
	// Measure sizes the node boxes. Defaults to [layout.Measure], so
	// rendered boxes match what the layout engines saw.
	Measure layout.MeasureFunc

	// FontSize is the label size in points. Defaults to 14.
	FontSize int
}

// ToDOT converts a diagram to Graphviz DOT with every node pinned at its
// stored position. The resulting DOT string can be rendered using
// [RenderSVG], [RenderPDF], or [RenderPNG].
//
// Edges whose source or target no longer exists are left out.
func ToDOT(g diagram.Graph, opts Options) string {
	measure := opts.Measure
	if measure == nil {
		measure = layout.Measure
	}
	fontSize := opts.FontSize
	if fontSize <= 0 {
		fontSize = 14
	}

	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  inputscale=72;\n")
	buf.WriteString("  splines=true;\n")
	fmt.Fprintf(&buf, "  node [shape=box, style=\"rounded,filled\", fillcolor=white, fixedsize=true, fontsize=%d];\n", fontSize)
	fmt.Fprintf(&buf, "  edge [fontsize=%d];\n", max(fontSize-2, 1))
	buf.WriteString("\n")

	present := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		present[n.ID] = true
		fmt.Fprintf(&buf, "  %s [%s];\n", quote(n.ID), strings.Join(fmtAttrs(n, measure(n)), ", "))
	}

	buf.WriteString("\n")
	for _, e := range g.Edges {
		if !present[e.Source] || !present[e.Target] {
			continue
		}
		if e.Label != "" {
			fmt.Fprintf(&buf, "  %s -> %s [label=%s];\n", quote(e.Source), quote(e.Target), quote(e.Label))
		} else {
			fmt.Fprintf(&buf, "  %s -> %s;\n", quote(e.Source), quote(e.Target))
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

// fmtAttrs pins the node's center. Graphviz's y axis points up.
func fmtAttrs(n diagram.Node, size layout.Size) []string {
	cx := n.Position.X + size.Width/2
	cy := -(n.Position.Y + size.Height/2)
	attrs := []string{
		"label=" + quote(n.Label),
		fmt.Sprintf("pos=\"%s,%s!\"", num(cx), num(cy)),
		"width=" + num(size.Width/72),
		"height=" + num(size.Height/72),
	}
	if n.Color != "" {
		attrs = append(attrs, "fillcolor="+quote(n.Color))
	}
	return attrs
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var dotEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\r", "", "\n", `\n`)

// quote renders s as a DOT string. Unlike %q it keeps non-ASCII text as-is,
// which Graphviz reads as UTF-8.
func quote(s string) string {
	return `"` + dotEscaper.Replace(s) + `"`
}

// RenderSVG renders a DOT graph produced by [ToDOT] to SVG using the neato
// engine, which honors pinned positions.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()
	gv.SetLayout(graphviz.NEATO)

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([-0-9.]+)\s+([-0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	newSvg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(newSvg))
}

// RenderPDF renders a DOT graph as PDF via SVG conversion.
// Requires librsvg: brew install librsvg (macOS), apt install librsvg2-bin (Linux).
func RenderPDF(ctx context.Context, dot string) ([]byte, error) {
	svg, err := RenderSVG(ctx, dot)
	if err != nil {
		return nil, err
	}
	return render.ToPDF(ctx, svg)
}

// RenderPNG renders a DOT graph as PNG via SVG conversion. A scale of 2.0
// produces a 2x resolution image.
// Requires librsvg: brew install librsvg (macOS), apt install librsvg2-bin (Linux).
func RenderPNG(ctx context.Context, dot string, scale float64) ([]byte, error) {
	svg, err := RenderSVG(ctx, dot)
	if err != nil {
		return nil, err
	}
	return render.ToPNG(ctx, svg, scale)
}
