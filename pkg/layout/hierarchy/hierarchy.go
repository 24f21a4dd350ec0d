// Package hierarchy implements a layered layout engine backed by Graphviz.
//
// The engine hands the diagram to Graphviz's dot algorithm as a graph of
// fixed-size boxes, reads the computed centers back out of the laid-out DOT
// text, and converts them to the editor's top-left screen coordinates.
//
// Every pass is a full reflow: pinned boxes are moved like any other, since
// dot has no notion of fixed positions.
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz], which runs Graphviz
// in-process, so no external dot binary is required.
package hierarchy

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
)

// Name is the engine's registry name.
const Name = "hierarchy"

// Graphviz works in points; one pixel maps to one point.
const pointsPerInch = 72

// Config tunes the layered layout. Separations are in pixels.
type Config struct {
	RankSep float64 // Gap between layers
	NodeSep float64 // Gap between boxes within a layer
	RankDir string  // TB, BT, LR or RL
}

// DefaultConfig returns the dagre-like defaults.
func DefaultConfig() Config {
	return Config{RankSep: 50, NodeSep: 50, RankDir: "TB"}
}

// Engine is a layout.Arranger.
type Engine struct {
	cfg Config
}

var _ layout.Arranger = (*Engine)(nil)

// New creates a hierarchy engine. Zero fields fall back to DefaultConfig.
func New(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.RankSep <= 0 {
		cfg.RankSep = def.RankSep
	}
	if cfg.NodeSep <= 0 {
		cfg.NodeSep = def.NodeSep
	}
	switch strings.ToUpper(cfg.RankDir) {
	case "TB", "BT", "LR", "RL":
		cfg.RankDir = strings.ToUpper(cfg.RankDir)
	default:
		cfg.RankDir = def.RankDir
	}
	return &Engine{cfg: cfg}
}

// Name returns "hierarchy".
func (e *Engine) Name() string { return Name }

// Arrange lays out all boxes in one Graphviz pass.
func (e *Engine) Arrange(ctx context.Context, in layout.Input) ([]layout.Placement, error) {
	if len(in.Boxes) == 0 {
		return nil, nil
	}

	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(e.toDOT(in)))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.XDOT, &buf); err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}
	return placements(in, buf.Bytes())
}

// toDOT writes the input as a DOT graph. Boxes are named by index so ids
// never need quoting.
func (e *Engine) toDOT(in layout.Input) string {
	index := make(map[string]int, len(in.Boxes))

	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	fmt.Fprintf(&buf, "  rankdir=%s;\n", e.cfg.RankDir)
	fmt.Fprintf(&buf, "  ranksep=%s;\n", inches(e.cfg.RankSep))
	fmt.Fprintf(&buf, "  nodesep=%s;\n", inches(e.cfg.NodeSep))
	buf.WriteString("  node [shape=box, fixedsize=true, label=\"\"];\n\n")

	for i, b := range in.Boxes {
		index[b.ID] = i
		fmt.Fprintf(&buf, "  n%d [width=%s, height=%s];\n", i, inches(b.Width), inches(b.Height))
	}

	buf.WriteString("\n")
	for _, l := range in.Links {
		s, ok1 := index[l.Source]
		t, ok2 := index[l.Target]
		if !ok1 || !ok2 {
			continue
		}
		fmt.Fprintf(&buf, "  n%d -> n%d;\n", s, t)
	}

	buf.WriteString("}\n")
	return buf.String()
}

func inches(px float64) string {
	return strconv.FormatFloat(px/pointsPerInch, 'f', 4, 64)
}

var (
	bbRe   = regexp.MustCompile(`bb="([-0-9.e]+),([-0-9.e]+),([-0-9.e]+),([-0-9.e]+)"`)
	nodeRe = regexp.MustCompile(`(?m)^\s*n(\d+)\s*\[([^\]]*)\]`)
	posRe  = regexp.MustCompile(`\bpos="([-0-9.e]+),([-0-9.e]+)!?"`)
)

// placements reads node centers from laid-out DOT output. Graphviz puts the
// origin at the bottom left; the editor's is at the top left.
func placements(in layout.Input, out []byte) ([]layout.Placement, error) {
	m := bbRe.FindSubmatch(out)
	if m == nil {
		return nil, fmt.Errorf("layout output has no bounding box")
	}
	top, err := strconv.ParseFloat(string(m[4]), 64)
	if err != nil {
		return nil, fmt.Errorf("bounding box: %w", err)
	}

	ps := make([]layout.Placement, 0, len(in.Boxes))
	for _, nm := range nodeRe.FindAllSubmatch(out, -1) {
		i, err := strconv.Atoi(string(nm[1]))
		if err != nil || i >= len(in.Boxes) {
			continue
		}
		pm := posRe.FindSubmatch(nm[2])
		if pm == nil {
			continue
		}
		x, errX := strconv.ParseFloat(string(pm[1]), 64)
		y, errY := strconv.ParseFloat(string(pm[2]), 64)
		if errX != nil || errY != nil {
			return nil, fmt.Errorf("position of %s: invalid coordinates", in.Boxes[i].ID)
		}
		b := in.Boxes[i]
		ps = append(ps, layout.Placement{
			ID:       b.ID,
			Position: diagram.Position{X: x - b.Width/2, Y: (top - y) - b.Height/2},
		})
	}
	if len(ps) != len(in.Boxes) {
		return nil, fmt.Errorf("layout output has %d positions for %d boxes", len(ps), len(in.Boxes))
	}
	return ps, nil
}
