package hierarchy

import (
	"context"
	"strings"
	"testing"

	"github.com/matzehuels/flowsketch/pkg/diagram"
	"github.com/matzehuels/flowsketch/pkg/layout"
)

func sampleInput() layout.Input {
	return layout.Input{
		Boxes: []layout.Box{
			{ID: "0", Width: 172, Height: 36},
			{ID: "1", Width: 172, Height: 36, Pinned: true},
			{ID: "2", Width: 172, Height: 36},
		},
		Links: []layout.Link{{Source: "0", Target: "1"}, {Source: "0", Target: "2"}},
	}
}

func TestToDOT_Basic(t *testing.T) {
	dot := New(Config{}).toDOT(sampleInput())

	for _, want := range []string{
		"digraph G",
		"rankdir=TB;",
		"fixedsize=true",
		"n0 [width=2.3889, height=0.5000];",
		"n0 -> n1;",
		"n0 -> n2;",
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("ToDOT() missing %q in:\n%s", want, dot)
		}
	}
}

func TestNew_Defaults(t *testing.T) {
	tests := []struct {
		in   Config
		want Config
	}{
		{Config{}, DefaultConfig()},
		{Config{RankSep: 80, NodeSep: 10, RankDir: "lr"}, Config{RankSep: 80, NodeSep: 10, RankDir: "LR"}},
		{Config{RankDir: "diagonal"}, DefaultConfig()},
	}
	for _, tt := range tests {
		if got := New(tt.in).cfg; got != tt.want {
			t.Errorf("New(%+v).cfg = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestPlacements_ConvertsOrigin(t *testing.T) {
	out := []byte(`digraph G {
	graph [bb="0,0,380,136",
		nodesep=0.6944,
		rankdir=TB
	];
	node [fixedsize=true, label="", shape=box];
	n0	[height=0.5000, pos="190,118", width=2.3889];
	n1	[height=0.5000, pos="86,18", width=2.3889];
	n2	[height=0.5000,
		pos="294,18",
		width=2.3889];
	n0 -> n1	[pos="e,114.05,36.104 161.95,99.697 150.11,84.25 136.14,66.008 124.26,50.511"];
	n0 -> n2	[pos="e,265.95,36.104 218.05,99.697 229.89,84.25 243.86,66.008 255.74,50.511"];
}
`)
	ps, err := placements(sampleInput(), out)
	if err != nil {
		t.Fatalf("placements: %v", err)
	}
	want := map[string]diagram.Position{
		"0": {X: 104, Y: 0},
		"1": {X: 0, Y: 100},
		"2": {X: 208, Y: 100},
	}
	if len(ps) != len(want) {
		t.Fatalf("got %d placements, want %d", len(ps), len(want))
	}
	for _, p := range ps {
		if p.Position != want[p.ID] {
			t.Errorf("placement %s = %+v, want %+v", p.ID, p.Position, want[p.ID])
		}
	}
}

func TestPlacements_Errors(t *testing.T) {
	tests := []struct {
		name string
		out  string
	}{
		{"no bounding box", `digraph G { n0 [pos="1,1"]; }`},
		{"missing node", `digraph G { graph [bb="0,0,10,10"]; n0 [pos="1,1"]; }`},
	}
	in := layout.Input{Boxes: []layout.Box{{ID: "a"}, {ID: "b"}}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := placements(in, []byte(tt.out)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestArrange_Layered(t *testing.T) {
	ps, err := New(Config{}).Arrange(context.Background(), sampleInput())
	if err != nil {
		t.Fatalf("Arrange: %v", err)
	}
	pos := make(map[string]diagram.Position, len(ps))
	for _, p := range ps {
		pos[p.ID] = p.Position
	}
	if len(pos) != 3 {
		t.Fatalf("got %d placements, want 3", len(pos))
	}
	// Parent above both children; pinned child moved like any other.
	if pos["0"].Y >= pos["1"].Y || pos["0"].Y >= pos["2"].Y {
		t.Errorf("parent not above children: %+v", pos)
	}
	if pos["1"].Y != pos["2"].Y {
		t.Errorf("children on different ranks: %+v", pos)
	}
	if pos["1"].X == pos["2"].X {
		t.Errorf("children overlap: %+v", pos)
	}
}

func TestArrange_Empty(t *testing.T) {
	ps, err := New(Config{}).Arrange(context.Background(), layout.Input{})
	if err != nil || ps != nil {
		t.Errorf("Arrange(empty) = %v, %v", ps, err)
	}
}
