package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/matzehuels/flowsketch/pkg/command"
	"github.com/matzehuels/flowsketch/pkg/diagram"
)

type graph struct {
	Nodes []node `json:"nodes"`
	Edges []edge `json:"edges"`
}

type node struct {
	ID    string  `json:"id"`
	Label string  `json:"label"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Color string  `json:"color,omitempty"`
}

type edge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label,omitempty"`
}

// WriteJSON encodes a diagram as JSON and writes it to w.
// The output can be re-imported with [ReadJSON].
func WriteJSON(g diagram.Graph, w io.Writer) error {
	out := graph{
		Nodes: make([]node, len(g.Nodes)),
		Edges: make([]edge, len(g.Edges)),
	}
	for i, n := range g.Nodes {
		out.Nodes[i] = node{ID: n.ID, Label: n.Label, X: n.Position.X, Y: n.Position.Y, Color: n.Color}
	}
	for i, e := range g.Edges {
		out.Edges[i] = edge{From: e.Source, To: e.Target, Label: e.Label}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ExportJSON writes a diagram to a JSON file at path.
// This is a convenience wrapper around [WriteJSON] for file-based output.
func ExportJSON(g diagram.Graph, path string) error {
	return writeFile(path, func(w io.Writer) error { return WriteJSON(g, w) })
}

// WriteScript writes the canonical command script of a diagram to w.
func WriteScript(g diagram.Graph, w io.Writer) error {
	if err := command.WriteTo(w, g); err != nil {
		return fmt.Errorf("write script: %w", err)
	}
	return nil
}

// ExportScript writes the canonical command script of a diagram to a file
// at path.
func ExportScript(g diagram.Graph, path string) error {
	return writeFile(path, func(w io.Writer) error { return WriteScript(g, w) })
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
