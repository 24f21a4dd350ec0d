package io

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/matzehuels/flowsketch/pkg/command"
	"github.com/matzehuels/flowsketch/pkg/diagram"
	"github.com/matzehuels/flowsketch/pkg/errors"
)

// Executor runs command-language text. Both *command.Interpreter and
// *session.Session satisfy it.
type Executor interface {
	Execute(ctx context.Context, text string) command.Report
}

// Replayer runs serialized text without implicit layout requests. Both
// *command.Interpreter and *session.Session satisfy it.
type Replayer interface {
	Replay(ctx context.Context, text string) command.Report
}

// Replaying returns an Executor that replays through ex when ex is a
// Replayer, so positions in the text are kept. Otherwise ex is returned.
func Replaying(ex Executor) Executor {
	if r, ok := ex.(Replayer); ok {
		return replayer{r}
	}
	return ex
}

type replayer struct{ Replayer }

func (r replayer) Execute(ctx context.Context, text string) command.Report {
	return r.Replay(ctx, text)
}

// ReadScript reads a command script from r and executes it.
//
// The script is validated as a whole first (size, UTF-8, no NUL bytes);
// after that, individual lines never fail the import: their diagnostics are
// in the returned report. A batch refused as a whole, as by a closed
// session, is returned as an error. ReadScript does not close r.
func ReadScript(ctx context.Context, r io.Reader, ex Executor) (command.Report, error) {
	data, err := io.ReadAll(io.LimitReader(r, errors.MaxScriptBytes+1))
	if err != nil {
		return command.Report{}, fmt.Errorf("read: %w", err)
	}
	text := string(data)
	if err := errors.ValidateScript(text); err != nil {
		return command.Report{}, err
	}
	rep := ex.Execute(ctx, text)
	if err := rep.Refused(); err != nil {
		return command.Report{}, err
	}
	return rep, nil
}

// ImportScript reads a command script file at path and executes it.
func ImportScript(ctx context.Context, path string, ex Executor) (command.Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return command.Report{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadScript(ctx, f, ex)
}

// ReadJSON decodes a JSON diagram from r.
//
// The input must be a JSON object with "nodes" and "edges" arrays:
//
//	{
//	  "nodes": [{"id": "0", "label": "A", "x": 0, "y": 0}],
//	  "edges": [{"from": "0", "to": "0", "label": "self"}]
//	}
//
// ReadJSON returns an error if the JSON is malformed, a node id is empty,
// duplicated or contains whitespace, a node label contains a carriage
// return, an edge label contains a line break, or an edge repeats an
// ordered pair.
// Edges may reference nodes that do not exist. ReadJSON does not close r.
func ReadJSON(r io.Reader) (diagram.Graph, error) {
	var data graph
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return diagram.Graph{}, fmt.Errorf("decode: %w", err)
	}

	var g diagram.Graph
	seen := make(map[string]bool, len(data.Nodes))
	for _, n := range data.Nodes {
		if !isToken(n.ID) {
			return diagram.Graph{}, errors.New(errors.ErrCodeInvalidInput, "node %q: id must be non-empty without whitespace", n.ID)
		}
		if n.Color != "" && !isToken(n.Color) {
			return diagram.Graph{}, errors.New(errors.ErrCodeInvalidInput, "node %s: color %q contains whitespace", n.ID, n.Color)
		}
		if strings.ContainsRune(n.Label, '\r') {
			return diagram.Graph{}, errors.New(errors.ErrCodeInvalidInput, "node %s: label contains a carriage return", n.ID)
		}
		if seen[n.ID] {
			return diagram.Graph{}, errors.New(errors.ErrCodeDuplicateNode, "node %s: duplicate id", n.ID)
		}
		seen[n.ID] = true
		g.Nodes = append(g.Nodes, diagram.Node{
			ID:       n.ID,
			Label:    n.Label,
			Position: diagram.Position{X: n.X, Y: n.Y},
			Color:    n.Color,
		})
	}

	edges := make(map[string]bool, len(data.Edges))
	for _, e := range data.Edges {
		if !isToken(e.From) || !isToken(e.To) {
			return diagram.Graph{}, errors.New(errors.ErrCodeInvalidInput, "edge %q->%q: endpoints must be non-empty without whitespace", e.From, e.To)
		}
		if strings.ContainsAny(e.Label, "\r\n") {
			return diagram.Graph{}, errors.New(errors.ErrCodeInvalidInput, "edge %s->%s: label must be a single line", e.From, e.To)
		}
		ed := diagram.NewEdge(e.From, e.To, e.Label)
		if edges[ed.ID] {
			return diagram.Graph{}, errors.New(errors.ErrCodeDuplicateEdge, "edge %s: duplicate", ed.ID)
		}
		edges[ed.ID] = true
		g.Edges = append(g.Edges, ed)
	}
	return g, nil
}

// isToken reports whether s can appear as a single command argument.
func isToken(s string) bool {
	return s != "" && !strings.ContainsFunc(s, unicode.IsSpace)
}

// ImportJSON reads a JSON diagram file at path.
func ImportJSON(path string) (diagram.Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return diagram.Graph{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadJSON(f)
}

// LoadJSON decodes a JSON diagram from r and replays it through ex as a
// script, so the diagram enters the store the same way a paste does and
// keeps its positions when ex is a [Replayer].
func LoadJSON(ctx context.Context, r io.Reader, ex Executor) (command.Report, error) {
	g, err := ReadJSON(r)
	if err != nil {
		return command.Report{}, err
	}
	rep := Replaying(ex).Execute(ctx, command.Serialize(g))
	if err := rep.Refused(); err != nil {
		return command.Report{}, err
	}
	return rep, nil
}
