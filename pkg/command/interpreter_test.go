package command

import (
	"context"
	stderrors "errors"
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/flowsketch/pkg/diagram"
	"github.com/matzehuels/flowsketch/pkg/errors"
	"github.com/matzehuels/flowsketch/pkg/layout"
)

type layoutCall struct {
	mode   layout.Mode
	engine string
}

// recordingLayouter records requests and counts stops.
type recordingLayouter struct {
	requests []layoutCall
	stops    int
	err      error
}

func (r *recordingLayouter) Request(mode layout.Mode, engine string) error {
	r.requests = append(r.requests, layoutCall{mode, engine})
	return r.err
}

func (r *recordingLayouter) Stop() { r.stops++ }

type memClipboard struct {
	text string
	err  error
}

func (m *memClipboard) Write(_ context.Context, text string) error {
	if m.err != nil {
		return m.err
	}
	m.text = text
	return nil
}

func newTestInterpreter(opts ...Option) (*Interpreter, *diagram.Store, *recordingLayouter) {
	store := diagram.NewStore()
	lay := &recordingLayouter{}
	opts = append([]Option{WithLogger(log.New(io.Discard))}, opts...)
	return New(store, lay, opts...), store, lay
}

func exec(t *testing.T, in *Interpreter, script string) Report {
	t.Helper()
	return in.Execute(context.Background(), script)
}

func TestScenario(t *testing.T) {
	in, store, _ := newTestInterpreter()

	exec(t, in, "add A")
	g := store.Snapshot()
	if len(g.Nodes) != 1 || g.Nodes[0] != (diagram.Node{ID: "0", Label: "A"}) {
		t.Fatalf("after add A: %+v", g.Nodes)
	}

	exec(t, in, "add B")
	n, _ := store.Snapshot().Node("1")
	if n.Label != "B" || n.Position != (diagram.Position{X: 0, Y: 100}) {
		t.Fatalf("after add B: %+v", n)
	}

	exec(t, in, "ll")
	if !store.Snapshot().HasEdge("0-1") {
		t.Fatal("ll did not create edge 0-1")
	}

	exec(t, in, "color 0 r")
	n, _ = store.Snapshot().Node("0")
	if n.Color != "#e6b8af" {
		t.Fatalf("color 0 r = %q, want #e6b8af", n.Color)
	}

	replay, replayStore, _ := newTestInterpreter()
	exec(t, replay, Serialize(store.Snapshot()))
	assertEquivalent(t, store.Snapshot(), replayStore.Snapshot())
}

func TestIDMonotonicity(t *testing.T) {
	in, store, _ := newTestInterpreter()
	exec(t, in, "add a\nadd b\nadd c\nadd d")
	for i, n := range store.Snapshot().Nodes {
		if want := string(rune('0' + i)); n.ID != want {
			t.Errorf("node %d id = %q, want %q", i, n.ID, want)
		}
	}
}

func TestEdgeDedup(t *testing.T) {
	in, store, _ := newTestInterpreter()
	rep := exec(t, in, "link a b\nlink a b")

	edges := store.Snapshot().Edges
	if len(edges) != 1 || edges[0].ID != "a-b" {
		t.Fatalf("edges = %+v, want exactly a-b", edges)
	}
	diags := rep.Diagnostics()
	if len(diags) != 1 || diags[0].Code != errors.ErrCodeDuplicateEdge || diags[0].Line != 2 {
		t.Errorf("diagnostics = %+v, want DUPLICATE_EDGE on line 2", diags)
	}
}

func TestCascadeDelete(t *testing.T) {
	in, store, _ := newTestInterpreter()
	exec(t, in, "awi x X\nawi y Y\nawi z Z\nlink x y\nlink y x\nlink y z\nremove x")

	g := store.Snapshot()
	if g.HasNode("x") {
		t.Error("node x still present")
	}
	for _, e := range g.Edges {
		if e.Touches("x") {
			t.Errorf("edge %s still references x", e.ID)
		}
	}
	if len(g.Edges) != 1 || g.Edges[0].ID != "y-z" {
		t.Errorf("edges = %+v, want only y-z", g.Edges)
	}
}

func TestBatchContinuesAfterFailure(t *testing.T) {
	in, store, _ := newTestInterpreter()
	rep := exec(t, in, "move bogus 1 2\nadd hello")

	g := store.Snapshot()
	if len(g.Nodes) != 1 || g.Nodes[0].Label != "hello" {
		t.Fatalf("nodes = %+v, want hello", g.Nodes)
	}
	if len(rep.Lines) != 2 || rep.Lines[0].Code != errors.ErrCodeNotFound || !rep.Lines[1].OK() {
		t.Errorf("report = %+v", rep.Lines)
	}
	if rep.Executed() != 1 {
		t.Errorf("Executed() = %d, want 1", rep.Executed())
	}
}

func TestReset(t *testing.T) {
	for _, kw := range []string{"reset", "clear"} {
		t.Run(kw, func(t *testing.T) {
			in, store, _ := newTestInterpreter()
			exec(t, in, "test")
			if store.Snapshot().Empty() {
				t.Fatal("test script produced an empty graph")
			}
			exec(t, in, kw)
			if g := store.Snapshot(); len(g.Nodes) != 0 || len(g.Edges) != 0 {
				t.Errorf("after %s: %+v", kw, g)
			}
		})
	}
}

func TestTestScript(t *testing.T) {
	in, store, _ := newTestInterpreter()
	rep := exec(t, in, "test")

	g := store.Snapshot()
	if len(g.Nodes) != 3 {
		t.Fatalf("got %d nodes, want 3", len(g.Nodes))
	}
	for i, want := range []string{"node 1", "node 2", "node 3"} {
		if g.Nodes[i].Label != want {
			t.Errorf("node %d label = %q, want %q", i, g.Nodes[i].Label, want)
		}
	}
	if len(g.Edges) != 1 || g.Edges[0].ID != "1-2" {
		t.Errorf("edges = %+v, want 1-2", g.Edges)
	}
	if rep.Executed() != 5 {
		t.Errorf("Executed() = %d, want 5 (test plus 4 nested lines)", rep.Executed())
	}
}

func TestDiagnostics(t *testing.T) {
	tests := []struct {
		name   string
		setup  string
		script string
		code   errors.Code
	}{
		{"color too few args", "add a", "color 0", errors.ErrCodeArgCount},
		{"color too many args", "add a", "color 0 r extra", errors.ErrCodeArgCount},
		{"color missing node", "", "color 9 r", errors.ErrCodeNotFound},
		{"awi without label", "", "awi 0", errors.ErrCodeArgCount},
		{"awi bare", "", "awi", errors.ErrCodeArgCount},
		{"awi duplicate", "add a", "awi 0 again", errors.ErrCodeDuplicateNode},
		{"append without text", "add a", "append 0", errors.ErrCodeArgCount},
		{"append missing node", "", "append 3 x", errors.ErrCodeNotFound},
		{"edit without text", "add a", "edit 0", errors.ErrCodeArgCount},
		{"edit missing node", "", "edit 3 x", errors.ErrCodeNotFound},
		{"move too few args", "add a", "move 0 1", errors.ErrCodeArgCount},
		{"move too many args", "add a", "move 0 1 2 3", errors.ErrCodeArgCount},
		{"move non-integer x", "add a", "move 0 x 2", errors.ErrCodeInvalidNumber},
		{"move float y", "add a", "move 0 1 2.5", errors.ErrCodeInvalidNumber},
		{"ll on empty", "", "ll", errors.ErrCodeTooFewNodes},
		{"ll on one node", "add a", "ll", errors.ErrCodeTooFewNodes},
		{"ll duplicate", "add a\nadd b\nll", "ll", errors.ErrCodeDuplicateEdge},
		{"link one arg", "", "link a", errors.ErrCodeArgCount},
		{"unlink one arg", "", "unlink a", errors.ErrCodeArgCount},
		{"unlink missing edge", "", "unlink a b", errors.ErrCodeNotFound},
		{"remove no args", "", "remove", errors.ErrCodeArgCount},
		{"remove two args", "add a", "remove 0 1", errors.ErrCodeArgCount},
		{"remove missing node", "", "remove 0", errors.ErrCodeNotFound},
		{"reset with args", "", "reset now", errors.ErrCodeArgCount},
		{"layout two args", "", "layout a b", errors.ErrCodeArgCount},
		{"copy without clipboard", "", "copy", errors.ErrCodeClipboard},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, store, _ := newTestInterpreter()
			exec(t, in, tt.setup)
			before := store.Snapshot()
			version := store.Version()

			rep := exec(t, in, tt.script)
			diags := rep.Diagnostics()
			if len(diags) != 1 || diags[0].Code != tt.code {
				t.Fatalf("diagnostics = %+v, want one %s", diags, tt.code)
			}
			if diags[0].Message == "" || diags[0].Err == nil {
				t.Error("diagnostic without message or error")
			}
			if store.Version() != version {
				t.Errorf("failed command modified the store: %+v -> %+v", before, store.Snapshot())
			}
		})
	}
}

func TestUnknownCommandsIgnored(t *testing.T) {
	in, store, lay := newTestInterpreter()
	rep := exec(t, in, "frobnicate 1 2\nadd\tx\nADD y\nadd")

	if len(rep.Diagnostics()) != 0 {
		t.Errorf("unknown commands produced diagnostics: %+v", rep.Diagnostics())
	}
	if rep.Ignored() != 4 {
		t.Errorf("Ignored() = %d, want 4", rep.Ignored())
	}
	// A bare "add" has no separating space and is not a command.
	if store.Version() != 0 {
		t.Errorf("store changed: %+v", store.Snapshot())
	}
	if len(lay.requests) != 0 {
		t.Errorf("layout requests = %+v, want none", lay.requests)
	}
}

func TestAddEmptyLabel(t *testing.T) {
	in, store, _ := newTestInterpreter()
	exec(t, in, "add ")

	g := store.Snapshot()
	if len(g.Nodes) != 1 || g.Nodes[0].Label != "" {
		t.Errorf("nodes = %+v, want one unlabelled node", g.Nodes)
	}
}

func TestFreeTextArguments(t *testing.T) {
	in, store, _ := newTestInterpreter()
	exec(t, in, strings.Join([]string{
		"add   padded  label ",
		"awi db Primary  database",
		"awi empty ",
		"append db (replica set)",
		"edit 0 renamed node",
		"link 0 db reads and writes",
		"link db empty",
		"link empty 0 ",
	}, "\n"))

	g := store.Snapshot()
	labels := map[string]string{
		"0":     "renamed node",
		"db":    "Primary  database\n(replica set)",
		"empty": "",
	}
	for id, want := range labels {
		n, ok := g.Node(id)
		if !ok {
			t.Fatalf("node %s missing", id)
		}
		if n.Label != want {
			t.Errorf("node %s label = %q, want %q", id, n.Label, want)
		}
	}

	edgeLabels := map[string]string{"0-db": "reads and writes", "db-empty": "", "empty-0": ""}
	for _, e := range g.Edges {
		want, ok := edgeLabels[e.ID]
		if !ok {
			t.Errorf("unexpected edge %s", e.ID)
			continue
		}
		if e.Label != want {
			t.Errorf("edge %s label = %q, want %q", e.ID, e.Label, want)
		}
	}
	if len(g.Edges) != len(edgeLabels) {
		t.Errorf("got %d edges, want %d", len(g.Edges), len(edgeLabels))
	}
}

func TestAddKeepsFreeTextVerbatim(t *testing.T) {
	in, store, _ := newTestInterpreter()
	exec(t, in, "add   padded  label ")
	if got := store.Snapshot().Nodes[0].Label; got != "  padded  label " {
		t.Errorf("label = %q", got)
	}
}

func TestMoveAndCol(t *testing.T) {
	in, store, _ := newTestInterpreter()
	exec(t, in, "add a\nadd b\nadd c\nmove 0 40 -20\nmove 1 300 50\ncol")

	g := store.Snapshot()
	want := map[string]diagram.Position{
		"0": {X: 40, Y: -20},
		"1": {X: 300, Y: 50},
		"2": {X: 500, Y: -20},
	}
	for _, n := range g.Nodes {
		if n.Position != want[n.ID] {
			t.Errorf("node %s at %+v, want %+v", n.ID, n.Position, want[n.ID])
		}
	}
}

func TestColOnEmptyGraph(t *testing.T) {
	in, store, _ := newTestInterpreter()
	rep := exec(t, in, "col")
	if len(rep.Diagnostics()) != 0 || store.Version() != 0 {
		t.Errorf("col on empty graph: %+v, version %d", rep.Lines, store.Version())
	}
}

func TestColorLiteralAndOverride(t *testing.T) {
	palette := diagram.DefaultPalette().WithOverrides(map[string]string{"r": "#ff0000"})
	in, store, _ := newTestInterpreter(WithPalette(palette))
	exec(t, in, "add a\nadd b\ncolor 0 r\ncolor 1 steelblue")

	g := store.Snapshot()
	if g.Nodes[0].Color != "#ff0000" {
		t.Errorf("node 0 color = %q", g.Nodes[0].Color)
	}
	if g.Nodes[1].Color != "steelblue" {
		t.Errorf("node 1 color = %q", g.Nodes[1].Color)
	}
}

func TestUnlink(t *testing.T) {
	in, store, _ := newTestInterpreter()
	exec(t, in, "link a b\nlink b a\nunlink a b extra")

	g := store.Snapshot()
	if len(g.Edges) != 1 || g.Edges[0].ID != "b-a" {
		t.Errorf("edges = %+v, want only b-a", g.Edges)
	}
}

func TestRemoveDanglingEdges(t *testing.T) {
	in, store, _ := newTestInterpreter()
	rep := exec(t, in, "link ghost a\nremove ghost")
	if len(rep.Diagnostics()) != 0 {
		t.Errorf("diagnostics = %+v", rep.Diagnostics())
	}
	if len(store.Snapshot().Edges) != 0 {
		t.Error("edges touching a missing node were not removed")
	}
}

func TestLayoutRequests(t *testing.T) {
	tests := []struct {
		name   string
		setup  string
		script string
		want   []layoutCall
	}{
		{"add is incremental", "", "add a", []layoutCall{{layout.Incremental, ""}}},
		{"awi is incremental", "", "awi x X", []layoutCall{{layout.Incremental, ""}}},
		{"link is full", "", "link a b", []layoutCall{{layout.Full, ""}}},
		{"ll is full", "add a\nadd b", "ll", []layoutCall{{layout.Full, ""}}},
		{"layout default", "", "layout", []layoutCall{{layout.Full, ""}}},
		{"layout named", "", "layout hierarchy", []layoutCall{{layout.Full, "hierarchy"}}},
		{"duplicate link still requests", "link a b", "link a b", []layoutCall{{layout.Full, ""}}},
		{"duplicate ll still requests", "add a\nadd b\nll", "ll", []layoutCall{{layout.Full, ""}}},
		{"edit does not request", "add a", "edit 0 b", nil},
		{"move does not request", "add a", "move 0 1 1", nil},
		{"remove does not request", "add a", "remove 0", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, _, lay := newTestInterpreter()
			exec(t, in, tt.setup)
			lay.requests = nil

			exec(t, in, tt.script)
			if len(lay.requests) != len(tt.want) {
				t.Fatalf("requests = %+v, want %+v", lay.requests, tt.want)
			}
			for i := range tt.want {
				if lay.requests[i] != tt.want[i] {
					t.Errorf("request %d = %+v, want %+v", i, lay.requests[i], tt.want[i])
				}
			}
		})
	}
}

func TestMutationsStopLayout(t *testing.T) {
	for _, script := range []string{"add x", "awi x X", "edit 0 y", "append 0 y", "move 0 1 1", "color 0 r", "col", "remove 0", "link 0 9", "unlink 0 1", "reset"} {
		t.Run(script, func(t *testing.T) {
			in, _, lay := newTestInterpreter()
			exec(t, in, "add a\nadd b\nll")
			lay.stops = 0

			exec(t, in, script)
			if lay.stops == 0 {
				t.Errorf("%q did not stop the layout process", script)
			}
		})
	}
}

func TestLayoutUnknownEngine(t *testing.T) {
	in, _, lay := newTestInterpreter()
	lay.err = errors.New(errors.ErrCodeUnknownLayout, "unknown layout engine %q", "spiral")

	rep := exec(t, in, "layout spiral")
	diags := rep.Diagnostics()
	if len(diags) != 1 || diags[0].Code != errors.ErrCodeUnknownLayout {
		t.Errorf("diagnostics = %+v, want UNKNOWN_LAYOUT", diags)
	}

	// Implicit requests never turn into diagnostics.
	rep = exec(t, in, "add a")
	if len(rep.Diagnostics()) != 0 {
		t.Errorf("add reported layout failure: %+v", rep.Diagnostics())
	}
}

func TestCopy(t *testing.T) {
	clip := &memClipboard{}
	in, store, _ := newTestInterpreter(WithClipboard(clip))
	exec(t, in, "add a\nadd b\nll\ncopy")
	if clip.text != Serialize(store.Snapshot()) {
		t.Errorf("clipboard = %q", clip.text)
	}

	clip.err = stderrors.New("no terminal")
	rep := exec(t, in, "copy")
	if d := rep.Diagnostics(); len(d) != 1 || d[0].Code != errors.ErrCodeClipboard {
		t.Errorf("diagnostics = %+v, want CLIPBOARD_ERROR", d)
	}
}

func TestCRLFAndBlankLines(t *testing.T) {
	in, store, _ := newTestInterpreter()
	rep := exec(t, in, "add a\r\n\r\n   \nadd b\r\n")
	if len(rep.Lines) != 2 {
		t.Errorf("got %d line results, want 2", len(rep.Lines))
	}
	if rep.Lines[1].Line != 4 {
		t.Errorf("second result line = %d, want 4", rep.Lines[1].Line)
	}
	for _, n := range store.Snapshot().Nodes {
		if strings.ContainsRune(n.Label, '\r') {
			t.Errorf("label %q kept carriage return", n.Label)
		}
	}
}

func TestNilLayouter(t *testing.T) {
	store := diagram.NewStore()
	in := New(store, nil, WithLogger(log.New(io.Discard)))
	rep := in.Execute(context.Background(), "add a\nlayout")
	if rep.Executed() != 2 {
		t.Errorf("Executed() = %d, want 2", rep.Executed())
	}
}

func TestKeywords(t *testing.T) {
	for _, kw := range Keywords() {
		if _, ok := lookup(kw); !ok {
			t.Errorf("keyword %q has no handler", kw)
		}
	}
}

func TestReplay(t *testing.T) {
	in, store, lay := newTestInterpreter()
	rep := in.Replay(context.Background(), "awi a A\nmove a 500 500\nawi b B\nmove b 900 40\nlink a b\nll")
	if len(rep.Diagnostics()) != 1 {
		t.Fatalf("diagnostics = %+v, want the duplicate ll only", rep.Diagnostics())
	}
	if len(lay.requests) != 0 {
		t.Errorf("replay requested layouts: %+v", lay.requests)
	}
	g := store.Snapshot()
	if a, _ := g.Node("a"); a.Position != (diagram.Position{X: 500, Y: 500}) {
		t.Errorf("a at %+v", a.Position)
	}

	// Explicit layout lines still run, and Execute is unaffected afterwards.
	in.Replay(context.Background(), "layout hierarchy")
	exec(t, in, "add c")
	want := []layoutCall{{layout.Full, "hierarchy"}, {layout.Incremental, ""}}
	if len(lay.requests) != 2 || lay.requests[0] != want[0] || lay.requests[1] != want[1] {
		t.Errorf("requests = %+v, want %+v", lay.requests, want)
	}
}

func TestRefuse(t *testing.T) {
	err := errors.New(errors.ErrCodeSessionNotFound, "session closed")
	rep := Refuse(err)

	if rep.Refused() != err {
		t.Errorf("Refused() = %v, want %v", rep.Refused(), err)
	}
	if d := rep.Diagnostics(); len(d) != 1 || d[0].Code != errors.ErrCodeSessionNotFound || d[0].Line != 0 {
		t.Errorf("diagnostics = %+v", d)
	}
	if rep.Ignored() != 0 || rep.Executed() != 0 {
		t.Errorf("Ignored() = %d, Executed() = %d, want 0, 0", rep.Ignored(), rep.Executed())
	}

	in, _, _ := newTestInterpreter()
	if got := exec(t, in, "add a\nmove 9 1 1").Refused(); got != nil {
		t.Errorf("Refused() on an executed batch = %v", got)
	}
}
