package command

import (
	"context"
	stderrors "errors"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/flowsketch/pkg/diagram"
	"github.com/matzehuels/flowsketch/pkg/errors"
	"github.com/matzehuels/flowsketch/pkg/layout"
	"github.com/matzehuels/flowsketch/pkg/observability"
)

// TestScript is the canned sequence run by the test command.
const TestScript = "add node 1\nadd node 2\nadd node 3\nll"

// Clipboard receives the serialized diagram on copy.
type Clipboard interface {
	Write(ctx context.Context, text string) error
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithLogger sets the logger diagnostics are written to.
func WithLogger(l *log.Logger) Option {
	return func(i *Interpreter) {
		if l != nil {
			i.logger = l
		}
	}
}

// WithPlacer sets the placement heuristic for new nodes and col.
func WithPlacer(p diagram.Placer) Option {
	return func(i *Interpreter) { i.placer = p }
}

// WithPalette sets the quick-color palette used by color.
func WithPalette(p diagram.Palette) Option {
	return func(i *Interpreter) {
		if p != nil {
			i.palette = p
		}
	}
}

// WithClipboard sets the clipboard used by copy.
func WithClipboard(c Clipboard) Option {
	return func(i *Interpreter) { i.clipboard = c }
}

// Interpreter executes command-language text against a diagram store.
//
// An Interpreter is not safe for concurrent use. Hosts serialize calls to
// Execute, which is the event-loop discipline the store relies on.
type Interpreter struct {
	store     *diagram.Store
	layouter  layout.Requester
	logger    *log.Logger
	placer    diagram.Placer
	palette   diagram.Palette
	clipboard Clipboard

	replaying bool
}

// New creates an interpreter. A nil layouter disables layout requests.
func New(store *diagram.Store, layouter layout.Requester, opts ...Option) *Interpreter {
	if layouter == nil {
		layouter = layout.Nop{}
	}
	i := &Interpreter{
		store:    store,
		layouter: layouter,
		logger:   log.Default(),
		placer:   diagram.DefaultPlacer(),
		palette:  diagram.DefaultPalette(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Execute runs every line of text in order. A line that fails validation is
// reported and skipped; the batch always runs to the end.
func (i *Interpreter) Execute(ctx context.Context, text string) Report {
	var rep Report
	i.run(ctx, text, &rep)
	return rep
}

// Replay runs text like Execute but makes no implicit layout requests, so
// the positions set by move lines survive. It is the path for text produced
// by Serialize. An explicit layout line still starts a layout.
func (i *Interpreter) Replay(ctx context.Context, text string) Report {
	i.replaying = true
	defer func() { i.replaying = false }()
	return i.Execute(ctx, text)
}

func (i *Interpreter) run(ctx context.Context, text string, rep *Report) {
	for n, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		i.line(ctx, n+1, line, rep)
	}
}

// =============================================================================
// Dispatch
// =============================================================================

// call is one dispatched line.
type call struct {
	rest    string // text after the keyword's separating space
	hasRest bool   // false for a bare keyword
	rep     *Report
}

// fields returns the whitespace-separated arguments after the keyword.
func (c call) fields() []string {
	return strings.FieldsFunc(c.rest, unicode.IsSpace)
}

type handler func(i *Interpreter, ctx context.Context, c call) *errors.Error

var keywords = []string{
	"test", "layout", "reset", "clear", "copy", "col", "color", "add",
	"awi", "append", "edit", "move", "ll", "link", "unlink", "remove",
}

// Keywords returns the recognized command keywords.
func Keywords() []string {
	return slices.Clone(keywords)
}

func lookup(keyword string) (handler, bool) {
	switch keyword {
	case "test":
		return (*Interpreter).test, true
	case "layout":
		return (*Interpreter).layout, true
	case "reset", "clear":
		return (*Interpreter).reset, true
	case "copy":
		return (*Interpreter).copy, true
	case "col":
		return (*Interpreter).col, true
	case "color":
		return (*Interpreter).color, true
	case "add":
		return (*Interpreter).add, true
	case "awi":
		return (*Interpreter).awi, true
	case "append":
		return (*Interpreter).appendLabel, true
	case "edit":
		return (*Interpreter).edit, true
	case "move":
		return (*Interpreter).move, true
	case "ll":
		return (*Interpreter).linkLast, true
	case "link":
		return (*Interpreter).link, true
	case "unlink":
		return (*Interpreter).unlink, true
	case "remove":
		return (*Interpreter).remove, true
	}
	return nil, false
}

func (i *Interpreter) line(ctx context.Context, n int, text string, rep *Report) {
	keyword, rest, hasRest := strings.Cut(text, " ")
	h, ok := lookup(keyword)
	if keyword == "add" && !hasRest {
		// add is only a command with its separating space.
		ok = false
	}
	if !ok {
		i.logger.Debug("ignoring unknown command", "line", n, "text", text)
		rep.add(LineResult{Line: n, Text: text})
		return
	}

	res := LineResult{Line: n, Text: text, Command: keyword}
	idx := len(rep.Lines)
	rep.add(res)

	start := time.Now()
	err := h(i, ctx, call{rest: rest, hasRest: hasRest, rep: rep})
	observability.Command().OnCommand(ctx, keyword, time.Since(start), errOrNil(err))
	if err != nil {
		i.logger.Warn(err.Message, "line", n, "command", keyword, "code", err.Code)
		res.Err = err
		res.Code = err.Code
		res.Message = err.Message
		rep.Lines[idx] = res
	}
}

func errOrNil(err *errors.Error) error {
	if err == nil {
		return nil
	}
	return err
}

// noArgs rejects arguments on commands that take none.
func noArgs(keyword string, c call) *errors.Error {
	if c.hasRest && strings.TrimSpace(c.rest) != "" {
		return errors.New(errors.ErrCodeArgCount, "%s takes no arguments", keyword)
	}
	return nil
}

// requestLayout asks for a layout after a structural change. Failures are
// logged by the orchestrator and do not affect the command's outcome.
func (i *Interpreter) requestLayout(mode layout.Mode) {
	if i.replaying {
		return
	}
	if err := i.layouter.Request(mode, ""); err != nil {
		i.logger.Debug("layout request failed", "mode", mode, "err", err)
	}
}

// =============================================================================
// Session commands
// =============================================================================

func (i *Interpreter) test(ctx context.Context, c call) *errors.Error {
	if err := noArgs("test", c); err != nil {
		return err
	}
	i.run(ctx, TestScript, c.rep)
	return nil
}

func (i *Interpreter) layout(_ context.Context, c call) *errors.Error {
	args := c.fields()
	if len(args) > 1 {
		return errors.New(errors.ErrCodeArgCount, "layout expects at most 1 argument, got %d", len(args))
	}
	engine := ""
	if len(args) == 1 {
		engine = args[0]
	}
	if err := i.layouter.Request(layout.Full, engine); err != nil {
		var e *errors.Error
		if stderrors.As(err, &e) {
			return e
		}
		return errors.Wrap(errors.ErrCodeLayoutFailed, err, "layout %s", engine)
	}
	return nil
}

func (i *Interpreter) reset(_ context.Context, c call) *errors.Error {
	if err := noArgs("reset", c); err != nil {
		return err
	}
	i.layouter.Stop()
	i.store.ReplaceEdges(func([]diagram.Edge) []diagram.Edge { return nil })
	i.store.ReplaceNodes(func([]diagram.Node) []diagram.Node { return nil })
	return nil
}

func (i *Interpreter) copy(ctx context.Context, c call) *errors.Error {
	if err := noArgs("copy", c); err != nil {
		return err
	}
	if i.clipboard == nil {
		return errors.New(errors.ErrCodeClipboard, "no clipboard configured")
	}
	if err := i.clipboard.Write(ctx, Serialize(i.store.Snapshot())); err != nil {
		return errors.Wrap(errors.ErrCodeClipboard, err, "copy to clipboard")
	}
	return nil
}

// =============================================================================
// Node commands
// =============================================================================

func (i *Interpreter) add(_ context.Context, c call) *errors.Error {
	i.layouter.Stop()
	i.store.ReplaceNodes(func(ns []diagram.Node) []diagram.Node {
		return append(ns, diagram.Node{
			ID:       diagram.NextID(ns),
			Label:    c.rest,
			Position: i.placer.PlaceNew(ns),
		})
	})
	i.requestLayout(layout.Incremental)
	return nil
}

func (i *Interpreter) awi(_ context.Context, c call) *errors.Error {
	args, label, hasText, ok := leadingArgs(c.rest, 1)
	if !ok || !hasText {
		return errors.New(errors.ErrCodeArgCount, "awi expects an id and a label")
	}
	id := args[0]
	if i.store.Snapshot().HasNode(id) {
		return errors.New(errors.ErrCodeDuplicateNode, "node %s already exists", id)
	}

	i.layouter.Stop()
	i.store.ReplaceNodes(func(ns []diagram.Node) []diagram.Node {
		return append(ns, diagram.Node{ID: id, Label: label, Position: i.placer.PlaceNew(ns)})
	})
	i.requestLayout(layout.Incremental)
	return nil
}

func (i *Interpreter) appendLabel(_ context.Context, c call) *errors.Error {
	args, text, hasText, ok := leadingArgs(c.rest, 1)
	if !ok || !hasText {
		return errors.New(errors.ErrCodeArgCount, "append expects an id and text")
	}
	return i.updateNode(args[0], func(n *diagram.Node) {
		n.Label += "\n" + text
	})
}

func (i *Interpreter) edit(_ context.Context, c call) *errors.Error {
	args, text, hasText, ok := leadingArgs(c.rest, 1)
	if !ok || !hasText {
		return errors.New(errors.ErrCodeArgCount, "edit expects an id and a label")
	}
	return i.updateNode(args[0], func(n *diagram.Node) {
		n.Label = text
	})
}

func (i *Interpreter) move(_ context.Context, c call) *errors.Error {
	args := c.fields()
	if len(args) != 3 {
		return errors.New(errors.ErrCodeArgCount, "move expects 3 arguments, got %d", len(args))
	}
	x, err := strconv.Atoi(args[1])
	if err != nil {
		return errors.New(errors.ErrCodeInvalidNumber, "move: x %q is not an integer", args[1])
	}
	y, err := strconv.Atoi(args[2])
	if err != nil {
		return errors.New(errors.ErrCodeInvalidNumber, "move: y %q is not an integer", args[2])
	}
	return i.updateNode(args[0], func(n *diagram.Node) {
		n.Position = diagram.Position{X: float64(x), Y: float64(y)}
	})
}

func (i *Interpreter) color(_ context.Context, c call) *errors.Error {
	args := c.fields()
	if len(args) != 2 {
		return errors.New(errors.ErrCodeArgCount, "color expects 2 arguments, got %d", len(args))
	}
	value := i.palette.Resolve(args[1])
	return i.updateNode(args[0], func(n *diagram.Node) {
		n.Color = value
	})
}

func (i *Interpreter) col(_ context.Context, c call) *errors.Error {
	if err := noArgs("col", c); err != nil {
		return err
	}
	if len(i.store.Snapshot().Nodes) == 0 {
		return nil
	}
	i.layouter.Stop()
	i.store.ReplaceNodes(func(ns []diagram.Node) []diagram.Node {
		if pos, ok := i.placer.Column(ns); ok {
			ns[len(ns)-1].Position = pos
		}
		return ns
	})
	return nil
}

func (i *Interpreter) remove(_ context.Context, c call) *errors.Error {
	args := c.fields()
	if len(args) != 1 {
		return errors.New(errors.ErrCodeArgCount, "remove expects 1 argument, got %d", len(args))
	}
	id := args[0]
	g := i.store.Snapshot()
	touched := false
	for _, e := range g.Edges {
		if e.Touches(id) {
			touched = true
			break
		}
	}
	if !g.HasNode(id) && !touched {
		return errors.New(errors.ErrCodeNotFound, "node %s not found", id)
	}

	i.layouter.Stop()
	i.store.ReplaceNodes(func(ns []diagram.Node) []diagram.Node {
		return slices.DeleteFunc(ns, func(n diagram.Node) bool { return n.ID == id })
	})
	if touched {
		i.store.ReplaceEdges(func(es []diagram.Edge) []diagram.Edge {
			return slices.DeleteFunc(es, func(e diagram.Edge) bool { return e.Touches(id) })
		})
	}
	return nil
}

// updateNode applies fn to the node with the given id.
func (i *Interpreter) updateNode(id string, fn func(*diagram.Node)) *errors.Error {
	if !i.store.Snapshot().HasNode(id) {
		return errors.New(errors.ErrCodeNotFound, "node %s not found", id)
	}
	i.layouter.Stop()
	i.store.ReplaceNodes(func(ns []diagram.Node) []diagram.Node {
		if k := diagram.IndexOf(ns, id); k >= 0 {
			fn(&ns[k])
		}
		return ns
	})
	return nil
}

// =============================================================================
// Edge commands
// =============================================================================

func (i *Interpreter) linkLast(_ context.Context, c call) *errors.Error {
	if err := noArgs("ll", c); err != nil {
		return err
	}
	ns := i.store.Snapshot().Nodes
	if len(ns) < 2 {
		return errors.New(errors.ErrCodeTooFewNodes, "ll needs at least 2 nodes, have %d", len(ns))
	}
	return i.addEdge(diagram.NewEdge(ns[len(ns)-2].ID, ns[len(ns)-1].ID, ""))
}

func (i *Interpreter) link(_ context.Context, c call) *errors.Error {
	args, label, _, ok := leadingArgs(c.rest, 2)
	if !ok {
		return errors.New(errors.ErrCodeArgCount, "link expects a source and a target")
	}
	return i.addEdge(diagram.NewEdge(args[0], args[1], label))
}

// addEdge inserts e unless its id is taken. A full layout is requested
// either way.
func (i *Interpreter) addEdge(e diagram.Edge) *errors.Error {
	if i.store.Snapshot().HasEdge(e.ID) {
		i.requestLayout(layout.Full)
		return errors.New(errors.ErrCodeDuplicateEdge, "edge %s already exists", e.ID)
	}
	i.layouter.Stop()
	i.store.ReplaceEdges(func(es []diagram.Edge) []diagram.Edge {
		return append(es, e)
	})
	i.requestLayout(layout.Full)
	return nil
}

func (i *Interpreter) unlink(_ context.Context, c call) *errors.Error {
	args := c.fields()
	if len(args) < 2 {
		return errors.New(errors.ErrCodeArgCount, "unlink expects a source and a target")
	}
	match := func(e diagram.Edge) bool { return e.Source == args[0] && e.Target == args[1] }

	found := false
	for _, e := range i.store.Snapshot().Edges {
		if match(e) {
			found = true
			break
		}
	}
	if !found {
		return errors.New(errors.ErrCodeNotFound, "edge %s not found", diagram.EdgeID(args[0], args[1]))
	}

	i.layouter.Stop()
	i.store.ReplaceEdges(func(es []diagram.Edge) []diagram.Edge {
		return slices.DeleteFunc(es, match)
	})
	return nil
}
