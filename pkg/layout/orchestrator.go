package layout

import (
	"context"
	stderrors "errors"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/flowsketch/pkg/diagram"
	"github.com/matzehuels/flowsketch/pkg/errors"
	"github.com/matzehuels/flowsketch/pkg/observability"
)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMeasure replaces the node size estimator.
func WithMeasure(m MeasureFunc) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.measure = m
		}
	}
}

// WithFreeTail sets how many of the most recent nodes stay free in
// Incremental mode.
func WithFreeTail(n int) Option {
	return func(o *Orchestrator) {
		if n >= 0 {
			o.freeTail = n
		}
	}
}

// WithDefaultEngine sets the engine used when a request names none.
func WithDefaultEngine(name string) Option {
	return func(o *Orchestrator) {
		if name != "" {
			o.defaultEngine = name
		}
	}
}

// Orchestrator runs layout engines against a diagram store and owns the one
// active layout process.
//
// Request and Stop may be called from any goroutine. Store subscribers run on
// the process goroutine while positions are written back, so they must not
// call Request or Stop themselves.
type Orchestrator struct {
	store         *diagram.Store
	logger        *log.Logger
	measure       MeasureFunc
	freeTail      int
	defaultEngine string

	runMu sync.Mutex // serializes Request and Stop

	mu      sync.Mutex // guards engines and active
	engines map[string]Engine
	active  *process
}

// process is the handle of a running Simulator.
type process struct {
	engine string
	cancel context.CancelFunc
	done   chan struct{}
}

// NewOrchestrator creates an orchestrator writing back into store.
// Engines are added with Register.
func NewOrchestrator(store *diagram.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:         store,
		logger:        log.Default(),
		measure:       Measure,
		freeTail:      DefaultFreeTail,
		defaultEngine: "force",
		engines:       make(map[string]Engine),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Register makes an engine available under its name and any aliases.
// The engine must implement Arranger or Simulator.
func (o *Orchestrator) Register(e Engine, aliases ...string) error {
	switch e.(type) {
	case Arranger, Simulator:
	default:
		return errors.New(errors.ErrCodeUnsupported, "engine %q is neither an arranger nor a simulator", e.Name())
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	for _, name := range append([]string{e.Name()}, aliases...) {
		o.engines[name] = e
	}
	return nil
}

// Engines returns the registered engine names, aliases included, sorted.
func (o *Orchestrator) Engines() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	names := make([]string, 0, len(o.engines))
	for name := range o.engines {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// DefaultEngine returns the engine name used when a request names none.
func (o *Orchestrator) DefaultEngine() string {
	return o.defaultEngine
}

// Active reports whether a layout process is running.
func (o *Orchestrator) Active() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active != nil
}

// Request stops any running layout process and starts a new pass of the
// named engine over the current snapshot. Arrangers complete before Request
// returns; simulators keep running in the background.
func (o *Orchestrator) Request(mode Mode, name string) error {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	if name == "" {
		name = o.defaultEngine
	}
	o.mu.Lock()
	eng, ok := o.engines[name]
	o.mu.Unlock()
	if !ok {
		err := errors.New(errors.ErrCodeUnknownLayout, "unknown layout engine %q", name)
		o.logger.Warn("layout request ignored", "engine", name, "code", err.Code)
		return err
	}

	o.stopLocked()

	in, dangling := BuildInput(o.store.Snapshot(), mode, o.freeTail, o.measure)
	for _, e := range dangling {
		o.logger.Warn("not laying out edge with missing endpoint",
			"edge", e.ID, "source", e.Source, "target", e.Target, "code", errors.ErrCodeDanglingEdge)
	}

	o.logger.Debug("layout requested", "engine", name, "mode", mode, "nodes", len(in.Boxes), "links", len(in.Links))

	switch e := eng.(type) {
	case Arranger:
		return o.arrange(e, name, mode, in)
	case Simulator:
		o.start(e, name, mode, in)
	}
	return nil
}

// Stop cancels the active layout process and waits for it to exit.
// It is a no-op when nothing is running.
func (o *Orchestrator) Stop() {
	o.runMu.Lock()
	defer o.runMu.Unlock()
	o.stopLocked()
}

// Wait blocks until the active layout process finishes or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context) error {
	o.mu.Lock()
	p := o.active
	o.mu.Unlock()
	if p == nil {
		return nil
	}
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) stopLocked() {
	o.mu.Lock()
	p := o.active
	o.active = nil
	o.mu.Unlock()
	if p == nil {
		return
	}
	p.cancel()
	<-p.done
	o.logger.Debug("layout stopped", "engine", p.engine)
}

func (o *Orchestrator) arrange(a Arranger, name string, mode Mode, in Input) error {
	ctx := context.Background()
	hooks := observability.Layout()
	hooks.OnLayoutStart(ctx, name, mode.String(), len(in.Boxes))
	start := time.Now()

	placements, err := a.Arrange(ctx, in)
	if err != nil {
		err = errors.Wrap(errors.ErrCodeLayoutFailed, err, "%s layout", name)
		o.logger.Warn("layout failed", "engine", name, "err", err)
		hooks.OnLayoutComplete(ctx, name, 0, time.Since(start), err)
		return err
	}

	o.apply(placements)
	hooks.OnLayoutTick(ctx, name)
	hooks.OnLayoutComplete(ctx, name, 1, time.Since(start), nil)
	o.logger.Debug("layout complete", "engine", name, "duration", time.Since(start).Round(time.Millisecond))
	return nil
}

func (o *Orchestrator) start(s Simulator, name string, mode Mode, in Input) {
	ctx, cancel := context.WithCancel(context.Background())
	p := &process{engine: name, cancel: cancel, done: make(chan struct{})}

	o.mu.Lock()
	o.active = p
	o.mu.Unlock()

	go o.run(ctx, p, s, mode, in)
}

func (o *Orchestrator) run(ctx context.Context, p *process, s Simulator, mode Mode, in Input) {
	defer func() {
		o.mu.Lock()
		if o.active == p {
			o.active = nil
		}
		o.mu.Unlock()
		p.cancel()
		close(p.done)
	}()

	hooks := observability.Layout()
	hooks.OnLayoutStart(ctx, p.engine, mode.String(), len(in.Boxes))
	start := time.Now()
	ticks := 0

	err := s.Simulate(ctx, in, func(ps []Placement) {
		if ctx.Err() != nil {
			return
		}
		o.apply(ps)
		ticks++
		hooks.OnLayoutTick(ctx, p.engine)
	})

	switch {
	case stderrors.Is(err, context.Canceled):
		o.logger.Debug("layout cancelled", "engine", p.engine, "ticks", ticks)
		err = nil
	case err != nil:
		err = errors.Wrap(errors.ErrCodeLayoutFailed, err, "%s layout", p.engine)
		o.logger.Warn("layout failed", "engine", p.engine, "err", err)
	default:
		o.logger.Debug("layout converged", "engine", p.engine, "ticks", ticks,
			"duration", time.Since(start).Round(time.Millisecond))
	}
	hooks.OnLayoutComplete(context.Background(), p.engine, ticks, time.Since(start), err)
}

// apply writes placements back by node id, rounded to whole pixels.
// Placements for nodes that no longer exist are ignored.
func (o *Orchestrator) apply(ps []Placement) {
	if len(ps) == 0 {
		return
	}
	byID := make(map[string]diagram.Position, len(ps))
	for _, p := range ps {
		byID[p.ID] = diagram.Position{X: math.Round(p.Position.X), Y: math.Round(p.Position.Y)}
	}
	o.store.ReplaceNodes(func(ns []diagram.Node) []diagram.Node {
		for i := range ns {
			if pos, ok := byID[ns[i].ID]; ok {
				ns[i].Position = pos
			}
		}
		return ns
	})
}
