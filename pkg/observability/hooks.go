// Package observability lets a host process watch the interpreter and the
// layout orchestrator without those packages importing a metrics library.
//
// Two hook sets exist, one per event source. Both default to no-ops. The
// HTTP server installs Prometheus collectors at startup:
//
//	observability.SetCommandHooks(metrics)
//	observability.SetLayoutHooks(metrics)
//
// and the instrumented code reads the current set on every event:
//
//	observability.Layout().OnLayoutStart(ctx, engine, mode, len(nodes))
package observability

import (
	"context"
	"sync/atomic"
	"time"
)

// CommandHooks observes executed command lines.
type CommandHooks interface {
	// OnCommand is called once per line. name is the keyword ("add",
	// "link", ...) and err the diagnostic, nil on success.
	OnCommand(ctx context.Context, name string, duration time.Duration, err error)
}

// LayoutHooks observes layout runs.
type LayoutHooks interface {
	OnLayoutStart(ctx context.Context, engine, mode string, nodeCount int)

	// OnLayoutTick is called after each batch of positions reaches the store.
	OnLayoutTick(ctx context.Context, engine string)

	// OnLayoutComplete is called exactly once per run. err is nil when the
	// engine converged and non-nil when it was cancelled or failed.
	OnLayoutComplete(ctx context.Context, engine string, ticks int, duration time.Duration, err error)
}

// NoopCommandHooks ignores every event.
type NoopCommandHooks struct{}

func (NoopCommandHooks) OnCommand(context.Context, string, time.Duration, error) {}

// NoopLayoutHooks ignores every event.
type NoopLayoutHooks struct{}

func (NoopLayoutHooks) OnLayoutStart(context.Context, string, string, int)                  {}
func (NoopLayoutHooks) OnLayoutTick(context.Context, string)                                {}
func (NoopLayoutHooks) OnLayoutComplete(context.Context, string, int, time.Duration, error) {}

// slot holds the installed implementation of one hook interface.
type slot[H any] struct {
	p   atomic.Pointer[H]
	def H
}

func (s *slot[H]) load() H {
	if h := s.p.Load(); h != nil {
		return *h
	}
	return s.def
}

func (s *slot[H]) store(h H) { s.p.Store(&h) }

func (s *slot[H]) reset() { s.p.Store(nil) }

var (
	commands = slot[CommandHooks]{def: NoopCommandHooks{}}
	layouts  = slot[LayoutHooks]{def: NoopLayoutHooks{}}
)

// SetCommandHooks installs h. A nil h is ignored.
func SetCommandHooks(h CommandHooks) {
	if h != nil {
		commands.store(h)
	}
}

// SetLayoutHooks installs h. A nil h is ignored.
func SetLayoutHooks(h LayoutHooks) {
	if h != nil {
		layouts.store(h)
	}
}

// Command returns the installed command hooks.
func Command() CommandHooks { return commands.load() }

// Layout returns the installed layout hooks.
func Layout() LayoutHooks { return layouts.load() }

// Reset puts the no-op hooks back. Tests that install hooks call it in
// cleanup.
func Reset() {
	commands.reset()
	layouts.reset()
}
