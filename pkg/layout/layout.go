package layout

import (
	"context"
	"fmt"

	"github.com/matzehuels/flowsketch/pkg/diagram"
)

// Mode selects which nodes a layout pass may move.
type Mode int

const (
	// Full lets every node move.
	Full Mode = iota
	// Incremental pins all but the most recently inserted nodes.
	Incremental
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case Full:
		return "full"
	case Incremental:
		return "incremental"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode parses a mode name. The empty string means [Full].
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "full":
		return Full, nil
	case "incremental":
		return Incremental, nil
	default:
		return Full, fmt.Errorf("unknown layout mode %q", s)
	}
}

// Box is the engine's view of a node.
type Box struct {
	ID       string
	Width    float64
	Height   float64
	Position diagram.Position // Top-left corner
	Pinned   bool             // Engines that honor pins must not move the box
}

// Link is the engine's view of an edge. Both endpoints exist in the input.
type Link struct {
	Source string
	Target string
}

// Input is everything an engine needs for one pass.
type Input struct {
	Boxes []Box
	Links []Link
}

// Placement is a new top-left position for one box.
type Placement struct {
	ID       string
	Position diagram.Position
}

// Engine is a named layout algorithm.
type Engine interface {
	Name() string
}

// Arranger computes all placements in a single synchronous call.
type Arranger interface {
	Engine
	Arrange(ctx context.Context, in Input) ([]Placement, error)
}

// Simulator runs an iterative layout, calling emit after every step until it
// converges or ctx is cancelled. Simulate returns ctx.Err() when cancelled.
type Simulator interface {
	Engine
	Simulate(ctx context.Context, in Input, emit func([]Placement)) error
}

// Requester is the contract the command interpreter uses to ask for a
// layout. An empty engine name selects the default engine.
type Requester interface {
	Request(mode Mode, engine string) error
	Stop()
}

// Nop is a Requester that ignores every request.
type Nop struct{}

func (Nop) Request(Mode, string) error { return nil }
func (Nop) Stop()                      {}
