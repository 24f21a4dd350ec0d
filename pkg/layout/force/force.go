// Package force implements a force-directed layout simulator.
//
// The simulation follows the model popularised by d3-force: every node is a
// particle with a velocity, a cooling parameter alpha scales all forces, and
// the simulation stops once alpha drops below a threshold. Three forces act
// on the particles:
//
//   - many-body: pairwise repulsion, ignored beyond a maximum distance
//   - collision: keeps boxes from overlapping
//   - link: pulls connected boxes towards a target distance
//
// Pinned boxes keep their position and velocity zero, which is how
// incremental layout leaves existing nodes where the user put them.
//
// Positions are streamed to the caller after every tick, so a view bound to
// the store animates while the simulation cools.
package force

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/matzehuels/flowsketch/pkg/diagram"
	"github.com/matzehuels/flowsketch/pkg/layout"
)

// Name is the engine's registry name.
const Name = "force"

// Config tunes the simulation.
type Config struct {
	LinkDistance      float64       // Target distance between linked centers
	ChargeStrength    float64       // Many-body strength; negative repels
	ChargeDistanceMax float64       // Pairs farther apart than this ignore each other
	AlphaMin          float64       // Simulation stops when alpha falls below this
	VelocityDecay     float64       // Fraction of velocity lost per tick
	TickInterval      time.Duration // Pause between ticks; zero runs flat out
	MaxTicks          int           // Hard upper bound on ticks
	Seed              uint64        // Seed for the jitter source
}

// DefaultConfig returns the d3-force defaults used by the editor.
func DefaultConfig() Config {
	return Config{
		LinkDistance:      200,
		ChargeStrength:    -30,
		ChargeDistanceMax: 300,
		AlphaMin:          0.001,
		VelocityDecay:     0.4,
		TickInterval:      16 * time.Millisecond,
		MaxTicks:          1000,
		Seed:              1,
	}
}

// Engine is a layout.Simulator.
type Engine struct {
	cfg Config
}

var _ layout.Simulator = (*Engine)(nil)

// New creates a force engine. Zero fields in cfg fall back to DefaultConfig,
// except TickInterval, where zero disables pacing.
func New(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.LinkDistance <= 0 {
		cfg.LinkDistance = def.LinkDistance
	}
	if cfg.ChargeStrength == 0 {
		cfg.ChargeStrength = def.ChargeStrength
	}
	if cfg.ChargeDistanceMax <= 0 {
		cfg.ChargeDistanceMax = def.ChargeDistanceMax
	}
	if cfg.AlphaMin <= 0 || cfg.AlphaMin >= 1 {
		cfg.AlphaMin = def.AlphaMin
	}
	if cfg.VelocityDecay <= 0 || cfg.VelocityDecay >= 1 {
		cfg.VelocityDecay = def.VelocityDecay
	}
	if cfg.MaxTicks <= 0 {
		cfg.MaxTicks = def.MaxTicks
	}
	if cfg.Seed == 0 {
		cfg.Seed = def.Seed
	}
	return &Engine{cfg: cfg}
}

// Name returns "force".
func (e *Engine) Name() string { return Name }

// Simulate runs the simulation, emitting positions after every tick. It
// returns nil on convergence and ctx.Err() when cancelled.
func (e *Engine) Simulate(ctx context.Context, in layout.Input, emit func([]layout.Placement)) error {
	if len(in.Boxes) == 0 {
		return nil
	}
	s := newSimulation(in, e.cfg)

	var pace <-chan time.Time
	if e.cfg.TickInterval > 0 {
		t := time.NewTicker(e.cfg.TickInterval)
		defer t.Stop()
		pace = t.C
	}

	for i := 0; i < e.cfg.MaxTicks; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if pace != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-pace:
			}
		}

		s.tick()
		emit(s.placements())
		if s.alpha < e.cfg.AlphaMin {
			return nil
		}
	}
	return nil
}

// =============================================================================
// Simulation state
// =============================================================================

type particle struct {
	id     string
	x, y   float64 // center
	vx, vy float64
	w, h   float64
	radius float64
	pinned bool
}

type spring struct {
	source, target int
	strength       float64
	bias           float64
}

type simulation struct {
	cfg        Config
	particles  []particle
	springs    []spring
	alpha      float64
	alphaDecay float64
	rng        *rand.Rand
}

func newSimulation(in layout.Input, cfg Config) *simulation {
	s := &simulation{
		cfg:        cfg,
		particles:  make([]particle, len(in.Boxes)),
		alpha:      1,
		alphaDecay: 1 - math.Pow(cfg.AlphaMin, 1.0/300),
		rng:        rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
	}

	index := make(map[string]int, len(in.Boxes))
	for i, b := range in.Boxes {
		s.particles[i] = particle{
			id:     b.ID,
			x:      b.Position.X + b.Width/2,
			y:      b.Position.Y + b.Height/2,
			w:      b.Width,
			h:      b.Height,
			radius: math.Hypot(b.Width, b.Height) / 2,
			pinned: b.Pinned,
		}
		index[b.ID] = i
	}

	degree := make([]int, len(in.Boxes))
	for _, l := range in.Links {
		si, ok1 := index[l.Source]
		ti, ok2 := index[l.Target]
		if !ok1 || !ok2 || si == ti {
			continue
		}
		degree[si]++
		degree[ti]++
		s.springs = append(s.springs, spring{source: si, target: ti})
	}
	for i := range s.springs {
		sp := &s.springs[i]
		ds, dt := float64(degree[sp.source]), float64(degree[sp.target])
		sp.strength = 1 / min(ds, dt)
		sp.bias = ds / (ds + dt)
	}
	return s
}

// jiggle returns a tiny random offset used to separate coincident points.
func (s *simulation) jiggle() float64 {
	return (s.rng.Float64() - 0.5) * 1e-6
}

func (s *simulation) tick() {
	s.alpha += (0 - s.alpha) * s.alphaDecay

	s.applyLinks()
	s.applyCharge()
	s.applyCollision()

	decay := 1 - s.cfg.VelocityDecay
	for i := range s.particles {
		p := &s.particles[i]
		if p.pinned {
			p.vx, p.vy = 0, 0
			continue
		}
		p.vx *= decay
		p.vy *= decay
		p.x += p.vx
		p.y += p.vy
	}
}

func (s *simulation) applyLinks() {
	for _, sp := range s.springs {
		src, dst := &s.particles[sp.source], &s.particles[sp.target]
		x := dst.x + dst.vx - src.x - src.vx
		y := dst.y + dst.vy - src.y - src.vy
		if x == 0 {
			x = s.jiggle()
		}
		if y == 0 {
			y = s.jiggle()
		}
		l := math.Hypot(x, y)
		l = (l - s.cfg.LinkDistance) / l * s.alpha * sp.strength
		x *= l
		y *= l
		dst.vx -= x * sp.bias
		dst.vy -= y * sp.bias
		src.vx += x * (1 - sp.bias)
		src.vy += y * (1 - sp.bias)
	}
}

func (s *simulation) applyCharge() {
	maxSq := s.cfg.ChargeDistanceMax * s.cfg.ChargeDistanceMax
	for i := range s.particles {
		p := &s.particles[i]
		for j := range s.particles {
			if i == j {
				continue
			}
			q := &s.particles[j]
			x, y := q.x-p.x, q.y-p.y
			l := x*x + y*y
			if l >= maxSq {
				continue
			}
			if x == 0 {
				x = s.jiggle()
				l += x * x
			}
			if y == 0 {
				y = s.jiggle()
				l += y * y
			}
			if l < 1 {
				l = math.Sqrt(l)
			}
			w := s.cfg.ChargeStrength * s.alpha / l
			p.vx += x * w
			p.vy += y * w
		}
	}
}

func (s *simulation) applyCollision() {
	for i := range s.particles {
		a := &s.particles[i]
		ra2 := a.radius * a.radius
		for j := i + 1; j < len(s.particles); j++ {
			b := &s.particles[j]
			r := a.radius + b.radius
			x := a.x + a.vx - b.x - b.vx
			y := a.y + a.vy - b.y - b.vy
			l := x*x + y*y
			if l >= r*r {
				continue
			}
			if x == 0 {
				x = s.jiggle()
				l += x * x
			}
			if y == 0 {
				y = s.jiggle()
				l += y * y
			}
			l = math.Sqrt(l)
			l = (r - l) / l
			x *= l
			y *= l
			rb2 := b.radius * b.radius
			share := rb2 / (ra2 + rb2)
			a.vx += x * share
			a.vy += y * share
			b.vx -= x * (1 - share)
			b.vy -= y * (1 - share)
		}
	}
}

func (s *simulation) placements() []layout.Placement {
	out := make([]layout.Placement, len(s.particles))
	for i, p := range s.particles {
		out[i] = layout.Placement{
			ID:       p.id,
			Position: diagram.Position{X: p.x - p.w/2, Y: p.y - p.h/2},
		}
	}
	return out
}
