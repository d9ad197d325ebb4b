// Package objective scores candidate parameter vectors against experimental
// thermal-analysis curves. An Objective is plain data end to end: every
// array needed for evaluation is captured at construction so the value can
// be serialized, shipped to an independent worker, and reconstructed with
// identical semantics.
package objective

import (
	"fmt"
	"math"
	"time"

	"github.com/kinfit/kinfit-core/internal/kinetics"
	"github.com/kinfit/kinfit-core/internal/reaction"
	"github.com/kinfit/kinfit-core/internal/solver"
)

// GenesPerReaction is the width of one reaction's slice of the candidate
// vector: lnA, Ea, model index (continuous gene), contribution weight.
const GenesPerReaction = 4

// DefaultPenalty is the score substituted for any candidate whose
// integration fails. Large enough that no fit ever competes with it.
const DefaultPenalty = 1e10

// Curve is one experimental conversion curve recorded at a fixed heating
// rate. Temperatures must be strictly increasing; Values holds the measured
// conversion at each temperature. Read-only once constructed.
type Curve struct {
	Beta   float64
	Temps  []float64
	Values []float64
}

// Objective evaluates candidate vectors to a scalar fit score (lower is
// better). Every field is an exported primitive or slice of primitives, so
// the whole value participates in transport.
type Objective struct {
	Species       int
	Sources       []int
	Targets       []int
	SignalWeights []float64
	EnabledModels []int
	Curves        []Curve

	Method    string
	RTol      float64
	ATol      float64
	MaxSteps  int
	TimeoutMs int64

	Penalty float64
}

// New captures the network shape, experiment curves and solver settings into
// a transportable objective.
func New(network *reaction.Network, curves []Curve, cfg solver.Config, enabled kinetics.Subset) (*Objective, error) {
	if err := network.Validate(); err != nil {
		return nil, fmt.Errorf("invalid network: %w", err)
	}

	o := &Objective{
		Species:       network.Species,
		Sources:       make([]int, len(network.Reactions)),
		Targets:       make([]int, len(network.Reactions)),
		SignalWeights: network.SignalWeights(),
		EnabledModels: enabled.Indices(),
		Curves:        curves,
		Method:        string(cfg.Method),
		RTol:          cfg.RTol,
		ATol:          cfg.ATol,
		MaxSteps:      cfg.MaxSteps,
		TimeoutMs:     cfg.Timeout.Milliseconds(),
		Penalty:       DefaultPenalty,
	}
	for i, r := range network.Reactions {
		o.Sources[i] = r.Source
		o.Targets[i] = r.Target
	}

	if err := o.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

// Validate checks that the objective is internally consistent. Run before
// any optimization starts; a failure here is a configuration defect, not a
// per-candidate numerical issue.
func (o *Objective) Validate() error {
	if o.Species < 1 {
		return fmt.Errorf("objective: species count %d", o.Species)
	}
	if len(o.Sources) == 0 || len(o.Sources) != len(o.Targets) {
		return fmt.Errorf("objective: malformed reaction arrays (%d sources, %d targets)", len(o.Sources), len(o.Targets))
	}
	for i := range o.Sources {
		if o.Sources[i] < 0 || o.Sources[i] >= o.Species || o.Targets[i] < 0 || o.Targets[i] >= o.Species {
			return fmt.Errorf("objective: reaction %d references species out of range", i)
		}
	}
	if len(o.SignalWeights) != o.Species {
		return fmt.Errorf("objective: %d signal weights for %d species", len(o.SignalWeights), o.Species)
	}
	if len(o.EnabledModels) == 0 {
		return fmt.Errorf("objective: no enabled kinetic models")
	}
	for _, m := range o.EnabledModels {
		if m < 0 || m >= kinetics.ModelCount {
			return fmt.Errorf("objective: enabled model index %d out of range", m)
		}
	}
	if len(o.Curves) == 0 {
		return fmt.Errorf("objective: no experiment curves")
	}
	for ci, c := range o.Curves {
		if c.Beta <= 0 {
			return fmt.Errorf("objective: curve %d has non-positive heating rate %f", ci, c.Beta)
		}
		if len(c.Temps) < 2 {
			return fmt.Errorf("objective: curve %d has %d samples, need at least 2", ci, len(c.Temps))
		}
		if len(c.Temps) != len(c.Values) {
			return fmt.Errorf("objective: curve %d has %d temperatures but %d values", ci, len(c.Temps), len(c.Values))
		}
		for i := 1; i < len(c.Temps); i++ {
			if c.Temps[i] <= c.Temps[i-1] {
				return fmt.Errorf("objective: curve %d temperatures not strictly increasing at index %d", ci, i)
			}
		}
	}
	if o.RTol <= 0 || o.ATol <= 0 {
		return fmt.Errorf("objective: tolerances must be positive (rtol=%g, atol=%g)", o.RTol, o.ATol)
	}
	if o.Penalty <= 0 {
		return fmt.Errorf("objective: penalty must be positive, got %g", o.Penalty)
	}
	return nil
}

// Dim returns the candidate vector length.
func (o *Objective) Dim() int {
	return GenesPerReaction * len(o.Sources)
}

// Decode expands a candidate vector into a concrete reaction network.
// Continuous model-index genes are snapped to the nearest enabled model;
// weights are clamped to [0,1]. Safe for concurrent use: the objective is
// never mutated after construction.
func (o *Objective) Decode(x []float64) (*reaction.Network, error) {
	if len(x) != o.Dim() {
		return nil, fmt.Errorf("objective: candidate has %d genes, expected %d", len(x), o.Dim())
	}
	subset := kinetics.NewSubset(o.EnabledModels...)

	net := &reaction.Network{
		Species:   o.Species,
		Reactions: make([]reaction.Reaction, len(o.Sources)),
	}
	for i := range o.Sources {
		g := x[i*GenesPerReaction:]
		weight := g[3]
		if weight < 0 {
			weight = 0
		} else if weight > 1 {
			weight = 1
		}
		net.Reactions[i] = reaction.Reaction{
			Source: o.Sources[i],
			Target: o.Targets[i],
			Model:  subset.Nearest(g[2]),
			LnA:    g[0],
			Ea:     g[1],
			Weight: weight,
		}
	}
	return net, nil
}

func (o *Objective) solverConfig() solver.Config {
	return solver.Config{
		Method:   solver.Method(o.Method),
		RTol:     o.RTol,
		ATol:     o.ATol,
		MaxSteps: o.MaxSteps,
		Timeout:  time.Duration(o.TimeoutMs) * time.Millisecond,
	}
}

// Evaluate scores a candidate vector: per-curve mean squared error between
// the simulated and measured conversion signal, summed across curves. Any
// integration failure yields the penalty score; Evaluate never returns an
// error and never panics on bad numeric regions.
func (o *Objective) Evaluate(x []float64) float64 {
	net, err := o.Decode(x)
	if err != nil {
		return o.Penalty
	}
	cfg := o.solverConfig()

	total := 0.0
	for ci := range o.Curves {
		c := &o.Curves[ci]
		beta := c.Beta
		fn := func(t float64, y, dy []float64) {
			net.Derivative(t, y, dy, beta)
		}

		traj, err := solver.Integrate(fn, net.InitialState(), c.Temps[0], c.Temps[len(c.Temps)-1], c.Temps, cfg)
		if err != nil {
			return o.Penalty
		}

		sse := 0.0
		for i, y := range traj.Y {
			r := reaction.Progress(o.SignalWeights, y) - c.Values[i]
			sse += r * r
		}
		mse := sse / float64(len(traj.Y))
		if math.IsNaN(mse) || math.IsInf(mse, 0) {
			return o.Penalty
		}
		total += mse
	}
	return total
}
