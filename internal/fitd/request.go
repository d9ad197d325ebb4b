package fitd

import (
	"fmt"
	"time"

	"github.com/kinfit/kinfit-core/internal/kinetics"
	"github.com/kinfit/kinfit-core/internal/objective"
	"github.com/kinfit/kinfit-core/internal/optimizer"
	"github.com/kinfit/kinfit-core/internal/reaction"
	"github.com/kinfit/kinfit-core/internal/solver"
	"github.com/kinfit/kinfit-core/pkg/config"
)

// Default per-reaction search limits used when a request omits bounds.
// lnA covers pre-exponential factors up to ~1e26 1/s, Ea is in J/mol.
const (
	defaultLnAMin = 0.0
	defaultLnAMax = 60.0
	defaultEaMin  = 1.0e4
	defaultEaMax  = 4.0e5
)

// ReactionSpec declares one edge of the reaction network. The kinetic
// parameters of the edge are what the fit estimates, so a request carries
// only the topology.
type ReactionSpec struct {
	Source int `json:"source"`
	Target int `json:"target"`
}

// CurveSpec is one experimental curve: conversion sampled over a strictly
// increasing temperature grid at a fixed heating rate.
type CurveSpec struct {
	Beta   float64   `json:"beta"`
	Temps  []float64 `json:"temps"`
	Values []float64 `json:"values"`
}

// BoundsSpec overrides the search limits gene by gene. Both slices must
// have length 4 x reactions, laid out [lnA, Ea, model, weight] per reaction.
type BoundsSpec struct {
	Lower []float64 `json:"lower"`
	Upper []float64 `json:"upper"`
}

// OptimizerSpec overrides the daemon's optimizer defaults per request.
// Zero-valued fields fall back to the configured defaults.
type OptimizerSpec struct {
	Strategy             string  `json:"strategy,omitempty"`
	PopulationSize       int     `json:"population_size,omitempty"`
	MaxGenerations       int     `json:"max_generations,omitempty"`
	MutationFactor       float64 `json:"mutation_factor,omitempty"`
	CrossoverProbability float64 `json:"crossover_probability,omitempty"`
	Tolerance            float64 `json:"tolerance,omitempty"`
	Seed                 int64   `json:"seed,omitempty"`
	Workers              int     `json:"workers,omitempty"`
	Refine               bool    `json:"refine,omitempty"`
}

// SolverSpec overrides the daemon's solver defaults per request.
type SolverSpec struct {
	Method    string  `json:"method,omitempty"`
	RTol      float64 `json:"rtol,omitempty"`
	ATol      float64 `json:"atol,omitempty"`
	MaxSteps  int     `json:"max_steps,omitempty"`
	TimeoutMs int64   `json:"timeout_ms,omitempty"`
}

// FitRequest is the body of POST /v1/fits.
type FitRequest struct {
	Species       int            `json:"species"`
	Reactions     []ReactionSpec `json:"reactions"`
	Curves        []CurveSpec    `json:"curves"`
	EnabledModels []string       `json:"enabled_models,omitempty"`
	Bounds        *BoundsSpec    `json:"bounds,omitempty"`
	Optimizer     *OptimizerSpec `json:"optimizer,omitempty"`
	Solver        *SolverSpec    `json:"solver,omitempty"`
	CallbackURL   string         `json:"callback_url,omitempty"`
}

func (r *FitRequest) validate() error {
	if r.Species < 1 {
		return fmt.Errorf("species must be at least 1, got %d", r.Species)
	}
	if len(r.Reactions) == 0 {
		return fmt.Errorf("at least one reaction is required")
	}
	if len(r.Curves) == 0 {
		return fmt.Errorf("at least one curve is required")
	}
	for i, c := range r.Curves {
		if c.Beta <= 0 {
			return fmt.Errorf("curve %d: heating rate %f must be positive", i, c.Beta)
		}
		if len(c.Temps) < 2 {
			return fmt.Errorf("curve %d: at least 2 samples required, got %d", i, len(c.Temps))
		}
		if len(c.Temps) != len(c.Values) {
			return fmt.Errorf("curve %d: %d temperatures but %d values", i, len(c.Temps), len(c.Values))
		}
		for j := 1; j < len(c.Temps); j++ {
			if c.Temps[j] <= c.Temps[j-1] {
				return fmt.Errorf("curve %d: temperatures not strictly increasing at index %d", i, j)
			}
		}
	}
	if r.Solver != nil {
		switch r.Solver.Method {
		case "", "auto", "dopri5", "rosenbrock":
		default:
			return fmt.Errorf("invalid solver method: %s (must be auto, dopri5, or rosenbrock)", r.Solver.Method)
		}
	}
	if r.Optimizer != nil {
		switch r.Optimizer.Strategy {
		case "", "rand1bin", "best1bin":
		default:
			return fmt.Errorf("invalid optimizer strategy: %s (must be rand1bin or best1bin)", r.Optimizer.Strategy)
		}
	}
	if r.Bounds != nil {
		dim := objective.GenesPerReaction * len(r.Reactions)
		if len(r.Bounds.Lower) != dim || len(r.Bounds.Upper) != dim {
			return fmt.Errorf("bounds must have %d entries per side, got %d lower and %d upper",
				dim, len(r.Bounds.Lower), len(r.Bounds.Upper))
		}
	}
	return nil
}

// network builds the topology template the objective decodes candidates
// into. Kinetic parameters are placeholders overwritten on every decode.
func (r *FitRequest) network() *reaction.Network {
	n := &reaction.Network{
		Species:   r.Species,
		Reactions: make([]reaction.Reaction, len(r.Reactions)),
	}
	for i, spec := range r.Reactions {
		n.Reactions[i] = reaction.Reaction{
			Source: spec.Source,
			Target: spec.Target,
			Model:  kinetics.F1,
			LnA:    defaultLnAMin,
			Ea:     defaultEaMin,
			Weight: 1,
		}
	}
	return n
}

func (r *FitRequest) objectiveCurves() []objective.Curve {
	curves := make([]objective.Curve, len(r.Curves))
	for i, c := range r.Curves {
		curves[i] = objective.Curve{
			Beta:   c.Beta,
			Temps:  c.Temps,
			Values: c.Values,
		}
	}
	return curves
}

// modelSubset resolves the request's model names, falling back to the
// daemon-wide subset when the request names none.
func (r *FitRequest) modelSubset(daemon kinetics.Subset) (kinetics.Subset, error) {
	if len(r.EnabledModels) == 0 {
		return daemon, nil
	}
	indices := make([]int, 0, len(r.EnabledModels))
	for _, name := range r.EnabledModels {
		m, ok := kinetics.ModelIndex(name)
		if !ok {
			return kinetics.Subset{}, fmt.Errorf("unknown kinetic model name: %s", name)
		}
		indices = append(indices, m)
	}
	return kinetics.NewSubset(indices...), nil
}

// solverConfig merges request overrides onto the daemon defaults.
func (r *FitRequest) solverConfig(defaults config.SolverSettings) solver.Config {
	settings := defaults
	if r.Solver != nil {
		if r.Solver.Method != "" {
			settings.Method = r.Solver.Method
		}
		if r.Solver.RTol > 0 {
			settings.RTol = r.Solver.RTol
		}
		if r.Solver.ATol > 0 {
			settings.ATol = r.Solver.ATol
		}
		if r.Solver.MaxSteps > 0 {
			settings.MaxSteps = r.Solver.MaxSteps
		}
		if r.Solver.TimeoutMs > 0 {
			settings.TimeoutMs = r.Solver.TimeoutMs
		}
	}
	return solver.Config{
		Method:   solver.Method(settings.Method),
		RTol:     settings.RTol,
		ATol:     settings.ATol,
		MaxSteps: settings.MaxSteps,
		Timeout:  time.Duration(settings.TimeoutMs) * time.Millisecond,
	}
}

// optimizerConfig merges request overrides onto the daemon defaults.
func (r *FitRequest) optimizerConfig(defaults config.OptimizerSettings) optimizer.Config {
	settings := defaults
	if r.Optimizer != nil {
		o := r.Optimizer
		if o.Strategy != "" {
			settings.Strategy = o.Strategy
		}
		if o.PopulationSize > 0 {
			settings.PopulationSize = o.PopulationSize
		}
		if o.MaxGenerations > 0 {
			settings.MaxGenerations = o.MaxGenerations
		}
		if o.MutationFactor > 0 {
			settings.MutationFactor = o.MutationFactor
		}
		if o.CrossoverProbability > 0 {
			settings.CrossoverProbability = o.CrossoverProbability
		}
		if o.Tolerance > 0 {
			settings.Tolerance = o.Tolerance
		}
		if o.Seed != 0 {
			settings.Seed = o.Seed
		}
		if o.Workers > 0 {
			settings.Workers = o.Workers
		}
		if o.Refine {
			settings.Refine = true
		}
	}
	return optimizer.Config{
		Strategy:       optimizer.Strategy(settings.Strategy),
		PopSize:        settings.PopulationSize,
		MaxGenerations: settings.MaxGenerations,
		F:              settings.MutationFactor,
		CR:             settings.CrossoverProbability,
		Seed:           settings.Seed,
		Workers:        settings.Workers,
		Tol:            settings.Tolerance,
		Refine:         settings.Refine,
	}
}

// searchBounds returns the per-gene limits, either the request's explicit
// bounds or the defaults for the [lnA, Ea, model, weight] layout.
func (r *FitRequest) searchBounds() optimizer.Bounds {
	if r.Bounds != nil {
		return optimizer.Bounds{Lower: r.Bounds.Lower, Upper: r.Bounds.Upper}
	}
	dim := objective.GenesPerReaction * len(r.Reactions)
	lower := make([]float64, dim)
	upper := make([]float64, dim)
	for i := 0; i < len(r.Reactions); i++ {
		base := i * objective.GenesPerReaction
		lower[base+0], upper[base+0] = defaultLnAMin, defaultLnAMax
		lower[base+1], upper[base+1] = defaultEaMin, defaultEaMax
		lower[base+2], upper[base+2] = 0, float64(kinetics.ModelCount-1)
		lower[base+3], upper[base+3] = 0, 1
	}
	return optimizer.Bounds{Lower: lower, Upper: upper}
}
