// Package optimizer implements a population-based stochastic global search
// (differential evolution) with parallel objective evaluation, deferred
// population update, per-generation monitoring and cooperative cancellation.
package optimizer

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/kinfit/kinfit-core/pkg/utils"
)

// Strategy selects the mutation/recombination scheme.
type Strategy string

const (
	StrategyRand1Bin Strategy = "rand1bin"
	StrategyBest1Bin Strategy = "best1bin"
)

// Evaluator scores a candidate vector; lower is better. Implementations
// must be safe for concurrent calls.
type Evaluator interface {
	Evaluate(x []float64) float64
}

// Bounds are per-gene search limits.
type Bounds struct {
	Lower []float64
	Upper []float64
}

// Validate checks the bounds are well formed for the given dimension.
func (b *Bounds) Validate(dim int) error {
	if len(b.Lower) != dim || len(b.Upper) != dim {
		return fmt.Errorf("bounds dimension mismatch: %d lower, %d upper, expected %d", len(b.Lower), len(b.Upper), dim)
	}
	for i := range b.Lower {
		if b.Lower[i] >= b.Upper[i] {
			return fmt.Errorf("bounds gene %d: lower %f >= upper %f", i, b.Lower[i], b.Upper[i])
		}
	}
	return nil
}

func (b *Bounds) clip(x []float64) {
	for i := range x {
		if x[i] < b.Lower[i] {
			x[i] = b.Lower[i]
		} else if x[i] > b.Upper[i] {
			x[i] = b.Upper[i]
		}
	}
}

func (b *Bounds) sample(rng *utils.RandSource, out []float64) {
	for i := range out {
		out[i] = rng.UniformFloat64(b.Lower[i], b.Upper[i])
	}
}

// Config holds the optimizer configuration with validated ranges.
type Config struct {
	Strategy       Strategy
	PopSize        int     // 0 picks 15 per dimension, capped at 200
	MaxGenerations int     // 0 picks 100
	F              float64 // mutation factor, (0, 2]
	CR             float64 // crossover probability, [0, 1]
	Seed           int64   // 0 picks a time-based seed (non-reproducible)
	Workers        int     // 0 uses all available cores
	Tol            float64 // convergence tolerance on fitness spread
	Refine         bool    // Nelder-Mead polish of the final best
}

// DefaultConfig returns the default optimizer configuration.
func DefaultConfig() Config {
	return Config{
		Strategy:       StrategyBest1Bin,
		MaxGenerations: 100,
		F:              0.7,
		CR:             0.9,
		Tol:            0.01,
	}
}

func (c *Config) withDefaults(dim int) Config {
	out := *c
	if out.Strategy == "" {
		out.Strategy = StrategyBest1Bin
	}
	if out.PopSize <= 0 {
		out.PopSize = 15 * dim
		if out.PopSize > 200 {
			out.PopSize = 200
		}
	}
	if out.PopSize < 4 {
		out.PopSize = 4
	}
	if out.MaxGenerations <= 0 {
		out.MaxGenerations = 100
	}
	if out.F <= 0 {
		out.F = 0.7
	}
	if out.CR < 0 {
		out.CR = 0
	}
	if out.CR == 0 {
		out.CR = 0.9
	}
	if out.Workers <= 0 {
		out.Workers = runtime.NumCPU()
	}
	if out.Tol <= 0 {
		out.Tol = 0.01
	}
	return out
}

// Validate rejects configurations outside the supported ranges.
func (c *Config) Validate() error {
	if c.Strategy != "" && c.Strategy != StrategyRand1Bin && c.Strategy != StrategyBest1Bin {
		return fmt.Errorf("unknown strategy: %s", c.Strategy)
	}
	if c.F < 0 || c.F > 2 {
		return fmt.Errorf("mutation factor %f out of range (0, 2]", c.F)
	}
	if c.CR < 0 || c.CR > 1 {
		return fmt.Errorf("crossover probability %f out of range [0, 1]", c.CR)
	}
	if c.PopSize < 0 {
		return fmt.Errorf("population size %d is negative", c.PopSize)
	}
	if c.MaxGenerations < 0 {
		return fmt.Errorf("max generations %d is negative", c.MaxGenerations)
	}
	if c.Workers < 0 {
		return fmt.Errorf("worker count %d is negative", c.Workers)
	}
	return nil
}

// Progress is handed to the per-generation monitor. All slices are copies;
// the monitor may retain them freely.
type Progress struct {
	Generation int
	Best       []float64
	BestScore  float64
	Fitness    []float64
}

// Monitor observes each generation after replacement. It runs on the
// driver's goroutine between generations, so a slow monitor delays only the
// generation boundary, never in-flight evaluations.
type Monitor func(Progress)

// Reason is the termination reason of an optimization run.
type Reason string

const (
	ReasonConverged      Reason = "converged"
	ReasonMaxGenerations Reason = "max_generations"
	ReasonCancelled      Reason = "cancelled"
)

// Result is the terminal outcome of an optimization run.
type Result struct {
	Best        []float64
	BestScore   float64
	Generations int
	Evaluations int
	Reason      Reason
}

// DiffEvo is the differential evolution driver. The running best candidate
// and the generation counter are owned exclusively by the driver and
// updated only between generations.
type DiffEvo struct {
	cfg     Config
	bounds  Bounds
	eval    Evaluator
	monitor Monitor

	mu         sync.RWMutex
	best       []float64
	bestScore  float64
	generation int
}

// New creates a differential evolution driver for the given evaluator.
func New(eval Evaluator, bounds Bounds, dim int, cfg Config) (*DiffEvo, error) {
	if eval == nil {
		return nil, fmt.Errorf("evaluator is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid optimizer config: %w", err)
	}
	if err := bounds.Validate(dim); err != nil {
		return nil, err
	}
	return &DiffEvo{
		cfg:       cfg.withDefaults(dim),
		bounds:    bounds,
		eval:      eval,
		bestScore: math.MaxFloat64,
	}, nil
}

// WithMonitor sets the per-generation monitor callback.
func (d *DiffEvo) WithMonitor(m Monitor) *DiffEvo {
	d.monitor = m
	return d
}

// Best returns the best candidate found so far and its score and generation.
func (d *DiffEvo) Best() ([]float64, float64, int) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]float64, len(d.best))
	copy(out, d.best)
	return out, d.bestScore, d.generation
}

// Optimize runs the search until convergence, the generation budget, or
// cancellation. The token is polled only at generation boundaries:
// in-flight evaluations always complete.
func (d *DiffEvo) Optimize(token *Token) (*Result, error) {
	dim := len(d.bounds.Lower)
	rng := utils.NewRandSource(d.cfg.Seed)

	pop := make([][]float64, d.cfg.PopSize)
	for i := range pop {
		pop[i] = make([]float64, dim)
		d.bounds.sample(rng, pop[i])
	}

	fitness := make([]float64, d.cfg.PopSize)
	d.evaluateAll(pop, fitness)
	evaluations := d.cfg.PopSize
	d.recordBest(pop, fitness, 0)
	d.report(0, fitness)

	reason := ReasonMaxGenerations
	gen := 0

	trials := make([][]float64, d.cfg.PopSize)
	for i := range trials {
		trials[i] = make([]float64, dim)
	}
	trialFitness := make([]float64, d.cfg.PopSize)

	for gen = 1; gen <= d.cfg.MaxGenerations; gen++ {
		if token.Cancelled() {
			reason = ReasonCancelled
			gen--
			break
		}

		bestIdx := argmin(fitness)

		// Trial construction is sequential so a fixed seed yields the
		// same trials regardless of worker count.
		for i := range pop {
			d.buildTrial(rng, pop, bestIdx, i, trials[i])
		}

		d.evaluateAll(trials, trialFitness)
		evaluations += d.cfg.PopSize

		// Deferred update: every trial was scored against the frozen
		// parent population; replacements apply only now.
		for i := range pop {
			if trialFitness[i] <= fitness[i] {
				copy(pop[i], trials[i])
				fitness[i] = trialFitness[i]
			}
		}

		d.recordBest(pop, fitness, gen)
		d.report(gen, fitness)

		if converged(fitness, d.cfg.Tol) {
			reason = ReasonConverged
			break
		}
	}
	if gen > d.cfg.MaxGenerations {
		gen = d.cfg.MaxGenerations
	}

	best, bestScore, _ := d.Best()

	if d.cfg.Refine && reason != ReasonCancelled {
		refined, refinedScore, refineEvals := refine(d.eval, d.bounds, best)
		evaluations += refineEvals
		if refinedScore < bestScore {
			best, bestScore = refined, refinedScore
			d.mu.Lock()
			copy(d.best, refined)
			d.bestScore = refinedScore
			d.mu.Unlock()
		}
	}

	return &Result{
		Best:        best,
		BestScore:   bestScore,
		Generations: gen,
		Evaluations: evaluations,
		Reason:      reason,
	}, nil
}

// buildTrial fills trial with the mutated, recombined candidate for member i.
func (d *DiffEvo) buildTrial(rng *utils.RandSource, pop [][]float64, bestIdx, i int, trial []float64) {
	dim := len(trial)
	n := len(pop)

	// Three distinct members, all different from i.
	var a, b, c int
	for {
		a = rng.Intn(n)
		if a != i {
			break
		}
	}
	for {
		b = rng.Intn(n)
		if b != i && b != a {
			break
		}
	}
	for {
		c = rng.Intn(n)
		if c != i && c != a && c != b {
			break
		}
	}

	base := pop[a]
	if d.cfg.Strategy == StrategyBest1Bin {
		base = pop[bestIdx]
	}

	forced := rng.Intn(dim)
	for j := 0; j < dim; j++ {
		if j == forced || rng.Float64() < d.cfg.CR {
			trial[j] = base[j] + d.cfg.F*(pop[b][j]-pop[c][j])
		} else {
			trial[j] = pop[i][j]
		}
	}
	d.bounds.clip(trial)
}

// evaluateAll scores every member in parallel with a bounded worker pool.
// Results land in an indexed slice so completion order never matters.
func (d *DiffEvo) evaluateAll(members [][]float64, scores []float64) {
	workers := d.cfg.Workers
	if workers > len(members) {
		workers = len(members)
	}
	if workers <= 1 {
		for i, m := range members {
			scores[i] = d.eval.Evaluate(m)
		}
		return
	}

	semaphore := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i := range members {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()
			scores[idx] = d.eval.Evaluate(members[idx])
		}(i)
	}
	wg.Wait()
}

func (d *DiffEvo) recordBest(pop [][]float64, fitness []float64, gen int) {
	idx := argmin(fitness)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.generation = gen
	if fitness[idx] < d.bestScore {
		d.bestScore = fitness[idx]
		d.best = make([]float64, len(pop[idx]))
		copy(d.best, pop[idx])
	}
}

func (d *DiffEvo) report(gen int, fitness []float64) {
	if d.monitor == nil {
		return
	}
	best, bestScore, _ := d.Best()
	fit := make([]float64, len(fitness))
	copy(fit, fitness)
	d.monitor(Progress{
		Generation: gen,
		Best:       best,
		BestScore:  bestScore,
		Fitness:    fit,
	})
}

func argmin(values []float64) int {
	idx := 0
	for i, v := range values {
		if v < values[idx] {
			idx = i
		}
	}
	return idx
}
