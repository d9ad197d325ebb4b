// Package solver integrates initial value problems with adaptive step
// control, a wall-clock deadline enforced inline in the step loop, and a
// single failure type covering every way an integration can go wrong.
package solver

import (
	"fmt"
	"math"
	"time"
)

// Func evaluates the right hand side of the ODE system: dy = f(t, y).
// dy is written in place and must not be retained across calls.
type Func func(t float64, y, dy []float64)

// Method selects the integration scheme.
type Method string

const (
	// MethodAuto starts with the explicit Dormand-Prince pair and switches
	// to the stiff method when step control signals stiffness, in the
	// manner of LSODA. This is the default and the fast path for
	// exploration-grade tolerances.
	MethodAuto Method = "auto"
	// MethodDopri5 is the explicit adaptive Dormand-Prince 5(4) pair.
	MethodDopri5 Method = "dopri5"
	// MethodRosenbrock is an L-stable Rosenbrock 2(3) pair for stiff
	// systems.
	MethodRosenbrock Method = "rosenbrock"
)

// Config holds the solver configuration for one integration. Immutable for
// a run.
type Config struct {
	Method      Method
	RTol        float64
	ATol        float64
	MaxSteps    int
	InitialStep float64
	MinStep     float64
	// Timeout is the per-call wall-clock budget, enforced by an elapsed
	// time check inside the step loop. Zero disables the deadline.
	Timeout time.Duration
}

// DefaultConfig returns the exploration-grade solver configuration.
func DefaultConfig() Config {
	return Config{
		Method:   MethodAuto,
		RTol:     1e-2,
		ATol:     1e-4,
		MaxSteps: 100000,
		Timeout:  200 * time.Millisecond,
	}
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Method == "" {
		out.Method = MethodAuto
	}
	if out.RTol <= 0 {
		out.RTol = 1e-2
	}
	if out.ATol <= 0 {
		out.ATol = 1e-4
	}
	if out.MaxSteps <= 0 {
		out.MaxSteps = 100000
	}
	return out
}

// Stats reports the work done by one integration.
type Stats struct {
	Steps    int
	Rejected int
	Evals    int
	LastStep float64
	// Switched reports that the auto method handed over to the stiff
	// integrator mid-run.
	Switched bool
}

// Trajectory is the integration result sampled at the requested points.
type Trajectory struct {
	T     []float64
	Y     [][]float64
	Stats Stats
}

// Reason classifies an integration failure.
type Reason int

const (
	ReasonMaxSteps Reason = iota
	ReasonStepUnderflow
	ReasonNonFinite
	ReasonDeadline
	ReasonBadInput
)

func (r Reason) String() string {
	switch r {
	case ReasonMaxSteps:
		return "max steps exceeded"
	case ReasonStepUnderflow:
		return "step size underflow"
	case ReasonNonFinite:
		return "non-finite state"
	case ReasonDeadline:
		return "deadline exceeded"
	case ReasonBadInput:
		return "bad input"
	default:
		return "unknown"
	}
}

// Failure is the single error type returned by Integrate. Non-convergence,
// numerical breakdown and deadline overrun all collapse into it so nothing
// type-specific leaks past the evaluation boundary.
type Failure struct {
	Reason Reason
	T      float64
}

func (f *Failure) Error() string {
	return fmt.Sprintf("integration failed at t=%g: %s", f.T, f.Reason)
}

// Integrate solves y' = fn(t, y) from t0 to t1 with initial state y0 and
// returns the state at each of the requested sample points. samples must be
// sorted ascending within [t0, t1]. On any failure the returned error is a
// *Failure; the trajectory is nil.
func Integrate(fn Func, y0 []float64, t0, t1 float64, samples []float64, cfg Config) (*Trajectory, error) {
	if len(y0) == 0 {
		return nil, &Failure{Reason: ReasonBadInput, T: t0}
	}
	if t1 <= t0 {
		return nil, &Failure{Reason: ReasonBadInput, T: t0}
	}
	for i, s := range samples {
		if s < t0 || s > t1 {
			return nil, &Failure{Reason: ReasonBadInput, T: s}
		}
		if i > 0 && s < samples[i-1] {
			return nil, &Failure{Reason: ReasonBadInput, T: s}
		}
	}
	cfg = cfg.withDefaults()

	var deadline time.Time
	if cfg.Timeout > 0 {
		deadline = time.Now().Add(cfg.Timeout)
	}

	smp := newSampler(samples, len(y0))
	y := make([]float64, len(y0))
	copy(y, y0)
	smp.captureAt(t0, y)

	var stats Stats
	var fail *Failure

	switch cfg.Method {
	case MethodDopri5:
		_, _, fail, _ = dopri5(fn, t0, t1, y, smp, &cfg, deadline, &stats, false)
	case MethodRosenbrock:
		fail = rosenbrock23(fn, t0, t1, y, smp, &cfg, deadline, &stats)
	case MethodAuto:
		tSwitch, ySwitch, dopriFail, stiff := dopri5(fn, t0, t1, y, smp, &cfg, deadline, &stats, true)
		fail = dopriFail
		if fail == nil && stiff {
			stats.Switched = true
			fail = rosenbrock23(fn, tSwitch, t1, ySwitch, smp, &cfg, deadline, &stats)
		}
	default:
		return nil, &Failure{Reason: ReasonBadInput, T: t0}
	}

	if fail != nil {
		return nil, fail
	}

	return &Trajectory{T: smp.points, Y: smp.states, Stats: stats}, nil
}

// errorNorm computes the RMS of the scaled local error estimate.
func errorNorm(err, y, yNew []float64, atol, rtol float64) float64 {
	sum := 0.0
	for i := range err {
		scale := atol + rtol*math.Max(math.Abs(y[i]), math.Abs(yNew[i]))
		e := err[i] / scale
		sum += e * e
	}
	return math.Sqrt(sum / float64(len(err)))
}

func allFinite(y []float64) bool {
	for _, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// deadlineExceeded is the inline budget check run once per step. Kept as a
// plain elapsed-time comparison: no timer goroutine, no channel select in
// the hot loop.
func deadlineExceeded(deadline time.Time) bool {
	return !deadline.IsZero() && time.Now().After(deadline)
}
