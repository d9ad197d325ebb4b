package solver

import (
	"math"
	"time"
)

// Dormand-Prince 5(4) coefficients.
var (
	dpC = [7]float64{0, 1.0 / 5, 3.0 / 10, 4.0 / 5, 8.0 / 9, 1, 1}
	dpA = [7][6]float64{
		{},
		{1.0 / 5},
		{3.0 / 40, 9.0 / 40},
		{44.0 / 45, -56.0 / 15, 32.0 / 9},
		{19372.0 / 6561, -25360.0 / 2187, 64448.0 / 6561, -212.0 / 729},
		{9017.0 / 3168, -355.0 / 33, 46732.0 / 5247, 49.0 / 176, -5103.0 / 18656},
		{35.0 / 384, 0, 500.0 / 1113, 125.0 / 192, -2187.0 / 6784, 11.0 / 84},
	}
	// Difference between the 5th and 4th order solutions, used for the
	// local error estimate.
	dpE = [7]float64{71.0 / 57600, 0, -71.0 / 16695, 71.0 / 1920, -17253.0 / 339200, 22.0 / 525, -1.0 / 40}
)

// Stiffness heuristics for the auto method: hand over to the stiff
// integrator after this many consecutive rejections, or after this many
// consecutive accepted steps smaller than smallStepFraction of the span.
const (
	stiffConsecRejects  = 12
	stiffSmallStepRuns  = 25
	stiffSmallStepFrac  = 1e-5
	stepSafety          = 0.9
	stepShrinkLimit     = 0.2
	stepGrowLimit       = 10.0
)

// dopri5 advances y from t0 toward t1, filling smp as it goes. In auto mode
// it may return early with stiff=true, handing back the point and state at
// which the stiff integrator should take over.
func dopri5(fn Func, t0, t1 float64, y []float64, smp *sampler, cfg *Config, deadline time.Time, stats *Stats, autoMode bool) (float64, []float64, *Failure, bool) {
	dim := len(y)
	span := t1 - t0

	k := make([][]float64, 7)
	for i := range k {
		k[i] = make([]float64, dim)
	}
	yStage := make([]float64, dim)
	yNew := make([]float64, dim)
	errVec := make([]float64, dim)

	minStep := cfg.MinStep
	if minStep <= 0 {
		minStep = 16 * math.SmallestNonzeroFloat64
		if eps := 16 * 2.220446049250313e-16 * math.Max(math.Abs(t0), math.Abs(t1)); eps > minStep {
			minStep = eps
		}
	}

	h := cfg.InitialStep
	if h <= 0 {
		h = span / 100
	}
	if h > span {
		h = span
	}

	t := t0
	fn(t, y, k[0])
	stats.Evals++

	consecRejects := 0
	smallStepRun := 0

	for t < t1 {
		if stats.Steps+stats.Rejected >= cfg.MaxSteps {
			return t, y, &Failure{Reason: ReasonMaxSteps, T: t}, false
		}
		if deadlineExceeded(deadline) {
			return t, y, &Failure{Reason: ReasonDeadline, T: t}, false
		}
		if h < minStep {
			if autoMode {
				return t, y, nil, true
			}
			return t, y, &Failure{Reason: ReasonStepUnderflow, T: t}, false
		}
		if t+h > t1 {
			h = t1 - t
		}

		// Stages 2..7. Stage 7 lands on t+h with the 5th order weights,
		// so k[6] is f at the candidate solution (FSAL).
		for s := 1; s < 7; s++ {
			for i := 0; i < dim; i++ {
				acc := y[i]
				for j := 0; j < s; j++ {
					acc += h * dpA[s][j] * k[j][i]
				}
				yStage[i] = acc
			}
			fn(t+dpC[s]*h, yStage, k[s])
			stats.Evals++
		}
		copy(yNew, yStage)

		for i := 0; i < dim; i++ {
			e := 0.0
			for s := 0; s < 7; s++ {
				e += dpE[s] * k[s][i]
			}
			errVec[i] = h * e
		}
		norm := errorNorm(errVec, y, yNew, cfg.ATol, cfg.RTol)

		if norm <= 1 {
			if !allFinite(yNew) {
				return t, y, &Failure{Reason: ReasonNonFinite, T: t}, false
			}

			tOld := t
			yOld := make([]float64, dim)
			copy(yOld, y)
			fOld := make([]float64, dim)
			copy(fOld, k[0])

			t += h
			copy(y, yNew)
			copy(k[0], k[6])
			stats.Steps++
			stats.LastStep = h
			consecRejects = 0

			if autoMode && h < stiffSmallStepFrac*span {
				smallStepRun++
				if smallStepRun >= stiffSmallStepRuns {
					smp.captureAt(t, y)
					return t, y, nil, true
				}
			} else {
				smallStepRun = 0
			}

			smp.capture(tOld, t, func(tc float64, out []float64) {
				hermite(tOld, t, yOld, y, fOld, k[0], tc, out)
			})

			if norm == 0 {
				h *= stepGrowLimit
			} else {
				fac := stepSafety * math.Pow(norm, -0.2)
				if fac > stepGrowLimit {
					fac = stepGrowLimit
				}
				h *= fac
			}
		} else {
			stats.Rejected++
			consecRejects++
			if autoMode && consecRejects >= stiffConsecRejects {
				return t, y, nil, true
			}
			fac := stepSafety * math.Pow(norm, -0.2)
			if fac < stepShrinkLimit {
				fac = stepShrinkLimit
			}
			h *= fac
		}
	}

	smp.captureAt(t1, y)
	return t, y, nil, false
}

// hermite evaluates the cubic Hermite interpolant on [ta, tb] at tc.
func hermite(ta, tb float64, ya, yb, fa, fb []float64, tc float64, out []float64) {
	h := tb - ta
	s := (tc - ta) / h
	h00 := (1 + 2*s) * (1 - s) * (1 - s)
	h10 := s * (1 - s) * (1 - s)
	h01 := s * s * (3 - 2*s)
	h11 := s * s * (s - 1)
	for i := range out {
		out[i] = h00*ya[i] + h10*h*fa[i] + h01*yb[i] + h11*h*fb[i]
	}
}
