package solver

import (
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
)

// rosenbrock23 is an L-stable Rosenbrock 2(3) pair (the ode23s scheme) with
// a finite-difference Jacobian refreshed every step. Linear systems are
// solved with a dense LU factorization; the systems here are tiny (one row
// per species) so the factorization cost is negligible against the
// right-hand-side evaluations.
func rosenbrock23(fn Func, t0, t1 float64, y []float64, smp *sampler, cfg *Config, deadline time.Time, stats *Stats) *Failure {
	dim := len(y)
	span := t1 - t0

	d := 1 / (2 + math.Sqrt2)
	e32 := 6 + math.Sqrt2

	f0 := make([]float64, dim)
	f1 := make([]float64, dim)
	f2 := make([]float64, dim)
	ft := make([]float64, dim)
	k1 := make([]float64, dim)
	k2 := make([]float64, dim)
	k3 := make([]float64, dim)
	yStage := make([]float64, dim)
	yNew := make([]float64, dim)
	errVec := make([]float64, dim)
	jac := mat.NewDense(dim, dim, nil)
	w := mat.NewDense(dim, dim, nil)
	rhs := mat.NewVecDense(dim, nil)
	sol := mat.NewVecDense(dim, nil)
	var lu mat.LU

	minStep := cfg.MinStep
	if minStep <= 0 {
		minStep = 16 * 2.220446049250313e-16 * math.Max(1, math.Max(math.Abs(t0), math.Abs(t1)))
	}

	h := stats.LastStep
	if h <= 0 {
		h = span / 100
	}
	if h > span {
		h = span
	}

	t := t0

	for t < t1 {
		if stats.Steps+stats.Rejected >= cfg.MaxSteps {
			return &Failure{Reason: ReasonMaxSteps, T: t}
		}
		if deadlineExceeded(deadline) {
			return &Failure{Reason: ReasonDeadline, T: t}
		}
		if h < minStep {
			return &Failure{Reason: ReasonStepUnderflow, T: t}
		}
		if t+h > t1 {
			h = t1 - t
		}

		fn(t, y, f0)
		stats.Evals++

		// Time gradient and Jacobian by forward differences.
		tDelta := math.Sqrt(2.220446049250313e-16) * math.Max(math.Abs(t), 1e-8)
		fn(t+tDelta, y, ft)
		stats.Evals++
		for i := 0; i < dim; i++ {
			ft[i] = (ft[i] - f0[i]) / tDelta
		}
		numJacobian(fn, t, y, f0, yStage, f1, jac, stats)

		// W = I - h*d*J, factorized once per step attempt.
		hd := h * d
		for i := 0; i < dim; i++ {
			for j := 0; j < dim; j++ {
				v := -hd * jac.At(i, j)
				if i == j {
					v += 1
				}
				w.Set(i, j, v)
			}
		}
		lu.Factorize(w)

		// k1 = W^-1 (f0 + h*d*ft)
		for i := 0; i < dim; i++ {
			rhs.SetVec(i, f0[i]+hd*ft[i])
		}
		if err := lu.SolveVecTo(sol, false, rhs); err != nil {
			return &Failure{Reason: ReasonNonFinite, T: t}
		}
		for i := 0; i < dim; i++ {
			k1[i] = sol.AtVec(i)
		}

		// k2 from the midpoint stage.
		for i := 0; i < dim; i++ {
			yStage[i] = y[i] + 0.5*h*k1[i]
		}
		fn(t+0.5*h, yStage, f1)
		stats.Evals++
		for i := 0; i < dim; i++ {
			rhs.SetVec(i, f1[i]-k1[i])
		}
		if err := lu.SolveVecTo(sol, false, rhs); err != nil {
			return &Failure{Reason: ReasonNonFinite, T: t}
		}
		for i := 0; i < dim; i++ {
			k2[i] = sol.AtVec(i) + k1[i]
		}

		for i := 0; i < dim; i++ {
			yNew[i] = y[i] + h*k2[i]
		}

		// Third stage only feeds the error estimate.
		fn(t+h, yNew, f2)
		stats.Evals++
		for i := 0; i < dim; i++ {
			rhs.SetVec(i, f2[i]-e32*(k2[i]-f1[i])-2*(k1[i]-f0[i])+hd*ft[i])
		}
		if err := lu.SolveVecTo(sol, false, rhs); err != nil {
			return &Failure{Reason: ReasonNonFinite, T: t}
		}
		for i := 0; i < dim; i++ {
			k3[i] = sol.AtVec(i)
			errVec[i] = (h / 6) * (k1[i] - 2*k2[i] + k3[i])
		}

		norm := errorNorm(errVec, y, yNew, cfg.ATol, cfg.RTol)

		if norm <= 1 {
			if !allFinite(yNew) {
				return &Failure{Reason: ReasonNonFinite, T: t}
			}

			tOld := t
			yOld := make([]float64, dim)
			copy(yOld, y)

			t += h
			copy(y, yNew)
			stats.Steps++
			stats.LastStep = h

			smp.capture(tOld, t, func(tc float64, out []float64) {
				// Linear interpolation is enough at stiff-phase accuracy.
				s := (tc - tOld) / (t - tOld)
				for i := range out {
					out[i] = yOld[i] + s*(y[i]-yOld[i])
				}
			})

			if norm == 0 {
				h *= 5
			} else {
				fac := stepSafety * math.Pow(norm, -1.0/3.0)
				if fac > 5 {
					fac = 5
				}
				h *= fac
			}
		} else {
			stats.Rejected++
			fac := stepSafety * math.Pow(norm, -1.0/3.0)
			if fac < stepShrinkLimit {
				fac = stepShrinkLimit
			}
			h *= fac
		}
	}

	smp.captureAt(t1, y)
	return nil
}

// numJacobian fills jac with the forward-difference Jacobian of fn at (t, y).
// f0 is fn(t, y); yPert and fPert are scratch vectors.
func numJacobian(fn Func, t float64, y, f0, yPert, fPert []float64, jac *mat.Dense, stats *Stats) {
	dim := len(y)
	copy(yPert, y)
	for j := 0; j < dim; j++ {
		delta := math.Sqrt(2.220446049250313e-16) * math.Max(math.Abs(y[j]), 1e-5)
		yPert[j] = y[j] + delta
		fn(t, yPert, fPert)
		stats.Evals++
		for i := 0; i < dim; i++ {
			jac.Set(i, j, (fPert[i]-f0[i])/delta)
		}
		yPert[j] = y[j]
	}
}
