package optimizer

import (
	"math"

	"gonum.org/v1/gonum/optimize"
)

// refine polishes the DE best with a bounded Nelder-Mead local descent.
// Points proposed outside the search bounds are clipped before scoring, so
// the simplex cannot wander into invalid parameter space.
func refine(eval Evaluator, bounds Bounds, start []float64) ([]float64, float64, int) {
	evals := 0
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			evals++
			clipped := make([]float64, len(x))
			copy(clipped, x)
			bounds.clip(clipped)
			return eval.Evaluate(clipped)
		},
	}

	settings := &optimize.Settings{
		MajorIterations: 200,
		FuncEvaluations: 1000,
	}

	result, err := optimize.Minimize(problem, start, settings, &optimize.NelderMead{})
	if err != nil || result == nil {
		return start, math.MaxFloat64, evals
	}

	x := make([]float64, len(result.X))
	copy(x, result.X)
	bounds.clip(x)
	return x, result.F, evals
}
