package solver

// sampler collects the state at requested sample points as the integration
// passes them. Steppers hand it each accepted step together with an
// interpolant valid on that step.
type sampler struct {
	points []float64
	states [][]float64
	next   int
	dim    int
}

func newSampler(points []float64, dim int) *sampler {
	return &sampler{
		points: points,
		states: make([][]float64, len(points)),
		dim:    dim,
	}
}

// captureAt records the exact state for any pending sample point equal to t.
func (s *sampler) captureAt(t float64, y []float64) {
	for s.next < len(s.points) && s.points[s.next] <= t {
		out := make([]float64, s.dim)
		copy(out, y)
		s.states[s.next] = out
		s.next++
	}
}

// capture records every pending sample point inside the accepted step
// (tOld, tNew] using the stepper's interpolant.
func (s *sampler) capture(tOld, tNew float64, interp func(t float64, out []float64)) {
	for s.next < len(s.points) && s.points[s.next] <= tNew {
		pt := s.points[s.next]
		out := make([]float64, s.dim)
		if pt <= tOld {
			interp(tOld, out)
		} else {
			interp(pt, out)
		}
		s.states[s.next] = out
		s.next++
	}
}

func (s *sampler) done() bool {
	return s.next >= len(s.points)
}
