package reaction

import (
	"math"

	"github.com/kinfit/kinfit-core/internal/kinetics"
)

// GasConstant is the molar gas constant R in J/(mol*K).
const GasConstant = 8.314462618

// Numeric guards for the Arrhenius term. The temperature floor keeps
// Ea/(R*T) bounded on pathological sample grids; the exponent clamp keeps
// math.Exp finite for extreme candidate parameters. Both are load-bearing
// for numeric parity with reference fits, not just safety rails.
const (
	minTemperature = 200.0
	maxExpArg      = 700.0
)

// Derivative computes dy/dT for a temperature-ramp integration at heating
// rate beta. y holds the remaining fraction of each species; the conversion
// degree of a reaction's source is 1 - y[source]. dy is written in place and
// must have length Species. Allocation-free.
func (n *Network) Derivative(T float64, y, dy []float64, beta float64) {
	for i := range dy {
		dy[i] = 0
	}
	if T < minTemperature {
		T = minTemperature
	}
	invRT := 1 / (GasConstant * T)

	for i := range n.Reactions {
		r := &n.Reactions[i]

		arg := r.LnA - r.Ea*invRT
		if arg > maxExpArg {
			arg = maxExpArg
		} else if arg < -maxExpArg {
			arg = -maxExpArg
		}
		k := math.Exp(arg)

		alpha := 1 - y[r.Source]
		rate := r.Weight * k * kinetics.Rate(r.Model, alpha) / beta

		dy[r.Source] -= rate
		dy[r.Target] += rate
	}
}

// SignalWeights returns per-species weights for the overall conversion
// signal: each species weighted by its graph depth from the root, normalized
// so a fully transformed system reads 1. For a single step A->B this reduces
// to the classic alpha = 1 - y[A].
func (n *Network) SignalWeights() []float64 {
	depth := make([]int, n.Species)
	for i := range depth {
		depth[i] = -1
	}
	depth[0] = 0
	queue := []int{0}
	maxDepth := 0
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		for i := range n.Reactions {
			r := &n.Reactions[i]
			if r.Source != s || depth[r.Target] >= 0 {
				continue
			}
			depth[r.Target] = depth[s] + 1
			if depth[r.Target] > maxDepth {
				maxDepth = depth[r.Target]
			}
			queue = append(queue, r.Target)
		}
	}

	weights := make([]float64, n.Species)
	if maxDepth == 0 {
		return weights
	}
	for s, d := range depth {
		if d > 0 {
			weights[s] = float64(d) / float64(maxDepth)
		}
	}
	return weights
}

// Progress computes the overall conversion signal for a state vector given
// precomputed signal weights. Allocation-free.
func Progress(weights, y []float64) float64 {
	signal := 0.0
	for s, w := range weights {
		signal += w * y[s]
	}
	return signal
}
