package kinetics

import (
	"math"
	"sort"
)

// ModelCount is the number of kinetic models in the set.
const ModelCount = 39

// Epsilon bounds the conversion degree away from 0 and 1 before model
// evaluation. Several models diverge or hit log(0) at the endpoints.
const Epsilon = 1e-8

// Model indices. The catalog covers the standard solid-state reaction
// families: reaction order (F), geometric contraction (R), power law (P),
// exponential law (E), Avrami-Erofeev nucleation (A), autocatalytic
// Prout-Tompkins (B/PT), diffusion (D) and truncated Sestak-Berggren (SB).
const (
	F0 = iota
	F1d3
	F3d4
	F1
	F3d2
	F2
	F3
	F4
	R2
	R3
	P2
	P3
	P4
	P2d3
	P3d2
	E1
	E2
	A3d2
	A2
	A5d2
	A3
	A4
	B1
	D1
	D2
	D3
	D4
	D5
	D6
	D7
	D8
	SB1
	SB2
	SB3
	A1d2
	A1d3
	A1d4
	PT2
	PT3
)

var modelNames = [ModelCount]string{
	"F0", "F1/3", "F3/4", "F1", "F3/2", "F2", "F3", "F4",
	"R2", "R3",
	"P2", "P3", "P4", "P2/3", "P3/2",
	"E1", "E2",
	"A3/2", "A2", "A5/2", "A3", "A4",
	"B1",
	"D1", "D2", "D3", "D4", "D5", "D6", "D7", "D8",
	"SB(1/2,1)", "SB(1,1/2)", "SB(1/2,1/2)",
	"A1/2", "A1/3", "A1/4",
	"PT2", "PT3",
}

// ModelName returns the conventional name of a model index, or "" if the
// index is out of range.
func ModelName(model int) string {
	if model < 0 || model >= ModelCount {
		return ""
	}
	return modelNames[model]
}

// ModelIndex resolves a conventional model name to its index.
func ModelIndex(name string) (int, bool) {
	for m := 0; m < ModelCount; m++ {
		if modelNames[m] == name {
			return m, true
		}
	}
	return 0, false
}

// Rate evaluates the differential kinetic model f(alpha) for the given model
// index. It is pure and allocation-free; alpha is clamped to
// (Epsilon, 1-Epsilon) before evaluation so every model stays finite on the
// closed domain. An out-of-range model index returns 0.
func Rate(model int, alpha float64) float64 {
	if alpha < Epsilon {
		alpha = Epsilon
	} else if alpha > 1-Epsilon {
		alpha = 1 - Epsilon
	}
	oneMinus := 1 - alpha

	switch model {
	case F0:
		return 1
	case F1d3:
		return math.Pow(oneMinus, 1.0/3.0)
	case F3d4:
		return math.Pow(oneMinus, 3.0/4.0)
	case F1:
		return oneMinus
	case F3d2:
		return math.Pow(oneMinus, 3.0/2.0)
	case F2:
		return oneMinus * oneMinus
	case F3:
		return oneMinus * oneMinus * oneMinus
	case F4:
		return oneMinus * oneMinus * oneMinus * oneMinus
	case R2:
		return 2 * math.Sqrt(oneMinus)
	case R3:
		return 3 * math.Pow(oneMinus, 2.0/3.0)
	case P2:
		return 2 * math.Sqrt(alpha)
	case P3:
		return 3 * math.Pow(alpha, 2.0/3.0)
	case P4:
		return 4 * math.Pow(alpha, 3.0/4.0)
	case P2d3:
		return (2.0 / 3.0) * math.Pow(alpha, -1.0/2.0)
	case P3d2:
		return (3.0 / 2.0) * math.Pow(alpha, 1.0/3.0)
	case E1:
		return alpha
	case E2:
		return alpha / 2
	case A3d2:
		return (3.0 / 2.0) * oneMinus * math.Pow(-math.Log(oneMinus), 1.0/3.0)
	case A2:
		return 2 * oneMinus * math.Sqrt(-math.Log(oneMinus))
	case A5d2:
		return (5.0 / 2.0) * oneMinus * math.Pow(-math.Log(oneMinus), 3.0/5.0)
	case A3:
		return 3 * oneMinus * math.Pow(-math.Log(oneMinus), 2.0/3.0)
	case A4:
		return 4 * oneMinus * math.Pow(-math.Log(oneMinus), 3.0/4.0)
	case B1:
		return alpha * oneMinus
	case D1:
		return 1 / (2 * alpha)
	case D2:
		return -1 / math.Log(oneMinus)
	case D3:
		return 3 * math.Pow(oneMinus, 2.0/3.0) / (2 * (1 - math.Pow(oneMinus, 1.0/3.0)))
	case D4:
		return 3 / (2 * (math.Pow(oneMinus, -1.0/3.0) - 1))
	case D5:
		return 3 * math.Pow(oneMinus, 4.0/3.0) / (2 * (math.Pow(oneMinus, -1.0/3.0) - 1))
	case D6:
		return 3 * math.Pow(1+alpha, 2.0/3.0) / (2 * (math.Pow(1+alpha, 1.0/3.0) - 1))
	case D7:
		return 3 / (2 * (1 - math.Pow(1+alpha, -1.0/3.0)))
	case D8:
		return 3 * math.Pow(1+alpha, 4.0/3.0) / (2 * (math.Pow(1+alpha, 1.0/3.0) - 1))
	case SB1:
		return math.Sqrt(alpha) * oneMinus
	case SB2:
		return alpha * math.Sqrt(oneMinus)
	case SB3:
		return math.Sqrt(alpha * oneMinus)
	case A1d2:
		return (1.0 / 2.0) * oneMinus * math.Pow(-math.Log(oneMinus), -1)
	case A1d3:
		return (1.0 / 3.0) * oneMinus * math.Pow(-math.Log(oneMinus), -2)
	case A1d4:
		return (1.0 / 4.0) * oneMinus * math.Pow(-math.Log(oneMinus), -3)
	case PT2:
		return alpha * oneMinus * oneMinus
	case PT3:
		return alpha * alpha * oneMinus
	default:
		return 0
	}
}

// Subset restricts the model indices a search is allowed to propose.
// Rate itself never filters; candidate generation and decoding respect the
// subset when mapping a continuous index gene onto a concrete model.
type Subset struct {
	indices []int
}

// NewSubset builds a subset from the given model indices. Out-of-range
// indices are dropped, duplicates collapsed. An empty argument list yields
// the full model set.
func NewSubset(indices ...int) Subset {
	if len(indices) == 0 {
		return AllModels()
	}
	seen := make(map[int]bool, len(indices))
	kept := make([]int, 0, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= ModelCount || seen[idx] {
			continue
		}
		seen[idx] = true
		kept = append(kept, idx)
	}
	sort.Ints(kept)
	return Subset{indices: kept}
}

// AllModels returns the subset containing every model index.
func AllModels() Subset {
	all := make([]int, ModelCount)
	for i := range all {
		all[i] = i
	}
	return Subset{indices: all}
}

// Len returns the number of enabled models.
func (s Subset) Len() int {
	return len(s.indices)
}

// Indices returns a copy of the enabled model indices in ascending order.
func (s Subset) Indices() []int {
	out := make([]int, len(s.indices))
	copy(out, s.indices)
	return out
}

// Contains reports whether the model index is enabled.
func (s Subset) Contains(model int) bool {
	i := sort.SearchInts(s.indices, model)
	return i < len(s.indices) && s.indices[i] == model
}

// Nearest maps a continuous model gene onto the nearest enabled index.
// The gene is rounded, clamped to [0, ModelCount-1], and then snapped to the
// closest member of the subset.
func (s Subset) Nearest(gene float64) int {
	if len(s.indices) == 0 {
		return 0
	}
	idx := int(math.Round(gene))
	if idx < 0 {
		idx = 0
	} else if idx >= ModelCount {
		idx = ModelCount - 1
	}
	pos := sort.SearchInts(s.indices, idx)
	if pos == 0 {
		return s.indices[0]
	}
	if pos == len(s.indices) {
		return s.indices[len(s.indices)-1]
	}
	lo, hi := s.indices[pos-1], s.indices[pos]
	if idx-lo <= hi-idx {
		return lo
	}
	return hi
}
