package kinetics

import (
	"math"
	"testing"
)

func TestRateFiniteNonNegative(t *testing.T) {
	alphas := []float64{0.001, 0.01, 0.1, 0.25, 0.5, 0.75, 0.9, 0.99, 0.999}
	for m := 0; m < ModelCount; m++ {
		for _, a := range alphas {
			v := Rate(m, a)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Errorf("model %s: Rate(%d, %f) is not finite: %v", ModelName(m), m, a, v)
			}
			if v < 0 {
				t.Errorf("model %s: Rate(%d, %f) is negative: %v", ModelName(m), m, a, v)
			}
		}
	}
}

func TestRateBoundaryClamping(t *testing.T) {
	boundaries := []float64{0, 1, -0.5, 1.5, math.SmallestNonzeroFloat64, 1 - 1e-16}
	for m := 0; m < ModelCount; m++ {
		for _, a := range boundaries {
			v := Rate(m, a)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Errorf("model %s: Rate(%d, %f) at boundary is not finite: %v", ModelName(m), m, a, v)
			}
		}
	}
}

func TestRateKnownValues(t *testing.T) {
	tests := []struct {
		name     string
		model    int
		alpha    float64
		expected float64
	}{
		{"F0 is constant", F0, 0.3, 1},
		{"F1 first order", F1, 0.25, 0.75},
		{"F2 second order", F2, 0.5, 0.25},
		{"R2 contracting area", R2, 0.75, 1},
		{"P2 power law", P2, 0.25, 1},
		{"B1 Prout-Tompkins", B1, 0.5, 0.25},
		{"D1 parabolic", D1, 0.25, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Rate(tt.model, tt.alpha)
			if math.Abs(got-tt.expected) > 1e-12 {
				t.Errorf("expected %f, got %f", tt.expected, got)
			}
		})
	}
}

func TestRateOutOfRangeModel(t *testing.T) {
	if got := Rate(-1, 0.5); got != 0 {
		t.Errorf("expected 0 for negative model index, got %f", got)
	}
	if got := Rate(ModelCount, 0.5); got != 0 {
		t.Errorf("expected 0 for model index beyond range, got %f", got)
	}
}

func TestModelName(t *testing.T) {
	if got := ModelName(F1); got != "F1" {
		t.Errorf("expected F1, got %s", got)
	}
	if got := ModelName(A2); got != "A2" {
		t.Errorf("expected A2, got %s", got)
	}
	if got := ModelName(-1); got != "" {
		t.Errorf("expected empty name for invalid index, got %s", got)
	}
	if got := ModelName(ModelCount); got != "" {
		t.Errorf("expected empty name for invalid index, got %s", got)
	}
}

func TestSubsetNearest(t *testing.T) {
	tests := []struct {
		name     string
		subset   Subset
		gene     float64
		expected int
	}{
		{"Full set rounds", AllModels(), 3.4, 3},
		{"Full set clamps below", AllModels(), -7.2, 0},
		{"Full set clamps above", AllModels(), 90, ModelCount - 1},
		{"Restricted snaps down", NewSubset(F1, D3), 5, F1},
		{"Restricted snaps up", NewSubset(F1, D3), 20, D3},
		{"Exact member kept", NewSubset(F1, R2, D3), float64(R2), R2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.subset.Nearest(tt.gene)
			if got != tt.expected {
				t.Errorf("expected %d (%s), got %d (%s)", tt.expected, ModelName(tt.expected), got, ModelName(got))
			}
		})
	}
}

func TestSubsetNormalization(t *testing.T) {
	s := NewSubset(D3, F1, F1, -2, 500)
	if s.Len() != 2 {
		t.Fatalf("expected 2 enabled models, got %d", s.Len())
	}
	if !s.Contains(F1) || !s.Contains(D3) {
		t.Error("expected subset to contain F1 and D3")
	}
	if s.Contains(R2) {
		t.Error("expected subset not to contain R2")
	}

	full := NewSubset()
	if full.Len() != ModelCount {
		t.Errorf("expected empty argument list to enable all %d models, got %d", ModelCount, full.Len())
	}
}
