package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kinfit/kinfit-core/internal/kinetics"
)

func TestParseYAMLDefaults(t *testing.T) {
	cfg, err := ParseYAML([]byte("{}"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected default log_level info, got %s", cfg.LogLevel)
	}
	if cfg.Solver.Method != "auto" {
		t.Errorf("expected default solver method auto, got %s", cfg.Solver.Method)
	}
	if cfg.Solver.RTol != 1e-2 || cfg.Solver.ATol != 1e-4 {
		t.Errorf("expected default tolerances 1e-2/1e-4, got %g/%g", cfg.Solver.RTol, cfg.Solver.ATol)
	}
	if cfg.Solver.TimeoutMs != 200 {
		t.Errorf("expected default timeout 200ms, got %d", cfg.Solver.TimeoutMs)
	}
	if cfg.Optimizer.Strategy != "best1bin" {
		t.Errorf("expected default strategy best1bin, got %s", cfg.Optimizer.Strategy)
	}
}

func TestParseYAMLOverrides(t *testing.T) {
	doc := `
log_level: debug
http_addr: ":9999"
solver:
  method: rosenbrock
  rtol: 1e-4
  atol: 1e-7
  max_steps: 5000
  timeout_ms: 500
optimizer:
  strategy: rand1bin
  population_size: 40
  max_generations: 250
  mutation_factor: 0.5
  crossover_probability: 0.8
  tolerance: 0.001
  seed: 1234
  workers: 4
  refine: true
enabled_models:
  - F1
  - A2
  - D3
`
	cfg, err := ParseYAML([]byte(doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Solver.Method != "rosenbrock" {
		t.Errorf("expected rosenbrock, got %s", cfg.Solver.Method)
	}
	if cfg.Optimizer.PopulationSize != 40 || cfg.Optimizer.Seed != 1234 {
		t.Errorf("optimizer overrides not applied: %+v", cfg.Optimizer)
	}
	if !cfg.Optimizer.Refine {
		t.Error("expected refine true")
	}

	subset, err := cfg.ModelSubset()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if subset.Len() != 3 {
		t.Errorf("expected 3 enabled models, got %d", subset.Len())
	}
	if !subset.Contains(kinetics.F1) || !subset.Contains(kinetics.A2) || !subset.Contains(kinetics.D3) {
		t.Error("expected subset to contain F1, A2 and D3")
	}
}

func TestParseYAMLValidation(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"Bad log level", "log_level: loud"},
		{"Bad solver method", "solver: {method: euler}"},
		{"Zero rtol", "solver: {rtol: 0}"},
		{"Negative timeout", "solver: {timeout_ms: -1}"},
		{"Bad strategy", "optimizer: {strategy: genetic}"},
		{"Mutation too large", "optimizer: {mutation_factor: 3}"},
		{"Crossover too large", "optimizer: {crossover_probability: 1.2}"},
		{"Zero generations", "optimizer: {max_generations: 0}"},
		{"Unknown model name", "enabled_models: [F1, Z9]"},
		{"Not yaml", ":\n:::"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseYAML([]byte(tt.doc)); err == nil {
				t.Error("expected parse/validation error, got nil")
			}
		})
	}
}

func TestModelSubsetEmptyEnablesAll(t *testing.T) {
	cfg := Default()
	subset, err := cfg.ModelSubset()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if subset.Len() != kinetics.ModelCount {
		t.Errorf("expected full catalog (%d), got %d", kinetics.ModelCount, subset.Len())
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("log_level: warn\n"), 0o644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("expected warn, got %s", cfg.LogLevel)
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
