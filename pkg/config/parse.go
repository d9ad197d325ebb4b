package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/kinfit/kinfit-core/internal/kinetics"
)

// ParseYAML parses and validates a configuration document. Unset fields
// fall back to defaults before validation.
func ParseYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("yaml parse failed: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", cfg.LogLevel)
	}

	if cfg.HTTPAddr == "" {
		return fmt.Errorf("http_addr cannot be empty")
	}

	switch cfg.Solver.Method {
	case "auto", "dopri5", "rosenbrock":
	default:
		return fmt.Errorf("invalid solver method: %s (must be auto, dopri5, or rosenbrock)", cfg.Solver.Method)
	}
	if cfg.Solver.RTol <= 0 {
		return fmt.Errorf("solver rtol must be positive, got %g", cfg.Solver.RTol)
	}
	if cfg.Solver.ATol <= 0 {
		return fmt.Errorf("solver atol must be positive, got %g", cfg.Solver.ATol)
	}
	if cfg.Solver.MaxSteps <= 0 {
		return fmt.Errorf("solver max_steps must be positive, got %d", cfg.Solver.MaxSteps)
	}
	if cfg.Solver.TimeoutMs < 0 {
		return fmt.Errorf("solver timeout_ms cannot be negative, got %d", cfg.Solver.TimeoutMs)
	}

	switch cfg.Optimizer.Strategy {
	case "rand1bin", "best1bin":
	default:
		return fmt.Errorf("invalid optimizer strategy: %s (must be rand1bin or best1bin)", cfg.Optimizer.Strategy)
	}
	if cfg.Optimizer.MutationFactor <= 0 || cfg.Optimizer.MutationFactor > 2 {
		return fmt.Errorf("optimizer mutation_factor %g out of range (0, 2]", cfg.Optimizer.MutationFactor)
	}
	if cfg.Optimizer.CrossoverProbability < 0 || cfg.Optimizer.CrossoverProbability > 1 {
		return fmt.Errorf("optimizer crossover_probability %g out of range [0, 1]", cfg.Optimizer.CrossoverProbability)
	}
	if cfg.Optimizer.PopulationSize < 0 {
		return fmt.Errorf("optimizer population_size cannot be negative, got %d", cfg.Optimizer.PopulationSize)
	}
	if cfg.Optimizer.MaxGenerations <= 0 {
		return fmt.Errorf("optimizer max_generations must be positive, got %d", cfg.Optimizer.MaxGenerations)
	}
	if cfg.Optimizer.Workers < 0 {
		return fmt.Errorf("optimizer workers cannot be negative, got %d", cfg.Optimizer.Workers)
	}
	if cfg.Optimizer.Tolerance <= 0 {
		return fmt.Errorf("optimizer tolerance must be positive, got %g", cfg.Optimizer.Tolerance)
	}

	if _, err := cfg.ModelSubset(); err != nil {
		return err
	}

	return nil
}

// ModelSubset resolves the enabled model names to a kinetics subset.
func (c *Config) ModelSubset() (kinetics.Subset, error) {
	if len(c.EnabledModels) == 0 {
		return kinetics.AllModels(), nil
	}
	indices := make([]int, 0, len(c.EnabledModels))
	for _, name := range c.EnabledModels {
		m, ok := kinetics.ModelIndex(name)
		if !ok {
			return kinetics.Subset{}, fmt.Errorf("unknown kinetic model name: %s", name)
		}
		indices = append(indices, m)
	}
	return kinetics.NewSubset(indices...), nil
}
