package config

// Config is the daemon configuration loaded at startup. Fit requests carry
// their own data; this file covers the serving surface and the solver and
// optimizer defaults applied when a request leaves them unset.
type Config struct {
	LogLevel  string            `yaml:"log_level"`
	HTTPAddr  string            `yaml:"http_addr"`
	Solver    SolverSettings    `yaml:"solver"`
	Optimizer OptimizerSettings `yaml:"optimizer"`
	// EnabledModels restricts the kinetic model search space by name
	// (e.g. "F1", "A2", "D3"). Empty enables the full catalog.
	EnabledModels []string `yaml:"enabled_models"`
}

// SolverSettings are the default ODE solver settings for fit requests.
type SolverSettings struct {
	Method    string  `yaml:"method"`
	RTol      float64 `yaml:"rtol"`
	ATol      float64 `yaml:"atol"`
	MaxSteps  int     `yaml:"max_steps"`
	TimeoutMs int64   `yaml:"timeout_ms"`
}

// OptimizerSettings are the default global optimizer settings.
type OptimizerSettings struct {
	Strategy             string  `yaml:"strategy"`
	PopulationSize       int     `yaml:"population_size"`
	MaxGenerations       int     `yaml:"max_generations"`
	MutationFactor       float64 `yaml:"mutation_factor"`
	CrossoverProbability float64 `yaml:"crossover_probability"`
	Tolerance            float64 `yaml:"tolerance"`
	Seed                 int64   `yaml:"seed"`
	// Workers is the evaluation worker count; 0 means all available cores.
	Workers int  `yaml:"workers"`
	Refine  bool `yaml:"refine"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		HTTPAddr: ":8080",
		Solver: SolverSettings{
			Method:    "auto",
			RTol:      1e-2,
			ATol:      1e-4,
			MaxSteps:  100000,
			TimeoutMs: 200,
		},
		Optimizer: OptimizerSettings{
			Strategy:             "best1bin",
			MaxGenerations:       100,
			MutationFactor:       0.7,
			CrossoverProbability: 0.9,
			Tolerance:            0.01,
		},
	}
}
