package config

const (
	DefaultPerStrategy         = 2
	DefaultMaxPerStrategy      = 50
	DefaultMaxAttempts         = 100
	DefaultMinRelativeDistance = 0.01
	DefaultNoise               = 1e-4
	DefaultCandidates          = 2000
	DefaultExploitationXi      = 0.0
	DefaultExplorationXi       = 0.1
)

// DefaultConfig returns the spin-coating configuration the advisor was built for
func DefaultConfig() *Config {
	cfg := &Config{
		LogLevel: "info",
		Parameters: Bounds{
			{Name: "dropping_time", Min: 20, Max: 40},
			{Name: "rotation_time_2", Min: 11, Max: 35},
			{Name: "dropping_speed", Min: 25, Max: 1000},
		},
		Constraints: []Constraint{
			{Name: "quench-before-spin-end", Expr: "rotation_time_2 + 10 >= dropping_time"},
		},
		Optimizers: Optimizers{Seed: 1},
	}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults fills zero values with defaults
func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Optimizers.Noise == 0 {
		cfg.Optimizers.Noise = DefaultNoise
	}
	if cfg.Optimizers.Candidates == 0 {
		cfg.Optimizers.Candidates = DefaultCandidates
	}
	if cfg.Optimizers.Exploitation.Xi == nil {
		xi := DefaultExploitationXi
		cfg.Optimizers.Exploitation.Xi = &xi
	}
	if cfg.Optimizers.Exploration.Xi == nil {
		xi := DefaultExplorationXi
		cfg.Optimizers.Exploration.Xi = &xi
	}
	if cfg.Batch.PerStrategy == 0 {
		cfg.Batch.PerStrategy = DefaultPerStrategy
	}
	if cfg.Batch.MaxAttempts == 0 {
		cfg.Batch.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Batch.MaxPerStrategy == 0 {
		cfg.Batch.MaxPerStrategy = DefaultMaxPerStrategy
	}
	if cfg.Batch.MinRelativeDistance == nil {
		d := DefaultMinRelativeDistance
		cfg.Batch.MinRelativeDistance = &d
	}
	if cfg.Data != nil {
		if cfg.Data.Sheet == "" {
			cfg.Data.Sheet = "Sheet1"
		}
		if cfg.Data.Target.Scale == 0 {
			cfg.Data.Target.Scale = 1
		}
	}
	if cfg.Nomad != nil {
		if cfg.Nomad.PageSize == 0 {
			cfg.Nomad.PageSize = 100
		}
		if cfg.Nomad.RequestsPerSecond == 0 {
			cfg.Nomad.RequestsPerSecond = 5
		}
		if cfg.Nomad.MaxRetries == 0 {
			cfg.Nomad.MaxRetries = 3
		}
		if cfg.Nomad.UsernameEnv == "" {
			cfg.Nomad.UsernameEnv = "NOMAD_USERNAME"
		}
		if cfg.Nomad.PasswordEnv == "" {
			cfg.Nomad.PasswordEnv = "NOMAD_PASSWORD"
		}
		if cfg.Nomad.SampleColumn == "" {
			cfg.Nomad.SampleColumn = "sample_id"
		}
		if cfg.Nomad.Process.EntryType == "" {
			cfg.Nomad.Process.EntryType = "peroTF_SpinCoating"
		}
		if cfg.Nomad.Measurement.EntryType == "" {
			cfg.Nomad.Measurement.EntryType = "peroTF_JVmeasurement"
		}
		if cfg.Nomad.Measurement.NamePath == "" {
			cfg.Nomad.Measurement.NamePath = "data.name"
		}
	}
	if cfg.Output != nil && cfg.Output.Format == "" {
		cfg.Output.Format = "text"
	}
}
