package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the advisor configuration
type Config struct {
	LogLevel    string       `yaml:"log_level"`
	Parameters  Bounds       `yaml:"parameters"`
	Constraints []Constraint `yaml:"constraints,omitempty"`
	Optimizers  Optimizers   `yaml:"optimizers"`
	Batch       Batch        `yaml:"batch"`
	Data        *Data        `yaml:"data,omitempty"`
	Nomad       *Nomad       `yaml:"nomad,omitempty"`
	Output      *Output      `yaml:"output,omitempty"`
}

// ParameterBound is the physical range of one experiment parameter
type ParameterBound struct {
	Name string  `yaml:"-"`
	Min  float64 `yaml:"min"`
	Max  float64 `yaml:"max"`
	// Step is the resolution used when rounding sampled plans (0 = none)
	Step float64 `yaml:"step,omitempty"`
}

// Bounds is the ordered parameter table. In YAML it is a mapping whose key
// order is the canonical declaration order.
type Bounds []ParameterBound

// Names returns the parameter names in declaration order
func (b Bounds) Names() []string {
	names := make([]string, len(b))
	for i, p := range b {
		names[i] = p.Name
	}
	return names
}

// Lookup returns the bound for name
func (b Bounds) Lookup(name string) (ParameterBound, bool) {
	for _, p := range b {
		if p.Name == name {
			return p, true
		}
	}
	return ParameterBound{}, false
}

// UnmarshalYAML decodes a mapping node while keeping key order
func (b *Bounds) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: parameters must be a mapping of name to {min, max}", node.Line)
	}
	out := make(Bounds, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		var p ParameterBound
		if err := val.Decode(&p); err != nil {
			return fmt.Errorf("parameter %s: %w", key.Value, err)
		}
		p.Name = key.Value
		out = append(out, p)
	}
	*b = out
	return nil
}

// MarshalYAML encodes the bounds back into an ordered mapping
func (b Bounds) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, p := range b {
		val := &yaml.Node{}
		if err := val.Encode(p); err != nil {
			return nil, err
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: p.Name},
			val,
		)
	}
	return node, nil
}

// Constraint is a feasibility inequality over physical parameter values
type Constraint struct {
	Name string `yaml:"name,omitempty"`
	Expr string `yaml:"expr"`
}

// Optimizers configures the two surrogate optimizer instances
type Optimizers struct {
	Seed            int64          `yaml:"seed"`
	Noise           float64        `yaml:"noise"`
	AllowDuplicates *bool          `yaml:"allow_duplicates,omitempty"`
	Candidates      int            `yaml:"candidates"`
	LengthScale     float64        `yaml:"length_scale,omitempty"` // 0 = fitted
	Exploitation    StrategyConfig `yaml:"exploitation"`
	Exploration     StrategyConfig `yaml:"exploration"`
}

// DuplicatesAllowed reports the effective allow_duplicates flag
func (o Optimizers) DuplicatesAllowed() bool {
	return o.AllowDuplicates == nil || *o.AllowDuplicates
}

// StrategyConfig holds the acquisition hyperparameter of one strategy
type StrategyConfig struct {
	Xi *float64 `yaml:"xi,omitempty"`
}

// XiOr returns the configured xi or def
func (s StrategyConfig) XiOr(def float64) float64 {
	if s.Xi == nil {
		return def
	}
	return *s.Xi
}

// Batch configures batch assembly
type Batch struct {
	PerStrategy int `yaml:"per_strategy"`
	// MaxPerStrategy caps per_strategy, including per-request overrides
	MaxPerStrategy      int      `yaml:"max_per_strategy"`
	MaxAttempts         int      `yaml:"max_attempts"`
	MinRelativeDistance *float64 `yaml:"min_relative_distance,omitempty"`
}

// MinDistance returns the configured diversity threshold or the default.
// An explicit 0 turns the check off.
func (b Batch) MinDistance() float64 {
	if b.MinRelativeDistance == nil {
		return DefaultMinRelativeDistance
	}
	return *b.MinRelativeDistance
}

// Data describes the historical experiment table
type Data struct {
	Path    string            `yaml:"path"`
	Sheet   string            `yaml:"sheet,omitempty"`
	Target  Target            `yaml:"target"`
	Derived []Derived         `yaml:"derived,omitempty"`
	Rename  map[string]string `yaml:"rename,omitempty"`
}

// Target describes how the outcome is computed from the table columns
type Target struct {
	Columns []string `yaml:"columns"`
	Scale   float64  `yaml:"scale,omitempty"`
}

// Derived is a computed column
type Derived struct {
	Name string `yaml:"name"`
	Expr string `yaml:"expr"`
}

// Nomad configures retrieval from the experiment database
type Nomad struct {
	BaseURL           string            `yaml:"base_url"`
	UsernameEnv       string            `yaml:"username_env"`
	PasswordEnv       string            `yaml:"password_env"`
	PageSize          int               `yaml:"page_size"`
	RequestsPerSecond float64           `yaml:"requests_per_second"`
	Timeout           string            `yaml:"timeout,omitempty"` // e.g. "30s"
	MaxRetries        int               `yaml:"max_retries"`
	// SampleColumn names the column that receives each sample's lab ID
	SampleColumn string           `yaml:"sample_column,omitempty"`
	Process      NomadProcess     `yaml:"process"`
	Measurement  NomadMeasurement `yaml:"measurement"`
}

// NomadProcess selects the process-step entries that reference a sample and
// the parameters read from them
type NomadProcess struct {
	EntryType string `yaml:"entry_type"`
	// StepField and StepPosition keep only the step at that position of the
	// experimental plan; an empty field keeps every step
	StepField    string            `yaml:"step_field,omitempty"`
	StepPosition float64           `yaml:"step_position,omitempty"`
	Mapping      map[string]string `yaml:"mapping"` // column -> path under archive
}

// NomadMeasurement selects the per-pixel measurement entries of a sample
type NomadMeasurement struct {
	EntryType string `yaml:"entry_type"`
	// NamePath holds "<lab id> <pixel>"
	NamePath string            `yaml:"name_path,omitempty"`
	Mapping  map[string]string `yaml:"mapping"` // column -> path under archive
}

// GetTimeout parses the timeout string
func (n *Nomad) GetTimeout() (time.Duration, error) {
	if n.Timeout == "" {
		return 30 * time.Second, nil
	}
	return time.ParseDuration(n.Timeout)
}

// Output configures where reports go
type Output struct {
	Format string `yaml:"format,omitempty"` // text, csv, json
	XLSX   string `yaml:"xlsx,omitempty"`
	DB     string `yaml:"db,omitempty"`
}
