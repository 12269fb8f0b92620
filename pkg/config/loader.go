package config

import (
	"fmt"
	"math"
	"os"

	"github.com/perotf-lab/expadvisor/internal/expr"
)

// LoadConfig loads and parses a configuration file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := ParseConfigYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// validateConfig performs validation on the configuration
func validateConfig(cfg *Config) error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", cfg.LogLevel)
	}

	if err := validateParameters(cfg.Parameters); err != nil {
		return fmt.Errorf("parameters validation failed: %w", err)
	}

	params := make(map[string]bool)
	for _, name := range cfg.Parameters.Names() {
		params[name] = true
	}

	var derived map[string]derivedColumn
	if cfg.Data != nil {
		d, err := validateData(cfg.Data, params)
		if err != nil {
			return fmt.Errorf("data validation failed: %w", err)
		}
		derived = d
	}

	if err := validateConstraints(cfg.Constraints, params, derived); err != nil {
		return fmt.Errorf("constraints validation failed: %w", err)
	}

	if err := validateOptimizers(&cfg.Optimizers); err != nil {
		return fmt.Errorf("optimizers validation failed: %w", err)
	}

	if err := validateBatch(&cfg.Batch, len(cfg.Parameters)); err != nil {
		return fmt.Errorf("batch validation failed: %w", err)
	}

	if cfg.Nomad != nil {
		if err := validateNomad(cfg.Nomad); err != nil {
			return fmt.Errorf("nomad validation failed: %w", err)
		}
	}

	if cfg.Output != nil {
		switch cfg.Output.Format {
		case "text", "csv", "json":
		default:
			return fmt.Errorf("invalid output format: %s (must be text, csv or json)", cfg.Output.Format)
		}
	}

	return nil
}

// validateParameters validates the bounds table
func validateParameters(bounds Bounds) error {
	if len(bounds) == 0 {
		return fmt.Errorf("at least one parameter must be defined")
	}
	seen := make(map[string]bool)
	for _, p := range bounds {
		if p.Name == "" {
			return fmt.Errorf("parameter name cannot be empty")
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate parameter: %s", p.Name)
		}
		seen[p.Name] = true
		if math.IsNaN(p.Min) || math.IsNaN(p.Max) || p.Min >= p.Max {
			return fmt.Errorf("parameter %s: min (%g) must be less than max (%g)", p.Name, p.Min, p.Max)
		}
		if p.Step < 0 {
			return fmt.Errorf("parameter %s: step cannot be negative", p.Name)
		}
	}
	return nil
}

// derivedColumn is a validated derived column: its position and the names it reads
type derivedColumn struct {
	index int
	reads []string
}

// validateData validates the data section and returns its derived columns by name
func validateData(data *Data, params map[string]bool) (map[string]derivedColumn, error) {
	if len(data.Target.Columns) == 0 {
		return nil, fmt.Errorf("target.columns must name at least one column")
	}
	derived := make(map[string]derivedColumn, len(data.Derived))
	for i, d := range data.Derived {
		if d.Name == "" {
			return nil, fmt.Errorf("derived column name cannot be empty")
		}
		if _, dup := derived[d.Name]; params[d.Name] || dup {
			return nil, fmt.Errorf("derived column %s shadows an existing name", d.Name)
		}
		e, err := expr.Parse(d.Expr)
		if err != nil {
			return nil, fmt.Errorf("derived column %s: %w", d.Name, err)
		}
		if e.IsBoolean() {
			return nil, fmt.Errorf("derived column %s: expression must be numeric", d.Name)
		}
		derived[d.Name] = derivedColumn{index: i, reads: e.Identifiers()}
	}
	return derived, nil
}

// validateConstraints checks that every expression parses, is boolean and
// only reads parameters or derived columns computable from parameters.
// Constraints are evaluated on suggested points, which carry parameters only.
func validateConstraints(constraints []Constraint, params map[string]bool, derived map[string]derivedColumn) error {
	checked := make(map[string]bool)
	for i, c := range constraints {
		label := c.Name
		if label == "" {
			label = fmt.Sprintf("#%d", i)
		}
		e, err := expr.Parse(c.Expr)
		if err != nil {
			return fmt.Errorf("constraint %s: %w", label, err)
		}
		if !e.IsBoolean() {
			return fmt.Errorf("constraint %s: expression must be a comparison", label)
		}
		for _, id := range e.Identifiers() {
			if params[id] {
				continue
			}
			if _, ok := derived[id]; !ok {
				return fmt.Errorf("constraint %s references unknown parameter: %s", label, id)
			}
			if err := checkComputable(id, params, derived, checked); err != nil {
				return fmt.Errorf("constraint %s: %w", label, err)
			}
		}
	}
	return nil
}

// checkComputable verifies that derived column name only reads parameters
// and earlier derived columns, recursively
func checkComputable(name string, params map[string]bool, derived map[string]derivedColumn, checked map[string]bool) error {
	if checked[name] {
		return nil
	}
	col := derived[name]
	for _, id := range col.reads {
		if params[id] {
			continue
		}
		dep, ok := derived[id]
		if !ok || dep.index >= col.index {
			return fmt.Errorf("derived column %s reads %s, which is not a parameter or an earlier derived column", name, id)
		}
		if err := checkComputable(id, params, derived, checked); err != nil {
			return err
		}
	}
	checked[name] = true
	return nil
}

// validateOptimizers validates surrogate hyperparameters
func validateOptimizers(o *Optimizers) error {
	if o.Noise <= 0 {
		return fmt.Errorf("noise must be positive")
	}
	if o.Candidates < 1 {
		return fmt.Errorf("candidates must be at least 1")
	}
	if o.LengthScale < 0 {
		return fmt.Errorf("length_scale cannot be negative")
	}
	if o.Exploitation.XiOr(0) < 0 {
		return fmt.Errorf("exploitation.xi cannot be negative")
	}
	if o.Exploration.XiOr(0) < 0 {
		return fmt.Errorf("exploration.xi cannot be negative")
	}
	return nil
}

// validateBatch validates batch assembly settings
func validateBatch(b *Batch, dims int) error {
	if b.PerStrategy < 1 {
		return fmt.Errorf("per_strategy must be at least 1")
	}
	if b.MaxPerStrategy < 1 {
		return fmt.Errorf("max_per_strategy must be at least 1")
	}
	if b.PerStrategy > b.MaxPerStrategy {
		return fmt.Errorf("per_strategy (%d) exceeds max_per_strategy (%d)", b.PerStrategy, b.MaxPerStrategy)
	}
	if b.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1")
	}
	diagonal := math.Sqrt(float64(dims))
	if d := b.MinDistance(); math.IsNaN(d) || d < 0 || d > diagonal {
		return fmt.Errorf("min_relative_distance must be within [0, %.4f]", diagonal)
	}
	return nil
}

// validateNomad validates the retrieval settings
func validateNomad(n *Nomad) error {
	if n.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if n.PageSize < 1 {
		return fmt.Errorf("page_size must be at least 1")
	}
	if n.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second cannot be negative")
	}
	if _, err := n.GetTimeout(); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	if n.Process.StepPosition != 0 && n.Process.StepField == "" {
		return fmt.Errorf("process.step_position needs process.step_field")
	}
	reserved := map[string]string{
		n.SampleColumn: "sample_column",
		"entry_id":     "entry_id",
		"pixel":        "pixel",
	}
	for section, mapping := range map[string]map[string]string{
		"process":     n.Process.Mapping,
		"measurement": n.Measurement.Mapping,
	} {
		for column, path := range mapping {
			if column == "" || path == "" {
				return fmt.Errorf("%s.mapping: column and path are required", section)
			}
			if owner, taken := reserved[column]; taken {
				return fmt.Errorf("%s.mapping: column %s collides with %s", section, column, owner)
			}
		}
	}
	for column := range n.Process.Mapping {
		if _, dup := n.Measurement.Mapping[column]; dup {
			return fmt.Errorf("column %s is mapped by both process and measurement", column)
		}
	}
	return nil
}
