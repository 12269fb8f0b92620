// Package constraint evaluates feasibility rules over physical parameter rows.
package constraint

import (
	"fmt"

	"github.com/perotf-lab/expadvisor/internal/expr"
	"github.com/perotf-lab/expadvisor/pkg/config"
	"github.com/perotf-lab/expadvisor/pkg/models"
)

// Feasibility is a boolean predicate over a physical-unit row
type Feasibility interface {
	Feasible(row models.Row) (bool, error)
}

// Func adapts a plain function to Feasibility
type Func func(row models.Row) bool

// Feasible calls f
func (f Func) Feasible(row models.Row) (bool, error) {
	return f(row), nil
}

// Always accepts every row
var Always Feasibility = Func(func(models.Row) bool { return true })

// Rule is one named inequality
type Rule struct {
	Name string
	expr *expr.Expr
}

// String returns the rule's expression text
func (r Rule) String() string {
	return r.expr.String()
}

// Column is a derived value computed from other columns
type Column struct {
	Name string
	expr *expr.Expr
}

// Eval computes the column's value on row
func (c Column) Eval(row models.Row) (float64, error) {
	return c.expr.Eval(row)
}

// CompileColumns parses derived column definitions
func CompileColumns(defs []config.Derived) ([]Column, error) {
	cols := make([]Column, 0, len(defs))
	for _, d := range defs {
		e, err := expr.Parse(d.Expr)
		if err != nil {
			return nil, fmt.Errorf("derived column %s: %w", d.Name, err)
		}
		if e.IsBoolean() {
			return nil, fmt.Errorf("derived column %s: expression must be numeric", d.Name)
		}
		cols = append(cols, Column{Name: d.Name, expr: e})
	}
	return cols, nil
}

// ApplyColumns returns a copy of row with the derived columns added in order.
// Later columns may read earlier ones.
func ApplyColumns(row models.Row, cols []Column) (models.Row, error) {
	out := row.Clone()
	for _, c := range cols {
		v, err := c.expr.Eval(out)
		if err != nil {
			return nil, fmt.Errorf("derived column %s: %w", c.Name, err)
		}
		out[c.Name] = v
	}
	return out, nil
}

// Set is the conjunction of all configured rules
type Set struct {
	rules   []Rule
	derived []Column
}

// New compiles constraints. Rules may reference derived columns; only the
// columns the rules read, directly or through other columns, are computed on
// each row before evaluation.
func New(constraints []config.Constraint, derived []config.Derived) (*Set, error) {
	cols, err := CompileColumns(derived)
	if err != nil {
		return nil, err
	}
	s := &Set{}
	for i, c := range constraints {
		name := c.Name
		if name == "" {
			name = fmt.Sprintf("constraint-%d", i)
		}
		e, err := expr.Parse(c.Expr)
		if err != nil {
			return nil, fmt.Errorf("constraint %s: %w", name, err)
		}
		if !e.IsBoolean() {
			return nil, fmt.Errorf("constraint %s: expression must be a comparison", name)
		}
		s.rules = append(s.rules, Rule{Name: name, expr: e})
	}
	s.derived = requiredColumns(cols, s.rules)
	return s, nil
}

// requiredColumns returns, in declaration order, the columns the rules read
// and the earlier columns those depend on
func requiredColumns(cols []Column, rules []Rule) []Column {
	needed := make(map[string]bool)
	for _, r := range rules {
		for _, id := range r.expr.Identifiers() {
			needed[id] = true
		}
	}
	keep := make([]bool, len(cols))
	for i := len(cols) - 1; i >= 0; i-- {
		if !needed[cols[i].Name] {
			continue
		}
		keep[i] = true
		for _, id := range cols[i].expr.Identifiers() {
			needed[id] = true
		}
	}
	var out []Column
	for i, c := range cols {
		if keep[i] {
			out = append(out, c)
		}
	}
	return out
}

// Columns returns the names of the derived columns computed before evaluation
func (s *Set) Columns() []string {
	names := make([]string, len(s.derived))
	for i, c := range s.derived {
		names[i] = c.Name
	}
	return names
}

// FromConfig builds the set from the constraints and derived columns of cfg
func FromConfig(cfg *config.Config) (*Set, error) {
	var derived []config.Derived
	if cfg.Data != nil {
		derived = cfg.Data.Derived
	}
	return New(cfg.Constraints, derived)
}

// Rules returns the compiled rules
func (s *Set) Rules() []Rule {
	return append([]Rule(nil), s.rules...)
}

// Violations returns the names of the rules row breaks
func (s *Set) Violations(row models.Row) ([]string, error) {
	full, err := ApplyColumns(row, s.derived)
	if err != nil {
		return nil, err
	}
	var violated []string
	for _, r := range s.rules {
		ok, err := r.expr.EvalBool(full)
		if err != nil {
			return nil, fmt.Errorf("constraint %s: %w", r.Name, err)
		}
		if !ok {
			violated = append(violated, r.Name)
		}
	}
	return violated, nil
}

// Feasible reports whether row satisfies every rule. An empty set accepts everything.
func (s *Set) Feasible(row models.Row) (bool, error) {
	violated, err := s.Violations(row)
	if err != nil {
		return false, err
	}
	return len(violated) == 0, nil
}
