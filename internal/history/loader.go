package history

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/perotf-lab/expadvisor/internal/constraint"
	"github.com/perotf-lab/expadvisor/internal/space"
	"github.com/perotf-lab/expadvisor/pkg/config"
	"github.com/perotf-lab/expadvisor/pkg/logger"
	"github.com/perotf-lab/expadvisor/pkg/models"
	"github.com/perotf-lab/expadvisor/pkg/utils"
)

// DefaultTargetColumn is read when no data section is configured
const DefaultTargetColumn = "target"

// Result is the outcome of loading a table
type Result struct {
	Observations []models.Observation
	// Columns is the header after renaming and derived columns
	Columns []string
	// Dropped counts rows with a missing or non-numeric required value
	Dropped int
}

// Loader turns raw tables into observations
type Loader struct {
	bounds  space.Bounds
	data    config.Data
	derived []constraint.Column
	log     *slog.Logger
}

// NewLoader creates a loader. A nil data section reads the target from a
// column named "target" with no renames or derived columns.
func NewLoader(bounds space.Bounds, data *config.Data) (*Loader, error) {
	d := config.Data{Target: config.Target{Columns: []string{DefaultTargetColumn}, Scale: 1}}
	if data != nil {
		d = *data
		if d.Target.Scale == 0 {
			d.Target.Scale = 1
		}
	}
	if len(d.Target.Columns) == 0 {
		return nil, fmt.Errorf("target columns are required")
	}
	cols, err := constraint.CompileColumns(d.Derived)
	if err != nil {
		return nil, err
	}
	return &Loader{bounds: bounds, data: d, derived: cols, log: logger.Component("history")}, nil
}

// LoadFile reads path and converts it
func (l *Loader) LoadFile(path string) (*Result, error) {
	t, err := ReadFile(path, l.data.Sheet)
	if err != nil {
		return nil, err
	}
	res, err := l.Load(t)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return res, nil
}

// Load converts a raw table. Missing parameter or target columns fail the
// whole load; rows with unusable values are dropped and counted.
func (l *Loader) Load(t *Table) (*Result, error) {
	t.Rename(l.data.Rename)

	columns := append([]string(nil), t.Header...)
	for _, c := range l.derived {
		columns = append(columns, c.Name)
	}
	if err := space.CheckColumns(columns, l.bounds); err != nil {
		return nil, err
	}
	available := make(map[string]bool, len(columns))
	for _, c := range columns {
		available[c] = true
	}
	for _, name := range l.data.Target.Columns {
		if !available[name] {
			return nil, fmt.Errorf("target column %s not found", name)
		}
	}

	res := &Result{Columns: columns}
	for i, raw := range t.Rows {
		obs, err := l.observation(t.Header, raw)
		if err != nil {
			res.Dropped++
			l.log.Debug("row dropped", "row", i+2, "reason", err)
			continue
		}
		res.Observations = append(res.Observations, obs)
	}
	if res.Dropped > 0 {
		l.log.Warn("rows with missing values were excluded",
			"dropped", res.Dropped,
			"kept", len(res.Observations),
		)
	}
	return res, nil
}

func (l *Loader) observation(header, raw []string) (models.Observation, error) {
	row := make(models.Row, len(header))
	for i, name := range header {
		if i >= len(raw) || name == "" {
			continue
		}
		if v, ok := parseNumber(raw[i]); ok {
			row[name] = v
		}
	}

	full, derived := l.applyDerived(row)

	params := make(models.Row, len(l.bounds))
	for _, name := range l.bounds.Names() {
		v, ok := full[name]
		if !ok {
			return models.Observation{}, fmt.Errorf("missing value for %s", name)
		}
		params[name] = v
	}

	targets := make([]float64, len(l.data.Target.Columns))
	for i, name := range l.data.Target.Columns {
		v, ok := full[name]
		if !ok {
			return models.Observation{}, fmt.Errorf("missing value for %s", name)
		}
		targets[i] = v
	}
	return models.Observation{
		Params:  params,
		Target:  utils.Mean(targets) * l.data.Target.Scale,
		Derived: derived,
	}, nil
}

// applyDerived computes the derived columns in order. A column whose inputs
// are missing from the row is left unset; it only drops the row when a
// parameter or target needs it.
func (l *Loader) applyDerived(row models.Row) (full, derived models.Row) {
	full = row.Clone()
	for _, c := range l.derived {
		v, err := c.Eval(full)
		if err != nil {
			continue
		}
		full[c.Name] = v
		if derived == nil {
			derived = make(models.Row, len(l.derived))
		}
		derived[c.Name] = v
	}
	return full, derived
}

// parseNumber accepts plain numbers and decimal commas
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		v, err = strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
		if err != nil {
			return 0, false
		}
	}
	return v, true
}
