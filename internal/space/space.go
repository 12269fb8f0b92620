// Package space maps parameter rows between physical units and the unit
// hypercube the surrogate optimizers work in.
package space

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/perotf-lab/expadvisor/pkg/config"
	"github.com/perotf-lab/expadvisor/pkg/logger"
	"github.com/perotf-lab/expadvisor/pkg/models"
)

// ErrConfigurationMismatch is returned when a bounded column is absent from the data
var ErrConfigurationMismatch = errors.New("configuration mismatch")

// Bound is the physical range of one parameter
type Bound struct {
	Name string
	Min  float64
	Max  float64
}

// Span returns max - min
func (b Bound) Span() float64 {
	return b.Max - b.Min
}

// Bounds is the ordered bounds table. Its order is the declaration order.
type Bounds []Bound

// FromConfig converts the configured parameter table
func FromConfig(params config.Bounds) Bounds {
	out := make(Bounds, len(params))
	for i, p := range params {
		out[i] = Bound{Name: p.Name, Min: p.Min, Max: p.Max}
	}
	return out
}

// Names returns parameter names in declaration order
func (b Bounds) Names() []string {
	names := make([]string, len(b))
	for i, p := range b {
		names[i] = p.Name
	}
	return names
}

// Lookup returns the bound for name
func (b Bounds) Lookup(name string) (Bound, bool) {
	for _, p := range b {
		if p.Name == name {
			return p, true
		}
	}
	return Bound{}, false
}

// Dims returns the number of parameters
func (b Bounds) Dims() int {
	return len(b)
}

// CheckColumns verifies that every bounded column is present
func CheckColumns(columns []string, b Bounds) error {
	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}
	var missing []string
	for _, p := range b {
		if !present[p.Name] {
			missing = append(missing, p.Name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: columns %v are bounded but not present in the data", ErrConfigurationMismatch, missing)
	}
	return nil
}

// CheckRow is CheckColumns for a single row
func CheckRow(row models.Row, b Bounds) error {
	columns := make([]string, 0, len(row))
	for k := range row {
		columns = append(columns, k)
	}
	return CheckColumns(columns, b)
}

// Normalize maps the bounded columns of row to (v - min) / (max - min).
// Values are not clamped. Other columns are copied through.
//
// If a bounded column is missing the error is logged and row is returned
// unmodified; use CheckColumns first when that matters.
func Normalize(row models.Row, b Bounds) models.Row {
	return transform(row, b, "normalize", func(v float64, p Bound) float64 {
		return (v - p.Min) / p.Span()
	})
}

// Denormalize is the inverse of Normalize
func Denormalize(row models.Row, b Bounds) models.Row {
	return transform(row, b, "denormalize", func(v float64, p Bound) float64 {
		return v*p.Span() + p.Min
	})
}

// NormalizeTable normalizes every row
func NormalizeTable(rows []models.Row, b Bounds) []models.Row {
	out := make([]models.Row, len(rows))
	for i, r := range rows {
		out[i] = Normalize(r, b)
	}
	return out
}

// DenormalizeTable denormalizes every row
func DenormalizeTable(rows []models.Row, b Bounds) []models.Row {
	out := make([]models.Row, len(rows))
	for i, r := range rows {
		out[i] = Denormalize(r, b)
	}
	return out
}

func transform(row models.Row, b Bounds, op string, f func(float64, Bound) float64) models.Row {
	for _, p := range b {
		if _, ok := row[p.Name]; !ok {
			logger.Component("space").Error("column specified in bounds is not present in the row",
				slog.String("op", op),
				slog.String("column", p.Name))
			return row
		}
	}
	out := row.Clone()
	for _, p := range b {
		out[p.Name] = f(row[p.Name], p)
	}
	return out
}
