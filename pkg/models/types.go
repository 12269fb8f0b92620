package models

import (
	"fmt"
	"time"
)

// Row holds parameter values keyed by parameter name. Depending on context the
// values are physical units or normalized unit-hypercube coordinates.
type Row map[string]float64

// Clone returns a copy of the row
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Vector returns the values of the row in the given key order.
// It fails if any key is missing.
func (r Row) Vector(keys []string) ([]float64, error) {
	out := make([]float64, len(keys))
	for i, k := range keys {
		v, ok := r[k]
		if !ok {
			return nil, fmt.Errorf("row has no value for %q", k)
		}
		out[i] = v
	}
	return out, nil
}

// RowFromVector builds a row from values given in key order
func RowFromVector(keys []string, values []float64) Row {
	out := make(Row, len(keys))
	for i, k := range keys {
		if i < len(values) {
			out[k] = values[i]
		}
	}
	return out
}

// Observation is one past experiment: its parameters and the measured outcome
// (an efficiency score). The target is not range checked. Params holds the
// declared parameters only; computed columns go to Derived.
type Observation struct {
	Params  Row     `json:"params"`
	Target  float64 `json:"target"`
	Derived Row     `json:"derived,omitempty"`
}

// Method labels the strategy that produced a suggestion
type Method string

const (
	MethodExploitation Method = "Exploitation"
	MethodExploration  Method = "Exploration"
)

// Valid reports whether m is one of the known methods
func (m Method) Valid() bool {
	return m == MethodExploitation || m == MethodExploration
}

// Suggestion is a proposed parameter vector for the next experiment
type Suggestion struct {
	// Normalized is the point in the producing optimizer's key order.
	Normalized     []float64 `json:"normalized"`
	Keys           []string  `json:"keys"`
	Physical       Row       `json:"physical"`
	PredictedValue float64   `json:"predicted_value"`
	Uncertainty    float64   `json:"uncertainty"`
	Method         Method    `json:"method"`
	// Attempts counts suggest() calls needed before a feasible point came back.
	Attempts int `json:"attempts"`
}

// NormalizedRow returns the normalized point keyed by parameter name
func (s Suggestion) NormalizedRow() Row {
	return RowFromVector(s.Keys, s.Normalized)
}

// DiversityReport is the outcome of the nearest-neighbour spread check on a batch
type DiversityReport struct {
	MinDistance float64 `json:"min_distance"`
	Threshold   float64 `json:"threshold"`
	Breached    bool    `json:"breached"`
	// Pair holds the batch indices of the two closest suggestions.
	Pair [2]int `json:"pair"`
}

// Batch is the ordered set of suggestions returned by one orchestrator invocation
type Batch struct {
	ID          string          `json:"id"`
	CreatedAt   time.Time       `json:"created_at"`
	Suggestions []Suggestion    `json:"suggestions"`
	Diversity   DiversityReport `json:"diversity"`
}

// CountByMethod returns how many suggestions each method contributed
func (b *Batch) CountByMethod() map[Method]int {
	counts := make(map[Method]int)
	for _, s := range b.Suggestions {
		counts[s.Method]++
	}
	return counts
}

// TableRow is one line of the presented result table
type TableRow struct {
	Values         Row     `json:"values"`
	PredictedValue float64 `json:"predicted_value"`
	Uncertainty    float64 `json:"uncertainty"`
	Method         Method  `json:"method"`
}

// Table is the final denormalized, rounded and sorted suggestion table
type Table struct {
	BatchID   string          `json:"batch_id,omitempty"`
	Columns   []string        `json:"columns"`
	Rows      []TableRow      `json:"rows"`
	Diversity DiversityReport `json:"diversity"`
}

// Header returns the column header line: parameters, then the prediction columns
func (t *Table) Header() []string {
	header := make([]string, 0, len(t.Columns)+3)
	header = append(header, t.Columns...)
	return append(header, "predicted_value", "uncertainty", "method")
}
