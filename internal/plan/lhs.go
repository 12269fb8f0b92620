// Package plan generates initial experimental plans by Latin hypercube sampling.
package plan

import (
	"context"
	"fmt"

	"github.com/perotf-lab/expadvisor/internal/constraint"
	"github.com/perotf-lab/expadvisor/internal/space"
	"github.com/perotf-lab/expadvisor/pkg/logger"
	"github.com/perotf-lab/expadvisor/pkg/models"
	"github.com/perotf-lab/expadvisor/pkg/utils"
)

// LatinHypercube draws n points in the d-dimensional unit cube such that each
// of the n equal strata of every axis holds exactly one point. Without
// scrambling the points sit at the stratum centres.
func LatinHypercube(d, n int, scramble bool, rng *utils.RandSource) [][]float64 {
	points := make([][]float64, n)
	for i := range points {
		points[i] = make([]float64, d)
	}
	for j := 0; j < d; j++ {
		perm := rng.Perm(n)
		for i := 0; i < n; i++ {
			offset := 0.5
			if scramble {
				offset = rng.Float64()
			}
			points[i][j] = (float64(perm[i]) + offset) / float64(n)
		}
	}
	return points
}

// Options configures plan generation
type Options struct {
	Samples  int
	Scramble bool
	Seed     int64
	// Steps overrides the per-parameter rounding resolution
	Steps map[string]float64
}

// Plan is a generated experimental plan
type Plan struct {
	Columns []string
	Rows    []models.Row
	// Infeasible counts sampled rows removed by the constraint filter
	Infeasible int
}

// Generate samples the declared bounds, denormalizes and rounds each value to
// its step. When feasible is non-nil, rows it rejects are removed.
func Generate(ctx context.Context, params []Parameter, opts Options, feasible constraint.Feasibility) (*Plan, error) {
	if opts.Samples < 1 {
		return nil, fmt.Errorf("sample count must be positive, got %d", opts.Samples)
	}
	if len(params) == 0 {
		return nil, fmt.Errorf("no parameters to sample")
	}
	params = append([]Parameter(nil), params...)
	bounds := make(space.Bounds, len(params))
	for i, p := range params {
		step := p.Step
		if s, ok := opts.Steps[p.Name]; ok {
			step = s
		}
		if step < 0 {
			return nil, fmt.Errorf("parameter %s: step must not be negative", p.Name)
		}
		params[i].Step = step
		bounds[i] = p.Bound
	}

	rng := utils.NewRandSource(opts.Seed)
	unit := LatinHypercube(len(params), opts.Samples, opts.Scramble, rng)

	out := &Plan{Columns: bounds.Names()}
	for _, point := range unit {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row := space.Denormalize(models.RowFromVector(out.Columns, point), bounds)
		for _, p := range params {
			row[p.Name] = utils.RoundPartial(row[p.Name], p.Step)
		}
		if feasible != nil {
			ok, err := feasible.Feasible(row)
			if err != nil {
				return nil, err
			}
			if !ok {
				out.Infeasible++
				continue
			}
		}
		out.Rows = append(out.Rows, row)
	}

	logger.Component("plan").Info("plan generated",
		"samples", opts.Samples,
		"kept", len(out.Rows),
		"infeasible", out.Infeasible,
		"scramble", opts.Scramble,
	)
	return out, nil
}

// Parameter is a bound with its rounding resolution
type Parameter struct {
	space.Bound
	Step float64
}

// ParametersFromBounds pairs bounds with their configured steps
func ParametersFromBounds(b space.Bounds, steps map[string]float64) []Parameter {
	out := make([]Parameter, len(b))
	for i, p := range b {
		out[i] = Parameter{Bound: p, Step: steps[p.Name]}
	}
	return out
}
