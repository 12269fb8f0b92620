package surrogate

import (
	"context"
	"sort"

	"gonum.org/v1/gonum/optimize"

	"github.com/perotf-lab/expadvisor/pkg/utils"
)

type scored struct {
	x     []float64
	value float64
}

// maximizeUnitCube searches [0,1]^d for the maximum of f: n random
// candidates, then Nelder-Mead from the best few.
func maximizeUnitCube(ctx context.Context, f func([]float64) float64, d, n, refine int, rng *utils.RandSource) ([]float64, float64, error) {
	if n < 1 {
		n = 1
	}
	pool := make([]scored, n)
	for i := range pool {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, 0, err
			}
		}
		x := rng.UnitVector(d)
		pool[i] = scored{x: x, value: f(x)}
	}
	sort.SliceStable(pool, func(i, j int) bool { return pool[i].value > pool[j].value })

	best := pool[0]
	if refine > len(pool) {
		refine = len(pool)
	}
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			return -f(utils.ClampVector(append([]float64(nil), x...), 0, 1))
		},
	}
	settings := &optimize.Settings{FuncEvaluations: 40 * (d + 1)}
	for _, start := range pool[:refine] {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		// the last location is usable even when an evaluation limit stops the search
		res, _ := optimize.Minimize(problem, start.x, settings, &optimize.NelderMead{})
		if res == nil || len(res.X) != d {
			continue
		}
		x := utils.ClampVector(append([]float64(nil), res.X...), 0, 1)
		if v := f(x); v > best.value {
			best = scored{x: x, value: v}
		}
	}
	return best.x, best.value, nil
}
