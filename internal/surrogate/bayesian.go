package surrogate

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/perotf-lab/expadvisor/pkg/logger"
	"github.com/perotf-lab/expadvisor/pkg/utils"
)

// Options configures a BayesianOptimizer
type Options struct {
	// Name labels log lines, e.g. the strategy using this instance
	Name string
	// Xi is the expected-improvement margin; 0 is greedy
	Xi float64
	// Noise is added to the kernel diagonal
	Noise float64
	// AllowDuplicates permits registering the same point more than once
	AllowDuplicates bool
	// Candidates is the number of random points scored per Suggest
	Candidates int
	// Refine is the number of best candidates polished with Nelder-Mead
	Refine int
	// LengthScale fixes the kernel length scale; 0 fits it
	LengthScale float64
	Seed        int64
}

// DefaultOptions returns the settings the advisor uses for a greedy instance
func DefaultOptions() Options {
	return Options{
		Noise:           1e-4,
		AllowDuplicates: true,
		Candidates:      2000,
		Refine:          5,
		Seed:            1,
	}
}

// BayesianOptimizer is a Gaussian-process optimizer with an expected
// improvement acquisition. It is safe for concurrent use; calls on one
// instance are serialized.
type BayesianOptimizer struct {
	mu   sync.Mutex
	keys []string
	opts Options
	gp   *gaussianProcess
	rng  *utils.RandSource
	seen map[string]int

	dirty bool
	log   *slog.Logger
}

// NewBayesianOptimizer creates an optimizer over the named parameters. Its key
// order is the sorted parameter names.
func NewBayesianOptimizer(names []string, opts Options) (*BayesianOptimizer, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("at least one parameter is required")
	}
	keys := append([]string(nil), names...)
	sort.Strings(keys)
	for i := 1; i < len(keys); i++ {
		if keys[i] == keys[i-1] {
			return nil, fmt.Errorf("duplicate parameter %s", keys[i])
		}
	}
	if opts.Noise <= 0 {
		return nil, fmt.Errorf("noise must be positive, got %g", opts.Noise)
	}
	if opts.Xi < 0 {
		return nil, fmt.Errorf("xi cannot be negative, got %g", opts.Xi)
	}
	if opts.Candidates < 1 {
		opts.Candidates = DefaultOptions().Candidates
	}
	if opts.Refine < 0 {
		opts.Refine = 0
	}

	return &BayesianOptimizer{
		keys:  keys,
		opts:  opts,
		gp:    newGaussianProcess(opts.Noise, opts.LengthScale),
		rng:   utils.NewRandSource(opts.Seed),
		seen:  make(map[string]int),
		dirty: true,
		log:   logger.Component("surrogate").With("optimizer", opts.Name),
	}, nil
}

// Keys returns the parameter order of every point
func (o *BayesianOptimizer) Keys() []string {
	return append([]string(nil), o.keys...)
}

// Xi returns the acquisition margin
func (o *BayesianOptimizer) Xi() float64 {
	return o.opts.Xi
}

// Len returns the number of registered observations
func (o *BayesianOptimizer) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.gp.len()
}

// Best returns the registered point with the highest target
func (o *BayesianOptimizer) Best() ([]float64, float64, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.gp.len() == 0 {
		return nil, 0, false
	}
	idx := 0
	for i, y := range o.gp.y {
		if y > o.gp.y[idx] {
			idx = i
		}
	}
	return append([]float64(nil), o.gp.x[idx]...), o.gp.y[idx], true
}

// Register adds an observation
func (o *BayesianOptimizer) Register(point []float64, target float64) error {
	if err := o.checkPoint(point); err != nil {
		return err
	}
	if math.IsNaN(target) || math.IsInf(target, 0) {
		return fmt.Errorf("target %v: %w", target, ErrNonFinite)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	key := pointKey(point)
	if o.seen[key] > 0 && !o.opts.AllowDuplicates {
		return fmt.Errorf("point %v: %w", point, ErrDuplicatePoint)
	}
	o.seen[key]++
	o.gp.add(point, target)
	o.dirty = true
	return nil
}

// Suggest returns the point maximizing expected improvement. With no
// observations it returns a uniformly random point.
func (o *BayesianOptimizer) Suggest(ctx context.Context) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	d := len(o.keys)
	if o.gp.len() == 0 {
		return o.rng.UnitVector(d), nil
	}
	if err := o.refit(); err != nil {
		return nil, err
	}

	best := o.gp.y[0]
	for _, y := range o.gp.y[1:] {
		best = math.Max(best, y)
	}
	acq := func(x []float64) float64 {
		mean, std := o.gp.predict(x)
		return expectedImprovement(mean, std, best, o.opts.Xi)
	}

	x, ei, err := maximizeUnitCube(ctx, acq, d, o.opts.Candidates, o.opts.Refine, o.rng)
	if err != nil {
		return nil, err
	}
	o.log.Debug("acquisition maximized",
		slog.Float64("expected_improvement", ei),
		slog.Float64("incumbent", best),
		slog.Float64("length_scale", o.gp.ell))
	return x, nil
}

// Predict returns the posterior mean and standard deviation at each point
func (o *BayesianOptimizer) Predict(points [][]float64) ([]float64, []float64, error) {
	for _, p := range points {
		if err := o.checkPoint(p); err != nil {
			return nil, nil, err
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.refit(); err != nil {
		return nil, nil, err
	}
	mean := make([]float64, len(points))
	std := make([]float64, len(points))
	for i, p := range points {
		mean[i], std[i] = o.gp.predict(p)
	}
	return mean, std, nil
}

// refit must be called with mu held
func (o *BayesianOptimizer) refit() error {
	if !o.dirty {
		return nil
	}
	if err := o.gp.fit(); err != nil {
		return fmt.Errorf("fit surrogate: %w", err)
	}
	o.dirty = false
	return nil
}

func (o *BayesianOptimizer) checkPoint(point []float64) error {
	if len(point) != len(o.keys) {
		return fmt.Errorf("got %d coordinates, want %d: %w", len(point), len(o.keys), ErrDimension)
	}
	for _, v := range point {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("point %v: %w", point, ErrNonFinite)
		}
	}
	return nil
}

func pointKey(point []float64) string {
	return fmt.Sprint(point)
}

var _ Optimizer = (*BayesianOptimizer)(nil)
