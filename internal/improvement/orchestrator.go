// Package improvement assembles batches of suggested experiments from two
// surrogate optimizers: one greedy, one exploratory.
package improvement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/perotf-lab/expadvisor/internal/constraint"
	"github.com/perotf-lab/expadvisor/internal/metrics"
	"github.com/perotf-lab/expadvisor/internal/space"
	"github.com/perotf-lab/expadvisor/internal/surrogate"
	"github.com/perotf-lab/expadvisor/pkg/logger"
	"github.com/perotf-lab/expadvisor/pkg/models"
	"github.com/perotf-lab/expadvisor/pkg/utils"
)

// Strategy pairs an optimizer with the method label of its suggestions
type Strategy struct {
	Method    models.Method
	Optimizer surrogate.Optimizer
}

// Options configures batch assembly
type Options struct {
	// PerStrategy is the number of suggestions taken from each strategy
	PerStrategy int
	// MaxAttempts bounds the suggest calls spent on one accepted suggestion
	MaxAttempts int
	// MinRelativeDistance is the diversity threshold in normalized units
	MinRelativeDistance float64
}

// Orchestrator drives the strategies through the guard and checks the result
type Orchestrator struct {
	bounds      space.Bounds
	guard       *Guard
	diversity   *DiversityChecker
	perStrategy int
	recorder    metrics.Recorder
	log         *slog.Logger
}

// NewOrchestrator creates an orchestrator
func NewOrchestrator(bounds space.Bounds, feasible constraint.Feasibility, opts Options) *Orchestrator {
	if opts.PerStrategy < 1 {
		opts.PerStrategy = 1
	}
	return &Orchestrator{
		bounds:      bounds,
		guard:       NewGuard(bounds, feasible, opts.MaxAttempts),
		diversity:   NewDiversityChecker(opts.MinRelativeDistance),
		perStrategy: opts.PerStrategy,
		recorder:    metrics.Nop{},
		log:         logger.Component("orchestrator"),
	}
}

// WithRecorder sets the event recorder for the orchestrator and its guard
func (o *Orchestrator) WithRecorder(r metrics.Recorder) *Orchestrator {
	if r != nil {
		o.recorder = r
		o.guard.WithRecorder(r)
	}
	return o
}

// Seed normalizes every observation and registers it into each strategy's
// optimizer, in that optimizer's own key order.
func (o *Orchestrator) Seed(observations []models.Observation, strategies ...Strategy) error {
	for i, obs := range observations {
		if err := space.CheckRow(obs.Params, o.bounds); err != nil {
			return fmt.Errorf("observation %d: %w", i, err)
		}
		normalized := space.Normalize(obs.Params, o.bounds)
		for _, s := range strategies {
			point, err := normalized.Vector(s.Optimizer.Keys())
			if err != nil {
				return fmt.Errorf("observation %d for %s: %w", i, s.Method, err)
			}
			if err := s.Optimizer.Register(point, obs.Target); err != nil {
				return fmt.Errorf("observation %d for %s: %w", i, s.Method, err)
			}
		}
	}
	o.log.Info("history registered",
		"observations", len(observations),
		"strategies", len(strategies))
	return nil
}

// Assemble takes PerStrategy rounds over strategies, one feasible suggestion
// per strategy per round, and returns them in that interleaved order.
func (o *Orchestrator) Assemble(ctx context.Context, strategies ...Strategy) (*models.Batch, error) {
	if len(strategies) == 0 {
		return nil, fmt.Errorf("at least one strategy is required")
	}
	start := time.Now()
	batch := &models.Batch{
		ID:          utils.GenerateBatchID(),
		CreatedAt:   start.UTC(),
		Suggestions: make([]models.Suggestion, 0, o.perStrategy*len(strategies)),
	}
	log := o.log.With("batch_id", batch.ID)

	for round := 0; round < o.perStrategy; round++ {
		for _, s := range strategies {
			suggestion, err := o.next(ctx, s)
			if err != nil {
				return nil, fmt.Errorf("round %d: %w", round+1, err)
			}
			batch.Suggestions = append(batch.Suggestions, *suggestion)
			o.recorder.SuggestionAccepted(s.Method, suggestion.Attempts)
		}
	}

	points := make([][]float64, len(batch.Suggestions))
	names := o.bounds.Names()
	for i, s := range batch.Suggestions {
		v, err := s.NormalizedRow().Vector(names)
		if err != nil {
			return nil, fmt.Errorf("suggestion %d: %w", i, err)
		}
		points[i] = v
	}
	batch.Diversity = o.diversity.Check(points)
	o.recorder.DiversityChecked(batch.Diversity.MinDistance, batch.Diversity.Breached)

	elapsed := time.Since(start)
	o.recorder.BatchCompleted(elapsed)
	log.Info("batch assembled",
		"suggestions", len(batch.Suggestions),
		"duration", elapsed)
	return batch, nil
}

func (o *Orchestrator) next(ctx context.Context, s Strategy) (*models.Suggestion, error) {
	c, err := o.guard.Next(ctx, s.Optimizer, s.Method)
	if err != nil {
		return nil, err
	}
	mean, std, err := s.Optimizer.Predict([][]float64{c.Normalized})
	if err != nil {
		return nil, fmt.Errorf("%s predict: %w", s.Method, err)
	}
	if len(mean) != 1 || len(std) != 1 {
		return nil, fmt.Errorf("%s predict: expected one result, got %d", s.Method, len(mean))
	}
	return &models.Suggestion{
		Normalized:     c.Normalized,
		Keys:           c.Keys,
		Physical:       c.Physical,
		PredictedValue: mean[0],
		Uncertainty:    std[0],
		Method:         s.Method,
		Attempts:       c.Attempts,
	}, nil
}
