// Package advisor wires configuration into a ready-to-run suggestion pipeline.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/perotf-lab/expadvisor/internal/constraint"
	"github.com/perotf-lab/expadvisor/internal/history"
	"github.com/perotf-lab/expadvisor/internal/improvement"
	"github.com/perotf-lab/expadvisor/internal/metrics"
	"github.com/perotf-lab/expadvisor/internal/space"
	"github.com/perotf-lab/expadvisor/internal/store"
	"github.com/perotf-lab/expadvisor/internal/surrogate"
	"github.com/perotf-lab/expadvisor/pkg/config"
	"github.com/perotf-lab/expadvisor/pkg/logger"
	"github.com/perotf-lab/expadvisor/pkg/models"
)

// ErrBatchTooLarge is returned when a request asks for more suggestions per
// strategy than batch.max_per_strategy allows
var ErrBatchTooLarge = errors.New("batch size exceeds limit")

// Factory creates a fresh optimizer for one strategy over the named parameters
type Factory func(method models.Method, names []string) (surrogate.Optimizer, error)

// BayesianFactory builds Gaussian-process optimizers from the optimizer section.
// Exploration uses the next seed so the two instances draw different candidates.
func BayesianFactory(cfg config.Optimizers) Factory {
	return func(method models.Method, names []string) (surrogate.Optimizer, error) {
		opts := surrogate.DefaultOptions()
		opts.Name = string(method)
		opts.Noise = cfg.Noise
		opts.AllowDuplicates = cfg.DuplicatesAllowed()
		opts.Candidates = cfg.Candidates
		opts.LengthScale = cfg.LengthScale
		opts.Seed = cfg.Seed

		switch method {
		case models.MethodExploitation:
			opts.Xi = cfg.Exploitation.XiOr(config.DefaultExploitationXi)
		case models.MethodExploration:
			opts.Xi = cfg.Exploration.XiOr(config.DefaultExplorationXi)
			if opts.Seed != 0 {
				opts.Seed++
			}
		default:
			return nil, fmt.Errorf("unknown method %q", method)
		}
		return surrogate.NewBayesianOptimizer(names, opts)
	}
}

// Option customizes an Advisor
type Option func(*Advisor)

// WithFactory replaces the optimizer factory
func WithFactory(f Factory) Option {
	return func(a *Advisor) { a.factory = f }
}

// WithRecorder sets the metrics recorder
func WithRecorder(r metrics.Recorder) Option {
	return func(a *Advisor) { a.recorder = r }
}

// WithStore persists every assembled batch
func WithStore(s store.Store) Option {
	return func(a *Advisor) { a.store = s }
}

// Advisor runs the full pipeline: seed, assemble, check and report
type Advisor struct {
	cfg      *config.Config
	bounds   space.Bounds
	rules    *constraint.Set
	factory  Factory
	reporter *improvement.Reporter
	recorder metrics.Recorder
	store    store.Store
	log      *slog.Logger
}

// Build validates cfg and prepares an advisor
func Build(cfg *config.Config, opts ...Option) (*Advisor, error) {
	rules, err := constraint.FromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("compile constraints: %w", err)
	}
	bounds := space.FromConfig(cfg.Parameters)
	a := &Advisor{
		cfg:      cfg,
		bounds:   bounds,
		rules:    rules,
		factory:  BayesianFactory(cfg.Optimizers),
		reporter: improvement.NewReporter(bounds),
		recorder: metrics.Nop{},
		log:      logger.Component("advisor"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Bounds returns the parameter bounds in declaration order
func (a *Advisor) Bounds() space.Bounds {
	return a.bounds
}

// Rules returns the compiled constraint set
func (a *Advisor) Rules() *constraint.Set {
	return a.rules
}

// MaxPerStrategy returns the largest accepted per-strategy batch size
func (a *Advisor) MaxPerStrategy() int {
	return a.cfg.Batch.MaxPerStrategy
}

// Store returns the configured ledger, or nil
func (a *Advisor) Store() store.Store {
	return a.store
}

// Request is one suggestion run
type Request struct {
	Observations []models.Observation
	// PerStrategy overrides the configured count when positive
	PerStrategy int
}

// Result is the outcome of a run
type Result struct {
	Batch *models.Batch
	Table *models.Table
}

// Run is RunRequest with the configured batch size
func (a *Advisor) Run(ctx context.Context, observations []models.Observation) (*Result, error) {
	return a.RunRequest(ctx, Request{Observations: observations})
}

// RunRequest seeds fresh optimizers with the history, assembles a batch and
// reports it. Nothing is stored when assembly fails.
func (a *Advisor) RunRequest(ctx context.Context, req Request) (*Result, error) {
	if req.PerStrategy > a.cfg.Batch.MaxPerStrategy {
		return nil, fmt.Errorf("%w: per_strategy %d, max %d", ErrBatchTooLarge, req.PerStrategy, a.cfg.Batch.MaxPerStrategy)
	}
	for i, o := range req.Observations {
		if err := space.CheckRow(o.Params, a.bounds); err != nil {
			return nil, fmt.Errorf("observation %d: %w", i, err)
		}
	}
	if summary, err := history.Summarize(req.Observations); err == nil {
		a.log.Info("history loaded", summary.Args()...)
	} else {
		a.log.Info("no history, suggestions start from random points")
	}

	strategies := make([]improvement.Strategy, 0, 2)
	for _, m := range []models.Method{models.MethodExploitation, models.MethodExploration} {
		opt, err := a.factory(m, a.bounds.Names())
		if err != nil {
			return nil, fmt.Errorf("create %s optimizer: %w", m, err)
		}
		strategies = append(strategies, improvement.Strategy{Method: m, Optimizer: opt})
	}

	batchOpts := improvement.Options{
		PerStrategy:         a.cfg.Batch.PerStrategy,
		MaxAttempts:         a.cfg.Batch.MaxAttempts,
		MinRelativeDistance: a.cfg.Batch.MinDistance(),
	}
	if req.PerStrategy > 0 {
		batchOpts.PerStrategy = req.PerStrategy
	}
	orch := improvement.NewOrchestrator(a.bounds, a.rules, batchOpts).WithRecorder(a.recorder)

	if err := orch.Seed(req.Observations, strategies...); err != nil {
		return nil, err
	}
	batch, err := orch.Assemble(ctx, strategies...)
	if err != nil {
		return nil, err
	}
	table, err := a.reporter.Report(batch)
	if err != nil {
		return nil, err
	}

	if a.store != nil {
		rec := &store.Record{Batch: batch, Table: table, Observations: len(req.Observations)}
		if err := a.store.SaveBatch(ctx, rec); err != nil {
			return nil, fmt.Errorf("save batch: %w", err)
		}
	}
	return &Result{Batch: batch, Table: table}, nil
}
