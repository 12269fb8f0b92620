package improvement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/perotf-lab/expadvisor/internal/constraint"
	"github.com/perotf-lab/expadvisor/internal/metrics"
	"github.com/perotf-lab/expadvisor/internal/space"
	"github.com/perotf-lab/expadvisor/internal/surrogate"
	"github.com/perotf-lab/expadvisor/pkg/logger"
	"github.com/perotf-lab/expadvisor/pkg/models"
)

// PenaltyTarget is the outcome registered for an infeasible suggestion
const PenaltyTarget = 0.0

// ErrConstraintUnsatisfiable is returned when no feasible point was found
// within the attempt limit
var ErrConstraintUnsatisfiable = errors.New("constraint unsatisfiable")

// UnsatisfiableError describes an exhausted retry sequence
type UnsatisfiableError struct {
	Method   models.Method
	Attempts int
	// Last is the final rejected point in physical units
	Last models.Row
}

func (e *UnsatisfiableError) Error() string {
	return fmt.Sprintf("%s: no feasible suggestion after %d attempts (last %s)",
		e.Method, e.Attempts, formatRow(sortedKeys(e.Last), e.Last))
}

func (e *UnsatisfiableError) Unwrap() error {
	return ErrConstraintUnsatisfiable
}

// Candidate is a suggestion that passed the feasibility check
type Candidate struct {
	Normalized []float64
	Keys       []string
	Physical   models.Row
	Attempts   int
}

// Guard asks an optimizer for points until one is feasible. Every rejected
// point is registered on the same optimizer with PenaltyTarget.
type Guard struct {
	bounds      space.Bounds
	feasible    constraint.Feasibility
	maxAttempts int
	recorder    metrics.Recorder
	log         *slog.Logger
}

// NewGuard creates a guard. maxAttempts below 1 means a single attempt.
func NewGuard(bounds space.Bounds, feasible constraint.Feasibility, maxAttempts int) *Guard {
	if feasible == nil {
		feasible = constraint.Always
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Guard{
		bounds:      bounds,
		feasible:    feasible,
		maxAttempts: maxAttempts,
		recorder:    metrics.Nop{},
		log:         logger.Component("guard"),
	}
}

// WithRecorder sets the event recorder
func (g *Guard) WithRecorder(r metrics.Recorder) *Guard {
	if r != nil {
		g.recorder = r
	}
	return g
}

// Next returns the first feasible suggestion from opt
func (g *Guard) Next(ctx context.Context, opt surrogate.Optimizer, method models.Method) (*Candidate, error) {
	var last models.Row
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		point, err := opt.Suggest(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s suggest: %w", method, err)
		}
		// key order is read on every call; instances may differ
		keys := opt.Keys()
		if len(keys) != len(point) {
			return nil, fmt.Errorf("%s: optimizer returned %d coordinates for %d keys", method, len(point), len(keys))
		}
		normalized := models.RowFromVector(keys, point)
		if err := space.CheckRow(normalized, g.bounds); err != nil {
			return nil, fmt.Errorf("%s: %w", method, err)
		}
		physical := space.Denormalize(normalized, g.bounds)

		ok, err := g.feasible.Feasible(physical)
		if err != nil {
			return nil, fmt.Errorf("%s: evaluate feasibility: %w", method, err)
		}
		if ok {
			if attempt > 1 {
				g.log.Info("feasible suggestion accepted after retry",
					"method", method,
					"attempts", attempt)
			}
			return &Candidate{Normalized: point, Keys: keys, Physical: physical, Attempts: attempt}, nil
		}

		if err := opt.Register(point, PenaltyTarget); err != nil {
			return nil, fmt.Errorf("%s: register penalty: %w", method, err)
		}
		g.recorder.SuggestionRejected(method)
		g.log.Warn("suggestion is outside the constrained space, registered penalty point",
			"method", method,
			"attempt", attempt,
			"suggested", formatRow(keys, physical),
			"penalty", PenaltyTarget)
		last = physical
	}

	return nil, &UnsatisfiableError{Method: method, Attempts: g.maxAttempts, Last: last}
}

// formatRow renders "a=1; b=2" in keys order
func formatRow(keys []string, row models.Row) string {
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%g", k, row[k]))
	}
	return strings.Join(parts, "; ")
}

func sortedKeys(row models.Row) []string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
