// Package advisord exposes the advisor over HTTP and gRPC.
package advisord

import (
	"context"
	"errors"
	"fmt"

	"github.com/perotf-lab/expadvisor/internal/advisor"
	"github.com/perotf-lab/expadvisor/internal/improvement"
	"github.com/perotf-lab/expadvisor/internal/space"
	"github.com/perotf-lab/expadvisor/internal/store"
	"github.com/perotf-lab/expadvisor/pkg/logger"
	"github.com/perotf-lab/expadvisor/pkg/models"
)

var (
	// ErrInvalidRequest marks malformed requests
	ErrInvalidRequest = errors.New("invalid request")
	// ErrLedgerDisabled is returned by batch lookups when no store is configured
	ErrLedgerDisabled = errors.New("batch ledger is disabled")
)

// SuggestRequest is the body of a suggestion request
type SuggestRequest struct {
	Observations []models.Observation `json:"observations"`
	PerStrategy  int                  `json:"per_strategy,omitempty"`
	// CallbackURL receives a batch-ready notification; "{batch_id}" is substituted
	CallbackURL    string `json:"callback_url,omitempty"`
	CallbackSecret string `json:"callback_secret,omitempty"`
}

// SuggestResponse is the result of a suggestion request
type SuggestResponse struct {
	BatchID string        `json:"batch_id"`
	Table   *models.Table `json:"table"`
	Batch   *models.Batch `json:"batch"`
}

// Service is the transport-independent API
type Service struct {
	advisor  *advisor.Advisor
	notifier *Notifier
}

// NewService creates a service. notifier may be nil.
func NewService(a *advisor.Advisor, n *Notifier) *Service {
	return &Service{advisor: a, notifier: n}
}

// Suggest runs one batch
func (s *Service) Suggest(ctx context.Context, req *SuggestRequest) (*SuggestResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: body is required", ErrInvalidRequest)
	}
	if req.PerStrategy < 0 {
		return nil, fmt.Errorf("%w: per_strategy must not be negative", ErrInvalidRequest)
	}
	if limit := s.advisor.MaxPerStrategy(); req.PerStrategy > limit {
		return nil, fmt.Errorf("%w: per_strategy must be at most %d", ErrInvalidRequest, limit)
	}

	res, err := s.advisor.RunRequest(ctx, advisor.Request{
		Observations: req.Observations,
		PerStrategy:  req.PerStrategy,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("suggestions created",
		"batch_id", res.Batch.ID,
		"observations", len(req.Observations),
		"suggestions", len(res.Batch.Suggestions))

	if s.notifier != nil && req.CallbackURL != "" {
		s.notifier.Notify(req.CallbackURL, req.CallbackSecret, &store.Record{
			Batch:        res.Batch,
			Table:        res.Table,
			Observations: len(req.Observations),
		})
	}
	return &SuggestResponse{BatchID: res.Batch.ID, Table: res.Table, Batch: res.Batch}, nil
}

// GetBatch looks up a stored batch
func (s *Service) GetBatch(ctx context.Context, id string) (*store.Record, error) {
	st := s.advisor.Store()
	if st == nil {
		return nil, ErrLedgerDisabled
	}
	return st.GetBatch(ctx, id)
}

// ListBatches returns stored batches, newest first
func (s *Service) ListBatches(ctx context.Context, limit int) ([]*store.Record, error) {
	st := s.advisor.Store()
	if st == nil {
		return nil, ErrLedgerDisabled
	}
	return st.ListBatches(ctx, limit)
}

// errorKind classifies service errors for the transports
type errorKind int

const (
	kindInternal errorKind = iota
	kindInvalid
	kindUnsatisfiable
	kindNotFound
	kindUnavailable
	kindCanceled
)

func classify(err error) errorKind {
	switch {
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, space.ErrConfigurationMismatch),
		errors.Is(err, advisor.ErrBatchTooLarge):
		return kindInvalid
	case errors.Is(err, improvement.ErrConstraintUnsatisfiable):
		return kindUnsatisfiable
	case errors.Is(err, store.ErrNotFound):
		return kindNotFound
	case errors.Is(err, ErrLedgerDisabled):
		return kindUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return kindCanceled
	default:
		return kindInternal
	}
}
