// Package store keeps a ledger of suggested batches.
package store

import (
	"context"
	"errors"

	"github.com/perotf-lab/expadvisor/pkg/models"
)

// ErrNotFound is returned for unknown batch IDs
var ErrNotFound = errors.New("batch not found")

// DefaultListLimit is used when a non-positive limit is requested
const DefaultListLimit = 50

// Record is one stored batch
type Record struct {
	Batch        *models.Batch `json:"batch"`
	Table        *models.Table `json:"table"`
	Observations int           `json:"observations"`
}

// ID returns the batch ID
func (r *Record) ID() string {
	if r == nil || r.Batch == nil {
		return ""
	}
	return r.Batch.ID
}

// Store persists records
type Store interface {
	SaveBatch(ctx context.Context, rec *Record) error
	GetBatch(ctx context.Context, id string) (*Record, error)
	// ListBatches returns the newest records first
	ListBatches(ctx context.Context, limit int) ([]*Record, error)
	Close() error
}
