package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store
type MemoryStore struct {
	mu      sync.RWMutex
	batches map[string]*Record
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{batches: make(map[string]*Record)}
}

func (s *MemoryStore) SaveBatch(_ context.Context, rec *Record) error {
	id := rec.ID()
	if id == "" {
		return fmt.Errorf("batch id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.batches[id]; exists {
		return fmt.Errorf("batch already exists: %s", id)
	}
	s.batches[id] = rec
	return nil
}

func (s *MemoryStore) GetBatch(_ context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.batches[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, nil
}

func (s *MemoryStore) ListBatches(_ context.Context, limit int) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = DefaultListLimit
	}
	out := make([]*Record, 0, len(s.batches))
	for _, rec := range s.batches {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Batch.CreatedAt, out[j].Batch.CreatedAt
		if a.Equal(b) {
			return out[i].ID() > out[j].ID()
		}
		return a.After(b)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
