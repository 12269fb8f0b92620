// Package surrogatetest provides a deterministic surrogate.Optimizer for tests.
package surrogatetest

import (
	"context"
	"errors"
	"sync"

	"github.com/perotf-lab/expadvisor/internal/surrogate"
)

// ErrExhausted is returned when a Scripted optimizer runs out of suggestions
var ErrExhausted = errors.New("scripted suggestions exhausted")

// Registration records one Register call
type Registration struct {
	Point  []float64
	Target float64
}

// Scripted returns suggestions from a fixed list and records registrations
type Scripted struct {
	mu sync.Mutex

	KeyOrder    []string
	Suggestions [][]float64
	// RepeatLast keeps returning the final suggestion instead of failing
	RepeatLast bool
	// PredictFunc computes (mean, std) for a point; defaults to (sum of coordinates, 0.1)
	PredictFunc func(point []float64) (float64, float64)

	next          int
	suggestCalls  int
	registrations []Registration
	predictCalls  [][]float64
	keysCalls     int
}

// New returns a Scripted optimizer
func New(keys []string, suggestions ...[]float64) *Scripted {
	return &Scripted{KeyOrder: keys, Suggestions: suggestions}
}

// Keys returns KeyOrder
func (s *Scripted) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keysCalls++
	return append([]string(nil), s.KeyOrder...)
}

// Register records the call
func (s *Scripted) Register(point []float64, target float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registrations = append(s.registrations, Registration{Point: append([]float64(nil), point...), Target: target})
	return nil
}

// Suggest returns the next scripted point
func (s *Scripted) Suggest(ctx context.Context) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suggestCalls++
	if s.next >= len(s.Suggestions) {
		if !s.RepeatLast || len(s.Suggestions) == 0 {
			return nil, ErrExhausted
		}
		return append([]float64(nil), s.Suggestions[len(s.Suggestions)-1]...), nil
	}
	p := s.Suggestions[s.next]
	s.next++
	return append([]float64(nil), p...), nil
}

// Predict applies PredictFunc to every point
func (s *Scripted) Predict(points [][]float64) ([]float64, []float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mean := make([]float64, len(points))
	std := make([]float64, len(points))
	for i, p := range points {
		s.predictCalls = append(s.predictCalls, append([]float64(nil), p...))
		if s.PredictFunc != nil {
			mean[i], std[i] = s.PredictFunc(p)
			continue
		}
		for _, v := range p {
			mean[i] += v
		}
		std[i] = 0.1
	}
	return mean, std, nil
}

// Registrations returns every Register call in order
func (s *Scripted) Registrations() []Registration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Registration(nil), s.registrations...)
}

// PredictCalls returns the points passed to Predict in order
func (s *Scripted) PredictCalls() [][]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]float64(nil), s.predictCalls...)
}

// SuggestCalls returns how many times Suggest was called
func (s *Scripted) SuggestCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suggestCalls
}

// KeysCalls returns how many times Keys was called
func (s *Scripted) KeysCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keysCalls
}

var _ surrogate.Optimizer = (*Scripted)(nil)
