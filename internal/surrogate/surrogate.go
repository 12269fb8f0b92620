// Package surrogate provides the acquisition optimizers the advisor drives.
//
// An Optimizer works on the unit hypercube. It learns from registered
// (point, target) pairs, proposes the next point to evaluate and reports its
// posterior at arbitrary points. Points are always given in the order
// returned by Keys, which need not match the configuration's declaration order.
package surrogate

import (
	"context"
	"errors"
)

var (
	// ErrDimension is returned when a point has the wrong number of coordinates
	ErrDimension = errors.New("point dimension mismatch")
	// ErrDuplicatePoint is returned by Register when duplicates are disabled
	ErrDuplicatePoint = errors.New("duplicate point")
	// ErrNonFinite is returned when a point or target is NaN or infinite
	ErrNonFinite = errors.New("non-finite value")
)

// Optimizer is a surrogate-model acquisition optimizer over [0,1]^d
type Optimizer interface {
	// Keys returns the parameter order used by every point this optimizer accepts or returns
	Keys() []string
	// Register adds one observation to the model
	Register(point []float64, target float64) error
	// Suggest returns the next point to evaluate
	Suggest(ctx context.Context) ([]float64, error)
	// Predict returns the posterior mean and standard deviation at each point
	Predict(points [][]float64) (mean, std []float64, err error)
}
