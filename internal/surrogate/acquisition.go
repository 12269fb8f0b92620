package surrogate

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// expectedImprovement scores a point for maximization. xi shifts the
// incumbent upward, so larger values favour uncertain regions.
func expectedImprovement(mean, std, best, xi float64) float64 {
	improvement := mean - best - xi
	if std <= 1e-12 {
		return math.Max(improvement, 0)
	}
	z := improvement / std
	return improvement*distuv.UnitNormal.CDF(z) + std*distuv.UnitNormal.Prob(z)
}
