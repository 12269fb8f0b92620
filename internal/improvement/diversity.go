package improvement

import (
	"log/slog"
	"math"

	"github.com/perotf-lab/expadvisor/pkg/logger"
	"github.com/perotf-lab/expadvisor/pkg/models"
	"github.com/perotf-lab/expadvisor/pkg/utils"
)

// MinNearestNeighbour returns the smallest distance between any point and its
// nearest neighbour, together with the indices of that pair. ok is false for
// fewer than two points.
func MinNearestNeighbour(points [][]float64) (minDist float64, pair [2]int, ok bool) {
	if len(points) < 2 {
		return 0, [2]int{-1, -1}, false
	}
	minDist = math.Inf(1)
	for i := range points {
		for j := range points {
			if i == j {
				continue
			}
			if d := utils.EuclideanDistance(points[i], points[j]); d < minDist {
				minDist = d
				pair = [2]int{i, j}
			}
		}
	}
	if pair[0] > pair[1] {
		pair[0], pair[1] = pair[1], pair[0]
	}
	return minDist, pair, true
}

// DiversityChecker flags batches whose points lie too close together.
// The threshold is in normalized units, between 0 and sqrt(d).
type DiversityChecker struct {
	threshold float64
	log       *slog.Logger
}

// NewDiversityChecker creates a checker for threshold
func NewDiversityChecker(threshold float64) *DiversityChecker {
	return &DiversityChecker{threshold: threshold, log: logger.Component("diversity")}
}

// Threshold returns the configured minimum distance
func (d *DiversityChecker) Threshold() float64 {
	return d.threshold
}

// Check measures points. It never alters them.
func (d *DiversityChecker) Check(points [][]float64) models.DiversityReport {
	report := models.DiversityReport{Threshold: d.threshold, Pair: [2]int{-1, -1}}
	minDist, pair, ok := MinNearestNeighbour(points)
	if !ok {
		d.log.Info("diversity check skipped", "points", len(points))
		return report
	}

	report.MinDistance = minDist
	report.Pair = pair
	report.Breached = minDist < d.threshold
	if report.Breached {
		d.log.Warn("minimum distance between suggestions is below the threshold",
			"min_distance_pct", utils.Round(minDist*100, 2),
			"threshold_pct", d.threshold*100,
			"first", pair[0],
			"second", pair[1])
	} else {
		d.log.Info("minimum distance between suggestions",
			"min_distance_pct", utils.Round(minDist*100, 2))
	}
	return report
}
