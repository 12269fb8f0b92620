package improvement

import (
	"bytes"
	"testing"

	"github.com/perotf-lab/expadvisor/internal/constraint"
	"github.com/perotf-lab/expadvisor/internal/space"
	"github.com/perotf-lab/expadvisor/pkg/logger"
	"github.com/perotf-lab/expadvisor/pkg/models"
)

var spinBounds = space.Bounds{
	{Name: "dropping_time", Min: 20, Max: 40},
	{Name: "rotation_time_2", Min: 11, Max: 35},
	{Name: "dropping_speed", Min: 25, Max: 1000},
}

// sorted key order, as the Bayesian optimizer exposes it
var sortedKeys3 = []string{"dropping_speed", "dropping_time", "rotation_time_2"}

var spinRule = constraint.Func(func(r models.Row) bool {
	return r["rotation_time_2"]+10 >= r["dropping_time"]
})

var (
	// dropping_time 40, rotation_time_2 11: infeasible
	infeasiblePoint = []float64{0.5, 1, 0}
	// dropping_time 20, rotation_time_2 23: feasible
	feasiblePoint = []float64{0.5, 0, 0.5}
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := logger.Default
	logger.SetDefault(logger.New("debug", &buf))
	t.Cleanup(func() { logger.SetDefault(prev) })
	return &buf
}
