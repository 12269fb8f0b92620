package history

import (
	"fmt"

	"github.com/montanaflynn/stats"

	"github.com/perotf-lab/expadvisor/pkg/models"
)

// Summary describes the distribution of observed targets
type Summary struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
}

// Summarize computes target statistics. It fails on an empty history.
func Summarize(observations []models.Observation) (Summary, error) {
	data := make(stats.Float64Data, len(observations))
	for i, o := range observations {
		data[i] = o.Target
	}

	var (
		s   = Summary{Count: len(data)}
		err error
	)
	if s.Min, err = data.Min(); err != nil {
		return Summary{}, fmt.Errorf("summarize targets: %w", err)
	}
	if s.Max, err = data.Max(); err != nil {
		return Summary{}, fmt.Errorf("summarize targets: %w", err)
	}
	if s.Mean, err = data.Mean(); err != nil {
		return Summary{}, fmt.Errorf("summarize targets: %w", err)
	}
	if s.Median, err = data.Median(); err != nil {
		return Summary{}, fmt.Errorf("summarize targets: %w", err)
	}
	if s.StdDev, err = data.StandardDeviation(); err != nil {
		return Summary{}, fmt.Errorf("summarize targets: %w", err)
	}
	return s, nil
}

// Args returns the summary as slog key-value pairs
func (s Summary) Args() []any {
	return []any{
		"count", s.Count,
		"min", s.Min,
		"max", s.Max,
		"mean", s.Mean,
		"median", s.Median,
		"std_dev", s.StdDev,
	}
}
