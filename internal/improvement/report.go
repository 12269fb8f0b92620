package improvement

import (
	"fmt"
	"sort"

	"github.com/perotf-lab/expadvisor/internal/space"
	"github.com/perotf-lab/expadvisor/pkg/models"
	"github.com/perotf-lab/expadvisor/pkg/utils"
)

// Rounding applied to the presented table
const (
	ParamDecimals      = 2
	PredictionDecimals = 5
)

// Reporter turns a batch into the presented table
type Reporter struct {
	bounds space.Bounds
}

// NewReporter creates a reporter over bounds
func NewReporter(bounds space.Bounds) *Reporter {
	return &Reporter{bounds: bounds}
}

// Report denormalizes every suggestion, rounds it and sorts the rows by
// method. The sort is stable, so within a method the batch order is kept.
func (r *Reporter) Report(batch *models.Batch) (*models.Table, error) {
	table := &models.Table{
		BatchID:   batch.ID,
		Columns:   r.bounds.Names(),
		Rows:      make([]models.TableRow, 0, len(batch.Suggestions)),
		Diversity: batch.Diversity,
	}

	for i, s := range batch.Suggestions {
		normalized := s.NormalizedRow()
		if err := space.CheckRow(normalized, r.bounds); err != nil {
			return nil, fmt.Errorf("suggestion %d: %w", i, err)
		}
		physical := space.Denormalize(normalized, r.bounds)

		values := make(models.Row, len(r.bounds))
		for _, b := range r.bounds {
			values[b.Name] = utils.Round(physical[b.Name], ParamDecimals)
		}
		table.Rows = append(table.Rows, models.TableRow{
			Values:         values,
			PredictedValue: utils.Round(s.PredictedValue, PredictionDecimals),
			Uncertainty:    utils.Round(s.Uncertainty, PredictionDecimals),
			Method:         s.Method,
		})
	}

	sort.SliceStable(table.Rows, func(i, j int) bool {
		return table.Rows[i].Method < table.Rows[j].Method
	})
	return table, nil
}
