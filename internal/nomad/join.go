package nomad

import (
	"fmt"
	"strconv"
	"strings"
)

// Join appends the retrieved values to a sample table. The ID column is
// renamed to sampleColumn, and rows with an empty ID are dropped. Each sample
// gets one output row per pixel, or a single row when it has no
// measurements. Values that were not retrieved are left empty.
func (s *Samples) Join(header []string, rows [][]string, idColumn, sampleColumn string) ([]string, [][]string, error) {
	idx := -1
	for i, h := range header {
		if h == idColumn {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, nil, fmt.Errorf("column %q not found", idColumn)
	}
	bySample := make(map[string]*Sample, len(s.Samples))
	for _, smp := range s.Samples {
		bySample[smp.LabID] = smp
	}

	out := make([]string, 0, len(header)+len(s.ProcessColumns)+len(s.MeasurementColumns)+2)
	for i, h := range header {
		if i == idx {
			h = sampleColumn
		}
		out = append(out, h)
	}
	out = append(out, "entry_id")
	out = append(out, s.ProcessColumns...)
	out = append(out, "pixel")
	out = append(out, s.MeasurementColumns...)

	var records [][]string
	for _, row := range rows {
		if idx >= len(row) || strings.TrimSpace(row[idx]) == "" {
			continue
		}
		base := make([]string, len(header), len(out))
		copy(base, row)
		base[idx] = strings.TrimSpace(row[idx])

		smp := bySample[base[idx]]
		if smp == nil {
			smp = &Sample{LabID: base[idx]}
		}
		base = append(base, smp.EntryID)
		for _, c := range s.ProcessColumns {
			base = append(base, formatValue(smp.Process, c))
		}

		if len(smp.Pixels) == 0 {
			rec := append(base, "")
			for range s.MeasurementColumns {
				rec = append(rec, "")
			}
			records = append(records, rec)
			continue
		}
		for _, px := range smp.Pixels {
			rec := append(append([]string(nil), base...), px.Name)
			for _, c := range s.MeasurementColumns {
				rec = append(rec, formatValue(px.Values, c))
			}
			records = append(records, rec)
		}
	}
	return out, records, nil
}

func formatValue(row map[string]float64, column string) string {
	v, ok := row[column]
	if !ok {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
