package nomad

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/perotf-lab/expadvisor/pkg/models"
)

// Number reads a numeric leaf. Numeric strings are accepted.
func Number(r gjson.Result) (float64, bool) {
	switch r.Type {
	case gjson.Number:
		return r.Float(), true
	case gjson.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Mapping assigns a column name to a gjson path inside an entry's archive
type Mapping map[string]string

// Columns returns the mapped column names, sorted
func (m Mapping) Columns() []string {
	columns := make([]string, 0, len(m))
	for c := range m {
		columns = append(columns, c)
	}
	sort.Strings(columns)
	return columns
}

// Extract reads every mapped value from e. It fails on the first path that
// is missing or not numeric.
func (m Mapping) Extract(e Entry) (models.Row, error) {
	row := make(models.Row, len(m))
	for _, c := range m.Columns() {
		path := m[c]
		r := e.Archive(path)
		if !r.Exists() {
			return nil, fmt.Errorf("%s: %s not found", c, path)
		}
		v, ok := Number(r)
		if !ok {
			return nil, fmt.Errorf("%s: %s is not a number", c, path)
		}
		row[c] = v
	}
	return row, nil
}
