package history

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/perotf-lab/expadvisor/internal/space"
	"github.com/perotf-lab/expadvisor/pkg/config"
	"github.com/perotf-lab/expadvisor/pkg/models"
)

func testBounds() space.Bounds {
	return space.Bounds{
		{Name: "dropping_time", Min: 20, Max: 40},
		{Name: "rotation_time_2", Min: 11, Max: 35},
	}
}

func testData() *config.Data {
	return &config.Data{
		Target: config.Target{Columns: []string{"efficiency_forward", "efficiency_backward"}, Scale: 0.005},
		Derived: []config.Derived{
			{Name: "time_after", Expr: "10 + rotation_time_2 - dropping_time"},
		},
		Rename: map[string]string{"Anti solvent dropping time [s]": "dropping_time"},
	}
}

const sampleCSV = `Anti solvent dropping time [s],rotation_time_2,efficiency_forward,efficiency_backward,operator
25,20,18,20,ab
30,,18,19,ab
35,24,n/a,19,cd
"22,5",30,16,18,cd
`

func TestLoadCSV(t *testing.T) {
	l, err := NewLoader(testBounds(), testData())
	require.NoError(t, err)

	tbl, err := ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	res, err := l.Load(tbl)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Dropped)
	require.Len(t, res.Observations, 2)

	first := res.Observations[0]
	assert.Equal(t, models.Row{"dropping_time": 25, "rotation_time_2": 20}, first.Params)
	assert.Equal(t, models.Row{"time_after": 5}, first.Derived)
	assert.InDelta(t, 0.095, first.Target, 1e-12)

	second := res.Observations[1]
	assert.Equal(t, 22.5, second.Params["dropping_time"])
	assert.InDelta(t, 0.085, second.Target, 1e-12)

	assert.Contains(t, res.Columns, "time_after")
	assert.Contains(t, res.Columns, "dropping_time")
}

func TestLoadMissingParameterColumn(t *testing.T) {
	l, err := NewLoader(testBounds(), nil)
	require.NoError(t, err)

	tbl, err := ReadCSV(strings.NewReader("dropping_time,target\n25,0.1\n"))
	require.NoError(t, err)
	_, err = l.Load(tbl)
	assert.ErrorIs(t, err, space.ErrConfigurationMismatch)
	assert.Contains(t, err.Error(), "rotation_time_2")
}

func TestLoadMissingTargetColumn(t *testing.T) {
	l, err := NewLoader(testBounds(), nil)
	require.NoError(t, err)

	tbl, err := ReadCSV(strings.NewReader("dropping_time,rotation_time_2\n25,20\n"))
	require.NoError(t, err)
	_, err = l.Load(tbl)
	assert.ErrorContains(t, err, "target column target not found")
}

func TestDerivedColumnWithMissingInputsKeepsRow(t *testing.T) {
	data := testData()
	data.Derived = append(data.Derived, config.Derived{Name: "mean_jsc", Expr: "(jsc_forward + jsc_backward) / 2"})
	l, err := NewLoader(testBounds(), data)
	require.NoError(t, err)

	tbl, err := ReadCSV(strings.NewReader("dropping_time,rotation_time_2,efficiency_forward,efficiency_backward,jsc_forward,jsc_backward\n" +
		"25,20,18,20,21,23\n" +
		"30,21,17,19,,\n"))
	require.NoError(t, err)
	res, err := l.Load(tbl)
	require.NoError(t, err)

	assert.Zero(t, res.Dropped)
	require.Len(t, res.Observations, 2)
	assert.Equal(t, models.Row{"time_after": 5, "mean_jsc": 22}, res.Observations[0].Derived)
	assert.Equal(t, models.Row{"time_after": 1}, res.Observations[1].Derived)
	for _, o := range res.Observations {
		assert.Len(t, o.Params, 2)
	}
}

func TestTargetFromDerivedColumn(t *testing.T) {
	data := &config.Data{
		Target:  config.Target{Columns: []string{"mean_efficiency"}, Scale: 0.01},
		Derived: []config.Derived{{Name: "mean_efficiency", Expr: "(efficiency_forward + efficiency_backward) / 2"}},
	}
	l, err := NewLoader(testBounds(), data)
	require.NoError(t, err)

	tbl, err := ReadCSV(strings.NewReader("dropping_time,rotation_time_2,efficiency_forward,efficiency_backward\n25,20,18,20\n30,21,,19\n"))
	require.NoError(t, err)
	res, err := l.Load(tbl)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Dropped)
	require.Len(t, res.Observations, 1)
	assert.InDelta(t, 0.19, res.Observations[0].Target, 1e-12)
}

func TestNewLoaderRejectsBooleanDerivedColumn(t *testing.T) {
	data := testData()
	data.Derived = []config.Derived{{Name: "ok", Expr: "dropping_time > 1"}}
	_, err := NewLoader(testBounds(), data)
	assert.Error(t, err)
}

func TestLoadXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "experiments.xlsx")

	f := excelize.NewFile()
	rows := [][]any{
		{"Anti solvent dropping time [s]", "rotation_time_2", "efficiency_forward", "efficiency_backward"},
		{25, 20, 18, 20},
		{30, 21, 17, 19},
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	data := testData()
	data.Sheet = "Sheet1"
	l, err := NewLoader(testBounds(), data)
	require.NoError(t, err)

	res, err := l.LoadFile(path)
	require.NoError(t, err)
	assert.Zero(t, res.Dropped)
	require.Len(t, res.Observations, 2)
	assert.Equal(t, 30.0, res.Observations[1].Params["dropping_time"])
	assert.InDelta(t, 0.09, res.Observations[1].Target, 1e-12)
}

func TestReadFileUnsupported(t *testing.T) {
	_, err := ReadFile("data.parquet", "")
	assert.ErrorContains(t, err, "unsupported file type")
}

func TestReadCSVEmpty(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	obs := []models.Observation{{Target: 0.1}, {Target: 0.3}, {Target: 0.2}, {Target: 0.4}}
	s, err := Summarize(obs)
	require.NoError(t, err)

	assert.Equal(t, 4, s.Count)
	assert.Equal(t, 0.1, s.Min)
	assert.Equal(t, 0.4, s.Max)
	assert.InDelta(t, 0.25, s.Mean, 1e-12)
	assert.InDelta(t, 0.25, s.Median, 1e-12)
	assert.InDelta(t, 0.1118034, s.StdDev, 1e-6)
	assert.Len(t, s.Args(), 12)

	_, err = Summarize(nil)
	assert.Error(t, err)
}
