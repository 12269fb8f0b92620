package expr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perotf-lab/expadvisor/pkg/models"
)

func TestParseAndEvalBool(t *testing.T) {
	e, err := Parse("rotation_time_2 + 10 >= dropping_time")
	require.NoError(t, err)
	assert.True(t, e.IsBoolean())
	assert.Equal(t, []string{"dropping_time", "rotation_time_2"}, e.Identifiers())

	ok, err := e.EvalBool(models.Row{"rotation_time_2": 15, "dropping_time": 25})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.EvalBool(models.Row{"rotation_time_2": 11, "dropping_time": 30})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvalNumeric(t *testing.T) {
	tests := []struct {
		src  string
		vars models.Row
		want float64
	}{
		{"10 + rotation_time_2 - dropping_time", models.Row{"rotation_time_2": 20, "dropping_time": 25}, 5},
		{"(a + b) / 200", models.Row{"a": 18, "b": 20}, 0.19},
		{"-a * 2", models.Row{"a": 3}, -6},
		{"abs(a - b)", models.Row{"a": 1, "b": 4}, 3},
		{"max(a, 2) + min(a, 2)", models.Row{"a": 5}, 7},
		{"1.5e2", nil, 150},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			e, err := Parse(tt.src)
			require.NoError(t, err)
			assert.False(t, e.IsBoolean())
			got, err := e.Eval(tt.vars)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestLogicalOperators(t *testing.T) {
	e := MustParse("a > 0 && (b < 1 || !(c == 2))")
	tests := []struct {
		vars models.Row
		want bool
	}{
		{models.Row{"a": 1, "b": 0, "c": 2}, true},
		{models.Row{"a": 1, "b": 5, "c": 3}, true},
		{models.Row{"a": 1, "b": 5, "c": 2}, false},
		{models.Row{"a": -1, "b": 0, "c": 0}, false},
	}
	for _, tt := range tests {
		got, err := e.EvalBool(tt.vars)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "vars %v", tt.vars)
	}
}

func TestShortCircuitSkipsMissingIdentifiers(t *testing.T) {
	e := MustParse("a > 0 || missing > 0")
	ok, err := e.EvalBool(models.Row{"a": 1})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestParseErrors(t *testing.T) {
	bad := []string{
		"a +",
		`"text" > 1`,
		"a > 1 + (b < 2)",
		"foo(a)",
		"min(a)",
		"a && b",
		"x.y > 1",
		"!a",
	}
	for _, src := range bad {
		_, err := Parse(src)
		assert.Error(t, err, src)
	}
}

func TestEvalErrors(t *testing.T) {
	_, err := MustParse("a + 1").EvalBool(models.Row{"a": 1})
	assert.True(t, errors.Is(err, ErrType))

	_, err = MustParse("a > 1").Eval(models.Row{"a": 1})
	assert.True(t, errors.Is(err, ErrType))

	_, err = MustParse("a > b").EvalBool(models.Row{"a": 1})
	assert.True(t, errors.Is(err, ErrUnknownIdentifier))
}

func TestMustParsePanics(t *testing.T) {
	assert.Panics(t, func() { MustParse("a >") })
}
