package dsl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluatorArithmetic(t *testing.T) {
	e := NewEvaluator()
	cases := []struct {
		expr string
		want any
	}{
		{"1 + 2", float64(3)},
		{"10 - 4", float64(6)},
		{"3 * 4", float64(12)},
		{"9 / 3", float64(3)},
		{"10 % 3", float64(1)},
		{"2 + 3 * 4", float64(14)},
		{"(2 + 3) * 4", float64(20)},
		{"-5 + 2", float64(-3)},
	}
	for _, c := range cases {
		got, err := e.Eval(c.expr, nil)
		require.NoError(t, err, c.expr)
		assert.Equal(t, c.want, got, c.expr)
	}
}

func TestEvaluatorComparisonAndLogic(t *testing.T) {
	e := NewEvaluator()
	ctx := map[string]any{"score": float64(85), "name": "ada"}

	cases := []struct {
		expr string
		want bool
	}{
		{"score > 80", true},
		{"score >= 85", true},
		{"score < 50", false},
		{"name == \"ada\"", true},
		{"name != \"bob\"", true},
		{"score > 80 && name == \"ada\"", true},
		{"score > 100 || name == \"ada\"", true},
		{"!(score > 100)", true},
	}
	for _, c := range cases {
		got, err := e.Eval(c.expr, ctx)
		require.NoError(t, err, c.expr)
		assert.Equal(t, c.want, got, c.expr)
	}
}

func TestEvaluatorMemberAndIndexAccess(t *testing.T) {
	e := NewEvaluator()
	ctx := map[string]any{
		"user": map[string]any{
			"name": "grace",
			"tags": []any{"admin", "beta"},
		},
	}

	got, err := e.Eval("user.name", ctx)
	require.NoError(t, err)
	assert.Equal(t, "grace", got)

	got, err = e.Eval(`user["name"]`, ctx)
	require.NoError(t, err)
	assert.Equal(t, "grace", got)

	got, err = e.Eval("user.tags[1]", ctx)
	require.NoError(t, err)
	assert.Equal(t, "beta", got)
}

func TestEvaluatorUndefinedLookupYieldsNil(t *testing.T) {
	e := NewEvaluator()
	got, err := e.Eval("missing", map[string]any{})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestEvaluatorBuiltins(t *testing.T) {
	e := NewEvaluator()
	ctx := map[string]any{
		"data": map[string]any{"a": map[string]any{"b": float64(7)}},
	}

	got, err := e.Eval(`getPath(data, "a.b")`, ctx)
	require.NoError(t, err)
	assert.Equal(t, float64(7), got)

	got, err = e.Eval(`eval("1 + 1")`, ctx)
	require.NoError(t, err)
	assert.Equal(t, float64(2), got)

	got, err = e.Eval(`parse("value={{data.a.b}}")`, ctx)
	require.NoError(t, err)
	assert.Equal(t, "value=7", got)
}

func TestEvaluatorStringConcatenation(t *testing.T) {
	e := NewEvaluator()
	got, err := e.Eval(`"hello " + "world"`, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello world", got)

	got, err = e.Eval(`"count: " + 3`, nil)
	require.NoError(t, err)
	assert.Equal(t, "count: 3", got)
}

func TestEvaluatorErrors(t *testing.T) {
	e := NewEvaluator()
	_, err := e.Eval("1 +", nil)
	assert.Error(t, err)

	_, err = e.Eval("(1 + 2", nil)
	assert.Error(t, err)

	_, err = e.Eval(`1 / 0`, nil)
	assert.Error(t, err)
}
