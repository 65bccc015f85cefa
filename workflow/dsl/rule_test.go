package dsl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleReturnTerminal(t *testing.T) {
	r := Rule{
		{Return: `"early"`},
		{Then: `"unreachable"`},
	}
	got, err := r.Run(map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "early", got)
}

func TestRuleIfThenElse(t *testing.T) {
	r := Rule{
		{If: "score > 50", Then: `"pass"`, Else: `"fail"`},
	}

	got, err := r.Run(map[string]any{"score": float64(80)})
	require.NoError(t, err)
	assert.Equal(t, "pass", got)

	got, err = r.Run(map[string]any{"score": float64(10)})
	require.NoError(t, err)
	assert.Equal(t, "fail", got)
}

func TestRuleElifChain(t *testing.T) {
	r := Rule{
		{If: "score >= 90", Then: `"A"`},
		{If: "score >= 70", Then: `"B"`},
		{Then: `"C"`},
	}

	got, err := r.Run(map[string]any{"score": float64(95)})
	require.NoError(t, err)
	assert.Equal(t, "A", got)

	got, err = r.Run(map[string]any{"score": float64(75)})
	require.NoError(t, err)
	assert.Equal(t, "B", got)

	got, err = r.Run(map[string]any{"score": float64(10)})
	require.NoError(t, err)
	assert.Equal(t, "C", got)
}

func TestRuleLocalAssignment(t *testing.T) {
	r := Rule{
		{Then: "doubled = count * 2"},
		{Return: "doubled + 1"},
	}
	got, err := r.Run(map[string]any{"count": float64(4)})
	require.NoError(t, err)
	assert.Equal(t, float64(9), got)
}

func TestRuleLocalShadowsContext(t *testing.T) {
	r := Rule{
		{Then: `status = "overridden"`},
		{Return: "status"},
	}
	got, err := r.Run(map[string]any{"status": "original"})
	require.NoError(t, err)
	assert.Equal(t, "overridden", got)
}

func TestRuleNoMatchingBranchYieldsNilOutput(t *testing.T) {
	r := Rule{
		{If: "false", Then: `"never"`},
	}
	got, err := r.Run(map[string]any{})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRulePlainExpressionSetsOutput(t *testing.T) {
	r := Rule{
		{Then: `"next_node"`},
	}
	got, err := r.Run(map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "next_node", got)
}
