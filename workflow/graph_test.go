package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/agentflow/workflow/dsl"
)

func TestEdgeIsStaticAndDynamic(t *testing.T) {
	static := Edge{ID: "e1", From: "a", To: "b"}
	assert.True(t, static.IsStatic())
	assert.False(t, static.IsDynamic())

	dynamic := Edge{ID: "e2", From: "a", Rule: dsl.Rule{{Return: `"b"`}}}
	assert.False(t, dynamic.IsStatic())
	assert.True(t, dynamic.IsDynamic())
}

func TestEdgeResolveDynamicByRule(t *testing.T) {
	e := Edge{ID: "e1", From: "a", Rule: dsl.Rule{{Return: `"node_b"`}}}
	next, err := e.resolveDynamic(map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "node_b", next)
}

func TestEdgeResolveDynamicByRuleNonString(t *testing.T) {
	e := Edge{ID: "e1", From: "a", Rule: dsl.Rule{{Return: "42"}}}
	_, err := e.resolveDynamic(map[string]any{})
	require.Error(t, err)
	var target *nonStringEdgeResultError
	assert.ErrorAs(t, err, &target)
}

func TestEdgeResolveDynamicByConditions(t *testing.T) {
	e := Edge{
		ID:   "e1",
		From: "a",
		Conditions: []EdgeCondition{
			{Condition: "score >= 90", Node: "high"},
			{Condition: "score >= 50", Node: "mid"},
			{Condition: "true", Node: "low"},
		},
	}
	next, err := e.resolveDynamic(map[string]any{"score": float64(60)})
	require.NoError(t, err)
	assert.Equal(t, "mid", next)
}

func TestEdgeResolveDynamicNoConditionMatched(t *testing.T) {
	e := Edge{
		ID:   "e1",
		From: "a",
		Conditions: []EdgeCondition{
			{Condition: "false", Node: "x"},
		},
	}
	_, err := e.resolveDynamic(map[string]any{})
	require.Error(t, err)
	var target *noConditionMatchedError
	assert.ErrorAs(t, err, &target)
}

func TestStreamingPolicySendsOnComplete(t *testing.T) {
	assert.True(t, (*StreamingPolicy)(nil).sendsOnComplete())

	enabled := &StreamingPolicy{Enabled: true}
	assert.True(t, enabled.sendsOnComplete())

	no := false
	suppressed := &StreamingPolicy{Enabled: true, SendOnComplete: &no}
	assert.False(t, suppressed.sendsOnComplete())
}

func TestTruthy(t *testing.T) {
	assert.False(t, truthy(nil))
	assert.False(t, truthy(false))
	assert.True(t, truthy(true))
	assert.False(t, truthy(float64(0)))
	assert.True(t, truthy(float64(1)))
	assert.False(t, truthy(""))
	assert.True(t, truthy("x"))
	assert.True(t, truthy(map[string]any{}))
}
