package workflow

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDAGDefinition() *DAGDefinition {
	return &DAGDefinition{
		Name:        "greet-workflow",
		Description: "says hello then goodbye",
		StartNode:   "start",
		EndNode:     "end",
		Nodes: []NodeDefinition{
			{ID: "start", Type: "noop", Config: map[string]any{"message": "hello"}},
			{ID: "end", Type: "noop", Config: map[string]any{"message": "goodbye"}},
		},
		Edges: []Edge{
			{ID: "e1", From: "start", To: "end"},
		},
	}
}

func TestDAGDefinitionJSONRoundTrip(t *testing.T) {
	def := sampleDAGDefinition()

	jsonStr, err := def.ToJSON()
	require.NoError(t, err)
	assert.NotEmpty(t, jsonStr)

	decoded, err := FromJSON(jsonStr)
	require.NoError(t, err)
	assert.Equal(t, def.Name, decoded.Name)
	assert.Equal(t, def.StartNode, decoded.StartNode)
	assert.Equal(t, def.EndNode, decoded.EndNode)
	require.Len(t, decoded.Nodes, 2)
	assert.Equal(t, def.Nodes[0].ID, decoded.Nodes[0].ID)
	assert.Equal(t, def.Edges, decoded.Edges)
}

func TestDAGDefinitionYAMLRoundTrip(t *testing.T) {
	def := sampleDAGDefinition()

	yamlStr, err := def.ToYAML()
	require.NoError(t, err)
	assert.NotEmpty(t, yamlStr)

	decoded, err := FromYAML(yamlStr)
	require.NoError(t, err)
	assert.Equal(t, def.Name, decoded.Name)
	assert.Equal(t, def.Nodes[1].Config["message"], decoded.Nodes[1].Config["message"])
}

func TestDAGDefinitionFileRoundTrip(t *testing.T) {
	def := sampleDAGDefinition()
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "workflow.json")
	require.NoError(t, def.SaveToJSONFile(jsonPath))
	loaded, err := LoadFromJSONFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, def.Name, loaded.Name)

	yamlPath := filepath.Join(dir, "workflow.yaml")
	require.NoError(t, def.SaveToYAMLFile(yamlPath))
	loadedYAML, err := LoadFromYAMLFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, def.Name, loadedYAML.Name)

	_, err = LoadFromJSONFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestDAGDefinitionValidateRejectsMissingStartNode(t *testing.T) {
	def := sampleDAGDefinition()
	def.StartNode = "nope"

	jsonStr, err := def.ToJSON()
	require.NoError(t, err)

	_, err = FromJSON(jsonStr)
	assert.Error(t, err)
}

func TestWorkflowToDAGDefinitionRoundTrip(t *testing.T) {
	wf := &Workflow{
		ID:            "wf-1",
		Name:          "greet-workflow",
		StartNode:     "start",
		EndNode:       "end",
		MaxIterations: 10,
		Nodes: []Node{
			{ID: "start", Type: "noop"},
			{ID: "end", Type: "noop"},
		},
		Edges: []Edge{
			{ID: "e1", From: "start", To: "end"},
		},
	}

	def := wf.ToDAGDefinition()
	assert.Equal(t, wf.Name, def.Name)
	assert.Equal(t, wf.MaxIterations, def.MaxIterations)

	rebuilt := def.ToWorkflow("wf-2")
	assert.Equal(t, "wf-2", rebuilt.ID)
	assert.Equal(t, wf.Name, rebuilt.Name)
	assert.Equal(t, wf.StartNode, rebuilt.StartNode)
	require.NoError(t, Validate(rebuilt))
}
