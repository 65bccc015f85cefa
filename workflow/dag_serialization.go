package workflow

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DAGDefinition is the portable, visual-editor-facing shape of a Workflow:
// the graph structure and node/edge configuration a diagram tool or a
// checked-in workflow file would carry, without the store-managed fields
// (ID, CreatedAt, UpdatedAt) that only make sense once a Workflow has been
// persisted. Round-tripping through DAGDefinition is how a workflow is
// exported for editing and re-imported, distinct from the Workflow record
// the orchestrator actually executes.
type DAGDefinition struct {
	Name            string           `json:"name" yaml:"name"`
	Description     string           `json:"description,omitempty" yaml:"description,omitempty"`
	ParameterSchema map[string]any   `json:"parameterSchema,omitempty" yaml:"parameterSchema,omitempty"`
	Nodes           []NodeDefinition `json:"nodes" yaml:"nodes"`
	Edges           []Edge           `json:"edges" yaml:"edges"`
	StartNode       string           `json:"startNode" yaml:"startNode"`
	EndNode         string           `json:"endNode" yaml:"endNode"`
	State           map[string]any   `json:"state,omitempty" yaml:"state,omitempty"`
	MaxIterations   int              `json:"maxIterations,omitempty" yaml:"maxIterations,omitempty"`
}

// NodeDefinition is the serialized shape of a Node within a DAGDefinition.
// It is structurally identical to Node today; it exists as its own type
// so a future visual-editor-only field (position, color, free-text note)
// has somewhere to live without widening Node itself, which the
// orchestrator's hot path also uses.
type NodeDefinition struct {
	ID        string            `json:"id" yaml:"id"`
	Type      string            `json:"type" yaml:"type"`
	Config    map[string]any    `json:"config,omitempty" yaml:"config,omitempty"`
	SetState  []StateAssignment `json:"setState,omitempty" yaml:"setState,omitempty"`
	Streaming *StreamingPolicy  `json:"streaming,omitempty" yaml:"streaming,omitempty"`
}

// ToDAGDefinition projects a Workflow onto its portable visual shape,
// dropping the store-managed ID/CreatedAt/UpdatedAt fields.
func (wf *Workflow) ToDAGDefinition() *DAGDefinition {
	def := &DAGDefinition{
		Name:            wf.Name,
		ParameterSchema: wf.ParameterSchema,
		Nodes:           make([]NodeDefinition, 0, len(wf.Nodes)),
		Edges:           wf.Edges,
		StartNode:       wf.StartNode,
		EndNode:         wf.EndNode,
		State:           wf.State,
		MaxIterations:   wf.MaxIterations,
	}
	for _, n := range wf.Nodes {
		def.Nodes = append(def.Nodes, NodeDefinition{
			ID:        n.ID,
			Type:      n.Type,
			Config:    n.Config,
			SetState:  n.SetState,
			Streaming: n.Streaming,
		})
	}
	return def
}

// ToWorkflow builds a Workflow from a DAGDefinition. id is supplied by the
// caller (the store, on import) rather than carried in the definition
// itself, since a DAGDefinition has no opinion about which record it will
// become.
func (d *DAGDefinition) ToWorkflow(id string) *Workflow {
	wf := &Workflow{
		ID:              id,
		Name:            d.Name,
		ParameterSchema: d.ParameterSchema,
		Nodes:           make([]Node, 0, len(d.Nodes)),
		Edges:           d.Edges,
		StartNode:       d.StartNode,
		EndNode:         d.EndNode,
		State:           d.State,
		MaxIterations:   d.MaxIterations,
	}
	if wf.MaxIterations == 0 {
		wf.MaxIterations = DefaultMaxIterations
	}
	for _, n := range d.Nodes {
		wf.Nodes = append(wf.Nodes, Node{
			ID:        n.ID,
			Type:      n.Type,
			Config:    n.Config,
			SetState:  n.SetState,
			Streaming: n.Streaming,
		})
	}
	return wf
}

// ToJSON marshals the definition as indented JSON.
func (d *DAGDefinition) ToJSON() (string, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal DAG definition to JSON: %w", err)
	}
	return string(data), nil
}

// ToYAML marshals the definition as YAML.
func (d *DAGDefinition) ToYAML() (string, error) {
	data, err := yaml.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("marshal DAG definition to YAML: %w", err)
	}
	return string(data), nil
}

// FromJSON parses a DAGDefinition from a JSON string and validates the
// resulting graph shape by converting it to a Workflow and running the
// same structural checks the orchestrator requires before execution.
func FromJSON(jsonStr string) (*DAGDefinition, error) {
	var def DAGDefinition
	if err := json.Unmarshal([]byte(jsonStr), &def); err != nil {
		return nil, fmt.Errorf("unmarshal DAG definition from JSON: %w", err)
	}
	if err := Validate(def.ToWorkflow("")); err != nil {
		return nil, fmt.Errorf("validate DAG definition: %w", err)
	}
	return &def, nil
}

// FromYAML parses a DAGDefinition from a YAML string, validated the same
// way FromJSON validates.
func FromYAML(yamlStr string) (*DAGDefinition, error) {
	var def DAGDefinition
	if err := yaml.Unmarshal([]byte(yamlStr), &def); err != nil {
		return nil, fmt.Errorf("unmarshal DAG definition from YAML: %w", err)
	}
	if err := Validate(def.ToWorkflow("")); err != nil {
		return nil, fmt.Errorf("validate DAG definition: %w", err)
	}
	return &def, nil
}

// LoadFromJSONFile reads and parses a DAGDefinition from a JSON file.
func LoadFromJSONFile(filename string) (*DAGDefinition, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read DAG definition file: %w", err)
	}
	return FromJSON(string(data))
}

// LoadFromYAMLFile reads and parses a DAGDefinition from a YAML file.
func LoadFromYAMLFile(filename string) (*DAGDefinition, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read DAG definition file: %w", err)
	}
	return FromYAML(string(data))
}

// SaveToJSONFile writes the definition to filename as indented JSON.
func (d *DAGDefinition) SaveToJSONFile(filename string) error {
	jsonStr, err := d.ToJSON()
	if err != nil {
		return err
	}
	if err := os.WriteFile(filename, []byte(jsonStr), 0o644); err != nil {
		return fmt.Errorf("write DAG definition file: %w", err)
	}
	return nil
}

// SaveToYAMLFile writes the definition to filename as YAML.
func (d *DAGDefinition) SaveToYAMLFile(filename string) error {
	yamlStr, err := d.ToYAML()
	if err != nil {
		return err
	}
	if err := os.WriteFile(filename, []byte(yamlStr), 0o644); err != nil {
		return fmt.Errorf("write DAG definition file: %w", err)
	}
	return nil
}
