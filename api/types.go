package api

import (
	"time"

	"github.com/BaSui01/agentflow/workflow"
)

// Response is the envelope every HTTP handler in this module writes,
// whether the call succeeded or failed.
type Response struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data,omitempty"`
	Error     *ErrorInfo `json:"error,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
	RequestID string     `json:"requestId,omitempty"`
}

// ErrorInfo is the wire shape of a types.Error: HTTPStatus is carried to
// pick the response's status code but is never serialized into the body.
type ErrorInfo struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Retryable  bool   `json:"retryable,omitempty"`
	HTTPStatus int    `json:"-"`
}

// CreateWorkflowRequest is the body of POST /workflows.
type CreateWorkflowRequest struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	ParameterSchema map[string]any  `json:"parameterSchema,omitempty"`
	Nodes           []workflow.Node `json:"nodes"`
	Edges           []workflow.Edge `json:"edges"`
	StartNode       string          `json:"startNode"`
	EndNode         string          `json:"endNode"`
	State           map[string]any  `json:"state,omitempty"`
	MaxIterations   int             `json:"maxIterations,omitempty"`
	DefaultConfigID string          `json:"defaultConfigId,omitempty"`
}

// UpdateWorkflowRequest is the body of PUT /workflows/{id}; shape mirrors
// CreateWorkflowRequest since a full replace is the only update mode.
type UpdateWorkflowRequest = CreateWorkflowRequest

// StartExecutionRequest is the body of POST /executions.
type StartExecutionRequest struct {
	WorkflowID string         `json:"workflowId"`
	Parameters map[string]any `json:"parameters,omitempty"`
	ConfigID   string         `json:"configId,omitempty"`
}
