// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package types provides shared, dependency-free type definitions used across
the workflow engine: the structured error taxonomy and context propagation
helpers. Lower layers (dsl, workflow, executors, api) all import this
package; it imports none of them, to avoid import cycles.

# Core types

  - Error / ErrorCode — structured error values carrying an HTTP status and
    a retryable flag, with one constructor per taxonomy entry
    (NewValidationError, NewGraphNavigationError, NewIterationLimitError,
    NewTemplateError, NewExecutorError, NewSubWorkflowError,
    NewStateUpdateError, NewCancellationError).

# Context propagation

WithTraceID / WithTenantID / WithUserID / WithRunID / WithExecutionID /
WithWorkflowID and their matching accessors thread request- and
execution-scoped identifiers through context.Context for logging and
tracing.
*/
package types
