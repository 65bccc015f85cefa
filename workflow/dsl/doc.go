// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package dsl implements the template/expression evaluator that the workflow
orchestrator uses to turn `{{expr}}` placeholders and rule-DSL programs into
values.

# Core types

  - Evaluator  — parses and evaluates a single expression string against a
    context mapping (arithmetic, comparison, boolean operators, member and
    bracket access, and the three builtins getPath/parse/eval).
  - Expand     — recursively expands a template tree (string/array/map/scalar)
    against a context.
  - Rule       — a small ordered if/then/else/return program used by
    setState and dynamic edges.

The evaluator is stateless; every call takes its context explicitly, so a
single *Evaluator can be shared across concurrent executions.
*/
package dsl
