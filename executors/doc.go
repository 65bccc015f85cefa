// Package executors provides the built-in node executors registered with
// a workflow.ExecutorRegistry: transform, http, sql, llm, embedding, and
// vectordb. Each satisfies workflow.Executor and, where it makes sense,
// workflow.ConfigSchemaProvider or workflow.StreamingExecutor.
package executors
