// Package api defines the HTTP envelope and request/response DTOs shared
// across the workflow engine's external interfaces: workflow CRUD,
// execution start/poll/stream, and the hot-reloadable config surface.
//
// # Core types
//
//   - Response  — the single envelope every handler writes: success flag,
//     payload, optional ErrorInfo, and a timestamp.
//   - ErrorInfo — the wire shape of a types.Error, stripped of anything
//     that should not cross the HTTP boundary (the underlying Cause).
//
// Concrete handlers live in api/handlers; this package holds only the
// types both that package and config.ConfigAPIHandler need to share.
package api
