// Package handlers implements the workflow engine's HTTP surface: workflow
// definition CRUD, execution start/poll/history, streaming (SSE and
// websocket), and the health/readiness probes used by orchestrators and
// load balancers.
//
// Every handler writes api.Response as its body and maps a *types.Error
// to an HTTP status through mapErrorCodeToHTTPStatus, following the same
// decode/validate/dispatch/respond shape throughout.
package handlers
