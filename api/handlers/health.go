package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// HealthCheck is one dependency a readiness probe exercises.
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) error
}

// HealthStatus is the body of GET /ready.
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult is one HealthCheck's outcome.
type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency"`
}

// HealthHandler serves /health, /healthz, /ready, /readyz, and /version.
type HealthHandler struct {
	logger *zap.Logger
	checks []HealthCheck
	mu     sync.RWMutex
}

func NewHealthHandler(logger *zap.Logger) *HealthHandler {
	return &HealthHandler{logger: logger.With(zap.String("component", "health_handler"))}
}

// RegisterCheck adds a dependency check consulted by HandleReady.
func (h *HealthHandler) RegisterCheck(check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, check)
}

// HandleHealth is an unconditional liveness probe: if the process can
// answer at all, it is healthy.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

// HandleHealthz is an alias kept for clients expecting the Kubernetes
// convention path.
func (h *HealthHandler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	h.HandleHealth(w, r)
}

// HandleReady runs every registered check with a bounded timeout and
// reports 503 if any of them fail.
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	h.mu.RLock()
	checks := make([]HealthCheck, len(h.checks))
	copy(checks, h.checks)
	h.mu.RUnlock()

	results := make(map[string]CheckResult, len(checks))
	healthy := true

	for _, check := range checks {
		start := time.Now()
		err := check.Check(ctx)
		latency := time.Since(start).String()
		if err != nil {
			healthy = false
			results[check.Name()] = CheckResult{Status: "unhealthy", Message: err.Error(), Latency: latency}
			h.logger.Warn("health check failed", zap.String("check", check.Name()), zap.Error(err))
			continue
		}
		results[check.Name()] = CheckResult{Status: "healthy", Latency: latency}
	}

	status := HealthStatus{Timestamp: time.Now(), Checks: results}
	statusCode := http.StatusOK
	if healthy {
		status.Status = "ready"
	} else {
		status.Status = "not ready"
		statusCode = http.StatusServiceUnavailable
	}

	WriteJSON(w, statusCode, status)
}

// HandleReadyz is an alias for HandleReady.
func (h *HealthHandler) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	h.HandleReady(w, r)
}

// HandleVersion returns a handler reporting the build's version metadata.
func (h *HealthHandler) HandleVersion(version, buildTime, gitCommit string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{
			"version":   version,
			"buildTime": buildTime,
			"gitCommit": gitCommit,
		})
	}
}

// pingCheck adapts a bare ping function into a HealthCheck.
type pingCheck struct {
	name string
	ping func(ctx context.Context) error
}

func (p *pingCheck) Name() string                    { return p.name }
func (p *pingCheck) Check(ctx context.Context) error { return p.ping(ctx) }

// DatabaseHealthCheck wraps a database ping (internal/database.PoolManager.Ping).
func DatabaseHealthCheck(ping func(ctx context.Context) error) HealthCheck {
	return &pingCheck{name: "database", ping: ping}
}

// RedisHealthCheck wraps a redis ping (internal/cache.Manager.Ping).
func RedisHealthCheck(ping func(ctx context.Context) error) HealthCheck {
	return &pingCheck{name: "redis", ping: ping}
}
