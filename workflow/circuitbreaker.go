package workflow

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CircuitState is one of closed/open/half-open.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig tunes one breaker instance.
type CircuitBreakerConfig struct {
	FailureThreshold           int           `json:"failure_threshold" yaml:"failure_threshold"`
	RecoveryTimeout            time.Duration `json:"recovery_timeout" yaml:"recovery_timeout"`
	HalfOpenMaxProbes          int           `json:"half_open_max_probes" yaml:"half_open_max_probes"`
	SuccessThresholdInHalfOpen int           `json:"success_threshold_in_half_open" yaml:"success_threshold_in_half_open"`
}

func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold:           5,
		RecoveryTimeout:            30 * time.Second,
		HalfOpenMaxProbes:          3,
		SuccessThresholdInHalfOpen: 2,
	}
}

// circuitBreaker guards one node type's executor invocations: a cyclic
// workflow that keeps hitting the same flapping executor trips the
// breaker instead of retrying it every iteration until the iteration
// limit kills the whole execution.
type circuitBreaker struct {
	nodeType        string
	config          CircuitBreakerConfig
	state           CircuitState
	failures        int
	successes       int
	lastFailureTime time.Time
	probeCount      int
	logger          *zap.Logger
	mu              sync.Mutex
}

func newCircuitBreaker(nodeType string, config CircuitBreakerConfig, logger *zap.Logger) *circuitBreaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &circuitBreaker{
		nodeType: nodeType,
		config:   config,
		logger:   logger.With(zap.String("node_type", nodeType)),
	}
}

// allow reports whether a call may proceed, per the current state.
func (cb *circuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return nil

	case CircuitOpen:
		if time.Since(cb.lastFailureTime) >= cb.config.RecoveryTimeout {
			cb.transitionTo(CircuitHalfOpen, "recovery timeout elapsed")
			cb.probeCount = 0
			cb.successes = 0
			return nil
		}
		return fmt.Errorf("circuit breaker open for node type %q: %d consecutive failures, retry after %v",
			cb.nodeType, cb.failures, cb.config.RecoveryTimeout-time.Since(cb.lastFailureTime))

	case CircuitHalfOpen:
		if cb.probeCount < cb.config.HalfOpenMaxProbes {
			cb.probeCount++
			return nil
		}
		return fmt.Errorf("circuit breaker half-open for node type %q: max probes (%d) reached",
			cb.nodeType, cb.config.HalfOpenMaxProbes)

	default:
		return fmt.Errorf("unknown circuit breaker state: %d", cb.state)
	}
}

func (cb *circuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		cb.failures = 0
	case CircuitHalfOpen:
		cb.successes++
		if cb.successes >= cb.config.SuccessThresholdInHalfOpen {
			cb.transitionTo(CircuitClosed, fmt.Sprintf("%d consecutive successes in half-open", cb.successes))
			cb.failures = 0
			cb.successes = 0
		}
	}
}

func (cb *circuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailureTime = time.Now()

	switch cb.state {
	case CircuitClosed:
		if cb.failures >= cb.config.FailureThreshold {
			cb.transitionTo(CircuitOpen, fmt.Sprintf("%d consecutive failures", cb.failures))
		}
	case CircuitHalfOpen:
		cb.successes = 0
		cb.transitionTo(CircuitOpen, "failure in half-open state")
	}
}

func (cb *circuitBreaker) transitionTo(newState CircuitState, reason string) {
	old := cb.state
	cb.state = newState
	cb.logger.Info("circuit breaker state change",
		zap.String("old_state", old.String()),
		zap.String("new_state", newState.String()),
		zap.String("reason", reason),
		zap.Int("failures", cb.failures))
}

func (cb *circuitBreaker) getState() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// CircuitBreakerRegistry owns one circuitBreaker per node type, shared
// across every Orchestrator value backed by the same registry — so a
// breaker's open/closed state persists across separate top-level
// executions, not just within one run's loop.
type CircuitBreakerRegistry struct {
	mu       sync.RWMutex
	breakers map[string]*circuitBreaker
	config   CircuitBreakerConfig
	logger   *zap.Logger
}

func NewCircuitBreakerRegistry(config CircuitBreakerConfig, logger *zap.Logger) *CircuitBreakerRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CircuitBreakerRegistry{
		breakers: make(map[string]*circuitBreaker),
		config:   config,
		logger:   logger,
	}
}

func (r *CircuitBreakerRegistry) getOrCreate(nodeType string) *circuitBreaker {
	r.mu.RLock()
	if cb, ok := r.breakers[nodeType]; ok {
		r.mu.RUnlock()
		return cb
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok := r.breakers[nodeType]; ok {
		return cb
	}
	cb := newCircuitBreaker(nodeType, r.config, r.logger)
	r.breakers[nodeType] = cb
	return cb
}

// States returns the current state of every node type with an active
// breaker, for diagnostics/health endpoints.
func (r *CircuitBreakerRegistry) States() map[string]CircuitState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]CircuitState, len(r.breakers))
	for nodeType, cb := range r.breakers {
		out[nodeType] = cb.getState()
	}
	return out
}
