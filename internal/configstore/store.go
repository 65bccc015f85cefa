// Package configstore persists named configuration-variable bundles (an
// opaque key/value mapping referenced by a workflow's defaultConfigId or an
// execution's configId) behind the same redis-backed cache.Manager used
// elsewhere in the engine.
package configstore

import (
	"context"
	"fmt"
	"time"

	"github.com/BaSui01/agentflow/internal/cache"
)

const keyPrefix = "configstore:"

// Store resolves a configId to its variable mapping. It holds no
// config-specific state of its own; all persistence goes through the
// shared cache.Manager.
type Store struct {
	cache *cache.Manager
	ttl   time.Duration
}

// NewStore wraps an existing cache.Manager. ttl is the expiry applied to
// every stored bundle; zero means the manager's own DefaultTTL applies.
func NewStore(mgr *cache.Manager, ttl time.Duration) *Store {
	return &Store{cache: mgr, ttl: ttl}
}

func configKey(configID string) string {
	return keyPrefix + configID
}

// GetVariables returns the variable mapping for configID, or
// ErrConfigNotFound if none has been stored.
func (s *Store) GetVariables(ctx context.Context, configID string) (map[string]any, error) {
	var vars map[string]any
	if err := s.cache.GetJSON(ctx, configKey(configID), &vars); err != nil {
		if cache.IsCacheMiss(err) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("configstore: get %q: %w", configID, err)
	}
	return vars, nil
}

// SetVariables stores vars as the variable mapping for configID, replacing
// any previous value.
func (s *Store) SetVariables(ctx context.Context, configID string, vars map[string]any) error {
	if err := s.cache.SetJSON(ctx, configKey(configID), vars, s.ttl); err != nil {
		return fmt.Errorf("configstore: set %q: %w", configID, err)
	}
	return nil
}

// DeleteVariables removes the stored variable mapping for configID, if any.
func (s *Store) DeleteVariables(ctx context.Context, configID string) error {
	if err := s.cache.Delete(ctx, configKey(configID)); err != nil {
		return fmt.Errorf("configstore: delete %q: %w", configID, err)
	}
	return nil
}

// ErrConfigNotFound is returned by GetVariables when configID has no stored
// variable mapping.
var ErrConfigNotFound = fmt.Errorf("configstore: config not found")
