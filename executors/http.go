package executors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"
)

// HTTPExecutor performs an outbound HTTP call as a node's body. Config:
//
//	url     (string, required)
//	method  (string, default "GET")
//	headers (map[string]any, optional)
//	body    (any, optional — marshaled as JSON when method has a body)
//	retries (number, default 2 extra attempts beyond the first)
//
// A *BearerSigner may be attached to sign an Authorization header on every
// request; a rate.Limiter caps outbound request rate across all nodes
// sharing this executor instance.
type HTTPExecutor struct {
	client  *http.Client
	signer  *BearerSigner
	limiter *rate.Limiter
}

// HTTPExecutorOption configures an HTTPExecutor at construction.
type HTTPExecutorOption func(*HTTPExecutor)

func WithHTTPClient(c *http.Client) HTTPExecutorOption {
	return func(e *HTTPExecutor) { e.client = c }
}

func WithBearerSigner(s *BearerSigner) HTTPExecutorOption {
	return func(e *HTTPExecutor) { e.signer = s }
}

func WithRateLimiter(l *rate.Limiter) HTTPExecutorOption {
	return func(e *HTTPExecutor) { e.limiter = l }
}

func NewHTTPExecutor(opts ...HTTPExecutorOption) *HTTPExecutor {
	e := &HTTPExecutor{client: &http.Client{Timeout: 30 * time.Second}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *HTTPExecutor) Type() string { return "http" }

func (e *HTTPExecutor) ConfigSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"url"},
		"properties": map[string]any{
			"url":     map[string]any{"type": "string"},
			"method":  map[string]any{"type": "string"},
			"headers": map[string]any{"type": "object"},
			"body":    map[string]any{},
			"retries": map[string]any{"type": "integer"},
		},
	}
}

func (e *HTTPExecutor) Run(ctx context.Context, parsedConfig, _ map[string]any) (any, error) {
	url, _ := parsedConfig["url"].(string)
	if url == "" {
		return nil, fmt.Errorf("http executor requires a non-empty 'url'")
	}
	method, _ := parsedConfig["method"].(string)
	if method == "" {
		method = http.MethodGet
	}

	retries := 2
	if r, ok := parsedConfig["retries"].(float64); ok {
		retries = int(r)
	}

	var bodyBytes []byte
	if body, ok := parsedConfig["body"]; ok && body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("http executor: marshal body: %w", err)
		}
		bodyBytes = b
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * 200 * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("http executor: rate limiter: %w", err)
			}
		}

		out, err := e.doOnce(ctx, method, url, bodyBytes, parsedConfig["headers"])
		if err == nil {
			return out, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("http executor: %d attempts failed: %w", retries+1, lastErr)
}

func (e *HTTPExecutor) doOnce(ctx context.Context, method, url string, body []byte, headers any) (any, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if hm, ok := headers.(map[string]any); ok {
		for k, v := range hm {
			req.Header.Set(k, fmt.Sprintf("%v", v))
		}
	}
	if e.signer != nil {
		token, err := e.signer.Sign()
		if err != nil {
			return nil, fmt.Errorf("sign bearer token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("upstream status %d: %s", resp.StatusCode, string(respBody))
	}

	result := map[string]any{
		"status": resp.StatusCode,
	}
	var decoded any
	if len(respBody) > 0 && json.Unmarshal(respBody, &decoded) == nil {
		result["body"] = decoded
	} else {
		result["body"] = string(respBody)
	}
	if resp.StatusCode >= 400 {
		return result, fmt.Errorf("upstream status %d", resp.StatusCode)
	}
	return result, nil
}

// BearerSigner signs a minimal JWT used as an outbound bearer token for
// nodes calling back into authenticated services. It does not validate
// incoming tokens; that lives at the HTTP API layer.
type BearerSigner struct {
	secret   []byte
	issuer   string
	lifetime time.Duration
}

func NewBearerSigner(secret []byte, issuer string, lifetime time.Duration) *BearerSigner {
	if lifetime <= 0 {
		lifetime = 5 * time.Minute
	}
	return &BearerSigner{secret: secret, issuer: issuer, lifetime: lifetime}
}

func (s *BearerSigner) Sign() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.lifetime)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}
