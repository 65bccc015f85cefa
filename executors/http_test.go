package executors

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPExecutorSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	e := NewHTTPExecutor()
	out, err := e.Run(context.Background(), map[string]any{"url": srv.URL, "method": "GET"}, nil)
	require.NoError(t, err)

	result, ok := out.(map[string]any)
	require.True(t, ok)
	require.Equal(t, 200, result["status"])
}

func TestHTTPExecutorRetriesOn5xxThenFails(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := NewHTTPExecutor()
	_, err := e.Run(context.Background(), map[string]any{"url": srv.URL, "retries": float64(1)}, nil)
	require.Error(t, err)
	require.Equal(t, 2, attempts)
}

func TestHTTPExecutorRequiresURL(t *testing.T) {
	e := NewHTTPExecutor()
	_, err := e.Run(context.Background(), map[string]any{}, nil)
	require.Error(t, err)
}

func TestHTTPExecutorSignsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	signer := NewBearerSigner([]byte("secret"), "workflowengine", 0)
	e := NewHTTPExecutor(WithBearerSigner(signer))
	_, err := e.Run(context.Background(), map[string]any{"url": srv.URL}, nil)
	require.NoError(t, err)
	require.Contains(t, gotAuth, "Bearer ")
}
