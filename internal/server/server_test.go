package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/searchpool/searchpool-go/internal/dispatch"
	"github.com/searchpool/searchpool-go/internal/executor"
	"github.com/searchpool/searchpool-go/internal/pool"
)

// testExecutor answers via fn, or echoes when fn is nil.
type testExecutor struct {
	fn func(ctx context.Context, query string) (string, error)
}

func (e *testExecutor) Start(ctx context.Context) error { return nil }

func (e *testExecutor) Execute(ctx context.Context, query string) (string, error) {
	if e.fn != nil {
		return e.fn(ctx, query)
	}
	return "ok: " + query, nil
}

func (e *testExecutor) Cleanup(ctx context.Context) error { return nil }

func newTestServer(t *testing.T, capacity int, fn func(ctx context.Context, query string) (string, error)) (*Server, *pool.Pool) {
	t.Helper()
	p := pool.New("search")
	factory := func(id string) (executor.Executor, error) {
		return &testExecutor{fn: fn}, nil
	}
	if err := p.Initialize(context.Background(), capacity, factory); err != nil {
		t.Fatalf("pool init failed: %v", err)
	}
	d := dispatch.New(p, dispatch.Options{MaxAttempts: 1})

	srv, err := New(d, p, Options{})
	if err != nil {
		t.Fatalf("server init failed: %v", err)
	}
	return srv, p
}

func postJSON(t *testing.T, handler http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestServer_Subtasks(t *testing.T) {
	t.Run("runs a valid batch", func(t *testing.T) {
		srv, _ := newTestServer(t, 3, nil)
		rec := postJSON(t, srv.Handler(), "/v1/subtasks", `{"subtasks": ["alpha", "beta"]}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}

		var result struct {
			Results []struct {
				Index   int    `json:"subtask_index"`
				Subtask string `json:"subtask"`
				Result  string `json:"result"`
				AgentID string `json:"agent_id"`
			} `json:"results"`
			Failed        []any `json:"failed"`
			SubtasksCount int   `json:"subtasks_count"`
			AgentsUsed    int   `json:"agents_used"`
			PoolSize      int   `json:"pool_size"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if len(result.Results) != 2 || len(result.Failed) != 0 {
			t.Fatalf("unexpected result: %s", rec.Body)
		}
		if result.SubtasksCount != 2 || result.AgentsUsed != 2 || result.PoolSize != 3 {
			t.Errorf("unexpected counts: %s", rec.Body)
		}
		if result.Results[0].Result != "ok: alpha" {
			t.Errorf("unexpected first result: %+v", result.Results[0])
		}
	})

	t.Run("rejects invalid JSON", func(t *testing.T) {
		srv, _ := newTestServer(t, 2, nil)
		rec := postJSON(t, srv.Handler(), "/v1/subtasks", `{not json`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("schema rejects malformed requests", func(t *testing.T) {
		srv, _ := newTestServer(t, 2, nil)

		for name, body := range map[string]string{
			"missing subtasks":   `{}`,
			"empty array":        `{"subtasks": []}`,
			"non-string item":    `{"subtasks": [42]}`,
			"empty string item":  `{"subtasks": [""]}`,
			"unknown property":   `{"subtasks": ["a"], "mode": "fast"}`,
			"wrong subtask type": `{"subtasks": "just one"}`,
		} {
			t.Run(name, func(t *testing.T) {
				rec := postJSON(t, srv.Handler(), "/v1/subtasks", body)
				if rec.Code != http.StatusBadRequest {
					t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body)
				}
			})
		}
	})

	t.Run("oversized batch maps to 422", func(t *testing.T) {
		srv, _ := newTestServer(t, 2, nil)
		rec := postJSON(t, srv.Handler(), "/v1/subtasks", `{"subtasks": ["a", "b", "c"]}`)

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body)
		}
		var resp struct {
			Error  string `json:"error"`
			Reason string `json:"reason"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.Reason != "exceeds_capacity" {
			t.Errorf("expected reason exceeds_capacity, got %q", resp.Reason)
		}
		if !strings.Contains(resp.Error, "too many subtasks") {
			t.Errorf("unexpected message: %q", resp.Error)
		}
	})

	t.Run("busy pool maps to 503 with Retry-After", func(t *testing.T) {
		srv, p := newTestServer(t, 2, nil)

		held := p.ClaimIdle(1)
		defer p.Release(held)

		rec := postJSON(t, srv.Handler(), "/v1/subtasks", `{"subtasks": ["a", "b"]}`)
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d: %s", rec.Code, rec.Body)
		}
		if rec.Header().Get("Retry-After") != "1" {
			t.Errorf("expected Retry-After header, got %q", rec.Header().Get("Retry-After"))
		}
		var resp struct {
			Reason string `json:"reason"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.Reason != "insufficient_idle" {
			t.Errorf("expected reason insufficient_idle, got %q", resp.Reason)
		}
	})

	t.Run("task failures stay in the 200 response", func(t *testing.T) {
		srv, p := newTestServer(t, 2, func(ctx context.Context, query string) (string, error) {
			if query == "bad" {
				return "", errors.New("upstream 500")
			}
			return "fine", nil
		})
		rec := postJSON(t, srv.Handler(), "/v1/subtasks", `{"subtasks": ["good", "bad"]}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}
		var result struct {
			Results []any `json:"results"`
			Failed  []struct {
				Error string `json:"error"`
			} `json:"failed"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if len(result.Results) != 1 || len(result.Failed) != 1 {
			t.Fatalf("unexpected partition: %s", rec.Body)
		}
		if !strings.Contains(result.Failed[0].Error, "upstream 500") {
			t.Errorf("missing cause in failure: %q", result.Failed[0].Error)
		}
		if p.Idle() != 2 {
			t.Errorf("expected workers released, idle=%d", p.Idle())
		}
	})
}

func TestServer_Healthz(t *testing.T) {
	t.Run("reports ok for an initialized pool", func(t *testing.T) {
		srv, _ := newTestServer(t, 3, nil)

		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var health struct {
			Status   string `json:"status"`
			Pool     string `json:"pool"`
			PoolSize int    `json:"pool_size"`
			Idle     int    `json:"idle"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if health.Status != "ok" || health.Pool != "search" || health.PoolSize != 3 || health.Idle != 3 {
			t.Errorf("unexpected health: %+v", health)
		}
	})

	t.Run("reports initializing for an empty pool", func(t *testing.T) {
		p := pool.New("search")
		d := dispatch.New(p, dispatch.Options{})
		srv, err := New(d, p, Options{})
		if err != nil {
			t.Fatalf("server init failed: %v", err)
		}

		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("expected 503, got %d", rec.Code)
		}
	})
}

func TestServer_Routes(t *testing.T) {
	t.Run("ask is absent without a manager", func(t *testing.T) {
		srv, _ := newTestServer(t, 2, nil)
		rec := postJSON(t, srv.Handler(), "/v1/ask", `{"question": "why"}`)
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404 without manager, got %d", rec.Code)
		}
	})

	t.Run("metrics served when a registry is wired", func(t *testing.T) {
		p := pool.New("search")
		factory := func(id string) (executor.Executor, error) {
			return &testExecutor{}, nil
		}
		if err := p.Initialize(context.Background(), 1, factory); err != nil {
			t.Fatalf("pool init failed: %v", err)
		}
		d := dispatch.New(p, dispatch.Options{})
		registry := prometheus.NewRegistry()
		srv, err := New(d, p, Options{Registry: registry})
		if err != nil {
			t.Fatalf("server init failed: %v", err)
		}

		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200 from /metrics, got %d", rec.Code)
		}
	})

	t.Run("metrics absent without a registry", func(t *testing.T) {
		srv, _ := newTestServer(t, 1, nil)
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404 without registry, got %d", rec.Code)
		}
	})
}
