// Package server exposes the dispatcher over an HTTP JSON API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/searchpool/searchpool-go/internal/dispatch"
	"github.com/searchpool/searchpool-go/internal/manager"
	"github.com/searchpool/searchpool-go/internal/pool"
)

// subtasksSchema validates the execute-subtasks request body before it
// reaches the dispatcher. Capacity limits are the dispatcher's admission
// check, not the schema's.
const subtasksSchema = `{
	"type": "object",
	"required": ["subtasks"],
	"additionalProperties": false,
	"properties": {
		"subtasks": {
			"type": "array",
			"minItems": 1,
			"items": {"type": "string", "minLength": 1}
		}
	}
}`

// Server routes HTTP requests to the dispatcher and manager.
type Server struct {
	dispatcher *dispatch.Dispatcher
	pool       *pool.Pool
	manager    *manager.Manager
	registry   *prometheus.Registry
	schema     *jsonschema.Schema
	logger     *log.Logger
}

// Options configures a Server.
type Options struct {
	// Manager enables POST /v1/ask when non-nil.
	Manager *manager.Manager

	// Registry backs GET /metrics when non-nil.
	Registry *prometheus.Registry

	// Logger receives request-level log lines. May be nil.
	Logger *log.Logger
}

// New creates a server over the given dispatcher and pool.
func New(d *dispatch.Dispatcher, p *pool.Pool, opts Options) (*Server, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("subtasks.json", strings.NewReader(subtasksSchema)); err != nil {
		return nil, fmt.Errorf("add request schema: %w", err)
	}
	schema, err := compiler.Compile("subtasks.json")
	if err != nil {
		return nil, fmt.Errorf("compile request schema: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &Server{
		dispatcher: d,
		pool:       p,
		manager:    opts.Manager,
		registry:   opts.Registry,
		schema:     schema,
		logger:     logger,
	}, nil
}

// Handler returns the HTTP handler for all routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/subtasks", s.handleSubtasks)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	if s.manager != nil {
		mux.HandleFunc("POST /v1/ask", s.handleAsk)
	}
	if s.registry != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.logger.Info("listening", "addr", addr, "pool", s.pool.Name(), "capacity", s.pool.Capacity())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type subtasksRequest struct {
	Subtasks []string `json:"subtasks"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func (s *Server) handleSubtasks(w http.ResponseWriter, r *http.Request) {
	var raw any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid JSON: %v", err)})
		return
	}
	if err := s.schema.Validate(raw); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid request: %v", err)})
		return
	}

	data, err := json.Marshal(raw)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	var req subtasksRequest
	if err := json.Unmarshal(data, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	result, err := s.dispatcher.Execute(r.Context(), req.Subtasks)
	if err != nil {
		s.writeDispatchError(w, err)
		return
	}

	s.logger.Info("batch completed",
		"batch", result.BatchID,
		"subtasks", result.SubtasksCount,
		"failed", len(result.Failed),
	)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if !s.pool.Initialized() {
		status = "initializing"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":    status,
		"pool":      s.pool.Name(),
		"pool_size": s.pool.Capacity(),
		"idle":      s.pool.Idle(),
	})
}

type askRequest struct {
	Question string `json:"question"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid JSON: %v", err)})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "question must not be empty"})
		return
	}

	answer, err := s.manager.Ask(r.Context(), req.Question)
	if err != nil {
		s.writeDispatchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

// writeDispatchError maps dispatcher errors to HTTP statuses: validation
// failures are the client's fault (422), a fully busy pool is temporary
// (503), everything else is a server error.
func (s *Server) writeDispatchError(w http.ResponseWriter, err error) {
	var admission *dispatch.AdmissionError
	if errors.As(err, &admission) {
		code := http.StatusUnprocessableEntity
		if admission.Reason == dispatch.ReasonInsufficientIdle {
			code = http.StatusServiceUnavailable
			w.Header().Set("Retry-After", "1")
		}
		writeJSON(w, code, errorResponse{Error: admission.Error(), Reason: string(admission.Reason)})
		return
	}
	s.logger.Error("request failed", "err", err)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
