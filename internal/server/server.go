// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/jeranaias/luminous-tui/internal/logging"
	"github.com/jeranaias/luminous-tui/internal/luminous"
	"github.com/jeranaias/luminous-tui/internal/model"
	"github.com/jeranaias/luminous-tui/internal/storage"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultAddr is the listen address of `luminous serve`.
	DefaultAddr = "127.0.0.1:8000"

	// MaxRequestBodySize bounds request bodies. Images travel inline as
	// data URLs, hence the generous limit.
	MaxRequestBodySize = 16 * 1024 * 1024

	// Version is reported by the health endpoint's logs.
	Version = "0.3.0"
)

// DefaultModels are offered when none are configured.
var DefaultModels = []model.ModelInfo{
	{ID: "replay-small", Name: "Replay Small"},
	{ID: "replay-vision", Name: "Replay Vision", Vision: true},
}

// ============================================================================
// SERVER
// ============================================================================

// Server is the replay backend.
type Server struct {
	store  storage.Store
	script *Script
	models []model.ModelInfo
	logger *slog.Logger
	cors   *CORSConfig
	limit  *RateLimiter

	tasks *taskManager
	rec   *recorder

	gateMu sync.Mutex
	gates  map[string]chan struct{}

	handlerOnce sync.Once
	handler     http.Handler
	server      *http.Server

	mu sync.RWMutex
}

// New creates a server with an in-memory store, the default script and
// the default models.
func New() *Server {
	return &Server{
		store:  storage.NewMemoryStore(),
		script: DefaultScript(),
		models: DefaultModels,
		logger: logging.L(),
		tasks:  newTaskManager(),
		rec:    newRecorder(),
		gates:  make(map[string]chan struct{}),
	}
}

// WithStore sets the chat store.
func (s *Server) WithStore(st storage.Store) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store = st
	return s
}

// WithScript sets the script completions are answered from.
func (s *Server) WithScript(sc *Script) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = sc
	return s
}

// WithModels sets the advertised models.
func (s *Server) WithModels(models []model.ModelInfo) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.models = models
	return s
}

// WithLogger sets the request logger.
func (s *Server) WithLogger(l *slog.Logger) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = l
	return s
}

// WithCORS enables CORS headers.
func (s *Server) WithCORS(config *CORSConfig) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cors = config
	return s
}

// WithRateLimit enables per client rate limiting.
func (s *Server) WithRateLimit(limiter *RateLimiter) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limit = limiter
	return s
}

func (s *Server) currentScript() *Script {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.script
}

// ============================================================================
// ROUTES
// ============================================================================

// Handler returns the HTTP handler with middleware applied. Options must
// be set before the first call.
func (s *Server) Handler() http.Handler {
	s.handlerOnce.Do(func() {
		s.handler = s.routes()
	})
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(RecoveryMiddleware(s.logger))
	r.Use(LoggingMiddleware(s.logger))
	if s.cors != nil {
		r.Use(CORSMiddleware(s.cors))
	}
	if s.limit != nil {
		r.Use(RateLimitMiddleware(s.limit))
	}
	r.Use(chiMiddleware.Heartbeat("/health"))

	r.Post("/v1/chat/completions", s.handleCompletions)
	r.Get("/v1/models", s.handleModels)

	r.Route("/api/chats", func(r chi.Router) {
		r.Get("/", s.handleListChats)
		r.Delete("/", s.handleClearChats)
		r.Post("/save", s.handleSaveChat)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetChat)
			r.Patch("/", s.handlePatchChat)
			r.Delete("/", s.handleDeleteChat)
			r.Get("/events", s.handleEvents)
			r.Post("/stop", s.handleStop)
		})
	})
	r.Post("/api/memory/reset", s.handleMemoryReset)
	return r
}

// ============================================================================
// LIFECYCLE
// ============================================================================

// ListenAndServe listens on addr and serves until Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// Streams stay open for as long as a research task runs.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}
	srv := s.server
	s.mu.Unlock()

	s.logger.Info("replay server started", "addr", ln.Addr().String(), "version", Version)
	err := srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops running tasks and gracefully shuts down the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.tasks.stopAll()

	s.mu.RLock()
	srv := s.server
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}
	s.logger.Info("replay server shutting down")
	return srv.Shutdown(ctx)
}

// ============================================================================
// TEST HOOKS
// ============================================================================

// recorder keeps what clients sent.
type recorder struct {
	mu       sync.Mutex
	requests []luminous.CompletionRequest
	stops    map[string]int
}

func newRecorder() *recorder {
	return &recorder{stops: make(map[string]int)}
}

func (r *recorder) request(req luminous.CompletionRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
}

func (r *recorder) stop(chatID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops[chatID]++
}

// Requests returns every completion request received so far.
func (s *Server) Requests() []luminous.CompletionRequest {
	s.rec.mu.Lock()
	defer s.rec.mu.Unlock()
	return append([]luminous.CompletionRequest(nil), s.rec.requests...)
}

// StopCalls returns how often the stop endpoint was called for chatID.
func (s *Server) StopCalls(chatID string) int {
	s.rec.mu.Lock()
	defer s.rec.mu.Unlock()
	return s.rec.stops[chatID]
}

// Store returns the chat store.
func (s *Server) Store() storage.Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store
}

// Release lets a held stream of chatID continue. Temporary chats use "".
// A release that arrives before the hold is kept for it.
func (s *Server) Release(chatID string) {
	s.gateMu.Lock()
	defer s.gateMu.Unlock()
	ch, ok := s.gates[chatID]
	if !ok {
		ch = make(chan struct{})
		s.gates[chatID] = ch
	}
	select {
	case <-ch:
	default:
		close(ch)
	}
}

// waitGate blocks until Release(chatID) or ctx is done.
func (s *Server) waitGate(ctx context.Context, chatID string) error {
	s.gateMu.Lock()
	ch, ok := s.gates[chatID]
	if !ok {
		ch = make(chan struct{})
		s.gates[chatID] = ch
	}
	s.gateMu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ch:
	}

	s.gateMu.Lock()
	if s.gates[chatID] == ch {
		delete(s.gates, chatID)
	}
	s.gateMu.Unlock()
	return nil
}

// ============================================================================
// HELPERS
// ============================================================================

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes the backend's {"error": "..."} body.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) writeSuccess(w http.ResponseWriter) {
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// decodeBody decodes a size limited JSON body.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("Request body exceeds maximum size of %d bytes", MaxRequestBodySize))
			return false
		}
		logging.FromContext(r.Context()).Debug("invalid request body", "error", err)
		s.writeError(w, http.StatusBadRequest, "Invalid request format")
		return false
	}
	return true
}
