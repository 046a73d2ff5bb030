package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"forge/internal/clock"
	"forge/internal/state"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// maxBodyBytes bounds action request bodies
const maxBodyBytes = 1 << 20

// Server provides HTTP API endpoints over a store and its bound actions
type Server struct {
	store    *state.Store
	actions  state.Actions
	stats    state.Source
	gatherer prometheus.Gatherer
	clock    clock.Clock
	logger   *zap.Logger

	hub      *hub
	renderer *Renderer
	router   chi.Router
	server   *http.Server
}

// Option configures optional Server collaborators
type Option func(*Server)

// WithStats exposes the current value of src at /api/stats
func WithStats(src state.Source) Option {
	return func(s *Server) {
		s.stats = src
	}
}

// WithGatherer serves metrics from g at /metrics
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithClock sets the clock stamping rendered snapshots
func WithClock(c clock.Clock) Option {
	return func(s *Server) {
		s.clock = c
	}
}

// NewServer creates a new API server. It subscribes to store immediately so
// the rendered snapshot is current before the first request.
func NewServer(store *state.Store, actions state.Actions, logger *zap.Logger, port int, opts ...Option) *Server {
	s := &Server{
		store:   store,
		actions: actions,
		clock:   clock.NewReal(),
		logger:  logger,
		hub:     newHub(logger),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.renderer = NewRenderer(store, logger, s.clock, s.hub.broadcast)
	s.router = s.routes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/", s.handleSitemap)
	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.handleWebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleGetState)
		r.Get("/stats", s.handleGetStats)
		r.Post("/actions/{name}", s.handleDispatch)
		r.Post("/reset", s.handleReset)
	})

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	return r
}

// Handler returns the HTTP handler serving all endpoints
func (s *Server) Handler() http.Handler {
	return s.router
}

// ClientCount returns the number of connected websocket clients
func (s *Server) ClientCount() int {
	return s.hub.count()
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Debug("Request served",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("remote_addr", r.RemoteAddr))
	})
}

// ErrorResponse is the body of every non-2xx JSON response
type ErrorResponse struct {
	Error string `json:"error"`
}

// DispatchRequest is the body of POST /api/actions/{name}
type DispatchRequest struct {
	Args []any `json:"args"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeSnapshot(w http.ResponseWriter) {
	data, _ := s.renderer.Latest()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// writeCurrent responds with the store state as it is right after an update.
// The rendering of that update may still be in flight on another request, so
// the version is that of the last completed rendering.
func (s *Server) writeCurrent(w http.ResponseWriter) {
	_, version := s.renderer.Latest()
	s.writeJSON(w, http.StatusOK, Snapshot{
		Version:    version,
		RenderedAt: s.clock.Now(),
		State:      s.store.GetState(),
	})
}

// handleGetState returns the last rendered snapshot
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	s.writeSnapshot(w)
}

// handleGetStats returns the current value of the stats source
func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		s.writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "stats not configured"})
		return
	}
	s.writeJSON(w, http.StatusOK, s.stats.Current())
}

// handleDispatch runs a bound action with the JSON args from the body.
// An empty body dispatches with no arguments.
func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req DispatchRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	if err := s.actions.Dispatch(name, req.Args...); err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, state.ErrUnknownAction) {
			status = http.StatusNotFound
		}
		s.logger.Warn("Action failed",
			zap.String("action", name),
			zap.Int("args", len(req.Args)),
			zap.Error(err))
		s.writeJSON(w, status, ErrorResponse{Error: err.Error()})
		return
	}

	s.logger.Info("Action dispatched", zap.String("action", name), zap.Int("args", len(req.Args)))
	s.writeCurrent(w)
}

// handleReset restores the initial state
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.store.Reset()
	s.writeCurrent(w)
}

// handleHealth returns a simple health check response
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_, version := s.renderer.Latest()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"version":   version,
		"listeners": s.store.ListenerCount(),
		"clients":   s.hub.count(),
	})
}

// handleWebSocket streams every rendered snapshot to the client
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.hub.serve(w, r, func() []byte {
		data, _ := s.renderer.Latest()
		return data
	})
}

// Endpoint represents an API endpoint with its documentation
type Endpoint struct {
	Path        string `json:"path"`
	Method      string `json:"method"`
	Description string `json:"description"`
}

func (s *Server) endpoints() []Endpoint {
	endpoints := []Endpoint{
		{Path: "/", Method: "GET", Description: "This sitemap - lists all available API endpoints"},
		{Path: "/health", Method: "GET", Description: "Health check endpoint"},
		{Path: "/api/state", Method: "GET", Description: "Last rendered state snapshot"},
		{Path: "/api/stats", Method: "GET", Description: "Derived statistics"},
		{Path: "/api/actions/{name}", Method: "POST", Description: "Dispatch an action with body {\"args\": [...]}"},
		{Path: "/api/reset", Method: "POST", Description: "Restore the initial state"},
		{Path: "/ws", Method: "GET", Description: "Websocket stream of state snapshots"},
	}
	if s.gatherer != nil {
		endpoints = append(endpoints, Endpoint{Path: "/metrics", Method: "GET", Description: "Prometheus metrics"})
	}
	return endpoints
}

// handleSitemap lists endpoints and actions as HTML for browsers, plain text otherwise
func (s *Server) handleSitemap(w http.ResponseWriter, r *http.Request) {
	endpoints := s.endpoints()
	names := s.actions.Names()
	preferHTML := strings.Contains(r.Header.Get("Accept"), "text/html")

	if preferHTML {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
    <title>Forge API</title>
    <style>
        body { font-family: monospace; margin: 40px; background: #1e1e1e; color: #d4d4d4; }
        h1 { color: #4ec9b0; }
        .endpoint { background: #2d2d2d; padding: 15px; margin: 10px 0; border-left: 3px solid #007acc; }
        .method { color: #4ec9b0; font-weight: bold; }
        .path { color: #ce9178; }
    </style>
</head>
<body>
    <h1>Forge API</h1>
    <h2>Endpoints</h2>
`)
		for _, ep := range endpoints {
			fmt.Fprintf(w, `    <div class="endpoint"><span class="method">%s</span> <span class="path">%s</span> %s</div>
`, ep.Method, ep.Path, ep.Description)
		}
		fmt.Fprintf(w, "    <h2>Actions</h2>\n")
		for _, name := range names {
			fmt.Fprintf(w, "    <div class=\"endpoint\"><span class=\"path\">%s</span></div>\n", name)
		}
		fmt.Fprintf(w, "</body>\n</html>\n")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "Forge API\n")
	fmt.Fprintf(w, "=========\n\n")
	fmt.Fprintf(w, "Available endpoints:\n\n")
	for _, ep := range endpoints {
		fmt.Fprintf(w, "  %-6s %-22s %s\n", ep.Method, ep.Path, ep.Description)
	}
	fmt.Fprintf(w, "\nActions:\n\n")
	for _, name := range names {
		fmt.Fprintf(w, "  %s\n", name)
	}
	fmt.Fprintf(w, "\nExample:\n\n")
	fmt.Fprintf(w, "  curl -X POST -d '{\"args\":[\"buy milk\"]}' http://localhost%s/api/actions/add\n", s.server.Addr)
}

// Start begins serving HTTP requests
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP API server", zap.String("addr", s.server.Addr))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop unsubscribes from the store, disconnects websocket clients and
// gracefully shuts down the HTTP server
func (s *Server) Stop() error {
	s.logger.Info("Stopping HTTP API server")

	s.renderer.Close()
	s.hub.close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	return nil
}
