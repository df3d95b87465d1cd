package api

import (
	"context"
	"net/http"
	"time"

	"github.com/chis/pathdesigner/internal/cam"
	"github.com/chis/pathdesigner/internal/events"
	"github.com/chis/pathdesigner/internal/logging"
	"github.com/chis/pathdesigner/internal/nodes"
	"github.com/chis/pathdesigner/internal/storage"
)

// Server exposes the graph runtime over HTTP.
type Server struct {
	runtime    *nodes.Runtime
	storage    storage.Storage
	eventBus   *events.Bus
	presets    []cam.PresetItem
	log        *logging.Logger
	httpServer *http.Server
}

// Config holds the dependencies of the API server.
type Config struct {
	ListenAddr string
	Runtime    *nodes.Runtime
	Storage    storage.Storage
	EventBus   *events.Bus
	Presets    []cam.PresetItem
	Logger     *logging.Logger
}

// NewServer wires routes and middleware around the given runtime.
func NewServer(cfg Config) *Server {
	log := cfg.Logger
	if log == nil {
		log = logging.Default()
	}

	s := &Server{
		runtime:  cfg.Runtime,
		storage:  cfg.Storage,
		eventBus: cfg.EventBus,
		presets:  cfg.Presets,
		log:      log.WithField("component", "api"),
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	handler := ChainMiddleware(mux,
		corsMiddleware,
		CorrelationIDMiddleware,
		RequestLoggingMiddleware(s.log),
	)

	s.httpServer = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // uploads and toolpath generation can be slow
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// registerRoutes sets up all API routes.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/presets", s.handlePresets)
	mux.HandleFunc("GET /api/events", s.handleEvents)

	// Graph topology
	mux.HandleFunc("GET /api/graph", s.handleGraph)
	mux.HandleFunc("POST /api/nodes", s.handleAddNode)
	mux.HandleFunc("DELETE /api/nodes/{id}", s.handleRemoveNode)
	mux.HandleFunc("PATCH /api/nodes/{id}/settings", s.handleUpdateSettings)
	mux.HandleFunc("POST /api/nodes/{id}/position", s.handleMoveNode)
	mux.HandleFunc("POST /api/edges", s.handleConnect)
	mux.HandleFunc("DELETE /api/edges/{id}", s.handleDisconnect)
	mux.HandleFunc("POST /api/layout", s.handleAutoLayout)

	// Node actions
	mux.HandleFunc("POST /api/nodes/{id}/upload", s.handleUpload)
	mux.HandleFunc("POST /api/nodes/{id}/release", s.handleRelease)
	mux.HandleFunc("POST /api/nodes/{id}/autonest", s.handleAutoNest)
	mux.HandleFunc("POST /api/nodes/{id}/validate", s.handleValidatePlacements)
	mux.HandleFunc("POST /api/nodes/{id}/contours", s.handleContourPreview)
	mux.HandleFunc("POST /api/settings/validate", s.handleValidateSettings)

	// Projects
	mux.HandleFunc("GET /api/projects", s.handleListProjects)
	mux.HandleFunc("POST /api/projects", s.handleSaveProject)
	mux.HandleFunc("GET /api/projects/{id}", s.handleGetProject)
	mux.HandleFunc("POST /api/projects/{id}/load", s.handleLoadProject)
	mux.HandleFunc("PATCH /api/projects/{id}", s.handleRenameProject)
	mux.HandleFunc("DELETE /api/projects/{id}", s.handleDeleteProject)
}

// Start begins listening. It blocks until the server stops.
func (s *Server) Start() error {
	s.log.Info("API server listening on %s", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("API server shutting down")
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the fully wrapped handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// corsMiddleware adds CORS headers for the browser frontend.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Correlation-ID")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
