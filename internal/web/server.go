package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/polematch/internal/audit"
	"github.com/polematch/internal/config"
	"github.com/polematch/internal/db"
	"github.com/polematch/internal/engine"
	"github.com/polematch/internal/web/handlers"
	"github.com/polematch/internal/web/middleware"
)

// Server represents the web server
type Server struct {
	config     *Config
	api        *handlers.APIHandler
	store      handlers.RunStore
	httpServer *http.Server
	router     *mux.Router
}

// NewServer creates a new web server instance. store may be nil, in which
// case runs are computed but not recorded and GET /api/runs/{id} is absent.
func NewServer(cfg *Config, eng *engine.Engine, store handlers.RunStore) *Server {
	server := &Server{
		config: cfg,
		api:    handlers.NewAPIHandler(eng, store),
		store:  store,
	}

	// Setup routes
	server.setupRoutes()

	// Create HTTP server
	server.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()

	apiHandler := s.api
	apiHandler.MaxBodyBytes = s.config.Server.MaxBodyBytes
	apiHandler.Debug = s.config.Debug

	s.router.HandleFunc("/health", apiHandler.Health).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// API routes
	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(middleware.RateLimit(s.config.Server.RateLimit, s.config.Server.RateBurst))
	api.HandleFunc("/correlate", apiHandler.Correlate).Methods("POST", "OPTIONS")
	api.HandleFunc("/reconcile", apiHandler.Reconcile).Methods("POST", "OPTIONS")
	api.HandleFunc("/spans", apiHandler.Spans).Methods("POST", "OPTIONS")
	api.HandleFunc("/runs", apiHandler.CreateRun).Methods("POST", "OPTIONS")
	api.HandleFunc("/rules", apiHandler.Rules).Methods("GET")

	if s.store != nil {
		api.HandleFunc("/runs/{id}", apiHandler.GetRun).Methods("GET")
	}

	// Apply middleware
	s.router.Use(middleware.CORS())
	s.router.Use(middleware.RequestLogging())
}

// SetEngine swaps the engine behind every API route.
func (s *Server) SetEngine(eng *engine.Engine) {
	s.api.SetEngine(eng)
}

// Handler exposes the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	// Start server in background
	go func() {
		slog.Info("starting server", slog.String("addr", s.httpServer.Addr), slog.Bool("store", s.store != nil))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// Run serves eng until ctx is cancelled. With the database enabled the
// audit schema is ensured and every run is recorded. With RulesPath set
// the rules file is watched and the engine rebuilt when it changes.
func Run(ctx context.Context, cfg *Config, eng *engine.Engine) error {
	var store handlers.RunStore
	if cfg.Database.Enabled {
		conn, err := db.NewConnection(ctx, cfg.Database.URL)
		if err != nil {
			return err
		}
		defer conn.Close()

		tracker := audit.NewTracker(conn.DB)
		if err := tracker.EnsureSchema(ctx); err != nil {
			return err
		}
		store = tracker
	}

	server := NewServer(cfg, eng, store)

	if cfg.RulesPath != "" {
		go func() {
			err := config.WatchRules(ctx, cfg.RulesPath, func(rules *config.Rules) {
				next, err := engine.New(rules, cfg.Debug)
				if err != nil {
					slog.Error("rebuilding engine failed", slog.Any("error", err))
					return
				}
				server.SetEngine(next)
			})
			if err != nil {
				slog.Error("rules watcher stopped", slog.Any("error", err))
			}
		}()
	}

	return server.Start(ctx)
}
