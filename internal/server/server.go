// Package server sets up the HTTP server, router, and all route definitions.
//
// DEPENDENCY INJECTION FLOW:
// main.go creates config, logger, tracing and the storage engine, then:
//
//	Server.New() wires: Store → services → handlers → chi routes
//
// This is the composition root for HTTP: every handler is built here from
// interfaces, so tests can build a Server over an in-memory SQLite store.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sakif/filpulse/internal/auth"
	"github.com/sakif/filpulse/internal/handler"
	"github.com/sakif/filpulse/internal/middleware"
	"github.com/sakif/filpulse/internal/query"
	"github.com/sakif/filpulse/internal/repository"
	"github.com/sakif/filpulse/internal/service"
)

// Config holds the HTTP-level settings.
type Config struct {
	Addr               string
	CORSAllowedOrigins []string
	QueryTimeout       time.Duration
}

// Deps are the collaborators main.go constructs.
type Deps struct {
	Store     repository.Store
	Tokens    *auth.TokenService
	Passwords *auth.PasswordService
	// GitHub is nil when OAuth is not configured; /authenticate is then
	// not registered.
	GitHub service.GitHubExchanger
	// Registry receives every metric and backs GET /metrics.
	Registry *prometheus.Registry
}

// Server represents the HTTP server and all its dependencies. The Store is
// owned by the caller.
type Server struct {
	router *chi.Mux
	config Config
	deps   Deps
	logger *slog.Logger
}

func New(cfg Config, deps Deps, logger *slog.Logger) (*Server, error) {
	if deps.Store == nil || deps.Tokens == nil || deps.Passwords == nil {
		return nil, errors.New("server: store, tokens and passwords are required")
	}
	if deps.Registry == nil {
		deps.Registry = prometheus.NewRegistry()
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		deps:   deps,
		logger: logger,
	}
	if err := s.setupRoutes(); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET  /overview, /top_contributors, /commits, /active_contributors
//	GET  /tab_{commits,contributors,prs,issues,releases}
//	GET  /tab_<tab>/filter/{project,contributor,assignee}
//	GET  /tab_watchlist                 (401 without a token)
//	POST /signup, /login, /reset_password
//	POST /authenticate                  (only with OAuth configured)
//	POST /follow, /viewed               (401 without a token)
//	GET  /me                            (401 without a token)
//	GET  /healthz, /metrics
//
// MIDDLEWARE ORDER:
//  1. RequestID, RealIP
//  2. Logger, Metrics: see the final status of every request
//  3. Recoverer: a panic becomes a 500 that Logger and Metrics still see
//  4. CORS
//  5. OptionalAuth: annotates the context, never rejects
func (s *Server) setupRoutes() error {
	endpoints := query.Catalogue()
	if err := query.ValidateCatalogue(endpoints); err != nil {
		return err
	}

	r := s.router
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(middleware.Metrics(middleware.NewHTTPMetrics(s.deps.Registry)))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(auth.OptionalAuth(s.deps.Tokens))

	store := s.deps.Store
	exec := query.NewExecutor(store, s.config.QueryTimeout, query.NewMetrics(s.deps.Registry), s.logger)

	datasetHandler := handler.NewDatasetHandler(service.NewDatasetService(store.Dialect(), exec), s.logger)
	for _, ep := range endpoints {
		r.Get(ep.Path, datasetHandler.Endpoint(ep))
	}

	authService := service.NewAuthService(store, s.deps.Tokens, s.deps.Passwords, s.deps.GitHub, s.logger)
	authHandler := handler.NewAuthHandler(authService, s.logger)
	r.Post("/signup", authHandler.HandleSignup)
	r.Post("/login", authHandler.HandleLogin)
	r.Post("/reset_password", authHandler.HandleResetPassword)
	if authService.OAuthEnabled() {
		r.Post("/authenticate", authHandler.HandleAuthenticate)
	} else {
		s.logger.Warn("OAuth not configured, /authenticate is disabled")
	}
	r.With(auth.RequireAuth(handler.Unauthorized)).Get("/me", authHandler.HandleMe)

	watchHandler := handler.NewWatchlistHandler(service.NewWatchlistService(store, store, s.logger), s.logger)
	r.Post("/follow", watchHandler.HandleFollow)
	r.Post("/viewed", watchHandler.HandleViewed)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", middleware.MetricsHandler(s.deps.Registry))

	s.logger.Info("routes registered", slog.Int("dataset_endpoints", len(endpoints)))
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	if err := s.deps.Store.Ping(ctx); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"unavailable"}`))
		return
	}
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// Handler is the full handler stack, traced with otelhttp. Spans are
// named "<method> <path>"; no route has path parameters.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "filpulse",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

// Start serves until SIGINT/SIGTERM, then shuts down gracefully:
//  1. stop accepting new connections
//  2. wait up to 30s for in-flight requests
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Longer than the query timeout so a slow page still gets its 504.
		WriteTimeout: s.config.QueryTimeout*2 + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.String("addr", s.config.Addr),
			slog.String("dialect", s.deps.Store.Dialect().Name()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}
	return nil
}
