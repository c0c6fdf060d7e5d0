// Package main is the entry point for the FilPulse API server.
//
// MAIN PACKAGE:
// main stays small. Its job is to:
//  1. Load configuration (defaults, optional YAML file, environment)
//  2. Create dependencies (logger, tracing, storage, auth services, metrics)
//  3. Hand them to internal/server and block until shutdown
//
// Everything else lives in internal/ so it can be tested without a binary.
//
// USAGE:
//
//	TOKEN_KEY=... DB_NAME=filpulse ./server
//	./server -config /etc/filpulse.yaml
//	DB_DRIVER=sqlite TOKEN_KEY=... ./server     (local development)
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sakif/filpulse/internal/auth"
	"github.com/sakif/filpulse/internal/config"
	"github.com/sakif/filpulse/internal/repository"
	"github.com/sakif/filpulse/internal/repository/postgres"
	"github.com/sakif/filpulse/internal/repository/sqlite"
	"github.com/sakif/filpulse/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "filpulse:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to a YAML config file (optional)")
	flag.Parse()

	// === 1. CONFIGURATION ===
	// Validate reports every problem at once, so a bad deploy shows the
	// whole list instead of one error per restart.
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// === 2. LOGGING ===
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx := context.Background()

	// === 3. TRACING ===
	// No-op unless OTEL_EXPORTER_OTLP_ENDPOINT is set.
	shutdownTracing, err := initTracing(ctx, cfg.Tracing.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("tracing shutdown failed", slog.String("error", err.Error()))
		}
	}()

	// === 4. STORAGE ===
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	// === 5. AUTH ===
	tokens, err := auth.NewTokenService(cfg.Auth.TokenKey)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	deps := server.Deps{
		Store:     store,
		Tokens:    tokens,
		Passwords: auth.NewPasswordService(),
	}
	// Assign only a real provider: a nil *GitHubProvider stored in the
	// interface would not compare equal to nil.
	if cfg.OAuthEnabled() {
		deps.GitHub = auth.NewGitHubProvider(cfg.OAuth.ClientID, cfg.OAuth.ClientSecret, cfg.OAuth.RedirectURI)
	}

	// === 6. METRICS ===
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	deps.Registry = reg

	// === 7. SERVE ===
	srv, err := server.New(server.Config{
		Addr:               cfg.Addr(),
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		QueryTimeout:       cfg.Database.QueryTimeout,
	}, deps, logger)
	if err != nil {
		return fmt.Errorf("server: %w", err)
	}

	// Start blocks until SIGINT/SIGTERM.
	return srv.Start()
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// openStore connects to the configured driver and makes sure the tables
// the API owns exist. The dataset views are created by the ingestion
// pipeline; the API only reads them.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.Store, error) {
	dsn := cfg.DSN()

	switch cfg.Database.Driver {
	case config.DriverSQLite:
		if dsn != ":memory:" {
			// 0755: owner rwx, everyone else r-x (like `mkdir -p`).
			if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		db, err := sqlite.New(dsn)
		if err != nil {
			return nil, err
		}
		logger.Info("storage ready", slog.String("driver", "sqlite"), slog.String("path", dsn))
		return db, nil

	default:
		cctx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()

		db, err := postgres.New(cctx, dsn, postgres.Options{MaxConns: cfg.Database.MaxConns})
		if err != nil {
			return nil, err
		}
		if err := db.EnsureSchema(cctx); err != nil {
			db.Close()
			return nil, err
		}
		logger.Info("storage ready",
			slog.String("driver", "postgres"),
			slog.Int("max_conns", int(cfg.Database.MaxConns)),
		)
		return db, nil
	}
}
