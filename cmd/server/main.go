/*
main.go - HTTP server entry point

PURPOSE:
  Serves report computation over HTTP. Handles configuration, dependency
  injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse configuration (flags, then environment)
  2. Build the zap logger
  3. Open the report archive (SQLite, or in-memory when no path is set)
  4. Configure HTTP router
  5. Serve until SIGINT/SIGTERM

CONFIGURATION (flag / env):
  -a        RUN_ADDRESS     listen address (default localhost:8080)
  -d        DATABASE_PATH   SQLite archive; empty keeps runs in memory
  -v        LOG_LEVEL       debug|info|warn|error
  -log-file LOG_FILE        also append warnings and errors here
  -workers  WORKERS         beneficiaries resolved concurrently

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Settings
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/warp/subscription-engine/api"
	"github.com/warp/subscription-engine/config"
	"github.com/warp/subscription-engine/generic"
	"github.com/warp/subscription-engine/generic/store"
	"github.com/warp/subscription-engine/logging"
	"github.com/warp/subscription-engine/store/sqlite"
)

func main() {
	cfg, err := config.Parse(os.Args[0], os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}

	logger, err := logging.NewWithErrorFile(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(2)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	var reports generic.ReportStore = store.NewMemory()
	if cfg.DatabasePath != "" {
		archive, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			sugar.Fatalw("database initialization error", "error", err)
		}
		defer archive.Close()
		reports = archive
	}

	handler := api.NewHandler(reports, logger, api.WithWorkers(cfg.Workers))
	server := &http.Server{
		Addr:         cfg.Address,
		Handler:      api.NewRouter(handler, nil),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sugar.Infow("starting subscription server", "addr", cfg.Address, "archive", cfg.DatabasePath)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Errorw("application terminated with error", "error", err)
		logger.Sync()
		os.Exit(1)
	}
}
