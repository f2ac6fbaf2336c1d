/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the joint-cost engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Load config (YAML file, then environment, then flags)
  3. Build the zap logger
  4. Initialize SQLite store
  5. Collect built-in profiles (presets + profiles file)
  6. Configure HTTP router
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  YAML config file (optional)
  -port    HTTP server port (overrides config and PORT)
  -db      SQLite database path (overrides config and DB_PATH)
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/joint-cost.db"

  # Run with a config file and plant profiles
  PROFILES_PATH=./profiles.yaml ./server -config=./config.yaml

ENVIRONMENT:
  PORT, DB_PATH, LOG_LEVEL, PROFILES_PATH (see config package)

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration sources
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/warp/joint-cost-engine/api"
	"github.com/warp/joint-cost-engine/config"
	"github.com/warp/joint-cost-engine/costing"
	"github.com/warp/joint-cost-engine/factory"
	"github.com/warp/joint-cost-engine/poultry"
	"github.com/warp/joint-cost-engine/store/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Flags
	configPath := flag.String("config", "", "YAML config file")
	port := flag.String("port", "", "HTTP server port")
	dbPath := flag.String("db", "", "SQLite database path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *port != "" {
		cfg.Port = *port
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	settings, err := cfg.Settings()
	if err != nil {
		return err
	}

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	builtin, err := builtinProfiles(cfg.ProfilesPath)
	if err != nil {
		return err
	}

	handler := api.NewHandler(store, api.Config{
		Settings:       settings,
		RoundingPlaces: cfg.Engine.RoundingPlaces,
		Builtin:        builtin,
		Logger:         logger,
	})
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("addr", "http://localhost:"+cfg.Port),
			zap.String("db", cfg.DBPath),
			zap.Int("profiles", len(builtin)),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

// builtinProfiles returns the poultry presets plus the profiles file, if any.
// A file profile may not shadow a preset.
func builtinProfiles(path string) (costing.ProfileSet, error) {
	set := poultry.Presets()
	if path == "" {
		return set, nil
	}

	profiles, err := factory.NewProfileFactory().LoadProfilesFile(path)
	if err != nil {
		return nil, err
	}
	for _, p := range profiles {
		if _, ok := set[p.Name]; ok {
			return nil, fmt.Errorf("profiles file %s: %q shadows a preset profile", path, p.Name)
		}
		set[p.Name] = p
	}
	return set, nil
}
