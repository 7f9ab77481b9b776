package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	"github.com/robgallardof/multig/internal/app"
	"github.com/robgallardof/multig/internal/config"
	"github.com/robgallardof/multig/internal/database"
	"github.com/robgallardof/multig/internal/httpserver"
	"github.com/robgallardof/multig/internal/logging"
	"github.com/robgallardof/multig/internal/probe"
	"github.com/robgallardof/multig/internal/procstore"
	"github.com/robgallardof/multig/internal/registry"
	"github.com/robgallardof/multig/internal/worker"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := database.RunMigrationsWithLock(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

func runGracefulShutdown(srv *httpserver.Server, cancelEvents context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		cancelEvents()
		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	pool := setupDB(cfg)
	defer pool.Close()

	profiles := database.NewProfileRepo(pool)
	proxies := database.NewProxyRepo(pool)
	assignments := database.NewAssignmentRepo(pool)

	store := procstore.NewFileStore(cfg.ProcessRegistryPath)
	workerHint := filepath.Base(cfg.WorkerBin)
	reg := registry.New(store, probe.New(), clock, workerHint)

	launcher := worker.NewLauncher(cfg.WorkerBin,
		worker.WithClock(clock),
		worker.WithDetach(cfg.DetachWorkers),
	)

	eventsCtx, cancelEvents := context.WithCancel(context.Background())
	go worker.LogEvents(eventsCtx, launcher.Events())

	svc := app.NewService(profiles, proxies, assignments, reg, launcher, app.Options{
		ProfilesDir:    cfg.ProfilesDir,
		ForceReprepare: cfg.ForceReprepare,
		ProxyUsername:  cfg.ProxyUsername,
		ProxyPassword:  cfg.ProxyPassword,
		ConfigJSON:     cfg.WorkerConfigJSON,
		AddonURL:       cfg.AddonURL,
		ExtraEnv:       cfg.WorkerExtraEnv,
	})

	healthChecks := []httpserver.HealthCheck{
		{Name: "postgres", Check: pool.Ping},
	}

	srv := httpserver.NewServer(cfg.Port, svc, healthChecks)

	done := runGracefulShutdown(srv, cancelEvents)

	if err := srv.Start(); err != nil {
		slog.Error("Server stopped", "error", err)
	}

	<-done
	slog.Info("Shutdown complete")
}
