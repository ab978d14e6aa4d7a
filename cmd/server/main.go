package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/levanminh/xlmigrate/internal/config"
	"github.com/levanminh/xlmigrate/internal/executor"
	"github.com/levanminh/xlmigrate/internal/httpapi"
	"github.com/levanminh/xlmigrate/internal/logging"
	"github.com/levanminh/xlmigrate/internal/orchestrator"
	"github.com/levanminh/xlmigrate/internal/ratelimit"
	"github.com/levanminh/xlmigrate/internal/staging"
	"github.com/levanminh/xlmigrate/internal/xlsx"
)

func main() {
	if err := godotenv.Overload(); err != nil {
		log.Println("no .env file found, using environment variables")
	}

	cfg := config.MustLoad()
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx := context.Background()

	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		slog.Error("invalid database url", "error", err)
		os.Exit(1)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxConns)
	poolCfg.MinConns = int32(cfg.Database.MinConns)
	poolCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	if err := staging.Migrate(ctx, pool); err != nil {
		slog.Error("failed to migrate staging schema", "error", err)
		os.Exit(1)
	}
	if _, err := pool.Exec(ctx, donViSchemaDDL); err != nil {
		slog.Error("failed to migrate example domain schema", "error", err)
		os.Exit(1)
	}

	store := staging.New(pool)

	orc, err := orchestrator.New(store, pool, orchestrator.Config{
		MaxConcurrentSheets: cfg.Migration.MaxConcurrentSheets,
		PhaseTimeout:        cfg.Migration.TimeoutPerPhase,
		IngestBatchSize:     cfg.Migration.BatchSize,
		Limits:              xlsx.Limits{MaxRows: cfg.Migration.MaxRows, MaxCells: cfg.Migration.MaxCells},
	}, orchestrator.Deps[donViRow]{
		SheetName:    "DonVi",
		Validator:    donViValidator(),
		DuplicateKey: donViDupKey,
		Targets:      []orchestrator.Target[donViRow]{donViTarget()},
		ExecutorConfig: executor.Config{
			MaxConcurrentBatches: cfg.Migration.MaxConcurrentBatches,
			Strategy:             executor.BoundedParallel,
			Retry: executor.RetryConfig{
				MaxAttempts:  cfg.Migration.RetryMaxAttempts,
				InitialDelay: cfg.Migration.RetryInitialDelay,
				Multiplier:   cfg.Migration.RetryMultiplier,
				MaxDelay:     cfg.Migration.RetryMaxDelay,
			},
			Circuit: executor.CircuitConfig{
				WindowSize:           cfg.Migration.CircuitWindowSize,
				FailureRateThreshold: cfg.Migration.CircuitFailureRateThreshold,
				OpenDuration:         cfg.Migration.CircuitOpenDuration,
			},
			SinkTimeout:          cfg.Migration.SinkTimeout,
			ShutdownDrainTimeout: cfg.Migration.ShutdownDrainTimeout,
		},
	})
	if err != nil {
		slog.Error("failed to build orchestrator", "error", err)
		os.Exit(1)
	}

	limiter := ratelimit.New(cfg.Rate.StartsPerMinute)
	limiter.Start()
	defer limiter.Stop()

	handler := httpapi.NewHandler[donViRow](orc, store, limiter, httpapi.Config{
		UploadDir:      cfg.Upload.Dir,
		MaxUploadBytes: cfg.Upload.MaxFileSize,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	reaperCtx, stopReaper := context.WithCancel(context.Background())
	go orc.RunStaleReaper(reaperCtx, orchestrator.StaleReaperConfig{
		CheckInterval: cfg.Migration.ReaperInterval,
		StaleAfter:    cfg.Migration.TimeoutPerPhase,
	})

	idleConnsClosed := make(chan struct{})
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutdown signal received")
		stopReaper()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		close(idleConnsClosed)
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	<-idleConnsClosed
	slog.Info("server stopped")
}
