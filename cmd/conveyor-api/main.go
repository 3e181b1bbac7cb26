// Conveyor API — сервис оркестрации onboarding-цепочек.
//
// Один процесс: HTTP API (trigger + опрос статуса), executor цепочек,
// janitor реестра. События и архив включаются конфигурацией.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"conveyor/internal/api"
	"conveyor/internal/archive"
	"conveyor/internal/chain"
	"conveyor/internal/config"
	"conveyor/internal/events"
	"conveyor/internal/janitor"
	"conveyor/internal/tasks"
	"conveyor/internal/telemetry"
	"conveyor/internal/tracker"
)

func main() {
	// Локальный .env, если есть; окружение имеет приоритет
	_ = godotenv.Load()

	logger := telemetry.SetupLogger()
	logger.Info("starting conveyor-api")

	cfg := config.Load()

	registry := tracker.New()

	// События жизненного цикла — опциональный sink
	var publisher *events.Publisher
	if cfg.RabbitURL != "" {
		conn, err := events.Dial(cfg.RabbitURL, logger)
		if err != nil {
			logger.Warn("events disabled: broker unavailable", "error", err)
		} else {
			defer conn.Close()
			if err := events.SetupTopology(conn); err != nil {
				logger.Warn("events disabled: topology setup failed", "error", err)
			} else {
				publisher = events.NewPublisher(conn, logger)
			}
		}
	}

	// Архив финализированных chains — опциональный sink
	archiver := setupArchive(cfg, logger)

	executor := chain.New(chain.Config{
		Tracker: registry,
		Timeout: cfg.ChainTimeout,
		Logger:  logger,
		Events:  publisher,
		Archive: archiver,
	})

	blueprint := tasks.Onboarding(tasks.Config{
		SharedVPCStatusURL: cfg.SharedVPCStatusURL,
		VPCSCStatusURL:     cfg.VPCSCStatusURL,
		RetryInterval:      cfg.RetryInterval,
		MaxAttempts:        cfg.MaxAttempts,
	})
	if err := chain.ValidateSequence(blueprint); err != nil {
		logger.Error("invalid blueprint", "error", err)
		os.Exit(1)
	}

	handler := api.NewHandler(api.Config{
		Executor:  executor,
		Tracker:   registry,
		Blueprint: blueprint,
		Logger:    logger,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	jan, err := janitor.New(janitor.Config{
		Tracker:   registry,
		Retention: cfg.EvictRetention,
		Interval:  cfg.EvictInterval,
		CronExpr:  cfg.EvictCron,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("invalid janitor config", "error", err)
		os.Exit(1)
	}
	jan.Start(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		api.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", promhttp.Handler())
	handler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	// Выполняющиеся chains финализируются ошибкой отмены
	executor.Stop()

	logger.Info("stopped")
}

// setupArchive поднимает архив, если настроен DB_URL.
// В отличие от реестра архив вспомогательный: живём и без него.
func setupArchive(cfg config.Config, logger *slog.Logger) *archive.Archiver {
	if cfg.DBURL == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := archive.NewPool(ctx, cfg.DBURL)
	if err != nil {
		logger.Warn("archive disabled: database unavailable", "error", err)
		return nil
	}

	archiver := archive.New(pool, logger)
	if err := archiver.EnsureSchema(ctx); err != nil {
		logger.Warn("archive disabled: schema setup failed", "error", err)
		pool.Close()
		return nil
	}

	logger.Info("archive enabled")
	return archiver
}
