package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/photovault/media-pipeline/pkg/mediapipeline/config"
	"github.com/photovault/media-pipeline/pkg/mediapipeline/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load(config.WithEnv())
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := cfg.BuildLogger()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m := metrics.New(registry)

	primary, err := cfg.BuildPrimaryStore()
	if err != nil {
		logger.Fatal("failed to initialize primary storage", zap.Error(err))
	}
	backupStore, err := cfg.BuildBackupStore()
	if err != nil {
		logger.Fatal("failed to initialize backup storage", zap.Error(err))
	}

	gateway, err := cfg.BuildGateway(primary, logger)
	if err != nil {
		logger.Fatal("failed to create storage gateway", zap.Error(err))
	}

	assets, err := cfg.BuildAssetStore(ctx)
	if err != nil {
		logger.Fatal("failed to initialize asset store", zap.Error(err))
	}

	dispatcher, err := cfg.BuildDispatcher(gateway, assets, logger, m)
	if err != nil {
		logger.Fatal("failed to create event dispatcher", zap.Error(err))
	}
	defer dispatcher.Close()

	replicator := cfg.BuildReplicator(primary, backupStore, logger, m)

	// A backup run can be triggered by the schedule or by hand; runBackup
	// rejects overlapping runs.
	var backupRunning atomic.Bool
	runBackup := func(ctx context.Context) any {
		if !backupRunning.CompareAndSwap(false, true) {
			logger.Warn("backup already in progress, skipping run")
			return map[string]string{"status": "ALREADY_RUNNING"}
		}
		defer backupRunning.Store(false)
		return replicator.Run(ctx)
	}

	// Scheduled runs inherit the signal context so shutdown cancels an
	// in-flight backup.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Backup.Schedule, func() {
		runBackup(ctx)
	}); err != nil {
		logger.Fatal("invalid backup schedule",
			zap.String("schedule", cfg.Backup.Schedule), zap.Error(err))
	}
	scheduler.Start()
	defer scheduler.Stop()

	go func() {
		if err := dispatcher.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("dispatcher stopped", zap.Error(err))
		}
	}()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	r.Post("/backup/run", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, runBackup(r.Context()))
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		logger.Info("worker listening",
			zap.String("port", cfg.Port),
			zap.String("environment", cfg.Environment),
			zap.Strings("kafka_brokers", cfg.Kafka.Brokers),
			zap.String("backup_schedule", cfg.Backup.Schedule))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
}
