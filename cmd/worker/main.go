package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-build/internal/app"
	"github.com/odyssey-erp/odyssey-build/internal/audit"
	jobmetrics "github.com/odyssey-erp/odyssey-build/internal/jobs"
	"github.com/odyssey-erp/odyssey-build/internal/observability"
	"github.com/odyssey-erp/odyssey-build/internal/platform/blob"
	"github.com/odyssey-erp/odyssey-build/internal/platform/db"
	"github.com/odyssey-erp/odyssey-build/internal/shared"
	"github.com/odyssey-erp/odyssey-build/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PoolOptions())
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	store, err := blob.Open(ctx, blob.Driver(cfg.BlobDriver), cfg.BlobConfig())
	if err != nil {
		logger.Error("open blob store", slog.Any("error", err))
		os.Exit(1)
	}
	if store.Driver() == blob.DriverMemory {
		logger.Warn("audit archives use the in-memory blob store and will not survive a restart")
	}

	metrics := observability.NewMetrics()
	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())
	workflowMetrics := observability.NewWorkflowMetrics(metrics.Registerer())
	auditLogger := shared.NewAuditLogger(pool)
	auditService := audit.NewService(audit.NewRepository(pool), store, logger)

	stockAlertJob := jobs.NewStockAlertJob(auditLogger, logger, jobMetrics, workflowMetrics)
	archiveJob := jobs.NewAuditArchiveJob(auditService, logger, jobMetrics)

	archiveTask, err := jobs.NewAuditArchiveTask(time.Time{})
	if err != nil {
		logger.Error("build archive task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskStockAlert, Handler: stockAlertJob.Handle},
			{Type: jobs.TaskAuditArchive, Handler: archiveJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.AuditArchiveCron, Task: archiveTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error {
		defer cancel()
		if err := worker.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		logger.Info("worker metrics listening", slog.String("addr", cfg.WorkerMetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})
	if err := group.Wait(); err != nil {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
