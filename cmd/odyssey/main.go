package main

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

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-build/cmd/odyssey/cli"
	"github.com/odyssey-erp/odyssey-build/internal/app"
	"github.com/odyssey-erp/odyssey-build/internal/audit"
	audithttp "github.com/odyssey-erp/odyssey-build/internal/audit/http"
	"github.com/odyssey-erp/odyssey-build/internal/finance"
	"github.com/odyssey-erp/odyssey-build/internal/inventory"
	jobmetrics "github.com/odyssey-erp/odyssey-build/internal/jobs"
	"github.com/odyssey-erp/odyssey-build/internal/observability"
	"github.com/odyssey-erp/odyssey-build/internal/platform/blob"
	"github.com/odyssey-erp/odyssey-build/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-build/internal/platform/db"
	"github.com/odyssey-erp/odyssey-build/internal/procurement"
	"github.com/odyssey-erp/odyssey-build/internal/shared"
	"github.com/odyssey-erp/odyssey-build/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	if len(os.Args) > 1 {
		if err := runCommand(ctx, cfg, logger, os.Args[1:]); err != nil {
			logger.Error("command failed", slog.String("command", os.Args[1]), slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	if err := serve(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PoolOptions())
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer dbpool.Close()

	if cfg.DBAutoMigrate {
		if err := db.Migrate(ctx, dbpool); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Info("schema migrated")
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	store, err := blob.Open(ctx, blob.Driver(cfg.BlobDriver), cfg.BlobConfig())
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}

	metrics := observability.NewMetrics()
	workflowMetrics := observability.NewWorkflowMetrics(metrics.Registerer())
	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobsClient := jobs.NewClient(redisOpts, jobMetrics)
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(redisClient, cfg.IdempotencyTTL)

	inventoryService := inventory.NewService(inventory.NewRepository(dbpool), auditLogger, jobsClient, logger)
	inventoryService.WithConflictRetries(cfg.ConflictRetries)
	financeService := finance.NewService(finance.NewRepository(dbpool), auditLogger, logger)
	procurementService := procurement.NewService(procurement.NewRepository(dbpool), auditLogger, idempotencyStore, procurement.ServiceConfig{
		Logger:          logger,
		Metrics:         workflowMetrics,
		Alerts:          jobsClient,
		ConflictRetries: cfg.ConflictRetries,
	})
	auditService := audit.NewService(audit.NewRepository(dbpool), store, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Metrics:            metrics,
		InventoryHandler:   inventory.NewHandler(logger, inventoryService),
		FinanceHandler:     finance.NewHandler(logger, financeService),
		ProcurementHandler: procurement.NewHandler(logger, procurementService),
		AuditHandler:       audithttp.NewHandler(logger, auditService, store),
		JobHandler:         jobs.NewHandler(inspector, logger),
		Readiness: map[string]app.ReadinessCheck{
			"postgres": dbpool.Ping,
			"redis": func(ctx context.Context) error {
				return cache.Ping(ctx, redisClient)
			},
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("http server starting", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down server")
		return server.Shutdown(shutdownCtx)
	})
	return group.Wait()
}

func runCommand(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) error {
	switch args[0] {
	case "migrate":
		pool, err := db.New(ctx, cfg.PGDSN, cfg.PoolOptions())
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := db.Migrate(ctx, pool); err != nil {
			return err
		}
		logger.Info("schema migrated")
		return nil
	case "jobs":
		return runJobs(ctx, cfg, logger, args[1:])
	default:
		return fmt.Errorf("unknown command %q (want migrate or jobs)", args[0])
	}
}

func runJobs(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: jobs trigger <task> [day] | jobs stats")
	}
	jobsCLI := cli.NewJobsCLI(cfg.RedisAddr)
	defer func() {
		if err := jobsCLI.Close(); err != nil {
			logger.Warn("jobs cli close", slog.Any("error", err))
		}
	}()

	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			return errors.New("usage: jobs trigger <task> [day]")
		}
		var day string
		if len(args) > 2 {
			day = args[2]
		}
		info, err := jobsCLI.Trigger(ctx, args[1], day)
		if err != nil {
			return err
		}
		logger.Info("task enqueued", slog.String("type", info.Type), slog.String("id", info.ID))
		return nil
	case "stats":
		stats, err := jobsCLI.InspectQueue(ctx)
		if err != nil {
			return err
		}
		logger.Info("queue stats",
			slog.String("queue", stats.Queue),
			slog.Int("pending", stats.Pending),
			slog.Int("active", stats.Active),
			slog.Int("scheduled", stats.Scheduled),
			slog.Int("retry", stats.Retry),
		)
		scheduled, err := jobsCLI.ListScheduled(ctx, 10)
		if err != nil {
			return err
		}
		for _, task := range scheduled {
			logger.Info("scheduled task", slog.String("type", task.Type), slog.Time("next", task.NextProcessAt))
		}
		return nil
	default:
		return fmt.Errorf("unknown jobs subcommand %q", args[0])
	}
}
