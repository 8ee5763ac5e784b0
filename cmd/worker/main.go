package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/returnsdesk/internal/app"
	"github.com/odyssey-erp/returnsdesk/internal/integrations/sheets"
	jobmetrics "github.com/odyssey-erp/returnsdesk/internal/jobs"
	"github.com/odyssey-erp/returnsdesk/internal/observability"
	"github.com/odyssey-erp/returnsdesk/internal/platform/db"
	"github.com/odyssey-erp/returnsdesk/internal/shared"
	"github.com/odyssey-erp/returnsdesk/jobs"
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
	metrics := observability.NewMetrics()
	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())

	gateway := sheets.NewClient(cfg.GatewayURL, cfg.GatewayTimeout).WithObserver(metrics)
	handlers := []jobs.TaskHandler{
		{Type: jobs.TaskInventorySync, Handler: jobs.NewInventorySyncJob(gateway, logger, jobMetrics).Handle},
	}

	var cron []jobs.CronRegistration
	if cfg.PGDSN != "" {
		pool, err := db.New(ctx, cfg.PGDSN, db.WithMaxConns(cfg.PGMaxConns))
		if err != nil {
			logger.Error("connect database", slog.Any("error", err))
			os.Exit(1)
		}
		defer pool.Close()

		pruneJob := jobs.NewAuditPruneJob(shared.NewAuditLogger(pool), logger, jobMetrics)
		handlers = append(handlers, jobs.TaskHandler{Type: jobs.TaskAuditPrune, Handler: pruneJob.Handle})

		pruneTask, err := jobs.NewAuditPruneTask(cfg.AuditRetention)
		if err != nil {
			logger.Error("build audit prune task", slog.Any("error", err))
			os.Exit(1)
		}
		cron = append(cron, jobs.CronRegistration{Spec: "30 3 * * *", Task: pruneTask, Options: []asynq.Option{asynq.MaxRetry(3)}})
	} else {
		logger.Info("PG_DSN not set, audit pruning disabled")
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB},
		Logger:    logger,
		Handlers:  handlers,
		Cron:      cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.WorkerMetricsAddr != "" {
		metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: metrics.Handler()}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("worker metrics server", slog.Any("error", err))
			}
		}()
		defer func() {
			_ = metricsServer.Close()
		}()
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
