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
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/returnsdesk/cmd/returnsdesk/cli"
	"github.com/odyssey-erp/returnsdesk/internal/api"
	"github.com/odyssey-erp/returnsdesk/internal/app"
	"github.com/odyssey-erp/returnsdesk/internal/auth"
	"github.com/odyssey-erp/returnsdesk/internal/integrations/sheets"
	"github.com/odyssey-erp/returnsdesk/internal/integrations/shipstation"
	"github.com/odyssey-erp/returnsdesk/internal/observability"
	"github.com/odyssey-erp/returnsdesk/internal/platform/cache"
	"github.com/odyssey-erp/returnsdesk/internal/platform/db"
	"github.com/odyssey-erp/returnsdesk/internal/returns"
	returnshttp "github.com/odyssey-erp/returnsdesk/internal/returns/http"
	"github.com/odyssey-erp/returnsdesk/internal/shared"
	"github.com/odyssey-erp/returnsdesk/internal/view"
	"github.com/odyssey-erp/returnsdesk/jobs"
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

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		if err := runJobsCommand(ctx, cfg, os.Args[2:]); err != nil {
			logger.Error("jobs command", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cache.WithDB(cfg.RedisDB), cache.WithPoolSize(cfg.RedisPoolSize))
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	var dbpool *pgxpool.Pool
	if cfg.PGDSN != "" {
		dbpool, err = db.New(ctx, cfg.PGDSN, db.WithMaxConns(cfg.PGMaxConns))
		if err != nil {
			logger.Error("connect postgres", slog.Any("error", err))
			os.Exit(1)
		}
		defer dbpool.Close()
		if err := db.ApplySchema(ctx, dbpool, shared.AuditSchema...); err != nil {
			logger.Error("apply audit schema", slog.Any("error", err))
			os.Exit(1)
		}
	} else {
		logger.Info("PG_DSN not set, audit trail disabled")
	}

	metrics := observability.NewMetrics()

	sessionManager := shared.NewSessionManager(redisClient, shared.SessionOptions{
		CookieName: "returnsdesk_session",
		Secret:     cfg.SessionSecret,
		TTL:        cfg.SessionTTL,
		Secure:     cfg.IsProduction(),
	})
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	gateway := sheets.NewClient(cfg.GatewayURL, cfg.GatewayTimeout).WithObserver(metrics)
	shipments := shipstation.NewClient(shipstation.Config{
		BaseURL:   cfg.ShipStationURL,
		APIKey:    cfg.ShipStationAPIKey,
		APISecret: cfg.ShipStationAPISecret,
		Timeout:   cfg.GatewayTimeout,
	}, gateway)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	desk := returns.NewDesk(gateway, cfg.PricingPolicy())
	returnsService := returns.NewService(desk, returns.NewRedisStore(redisClient, cfg.SessionTTL), gateway, logger)
	returnsService.SetSubmitGuard(shared.NewSubmitGuard(redisClient, cfg.DrainGuardWindow))
	returnsService.SetSyncQueue(jobClient)
	if dbpool != nil {
		returnsService.SetAuditRecorder(shared.NewAuditLogger(dbpool))
	}
	sessionManager.OnDestroy(func(ctx context.Context, sessionID string) {
		if err := returnsService.Reset(ctx, sessionID); err != nil {
			logger.Warn("drop desk state", slog.String("session", sessionID), slog.Any("error", err))
		}
	})

	authService := auth.NewService(cfg.OperatorPasswordHash)
	if !authService.Enabled() {
		logger.Warn("OPERATOR_PASSWORD_HASH not set, desk is open to anyone who can reach it")
	}

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		SessionManager:    sessionManager,
		CSRFManager:       csrfManager,
		AuthHandler:       auth.NewHandler(logger, authService, templates, sessionManager, csrfManager),
		ReturnsHandler:    returnshttp.NewHandler(logger, returnsService, templates, csrfManager),
		ReturnsAPIHandler: returnshttp.NewAPIHandler(logger, returnsService, csrfManager),
		APIHandler:        api.NewHandler(logger, gateway, shipments),
		JobHandler:        jobs.NewHandler(inspector, logger),
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("returns desk listening", slog.String("addr", cfg.AppAddr), slog.String("gateway", cfg.GatewayURL))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

// runJobsCommand handles `returnsdesk jobs stats|archived|prune`.
func runJobsCommand(ctx context.Context, cfg *app.Config, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: returnsdesk jobs stats|archived|prune")
	}
	jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer func() {
		_ = jobsCLI.Close()
	}()

	switch args[0] {
	case "stats":
		stats, err := jobsCLI.InspectQueue(ctx)
		if err != nil {
			return err
		}
		fmt.Println(stats)
	case "archived":
		tasks, err := jobsCLI.ListArchived(ctx, 20)
		if err != nil {
			return err
		}
		for _, task := range tasks {
			fmt.Printf("%s\t%s\t%s\n", task.ID, task.Type, task.LastErr)
		}
	case "prune":
		info, err := jobsCLI.Trigger(ctx, jobs.TaskAuditPrune, cfg.AuditRetention)
		if err != nil {
			return err
		}
		fmt.Printf("enqueued %s as %s\n", jobs.TaskAuditPrune, info.ID)
	default:
		return fmt.Errorf("unknown jobs command %q", args[0])
	}
	return nil
}
