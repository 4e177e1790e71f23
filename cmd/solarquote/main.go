package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/solarquote/solarquote/cmd/solarquote/cli"
	"github.com/solarquote/solarquote/internal/accounts"
	"github.com/solarquote/solarquote/internal/app"
	"github.com/solarquote/solarquote/internal/audit"
	"github.com/solarquote/solarquote/internal/auth"
	"github.com/solarquote/solarquote/internal/catalog"
	"github.com/solarquote/solarquote/internal/observability"
	"github.com/solarquote/solarquote/internal/payments"
	"github.com/solarquote/solarquote/internal/platform/cache"
	"github.com/solarquote/solarquote/internal/platform/db"
	"github.com/solarquote/solarquote/internal/platform/storage"
	"github.com/solarquote/solarquote/internal/rbac"
	"github.com/solarquote/solarquote/internal/sales/customers"
	"github.com/solarquote/solarquote/internal/sales/quotations"
	"github.com/solarquote/solarquote/internal/shared"
	"github.com/solarquote/solarquote/internal/visits"
	"github.com/solarquote/solarquote/jobs"
	"github.com/solarquote/solarquote/migrations"
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
		os.Exit(runJobs(ctx, cfg, os.Args[2:]))
	}

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	if cfg.AutoMigrate || (len(os.Args) > 1 && os.Args[1] == "migrate") {
		if _, err := db.NewMigrator(dbpool, migrations.Files, logger).Up(ctx); err != nil {
			logger.Error("migrate", slog.Any("error", err))
			os.Exit(1)
		}
		if len(os.Args) > 1 && os.Args[1] == "migrate" {
			return
		}
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	imageStore, err := storage.NewS3Store(ctx, storage.Options{
		Bucket:        cfg.S3Bucket,
		Region:        cfg.S3Region,
		Endpoint:      cfg.S3Endpoint,
		PublicBaseURL: cfg.S3PublicBaseURL,
		AccessKey:     cfg.S3AccessKey,
		SecretKey:     cfg.S3SecretKey,
	})
	if err != nil {
		logger.Error("init object storage", slog.Any("error", err))
		os.Exit(1)
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobsClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
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

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	sessionManager := shared.NewSessionManager(redisClient, cfg.RefreshTokenTTL)

	rbacService := rbac.NewService(nil)
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger}

	accountService := accounts.NewService(accounts.NewRepository(dbpool), auditLogger, logger).WithSessions(sessionManager)
	if cfg.BootstrapAdminUsername != "" {
		if err := accountService.EnsureAdmin(ctx, cfg.BootstrapAdminUsername, cfg.BootstrapAdminPassword); err != nil {
			logger.Error("bootstrap admin", slog.Any("error", err))
			os.Exit(1)
		}
	}

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTokenTTL)
	authService := auth.NewService(accountService, sessionManager, tokens, redisClient, jobsClient, auth.Config{
		ResetTokenTTL:    cfg.ResetTokenTTL,
		PasswordResetURL: cfg.PasswordResetURL,
	}, logger)

	catalogService := catalog.NewService(catalog.NewRepository(dbpool), cache.NewJSON(redisClient, "catalog:"), cfg.CatalogCacheTTL, auditLogger, logger)
	customerService := customers.NewService(customers.NewRepository(dbpool))

	quotationService := quotations.NewService(quotations.Deps{
		Repo:        quotations.NewRepository(dbpool),
		Customers:   customerService,
		Catalog:     catalogService,
		Accounts:    accountService,
		Idempotency: idempotencyStore,
		Audit:       auditLogger,
		Metrics:     metrics,
		Validity:    cfg.QuotationValidity,
		Logger:      logger,
	})

	visitService := visits.NewService(visits.Deps{
		Repo:       visits.NewRepository(dbpool),
		Quotations: quotationService,
		Visitors:   accountService,
		Images:     imageStore,
		Notifier:   jobsClient,
		Audit:      auditLogger,
		Metrics:    metrics,
		Logger:     logger,
	})

	paymentService := payments.NewService(quotationService)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		AuthHandler:        auth.NewHandler(logger, authService),
		AccountsHandler:    accounts.NewHandler(logger, accountService, rbacMiddleware),
		CatalogHandler:     catalog.NewHandler(logger, catalogService, rbacMiddleware),
		CustomersHandler:   customers.NewHandler(logger, customerService, rbacMiddleware),
		QuotationsHandler:  quotations.NewHandler(logger, quotationService, rbacMiddleware),
		VisitsHandler:      visits.NewHandler(logger, visitService, rbacMiddleware),
		PaymentsHandler:    payments.NewHandler(logger, paymentService, rbacMiddleware),
		PermissionsHandler: rbac.NewPermissionsHandler(rbacService),
		JobHandler:         jobs.NewHandler(inspector, logger),
		AuditHandler:       audit.NewHandler(logger, audit.NewService(audit.NewRepository(dbpool)), rbacMiddleware),
		RBACMiddleware:     rbacMiddleware,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

// runJobs handles "solarquote jobs trigger <task>" and "solarquote jobs stats".
func runJobs(ctx context.Context, cfg *app.Config, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: solarquote jobs trigger <task-type> | stats")
		return 2
	}
	jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer jobsCLI.Close()

	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: solarquote jobs trigger <task-type>")
			return 2
		}
		info, err := jobsCLI.Trigger(ctx, args[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Printf("enqueued %s as %s on %s\n", info.Type, info.ID, info.Queue)
	case "stats":
		stats, err := jobsCLI.InspectQueue(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		scheduled, err := jobsCLI.ListScheduled(ctx, 10)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		out := struct {
			cli.QueueStats
			Upcoming []string `json:"upcoming"`
		}{QueueStats: stats}
		for _, task := range scheduled {
			out.Upcoming = append(out.Upcoming, task.Type+" "+task.NextProcessAt.UTC().Format(time.RFC3339))
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown jobs command %q\n", args[0])
		return 2
	}
	return 0
}
