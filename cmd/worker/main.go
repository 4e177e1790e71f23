package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/solarquote/solarquote/internal/accounts"
	"github.com/solarquote/solarquote/internal/app"
	jobmetrics "github.com/solarquote/solarquote/internal/jobs"
	"github.com/solarquote/solarquote/internal/platform/db"
	"github.com/solarquote/solarquote/internal/platform/mail"
	"github.com/solarquote/solarquote/internal/sales/quotations"
	"github.com/solarquote/solarquote/internal/shared"
	"github.com/solarquote/solarquote/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	mailer, err := newMailer(cfg, logger)
	if err != nil {
		logger.Error("init mailer", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := jobmetrics.NewMetrics(nil)

	accountService := accounts.NewService(accounts.NewRepository(pool), nil, logger)
	quotationService := quotations.NewService(quotations.Deps{
		Repo:     quotations.NewRepository(pool),
		Validity: cfg.QuotationValidity,
		Logger:   logger,
	})
	idempotencyStore := shared.NewIdempotencyStore(pool)

	sendEmailJob := jobs.NewSendEmailJob(mailer, logger, metrics)
	visitNotifyJob := jobs.NewVisitNotifyJob(accountService, mailer, logger, metrics)
	validityJob := jobs.NewValidityReportJob(quotationService, logger, metrics)
	cleanupJob := jobs.NewIdempotencyCleanupJob(idempotencyStore, logger, metrics)

	validityTask, err := jobs.NewValidityReportTask(string(quotations.QuotationStatusPending))
	if err != nil {
		logger.Error("build validity report task", slog.Any("error", err))
		os.Exit(1)
	}
	cleanupTask, err := jobs.NewIdempotencyCleanupTask(24 * time.Hour)
	if err != nil {
		logger.Error("build idempotency cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeSendEmail, Handler: sendEmailJob.Handle},
			{Type: jobs.TaskTypeVisitNotify, Handler: visitNotifyJob.Handle},
			{Type: jobs.TaskTypeValidityReport, Handler: validityJob.Handle},
			{Type: jobs.TaskTypeIdempotencyCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "*/15 * * * *", Task: validityTask, Options: []asynq.Option{asynq.Queue(jobs.QueueDefault), asynq.MaxRetry(3)}},
			{Spec: "0 3 * * *", Task: cleanupTask, Options: []asynq.Option{asynq.Queue(jobs.QueueDefault), asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func newMailer(cfg *app.Config, logger *slog.Logger) (jobs.Mailer, error) {
	if cfg.SMTPHost == "" {
		logger.Warn("SMTP_HOST not set, mail will only be logged")
		return mail.LogMailer{Logger: logger}, nil
	}
	return mail.NewSMTPMailer(mail.Options{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
	})
}
