package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/solarquote/solarquote/internal/jobs"
	"github.com/solarquote/solarquote/internal/platform/mail"
)

// Mailer delivers a rendered message.
type Mailer interface {
	Send(ctx context.Context, msg mail.Message) error
}

// SendEmailJob delivers queued transactional email.
type SendEmailJob struct {
	Mailer  Mailer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

func NewSendEmailJob(mailer Mailer, logger *slog.Logger, metrics *jobmetrics.Metrics) *SendEmailJob {
	return &SendEmailJob{Mailer: mailer, Logger: logger, Metrics: metrics}
}

func (j *SendEmailJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Mailer == nil {
		return errors.New("send email: handler not configured")
	}
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("send email: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.To == "" {
		return fmt.Errorf("send email: recipient missing: %w", asynq.SkipRetry)
	}

	tracker := j.Metrics.Track(TaskTypeSendEmail)
	defer func() { err = tracker.End(err) }()

	if err := j.Mailer.Send(ctx, mail.Message{To: payload.To, Subject: payload.Subject, Body: payload.Body}); err != nil {
		logger(j.Logger).Warn("send email failed", slog.String("subject", payload.Subject), slog.Any("error", err))
		return err
	}
	logger(j.Logger).Info("email sent", slog.String("subject", payload.Subject))
	return nil
}

func logger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
