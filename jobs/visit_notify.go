package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/solarquote/solarquote/internal/accounts"
	jobmetrics "github.com/solarquote/solarquote/internal/jobs"
	"github.com/solarquote/solarquote/internal/platform/mail"
)

// AccountLookup resolves the dealer that owns a visit.
type AccountLookup interface {
	Get(ctx context.Context, id string) (*accounts.Account, error)
}

// VisitNotifyJob emails the owning dealer when a visit changes status.
type VisitNotifyJob struct {
	Accounts AccountLookup
	Mailer   Mailer
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

func NewVisitNotifyJob(accounts AccountLookup, mailer Mailer, logger *slog.Logger, metrics *jobmetrics.Metrics) *VisitNotifyJob {
	return &VisitNotifyJob{Accounts: accounts, Mailer: mailer, Logger: logger, Metrics: metrics}
}

func (j *VisitNotifyJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Accounts == nil || j.Mailer == nil {
		return errors.New("visit notify: handler not configured")
	}
	var payload VisitNotifyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("visit notify: decode payload: %v: %w", err, asynq.SkipRetry)
	}

	tracker := j.Metrics.Track(TaskTypeVisitNotify)
	defer func() { err = tracker.End(err) }()

	log := logger(j.Logger).With(
		slog.String("visit_id", payload.VisitID),
		slog.String("quotation_id", payload.QuotationID),
		slog.String("status", payload.Status),
	)

	dealer, err := j.Accounts.Get(ctx, payload.DealerID)
	if err != nil {
		return fmt.Errorf("visit notify: load dealer: %w", err)
	}
	to := dealer.Email()
	if to == "" {
		log.Info("dealer has no email, skipping visit notification")
		return nil
	}

	msg := mail.Message{
		To:      to,
		Subject: fmt.Sprintf("Site visit for %s is %s", payload.QuotationID, payload.Status),
		Body:    visitNotifyBody(dealer.DisplayName(), payload),
	}
	if err := j.Mailer.Send(ctx, msg); err != nil {
		return err
	}
	log.Info("visit notification sent")
	return nil
}

func visitNotifyBody(name string, p VisitNotifyPayload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", name)
	fmt.Fprintf(&b, "The site visit %s for quotation %s is now %s.\n", p.VisitID, p.QuotationID, p.Status)
	if !p.At.IsZero() {
		fmt.Fprintf(&b, "Updated at %s UTC.\n", p.At.UTC().Format("2006-01-02 15:04"))
	}
	return b.String()
}
