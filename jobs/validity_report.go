package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/solarquote/solarquote/internal/jobs"
	"github.com/solarquote/solarquote/internal/sales/quotations"
)

// ValidityCounter counts quotations in a status whose validity has lapsed.
type ValidityCounter interface {
	CountPastValidity(ctx context.Context, status quotations.QuotationStatus) (int, error)
}

// ValidityReportJob publishes how many quotations outlived validUntil.
// Validity is informational, so nothing changes status here.
type ValidityReportJob struct {
	Quotations ValidityCounter
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
}

func NewValidityReportJob(counter ValidityCounter, logger *slog.Logger, metrics *jobmetrics.Metrics) *ValidityReportJob {
	return &ValidityReportJob{Quotations: counter, Logger: logger, Metrics: metrics}
}

func (j *ValidityReportJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Quotations == nil {
		return errors.New("validity report: handler not configured")
	}
	var payload ValidityReportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("validity report: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	status := quotations.QuotationStatus(payload.Status)
	if status == "" {
		status = quotations.QuotationStatusPending
	}
	if !status.Valid() {
		return fmt.Errorf("validity report: unknown status %q: %w", payload.Status, asynq.SkipRetry)
	}

	tracker := j.Metrics.Track(TaskTypeValidityReport)
	defer func() { err = tracker.End(err) }()

	n, err := j.Quotations.CountPastValidity(ctx, status)
	if err != nil {
		return fmt.Errorf("validity report: %w", err)
	}
	j.Metrics.SetExpiredQuotations(n)
	logger(j.Logger).Info("quotations past validity", slog.String("status", string(status)), slog.Int("count", n))
	return nil
}
