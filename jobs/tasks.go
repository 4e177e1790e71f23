package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeVisitNotify announces a site-visit status change to the dealer.
	TaskTypeVisitNotify = "visit:notify"
	// TaskTypeValidityReport counts pending quotations past their validity.
	TaskTypeValidityReport = "quotation:validity-report"
	// TaskTypeIdempotencyCleanup prunes stale idempotency keys.
	TaskTypeIdempotencyCleanup = "idempotency:cleanup"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// VisitNotifyPayload identifies a visit transition.
type VisitNotifyPayload struct {
	VisitID     string    `json:"visitId"`
	QuotationID string    `json:"quotationId"`
	DealerID    string    `json:"dealerId"`
	Status      string    `json:"status"`
	ActorID     string    `json:"actorId"`
	At          time.Time `json:"at"`
}

// ValidityReportPayload configures the validity report.
type ValidityReportPayload struct {
	Status string `json:"status"`
}

// IdempotencyCleanupPayload configures key pruning.
type IdempotencyCleanupPayload struct {
	OlderThanHours int `json:"olderThanHours"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	return newTask(TaskTypeSendEmail, payload)
}

// NewVisitNotifyTask constructs a visit notification task.
func NewVisitNotifyTask(payload VisitNotifyPayload) (*asynq.Task, error) {
	return newTask(TaskTypeVisitNotify, payload)
}

// NewValidityReportTask constructs the scheduled validity report task.
func NewValidityReportTask(status string) (*asynq.Task, error) {
	if status == "" {
		status = "pending"
	}
	return newTask(TaskTypeValidityReport, ValidityReportPayload{Status: status})
}

// NewIdempotencyCleanupTask constructs the scheduled cleanup task.
func NewIdempotencyCleanupTask(olderThan time.Duration) (*asynq.Task, error) {
	hours := int(olderThan / time.Hour)
	if hours <= 0 {
		hours = 24
	}
	return newTask(TaskTypeIdempotencyCleanup, IdempotencyCleanupPayload{OlderThanHours: hours})
}

func newTask(typ string, payload any) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(typ, data), nil
}
