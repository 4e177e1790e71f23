package shared

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgx shared by pools and transactions.
type Querier interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// ApprovalLog is one status change of a record.
type ApprovalLog struct {
	ID         int64     `json:"id"`
	Module     string    `json:"module"`
	RefID      string    `json:"refId"`
	ActorID    string    `json:"actorId"`
	FromStatus string    `json:"fromStatus"`
	ToStatus   string    `json:"toStatus"`
	Note       string    `json:"note,omitempty"`
	At         time.Time `json:"at"`
}

// ApprovalRecorder persists status history.
type ApprovalRecorder struct {
	db     Querier
	logger *slog.Logger
}

// NewApprovalRecorder constructs ApprovalRecorder.
func NewApprovalRecorder(db Querier, logger *slog.Logger) *ApprovalRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &ApprovalRecorder{db: db, logger: logger}
}

// Record writes a history entry.
func (r *ApprovalRecorder) Record(ctx context.Context, log ApprovalLog) error {
	if r == nil {
		return errors.New("approval recorder not initialised")
	}
	switch {
	case log.Module == "":
		return errors.New("approval module required")
	case log.RefID == "":
		return errors.New("approval ref id required")
	case log.ActorID == "":
		return errors.New("approval actor required")
	case log.ToStatus == "":
		return errors.New("approval target status required")
	}
	var at *time.Time
	if !log.At.IsZero() {
		at = &log.At
	}
	_, err := r.db.Exec(ctx, `INSERT INTO approvals (module, ref_id, actor_id, from_status, to_status, note, at)
VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))`,
		log.Module, log.RefID, log.ActorID, log.FromStatus, log.ToStatus, log.Note, at)
	if err != nil {
		r.logger.Error("record approval", slog.String("ref_id", log.RefID), slog.Any("error", err))
		return err
	}
	return nil
}

// List returns history for module/ref, oldest first.
func (r *ApprovalRecorder) List(ctx context.Context, module, ref string) ([]ApprovalLog, error) {
	if r == nil {
		return nil, errors.New("approval recorder not initialised")
	}
	rows, err := r.db.Query(ctx, `SELECT id, module, ref_id, actor_id, from_status, to_status, note, at
FROM approvals WHERE module=$1 AND ref_id=$2 ORDER BY at ASC, id ASC`, module, ref)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	logs := make([]ApprovalLog, 0)
	for rows.Next() {
		var l ApprovalLog
		if err := rows.Scan(&l.ID, &l.Module, &l.RefID, &l.ActorID, &l.FromStatus, &l.ToStatus, &l.Note, &l.At); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}
