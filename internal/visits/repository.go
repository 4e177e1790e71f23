package visits

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrStatusChanged = errors.New("visit status changed concurrently")
)

type Repository interface {
	Create(ctx context.Context, visit Visit) error
	Get(ctx context.Context, id string) (*Visit, error)
	ListForQuotation(ctx context.Context, quotationID string) ([]Visit, error)
	ListAssigned(ctx context.Context, req ListAssignedRequest) ([]Visit, error)
	Delete(ctx context.Context, id string) error
	// UpdateStatus moves the visit from one status to another only if it is
	// still in from, applying the column updates alongside.
	UpdateStatus(ctx context.Context, id string, from, to VisitStatus, updates map[string]interface{}) error
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db dbtx
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

func (r *repository) Create(ctx context.Context, v Visit) error {
	images, err := json.Marshal(v.Images)
	if err != nil {
		return err
	}
	visitors, err := json.Marshal(v.Visitors)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO visits (id, quotation_id, dealer_id, visit_date, visit_time, location,
			location_link, notes, status, images, visitors, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)`,
		v.ID, v.QuotationID, v.DealerID, v.Date, v.Time, v.Location,
		v.LocationLink, v.Notes, v.Status, images, visitors, v.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert visit: %w", err)
	}
	return nil
}

const selectVisit = `
	SELECT id, quotation_id, dealer_id, visit_date, visit_time, location, location_link, notes,
		status, feedback, rejection_reason, length_cm, width_cm, height_cm, images, visitors,
		created_at, updated_at
	FROM visits`

func (r *repository) Get(ctx context.Context, id string) (*Visit, error) {
	v, err := scanVisit(r.db.QueryRow(ctx, selectVisit+` WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *repository) ListForQuotation(ctx context.Context, quotationID string) ([]Visit, error) {
	return r.list(ctx, selectVisit+` WHERE quotation_id = $1 ORDER BY created_at`, quotationID)
}

func (r *repository) ListAssigned(ctx context.Context, req ListAssignedRequest) ([]Visit, error) {
	member, err := json.Marshal([]map[string]string{{"visitorId": req.VisitorID}})
	if err != nil {
		return nil, err
	}
	conditions := []string{"visitors @> $1::jsonb"}
	args := []interface{}{member}
	if req.Status != "" {
		conditions = append(conditions, "status = $2")
		args = append(args, req.Status)
	}
	query := selectVisit + ` WHERE ` + strings.Join(conditions, " AND ") + ` ORDER BY visit_date DESC, visit_time DESC`
	return r.list(ctx, query, args...)
}

func (r *repository) list(ctx context.Context, query string, args ...interface{}) ([]Visit, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	visits := make([]Visit, 0)
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, err
		}
		visits = append(visits, v)
	}
	return visits, rows.Err()
}

func (r *repository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM visits WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

var updatableColumns = map[string]struct{}{
	"feedback":         {},
	"rejection_reason": {},
	"notes":            {},
	"length_cm":        {},
	"width_cm":         {},
	"height_cm":        {},
	"images":           {},
}

func (r *repository) UpdateStatus(ctx context.Context, id string, from, to VisitStatus, updates map[string]interface{}) error {
	setClauses := []string{"status = $3", "updated_at = $4"}
	args := []interface{}{id, from, to, time.Now().UTC()}
	argPos := 5

	for col, val := range updates {
		if _, ok := updatableColumns[col]; !ok {
			return fmt.Errorf("visits: column %q is not updatable", col)
		}
		if col == "images" {
			encoded, err := json.Marshal(val)
			if err != nil {
				return err
			}
			val = encoded
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", col, argPos))
		args = append(args, val)
		argPos++
	}

	query := fmt.Sprintf("UPDATE visits SET %s WHERE id = $1 AND status = $2", strings.Join(setClauses, ", "))
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM visits WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrStatusChanged
	}
	return nil
}

func scanVisit(row pgx.Row) (Visit, error) {
	var (
		v        Visit
		status   string
		images   []byte
		visitors []byte
	)
	err := row.Scan(&v.ID, &v.QuotationID, &v.DealerID, &v.Date, &v.Time, &v.Location, &v.LocationLink, &v.Notes,
		&status, &v.Feedback, &v.RejectionReason, &v.Length, &v.Width, &v.Height, &images, &visitors,
		&v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Visit{}, ErrNotFound
		}
		return Visit{}, err
	}
	v.Status = VisitStatus(status)
	if err := json.Unmarshal(images, &v.Images); err != nil {
		return Visit{}, fmt.Errorf("decode images of visit %s: %w", v.ID, err)
	}
	if err := json.Unmarshal(visitors, &v.Visitors); err != nil {
		return Visit{}, fmt.Errorf("decode visitors of visit %s: %w", v.ID, err)
	}
	return v, nil
}
