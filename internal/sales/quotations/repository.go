package quotations

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

	"github.com/solarquote/solarquote/internal/platform/db"
	"github.com/solarquote/solarquote/internal/sales/customers"
	"github.com/solarquote/solarquote/internal/shared"
)

var ErrNotFound = errors.New("record not found")

const historyModule = "quotation"

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	NextID(ctx context.Context) (string, error)
	Create(ctx context.Context, quotation Quotation) error
	Get(ctx context.Context, id string) (*Quotation, error)
	List(ctx context.Context, req ListQuotationsRequest) ([]Quotation, int, error)
	Save(ctx context.Context, quotation Quotation) error
	UpdateStatus(ctx context.Context, id string, status QuotationStatus, at time.Time) error
	Delete(ctx context.Context, id string) error
	RecordHistory(ctx context.Context, entry shared.ApprovalLog) error
	History(ctx context.Context, id string) ([]shared.ApprovalLog, error)
	CountPastValidity(ctx context.Context, status QuotationStatus, now time.Time) (int, error)
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

func (r *repository) NextID(ctx context.Context) (string, error) {
	var seq int64
	if err := r.db.QueryRow(ctx, `SELECT nextval('quotation_number_seq')`).Scan(&seq); err != nil {
		return "", fmt.Errorf("next quotation number: %w", err)
	}
	return fmt.Sprintf("QT-%d", seq), nil
}

func (r *repository) Create(ctx context.Context, q Quotation) error {
	products, err := json.Marshal(q.Products)
	if err != nil {
		return err
	}
	sources, err := json.Marshal(q.PricingSources)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO quotations (id, customer_id, dealer_id, products, discount,
			subtotal, central_subsidy, state_subsidy, total_subsidy, amount_after_subsidy,
			discount_amount, total_amount, final_amount, pricing_sources, status,
			created_at, valid_until, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $16)`,
		q.ID, q.CustomerID, q.DealerID, products, q.Discount,
		q.Subtotal, q.CentralSubsidy, q.StateSubsidy, q.TotalSubsidy, q.AmountAfterSubsidy,
		q.DiscountAmount, q.TotalAmount, q.FinalAmount, sources, q.Status,
		q.CreatedAt, q.ValidUntil)
	if err != nil {
		return fmt.Errorf("insert quotation: %w", err)
	}
	return nil
}

const selectQuotation = `
	SELECT q.id, q.customer_id, q.dealer_id, q.products, q.discount,
		q.subtotal, q.central_subsidy, q.state_subsidy, q.total_subsidy, q.amount_after_subsidy,
		q.discount_amount, q.total_amount, q.final_amount, q.pricing_sources, q.status,
		q.created_at, q.valid_until, q.updated_at,
		c.dealer_id, c.first_name, c.last_name, c.mobile, c.email, c.street, c.city, c.state, c.pincode,
		c.created_at, c.updated_at
	FROM quotations q
	JOIN customers c ON c.id = q.customer_id`

func (r *repository) Get(ctx context.Context, id string) (*Quotation, error) {
	q, err := scanQuotation(r.db.QueryRow(ctx, selectQuotation+` WHERE q.id = $1`, id))
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *repository) List(ctx context.Context, req ListQuotationsRequest) ([]Quotation, int, error) {
	var conditions []string
	var args []interface{}
	argPos := 1

	if req.DealerID != "" {
		conditions = append(conditions, fmt.Sprintf("q.dealer_id = $%d", argPos))
		args = append(args, req.DealerID)
		argPos++
	}
	if req.Status != "" {
		conditions = append(conditions, fmt.Sprintf("q.status = $%d", argPos))
		args = append(args, req.Status)
		argPos++
	}
	if req.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(q.id ILIKE $%d OR c.first_name ILIKE $%d OR c.last_name ILIKE $%d OR c.mobile ILIKE $%d)", argPos, argPos, argPos, argPos))
		args = append(args, "%"+req.Search+"%")
		argPos++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM quotations q JOIN customers c ON c.id = q.customer_id` + whereClause
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := selectQuotation + whereClause + ` ORDER BY q.created_at DESC, q.id DESC`
	if req.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argPos, argPos+1)
		args = append(args, req.Limit, req.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	quotations := make([]Quotation, 0)
	for rows.Next() {
		q, err := scanQuotation(rows)
		if err != nil {
			return nil, 0, err
		}
		quotations = append(quotations, q)
	}
	return quotations, total, rows.Err()
}

func (r *repository) Save(ctx context.Context, q Quotation) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE quotations SET dealer_id = $2, discount = $3,
			subtotal = $4, central_subsidy = $5, state_subsidy = $6, total_subsidy = $7,
			amount_after_subsidy = $8, discount_amount = $9, total_amount = $10, final_amount = $11,
			updated_at = $12
		WHERE id = $1`,
		q.ID, q.DealerID, q.Discount,
		q.Subtotal, q.CentralSubsidy, q.StateSubsidy, q.TotalSubsidy,
		q.AmountAfterSubsidy, q.DiscountAmount, q.TotalAmount, q.FinalAmount,
		q.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) UpdateStatus(ctx context.Context, id string, status QuotationStatus, at time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE quotations SET status = $2, updated_at = $3 WHERE id = $1`, id, status, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM quotations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) RecordHistory(ctx context.Context, entry shared.ApprovalLog) error {
	entry.Module = historyModule
	return shared.NewApprovalRecorder(r.db, nil).Record(ctx, entry)
}

func (r *repository) History(ctx context.Context, id string) ([]shared.ApprovalLog, error) {
	return shared.NewApprovalRecorder(r.db, nil).List(ctx, historyModule, id)
}

func (r *repository) CountPastValidity(ctx context.Context, status QuotationStatus, now time.Time) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM quotations WHERE status = $1 AND valid_until < $2`, status, now).Scan(&n)
	return n, err
}

func scanQuotation(row pgx.Row) (Quotation, error) {
	var (
		q        Quotation
		c        customers.Customer
		products []byte
		sources  []byte
		status   string
	)
	err := row.Scan(&q.ID, &q.CustomerID, &q.DealerID, &products, &q.Discount,
		&q.Subtotal, &q.CentralSubsidy, &q.StateSubsidy, &q.TotalSubsidy, &q.AmountAfterSubsidy,
		&q.DiscountAmount, &q.TotalAmount, &q.FinalAmount, &sources, &status,
		&q.CreatedAt, &q.ValidUntil, &q.UpdatedAt,
		&c.DealerID, &c.FirstName, &c.LastName, &c.Mobile, &c.Email,
		&c.Address.Street, &c.Address.City, &c.Address.State, &c.Address.Pincode,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Quotation{}, ErrNotFound
		}
		return Quotation{}, err
	}
	q.Status = QuotationStatus(status)
	if err := json.Unmarshal(products, &q.Products); err != nil {
		return Quotation{}, fmt.Errorf("decode products of %s: %w", q.ID, err)
	}
	if len(sources) > 0 {
		if err := json.Unmarshal(sources, &q.PricingSources); err != nil {
			return Quotation{}, fmt.Errorf("decode pricing sources of %s: %w", q.ID, err)
		}
	}
	c.ID = q.CustomerID
	q.Customer = &c
	return q, nil
}
