package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solarquote/solarquote/internal/platform/db"
	"github.com/solarquote/solarquote/internal/shared"
)

var (
	ErrNotFound      = errors.New("account not found")
	ErrAlreadyExists = errors.New("username already taken")
)

type Repository interface {
	Create(ctx context.Context, account Account) error
	Get(ctx context.Context, id string) (*Account, error)
	FindByUsername(ctx context.Context, realm Realm, username string) (*Account, error)
	ListByRole(ctx context.Context, role shared.Role, activeOnly bool) ([]Account, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetActive(ctx context.Context, id string, active bool) error
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

const selectAccount = `SELECT id, username, password_hash, role, is_active, profile, created_at, updated_at FROM accounts`

func (r *repository) Create(ctx context.Context, account Account) error {
	profile, err := encodeProfile(account)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO accounts (id, realm, username, password_hash, role, is_active, profile, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
		account.ID, RealmFor(account.Role), account.Username, account.PasswordHash, account.Role, account.IsActive, profile, account.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (r *repository) Get(ctx context.Context, id string) (*Account, error) {
	return scanAccount(r.db.QueryRow(ctx, selectAccount+` WHERE id = $1`, id))
}

func (r *repository) FindByUsername(ctx context.Context, realm Realm, username string) (*Account, error) {
	return scanAccount(r.db.QueryRow(ctx, selectAccount+` WHERE realm = $1 AND lower(username) = lower($2)`, realm, username))
}

func (r *repository) ListByRole(ctx context.Context, role shared.Role, activeOnly bool) ([]Account, error) {
	query := selectAccount + ` WHERE role = $1`
	if activeOnly {
		query += ` AND is_active`
	}
	query += ` ORDER BY username`
	rows, err := r.db.Query(ctx, query, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := make([]Account, 0)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

func (r *repository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	tag, err := r.db.Exec(ctx, `UPDATE accounts SET password_hash = $2, updated_at = $3 WHERE id = $1`, id, passwordHash, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) SetActive(ctx context.Context, id string, active bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE accounts SET is_active = $2, updated_at = $3 WHERE id = $1`, id, active, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAccount(row pgx.Row) (*Account, error) {
	var (
		a       Account
		role    string
		profile []byte
	)
	if err := row.Scan(&a.ID, &a.Username, &a.PasswordHash, &role, &a.IsActive, &profile, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	a.Role = shared.Role(role)
	if err := decodeProfile(&a, profile); err != nil {
		return nil, fmt.Errorf("decode profile %s: %w", a.ID, err)
	}
	return &a, nil
}

func encodeProfile(a Account) ([]byte, error) {
	switch a.Role {
	case shared.RoleAdmin, shared.RoleDealer:
		if a.Dealer == nil {
			return nil, errors.New("dealer profile required")
		}
		return json.Marshal(a.Dealer)
	case shared.RoleVisitor:
		if a.Visitor == nil {
			return nil, errors.New("visitor profile required")
		}
		return json.Marshal(a.Visitor)
	case shared.RoleAccountManager:
		if a.Manager == nil {
			return nil, errors.New("account manager profile required")
		}
		return json.Marshal(a.Manager)
	}
	return nil, fmt.Errorf("unknown role %q", a.Role)
}

func decodeProfile(a *Account, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	switch a.Role {
	case shared.RoleAdmin, shared.RoleDealer:
		a.Dealer = &DealerProfile{}
		return json.Unmarshal(data, a.Dealer)
	case shared.RoleVisitor:
		a.Visitor = &VisitorProfile{}
		return json.Unmarshal(data, a.Visitor)
	case shared.RoleAccountManager:
		a.Manager = &ManagerProfile{}
		return json.Unmarshal(data, a.Manager)
	}
	return fmt.Errorf("unknown role %q", a.Role)
}
