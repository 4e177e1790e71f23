package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solarquote/solarquote/internal/pricing"
)

// ErrNotFound is returned when no catalog has been stored yet.
var ErrNotFound = errors.New("catalog not found")

// Repository persists the single active catalog.
type Repository interface {
	Load(ctx context.Context) (pricing.Catalog, error)
	Save(ctx context.Context, catalog pricing.Catalog, actorID string) error
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db dbtx
}

// NewRepository returns a Postgres-backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

func (r *repository) Load(ctx context.Context) (pricing.Catalog, error) {
	var (
		raw       []byte
		updatedAt time.Time
	)
	err := r.db.QueryRow(ctx, `SELECT data, updated_at FROM product_catalog WHERE id = 1`).Scan(&raw, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pricing.Catalog{}, ErrNotFound
		}
		return pricing.Catalog{}, err
	}
	var c pricing.Catalog
	if err := json.Unmarshal(raw, &c); err != nil {
		return pricing.Catalog{}, fmt.Errorf("decode catalog: %w", err)
	}
	c.UpdatedAt = updatedAt
	return c, nil
}

func (r *repository) Save(ctx context.Context, c pricing.Catalog, actorID string) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO product_catalog (id, data, updated_by, updated_at)
VALUES (1, $1, $2, $3)
ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at`,
		raw, actorID, c.UpdatedAt)
	return err
}
