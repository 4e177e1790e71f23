package shared

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/solarquote/solarquote/internal/platform/db"
)

// IdempotencyStore remembers which request keys have been processed and
// which record each produced.
type IdempotencyStore struct {
	db  Querier
	now func() time.Time
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(db Querier) *IdempotencyStore {
	return &IdempotencyStore{db: db, now: time.Now}
}

// Claim reserves key for module. When the key was already used, the
// reference recorded by Complete is returned with ok=false; a key that is
// claimed but not completed yields ErrIdempotencyInFlight.
func (s *IdempotencyStore) Claim(ctx context.Context, key, module string) (ref string, ok bool, err error) {
	if s == nil {
		return "", false, errors.New("idempotency store not initialised")
	}
	if key == "" || module == "" {
		return "", false, errors.New("idempotency key and module required")
	}
	_, err = s.db.Exec(ctx, `INSERT INTO idempotency_keys (key, module, created_at) VALUES ($1, $2, $3)`, key, module, s.now())
	if err == nil {
		return "", true, nil
	}
	if !db.IsUniqueViolation(err) {
		return "", false, err
	}
	var existing *string
	if err := s.db.QueryRow(ctx, `SELECT ref FROM idempotency_keys WHERE key=$1 AND module=$2`, key, module).Scan(&existing); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, ErrIdempotencyInFlight
		}
		return "", false, err
	}
	if existing == nil || *existing == "" {
		return "", false, ErrIdempotencyInFlight
	}
	return *existing, false, nil
}

// Complete records the reference produced for a claimed key.
func (s *IdempotencyStore) Complete(ctx context.Context, key, module, ref string) error {
	if s == nil {
		return nil
	}
	_, err := s.db.Exec(ctx, `UPDATE idempotency_keys SET ref=$3 WHERE key=$1 AND module=$2`, key, module, ref)
	return err
}

// Release removes a claim so the request can be retried after a failure.
func (s *IdempotencyStore) Release(ctx context.Context, key, module string) error {
	if s == nil {
		return nil
	}
	_, err := s.db.Exec(ctx, `DELETE FROM idempotency_keys WHERE key=$1 AND module=$2`, key, module)
	return err
}

// Cleanup removes entries older than retention.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	if s == nil {
		return 0, nil
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, s.now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
