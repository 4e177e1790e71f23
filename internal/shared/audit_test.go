package shared

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type execRecorder struct {
	args [][]any
}

func (e *execRecorder) Exec(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
	e.args = append(e.args, args)
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (e *execRecorder) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not supported")
}

func (e *execRecorder) QueryRow(context.Context, string, ...any) pgx.Row {
	return fakeRow{err: errors.New("not supported")}
}

func TestAuditLoggerResolvesActor(t *testing.T) {
	rec := &execRecorder{}
	logger := NewAuditLogger(rec)

	ctx := ContextWithPrincipal(context.Background(), Principal{AccountID: "admin-1", Role: RoleAdmin})
	require.NoError(t, logger.Record(ctx, AuditLog{Action: "quotation.delete", Entity: "quotation", EntityID: "QT-1001"}))
	require.NoError(t, logger.Record(context.Background(), AuditLog{Action: "catalog.replace", Entity: "catalog", EntityID: "1"}))

	require.Len(t, rec.args, 2)
	assert.Equal(t, "admin-1", rec.args[0][0])
	assert.Equal(t, []byte(`{}`), rec.args[0][4])
	assert.Nil(t, rec.args[0][5])
	assert.Equal(t, SystemActor, rec.args[1][0])
}

func TestAuditLoggerKeepsExplicitValues(t *testing.T) {
	rec := &execRecorder{}
	logger := NewAuditLogger(rec)
	at := time.Date(2026, 6, 1, 15, 0, 0, 0, time.FixedZone("IST", 19800))

	require.NoError(t, logger.Record(context.Background(), AuditLog{
		ActorID: "dealer-9", Action: "visit.create", Entity: "visit", EntityID: "v-1",
		Meta: map[string]any{"quotationId": "QT-1002"}, At: at,
	}))
	assert.Equal(t, "dealer-9", rec.args[0][0])
	assert.JSONEq(t, `{"quotationId":"QT-1002"}`, string(rec.args[0][4].([]byte)))
	stamped := rec.args[0][5].(*time.Time)
	assert.Equal(t, time.UTC, stamped.Location())
	assert.True(t, stamped.Equal(at))
}

func TestAuditLoggerRejectsIncompleteEntries(t *testing.T) {
	logger := NewAuditLogger(&execRecorder{})
	assert.Error(t, logger.Record(context.Background(), AuditLog{Action: "x", Entity: "quotation"}))

	var nilLogger *AuditLogger
	assert.Error(t, nilLogger.Record(context.Background(), AuditLog{Action: "x", Entity: "y", EntityID: "z"}))
}
