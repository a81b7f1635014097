package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundops/cnpipe/internal/model"
)

// newMockPostgresLedger creates a PostgresLedger backed by pgxmock for unit
// testing.
func newMockPostgresLedger(t *testing.T) (*PostgresLedger, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	l := &PostgresLedger{pool: mock}
	return l, mock
}

func TestPostgres_Append(t *testing.T) {
	l, mock := newMockPostgresLedger(t)

	mock.ExpectQuery(`INSERT INTO entries`).
		WithArgs("downloads/a.pdf", "OP-1001", `["pw1","pw2"]`, "pending", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))

	entry, err := l.Append(context.Background(), "downloads/a.pdf", "OP-1001", []string{"pw1", "pw2"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), entry.ID)
	assert.Equal(t, model.StatusPending, entry.Status)
	assert.Equal(t, []string{"pw1", "pw2"}, entry.Credentials)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Append_NoCredentials(t *testing.T) {
	l, mock := newMockPostgresLedger(t)

	mock.ExpectQuery(`INSERT INTO entries`).
		WithArgs("downloads/a.pdf", "OP-1001", `[]`, "pending", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1)))

	entry, err := l.Append(context.Background(), "downloads/a.pdf", "OP-1001", nil)
	require.NoError(t, err)
	assert.Nil(t, entry.Credentials)
	require.NoError(t, mock.ExpectationsWereMet())
}

func entryRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "artifact_path", "source_key", "credentials", "status", "failure",
		"fields", "truncated", "raw_response", "created_at", "updated_at",
	})
}

func TestPostgres_Get(t *testing.T) {
	l, mock := newMockPostgresLedger(t)

	fields := `{"is_cn":"true","currency":"EUR"}`
	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT .* FROM entries WHERE id`).
		WithArgs(int64(3)).
		WillReturnRows(entryRows().AddRow(
			int64(3), "downloads/a.pdf", "OP-1001", `["pw"]`, "success", "",
			&fields, true, "", now, now,
		))

	got, err := l.Get(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuccess, got.Status)
	require.NotNil(t, got.Fields)
	assert.Equal(t, "EUR", got.Fields.Currency)
	assert.True(t, got.Truncated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Get_NotFound(t *testing.T) {
	l, mock := newMockPostgresLedger(t)

	mock.ExpectQuery(`SELECT .* FROM entries WHERE id`).
		WithArgs(int64(99)).
		WillReturnError(pgx.ErrNoRows)

	_, err := l.Get(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Apply_Success(t *testing.T) {
	l, mock := newMockPostgresLedger(t)

	mock.ExpectExec(`UPDATE entries SET`).
		WithArgs("success", "", pgxmock.AnyArg(), false, "", pgxmock.AnyArg(), int64(5)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := l.Apply(context.Background(), 5, model.ExtractionResult{
		Fields: &model.CNFields{IsCN: "true"},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Apply_Failure(t *testing.T) {
	l, mock := newMockPostgresLedger(t)

	mock.ExpectExec(`UPDATE entries SET`).
		WithArgs("failed", "decryption_error", pgxmock.AnyArg(), false, "", pgxmock.AnyArg(), int64(5)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := l.Apply(context.Background(), 5, model.ExtractionResult{
		Failure: model.FailureDecryption,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Apply_NotFound(t *testing.T) {
	l, mock := newMockPostgresLedger(t)

	mock.ExpectExec(`UPDATE entries SET`).
		WithArgs("failed", "recognition_error", pgxmock.AnyArg(), false, "", pgxmock.AnyArg(), int64(42)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := l.Apply(context.Background(), 42, model.ExtractionResult{
		Failure: model.FailureRecognition,
	})
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_List_StatusFilter(t *testing.T) {
	l, mock := newMockPostgresLedger(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT .* FROM entries WHERE 1=1 AND status`).
		WithArgs("pending").
		WillReturnRows(entryRows().
			AddRow(int64(1), "downloads/a.pdf", "OP-1", `[]`, "pending", "", (*string)(nil), false, "", now, now).
			AddRow(int64(2), "downloads/b.pdf", "OP-2", `[]`, "pending", "", (*string)(nil), false, "", now, now))

	entries, err := l.List(context.Background(), Filter{Status: model.StatusPending})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(1), entries[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CountByStatus(t *testing.T) {
	l, mock := newMockPostgresLedger(t)

	mock.ExpectQuery(`SELECT status, COUNT`).
		WillReturnRows(pgxmock.NewRows([]string{"status", "count"}).
			AddRow("pending", 2).
			AddRow("success", 5))

	counts, err := l.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, counts[model.StatusPending])
	assert.Equal(t, 5, counts[model.StatusSuccess])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_RecordRun(t *testing.T) {
	l, mock := newMockPostgresLedger(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), "extract", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run := &model.Run{Kind: model.RunExtract, StartedAt: time.Now(), FinishedAt: time.Now()}
	require.NoError(t, l.RecordRun(context.Background(), run))
	assert.NotEmpty(t, run.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
