package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/fundops/cnpipe/internal/model"
)

// pgxPool is the subset of pgxpool.Pool the ledger uses. pgxmock's pool
// interface satisfies it, which is what the tests run against.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresLedger implements Ledger using pgxpool.
type PostgresLedger struct {
	pool pgxPool
}

// NewPostgres creates a PostgresLedger with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresLedger, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresLedger{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS entries (
	id            BIGSERIAL PRIMARY KEY,
	artifact_path TEXT NOT NULL,
	source_key    TEXT NOT NULL,
	credentials   JSONB NOT NULL DEFAULT '[]',
	status        TEXT NOT NULL DEFAULT 'pending',
	failure       TEXT NOT NULL DEFAULT '',
	fields        JSONB,
	truncated     BOOLEAN NOT NULL DEFAULT FALSE,
	raw_response  TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	summary     JSONB NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entries_status ON entries(status);
CREATE INDEX IF NOT EXISTS idx_entries_source_key ON entries(source_key);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

func (l *PostgresLedger) Migrate(ctx context.Context) error {
	_, err := l.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (l *PostgresLedger) Close() error {
	l.pool.Close()
	return nil
}

func (l *PostgresLedger) Append(ctx context.Context, artifactPath, sourceKey string, credentials []string) (*model.LedgerEntry, error) {
	now := time.Now().UTC()

	credsJSON, err := marshalCredentials(credentials)
	if err != nil {
		return nil, err
	}

	var id int64
	err = l.pool.QueryRow(ctx,
		`INSERT INTO entries (artifact_path, source_key, credentials, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		artifactPath, sourceKey, credsJSON, string(model.StatusPending), now, now,
	).Scan(&id)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert entry")
	}

	entry := &model.LedgerEntry{
		ID:           id,
		ArtifactPath: artifactPath,
		SourceKey:    sourceKey,
		Status:       model.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if len(credentials) > 0 {
		entry.Credentials = append([]string(nil), credentials...)
	}
	return entry, nil
}

func (l *PostgresLedger) Get(ctx context.Context, id int64) (*model.LedgerEntry, error) {
	row := l.pool.QueryRow(ctx,
		`SELECT id, artifact_path, source_key, credentials, status, failure, fields, truncated, raw_response, created_at, updated_at
		 FROM entries WHERE id = $1`, id,
	)
	entry, err := scanPgEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return entry, err
}

func (l *PostgresLedger) List(ctx context.Context, filter Filter) ([]model.LedgerEntry, error) {
	query := `SELECT id, artifact_path, source_key, credentials, status, failure, fields, truncated, raw_response, created_at, updated_at
		 FROM entries WHERE 1=1`
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $1`
	}
	if filter.SourceKey != "" {
		args = append(args, filter.SourceKey)
		query += ` AND source_key = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}

	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list entries")
	}
	defer rows.Close()

	var entries []model.LedgerEntry
	for rows.Next() {
		entry, err := scanPgEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: iterate entries")
}

func (l *PostgresLedger) Apply(ctx context.Context, id int64, result model.ExtractionResult) error {
	w, err := reconcile(result)
	if err != nil {
		return err
	}

	tag, err := l.pool.Exec(ctx,
		`UPDATE entries SET status = $1, failure = $2, fields = $3, truncated = $4, raw_response = $5, updated_at = $6
		 WHERE id = $7`,
		string(w.Status), string(w.Failure), w.FieldsJSON, w.Truncated, w.RawResponse, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: apply result to entry %d", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "entry %d", id)
	}
	return nil
}

func (l *PostgresLedger) CountByStatus(ctx context.Context) (map[model.EntryStatus]int, error) {
	rows, err := l.pool.Query(ctx, `SELECT status, COUNT(*) FROM entries GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count by status")
	}
	defer rows.Close()

	counts := make(map[model.EntryStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan status count")
		}
		counts[model.EntryStatus(status)] = n
	}
	return counts, eris.Wrap(rows.Err(), "postgres: iterate status counts")
}

func (l *PostgresLedger) CountByFailure(ctx context.Context) (map[model.FailureKind]int, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT failure, COUNT(*) FROM entries WHERE status = $1 GROUP BY failure`,
		string(model.StatusFailed),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count by failure")
	}
	defer rows.Close()

	counts := make(map[model.FailureKind]int)
	for rows.Next() {
		var failure string
		var n int
		if err := rows.Scan(&failure, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan failure count")
		}
		counts[model.FailureKind(failure)] = n
	}
	return counts, eris.Wrap(rows.Err(), "postgres: iterate failure counts")
}

func (l *PostgresLedger) RecordRun(ctx context.Context, run *model.Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	summaryJSON, err := json.Marshal(run.Summary)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run summary")
	}

	_, err = l.pool.Exec(ctx,
		`INSERT INTO runs (id, kind, summary, started_at, finished_at) VALUES ($1, $2, $3, $4, $5)`,
		run.ID, string(run.Kind), string(summaryJSON), run.StartedAt.UTC(), run.FinishedAt.UTC(),
	)
	return eris.Wrap(err, "postgres: insert run")
}

func (l *PostgresLedger) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	query := `SELECT id, kind, summary, started_at, finished_at FROM runs ORDER BY started_at DESC`
	var args []any
	if limit > 0 {
		args = append(args, limit)
		query += ` LIMIT $1`
	}

	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var kind, summaryJSON string
		if err := rows.Scan(&r.ID, &kind, &summaryJSON, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		r.Kind = model.RunKind(kind)
		if err := json.Unmarshal([]byte(summaryJSON), &r.Summary); err != nil {
			return nil, eris.Wrapf(err, "postgres: unmarshal summary for run %s", r.ID)
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: iterate runs")
}

func scanPgEntry(row pgx.Row) (*model.LedgerEntry, error) {
	var e model.LedgerEntry
	var credsJSON, status, failure string
	var fieldsJSON *string

	err := row.Scan(&e.ID, &e.ArtifactPath, &e.SourceKey, &credsJSON, &status, &failure,
		&fieldsJSON, &e.Truncated, &e.RawResponse, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan entry")
	}

	e.Status = model.EntryStatus(status)
	e.Failure = model.FailureKind(failure)

	if err := unmarshalEntryJSON(&e, credsJSON, fieldsJSON); err != nil {
		return nil, err
	}
	return &e, nil
}
