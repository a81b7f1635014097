package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/fundops/cnpipe/internal/model"
)

// SQLiteLedger implements Ledger using modernc.org/sqlite.
type SQLiteLedger struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteLedger{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS entries (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	artifact_path TEXT NOT NULL,
	source_key    TEXT NOT NULL,
	credentials   TEXT NOT NULL DEFAULT '[]',
	status        TEXT NOT NULL DEFAULT 'pending',
	failure       TEXT NOT NULL DEFAULT '',
	fields        TEXT,
	truncated     INTEGER NOT NULL DEFAULT 0,
	raw_response  TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL,
	updated_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	summary     TEXT NOT NULL,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entries_status ON entries(status);
CREATE INDEX IF NOT EXISTS idx_entries_source_key ON entries(source_key);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

func (l *SQLiteLedger) Migrate(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

// Append inserts a new PENDING entry with a snapshot of the credentials in
// force at retrieval time. IDs are assigned by the database and never reused.
func (l *SQLiteLedger) Append(ctx context.Context, artifactPath, sourceKey string, credentials []string) (*model.LedgerEntry, error) {
	now := time.Now().UTC()

	credsJSON, err := marshalCredentials(credentials)
	if err != nil {
		return nil, err
	}

	res, err := l.db.ExecContext(ctx,
		`INSERT INTO entries (artifact_path, source_key, credentials, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		artifactPath, sourceKey, credsJSON, string(model.StatusPending), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert entry")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: last insert id")
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

func (l *SQLiteLedger) Get(ctx context.Context, id int64) (*model.LedgerEntry, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT id, artifact_path, source_key, credentials, status, failure, fields, truncated, raw_response, created_at, updated_at
		 FROM entries WHERE id = ?`, id,
	)
	return scanEntry(row)
}

func (l *SQLiteLedger) List(ctx context.Context, filter Filter) ([]model.LedgerEntry, error) {
	query := `SELECT id, artifact_path, source_key, credentials, status, failure, fields, truncated, raw_response, created_at, updated_at
		 FROM entries WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.SourceKey != "" {
		query += ` AND source_key = ?`
		args = append(args, filter.SourceKey)
	}
	query += ` ORDER BY id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list entries")
	}
	defer rows.Close()

	var entries []model.LedgerEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: iterate entries")
}

// Apply writes the terminal state computed from the result over the entry's
// result columns. Re-applying the same result is a no-op in effect.
func (l *SQLiteLedger) Apply(ctx context.Context, id int64, result model.ExtractionResult) error {
	w, err := reconcile(result)
	if err != nil {
		return err
	}

	res, err := l.db.ExecContext(ctx,
		`UPDATE entries SET status = ?, failure = ?, fields = ?, truncated = ?, raw_response = ?, updated_at = ?
		 WHERE id = ?`,
		string(w.Status), string(w.Failure), w.FieldsJSON, w.Truncated, w.RawResponse, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: apply result to entry %d", id)
	}
	return checkRowsAffected(res, id)
}

func (l *SQLiteLedger) CountByStatus(ctx context.Context) (map[model.EntryStatus]int, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM entries GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count by status")
	}
	defer rows.Close()

	counts := make(map[model.EntryStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan status count")
		}
		counts[model.EntryStatus(status)] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: iterate status counts")
}

func (l *SQLiteLedger) CountByFailure(ctx context.Context) (map[model.FailureKind]int, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT failure, COUNT(*) FROM entries WHERE status = ? GROUP BY failure`,
		string(model.StatusFailed),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count by failure")
	}
	defer rows.Close()

	counts := make(map[model.FailureKind]int)
	for rows.Next() {
		var failure string
		var n int
		if err := rows.Scan(&failure, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan failure count")
		}
		counts[model.FailureKind(failure)] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: iterate failure counts")
}

func (l *SQLiteLedger) RecordRun(ctx context.Context, run *model.Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	summaryJSON, err := json.Marshal(run.Summary)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run summary")
	}

	_, err = l.db.ExecContext(ctx,
		`INSERT INTO runs (id, kind, summary, started_at, finished_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, string(run.Kind), string(summaryJSON), run.StartedAt.UTC(), run.FinishedAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: insert run")
}

func (l *SQLiteLedger) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	query := `SELECT id, kind, summary, started_at, finished_at FROM runs ORDER BY started_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var kind, summaryJSON string
		if err := rows.Scan(&r.ID, &kind, &summaryJSON, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		r.Kind = model.RunKind(kind)
		if err := json.Unmarshal([]byte(summaryJSON), &r.Summary); err != nil {
			return nil, eris.Wrapf(err, "sqlite: unmarshal summary for run %s", r.ID)
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}

// helpers

func checkRowsAffected(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "entry %d", id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanEntry(row scannable) (*model.LedgerEntry, error) {
	var e model.LedgerEntry
	var credsJSON, status, failure string
	var fieldsJSON sql.NullString

	err := row.Scan(&e.ID, &e.ArtifactPath, &e.SourceKey, &credsJSON, &status, &failure,
		&fieldsJSON, &e.Truncated, &e.RawResponse, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan entry")
	}

	e.Status = model.EntryStatus(status)
	e.Failure = model.FailureKind(failure)

	var fields *string
	if fieldsJSON.Valid {
		fields = &fieldsJSON.String
	}
	if err := unmarshalEntryJSON(&e, credsJSON, fields); err != nil {
		return nil, err
	}
	return &e, nil
}
