package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundops/cnpipe/internal/model"
)

func newTestSQLiteLedger(t *testing.T) *SQLiteLedger {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	l, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() }) //nolint:errcheck
	require.NoError(t, l.Migrate(context.Background()))
	return l
}

func TestSQLite_Append(t *testing.T) {
	l := newTestSQLiteLedger(t)
	ctx := context.Background()

	entry, err := l.Append(ctx, "downloads/a.pdf", "OP-1001", []string{"pw1", "pw2"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), entry.ID)
	assert.Equal(t, model.StatusPending, entry.Status)

	got, err := l.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "downloads/a.pdf", got.ArtifactPath)
	assert.Equal(t, "OP-1001", got.SourceKey)
	assert.Equal(t, []string{"pw1", "pw2"}, got.Credentials)
	assert.Equal(t, model.StatusPending, got.Status)
	assert.Nil(t, got.Fields)
}

func TestSQLite_Append_IDsAreMonotonic(t *testing.T) {
	l := newTestSQLiteLedger(t)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 3; i++ {
		entry, err := l.Append(ctx, "downloads/a.pdf", "OP-1001", nil)
		require.NoError(t, err)
		ids = append(ids, entry.ID)
	}
	assert.Equal(t, []int64{1, 2, 3}, ids)

	// Same path again yields a fresh entry, not a collision.
	entry, err := l.Append(ctx, "downloads/a.pdf", "OP-1001", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(4), entry.ID)
}

func TestSQLite_Get_NotFound(t *testing.T) {
	l := newTestSQLiteLedger(t)

	_, err := l.Get(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_Apply_Success(t *testing.T) {
	l := newTestSQLiteLedger(t)
	ctx := context.Background()

	entry, err := l.Append(ctx, "downloads/a.pdf", "OP-1001", []string{"pw"})
	require.NoError(t, err)

	fields := &model.CNFields{IsCN: "true", Currency: "USD", GrossAmount: "1000.00"}
	err = l.Apply(ctx, entry.ID, model.ExtractionResult{Fields: fields, Truncated: true})
	require.NoError(t, err)

	got, err := l.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuccess, got.Status)
	assert.Equal(t, model.FailureNone, got.Failure)
	require.NotNil(t, got.Fields)
	assert.Equal(t, "USD", got.Fields.Currency)
	assert.True(t, got.Truncated)
	assert.Empty(t, got.RawResponse)
	// Credential snapshot survives reconciliation.
	assert.Equal(t, []string{"pw"}, got.Credentials)
}

func TestSQLite_Apply_ParseFailureKeepsRawResponse(t *testing.T) {
	l := newTestSQLiteLedger(t)
	ctx := context.Background()

	entry, err := l.Append(ctx, "downloads/a.pdf", "OP-1001", nil)
	require.NoError(t, err)

	err = l.Apply(ctx, entry.ID, model.ExtractionResult{
		Failure:     model.FailureExtractionParse,
		RawResponse: "the model rambled instead of answering",
	})
	require.NoError(t, err)

	got, err := l.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.Equal(t, model.FailureExtractionParse, got.Failure)
	assert.Nil(t, got.Fields)
	assert.Equal(t, "the model rambled instead of answering", got.RawResponse)
}

func TestSQLite_Apply_OtherFailuresDropRawResponse(t *testing.T) {
	l := newTestSQLiteLedger(t)
	ctx := context.Background()

	entry, err := l.Append(ctx, "downloads/a.pdf", "OP-1001", nil)
	require.NoError(t, err)

	err = l.Apply(ctx, entry.ID, model.ExtractionResult{
		Failure:     model.FailureDecryption,
		RawResponse: "should not be stored",
	})
	require.NoError(t, err)

	got, err := l.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, model.FailureDecryption, got.Failure)
	assert.Empty(t, got.RawResponse)
}

func TestSQLite_Apply_Idempotent(t *testing.T) {
	l := newTestSQLiteLedger(t)
	ctx := context.Background()

	entry, err := l.Append(ctx, "downloads/a.pdf", "OP-1001", nil)
	require.NoError(t, err)

	result := model.ExtractionResult{Fields: &model.CNFields{IsCN: "true"}}
	require.NoError(t, l.Apply(ctx, entry.ID, result))
	first, err := l.Get(ctx, entry.ID)
	require.NoError(t, err)

	require.NoError(t, l.Apply(ctx, entry.ID, result))
	second, err := l.Get(ctx, entry.ID)
	require.NoError(t, err)

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.Fields, second.Fields)
	assert.Equal(t, first.Truncated, second.Truncated)
}

func TestSQLite_Apply_SuccessWithoutFields(t *testing.T) {
	l := newTestSQLiteLedger(t)
	ctx := context.Background()

	entry, err := l.Append(ctx, "downloads/a.pdf", "OP-1001", nil)
	require.NoError(t, err)

	err = l.Apply(ctx, entry.ID, model.ExtractionResult{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without fields")
}

func TestSQLite_Apply_NotFound(t *testing.T) {
	l := newTestSQLiteLedger(t)

	err := l.Apply(context.Background(), 42, model.ExtractionResult{Failure: model.FailureRecognition})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_List_Filters(t *testing.T) {
	l := newTestSQLiteLedger(t)
	ctx := context.Background()

	a, err := l.Append(ctx, "downloads/a.pdf", "OP-1", nil)
	require.NoError(t, err)
	_, err = l.Append(ctx, "downloads/b.pdf", "OP-2", nil)
	require.NoError(t, err)
	c, err := l.Append(ctx, "downloads/c.pdf", "OP-1", nil)
	require.NoError(t, err)

	require.NoError(t, l.Apply(ctx, a.ID, model.ExtractionResult{Fields: &model.CNFields{IsCN: "true"}}))
	require.NoError(t, l.Apply(ctx, c.ID, model.ExtractionResult{Failure: model.FailureRecognition}))

	pending, err := l.List(ctx, Filter{Status: model.StatusPending})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "downloads/b.pdf", pending[0].ArtifactPath)

	byKey, err := l.List(ctx, Filter{SourceKey: "OP-1"})
	require.NoError(t, err)
	assert.Len(t, byKey, 2)

	limited, err := l.List(ctx, Filter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	all, err := l.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	// List returns entries in append order.
	assert.Equal(t, int64(1), all[0].ID)
	assert.Equal(t, int64(3), all[2].ID)
}

func TestSQLite_Counts(t *testing.T) {
	l := newTestSQLiteLedger(t)
	ctx := context.Background()

	a, err := l.Append(ctx, "downloads/a.pdf", "OP-1", nil)
	require.NoError(t, err)
	b, err := l.Append(ctx, "downloads/b.pdf", "OP-2", nil)
	require.NoError(t, err)
	_, err = l.Append(ctx, "downloads/c.pdf", "OP-3", nil)
	require.NoError(t, err)

	require.NoError(t, l.Apply(ctx, a.ID, model.ExtractionResult{Fields: &model.CNFields{}}))
	require.NoError(t, l.Apply(ctx, b.ID, model.ExtractionResult{Failure: model.FailureExtractionTimeout}))

	byStatus, err := l.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, byStatus[model.StatusSuccess])
	assert.Equal(t, 1, byStatus[model.StatusFailed])
	assert.Equal(t, 1, byStatus[model.StatusPending])

	byFailure, err := l.CountByFailure(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[model.FailureKind]int{model.FailureExtractionTimeout: 1}, byFailure)
}

func TestSQLite_Runs(t *testing.T) {
	l := newTestSQLiteLedger(t)
	ctx := context.Background()

	started := time.Now().UTC().Add(-time.Minute)
	run := &model.Run{
		Kind:       model.RunRetrieve,
		StartedAt:  started,
		FinishedAt: started.Add(30 * time.Second),
	}
	run.Summary.Processed = 5
	run.Summary.Downloaded = 3
	run.Summary.Skip(model.SkipKeyNotFound)

	require.NoError(t, l.RecordRun(ctx, run))
	assert.NotEmpty(t, run.ID)

	runs, err := l.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunRetrieve, runs[0].Kind)
	assert.Equal(t, 5, runs[0].Summary.Processed)
	assert.Equal(t, 1, runs[0].Summary.SkipReasons[model.SkipKeyNotFound])
}
