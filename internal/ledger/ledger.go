// Package ledger persists the append-only record of retrieved artifacts and
// their extraction outcomes. Entries are created PENDING at retrieval time
// with a snapshot of the credentials then in force, and move to exactly one
// terminal state per Apply.
package ledger

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/fundops/cnpipe/internal/model"
)

// ErrNotFound marks a lookup for an entry ID that was never appended.
var ErrNotFound = eris.New("ledger: entry not found")

// Filter specifies criteria for listing ledger entries.
type Filter struct {
	Status    model.EntryStatus `json:"status,omitempty"`
	SourceKey string            `json:"source_key,omitempty"`
	Limit     int               `json:"limit,omitempty"`
}

// Ledger defines the persistence interface for the extraction pipeline.
type Ledger interface {
	// Entries
	Append(ctx context.Context, artifactPath, sourceKey string, credentials []string) (*model.LedgerEntry, error)
	Get(ctx context.Context, id int64) (*model.LedgerEntry, error)
	List(ctx context.Context, filter Filter) ([]model.LedgerEntry, error)
	Apply(ctx context.Context, id int64, result model.ExtractionResult) error

	// Reporting
	CountByStatus(ctx context.Context) (map[model.EntryStatus]int, error)
	CountByFailure(ctx context.Context) (map[model.FailureKind]int, error)

	// Runs
	RecordRun(ctx context.Context, run *model.Run) error
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// terminalWrite is the column image an Apply stores. Success and failure both
// replace the entry's result columns wholesale, which is what makes Apply
// idempotent: applying the same result twice writes the same image.
type terminalWrite struct {
	Status      model.EntryStatus
	Failure     model.FailureKind
	FieldsJSON  *string
	Truncated   bool
	RawResponse string
}

// reconcile turns an extraction result into the terminal column image.
// Failed extractions never keep partial fields, and the raw model answer is
// retained only when parsing it is what failed.
func reconcile(result model.ExtractionResult) (terminalWrite, error) {
	if result.Failed() {
		w := terminalWrite{
			Status:    model.StatusFailed,
			Failure:   result.Failure,
			Truncated: result.Truncated,
		}
		if result.Failure == model.FailureExtractionParse {
			w.RawResponse = result.RawResponse
		}
		return w, nil
	}

	if result.Fields == nil {
		return terminalWrite{}, eris.New("ledger: success result without fields")
	}
	fieldsJSON, err := json.Marshal(result.Fields)
	if err != nil {
		return terminalWrite{}, eris.Wrap(err, "ledger: marshal fields")
	}
	s := string(fieldsJSON)
	return terminalWrite{
		Status:     model.StatusSuccess,
		FieldsJSON: &s,
		Truncated:  result.Truncated,
	}, nil
}

func marshalCredentials(credentials []string) (string, error) {
	if credentials == nil {
		credentials = []string{}
	}
	b, err := json.Marshal(credentials)
	if err != nil {
		return "", eris.Wrap(err, "ledger: marshal credentials")
	}
	return string(b), nil
}

func unmarshalEntryJSON(e *model.LedgerEntry, credsJSON string, fieldsJSON *string) error {
	if credsJSON != "" {
		if err := json.Unmarshal([]byte(credsJSON), &e.Credentials); err != nil {
			return eris.Wrapf(err, "ledger: unmarshal credentials for entry %d", e.ID)
		}
	}
	if len(e.Credentials) == 0 {
		e.Credentials = nil
	}
	if fieldsJSON != nil {
		var fields model.CNFields
		if err := json.Unmarshal([]byte(*fieldsJSON), &fields); err != nil {
			return eris.Wrapf(err, "ledger: unmarshal fields for entry %d", e.ID)
		}
		e.Fields = &fields
	}
	return nil
}
