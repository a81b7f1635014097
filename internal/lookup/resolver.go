package lookup

import (
	"strings"

	"github.com/fundops/cnpipe/internal/model"
)

// Resolver maps input records to search terms and credential snapshots.
// It is a pure function of the record and the loaded table.
type Resolver struct {
	table *Table
}

// NewResolver creates a Resolver over a loaded table.
func NewResolver(t *Table) *Resolver {
	return &Resolver{table: t}
}

// ResolveRow maps one input record through the table. A non-empty SkipReason
// means the record produces no retrieval: blank key, unknown key, or a
// matching record whose search term is blank (a data gap, not a fault).
// The returned credential slice is a copy with empty slots dropped.
func (r *Resolver) ResolveRow(rec model.InputRecord) (model.ResolvedRow, model.SkipReason) {
	key := strings.TrimSpace(rec.Key)
	if key == "" {
		return model.ResolvedRow{}, model.SkipEmptyKey
	}

	lr, err := r.table.Resolve(key)
	if err != nil {
		return model.ResolvedRow{}, model.SkipKeyNotFound
	}

	// Search terms arrive from the sheet sometimes wrapped in quotes.
	term := strings.TrimSpace(strings.Trim(strings.TrimSpace(lr.SearchTerm), `"`))
	if term == "" {
		return model.ResolvedRow{}, model.SkipNoSearchTerm
	}

	creds := make([]string, 0, len(lr.Credentials))
	for _, c := range lr.Credentials {
		if c != "" {
			creds = append(creds, c)
		}
	}

	return model.ResolvedRow{
		SourceKey:   key,
		SearchTerm:  term,
		Credentials: creds,
	}, model.SkipNone
}
