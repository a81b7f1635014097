package lookup

import (
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fundops/cnpipe/internal/model"
)

// ErrNotFound is returned by Resolve when no record matches the key.
var ErrNotFound = eris.New("lookup: key not found")

// Table is the in-memory fund-house reference table. It is loaded once per
// run and exposes no mutation API; exact-match lookup on trimmed keys only.
type Table struct {
	records map[string]model.LookupRecord
}

// NewTable builds a Table from loaded records. Keys are trimmed; the first
// record wins on duplicates, later ones are logged and dropped.
func NewTable(records []model.LookupRecord) *Table {
	m := make(map[string]model.LookupRecord, len(records))
	for _, rec := range records {
		key := strings.TrimSpace(rec.Key)
		if key == "" {
			continue
		}
		if _, exists := m[key]; exists {
			zap.L().Warn("lookup: duplicate key ignored", zap.String("key", key))
			continue
		}
		rec.Key = key
		m[key] = rec
	}
	return &Table{records: m}
}

// Resolve returns the record for key, or ErrNotFound. The empty key never
// matches.
func (t *Table) Resolve(key string) (model.LookupRecord, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return model.LookupRecord{}, ErrNotFound
	}
	rec, ok := t.records[key]
	if !ok {
		return model.LookupRecord{}, ErrNotFound
	}
	return rec, nil
}

// Len returns the number of loaded records.
func (t *Table) Len() int {
	return len(t.records)
}
