package lookup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundops/cnpipe/internal/model"
)

func testRecords() []model.LookupRecord {
	return []model.LookupRecord{
		{Key: "42", FundHouse: "ACME Asset Mgmt", SearchTerm: "ACME-CONF", Credentials: []string{"pw1", "pw2"}},
		{Key: " 77 ", FundHouse: "Borealis", SearchTerm: `"BOR CN"`, Credentials: []string{"secret"}},
		{Key: "99", FundHouse: "NoTerm Partners", SearchTerm: "   "},
	}
}

func TestTable_Resolve(t *testing.T) {
	table := NewTable(testRecords())
	require.Equal(t, 3, table.Len())

	rec, err := table.Resolve("42")
	require.NoError(t, err)
	assert.Equal(t, "ACME-CONF", rec.SearchTerm)
	assert.Equal(t, []string{"pw1", "pw2"}, rec.Credentials)
}

func TestTable_Resolve_TrimsKeys(t *testing.T) {
	table := NewTable(testRecords())

	rec, err := table.Resolve("  77 ")
	require.NoError(t, err)
	assert.Equal(t, "77", rec.Key)
}

func TestTable_Resolve_NotFound(t *testing.T) {
	table := NewTable(testRecords())

	_, err := table.Resolve("1234")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTable_Resolve_EmptyKey(t *testing.T) {
	table := NewTable(testRecords())

	_, err := table.Resolve("   ")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTable_DuplicateKeysFirstWins(t *testing.T) {
	table := NewTable([]model.LookupRecord{
		{Key: "7", SearchTerm: "FIRST"},
		{Key: "7", SearchTerm: "SECOND"},
	})
	require.Equal(t, 1, table.Len())

	rec, err := table.Resolve("7")
	require.NoError(t, err)
	assert.Equal(t, "FIRST", rec.SearchTerm)
}

func TestResolver_ResolveRow(t *testing.T) {
	r := NewResolver(NewTable(testRecords()))

	row, skip := r.ResolveRow(model.InputRecord{Row: 2, Key: "42"})
	require.Equal(t, model.SkipNone, skip)
	assert.Equal(t, "42", row.SourceKey)
	assert.Equal(t, "ACME-CONF", row.SearchTerm)
	assert.Equal(t, []string{"pw1", "pw2"}, row.Credentials)
}

func TestResolver_ResolveRow_StripsQuotes(t *testing.T) {
	r := NewResolver(NewTable(testRecords()))

	row, skip := r.ResolveRow(model.InputRecord{Key: "77"})
	require.Equal(t, model.SkipNone, skip)
	assert.Equal(t, "BOR CN", row.SearchTerm)
}

func TestResolver_ResolveRow_SkipReasons(t *testing.T) {
	r := NewResolver(NewTable(testRecords()))

	tests := []struct {
		name string
		key  string
		want model.SkipReason
	}{
		{"blank key", "   ", model.SkipEmptyKey},
		{"unknown key", "555", model.SkipKeyNotFound},
		{"blank search term", "99", model.SkipNoSearchTerm},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, skip := r.ResolveRow(model.InputRecord{Key: tt.key})
			assert.Equal(t, tt.want, skip)
		})
	}
}

func TestResolver_CredentialsAreCopied(t *testing.T) {
	records := testRecords()
	r := NewResolver(NewTable(records))

	row, skip := r.ResolveRow(model.InputRecord{Key: "42"})
	require.Equal(t, model.SkipNone, skip)

	records[0].Credentials[0] = "mutated"
	assert.Equal(t, []string{"pw1", "pw2"}, row.Credentials)
}
