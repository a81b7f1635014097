package model

// LookupRecord is one row of the fund-house reference table: the search term
// used to find confirmation emails and the passwords their PDFs may carry.
type LookupRecord struct {
	Key         string   `json:"key"`
	FundHouse   string   `json:"fund_house,omitempty"`
	SearchTerm  string   `json:"search_term"`
	Credentials []string `json:"credentials,omitempty"`
}

// InputRecord is one driving row from the input sheet. Cells carries the raw
// row for passthrough; only Key is interpreted by the pipeline.
type InputRecord struct {
	Row   int      `json:"row"`
	Key   string   `json:"key"`
	Cells []string `json:"cells,omitempty"`
}

// ResolvedRow is an InputRecord mapped through the lookup table. Credentials
// is a snapshot copied at resolution time; later table edits never reach it.
type ResolvedRow struct {
	SourceKey   string   `json:"source_key"`
	SearchTerm  string   `json:"search_term"`
	Credentials []string `json:"credentials,omitempty"`
}

// SkipReason classifies why an input record produced no retrieval.
type SkipReason string

const (
	SkipNone         SkipReason = ""
	SkipEmptyKey     SkipReason = "empty_key"
	SkipKeyNotFound  SkipReason = "key_not_found"
	SkipNoSearchTerm SkipReason = "no_search_term"
)
