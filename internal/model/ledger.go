package model

import "time"

// EntryStatus is the lifecycle state of a ledger entry.
type EntryStatus string

const (
	StatusPending EntryStatus = "pending"
	StatusSuccess EntryStatus = "success"
	StatusFailed  EntryStatus = "failed"
)

// Terminal reports whether no further transitions apply to this status.
func (s EntryStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// FailureKind is the classified label stored on a failed ledger entry.
// Labels are short and stable; raw error chains stay in logs.
type FailureKind string

const (
	FailureNone              FailureKind = ""
	FailureDecryption        FailureKind = "decryption_error"
	FailureRecognition       FailureKind = "recognition_error"
	FailureExtractionParse   FailureKind = "extraction_parse_error"
	FailureExtractionTimeout FailureKind = "extraction_timeout"
)

// LedgerEntry is the unit of work and of persistence: exactly one row per
// retrieved artifact. ID is the entry's sole identity; artifact paths are not
// identity because a re-run may download a same-named file with new content.
type LedgerEntry struct {
	ID           int64       `json:"id"`
	ArtifactPath string      `json:"artifact_path"`
	SourceKey    string      `json:"source_key"`
	Credentials  []string    `json:"credentials,omitempty"`
	Status       EntryStatus `json:"status"`
	Failure      FailureKind `json:"failure,omitempty"`
	Fields       *CNFields   `json:"fields,omitempty"`
	Truncated    bool        `json:"truncated"`
	RawResponse  string      `json:"raw_response,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// ExtractionResult is the transient outcome of extracting one ledger entry.
// Failure empty means success; the reconciler turns either shape into a
// single terminal write.
type ExtractionResult struct {
	Fields      *CNFields   `json:"fields,omitempty"`
	Truncated   bool        `json:"truncated"`
	RawResponse string      `json:"raw_response,omitempty"`
	Failure     FailureKind `json:"failure,omitempty"`
	Err         error       `json:"-"`
}

// Failed reports whether the extraction ended in a classified failure.
func (r ExtractionResult) Failed() bool {
	return r.Failure != FailureNone
}
