package model

import "time"

// RunKind names which phase a recorded run executed.
type RunKind string

const (
	RunRetrieve RunKind = "retrieve"
	RunExtract  RunKind = "extract"
)

// RunSummary tallies per-record outcomes for one phase run. Retrieval counts
// input records; extraction counts ledger entries.
type RunSummary struct {
	Processed   int                `json:"processed"`
	Succeeded   int                `json:"succeeded"`
	Failed      int                `json:"failed"`
	Skipped     int                `json:"skipped"`
	Downloaded  int                `json:"downloaded"`
	NoResults   int                `json:"no_results"`
	SkipReasons map[SkipReason]int `json:"skip_reasons,omitempty"`
}

// Skip records one skipped input record with its reason.
func (s *RunSummary) Skip(reason SkipReason) {
	s.Skipped++
	if s.SkipReasons == nil {
		s.SkipReasons = make(map[SkipReason]int)
	}
	s.SkipReasons[reason]++
}

// Run is one persisted phase execution with its summary.
type Run struct {
	ID         string     `json:"id"`
	Kind       RunKind    `json:"kind"`
	Summary    RunSummary `json:"summary"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
}
