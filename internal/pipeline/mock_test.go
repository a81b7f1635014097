package pipeline

import (
	"context"
	"strings"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/fundops/cnpipe/internal/ledger"
	"github.com/fundops/cnpipe/internal/mail"
	"github.com/fundops/cnpipe/internal/model"
	"github.com/fundops/cnpipe/internal/render"
)

// fakeSearcher returns canned attachments per search term.
type fakeSearcher struct {
	results map[string][]mail.Attachment
	err     error
	calls   []string
}

func (f *fakeSearcher) Search(_ context.Context, _, subjectTerm string) ([]mail.Attachment, error) {
	f.calls = append(f.calls, subjectTerm)
	if f.err != nil {
		return nil, f.err
	}
	return f.results[subjectTerm], nil
}

// fakeRenderer records every password tried and accepts a configured one.
type fakeRenderer struct {
	acceptPassword string
	openAll        bool
	openErr        error
	rasterizeErr   error
	pages          [][]byte
	attempts       []string
}

func (f *fakeRenderer) Open(_ context.Context, path, password string) (*render.Document, error) {
	f.attempts = append(f.attempts, password)
	if f.openErr != nil {
		return nil, f.openErr
	}
	if !f.openAll && password != f.acceptPassword {
		return nil, eris.Wrap(render.ErrAuthentication, "fake")
	}
	return &render.Document{Path: path, Password: password, PageCount: len(f.pages)}, nil
}

func (f *fakeRenderer) Rasterize(_ context.Context, _ *render.Document) ([][]byte, error) {
	if f.rasterizeErr != nil {
		return nil, f.rasterizeErr
	}
	return f.pages, nil
}

// fakeRecognizer returns fixed text for any pages.
type fakeRecognizer struct {
	text string
	err  error
}

func (f *fakeRecognizer) Recognize(_ context.Context, _ [][]byte) (string, error) {
	return f.text, f.err
}

// fakeOracle records the prompts it saw and answers with a fixed response.
type fakeOracle struct {
	mu       sync.Mutex
	response string
	err      error
	prompts  []string
}

func (f *fakeOracle) Infer(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return f.response, nil
}

// docText returns the document portion of a recorded prompt.
func (f *fakeOracle) docText(i int) string {
	prompt := f.prompts[i]
	idx := strings.LastIndex(prompt, "Document text:\n\n")
	return prompt[idx+len("Document text:\n\n"):]
}

// memLedger is an in-memory Ledger for pipeline tests.
type memLedger struct {
	mu       sync.Mutex
	entries  map[int64]*model.LedgerEntry
	runs     []model.Run
	nextID   int64
	applyErr error
}

func newMemLedger() *memLedger {
	return &memLedger{entries: map[int64]*model.LedgerEntry{}}
}

func (m *memLedger) Append(_ context.Context, artifactPath, sourceKey string, credentials []string) (*model.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	e := &model.LedgerEntry{
		ID:           m.nextID,
		ArtifactPath: artifactPath,
		SourceKey:    sourceKey,
		Credentials:  append([]string(nil), credentials...),
		Status:       model.StatusPending,
	}
	m.entries[e.ID] = e
	return e, nil
}

func (m *memLedger) Get(_ context.Context, id int64) (*model.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	copied := *e
	return &copied, nil
}

func (m *memLedger) List(_ context.Context, filter ledger.Filter) ([]model.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.LedgerEntry
	for id := int64(1); id <= m.nextID; id++ {
		e, ok := m.entries[id]
		if !ok {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		if filter.SourceKey != "" && e.SourceKey != filter.SourceKey {
			continue
		}
		out = append(out, *e)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (m *memLedger) Apply(_ context.Context, id int64, result model.ExtractionResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.applyErr != nil {
		return m.applyErr
	}
	e, ok := m.entries[id]
	if !ok {
		return ledger.ErrNotFound
	}
	if result.Failed() {
		e.Status = model.StatusFailed
		e.Failure = result.Failure
		e.Fields = nil
		e.Truncated = result.Truncated
		if result.Failure == model.FailureExtractionParse {
			e.RawResponse = result.RawResponse
		} else {
			e.RawResponse = ""
		}
		return nil
	}
	e.Status = model.StatusSuccess
	e.Failure = model.FailureNone
	e.Fields = result.Fields
	e.Truncated = result.Truncated
	e.RawResponse = ""
	return nil
}

func (m *memLedger) CountByStatus(context.Context) (map[model.EntryStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[model.EntryStatus]int{}
	for _, e := range m.entries {
		counts[e.Status]++
	}
	return counts, nil
}

func (m *memLedger) CountByFailure(context.Context) (map[model.FailureKind]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[model.FailureKind]int{}
	for _, e := range m.entries {
		if e.Status == model.StatusFailed {
			counts[e.Failure]++
		}
	}
	return counts, nil
}

func (m *memLedger) RecordRun(_ context.Context, run *model.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run.ID == "" {
		run.ID = "run"
	}
	m.runs = append(m.runs, *run)
	return nil
}

func (m *memLedger) ListRuns(context.Context, int) ([]model.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Run(nil), m.runs...), nil
}

func (m *memLedger) Migrate(context.Context) error { return nil }
func (m *memLedger) Close() error                  { return nil }
