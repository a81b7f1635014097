// Package pipeline drives the two phases of confirmation-note processing:
// retrieval (mail search to PENDING ledger entries) and extraction (ledger
// entries to terminal states).
package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fundops/cnpipe/internal/ledger"
	"github.com/fundops/cnpipe/internal/mail"
	"github.com/fundops/cnpipe/internal/model"
)

// Coordinator turns one resolved row into zero or more PENDING ledger
// entries: it searches the mailbox, writes each PDF attachment to disk, and
// appends an entry carrying the row's credential snapshot.
type Coordinator struct {
	searcher      mail.Searcher
	ledger        ledger.Ledger
	downloadDir   string
	sourceAddress string
}

// NewCoordinator creates a Coordinator writing artifacts under downloadDir.
func NewCoordinator(searcher mail.Searcher, led ledger.Ledger, downloadDir, sourceAddress string) *Coordinator {
	return &Coordinator{
		searcher:      searcher,
		ledger:        led,
		downloadDir:   downloadDir,
		sourceAddress: sourceAddress,
	}
}

// Retrieve processes one resolved row. A search with no matching attachments
// is a normal outcome and returns (nil, nil); the ledger is only touched for
// artifacts that were actually written.
func (c *Coordinator) Retrieve(ctx context.Context, row model.ResolvedRow) ([]model.LedgerEntry, error) {
	attachments, err := c.searcher.Search(ctx, c.sourceAddress, row.SearchTerm)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: search for %s", row.SourceKey)
	}
	if len(attachments) == 0 {
		zap.L().Info("no attachments found",
			zap.String("source_key", row.SourceKey),
			zap.String("search_term", row.SearchTerm),
		)
		return nil, nil
	}

	if err := os.MkdirAll(c.downloadDir, 0755); err != nil {
		return nil, eris.Wrapf(err, "pipeline: create download dir %s", c.downloadDir)
	}

	entries := make([]model.LedgerEntry, 0, len(attachments))
	for _, att := range attachments {
		path := filepath.Join(c.downloadDir, artifactName(row.SourceKey, att.Name))
		if err := os.WriteFile(path, att.Data, 0644); err != nil {
			return entries, eris.Wrapf(err, "pipeline: write artifact %s", path)
		}

		entry, err := c.ledger.Append(ctx, path, row.SourceKey, row.Credentials)
		if err != nil {
			return entries, eris.Wrapf(err, "pipeline: append entry for %s", path)
		}
		entries = append(entries, *entry)

		zap.L().Info("artifact retrieved",
			zap.Int64("entry_id", entry.ID),
			zap.String("source_key", row.SourceKey),
			zap.String("path", path),
		)
	}
	return entries, nil
}

// artifactName builds a collision-resistant file name. The nanosecond
// timestamp keeps re-runs from overwriting earlier downloads of a same-named
// attachment.
func artifactName(sourceKey, attachmentName string) string {
	ts := time.Now().UTC().Format("20060102T150405.000000000")
	return ts + "_" + sanitize(sourceKey) + "_" + sanitize(attachmentName)
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
