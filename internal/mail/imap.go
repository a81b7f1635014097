package mail

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	gomail "github.com/emersion/go-message/mail"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fundops/cnpipe/internal/config"
)

// IMAPSearcher implements Searcher against an IMAP mailbox. A fresh
// connection is dialed per Search call; confirmation volumes are low.
//
// Server-side SEARCH matches FROM and SUBJECT as case-insensitive
// substrings, which is the semantics we want for forwarded or reply-chain
// subjects.
type IMAPSearcher struct {
	cfg config.MailConfig
}

// NewIMAPSearcher creates an IMAPSearcher from mail configuration.
func NewIMAPSearcher(cfg config.MailConfig) *IMAPSearcher {
	return &IMAPSearcher{cfg: cfg}
}

// Search returns the PDF attachments of every message in the configured
// mailbox sent from `from` with `subjectTerm` in the subject.
func (s *IMAPSearcher) Search(ctx context.Context, from, subjectTerm string) ([]Attachment, error) {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	c, err := imapclient.DialTLS(addr, nil)
	if err != nil {
		return nil, &RetrievalError{Err: eris.Wrapf(err, "mail: dial %s", addr)}
	}
	defer c.Close()

	if err := c.Login(s.cfg.Username, s.cfg.Password).Wait(); err != nil {
		return nil, &RetrievalError{Err: eris.Wrap(err, "mail: login")}
	}
	defer func() {
		if err := c.Logout().Wait(); err != nil {
			zap.L().Debug("mail: logout failed", zap.Error(err))
		}
	}()

	mailbox := s.cfg.Mailbox
	if mailbox == "" {
		mailbox = "INBOX"
	}
	if _, err := c.Select(mailbox, nil).Wait(); err != nil {
		return nil, &RetrievalError{Err: eris.Wrapf(err, "mail: select %s", mailbox)}
	}

	if err := ctx.Err(); err != nil {
		return nil, &RetrievalError{Err: err}
	}

	criteria := &imap.SearchCriteria{
		Header: []imap.SearchCriteriaHeaderField{
			{Key: "From", Value: from},
			{Key: "Subject", Value: subjectTerm},
		},
	}
	searchData, err := c.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, &RetrievalError{Err: eris.Wrap(err, "mail: search")}
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	bodySection := &imap.FetchItemBodySection{}
	fetchOptions := &imap.FetchOptions{
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}
	msgs, err := c.Fetch(imap.UIDSetNum(uids...), fetchOptions).Collect()
	if err != nil {
		return nil, &RetrievalError{Err: eris.Wrap(err, "mail: fetch")}
	}

	var atts []Attachment
	for _, msg := range msgs {
		raw := msg.FindBodySection(bodySection)
		if len(raw) == 0 {
			continue
		}
		parsed, err := extractPDFAttachments(raw)
		if err != nil {
			zap.L().Warn("mail: skipping unparseable message",
				zap.Uint32("uid", uint32(msg.UID)),
				zap.Error(err),
			)
			continue
		}
		atts = append(atts, parsed...)
	}

	zap.L().Info("mail: search complete",
		zap.String("from", from),
		zap.String("term", subjectTerm),
		zap.Int("messages", len(msgs)),
		zap.Int("attachments", len(atts)),
	)
	return atts, nil
}

// extractPDFAttachments walks a raw RFC 822 message and returns its PDF
// attachments. Non-PDF attachments and inline parts are skipped.
func extractPDFAttachments(raw []byte) ([]Attachment, error) {
	mr, err := gomail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil, eris.Wrap(err, "mail: parse message")
	}

	var atts []Attachment
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return atts, eris.Wrap(err, "mail: next part")
		}

		header, ok := part.Header.(*gomail.AttachmentHeader)
		if !ok {
			continue
		}
		filename, err := header.Filename()
		if err != nil || filename == "" {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(filename), ".pdf") {
			continue
		}

		data, err := io.ReadAll(part.Body)
		if err != nil {
			return atts, eris.Wrapf(err, "mail: read attachment %s", filename)
		}
		atts = append(atts, Attachment{Name: filename, Data: data})
	}
	return atts, nil
}
