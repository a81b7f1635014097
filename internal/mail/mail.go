// Package mail retrieves confirmation-note attachments from a mailbox.
package mail

import (
	"context"
	"errors"
)

// Attachment is one retrieved artifact: the suggested file name from the
// message and its raw bytes.
type Attachment struct {
	Name string
	Data []byte
}

// Searcher finds PDF attachments on messages from a given sender whose
// subject contains a term. An empty result is a normal outcome.
type Searcher interface {
	Search(ctx context.Context, from, subjectTerm string) ([]Attachment, error)
}

// RetrievalError marks a mailbox-level failure: connectivity, auth,
// permission. The caller treats it as fatal for the current row only.
type RetrievalError struct {
	Err error
}

func (e *RetrievalError) Error() string {
	return "mail: retrieval failed: " + e.Err.Error()
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}

// IsRetrievalError reports whether the error chain contains a RetrievalError.
func IsRetrievalError(err error) bool {
	var re *RetrievalError
	return errors.As(err, &re)
}
