// Package render opens password-protected PDFs and rasterizes their pages
// for OCR.
package render

import (
	"context"

	"github.com/rotisserie/eris"
)

// Document is an authenticated, validated PDF ready for rasterization. The
// password that opened it is carried along for the rasterizer.
type Document struct {
	Path      string
	Password  string
	PageCount int
}

// Renderer opens PDFs and turns their pages into images.
type Renderer interface {
	Open(ctx context.Context, path, password string) (*Document, error)
	Rasterize(ctx context.Context, doc *Document) ([][]byte, error)
}

// ErrAuthentication marks a password rejection, as opposed to a corrupt or
// unreadable file. Callers use it to decide whether trying another
// credential makes sense.
var ErrAuthentication = eris.New("render: authentication failed")
