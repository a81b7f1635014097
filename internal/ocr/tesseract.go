package ocr

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/rotisserie/eris"
)

const (
	defaultTesseract = "tesseract"
	defaultLanguage  = "eng"
)

// Tesseract recognizes page images using the tesseract CLI tool, one
// invocation per page.
type Tesseract struct {
	binPath string
	lang    string
}

// NewTesseract creates a Tesseract recognizer. Empty arguments fall back to
// "tesseract" and "eng".
func NewTesseract(binPath, lang string) *Tesseract {
	if binPath == "" {
		binPath = defaultTesseract
	}
	if lang == "" {
		lang = defaultLanguage
	}
	return &Tesseract{binPath: binPath, lang: lang}
}

// Recognize runs tesseract over each page image and joins the page texts
// with newlines.
func (t *Tesseract) Recognize(ctx context.Context, pages [][]byte) (string, error) {
	texts := make([]string, 0, len(pages))
	for i, img := range pages {
		cmd := exec.CommandContext(ctx, t.binPath, "stdin", "stdout", "-l", t.lang)
		cmd.Stdin = bytes.NewReader(img)

		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			return "", eris.Wrapf(err, "ocr: tesseract failed on page %d: %s", i+1, stderr.String())
		}
		texts = append(texts, strings.TrimSpace(stdout.String()))
	}
	return strings.Join(texts, "\n"), nil
}
