package render

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rotisserie/eris"
)

const (
	defaultPdfToPpm = "pdftoppm"
	defaultDPI      = 300
)

// PDFRenderer validates and decrypts PDFs with pdfcpu and rasterizes pages
// to PNG with the pdftoppm CLI tool.
type PDFRenderer struct {
	binPath string
	dpi     int
}

// NewPDFRenderer creates a PDFRenderer. Empty binPath and zero dpi fall back
// to "pdftoppm" and 300.
func NewPDFRenderer(binPath string, dpi int) *PDFRenderer {
	if binPath == "" {
		binPath = defaultPdfToPpm
	}
	if dpi <= 0 {
		dpi = defaultDPI
	}
	return &PDFRenderer{binPath: binPath, dpi: dpi}
}

// Open validates the PDF with the given password ("" for unprotected
// documents). A rejected password returns ErrAuthentication; any other
// failure means the file itself is unreadable.
func (r *PDFRenderer) Open(_ context.Context, path, password string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "render: open %s", path)
	}
	defer f.Close()

	conf := pdfmodel.NewDefaultConfiguration()
	conf.UserPW = password
	conf.OwnerPW = password

	pdfCtx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		if isPasswordError(err) {
			return nil, eris.Wrapf(ErrAuthentication, "render: %s", path)
		}
		return nil, eris.Wrapf(err, "render: validate %s", path)
	}

	return &Document{
		Path:      path,
		Password:  password,
		PageCount: pdfCtx.PageCount,
	}, nil
}

// isPasswordError distinguishes a wrong password from a broken file. pdfcpu
// has no exported sentinel for this across versions, so match its message.
func isPasswordError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "password") || strings.Contains(msg, "not authorized")
}

// Rasterize renders each page to a PNG at the configured DPI and returns
// the images in page order.
func (r *PDFRenderer) Rasterize(ctx context.Context, doc *Document) ([][]byte, error) {
	tmpDir, err := os.MkdirTemp("", "cnpipe-raster-")
	if err != nil {
		return nil, eris.Wrap(err, "render: create temp dir")
	}
	defer os.RemoveAll(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	args := []string{"-r", strconv.Itoa(r.dpi), "-png"}
	if doc.Password != "" {
		args = append(args, "-upw", doc.Password)
	}
	args = append(args, doc.Path, prefix)

	cmd := exec.CommandContext(ctx, r.binPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, eris.Wrapf(err, "render: pdftoppm failed for %s: %s", doc.Path, stderr.String())
	}

	// pdftoppm zero-pads page numbers, so lexical order is page order.
	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, eris.Wrap(err, "render: glob pages")
	}
	sort.Strings(matches)

	if len(matches) == 0 {
		return nil, eris.Errorf("render: pdftoppm produced no pages for %s", doc.Path)
	}

	images := make([][]byte, 0, len(matches))
	for _, m := range matches {
		data, err := os.ReadFile(m)
		if err != nil {
			return nil, eris.Wrapf(err, "render: read page %s", m)
		}
		images = append(images, data)
	}
	return images, nil
}
