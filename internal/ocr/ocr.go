package ocr

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/fundops/cnpipe/internal/config"
)

// Recognizer turns rasterized page images into plain text.
type Recognizer interface {
	Recognize(ctx context.Context, pages [][]byte) (string, error)
}

// NewRecognizer creates a Recognizer based on config.
func NewRecognizer(cfg config.OCRConfig) (Recognizer, error) {
	switch cfg.Provider {
	case "local", "":
		return NewTesseract(cfg.TesseractPath, cfg.Language), nil
	case "mistral":
		if cfg.MistralKey == "" {
			return nil, eris.New("ocr: mistral provider requires mistral_api_key")
		}
		return NewMistralOCR(cfg.MistralKey, cfg.MistralModel), nil
	default:
		return nil, eris.Errorf("ocr: unknown provider %q", cfg.Provider)
	}
}
