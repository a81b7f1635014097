// Package oracle sends recognized document text to a language model and
// returns its raw answer. Parsing the answer is the caller's business; the
// oracle is a dumb transport around whichever model backend is configured.
package oracle

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/fundops/cnpipe/internal/config"
)

// Oracle answers a single extraction prompt with the model's raw text.
type Oracle interface {
	Infer(ctx context.Context, prompt string) (string, error)
}

// NewOracle creates an Oracle based on config.
func NewOracle(cfg config.OracleConfig) (Oracle, error) {
	switch cfg.Provider {
	case "local", "":
		return NewLocalOracle(cfg.LocalBaseURL, cfg.MaxTokens, cfg.Temperature), nil
	case "anthropic":
		if cfg.AnthropicKey == "" {
			return nil, eris.New("oracle: anthropic provider requires anthropic_api_key")
		}
		return NewAnthropicOracle(cfg.AnthropicKey, cfg.AnthropicModel, cfg.MaxTokens, cfg.Temperature), nil
	default:
		return nil, eris.Errorf("oracle: unknown provider %q", cfg.Provider)
	}
}
