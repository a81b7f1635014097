package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fundops/cnpipe/internal/resilience"
)

const defaultLocalBaseURL = "http://127.0.0.1:8080"

// LocalOracle answers prompts with a llama.cpp-compatible server's
// /completion endpoint.
type LocalOracle struct {
	baseURL     string
	maxTokens   int64
	temperature float64
	client      *http.Client
	retry       resilience.RetryConfig
}

// NewLocalOracle creates a LocalOracle. An empty baseURL falls back to the
// default llama.cpp address.
func NewLocalOracle(baseURL string, maxTokens int64, temperature float64) *LocalOracle {
	if baseURL == "" {
		baseURL = defaultLocalBaseURL
	}
	if maxTokens <= 0 {
		maxTokens = 500
	}
	return &LocalOracle{
		baseURL:     strings.TrimRight(baseURL, "/"),
		maxTokens:   maxTokens,
		temperature: temperature,
		client:      &http.Client{Timeout: 10 * time.Minute},
		retry:       resilience.DefaultRetryConfig(),
	}
}

type localCompletionRequest struct {
	Prompt      string  `json:"prompt"`
	NPredict    int64   `json:"n_predict"`
	Temperature float64 `json:"temperature"`
	Stream      bool    `json:"stream"`
}

type localCompletionResponse struct {
	Content string `json:"content"`
}

// Infer posts the prompt to /completion and returns the generated text.
func (o *LocalOracle) Infer(ctx context.Context, prompt string) (string, error) {
	reqBody := localCompletionRequest{
		Prompt:      prompt,
		NPredict:    o.maxTokens,
		Temperature: o.temperature,
		Stream:      false,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", eris.Wrap(err, "oracle: marshal completion request")
	}

	respBody, err := resilience.DoVal(ctx, o.retry, "local_completion", func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/completion", bytes.NewReader(bodyBytes))
		if err != nil {
			return nil, eris.Wrap(err, "oracle: create completion request")
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := o.client.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "oracle: completion call")
		}
		defer resp.Body.Close() //nolint:errcheck

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "oracle: read completion response")
		}

		if resp.StatusCode != http.StatusOK {
			apiErr := eris.Errorf("oracle: completion server returned %d: %s", resp.StatusCode, string(body))
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return nil, resilience.NewTransientError(apiErr, resp.StatusCode)
			}
			return nil, apiErr
		}
		return body, nil
	})
	if err != nil {
		return "", err
	}

	var compResp localCompletionResponse
	if err := json.Unmarshal(respBody, &compResp); err != nil {
		return "", eris.Wrap(err, "oracle: unmarshal completion response")
	}

	zap.L().Debug("oracle inference",
		zap.String("provider", "local"),
		zap.Int("response_chars", len(compResp.Content)),
	)

	return compResp.Content, nil
}
