package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"codegraph/internal/logging"
)

// HTTPConfig configures the remote embedding provider. Its shape mirrors the
// per-provider blocks in config.MCPEmbeddingConfig (baseUrl, timeoutMs,
// concurrency, maxBatchSize). NewHTTPEngine gives BaseURL no default;
// config.DefaultConfig points the ollama block's baseUrl at a local Ollama
// endpoint, which is the reference deployment target for this provider even
// though no Ollama-specific client package is used (see DESIGN.md).
type HTTPConfig struct {
	BaseURL      string
	Model        string
	TimeoutMs    int
	Concurrency  int
	MaxBatchSize int
	Dim          int
}

// HTTPEngine calls an OpenAI/Ollama-style `/api/embeddings` JSON endpoint.
type HTTPEngine struct {
	cfg     HTTPConfig
	client  *http.Client
	limiter *rate.Limiter
}

// NewHTTPEngine builds the remote provider.
func NewHTTPEngine(cfg HTTPConfig) *HTTPEngine {
	if cfg.TimeoutMs <= 0 {
		cfg.TimeoutMs = 10_000
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 32
	}
	if cfg.Dim <= 0 {
		cfg.Dim = 384
	}
	return &HTTPEngine{
		cfg:     cfg,
		client:  &http.Client{Timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond},
		limiter: rate.NewLimiter(rate.Limit(cfg.Concurrency), cfg.Concurrency),
	}
}

func (e *HTTPEngine) Name() string    { return "http:" + e.cfg.Model }
func (e *HTTPEngine) Dimensions() int { return e.cfg.Dim }

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (e *HTTPEngine) Generate(ctx context.Context, text string) ([]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(embeddingRequest{Model: e.cfg.Model, Input: text})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.BaseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding: provider returned %d: %s", resp.StatusCode, string(b))
	}

	var parsed embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("embedding: decode response: %w", err)
	}
	return parsed.Embedding, nil
}

func (e *HTTPEngine) GenerateBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.cfg.MaxBatchSize {
		end := start + e.cfg.MaxBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		for _, t := range texts[start:end] {
			v, err := e.Generate(ctx, t)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
	}
	return out, nil
}

// HealthCheck pings the provider's root endpoint.
func (e *HTTPEngine) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.cfg.BaseURL, nil)
	if err != nil {
		return err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		logging.Get(logging.Embedding).Warn("http embedding provider health check failed", map[string]any{"error": err.Error()})
		return err
	}
	defer resp.Body.Close()
	return nil
}
