package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// OllamaConfig holds the embedding client configuration.
type OllamaConfig struct {
	// BaseURL is the base URL for the Ollama API (default: http://localhost:11434)
	BaseURL string

	// Model is the embedding model name (default: nomic-embed-text)
	Model string

	// Dimension is the model's output vector length (default: 768)
	Dimension int

	// Timeout is the per-request timeout (default: 10s)
	Timeout time.Duration

	// RequestsPerSecond caps the call rate to the backend (default: 10)
	RequestsPerSecond float64

	// Breaker configures failure protection.
	Breaker BreakerConfig
}

// OllamaClient generates embeddings via Ollama's /api/embed endpoint.
// Calls pass through a rate limiter and a circuit breaker, in that order: a
// tripped breaker fails fast without consuming rate budget from recovery
// probes.
type OllamaClient struct {
	baseURL   string
	model     string
	dimension int
	client    *http.Client
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker
}

var _ Generator = (*OllamaClient)(nil)

// NewOllamaClient creates an embedding client, applying defaults for any
// zero-valued configuration field.
func NewOllamaClient(config OllamaConfig) *OllamaClient {
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.Model == "" {
		config.Model = "nomic-embed-text"
	}
	if config.Dimension == 0 {
		config.Dimension = 768
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.RequestsPerSecond == 0 {
		config.RequestsPerSecond = 10
	}

	return &OllamaClient{
		baseURL:   config.BaseURL,
		model:     config.Model,
		dimension: config.Dimension,
		client:    &http.Client{Timeout: config.Timeout},
		limiter:   rate.NewLimiter(rate.Limit(config.RequestsPerSecond), int(config.RequestsPerSecond)+1),
		breaker:   newBreaker(config.Breaker),
	}
}

// Model returns the embedding model identifier.
func (c *OllamaClient) Model() string { return c.model }

// Dimension returns the model's output vector length.
func (c *OllamaClient) Dimension() int { return c.dimension }

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

// embedResponse carries a 2D embeddings array; single-input requests always
// use the first row.
type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// Embed returns the embedding vector for the given text. A tripped breaker
// or exhausted rate budget surfaces as ErrEmbeddingUnavailable.
func (c *OllamaClient) Embed(ctx context.Context, text string) ([]float64, error) {
	if text == "" {
		return nil, fmt.Errorf("embed: text is empty")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.embed(ctx, text)
	})
	if err != nil {
		if isCircuitOpen(err) {
			return nil, fmt.Errorf("%w: circuit open", ErrEmbeddingUnavailable)
		}
		return nil, err
	}

	return result.([]float64), nil
}

func (c *OllamaClient) embed(ctx context.Context, text string) ([]float64, error) {
	body, err := json.Marshal(embedRequest{Model: c.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("embed: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embed: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embed: backend returned %d: %s", resp.StatusCode, msg)
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("embed: failed to decode response: %w", err)
	}
	if len(parsed.Embeddings) == 0 || len(parsed.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("embed: backend returned no embedding")
	}

	embedding := parsed.Embeddings[0]
	if c.dimension > 0 && len(embedding) != c.dimension {
		return nil, fmt.Errorf("embed: backend returned %d dimensions, expected %d", len(embedding), c.dimension)
	}
	return embedding, nil
}
