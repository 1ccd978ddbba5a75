// Package oracle holds HTTP clients for the model services the pipeline
// depends on: the embedder, the reranker, the match validator, and the
// planner.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"stylist-orchestrator/internal/domain"
)

// EmbedClient implements domain.VectorEncoder via HTTP calls to the
// embedding service.
type EmbedClient struct {
	BaseURL string
	Model   string
	Client  *http.Client
	logger  *slog.Logger
}

// NewEmbedClient constructs an EmbedClient. If client is nil, a default
// http.Client is created with the given timeout.
func NewEmbedClient(baseURL, model string, timeout time.Duration, logger *slog.Logger, client ...*http.Client) *EmbedClient {
	var c *http.Client
	if len(client) > 0 && client[0] != nil {
		c = client[0]
	} else {
		c = &http.Client{Timeout: timeout}
	}
	return &EmbedClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		Client:  c,
		logger:  logger,
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Encode turns similarity texts into dense vectors.
func (e *EmbedClient) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	start := time.Now()
	e.logger.Info("embedding_started",
		slog.Int("text_count", len(texts)),
		slog.String("model", e.Model))

	reqBody := embedRequest{Model: e.Model, Input: texts}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embed request: %w", err)
	}

	url := fmt.Sprintf("%s/api/embed", e.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.Client.Do(req)
	if err != nil {
		e.logger.Warn("embedding_failed",
			slog.String("error", err.Error()),
			slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))
		return nil, fmt.Errorf("failed to call embed endpoint: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		e.logger.Warn("embedding_failed",
			slog.Int("status_code", resp.StatusCode),
			slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))
		return nil, fmt.Errorf("embed endpoint returned %d", resp.StatusCode)
	}

	var respBody embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&respBody); err != nil {
		return nil, fmt.Errorf("failed to decode embed response: %w", err)
	}

	if len(respBody.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed endpoint returned %d embeddings for %d texts", len(respBody.Embeddings), len(texts))
	}

	e.logger.Info("embedding_completed",
		slog.Int("embedding_count", len(respBody.Embeddings)),
		slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))

	return respBody.Embeddings, nil
}

// Version returns the embedding model identifier. Vectors from different
// model versions are not comparable.
func (e *EmbedClient) Version() string {
	return e.Model
}

var _ domain.VectorEncoder = (*EmbedClient)(nil)
