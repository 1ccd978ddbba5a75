package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"stylist-orchestrator/internal/domain"
)

// RankRequest is the request payload for the rerank endpoint.
type RankRequest struct {
	Query      string   `json:"query"`
	Candidates []string `json:"candidates"`
	Model      string   `json:"model,omitempty"`
	TopK       int      `json:"top_k,omitempty"`
}

// RankResponseResult is a single result in the rerank response.
type RankResponseResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// RankResponse is the response from the rerank endpoint.
type RankResponse struct {
	Results []RankResponseResult `json:"results"`
	Model   string               `json:"model"`
}

// RankClient implements domain.RankOracle via HTTP calls to the
// cross-encoder reranking service.
type RankClient struct {
	BaseURL string
	Model   string
	Client  *http.Client
	logger  *slog.Logger
}

// NewRankClient constructs a RankClient. If client is nil, a default
// http.Client is created with the given timeout.
func NewRankClient(baseURL, model string, timeout time.Duration, logger *slog.Logger, client ...*http.Client) *RankClient {
	var c *http.Client
	if len(client) > 0 && client[0] != nil {
		c = client[0]
	} else {
		c = &http.Client{Timeout: timeout}
	}
	return &RankClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		Client:  c,
		logger:  logger,
	}
}

// Rank scores documents against the query with a cross-encoder. Results come
// back sorted by score descending and are mapped from positional indices to
// document IDs.
func (c *RankClient) Rank(ctx context.Context, query string, docs []domain.RankDocument) ([]domain.RankResult, error) {
	if len(docs) == 0 {
		return []domain.RankResult{}, nil
	}

	start := time.Now()
	c.logger.Info("reranking_started",
		slog.String("query", truncateString(query, 100)),
		slog.Int("candidate_count", len(docs)),
		slog.String("model", c.Model))

	contents := make([]string, len(docs))
	for i, d := range docs {
		contents[i] = d.Text
	}

	reqBody := RankRequest{
		Query:      query,
		Candidates: contents,
		Model:      c.Model,
	}
	jsonPayload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rerank request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/rerank", c.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonPayload))
	if err != nil {
		return nil, fmt.Errorf("failed to create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		c.logger.Warn("reranking_failed",
			slog.String("error", err.Error()),
			slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))
		return nil, fmt.Errorf("failed to call rerank endpoint: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		c.logger.Warn("reranking_failed",
			slog.Int("status_code", resp.StatusCode),
			slog.String("body", truncateString(string(body), 500)),
			slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))
		return nil, fmt.Errorf("rerank endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var rankResp RankResponse
	if err := json.NewDecoder(resp.Body).Decode(&rankResp); err != nil {
		return nil, fmt.Errorf("failed to decode rerank response: %w", err)
	}

	results := make([]domain.RankResult, len(rankResp.Results))
	for i, r := range rankResp.Results {
		if r.Index < 0 || r.Index >= len(docs) {
			return nil, fmt.Errorf("invalid result index %d for %d candidates", r.Index, len(docs))
		}
		results[i] = domain.RankResult{
			ID:    docs[r.Index].ID,
			Score: r.Score,
		}
	}

	c.logger.Info("reranking_completed",
		slog.Int("result_count", len(results)),
		slog.String("model", rankResp.Model),
		slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))

	return results, nil
}

// ModelName returns the model identifier for logging.
func (c *RankClient) ModelName() string {
	return c.Model
}

var _ domain.RankOracle = (*RankClient)(nil)
