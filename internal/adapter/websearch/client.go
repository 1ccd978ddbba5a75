// Package websearch implements web product search, dressing-norm mining, and
// trend lookups on top of the web search service.
package websearch

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

// searchRequest is the request payload for the search endpoint.
type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
	Kind  string `json:"kind,omitempty"`
}

// searchResult is a single product result from the search endpoint.
type searchResult struct {
	Title    string   `json:"title"`
	Brand    string   `json:"brand,omitempty"`
	Category string   `json:"category,omitempty"`
	Price    float64  `json:"price,omitempty"`
	Currency string   `json:"currency,omitempty"`
	Colors   []string `json:"colors,omitempty"`
	Pattern  string   `json:"pattern,omitempty"`
	Fabric   string   `json:"fabric,omitempty"`
	ImageURL string   `json:"image_url,omitempty"`
	URL      string   `json:"url"`
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

type snippetResponse struct {
	Snippets []string `json:"snippets"`
}

// Client talks to the web search service. It implements domain.WebSearcher,
// domain.NormMiner, and domain.TrendsSource.
type Client struct {
	BaseURL string
	Client  *http.Client
	logger  *slog.Logger
}

// NewClient constructs a web search Client. If client is nil, a default
// http.Client is created with the given timeout.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger, client ...*http.Client) *Client {
	var c *http.Client
	if len(client) > 0 && client[0] != nil {
		c = client[0]
	} else {
		c = &http.Client{Timeout: timeout}
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  c,
		logger:  logger,
	}
}

// Search finds products on the open web. Results are normalized into
// candidates with synthetic IDs and a flat baseline score, so downstream
// stages treat them exactly like catalog candidates.
func (c *Client) Search(ctx context.Context, text string, limit int) ([]domain.Candidate, error) {
	start := time.Now()
	c.logger.Info("web_search_started",
		slog.String("query", truncateString(text, 100)),
		slog.Int("limit", limit))

	var resp searchResponse
	if err := c.post(ctx, "/v1/search", searchRequest{Query: text, Limit: limit, Kind: "products"}, &resp); err != nil {
		c.logger.Warn("web_search_failed",
			slog.String("error", err.Error()),
			slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))
		return nil, err
	}

	results := resp.Results
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	candidates := make([]domain.Candidate, 0, len(results))
	for i, r := range results {
		brand := r.Brand
		if brand == "" {
			brand = "WebSource"
		}
		price := domain.Price{Currency: r.Currency}
		if r.Price > 0 {
			v := r.Price
			price.Value = &v
		}
		candidates = append(candidates, domain.Candidate{
			ID:       fmt.Sprintf("web-%d", i),
			Title:    r.Title,
			Brand:    brand,
			Category: r.Category,
			Price:    price,
			Colors:   r.Colors,
			Pattern:  r.Pattern,
			Fabric:   r.Fabric,
			ImageURL: r.ImageURL,
			URL:      r.URL,
			Source:   domain.SourceWeb,
			Score:    0.5,
		})
	}

	c.logger.Info("web_search_completed",
		slog.Int("result_count", len(candidates)),
		slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))

	return candidates, nil
}

// MineRules extracts local dressing norms for a destination from web
// snippets.
func (c *Client) MineRules(ctx context.Context, query string) ([]string, error) {
	var resp snippetResponse
	if err := c.post(ctx, "/v1/search", searchRequest{Query: query, Kind: "snippets"}, &resp); err != nil {
		return nil, err
	}
	return resp.Snippets, nil
}

// TrendsText returns a short summary of what is currently trending in
// fashion.
func (c *Client) TrendsText(ctx context.Context) (string, error) {
	var resp snippetResponse
	if err := c.post(ctx, "/v1/search", searchRequest{Query: "current fashion trends this season", Kind: "snippets"}, &resp); err != nil {
		return "", err
	}
	if len(resp.Snippets) == 0 {
		return "", fmt.Errorf("trends search returned no snippets")
	}
	return strings.Join(resp.Snippets, "\n"), nil
}

func (c *Client) post(ctx context.Context, path string, reqBody, respBody any) error {
	jsonPayload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(jsonPayload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s returned %d: %s", path, resp.StatusCode, truncateString(string(body), 500))
	}

	if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

var (
	_ domain.WebSearcher  = (*Client)(nil)
	_ domain.NormMiner    = (*Client)(nil)
	_ domain.TrendsSource = (*Client)(nil)
)
