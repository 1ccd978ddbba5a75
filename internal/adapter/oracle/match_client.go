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

	"golang.org/x/time/rate"

	"stylist-orchestrator/internal/domain"
)

// MatchCandidate is a single candidate in the validate request. Image URLs
// let the service inspect the product photo, not just the metadata.
type MatchCandidate struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Brand    string   `json:"brand,omitempty"`
	Category string   `json:"category,omitempty"`
	Colors   []string `json:"colors,omitempty"`
	Pattern  string   `json:"pattern,omitempty"`
	Fabric   string   `json:"fabric,omitempty"`
	ImageURL string   `json:"image_url,omitempty"`
}

// MatchRequest is the request payload for the validate endpoint.
type MatchRequest struct {
	ItemType   string           `json:"item_type"`
	Colors     []string         `json:"colors,omitempty"`
	ColorMode  string           `json:"color_mode,omitempty"`
	Pattern    string           `json:"pattern,omitempty"`
	Fabric     string           `json:"fabric,omitempty"`
	Occasion   string           `json:"occasion,omitempty"`
	Candidates []MatchCandidate `json:"candidates"`
}

// MatchVerdictPayload is a single verdict in the validate response.
type MatchVerdictPayload struct {
	ID     string  `json:"id"`
	Score  float64 `json:"score"`
	Tag    string  `json:"tag"`
	Reason string  `json:"reason,omitempty"`
}

// MatchResponse is the response from the validate endpoint.
type MatchResponse struct {
	Valid   []MatchVerdictPayload `json:"valid"`
	Invalid []MatchVerdictPayload `json:"invalid"`
}

// MatchClient implements domain.MatchOracle via HTTP calls to the visual
// match validation service. Calls are rate limited because the service runs
// image inference per candidate.
type MatchClient struct {
	BaseURL string
	Client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewMatchClient constructs a MatchClient. ratePerSec and burst bound how
// fast validate calls may be issued.
func NewMatchClient(baseURL string, timeout time.Duration, ratePerSec float64, burst int, logger *slog.Logger, client ...*http.Client) *MatchClient {
	var c *http.Client
	if len(client) > 0 && client[0] != nil {
		c = client[0]
	} else {
		c = &http.Client{Timeout: timeout}
	}
	if ratePerSec <= 0 {
		ratePerSec = 2
	}
	if burst <= 0 {
		burst = 1
	}
	return &MatchClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  c,
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), burst),
		logger:  logger,
	}
}

// Validate asks the service which candidates actually match what the user
// asked for.
func (c *MatchClient) Validate(ctx context.Context, query domain.Query, candidates []domain.Candidate) (*domain.MatchVerdicts, error) {
	if len(candidates) == 0 {
		return &domain.MatchVerdicts{Valid: []domain.MatchVerdict{}, Invalid: []domain.MatchVerdict{}}, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("failed to acquire validate slot: %w", err)
	}

	start := time.Now()
	c.logger.Info("match_validation_started",
		slog.String("item_type", query.ItemType),
		slog.Int("candidate_count", len(candidates)))

	reqBody := MatchRequest{
		ItemType:   query.ItemType,
		Colors:     query.Colors,
		ColorMode:  string(query.ColorMode),
		Pattern:    query.Pattern,
		Fabric:     query.Fabric,
		Occasion:   query.Occasion,
		Candidates: make([]MatchCandidate, len(candidates)),
	}
	for i, cand := range candidates {
		// DedupKey, not ID: web candidates may carry only a URL, and the
		// validator re-merges verdicts by the same key.
		reqBody.Candidates[i] = MatchCandidate{
			ID:       cand.DedupKey(),
			Title:    cand.Title,
			Brand:    cand.Brand,
			Category: cand.Category,
			Colors:   cand.Colors,
			Pattern:  cand.Pattern,
			Fabric:   cand.Fabric,
			ImageURL: cand.ImageURL,
		}
	}

	jsonPayload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal validate request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/validate", c.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonPayload))
	if err != nil {
		return nil, fmt.Errorf("failed to create validate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		c.logger.Warn("match_validation_failed",
			slog.String("error", err.Error()),
			slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))
		return nil, fmt.Errorf("failed to call validate endpoint: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		c.logger.Warn("match_validation_failed",
			slog.Int("status_code", resp.StatusCode),
			slog.String("body", truncateString(string(body), 500)),
			slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))
		return nil, fmt.Errorf("validate endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var matchResp MatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&matchResp); err != nil {
		return nil, fmt.Errorf("failed to decode validate response: %w", err)
	}

	verdicts := &domain.MatchVerdicts{
		Valid:   toVerdicts(matchResp.Valid),
		Invalid: toVerdicts(matchResp.Invalid),
	}

	c.logger.Info("match_validation_completed",
		slog.Int("valid_count", len(verdicts.Valid)),
		slog.Int("invalid_count", len(verdicts.Invalid)),
		slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))

	return verdicts, nil
}

func toVerdicts(payloads []MatchVerdictPayload) []domain.MatchVerdict {
	verdicts := make([]domain.MatchVerdict, len(payloads))
	for i, p := range payloads {
		verdicts[i] = domain.MatchVerdict{
			ID:     p.ID,
			Score:  p.Score,
			Tag:    domain.MatchTag(p.Tag),
			Reason: p.Reason,
		}
	}
	return verdicts
}

var _ domain.MatchOracle = (*MatchClient)(nil)
