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

// PlanRequest is the request payload for the plan endpoint.
type PlanRequest struct {
	RawQuery    string `json:"raw_query"`
	Destination string `json:"destination,omitempty"`
	Occasion    string `json:"occasion,omitempty"`
	Gender      string `json:"gender,omitempty"`
}

// PlanResponse is the response from the plan endpoint.
type PlanResponse struct {
	ProductQueries []string `json:"product_queries"`
	WebQueries     []string `json:"web_queries"`
	WeatherQuery   string   `json:"weather_query"`
}

// OutfitRequest is the request payload for the outfits endpoint.
type OutfitRequest struct {
	Products    []OutfitProduct `json:"products"`
	Destination string          `json:"destination,omitempty"`
	Occasion    string          `json:"occasion,omitempty"`
	Gender      string          `json:"gender,omitempty"`
	Weather     string          `json:"weather,omitempty"`
	Rules       []string        `json:"dressing_rules,omitempty"`
}

// OutfitProduct is a single product in the outfits request.
type OutfitProduct struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Category string `json:"category,omitempty"`
}

// OutfitResponse is the response from the outfits endpoint.
type OutfitResponse struct {
	Outfits []struct {
		Name        string   `json:"name"`
		Description string   `json:"description"`
		ProductIDs  []string `json:"product_ids"`
	} `json:"outfits"`
}

// PlanClient implements domain.PlanOracle and domain.OutfitComposer via HTTP
// calls to the planner service. Both concerns live on the same service, so
// they share one client.
type PlanClient struct {
	BaseURL string
	Model   string
	Client  *http.Client
	logger  *slog.Logger
}

// NewPlanClient constructs a PlanClient. If client is nil, a default
// http.Client is created with the given timeout.
func NewPlanClient(baseURL, model string, timeout time.Duration, logger *slog.Logger, client ...*http.Client) *PlanClient {
	var c *http.Client
	if len(client) > 0 && client[0] != nil {
		c = client[0]
	} else {
		c = &http.Client{Timeout: timeout}
	}
	return &PlanClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		Client:  c,
		logger:  logger,
	}
}

// Plan decomposes a broad request into catalog queries, web queries, and an
// optional weather lookup.
func (c *PlanClient) Plan(ctx context.Context, query domain.Query) (*domain.RetrievalPlan, error) {
	start := time.Now()
	c.logger.Info("planning_started",
		slog.String("query", truncateString(query.RawQuery, 100)))

	reqBody := PlanRequest{
		RawQuery:    query.RawQuery,
		Destination: query.Destination,
		Occasion:    query.Occasion,
		Gender:      query.Gender,
	}

	var planResp PlanResponse
	if err := c.post(ctx, "/v1/plan", reqBody, &planResp); err != nil {
		c.logger.Warn("planning_failed",
			slog.String("error", err.Error()),
			slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))
		return nil, err
	}

	c.logger.Info("planning_completed",
		slog.Int("product_query_count", len(planResp.ProductQueries)),
		slog.Int("web_query_count", len(planResp.WebQueries)),
		slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))

	return &domain.RetrievalPlan{
		ProductQueries: planResp.ProductQueries,
		WebQueries:     planResp.WebQueries,
		WeatherQuery:   planResp.WeatherQuery,
	}, nil
}

// Compose groups ranked products into wearable outfits.
func (c *PlanClient) Compose(ctx context.Context, products []domain.Candidate, octx domain.OutfitContext) ([]domain.Outfit, error) {
	if len(products) == 0 {
		return []domain.Outfit{}, nil
	}

	start := time.Now()
	reqBody := OutfitRequest{
		Products:    make([]OutfitProduct, len(products)),
		Destination: octx.Destination,
		Occasion:    octx.Occasion,
		Gender:      octx.Gender,
		Weather:     octx.WeatherSummary,
		Rules:       octx.DressingRules,
	}
	for i, p := range products {
		reqBody.Products[i] = OutfitProduct{ID: p.ID, Title: p.Title, Category: p.Category}
	}

	var outfitResp OutfitResponse
	if err := c.post(ctx, "/v1/outfits", reqBody, &outfitResp); err != nil {
		c.logger.Warn("outfit_composition_failed",
			slog.String("error", err.Error()),
			slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))
		return nil, err
	}

	outfits := make([]domain.Outfit, len(outfitResp.Outfits))
	for i, o := range outfitResp.Outfits {
		outfits[i] = domain.Outfit{
			Name:        o.Name,
			Description: o.Description,
			ProductIDs:  o.ProductIDs,
		}
	}

	c.logger.Info("outfit_composition_completed",
		slog.Int("outfit_count", len(outfits)),
		slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))

	return outfits, nil
}

func (c *PlanClient) post(ctx context.Context, path string, reqBody, respBody any) error {
	jsonPayload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.BaseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonPayload))
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

var (
	_ domain.PlanOracle     = (*PlanClient)(nil)
	_ domain.OutfitComposer = (*PlanClient)(nil)
)
