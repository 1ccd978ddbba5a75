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

// ClassifyRequest is the request payload for the classify endpoint. Recent
// history gives the classifier conversational context for follow-ups.
type ClassifyRequest struct {
	Message string           `json:"message"`
	History []domain.Message `json:"history,omitempty"`
}

// ClassifyResponse is the response from the classify endpoint.
type ClassifyResponse struct {
	Kind        string   `json:"kind"`
	Intent      string   `json:"intent,omitempty"`
	RawQuery    string   `json:"raw_query"`
	ItemType    string   `json:"item_type,omitempty"`
	Colors      []string `json:"colors,omitempty"`
	ColorMode   string   `json:"color_mode,omitempty"`
	Pattern     string   `json:"pattern,omitempty"`
	Fabric      string   `json:"fabric,omitempty"`
	Gender      string   `json:"gender,omitempty"`
	Occasion    string   `json:"occasion,omitempty"`
	Destination string   `json:"destination,omitempty"`
	MinPrice    *float64 `json:"min_price,omitempty"`
	MaxPrice    *float64 `json:"max_price,omitempty"`
	Confidence  float64  `json:"confidence"`

	Ambiguities        []string `json:"ambiguities,omitempty"`
	NeedsClarification bool     `json:"needs_clarification,omitempty"`
	ClarifyQuestion    string   `json:"clarify_question,omitempty"`
	ClarifyOptions     []string `json:"clarify_options,omitempty"`
}

// IntentClient implements domain.IntentClassifier via HTTP calls to the
// query understanding service.
type IntentClient struct {
	BaseURL string
	Model   string
	Client  *http.Client
	logger  *slog.Logger
}

// NewIntentClient constructs an IntentClient. If client is nil, a default
// http.Client is created with the given timeout.
func NewIntentClient(baseURL, model string, timeout time.Duration, logger *slog.Logger, client ...*http.Client) *IntentClient {
	var c *http.Client
	if len(client) > 0 && client[0] != nil {
		c = client[0]
	} else {
		c = &http.Client{Timeout: timeout}
	}
	return &IntentClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		Client:  c,
		logger:  logger,
	}
}

// Classify extracts a structured query from a raw user message.
func (c *IntentClient) Classify(ctx context.Context, message string, history []domain.Message) (domain.Query, error) {
	start := time.Now()
	c.logger.Info("classification_started",
		slog.String("message", truncateString(message, 100)),
		slog.Int("history_len", len(history)))

	reqBody := ClassifyRequest{Message: message, History: history}
	jsonPayload, err := json.Marshal(reqBody)
	if err != nil {
		return domain.Query{}, fmt.Errorf("failed to marshal classify request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/classify", c.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonPayload))
	if err != nil {
		return domain.Query{}, fmt.Errorf("failed to create classify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		c.logger.Warn("classification_failed",
			slog.String("error", err.Error()),
			slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))
		return domain.Query{}, fmt.Errorf("failed to call classify endpoint: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return domain.Query{}, fmt.Errorf("classify endpoint returned %d: %s", resp.StatusCode, truncateString(string(body), 500))
	}

	var classifyResp ClassifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&classifyResp); err != nil {
		return domain.Query{}, fmt.Errorf("failed to decode classify response: %w", err)
	}

	query := domain.Query{
		Kind:        domain.QueryKind(classifyResp.Kind),
		Intent:      classifyResp.Intent,
		RawQuery:    classifyResp.RawQuery,
		ItemType:    classifyResp.ItemType,
		Colors:      classifyResp.Colors,
		ColorMode:   domain.ColorMode(classifyResp.ColorMode),
		Pattern:     classifyResp.Pattern,
		Fabric:      classifyResp.Fabric,
		Gender:      classifyResp.Gender,
		Occasion:    classifyResp.Occasion,
		Destination: classifyResp.Destination,
		MinPrice:    classifyResp.MinPrice,
		MaxPrice:    classifyResp.MaxPrice,
		Confidence:  classifyResp.Confidence,

		Ambiguities:        classifyResp.Ambiguities,
		NeedsClarification: classifyResp.NeedsClarification,
		ClarifyQuestion:    classifyResp.ClarifyQuestion,
		ClarifyOptions:     classifyResp.ClarifyOptions,
	}

	c.logger.Info("classification_completed",
		slog.String("kind", string(query.Kind)),
		slog.String("intent", query.Intent),
		slog.Float64("confidence", query.Confidence),
		slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))

	return query, nil
}

var _ domain.IntentClassifier = (*IntentClient)(nil)
