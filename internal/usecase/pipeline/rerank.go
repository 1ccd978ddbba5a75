package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"stylist-orchestrator/internal/domain"
	"stylist-orchestrator/internal/infra/fallback"
)

// Reranker reorders candidates with the cross-encoder oracle and enforces
// brand diversity in the head of the list.
type Reranker struct {
	oracle          domain.RankOracle
	logger          *slog.Logger
	topK            int
	brandCap        int
	diversityWindow int
	timeout         time.Duration
}

// NewReranker constructs a Reranker. brandCap bounds repeats per brand
// within the first diversityWindow positions of the reranked list.
func NewReranker(oracle domain.RankOracle, topK, brandCap, diversityWindow int, timeout time.Duration, logger *slog.Logger) *Reranker {
	return &Reranker{
		oracle:          oracle,
		logger:          logger,
		topK:            topK,
		brandCap:        brandCap,
		diversityWindow: diversityWindow,
		timeout:         timeout,
	}
}

// Rerank scores candidates against the query and returns the top candidates
// in oracle order with brand diversity applied. When the oracle fails, the
// retrieval order is kept as-is.
func (r *Reranker) Rerank(ctx context.Context, query domain.Query, candidates []domain.Candidate) []domain.Candidate {
	if len(candidates) == 0 {
		return []domain.Candidate{}
	}

	start := time.Now()
	ordered := fallback.Call(ctx, r.logger, "rank_oracle", r.timeout,
		func(callCtx context.Context) ([]domain.Candidate, error) {
			return r.rankWithOracle(callCtx, query, candidates)
		},
		func(error) []domain.Candidate {
			// Identity fallback keeps retrieval order.
			return append([]domain.Candidate(nil), candidates...)
		},
	)

	diversified := diversifyBrands(ordered, r.brandCap, r.diversityWindow)
	if r.topK > 0 && len(diversified) > r.topK {
		diversified = diversified[:r.topK]
	}

	r.logger.InfoContext(ctx, "rerank_stage_completed",
		slog.Int("input_count", len(candidates)),
		slog.Int("output_count", len(diversified)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))

	return diversified
}

func (r *Reranker) rankWithOracle(ctx context.Context, query domain.Query, candidates []domain.Candidate) ([]domain.Candidate, error) {
	docs := make([]domain.RankDocument, len(candidates))
	byID := make(map[string]domain.Candidate, len(candidates))
	for i, c := range candidates {
		id := c.DedupKey()
		docs[i] = domain.RankDocument{ID: id, Text: rankDocText(c), Score: c.Score}
		byID[id] = c
	}

	results, err := r.oracle.Rank(ctx, query.RankText(), docs)
	if err != nil {
		return nil, err
	}

	ordered := make([]domain.Candidate, 0, len(results))
	seen := make(map[string]struct{}, len(results))
	for _, res := range results {
		c, ok := byID[res.ID]
		if !ok {
			continue
		}
		c.Score = res.Score
		ordered = append(ordered, c)
		seen[res.ID] = struct{}{}
	}
	// The oracle returns a permutation; anything it dropped goes to the tail
	// in retrieval order.
	for _, c := range candidates {
		if _, ok := seen[c.DedupKey()]; !ok {
			ordered = append(ordered, c)
		}
	}
	return ordered, nil
}

// rankDocText builds the document representation scored by the oracle. The
// brand is stripped from the title so the cross-encoder ranks on attributes,
// not brand familiarity.
func rankDocText(c domain.Candidate) string {
	title := strings.ToLower(c.Title)
	if brand := strings.ToLower(strings.TrimSpace(c.Brand)); brand != "" {
		title = strings.TrimSpace(strings.ReplaceAll(title, brand, ""))
	}

	parts := []string{title}
	if c.Pattern != "" {
		parts = append(parts, "pattern: "+c.Pattern)
	}
	if c.Fabric != "" {
		parts = append(parts, "fabric: "+c.Fabric)
	}
	if c.Price.Value != nil {
		parts = append(parts, fmt.Sprintf("price: %.0f %s", *c.Price.Value, c.Price.Currency))
	}
	return strings.Join(parts, ". ")
}

// diversifyBrands limits repeats per brand inside the top window. Overflow
// moves behind the window instead of being dropped.
func diversifyBrands(candidates []domain.Candidate, brandCap, window int) []domain.Candidate {
	if brandCap <= 0 || window <= 0 || len(candidates) <= 1 {
		return candidates
	}

	head := make([]domain.Candidate, 0, len(candidates))
	var overflow []domain.Candidate
	brandCounts := make(map[string]int)
	for _, c := range candidates {
		if len(head) >= window {
			head = append(head, c)
			continue
		}
		brand := c.BrandKey()
		if brandCounts[brand] >= brandCap {
			overflow = append(overflow, c)
			continue
		}
		brandCounts[brand]++
		head = append(head, c)
	}

	if len(overflow) == 0 {
		return head
	}
	result := make([]domain.Candidate, 0, len(head)+len(overflow))
	if len(head) >= window {
		result = append(result, head[:window]...)
		result = append(result, overflow...)
		result = append(result, head[window:]...)
	} else {
		result = append(result, head...)
		result = append(result, overflow...)
	}
	return result
}

// BalanceByOrigin interleaves the reranked pool round-robin across
// sub-query origins so no single sub-query dominates the head. Each origin
// contributes at most perOriginCap items in the balanced prefix; remaining
// slots fill in ranked order.
func BalanceByOrigin(candidates []domain.Candidate, perOriginCap int) []domain.Candidate {
	if perOriginCap <= 0 || len(candidates) <= 1 {
		return candidates
	}

	var originOrder []string
	buckets := make(map[string][]domain.Candidate)
	for _, c := range candidates {
		if _, ok := buckets[c.Origin]; !ok {
			originOrder = append(originOrder, c.Origin)
		}
		buckets[c.Origin] = append(buckets[c.Origin], c)
	}
	if len(originOrder) <= 1 {
		return candidates
	}

	picked := make([]domain.Candidate, 0, len(candidates))
	taken := make(map[string]struct{}, len(candidates))
	for round := 0; round < perOriginCap; round++ {
		for _, origin := range originOrder {
			bucket := buckets[origin]
			if round >= len(bucket) {
				continue
			}
			c := bucket[round]
			picked = append(picked, c)
			taken[c.DedupKey()] = struct{}{}
		}
	}
	for _, c := range candidates {
		if _, ok := taken[c.DedupKey()]; ok {
			continue
		}
		picked = append(picked, c)
	}
	return picked
}
