// Package pipeline implements the recommendation stages: retrieval,
// reranking, match validation, merging, planning, and outfit composition.
// Every stage degrades instead of failing; a turn always produces a result.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"stylist-orchestrator/internal/domain"
	"stylist-orchestrator/internal/infra/fallback"
)

// deniedTokens excludes catalog verticals the stylist never recommends.
// Matched against lowercase title and category.
var deniedTokens = []string{
	"socks", "sock", "hosiery", "stocking",
	"brief", "briefs", "panty", "panties",
	"lingerie", "innerwear", "underwear", "undergarment",
	"bra", "camisole", "thermal", "thermals",
	"mask", "muffler",
}

// fanOutLimit bounds concurrent catalog searches for multi-query retrieval.
const fanOutLimit = 4

// Retriever fetches candidates from the catalog vector index.
type Retriever struct {
	encoder     domain.VectorEncoder
	index       domain.CatalogIndex
	logger      *slog.Logger
	searchLimit int
	brandCap    int
	timeout     time.Duration
}

// NewRetriever constructs a Retriever. searchLimit is the raw candidate pool
// fetched per query before filtering; brandCap bounds items per brand in the
// returned head.
func NewRetriever(encoder domain.VectorEncoder, index domain.CatalogIndex, searchLimit, brandCap int, timeout time.Duration, logger *slog.Logger) *Retriever {
	return &Retriever{
		encoder:     encoder,
		index:       index,
		logger:      logger,
		searchLimit: searchLimit,
		brandCap:    brandCap,
		timeout:     timeout,
	}
}

// RetrievalTrace records what one catalog search actually did: the text
// handed to the encoder, the hard filters applied, the counts, and timing.
// It rides on the turn result so thin or odd result sets can be explained
// without log access.
type RetrievalTrace struct {
	QueryText  string   `json:"query_text"`
	Gender     string   `json:"gender,omitempty"`
	MinPrice   *float64 `json:"min_price,omitempty"`
	MaxPrice   *float64 `json:"max_price,omitempty"`
	RawCount   int      `json:"raw_count"`
	KeptCount  int      `json:"kept_count"`
	Degraded   bool     `json:"degraded,omitempty"`
	DurationMS int64    `json:"duration_ms"`
}

// Retrieve runs one catalog search for the query and returns up to topK
// filtered candidates plus the trace of what was searched. It never returns
// an error; when the encoder or index fails, it returns placeholder
// candidates so downstream stages still run.
func (r *Retriever) Retrieve(ctx context.Context, query domain.Query, topK int) ([]domain.Candidate, RetrievalTrace) {
	start := time.Now()

	degraded := false
	candidates := fallback.Call(ctx, r.logger, "catalog_search", r.timeout,
		func(callCtx context.Context) ([]domain.Candidate, error) {
			return r.search(callCtx, query)
		},
		func(error) []domain.Candidate {
			degraded = true
			return placeholderCandidates(topK)
		},
	)

	result := r.filter(query, candidates, topK)

	trace := RetrievalTrace{
		QueryText:  query.SimilarityText(),
		Gender:     query.Gender,
		MinPrice:   query.MinPrice,
		MaxPrice:   query.MaxPrice,
		RawCount:   len(candidates),
		KeptCount:  len(result),
		Degraded:   degraded,
		DurationMS: time.Since(start).Milliseconds(),
	}

	r.logger.InfoContext(ctx, "catalog_retrieval_completed",
		slog.String("query", trace.QueryText),
		slog.Int("raw_count", trace.RawCount),
		slog.Int("result_count", trace.KeptCount),
		slog.Bool("degraded", trace.Degraded),
		slog.Int64("duration_ms", trace.DurationMS))

	return result, trace
}

// RetrieveMulti fans out one catalog search per sub-query with bounded
// concurrency and dedups the pooled results. Per-query failures degrade to
// placeholders without failing the pool.
func (r *Retriever) RetrieveMulti(ctx context.Context, queries []domain.Query, topK int) ([]domain.Candidate, []RetrievalTrace) {
	if len(queries) == 0 {
		return []domain.Candidate{}, nil
	}

	start := time.Now()
	results := make([][]domain.Candidate, len(queries))
	traces := make([]RetrievalTrace, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanOutLimit)
	for i, q := range queries {
		g.Go(func() error {
			results[i], traces[i] = r.Retrieve(gctx, q, topK)
			return nil
		})
	}
	// Retrieve never errors, so Wait cannot either.
	_ = g.Wait()

	var pooled []domain.Candidate
	seen := make(map[string]struct{})
	for _, batch := range results {
		for _, c := range batch {
			key := c.DedupKey()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			pooled = append(pooled, c)
		}
	}

	r.logger.InfoContext(ctx, "parallel_retrieval_completed",
		slog.Int("query_count", len(queries)),
		slog.Int("pooled_count", len(pooled)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))

	return pooled, traces
}

// search encodes the similarity text and queries the index for twice the
// configured limit, leaving headroom for the filters.
func (r *Retriever) search(ctx context.Context, query domain.Query) ([]domain.Candidate, error) {
	vectors, err := r.encoder.Encode(ctx, []string{query.SimilarityText()})
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("encoder returned no vectors")
	}

	filters := domain.SearchFilters{
		Gender:   query.Gender,
		MinPrice: query.MinPrice,
		MaxPrice: query.MaxPrice,
	}
	candidates, err := r.index.Search(ctx, vectors[0], filters, r.searchLimit*2)
	if err != nil {
		return nil, fmt.Errorf("failed to search catalog: %w", err)
	}

	for i := range candidates {
		candidates[i].Origin = query.Origin
	}
	return candidates, nil
}

// filter drops denied verticals, caps per-brand repetition, and trims to
// topK. Brand-capped overflow goes to the tail rather than being dropped, so
// a sparse catalog can still fill the pool.
func (r *Retriever) filter(query domain.Query, candidates []domain.Candidate, topK int) []domain.Candidate {
	kept := make([]domain.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if isDeniedItem(c) {
			continue
		}
		kept = append(kept, c)
	}

	capped := make([]domain.Candidate, 0, len(kept))
	var overflow []domain.Candidate
	brandCounts := make(map[string]int)
	for _, c := range kept {
		brand := c.BrandKey()
		if r.brandCap > 0 && brandCounts[brand] >= r.brandCap {
			overflow = append(overflow, c)
			continue
		}
		brandCounts[brand]++
		capped = append(capped, c)
	}
	capped = append(capped, overflow...)

	if topK > 0 && len(capped) > topK {
		capped = capped[:topK]
	}
	return capped
}

func isDeniedItem(c domain.Candidate) bool {
	haystack := strings.ToLower(c.Title + " " + c.Category)
	for _, token := range deniedTokens {
		if strings.Contains(haystack, token) {
			return true
		}
	}
	return false
}

// placeholderCandidates stands in for a failed catalog search. Scores decay
// so order stays deterministic downstream.
func placeholderCandidates(limit int) []domain.Candidate {
	n := limit
	if n > 8 || n <= 0 {
		n = 8
	}
	candidates := make([]domain.Candidate, n)
	for i := range candidates {
		candidates[i] = domain.Candidate{
			ID:     fmt.Sprintf("%s-%d", domain.SourceCatalogFallback, i),
			Title:  "Catalog temporarily unavailable",
			Brand:  "Fallback",
			Source: domain.SourceCatalogFallback,
			Score:  1.0 - float64(i)*0.01,
		}
	}
	return candidates
}
