package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"stylist-orchestrator/internal/domain"
	"stylist-orchestrator/internal/infra/fallback"
)

// disallowedVerticals are query topics the planner must not fan out into.
var disallowedVerticals = []string{
	"shoe", "shoes", "sneaker", "sneakers", "footwear",
	"sandal", "sandals", "heel", "heels", "boot", "boots",
}

var menTokens = []string{"men's", "mens", "men", "male"}
var womenTokens = []string{"women's", "womens", "women", "female"}

// Planner decomposes broad requests into bounded sub-query plans.
type Planner struct {
	oracle        domain.PlanOracle
	logger        *slog.Logger
	maxSubQueries int
	timeout       time.Duration
}

// NewPlanner constructs a Planner.
func NewPlanner(oracle domain.PlanOracle, maxSubQueries int, timeout time.Duration, logger *slog.Logger) *Planner {
	return &Planner{
		oracle:        oracle,
		logger:        logger,
		maxSubQueries: maxSubQueries,
		timeout:       timeout,
	}
}

// BuildPlan asks the oracle for a retrieval plan, then enforces the fan-out
// cap, the gender rewrite, and the vertical filter. A failed oracle call
// yields an empty plan; the orchestrator turns that into a generic reply
// instead of a pipeline run.
func (p *Planner) BuildPlan(ctx context.Context, query domain.Query) *domain.RetrievalPlan {
	start := time.Now()

	plan := fallback.Call(ctx, p.logger, "plan_oracle", p.timeout,
		func(callCtx context.Context) (*domain.RetrievalPlan, error) {
			return p.oracle.Plan(callCtx, query)
		},
		func(error) *domain.RetrievalPlan {
			return &domain.RetrievalPlan{}
		},
	)

	plan.ProductQueries = filterVerticals(plan.ProductQueries)
	if p.maxSubQueries > 0 && len(plan.ProductQueries) > p.maxSubQueries {
		plan.ProductQueries = plan.ProductQueries[:p.maxSubQueries]
	}
	if query.HasGender() {
		plan.ProductQueries = EnforceGender(plan.ProductQueries, query.Gender)
	}

	p.logger.InfoContext(ctx, "plan_built",
		slog.Int("product_query_count", len(plan.ProductQueries)),
		slog.Int("web_query_count", len(plan.WebQueries)),
		slog.String("weather_query", plan.WeatherQuery),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))

	return plan
}

// EnforceGender rewrites each sub-query so catalog retrieval cannot drift to
// the wrong gender: queries already mentioning the gender pass through,
// queries mentioning the opposite gender get the token swapped, and the rest
// get a gender prefix.
func EnforceGender(queries []string, gender string) []string {
	prefix, ownTokens, oppositeTokens := genderTokens(gender)

	rewritten := make([]string, len(queries))
	for i, q := range queries {
		low := strings.ToLower(q)
		if containsAnyToken(low, ownTokens) {
			rewritten[i] = q
			continue
		}
		if token := firstToken(low, oppositeTokens); token != "" {
			rewritten[i] = replaceTokenFold(q, token, prefix)
			continue
		}
		rewritten[i] = prefix + " " + q
	}
	return rewritten
}

func genderTokens(gender string) (prefix string, own, opposite []string) {
	if gender == domain.GenderMen {
		return "men's", menTokens, womenTokens
	}
	return "women's", womenTokens, menTokens
}

func containsAnyToken(low string, tokens []string) bool {
	return firstToken(low, tokens) != ""
}

// firstToken returns the first token present as a whole word in low.
func firstToken(low string, tokens []string) string {
	fields := tokenFields(low)
	for _, token := range tokens {
		if _, ok := fields[token]; ok {
			return token
		}
	}
	return ""
}

func tokenFields(low string) map[string]struct{} {
	fields := make(map[string]struct{})
	for _, f := range strings.Fields(low) {
		fields[strings.Trim(f, ",.;:!?")] = struct{}{}
	}
	return fields
}

// replaceTokenFold replaces whole-word occurrences of token in q,
// case-insensitively.
func replaceTokenFold(q, token, replacement string) string {
	fields := strings.Fields(q)
	for i, f := range fields {
		if strings.EqualFold(strings.Trim(f, ",.;:!?"), token) {
			fields[i] = replacement
		}
	}
	return strings.Join(fields, " ")
}

// filterVerticals drops sub-queries targeting categories outside the
// assortment.
func filterVerticals(queries []string) []string {
	kept := make([]string, 0, len(queries))
	for _, q := range queries {
		fields := tokenFields(strings.ToLower(q))
		blocked := false
		for _, vertical := range disallowedVerticals {
			if _, ok := fields[vertical]; ok {
				blocked = true
				break
			}
		}
		if !blocked {
			kept = append(kept, q)
		}
	}
	return kept
}
