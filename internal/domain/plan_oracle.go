package domain

import "context"

// RetrievalPlan is the raw expansion of a broad intent before the pipeline
// enforces its caps and gender policy.
type RetrievalPlan struct {
	ProductQueries []string
	WebQueries     []string
	WeatherQuery   string
}

// PlanOracle decomposes a broad intent into focused micro-queries. On total
// failure the planner stage degrades to a deterministic template expansion.
type PlanOracle interface {
	Plan(ctx context.Context, query Query) (*RetrievalPlan, error)
}

// OutfitContext is the side information handed to the outfit composer.
type OutfitContext struct {
	Destination    string
	Occasion       string
	Gender         string
	WeatherSummary string
	DressingRules  []string
}

// OutfitComposer groups pooled validated candidates into 2-4 item outfits.
// Only candidate identifiers already in the pool may appear in the output.
type OutfitComposer interface {
	Compose(ctx context.Context, products []Candidate, octx OutfitContext) ([]Outfit, error)
}
