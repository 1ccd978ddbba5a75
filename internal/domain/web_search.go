package domain

import "context"

// WebSearcher is the open-web fallback source, used only when catalog yield
// is below threshold. Results are normalized into Candidates with
// SourceWeb provenance.
type WebSearcher interface {
	Search(ctx context.Context, text string, limit int) ([]Candidate, error)
}

// NormMiner extracts concise dressing rules and cultural norms for a web
// query (destination norms, seasonal guidance). Failures yield an empty
// rule list, never an error surfaced to the turn.
type NormMiner interface {
	MineRules(ctx context.Context, query string) ([]string, error)
}

// TrendsSource produces a compact fashion-trend summary. The orchestrator
// caches the result process-wide with a TTL.
type TrendsSource interface {
	TrendsText(ctx context.Context) (string, error)
}
