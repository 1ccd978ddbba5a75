package domain

import "context"

// MatchVerdict is the oracle's judgement on a single candidate. The oracle
// round-trips identifiers and scores only; the validator re-merges verdicts
// with the full candidate records.
type MatchVerdict struct {
	ID     string
	Score  float64
	Tag    MatchTag
	Reason string
}

// MatchVerdicts partitions a candidate batch into accepted and rejected.
type MatchVerdicts struct {
	Valid   []MatchVerdict
	Invalid []MatchVerdict
}

// MatchOracle evaluates candidates against a query using structured
// attributes plus the image reference when present. The oracle is lenient:
// it rejects only on category or item-type mismatch, never on close color
// variants or minor style differences. It may fail or time out; callers
// degrade to the heuristic path.
type MatchOracle interface {
	Validate(ctx context.Context, query Query, candidates []Candidate) (*MatchVerdicts, error)
}
