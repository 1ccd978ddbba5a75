package domain

import "context"

// RankDocument is the brand-stripped text representation of a candidate sent
// to the ranking oracle.
type RankDocument struct {
	// ID maps the result back to the candidate.
	ID string
	// Text is the document representation to score against the query.
	Text string
	// Score is the retrieval score, carried for logging only.
	Score float64
}

// RankResult is one entry of the permutation returned by the oracle.
type RankResult struct {
	ID    string
	Score float64
}

// RankOracle reorders candidate documents by relevance to a query text.
// It may fail or time out; callers fall back to the retrieval-given order.
type RankOracle interface {
	// Rank returns results sorted by relevance descending.
	Rank(ctx context.Context, query string, docs []RankDocument) ([]RankResult, error)

	// ModelName returns the model identifier for logging.
	ModelName() string
}
