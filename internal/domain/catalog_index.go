package domain

import "context"

// SearchFilters are the hard constraints applied by the catalog index.
// Gender filtering always implicitly admits unisex items alongside the
// requested gender; everything softer (color, pattern, fabric) is left to
// the embedding.
type SearchFilters struct {
	Gender   string
	MinPrice *float64
	MaxPrice *float64
}

// CatalogIndex performs vector-similarity search over the product catalog.
type CatalogIndex interface {
	Search(ctx context.Context, queryVector []float32, filters SearchFilters, limit int) ([]Candidate, error)
}

// VectorEncoder generates embeddings for similarity text.
type VectorEncoder interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
	Version() string
}
