// Package catalogdb implements the product catalog vector index on
// PostgreSQL with pgvector.
package catalogdb

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"stylist-orchestrator/internal/domain"
)

type catalogIndex struct {
	pool *pgxpool.Pool
}

// NewCatalogIndex creates a CatalogIndex backed by the catalog_items table.
func NewCatalogIndex(pool *pgxpool.Pool) domain.CatalogIndex {
	return &catalogIndex{pool: pool}
}

// Search runs a cosine-distance nearest-neighbor query over catalog_items.
// Gender filters match the requested gender plus unisex items; items with no
// gender recorded are treated as unisex.
func (r *catalogIndex) Search(ctx context.Context, queryVector []float32, filters domain.SearchFilters, limit int) ([]domain.Candidate, error) {
	if limit <= 0 {
		return []domain.Candidate{}, nil
	}

	query := `
		SELECT id, title, brand, category,
		       price, compare_at_price, currency,
		       colors, pattern, fabric, gender, image_url, product_url,
		       1 - (embedding <=> $1) AS score
		FROM catalog_items
		WHERE ($2::text = '' OR gender = ANY(ARRAY[$2::text, 'unisex', '']))
		  AND ($3::numeric IS NULL OR price >= $3)
		  AND ($4::numeric IS NULL OR price <= $4)
		ORDER BY embedding <=> $1
		LIMIT $5
	`

	rows, err := r.pool.Query(ctx, query,
		pgvector.NewVector(queryVector),
		filters.Gender,
		filters.MinPrice,
		filters.MaxPrice,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog items: %w", err)
	}
	defer rows.Close()

	var candidates []domain.Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return candidates, nil
}

func scanCandidate(rows pgx.Rows) (domain.Candidate, error) {
	var c domain.Candidate
	c.Source = domain.SourceCatalog
	if err := rows.Scan(
		&c.ID, &c.Title, &c.Brand, &c.Category,
		&c.Price.Value, &c.Price.CompareAt, &c.Price.Currency,
		&c.Colors, &c.Pattern, &c.Fabric, &c.Gender, &c.ImageURL, &c.URL,
		&c.Score,
	); err != nil {
		return domain.Candidate{}, fmt.Errorf("failed to scan catalog item: %w", err)
	}
	if c.Price.Value != nil && c.Price.CompareAt != nil && *c.Price.CompareAt > *c.Price.Value {
		discount := (*c.Price.CompareAt - *c.Price.Value) / *c.Price.CompareAt * 100
		c.Price.Discount = &discount
	}
	return c, nil
}
