package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"stylist-orchestrator/internal/domain"
	"stylist-orchestrator/internal/infra/fallback"
)

const (
	outfitMinItems = 2
	outfitMaxItems = 4
)

// OutfitBuilder groups a ranked product pool into wearable outfits.
type OutfitBuilder struct {
	composer domain.OutfitComposer
	logger   *slog.Logger
	timeout  time.Duration
}

// NewOutfitBuilder constructs an OutfitBuilder.
func NewOutfitBuilder(composer domain.OutfitComposer, timeout time.Duration, logger *slog.Logger) *OutfitBuilder {
	return &OutfitBuilder{composer: composer, logger: logger, timeout: timeout}
}

// Build asks the composer for outfits and sanitizes the result: every outfit
// must reference 2 to 4 products that exist in the pool. When the composer
// fails or returns nothing usable, products are chunked into outfits
// deterministically.
func (b *OutfitBuilder) Build(ctx context.Context, products []domain.Candidate, octx domain.OutfitContext) []domain.Outfit {
	if len(products) < outfitMinItems {
		return []domain.Outfit{}
	}

	start := time.Now()
	outfits := fallback.Call(ctx, b.logger, "outfit_composer", b.timeout,
		func(callCtx context.Context) ([]domain.Outfit, error) {
			return b.composer.Compose(callCtx, products, octx)
		},
		func(error) []domain.Outfit {
			return nil
		},
	)

	known := make(map[string]struct{}, len(products))
	for _, p := range products {
		known[p.ID] = struct{}{}
	}

	sanitized := make([]domain.Outfit, 0, len(outfits))
	for _, o := range outfits {
		ids := make([]string, 0, len(o.ProductIDs))
		for _, id := range o.ProductIDs {
			if _, ok := known[id]; ok {
				ids = append(ids, id)
			}
		}
		if len(ids) < outfitMinItems {
			continue
		}
		if len(ids) > outfitMaxItems {
			ids = ids[:outfitMaxItems]
		}
		o.ProductIDs = ids
		sanitized = append(sanitized, o)
	}

	if len(sanitized) == 0 {
		sanitized = chunkIntoOutfits(products)
	}

	b.logger.InfoContext(ctx, "outfit_composition_stage_completed",
		slog.Int("product_count", len(products)),
		slog.Int("outfit_count", len(sanitized)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))

	return sanitized
}

// chunkIntoOutfits is the deterministic fallback grouping: consecutive
// ranked products in chunks of three.
func chunkIntoOutfits(products []domain.Candidate) []domain.Outfit {
	var outfits []domain.Outfit
	for i := 0; i < len(products); i += 3 {
		end := i + 3
		if end > len(products) {
			end = len(products)
		}
		chunk := products[i:end]
		if len(chunk) < outfitMinItems {
			break
		}
		ids := make([]string, len(chunk))
		for j, p := range chunk {
			ids[j] = p.ID
		}
		outfits = append(outfits, domain.Outfit{
			Name:        fmt.Sprintf("Look %d", len(outfits)+1),
			Description: "A coordinated set from your results.",
			ProductIDs:  ids,
		})
	}
	return outfits
}
