package pipeline

import (
	"sort"

	"stylist-orchestrator/internal/domain"
)

// MergeValidated combines validated candidate lists into the final bounded
// result. Lists are concatenated in argument order (catalog before web, so
// catalog wins score ties), sorted by validator score descending with a
// stable sort, deduplicated first-seen-wins, and truncated to bound.
func MergeValidated(bound int, lists ...[]domain.Candidate) []domain.Candidate {
	var pooled []domain.Candidate
	for _, list := range lists {
		pooled = append(pooled, list...)
	}
	if len(pooled) == 0 {
		return []domain.Candidate{}
	}

	sort.SliceStable(pooled, func(i, j int) bool {
		return pooled[i].ValidatorScore > pooled[j].ValidatorScore
	})

	merged := make([]domain.Candidate, 0, len(pooled))
	seen := make(map[string]struct{}, len(pooled))
	for _, c := range pooled {
		key := c.DedupKey()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, c)
	}

	if bound > 0 && len(merged) > bound {
		merged = merged[:bound]
	}
	return merged
}

// DedupCandidates removes duplicates by identity key, keeping the first
// occurrence. Used on pooled multi-query retrieval results before a shared
// rerank.
func DedupCandidates(candidates []domain.Candidate) []domain.Candidate {
	deduped := make([]domain.Candidate, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		key := c.DedupKey()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		deduped = append(deduped, c)
	}
	return deduped
}
