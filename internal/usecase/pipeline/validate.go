package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"stylist-orchestrator/internal/domain"
	"stylist-orchestrator/internal/infra/fallback"
)

// heuristicBaseScores anchor the lenient accept path per source. Catalog
// metadata is trusted more than scraped web metadata.
const (
	heuristicBaseCatalog = 0.9
	heuristicBaseWeb     = 0.8
	heuristicFloor       = 0.5
	heuristicDecayStep   = 0.02
	heuristicDecayMax    = 0.2
)

// Validator checks whether candidates actually match the query. Candidates
// with images go to the visual match oracle up to a cap; everything else is
// judged by a lenient metadata heuristic.
type Validator struct {
	oracle   domain.MatchOracle
	logger   *slog.Logger
	imageCap int
	timeout  time.Duration
}

// NewValidator constructs a Validator. imageCap bounds how many
// image-bearing candidates are sent to the oracle per call.
func NewValidator(oracle domain.MatchOracle, imageCap int, timeout time.Duration, logger *slog.Logger) *Validator {
	return &Validator{
		oracle:   oracle,
		logger:   logger,
		imageCap: imageCap,
		timeout:  timeout,
	}
}

// Validate annotates every candidate with a verdict and splits the list into
// valid and invalid, both preserving input order. It never fails a turn; an
// oracle outage downgrades the whole batch to the heuristic.
func (v *Validator) Validate(ctx context.Context, query domain.Query, candidates []domain.Candidate) (valid, invalid []domain.Candidate) {
	if len(candidates) == 0 {
		return []domain.Candidate{}, []domain.Candidate{}
	}

	start := time.Now()

	var withImage, withoutImage []domain.Candidate
	for _, c := range candidates {
		if c.HasImage() {
			withImage = append(withImage, c)
		} else {
			withoutImage = append(withoutImage, c)
		}
	}

	oracleBatch := withImage
	heuristicBatch := withoutImage
	if v.imageCap > 0 && len(oracleBatch) > v.imageCap {
		heuristicBatch = append(oracleBatch[v.imageCap:], heuristicBatch...)
		oracleBatch = oracleBatch[:v.imageCap]
	}

	verdicts := make(map[string]judgedVerdict, len(candidates))
	if len(oracleBatch) > 0 {
		batch := oracleBatch
		result := fallback.Call(ctx, v.logger, "match_oracle", v.timeout,
			func(callCtx context.Context) (*domain.MatchVerdicts, error) {
				return v.oracle.Validate(callCtx, query, batch)
			},
			func(error) *domain.MatchVerdicts {
				return heuristicVerdicts(query, batch)
			},
		)
		collectVerdicts(verdicts, result)
	}
	if len(heuristicBatch) > 0 {
		collectVerdicts(verdicts, heuristicVerdicts(query, heuristicBatch))
	}

	// Verdicts carry only IDs and scores; re-merge them with the full
	// candidate records.
	for _, c := range candidates {
		verdict, ok := verdicts[c.DedupKey()]
		if !ok {
			// No verdict at all means the candidate never reached either
			// judge; treat it as a lenient accept.
			verdict = judgedVerdict{
				MatchVerdict: domain.MatchVerdict{ID: c.DedupKey(), Score: heuristicFloor, Tag: domain.TagCloseMatch},
				valid:        true,
			}
		}
		c.ValidatorScore = verdict.Score
		c.Tag = verdict.Tag
		c.Reason = verdict.Reason
		c.Valid = verdict.valid
		if c.Valid {
			valid = append(valid, c)
		} else {
			invalid = append(invalid, c)
		}
	}

	v.logger.InfoContext(ctx, "match_validation_stage_completed",
		slog.Int("input_count", len(candidates)),
		slog.Int("oracle_batch", len(oracleBatch)),
		slog.Int("valid_count", len(valid)),
		slog.Int("invalid_count", len(invalid)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))

	if valid == nil {
		valid = []domain.Candidate{}
	}
	if invalid == nil {
		invalid = []domain.Candidate{}
	}
	return valid, invalid
}

// judgedVerdict pairs a verdict with which side of the split it came from.
type judgedVerdict struct {
	domain.MatchVerdict
	valid bool
}

func collectVerdicts(into map[string]judgedVerdict, verdicts *domain.MatchVerdicts) {
	for _, v := range verdicts.Valid {
		into[v.ID] = judgedVerdict{MatchVerdict: v, valid: true}
	}
	for _, v := range verdicts.Invalid {
		into[v.ID] = judgedVerdict{MatchVerdict: v, valid: false}
	}
}

// heuristicVerdicts is the metadata-only judge. It is deliberately lenient:
// a candidate is rejected only on explicit contradictions, never on missing
// metadata.
func heuristicVerdicts(query domain.Query, candidates []domain.Candidate) *domain.MatchVerdicts {
	verdicts := &domain.MatchVerdicts{}
	for pos, c := range candidates {
		if reason := heuristicReject(query, c); reason != "" {
			verdicts.Invalid = append(verdicts.Invalid, domain.MatchVerdict{
				ID:     c.DedupKey(),
				Tag:    domain.TagWeakMatch,
				Reason: reason,
			})
			continue
		}

		base := heuristicBaseCatalog
		if c.Source == domain.SourceWeb {
			base = heuristicBaseWeb
		}
		decay := float64(pos) * heuristicDecayStep
		if decay > heuristicDecayMax {
			decay = heuristicDecayMax
		}
		score := base - decay
		if score < heuristicFloor {
			score = heuristicFloor
		}

		tag := domain.TagCloseMatch
		if pos == 0 {
			tag = domain.TagBestMatch
		}
		verdicts.Valid = append(verdicts.Valid, domain.MatchVerdict{
			ID:    c.DedupKey(),
			Score: score,
			Tag:   tag,
		})
	}
	return verdicts
}

// heuristicReject returns a non-empty reason only for explicit
// contradictions between the query and candidate metadata.
func heuristicReject(query domain.Query, c domain.Candidate) string {
	if query.ColorMode == domain.ColorModeAllRequired && len(query.Colors) > 0 {
		candidateColors := make(map[string]struct{}, len(c.Colors))
		for _, color := range c.Colors {
			candidateColors[strings.ToLower(color)] = struct{}{}
		}
		for _, want := range query.Colors {
			if _, ok := candidateColors[strings.ToLower(want)]; !ok {
				return "missing required color: " + want
			}
		}
	}

	if query.Pattern != "" && c.Pattern != "" &&
		!strings.Contains(strings.ToLower(c.Pattern), strings.ToLower(query.Pattern)) {
		return "pattern mismatch: expected " + query.Pattern
	}

	if query.ItemType != "" && !titleMentionsItemType(c.Title, query.ItemType) {
		return "item type not found in title: " + query.ItemType
	}

	return ""
}

// titleMentionsItemType checks that at least one token of the requested item
// type appears in the candidate title.
func titleMentionsItemType(title, itemType string) bool {
	lowTitle := strings.ToLower(title)
	for _, token := range strings.Fields(strings.ToLower(itemType)) {
		if strings.Contains(lowTitle, token) {
			return true
		}
	}
	return false
}
