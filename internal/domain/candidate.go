package domain

import "strings"

// Source tags where a candidate was retrieved from.
type Source string

const (
	SourceCatalog         Source = "catalog"
	SourceWeb             Source = "web"
	SourceCatalogFallback Source = "catalog-fallback"
)

// MatchTag grades how well a validated candidate matches the query.
type MatchTag string

const (
	TagBestMatch  MatchTag = "best_match"
	TagCloseMatch MatchTag = "close_match"
	TagWeakMatch  MatchTag = "weak_match"
)

// Price carries normalized pricing for a candidate.
type Price struct {
	Value     *float64 `json:"value"`
	CompareAt *float64 `json:"compare_at,omitempty"`
	Discount  *float64 `json:"discount,omitempty"`
	Currency  string   `json:"currency"`
}

// Candidate is a retrieved item under evaluation for relevance to a query.
// Candidates are value objects; stages never mutate another stage's input,
// they annotate copies.
type Candidate struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Brand    string   `json:"brand"`
	Category string   `json:"category,omitempty"`
	Price    Price    `json:"price"`
	Colors   []string `json:"colors,omitempty"`
	Pattern  string   `json:"pattern,omitempty"`
	Fabric   string   `json:"fabric,omitempty"`
	Gender   string   `json:"gender,omitempty"`
	ImageURL string   `json:"image_url,omitempty"`
	URL      string   `json:"url,omitempty"`
	Source   Source   `json:"source"`
	Score    float64  `json:"score"`

	// Origin is the sub-query text that retrieved this candidate on the
	// broad path. Used for the post-rerank origin balance pass.
	Origin string `json:"origin,omitempty"`

	// Validator annotations, set by the match validator.
	Valid          bool     `json:"is_valid"`
	ValidatorScore float64  `json:"validator_score"`
	Tag            MatchTag `json:"validator_tag,omitempty"`
	Reason         string   `json:"validator_reason,omitempty"`
}

// DedupKey identifies a candidate across sources: the stable identifier when
// present, otherwise the canonical URL. Identifier uniqueness is only
// guaranteed within one retrieval batch, so the merge stage keys on this.
func (c Candidate) DedupKey() string {
	if c.ID != "" {
		return c.ID
	}
	return c.URL
}

// HasImage reports whether the candidate carries a usable image reference.
func (c Candidate) HasImage() bool {
	return strings.HasPrefix(c.ImageURL, "http")
}

// BrandKey normalizes the brand for diversity capping.
func (c Candidate) BrandKey() string {
	b := strings.ToLower(strings.TrimSpace(c.Brand))
	if b == "" {
		return "unknown"
	}
	return b
}
