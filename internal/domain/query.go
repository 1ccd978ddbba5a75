package domain

import "strings"

// QueryKind classifies the shape of a resolved user intent.
type QueryKind string

const (
	KindSpecific     QueryKind = "specific"
	KindBroad        QueryKind = "broad"
	KindChitchat     QueryKind = "chitchat"
	KindCapabilities QueryKind = "capabilities"
	KindTrending     QueryKind = "trending"
)

// Intent labels produced by the upstream classifier for chitchat-like turns.
const (
	IntentGreeting       = "greeting"
	IntentUserInfo       = "user_info"
	IntentAcknowledgment = "acknowledgment"
	IntentBlocked        = "blocked"
	IntentOutOfScope     = "out_of_scope"
	IntentTrending       = "trending"
	IntentCapabilities   = "capabilities_overview"
)

// Gender values used for catalog filtering. GenderUnisex is never set on a
// query; it is implicitly allowed alongside a specific gender at search time.
const (
	GenderMen    = "men"
	GenderWomen  = "women"
	GenderUnisex = "unisex"
)

// ColorMode controls how strictly required colors are enforced by the
// heuristic validator.
type ColorMode string

const (
	ColorModeAny         ColorMode = "any"
	ColorModeAllRequired ColorMode = "all_required"
)

// Query is the structured, resolved representation of user intent for one
// pipeline run. It is immutable once handed to the pipeline; sub-queries are
// derived copies, never mutations.
type Query struct {
	Kind        QueryKind
	Intent      string
	RawQuery    string
	ItemType    string
	Colors      []string
	Pattern     string
	Fabric      string
	Gender      string
	Occasion    string
	Destination string
	MinPrice    *float64
	MaxPrice    *float64
	ColorMode   ColorMode
	Confidence  float64

	// Ambiguities lists unresolved color-combination tokens reported by the
	// classifier (e.g. "blue-green"), each of which needs a disambiguation
	// choice before retrieval.
	Ambiguities []string

	// NeedsClarification is set when the classifier could not pin the query
	// down to a single interpretation. ClarifyQuestion and ClarifyOptions
	// carry the question to surface.
	NeedsClarification bool
	ClarifyQuestion    string
	ClarifyOptions     []string

	// Origin is the sub-query text this query was derived from. Empty for
	// the parent query of a turn.
	Origin string
}

// SimilarityText builds the text embedded for vector search. Colors, pattern
// and fabric are deliberately excluded so the embedding resolves them fuzzily
// instead of as hard filters.
func (q Query) SimilarityText() string {
	parts := make([]string, 0, 3)
	if q.RawQuery != "" {
		parts = append(parts, q.RawQuery)
	} else if q.ItemType != "" {
		parts = append(parts, q.ItemType)
	}
	if q.Destination != "" {
		parts = append(parts, q.Destination)
	}
	if q.Occasion != "" {
		parts = append(parts, q.Occasion)
	}
	if len(parts) == 0 {
		return "fashion item"
	}
	return strings.Join(parts, " ")
}

// RankText builds the query representation handed to the ranking oracle.
// Unlike SimilarityText it includes the soft attributes, since the
// cross-encoder can weigh them without over-filtering.
func (q Query) RankText() string {
	parts := make([]string, 0, 5)
	if q.RawQuery != "" {
		parts = append(parts, q.RawQuery)
	} else if q.ItemType != "" {
		parts = append(parts, q.ItemType)
	}
	if len(q.Colors) > 0 {
		parts = append(parts, strings.Join(q.Colors, " "))
	}
	if q.Pattern != "" {
		parts = append(parts, q.Pattern)
	}
	if q.Fabric != "" {
		parts = append(parts, q.Fabric)
	}
	if q.Occasion != "" {
		parts = append(parts, q.Occasion)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// DeriveSub returns a copy of the query focused on one sub-query text,
// inheriting the intent-preserving attributes of the parent.
func (q Query) DeriveSub(text string) Query {
	sub := q
	sub.RawQuery = text
	sub.ItemType = text
	sub.Origin = text
	sub.Colors = append([]string(nil), q.Colors...)
	return sub
}

// HasGender reports whether a concrete gender is resolved on the query.
func (q Query) HasGender() bool {
	return q.Gender == GenderMen || q.Gender == GenderWomen
}
