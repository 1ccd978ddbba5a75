package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"stylist-orchestrator/internal/domain"
)

func TestSimilarityText_ExcludesSoftAttributes(t *testing.T) {
	query := domain.Query{
		RawQuery:    "linen shirt",
		Colors:      []string{"blue"},
		Pattern:     "striped",
		Fabric:      "linen",
		Destination: "Goa",
		Occasion:    "beach party",
	}

	text := query.SimilarityText()

	assert.Equal(t, "linen shirt Goa beach party", text)
	assert.NotContains(t, text, "blue")
	assert.NotContains(t, text, "striped")
}

func TestSimilarityText_FallsBackToItemType(t *testing.T) {
	assert.Equal(t, "kurta", domain.Query{ItemType: "kurta"}.SimilarityText())
	assert.Equal(t, "fashion item", domain.Query{}.SimilarityText())
}

func TestRankText_IncludesSoftAttributes(t *testing.T) {
	query := domain.Query{
		RawQuery: "shirt",
		Colors:   []string{"blue", "green"},
		Pattern:  "striped",
		Fabric:   "linen",
		Occasion: "office",
	}

	assert.Equal(t, "shirt blue green striped linen office", query.RankText())
}

func TestDeriveSub_CopiesWithoutSharingColors(t *testing.T) {
	parent := domain.Query{
		Kind:     domain.KindBroad,
		RawQuery: "goa vacation wardrobe",
		Gender:   domain.GenderWomen,
		Colors:   []string{"white"},
	}

	sub := parent.DeriveSub("beach dress")

	assert.Equal(t, "beach dress", sub.RawQuery)
	assert.Equal(t, "beach dress", sub.Origin)
	assert.Equal(t, domain.GenderWomen, sub.Gender)

	sub.Colors[0] = "black"
	assert.Equal(t, "white", parent.Colors[0], "sub-query colors are an independent copy")
}

func TestHasGender_AcceptsOnlyConcreteValues(t *testing.T) {
	assert.True(t, domain.Query{Gender: domain.GenderMen}.HasGender())
	assert.True(t, domain.Query{Gender: domain.GenderWomen}.HasGender())
	assert.False(t, domain.Query{Gender: domain.GenderUnisex}.HasGender())
	assert.False(t, domain.Query{}.HasGender())
}

func TestDedupKey_PrefersIDOverURL(t *testing.T) {
	assert.Equal(t, "c1", domain.Candidate{ID: "c1", URL: "https://x/p"}.DedupKey())
	assert.Equal(t, "https://x/p", domain.Candidate{URL: "https://x/p"}.DedupKey())
}

func TestHasImage_RequiresHTTPReference(t *testing.T) {
	assert.True(t, domain.Candidate{ImageURL: "https://cdn/x.jpg"}.HasImage())
	assert.False(t, domain.Candidate{ImageURL: "file:///x.jpg"}.HasImage())
	assert.False(t, domain.Candidate{}.HasImage())
}
