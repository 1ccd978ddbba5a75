package pipeline_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"stylist-orchestrator/internal/domain"
	"stylist-orchestrator/internal/usecase/pipeline"
)

// MockMatchOracle is a test double for domain.MatchOracle.
type MockMatchOracle struct {
	mock.Mock
}

func (m *MockMatchOracle) Validate(ctx context.Context, query domain.Query, candidates []domain.Candidate) (*domain.MatchVerdicts, error) {
	args := m.Called(ctx, query, candidates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MatchVerdicts), args.Error(1)
}

func shirtCandidate(id string, colors []string) domain.Candidate {
	return domain.Candidate{
		ID:     id,
		Title:  "Slim Fit Cotton Shirt",
		Brand:  "Arrow",
		Colors: colors,
		Source: domain.SourceCatalog,
	}
}

func TestValidate_HeuristicAcceptsColorAdjacentShirts(t *testing.T) {
	// Blue-shirt scenario: lenient mode accepts blue and color-adjacent
	// shirts, rejects only different item types.
	oracle := new(MockMatchOracle)

	query := domain.Query{ItemType: "shirt", Colors: []string{"blue"}, Gender: domain.GenderMen}
	candidates := []domain.Candidate{
		shirtCandidate("c1", []string{"blue"}),
		shirtCandidate("c2", []string{"navy"}),
		shirtCandidate("c3", []string{"white"}),
		{ID: "c4", Title: "Denim Jacket", Brand: "Levis", Source: domain.SourceCatalog},
	}

	v := pipeline.NewValidator(oracle, 12, time.Second, discardLogger())
	valid, invalid := v.Validate(context.Background(), query, candidates)

	require.Len(t, valid, 3, "color variants pass in lenient mode")
	require.Len(t, invalid, 1)
	assert.Equal(t, "c4", invalid[0].ID)
	assert.Contains(t, invalid[0].Reason, "item type")
	oracle.AssertNotCalled(t, "Validate")
}

func TestValidate_AllRequiredColorModeRejectsMissingColor(t *testing.T) {
	oracle := new(MockMatchOracle)

	query := domain.Query{
		ItemType:  "shirt",
		Colors:    []string{"blue", "green"},
		ColorMode: domain.ColorModeAllRequired,
	}
	candidates := []domain.Candidate{
		shirtCandidate("both", []string{"blue", "green"}),
		shirtCandidate("one", []string{"blue"}),
	}

	v := pipeline.NewValidator(oracle, 12, time.Second, discardLogger())
	valid, invalid := v.Validate(context.Background(), query, candidates)

	require.Len(t, valid, 1)
	assert.Equal(t, "both", valid[0].ID)
	require.Len(t, invalid, 1)
	assert.Contains(t, invalid[0].Reason, "missing required color")
}

func TestValidate_ExplicitPatternMismatchRejects(t *testing.T) {
	oracle := new(MockMatchOracle)

	query := domain.Query{ItemType: "shirt", Pattern: "striped"}
	striped := shirtCandidate("s", nil)
	striped.Pattern = "striped"
	floral := shirtCandidate("f", nil)
	floral.Pattern = "floral"
	unknown := shirtCandidate("u", nil)

	v := pipeline.NewValidator(oracle, 12, time.Second, discardLogger())
	valid, invalid := v.Validate(context.Background(), query, []domain.Candidate{striped, floral, unknown})

	require.Len(t, valid, 2, "missing pattern metadata is not a rejection")
	require.Len(t, invalid, 1)
	assert.Equal(t, "f", invalid[0].ID)
}

func TestValidate_HeuristicScoresDecayByPosition(t *testing.T) {
	oracle := new(MockMatchOracle)

	query := domain.Query{ItemType: "shirt"}
	var candidates []domain.Candidate
	for i := 0; i < 25; i++ {
		candidates = append(candidates, shirtCandidate(string(rune('a'+i)), nil))
	}

	v := pipeline.NewValidator(oracle, 12, time.Second, discardLogger())
	valid, _ := v.Validate(context.Background(), query, candidates)

	require.Len(t, valid, 25)
	assert.InDelta(t, 0.9, valid[0].ValidatorScore, 1e-9)
	assert.Equal(t, domain.TagBestMatch, valid[0].Tag)
	assert.InDelta(t, 0.88, valid[1].ValidatorScore, 1e-9)
	assert.Equal(t, domain.TagCloseMatch, valid[1].Tag)
	// Decay is capped, so deep positions never fall below the floor.
	assert.InDelta(t, 0.7, valid[24].ValidatorScore, 1e-9)
}

func TestValidate_WebSourceUsesLowerBaseline(t *testing.T) {
	oracle := new(MockMatchOracle)

	query := domain.Query{ItemType: "shirt"}
	web := shirtCandidate("w", nil)
	web.Source = domain.SourceWeb

	v := pipeline.NewValidator(oracle, 12, time.Second, discardLogger())
	valid, _ := v.Validate(context.Background(), query, []domain.Candidate{web})

	require.Len(t, valid, 1)
	assert.InDelta(t, 0.8, valid[0].ValidatorScore, 1e-9)
}

func TestValidate_ImageBearingPrefixGoesToOracle(t *testing.T) {
	oracle := new(MockMatchOracle)

	query := domain.Query{ItemType: "shirt"}
	withImage := shirtCandidate("img1", []string{"blue"})
	withImage.ImageURL = "https://cdn.example.com/img1.jpg"
	withImage2 := shirtCandidate("img2", []string{"blue"})
	withImage2.ImageURL = "https://cdn.example.com/img2.jpg"
	plain := shirtCandidate("plain", []string{"blue"})

	oracle.On("Validate", mock.Anything, mock.Anything, mock.MatchedBy(func(batch []domain.Candidate) bool {
		return len(batch) == 2 && batch[0].ID == "img1" && batch[1].ID == "img2"
	})).Return(&domain.MatchVerdicts{
		Valid: []domain.MatchVerdict{
			{ID: "img1", Score: 0.95, Tag: domain.TagBestMatch},
		},
		Invalid: []domain.MatchVerdict{
			{ID: "img2", Score: 0.2, Tag: domain.TagWeakMatch, Reason: "different item type"},
		},
	}, nil)

	v := pipeline.NewValidator(oracle, 12, time.Second, discardLogger())
	valid, invalid := v.Validate(context.Background(), query, []domain.Candidate{withImage, withImage2, plain})

	require.Len(t, valid, 2, "oracle-valid plus heuristic-valid")
	require.Len(t, invalid, 1)
	assert.Equal(t, "img2", invalid[0].ID)
	assert.Equal(t, "different item type", invalid[0].Reason)
	oracle.AssertExpectations(t)
}

func TestValidate_OracleFailureFallsBackToHeuristic(t *testing.T) {
	oracle := new(MockMatchOracle)
	oracle.On("Validate", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("oracle down"))

	query := domain.Query{ItemType: "shirt"}
	c := shirtCandidate("c1", []string{"blue"})
	c.ImageURL = "https://cdn.example.com/c1.jpg"

	v := pipeline.NewValidator(oracle, 12, time.Second, discardLogger())
	valid, invalid := v.Validate(context.Background(), query, []domain.Candidate{c})

	require.Len(t, valid, 1)
	assert.Empty(t, invalid)
	assert.InDelta(t, 0.9, valid[0].ValidatorScore, 1e-9)
}

func TestValidate_OracleOverflowJudgedByHeuristic(t *testing.T) {
	oracle := new(MockMatchOracle)
	oracle.On("Validate", mock.Anything, mock.Anything, mock.MatchedBy(func(batch []domain.Candidate) bool {
		return len(batch) == 2
	})).Return(&domain.MatchVerdicts{
		Valid: []domain.MatchVerdict{
			{ID: "i0", Score: 0.95, Tag: domain.TagBestMatch},
			{ID: "i1", Score: 0.94, Tag: domain.TagCloseMatch},
		},
	}, nil)

	query := domain.Query{ItemType: "shirt"}
	var candidates []domain.Candidate
	for _, id := range []string{"i0", "i1", "i2"} {
		c := shirtCandidate(id, nil)
		c.ImageURL = "https://cdn.example.com/" + id + ".jpg"
		candidates = append(candidates, c)
	}

	v := pipeline.NewValidator(oracle, 2, time.Second, discardLogger())
	valid, _ := v.Validate(context.Background(), query, candidates)

	require.Len(t, valid, 3, "overflow item is heuristic-accepted")
	oracle.AssertExpectations(t)
}

func TestValidate_RemergePreservesFullCandidateRecords(t *testing.T) {
	oracle := new(MockMatchOracle)
	oracle.On("Validate", mock.Anything, mock.Anything, mock.Anything).Return(&domain.MatchVerdicts{
		Valid: []domain.MatchVerdict{{ID: "c1", Score: 0.9, Tag: domain.TagBestMatch}},
	}, nil)

	price := 1499.0
	query := domain.Query{ItemType: "shirt"}
	c := shirtCandidate("c1", []string{"blue"})
	c.ImageURL = "https://cdn.example.com/c1.jpg"
	c.Price = domain.Price{Value: &price, Currency: "INR"}
	c.URL = "https://shop.example.com/c1"

	v := pipeline.NewValidator(oracle, 12, time.Second, discardLogger())
	valid, _ := v.Validate(context.Background(), query, []domain.Candidate{c})

	require.Len(t, valid, 1)
	assert.Equal(t, "Slim Fit Cotton Shirt", valid[0].Title)
	assert.Equal(t, "INR", valid[0].Price.Currency)
	assert.Equal(t, "https://shop.example.com/c1", valid[0].URL)
	assert.True(t, valid[0].Valid)
	assert.InDelta(t, 0.9, valid[0].ValidatorScore, 1e-9)
}
