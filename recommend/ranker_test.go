package recommend

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constantProvider(score float64) Provider {
	return ProviderFunc(func(ctx context.Context, features map[string]float64, context map[string]string) (float64, error) {
		return score, nil
	})
}

func similarityProvider() Provider {
	return ProviderFunc(func(ctx context.Context, features map[string]float64, context map[string]string) (float64, error) {
		return features["similarity"], nil
	})
}

func TestRankEmptyInput(t *testing.T) {
	r := NewRanker(DefaultRankerConfig(), similarityProvider(), constantProvider(0.5), nil)

	out, err := r.Rank(context.Background(), nil, "u1", "browse", nil)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.NotNil(t, out)
}

func TestRankOrdersByCombinedScore(t *testing.T) {
	r := NewRanker(DefaultRankerConfig(), similarityProvider(), constantProvider(0), nil)

	in := []Candidate{
		{ItemID: "low", SimilarityScore: 0.2},
		{ItemID: "high", SimilarityScore: 0.9},
		{ItemID: "mid", SimilarityScore: 0.5},
	}
	out, err := r.Rank(context.Background(), in, "u1", "browse", nil)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "high", out[0].ItemID)
	assert.Equal(t, "mid", out[1].ItemID)
	assert.Equal(t, "low", out[2].ItemID)

	// combined = 0.6×relevance + 0.4×personalization
	require.NotNil(t, out[0].CombinedScore)
	assert.InDelta(t, 0.6*0.9, *out[0].CombinedScore, 1e-9)
}

func TestRankStableOnTies(t *testing.T) {
	r := NewRanker(DefaultRankerConfig(), constantProvider(0.5), constantProvider(0.5), nil)

	in := []Candidate{
		{ItemID: "first", SimilarityScore: 0.1},
		{ItemID: "second", SimilarityScore: 0.2},
		{ItemID: "third", SimilarityScore: 0.3},
	}
	out, err := r.Rank(context.Background(), in, "u1", "browse", nil)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "first", out[0].ItemID)
	assert.Equal(t, "second", out[1].ItemID)
	assert.Equal(t, "third", out[2].ItemID)
}

func TestRankMissingScoresCountAsZeroWithoutPersisting(t *testing.T) {
	failing := ProviderFunc(func(ctx context.Context, features map[string]float64, context map[string]string) (float64, error) {
		return 0, errors.New("model unavailable")
	})
	r := NewRanker(DefaultRankerConfig(), failing, nil, nil)

	in := []Candidate{{ItemID: "a", SimilarityScore: 0.9}}
	out, err := r.Rank(context.Background(), in, "u1", "browse", nil)
	require.NoError(t, err)
	require.Len(t, out, 1)

	assert.Nil(t, out[0].RelevanceScore)
	assert.Nil(t, out[0].PersonalizationScore)
	require.NotNil(t, out[0].CombinedScore)
	assert.Equal(t, 0.0, *out[0].CombinedScore)
}

func TestRankClampsProviderScores(t *testing.T) {
	r := NewRanker(DefaultRankerConfig(), constantProvider(3.5), constantProvider(-1), nil)

	out, err := r.Rank(context.Background(), []Candidate{{ItemID: "a"}}, "u1", "browse", nil)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 1.0, *out[0].RelevanceScore)
	assert.Equal(t, 0.0, *out[0].PersonalizationScore)
}

func TestRankDoesNotMutateInput(t *testing.T) {
	r := NewRanker(DefaultRankerConfig(), similarityProvider(), constantProvider(0.5), nil)

	in := []Candidate{
		{ItemID: "a", SimilarityScore: 0.1},
		{ItemID: "b", SimilarityScore: 0.9},
	}
	_, err := r.Rank(context.Background(), in, "u1", "browse", nil)
	require.NoError(t, err)

	assert.Equal(t, "a", in[0].ItemID)
	assert.Nil(t, in[0].RelevanceScore)
	assert.Nil(t, in[0].CombinedScore)
}

func TestDiversityNeverGrowsAndPreservesOrder(t *testing.T) {
	r := NewRanker(DefaultRankerConfig(), nil, nil, nil)

	in := []Candidate{
		{ItemID: "a", Category: "books"},
		{ItemID: "b", Category: "books"},
		{ItemID: "c", Category: "films"},
		{ItemID: "d", Category: "books"},
		{ItemID: "e", Category: "music"},
		{ItemID: "f", Category: "books"},
	}
	out := r.applyDiversity(in)

	assert.LessOrEqual(t, len(out), len(in))

	// survivors keep their relative input order
	position := map[string]int{}
	for i, c := range in {
		position[c.ItemID] = i
	}
	for i := 1; i < len(out); i++ {
		assert.Less(t, position[out[i-1].ItemID], position[out[i].ItemID])
	}
}

func TestDiversityCapsDominantCategory(t *testing.T) {
	r := NewRanker(DefaultRankerConfig(), nil, nil, nil)

	in := make([]Candidate, 0, 10)
	for i := 0; i < 10; i++ {
		in = append(in, Candidate{ItemID: string(rune('a' + i)), Category: "books"})
	}
	out := r.applyDiversity(in)

	assert.NotEmpty(t, out)
	assert.Less(t, len(out), len(in))
}

func TestDiversityMixedInputSurvivesIntact(t *testing.T) {
	r := NewRanker(DefaultRankerConfig(), nil, nil, nil)

	in := []Candidate{
		{ItemID: "a", Category: "books"},
		{ItemID: "b", Category: "films"},
		{ItemID: "c", Category: "music"},
	}
	out := r.applyDiversity(in)
	assert.Len(t, out, 3)
}
