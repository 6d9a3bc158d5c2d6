package recommend

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"
)

// StrategyContentBased names the content-based generator.
const StrategyContentBased = "content_based"

// ContentBasedGenerator scores catalog items by the similarity of their
// feature vectors to the user's preference vector.
type ContentBasedGenerator struct {
	catalog       ItemCatalog
	preferences   PreferenceStore
	minSimilarity float64
	log           *logrus.Entry
}

// NewContentBasedGenerator creates a content-based generator. Candidates
// below minSimilarity are dropped by Filter.
func NewContentBasedGenerator(catalog ItemCatalog, preferences PreferenceStore, minSimilarity float64, log *logrus.Entry) *ContentBasedGenerator {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &ContentBasedGenerator{
		catalog:       catalog,
		preferences:   preferences,
		minSimilarity: minSimilarity,
		log:           log.WithField("strategy", StrategyContentBased),
	}
}

func (g *ContentBasedGenerator) Name() string { return StrategyContentBased }

func (g *ContentBasedGenerator) Generate(ctx context.Context, userID, contextType string, metadata map[string]string) ([]Candidate, error) {
	prefs, err := g.preferences.Preferences(ctx, userID)
	if err != nil {
		return nil, err
	}

	items, err := g.catalog.Items(ctx)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(items))
	for _, item := range items {
		similarity := cosineSimilarity(item.Features, prefs)
		if similarity <= 0 {
			continue
		}
		candidates = append(candidates, Candidate{
			ItemID:          item.ID,
			SourceStrategy:  StrategyContentBased,
			SimilarityScore: similarity,
			Category:        item.Category,
			Attributes:      append([]string(nil), item.Attributes...),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].SimilarityScore > candidates[j].SimilarityScore
	})

	g.log.WithFields(logrus.Fields{
		"user_id":    userID,
		"candidates": len(candidates),
	}).Debug("Content-based candidates generated")

	return candidates, nil
}

func (g *ContentBasedGenerator) Filter(ctx context.Context, candidates []Candidate, userID, contextType string, metadata map[string]string) ([]Candidate, error) {
	filtered := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.SimilarityScore >= g.minSimilarity {
			filtered = append(filtered, c)
		}
	}
	return filtered, nil
}
