package recommend

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"
)

// StrategyCollaborative names the collaborative-filtering generator.
const StrategyCollaborative = "collaborative"

// CollaborativeGenerator propagates rated interactions from similar users.
// A candidate's score is similarity × rating, keeping the maximum when more
// than one neighbor rated the same item.
type CollaborativeGenerator struct {
	interactions InteractionStore
	catalog      ItemCatalog
	log          *logrus.Entry
}

func NewCollaborativeGenerator(interactions InteractionStore, catalog ItemCatalog, log *logrus.Entry) *CollaborativeGenerator {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &CollaborativeGenerator{
		interactions: interactions,
		catalog:      catalog,
		log:          log.WithField("strategy", StrategyCollaborative),
	}
}

func (g *CollaborativeGenerator) Name() string { return StrategyCollaborative }

func (g *CollaborativeGenerator) Generate(ctx context.Context, userID, contextType string, metadata map[string]string) ([]Candidate, error) {
	neighbors, err := g.interactions.SimilarUsers(ctx, userID)
	if err != nil {
		return nil, err
	}

	own, err := g.interactions.InteractionsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(own))
	for _, interaction := range own {
		seen[interaction.ItemID] = true
	}

	best := make(map[string]float64)
	for _, neighbor := range neighbors {
		rated, err := g.interactions.InteractionsByUser(ctx, neighbor.UserID)
		if err != nil {
			return nil, err
		}
		for _, interaction := range rated {
			if seen[interaction.ItemID] {
				continue
			}
			score := neighbor.Similarity * interaction.Rating
			if score > best[interaction.ItemID] {
				best[interaction.ItemID] = score
			}
		}
	}

	candidates := make([]Candidate, 0, len(best))
	for itemID, score := range best {
		candidate := Candidate{
			ItemID:          itemID,
			SourceStrategy:  StrategyCollaborative,
			SimilarityScore: score,
		}
		if item, err := g.catalog.Item(ctx, itemID); err == nil && item != nil {
			candidate.Category = item.Category
			candidate.Attributes = append([]string(nil), item.Attributes...)
		}
		candidates = append(candidates, candidate)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].SimilarityScore != candidates[j].SimilarityScore {
			return candidates[i].SimilarityScore > candidates[j].SimilarityScore
		}
		return candidates[i].ItemID < candidates[j].ItemID
	})

	g.log.WithFields(logrus.Fields{
		"user_id":    userID,
		"neighbors":  len(neighbors),
		"candidates": len(candidates),
	}).Debug("Collaborative candidates generated")

	return candidates, nil
}

func (g *CollaborativeGenerator) Filter(ctx context.Context, candidates []Candidate, userID, contextType string, metadata map[string]string) ([]Candidate, error) {
	filtered := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.SimilarityScore > 0 {
			filtered = append(filtered, c)
		}
	}
	return filtered, nil
}
