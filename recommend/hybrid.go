package recommend

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// StrategyHybrid names the hybrid generator.
const StrategyHybrid = "hybrid"

// HybridGenerator runs the content-based and collaborative strategies
// concurrently and merges their output. A failing side contributes an empty
// slice and a warning; the merge deduplicates by item ID keeping the maximum
// similarity score.
type HybridGenerator struct {
	content       Generator
	collaborative Generator
	log           *logrus.Entry
}

func NewHybridGenerator(content, collaborative Generator, log *logrus.Entry) *HybridGenerator {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &HybridGenerator{
		content:       content,
		collaborative: collaborative,
		log:           log.WithField("strategy", StrategyHybrid),
	}
}

func (g *HybridGenerator) Name() string { return StrategyHybrid }

func (g *HybridGenerator) Generate(ctx context.Context, userID, contextType string, metadata map[string]string) ([]Candidate, error) {
	var wg sync.WaitGroup
	var fromContent, fromCollaborative []Candidate

	run := func(gen Generator, out *[]Candidate) {
		defer wg.Done()
		candidates, err := gen.Generate(ctx, userID, contextType, metadata)
		if err != nil {
			g.log.WithFields(logrus.Fields{
				"side":    gen.Name(),
				"user_id": userID,
			}).WithError(err).Warn("Hybrid side failed, contributing no candidates")
			return
		}
		*out = candidates
	}

	wg.Add(2)
	go run(g.content, &fromContent)
	go run(g.collaborative, &fromCollaborative)
	wg.Wait()

	return g.merge(fromContent, fromCollaborative), nil
}

// merge deduplicates by item ID. First occurrence fixes the position; a
// later duplicate only raises the kept similarity score.
func (g *HybridGenerator) merge(first, second []Candidate) []Candidate {
	merged := make([]Candidate, 0, len(first)+len(second))
	index := make(map[string]int, len(first)+len(second))

	for _, c := range append(append([]Candidate{}, first...), second...) {
		c.SourceStrategy = StrategyHybrid
		if at, ok := index[c.ItemID]; ok {
			if c.SimilarityScore > merged[at].SimilarityScore {
				merged[at].SimilarityScore = c.SimilarityScore
			}
			continue
		}
		index[c.ItemID] = len(merged)
		merged = append(merged, c)
	}
	return merged
}

func (g *HybridGenerator) Filter(ctx context.Context, candidates []Candidate, userID, contextType string, metadata map[string]string) ([]Candidate, error) {
	filtered, err := g.content.Filter(ctx, candidates, userID, contextType, metadata)
	if err != nil {
		g.log.WithError(err).Warn("Hybrid filter failed, keeping unfiltered candidates")
		return cloneCandidates(candidates), nil
	}
	return filtered, nil
}
