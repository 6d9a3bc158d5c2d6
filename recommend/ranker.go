package recommend

import (
	"context"
	"math"
	"sort"

	"github.com/sirupsen/logrus"
)

// RankerConfig holds the scoring weights of the three ranking passes.
type RankerConfig struct {
	RelevanceWeight       float64
	PersonalizationWeight float64
	CategoryWeight        float64
	AttributeWeight       float64
}

// DefaultRankerConfig returns the standard weights.
func DefaultRankerConfig() RankerConfig {
	return RankerConfig{
		RelevanceWeight:       0.6,
		PersonalizationWeight: 0.4,
		CategoryWeight:        0.3,
		AttributeWeight:       0.2,
	}
}

// Ranker orders candidates with three passes applied in fixed order:
// relevance scoring, personalization scoring with a combined-score sort, and
// a diversity filter. Every pass consumes its input and returns a fresh
// slice; empty input yields empty output at every stage.
type Ranker struct {
	cfg             RankerConfig
	relevance       Provider
	personalization Provider
	log             *logrus.Entry
}

// NewRanker creates a Ranker. Either provider may be nil, in which case the
// corresponding score stays unset and ranks as zero.
func NewRanker(cfg RankerConfig, relevance, personalization Provider, log *logrus.Entry) *Ranker {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if cfg.RelevanceWeight == 0 && cfg.PersonalizationWeight == 0 {
		cfg = DefaultRankerConfig()
	}
	return &Ranker{
		cfg:             cfg,
		relevance:       relevance,
		personalization: personalization,
		log:             log.WithField("component", "ranker"),
	}
}

// Rank applies the three passes and returns the final ordered list.
func (r *Ranker) Rank(ctx context.Context, candidates []Candidate, userID, contextType string, metadata map[string]string) ([]Candidate, error) {
	if len(candidates) == 0 {
		return []Candidate{}, nil
	}

	scored := r.scoreRelevance(ctx, candidates, contextType, metadata)
	ranked := r.scorePersonalization(ctx, scored, userID, contextType, metadata)
	diversified := r.applyDiversity(ranked)

	r.log.WithFields(logrus.Fields{
		"user_id": userID,
		"input":   len(candidates),
		"output":  len(diversified),
	}).Debug("Candidates ranked")

	return diversified, nil
}

// scoreRelevance fills RelevanceScore in [0,1] per candidate. A provider
// error leaves the score unset and logs a warning; input order is preserved.
func (r *Ranker) scoreRelevance(ctx context.Context, in []Candidate, contextType string, metadata map[string]string) []Candidate {
	out := cloneCandidates(in)
	if r.relevance == nil {
		return out
	}
	scoringCtx := scoringContext(contextType, metadata)
	for i := range out {
		score, err := r.relevance.Score(ctx, candidateFeatures(out[i]), scoringCtx)
		if err != nil {
			r.log.WithField("item_id", out[i].ItemID).WithError(err).Warn("Relevance scoring failed")
			continue
		}
		score = clamp01(score)
		out[i].RelevanceScore = &score
	}
	return out
}

// scorePersonalization fills PersonalizationScore, computes the combined
// score and sorts descending by it, stable on ties. A missing relevance or
// personalization score counts as 0.0 in the combination without being
// written back onto the candidate.
func (r *Ranker) scorePersonalization(ctx context.Context, in []Candidate, userID, contextType string, metadata map[string]string) []Candidate {
	out := cloneCandidates(in)
	scoringCtx := scoringContext(contextType, metadata)
	scoringCtx["user_id"] = userID

	for i := range out {
		if r.personalization != nil {
			score, err := r.personalization.Score(ctx, candidateFeatures(out[i]), scoringCtx)
			if err != nil {
				r.log.WithField("item_id", out[i].ItemID).WithError(err).Warn("Personalization scoring failed")
			} else {
				score = clamp01(score)
				out[i].PersonalizationScore = &score
			}
		}
		combined := r.cfg.RelevanceWeight*scoreOrZero(out[i].RelevanceScore) +
			r.cfg.PersonalizationWeight*scoreOrZero(out[i].PersonalizationScore)
		out[i].CombinedScore = &combined
	}

	sort.SliceStable(out, func(i, j int) bool {
		return *out[i].CombinedScore > *out[j].CombinedScore
	})
	return out
}

// applyDiversity greedily walks the ranked list and admits a candidate only
// while its category and attributes stay within the configured share of the
// admitted set. The pass only removes; survivors keep their relative order.
func (r *Ranker) applyDiversity(in []Candidate) []Candidate {
	out := make([]Candidate, 0, len(in))
	categoryCount := make(map[string]int)
	attributeCount := make(map[string]int)

	for _, c := range in {
		n := len(out) + 1
		categoryCap := int(math.Floor(r.cfg.CategoryWeight*float64(n))) + 1
		attributeCap := int(math.Floor(r.cfg.AttributeWeight*float64(n))) + 1

		if c.Category != "" && categoryCount[c.Category]+1 > categoryCap {
			continue
		}
		admit := true
		for _, attr := range c.Attributes {
			if attributeCount[attr]+1 > attributeCap {
				admit = false
				break
			}
		}
		if !admit {
			continue
		}

		if c.Category != "" {
			categoryCount[c.Category]++
		}
		for _, attr := range c.Attributes {
			attributeCount[attr]++
		}
		out = append(out, c)
	}
	return out
}

func candidateFeatures(c Candidate) map[string]float64 {
	features := map[string]float64{
		"similarity": c.SimilarityScore,
	}
	if c.RelevanceScore != nil {
		features["relevance"] = *c.RelevanceScore
	}
	for _, attr := range c.Attributes {
		features["attr:"+attr] = 1
	}
	return features
}

func scoringContext(contextType string, metadata map[string]string) map[string]string {
	out := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		out[k] = v
	}
	out["context_type"] = contextType
	return out
}

func scoreOrZero(score *float64) float64 {
	if score == nil {
		return 0
	}
	return *score
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
