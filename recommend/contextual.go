package recommend

import (
	"context"

	"github.com/sirupsen/logrus"
)

// StrategyContextual names the rule-based contextual generator.
const StrategyContextual = "contextual"

// ContextRule maps a context condition to catalog categories. A rule applies
// when the context type matches and every metadata requirement is present
// with the expected value.
type ContextRule struct {
	Name        string            `json:"name" yaml:"name"`
	ContextType string            `json:"contextType" yaml:"context_type"`
	Metadata    map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Categories  []string          `json:"categories" yaml:"categories"`
	Weight      float64           `json:"weight" yaml:"weight"`
}

func (r ContextRule) applies(contextType string, metadata map[string]string) bool {
	if r.ContextType != "" && r.ContextType != contextType {
		return false
	}
	for key, want := range r.Metadata {
		if metadata[key] != want {
			return false
		}
	}
	return true
}

// ContextualGenerator emits catalog items whose category is selected by an
// applicable rule, scored by the rule's weight.
type ContextualGenerator struct {
	catalog ItemCatalog
	rules   []ContextRule
	log     *logrus.Entry
}

func NewContextualGenerator(catalog ItemCatalog, rules []ContextRule, log *logrus.Entry) *ContextualGenerator {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &ContextualGenerator{
		catalog: catalog,
		rules:   rules,
		log:     log.WithField("strategy", StrategyContextual),
	}
}

func (g *ContextualGenerator) Name() string { return StrategyContextual }

func (g *ContextualGenerator) Generate(ctx context.Context, userID, contextType string, metadata map[string]string) ([]Candidate, error) {
	weights := make(map[string]float64)
	for _, rule := range g.rules {
		if !rule.applies(contextType, metadata) {
			continue
		}
		for _, category := range rule.Categories {
			if rule.Weight > weights[category] {
				weights[category] = rule.Weight
			}
		}
	}
	if len(weights) == 0 {
		return []Candidate{}, nil
	}

	items, err := g.catalog.Items(ctx)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(items))
	for _, item := range items {
		weight, ok := weights[item.Category]
		if !ok {
			continue
		}
		candidates = append(candidates, Candidate{
			ItemID:          item.ID,
			SourceStrategy:  StrategyContextual,
			SimilarityScore: weight,
			Category:        item.Category,
			Attributes:      append([]string(nil), item.Attributes...),
		})
	}

	g.log.WithFields(logrus.Fields{
		"user_id":      userID,
		"context_type": contextType,
		"candidates":   len(candidates),
	}).Debug("Contextual candidates generated")

	return candidates, nil
}

func (g *ContextualGenerator) Filter(ctx context.Context, candidates []Candidate, userID, contextType string, metadata map[string]string) ([]Candidate, error) {
	return cloneCandidates(candidates), nil
}
