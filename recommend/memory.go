package recommend

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Dataset is the YAML shape of a file-backed recommendation dataset.
type Dataset struct {
	Items        []Item                        `yaml:"items"`
	Preferences  map[string]map[string]float64 `yaml:"preferences"`
	Interactions []Interaction                 `yaml:"interactions"`
	Similarities map[string][]UserSimilarity   `yaml:"similarities"`
	Rules        []ContextRule                 `yaml:"rules"`
}

// LoadDataset reads a dataset file.
func LoadDataset(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dataset: %w", err)
	}
	var ds Dataset
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("parsing dataset: %w", err)
	}
	return &ds, nil
}

// MemoryCatalog is an in-memory ItemCatalog.
type MemoryCatalog struct {
	mu    sync.RWMutex
	items []Item
	byID  map[string]Item
}

// NewMemoryCatalog creates a catalog from a fixed item list.
func NewMemoryCatalog(items []Item) *MemoryCatalog {
	byID := make(map[string]Item, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}
	return &MemoryCatalog{items: items, byID: byID}
}

func (c *MemoryCatalog) Items(ctx context.Context) ([]Item, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out, nil
}

func (c *MemoryCatalog) Item(ctx context.Context, itemID string) (*Item, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if item, ok := c.byID[itemID]; ok {
		return &item, nil
	}
	return nil, nil
}

// MemoryPreferenceStore is an in-memory PreferenceStore.
type MemoryPreferenceStore struct {
	mu    sync.RWMutex
	prefs map[string]map[string]float64
}

func NewMemoryPreferenceStore(prefs map[string]map[string]float64) *MemoryPreferenceStore {
	if prefs == nil {
		prefs = make(map[string]map[string]float64)
	}
	return &MemoryPreferenceStore{prefs: prefs}
}

func (s *MemoryPreferenceStore) Preferences(ctx context.Context, userID string) (map[string]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prefs := s.prefs[userID]
	out := make(map[string]float64, len(prefs))
	for k, v := range prefs {
		out[k] = v
	}
	return out, nil
}

// MemoryInteractionStore is an in-memory InteractionStore.
type MemoryInteractionStore struct {
	mu           sync.RWMutex
	interactions map[string][]Interaction
	similar      map[string][]UserSimilarity
}

func NewMemoryInteractionStore(interactions []Interaction, similar map[string][]UserSimilarity) *MemoryInteractionStore {
	byUser := make(map[string][]Interaction)
	for _, interaction := range interactions {
		byUser[interaction.UserID] = append(byUser[interaction.UserID], interaction)
	}
	if similar == nil {
		similar = make(map[string][]UserSimilarity)
	}
	return &MemoryInteractionStore{interactions: byUser, similar: similar}
}

func (s *MemoryInteractionStore) InteractionsByUser(ctx context.Context, userID string) ([]Interaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := s.interactions[userID]
	out := make([]Interaction, len(records))
	copy(out, records)
	return out, nil
}

func (s *MemoryInteractionStore) SimilarUsers(ctx context.Context, userID string) ([]UserSimilarity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	neighbors := s.similar[userID]
	out := make([]UserSimilarity, len(neighbors))
	copy(out, neighbors)
	return out, nil
}

// SimilarityProvider scores a candidate by its generator similarity. It is
// the default relevance provider when no model is configured.
func SimilarityProvider() Provider {
	return ProviderFunc(func(ctx context.Context, features map[string]float64, context map[string]string) (float64, error) {
		return clamp01(features["similarity"]), nil
	})
}
