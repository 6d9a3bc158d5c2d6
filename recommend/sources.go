package recommend

import "context"

// Item is a catalog entry with a feature vector used for similarity scoring.
type Item struct {
	ID         string             `json:"id" yaml:"id"`
	Category   string             `json:"category" yaml:"category"`
	Attributes []string           `json:"attributes" yaml:"attributes"`
	Features   map[string]float64 `json:"features" yaml:"features"`
}

// ItemCatalog provides the recommendable item inventory.
type ItemCatalog interface {
	Items(ctx context.Context) ([]Item, error)
	Item(ctx context.Context, itemID string) (*Item, error)
}

// PreferenceStore provides per-user preference vectors keyed by feature name.
type PreferenceStore interface {
	Preferences(ctx context.Context, userID string) (map[string]float64, error)
}

// Interaction is one rated user/item event.
type Interaction struct {
	UserID string  `json:"userId" yaml:"user_id"`
	ItemID string  `json:"itemId" yaml:"item_id"`
	Rating float64 `json:"rating" yaml:"rating"`
}

// UserSimilarity pairs a user with their similarity to the query user.
type UserSimilarity struct {
	UserID     string  `json:"userId" yaml:"user_id"`
	Similarity float64 `json:"similarity" yaml:"similarity"`
}

// InteractionStore provides rated interactions and user neighborhoods for
// collaborative filtering.
type InteractionStore interface {
	InteractionsByUser(ctx context.Context, userID string) ([]Interaction, error)
	SimilarUsers(ctx context.Context, userID string) ([]UserSimilarity, error)
}

// Provider scores a feature vector in an opaque way. Model fitting and
// training live behind this boundary.
type Provider interface {
	Score(ctx context.Context, features map[string]float64, context map[string]string) (float64, error)
}

// ProviderFunc adapts a plain function to the Provider interface.
type ProviderFunc func(ctx context.Context, features map[string]float64, context map[string]string) (float64, error)

func (f ProviderFunc) Score(ctx context.Context, features map[string]float64, context map[string]string) (float64, error) {
	return f(ctx, features, context)
}
