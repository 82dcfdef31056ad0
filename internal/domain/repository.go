package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// FetchedPage is what the fetch collaborator returns for a URL
type FetchedPage struct {
	RequestURL  string
	FinalURL    string
	StatusCode  int
	ContentType string
	Body        []byte
}

// OK reports a 2xx status
func (p *FetchedPage) OK() bool {
	return p.StatusCode >= 200 && p.StatusCode < 300
}

// PageFetcher retrieves a remote recipe page
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string) (*FetchedPage, error)
}

// IngredientCatalog exposes the ingredient vocabulary as bulk reads
type IngredientCatalog interface {
	ListIngredients(ctx context.Context) ([]CanonicalIngredient, error)
	ListAliases(ctx context.Context) ([]IngredientAlias, error)
}

// SavedRecipe is the payload handed to persistence once an import is reviewed
type SavedRecipe struct {
	ID                string        `json:"id"`
	OwnerID           string        `json:"ownerId"`
	Recipe            ParsedRecipe  `json:"recipe"`
	IngredientMatches []MatchResult `json:"ingredientMatches"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
}

// RecipeRepository persists finished imports with replace-on-save semantics
type RecipeRepository interface {
	SaveRecipe(ctx context.Context, recipe *SavedRecipe) error
	GetRecipe(ctx context.Context, id string) (*SavedRecipe, error)
}
