package domain

// CanonicalIngredient is an entry in the controlled ingredient vocabulary
type CanonicalIngredient struct {
	ID         int64  `json:"id" yaml:"id"`
	Name       string `json:"name" yaml:"name"`
	CategoryID int64  `json:"categoryId,omitempty" yaml:"category"`
}

// IngredientAlias maps an alternate phrase to a canonical ingredient id.
// Alias text is not unique across the table.
type IngredientAlias struct {
	ID           int64  `json:"id" yaml:"id"`
	Alias        string `json:"alias" yaml:"alias"`
	IngredientID int64  `json:"ingredientId" yaml:"ingredient"`
}

// Catalog holds both vocabulary tables for one matching batch.
// The matcher borrows it read-only.
type Catalog struct {
	Ingredients []CanonicalIngredient `json:"ingredients" yaml:"ingredients"`
	Aliases     []IngredientAlias     `json:"aliases" yaml:"aliases"`
}

// MatchType records which matching rule decided a result
type MatchType string

const (
	MatchExact   MatchType = "exact"
	MatchAlias   MatchType = "alias"
	MatchPartial MatchType = "partial"
)

// MatchResult is the outcome of matching one ingredient line.
// Ingredient is nil when no rule matched; Line always holds the raw input.
type MatchResult struct {
	Line        string               `json:"line" yaml:"line"`
	Key         string               `json:"key" yaml:"key"`
	Ingredient  *CanonicalIngredient `json:"matched" yaml:"matched"`
	MatchType   MatchType            `json:"matchType,omitempty" yaml:"matchType,omitempty"`
	MatchedTerm string               `json:"matchedTerm,omitempty" yaml:"matchedTerm,omitempty"`
	Score       float64              `json:"score,omitempty" yaml:"score,omitempty"`
}

// Matched reports whether a canonical ingredient was found
func (m MatchResult) Matched() bool {
	return m.Ingredient != nil
}

// MatchReport collects a batch of line matches in display order
type MatchReport struct {
	Matched        []MatchResult `json:"matchedIngredients" yaml:"matchedIngredients"`
	UnmatchedLines []string      `json:"unmatchedLines" yaml:"unmatchedLines"`
	TotalLines     int           `json:"totalLines" yaml:"totalLines"`
}
