package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recipebox/backend/internal/domain"
)

func TestJSONRecipeDecoder_Paprika(t *testing.T) {
	data := []byte(`{
		"uid": "A1B2",
		"name": "Lemon Chicken",
		"ingredients": "2 chicken breasts\r\n1 lemon, juiced\n\n",
		"directions": "Marinate.\nRoast for 25 minutes.",
		"servings": "4",
		"prep_time": "15 mins",
		"cook_time": "1 hr",
		"source": "Grandma",
		"source_url": "https://example.com/lemon",
		"categories": ["Dinner", " "]
	}`)

	results := NewJSONRecipeDecoder(nil).Decode(data)

	require.Len(t, results, 1)
	assert.Equal(t, domain.SourcePaprikaJSON, results[0].Source)
	assert.Equal(t, domain.ConfidenceHigh, results[0].Confidence)

	r := results[0].Recipe
	assert.Equal(t, "Lemon Chicken", r.Name)
	assert.Equal(t, []string{"2 chicken breasts", "1 lemon, juiced"}, r.Ingredients)
	assert.Equal(t, []string{"Marinate.", "Roast for 25 minutes."}, r.Instructions)
	assert.Equal(t, "4", r.Yield)
	assert.Equal(t, domain.Minutes(15), r.PrepTime)
	assert.Equal(t, domain.Minutes(60), r.CookTime)
	assert.Equal(t, []string{"Dinner"}, r.Categories)
}

func TestJSONRecipeDecoder_SchemaOrg(t *testing.T) {
	data := []byte(`[
		{"@context": "https://schema.org", "@type": "Recipe", "name": "Soup",
		 "recipeIngredient": ["2 lb tomatoes"], "recipeInstructions": "Simmer."},
		{"@type": "Person", "name": "Nobody"}
	]`)

	results := NewJSONRecipeDecoder(nil).Decode(data)

	require.Len(t, results, 1)
	assert.Equal(t, domain.SourceStructuredMarkup, results[0].Source)
	assert.Equal(t, "Soup", results[0].Recipe.Name)
	assert.Equal(t, []string{"Simmer."}, results[0].Recipe.Instructions)
}

func TestJSONRecipeDecoder_Rejects(t *testing.T) {
	d := NewJSONRecipeDecoder(nil)

	tests := []struct {
		name string
		data string
	}{
		{"invalid json", `{"name": `},
		{"unrelated object", `{"title": "not a recipe"}`},
		{"nameless paprika", `{"name": "  ", "ingredients": "1 egg"}`},
		{"scalar", `42`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, d.Decode([]byte(tt.data)))
		})
	}
}
