package usecase

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recipebox/backend/internal/domain"
)

const mealMasterSample = `MMMMM----- Recipe via Meal-Master (tm) v8.05

      Title: Garlic Butter Noodles
 Categories: Pasta, Quick
      Yield: 4 servings

      8 oz egg noodles
      4    cloves garlic, minced

MMMMM--------------------------TOPPING--------------------------
      2 tb butter
      1/4 c  parmesan

  Boil the noodles until tender,
  then drain.

  Melt the butter with the garlic and toss.

MMMMM
`

const paprikaSample = `Name: Lemon Chicken
Servings: 4
Source: Grandma
Prep Time: 15 mins
Cook Time: 1 hr
Categories: Dinner, Chicken

Ingredients:
2 chicken breasts
1 lemon, juiced
Salt: to taste

Directions:
Marinate the chicken in lemon.
Roast at 400F for 25 minutes.

Notes:
Great with rice.
`

const genericSample = `# Pancakes

Fluffy weekend pancakes.
Serves: 4
Prep time: 10 minutes

## Ingredients
- 1 1/2 cups flour
- 2 eggs
For the topping:
- maple syrup

## Instructions
1. Whisk everything together.
2. Cook on a hot griddle.
`

func TestParseTextFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    TextFormat
		wantErr bool
	}{
		{"", FormatAuto, false},
		{"AUTO", FormatAuto, false},
		{"meal-master", FormatMealMaster, false},
		{"mmf", FormatMealMaster, false},
		{"Paprika", FormatPaprika, false},
		{"generic", FormatGeneric, false},
		{"cooklang", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTextFormat(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, domain.ErrUnsupportedFormat))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTextParser_MealMaster(t *testing.T) {
	p := NewTextParser(nil)

	result := p.Parse(mealMasterSample, FormatAuto)
	require.True(t, result.Found())
	assert.Equal(t, domain.ConfidenceHigh, result.Confidence)
	assert.Equal(t, "flat-text:meal-master", result.Source)

	r := result.Recipe
	assert.Equal(t, "Garlic Butter Noodles", r.Name)
	assert.Equal(t, []string{"Pasta", "Quick"}, r.Categories)
	assert.Equal(t, "4 servings", r.Yield)
	assert.Equal(t, []string{
		"8 oz egg noodles",
		"4    cloves garlic, minced",
		"2 tb butter",
		"1/4 c  parmesan",
	}, r.Ingredients)
	assert.Equal(t, []string{
		"Boil the noodles until tender, then drain.",
		"Melt the butter with the garlic and toss.",
	}, r.Instructions)
}

func TestTextParser_MealMasterMultipleRecipes(t *testing.T) {
	second := strings.Replace(mealMasterSample, "Garlic Butter Noodles", "Second Noodles", 1)
	p := NewTextParser(nil)

	results := p.ParseAll(mealMasterSample+"\n"+second, FormatMealMaster)
	require.Len(t, results, 2)
	assert.Equal(t, "Garlic Butter Noodles", results[0].Recipe.Name)
	assert.Equal(t, "Second Noodles", results[1].Recipe.Name)
}

func TestTextParser_Paprika(t *testing.T) {
	p := NewTextParser(nil)

	result := p.Parse(paprikaSample, FormatAuto)
	require.True(t, result.Found())
	assert.Equal(t, domain.ConfidenceHigh, result.Confidence)
	assert.Equal(t, "flat-text:paprika", result.Source)

	r := result.Recipe
	assert.Equal(t, "Lemon Chicken", r.Name)
	assert.Equal(t, "4", r.Yield)
	assert.Equal(t, "Grandma", r.SourceName)
	require.NotNil(t, r.PrepTime)
	assert.Equal(t, 15, r.PrepTime.Value)
	require.NotNil(t, r.CookTime)
	assert.Equal(t, 60, r.CookTime.Value)
	assert.Equal(t, []string{"Dinner", "Chicken"}, r.Categories)
	assert.Equal(t, []string{"2 chicken breasts", "1 lemon, juiced", "Salt: to taste"}, r.Ingredients)
	assert.Len(t, r.Instructions, 2)
	assert.Equal(t, "Great with rice.", r.Notes)
}

func TestTextParser_Generic(t *testing.T) {
	p := NewTextParser(nil)

	t.Run("with headings", func(t *testing.T) {
		result := p.Parse(genericSample, FormatAuto)
		require.True(t, result.Found())
		assert.Equal(t, domain.ConfidenceMedium, result.Confidence)
		assert.Equal(t, "flat-text:generic", result.Source)

		r := result.Recipe
		assert.Equal(t, "Pancakes", r.Name)
		assert.Equal(t, "Fluffy weekend pancakes.", r.Description)
		assert.Equal(t, "4", r.Yield)
		require.NotNil(t, r.PrepTime)
		assert.Equal(t, 10, r.PrepTime.Value)
		assert.Equal(t, []string{"1 1/2 cups flour", "2 eggs", "For the topping:", "maple syrup"}, r.Ingredients)
		assert.Equal(t, []string{"Whisk everything together.", "Cook on a hot griddle."}, r.Instructions)
	})

	t.Run("quantity sniffing without headings", func(t *testing.T) {
		text := "Quick Salad\n\n2 tomatoes\n½ cucumber\n1 tbsp olive oil\nChop and toss.\nServe cold."
		result := p.Parse(text, FormatAuto)
		require.True(t, result.Found())
		assert.Equal(t, domain.ConfidenceLow, result.Confidence)
		assert.Equal(t, "Quick Salad", result.Recipe.Name)
		assert.Equal(t, []string{"2 tomatoes", "½ cucumber", "1 tbsp olive oil"}, result.Recipe.Ingredients)
		assert.Equal(t, []string{"Chop and toss.", "Serve cold."}, result.Recipe.Instructions)
	})
}

func TestTextParser_Failure(t *testing.T) {
	p := NewTextParser(nil)

	tests := []struct {
		name   string
		text   string
		format TextFormat
	}{
		{"empty text", "", FormatAuto},
		{"whitespace only", "  \n\t\n", FormatAuto},
		{"heading first", "Ingredients\n- 2 eggs", FormatAuto},
		{"prose only", "Just some thoughts\nabout dinner tonight.", FormatAuto},
		{"paprika without name", "Servings: 2\nIngredients:\n1 egg", FormatPaprika},
		{"unknown format", "Pancakes\n\nIngredients\n- 2 eggs", TextFormat("cooklang")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := p.Parse(tt.text, tt.format)
			assert.Nil(t, result.Recipe)
			assert.Contains(t, result.Hint, "meal-master")
			assert.Contains(t, result.Hint, "paprika")
			assert.Contains(t, result.Hint, "generic")
		})
	}
}

func TestTextParser_LineEndings(t *testing.T) {
	p := NewTextParser(nil)

	for name, sample := range map[string]string{
		"meal-master": mealMasterSample,
		"paprika":     paprikaSample,
		"generic":     genericSample,
	} {
		t.Run(name, func(t *testing.T) {
			lf := p.Parse(sample, FormatAuto)
			crlf := p.Parse(strings.ReplaceAll(sample, "\n", "\r\n"), FormatAuto)
			cr := p.Parse(strings.ReplaceAll(sample, "\n", "\r"), FormatAuto)

			require.True(t, lf.Found())
			assert.Equal(t, lf, crlf)
			assert.Equal(t, lf, cr)
		})
	}
}

func TestRenderText_RoundTrip(t *testing.T) {
	recipe := &domain.ParsedRecipe{
		Name:         "Tomato Soup",
		Yield:        "6",
		Ingredients:  []string{"2 lb tomatoes", "1 onion, diced", "3 cups stock"},
		Instructions: []string{"Simmer the tomatoes and onion.", "Blend with the stock."},
		Categories:   []string{"Soup", "Vegetarian"},
	}
	p := NewTextParser(nil)

	shapes := []struct {
		name   string
		recipe *domain.ParsedRecipe
	}{
		{"full recipe", recipe},
		{"no ingredients", &domain.ParsedRecipe{
			Name:         "Toast",
			Ingredients:  []string{},
			Instructions: []string{"Toast the bread.", "Serve warm."},
		}},
		{"no instructions", &domain.ParsedRecipe{
			Name:         "Spice Mix",
			Yield:        "1 jar",
			Ingredients:  []string{"1 tsp cumin", "1 tsp smoked paprika"},
			Instructions: []string{},
		}},
		{"no ingredients or instructions", &domain.ParsedRecipe{
			Name:         "Placeholder",
			Ingredients:  []string{},
			Instructions: []string{},
		}},
		{"colon-terminated lines", &domain.ParsedRecipe{
			Name:         "Tomato Salad",
			Ingredients:  []string{"2 tomatoes", "Dressing:", "1 tbsp oil"},
			Instructions: []string{"Make the dressing:", "Whisk the oil with salt."},
		}},
		{"unicode name", &domain.ParsedRecipe{
			Name:         "Crème Brûlée",
			Yield:        "4 ramekins",
			Ingredients:  []string{"2 cups crème fraîche", "½ cup sugar"},
			Instructions: []string{"Bake in a water bath.", "Torch the sugar."},
		}},
	}

	for _, shape := range shapes {
		for _, format := range SupportedTextFormats() {
			t.Run(shape.name+"/"+string(format), func(t *testing.T) {
				text, err := RenderText(shape.recipe, format)
				require.NoError(t, err)

				result := p.Parse(text, FormatAuto)
				require.True(t, result.Found(), "rendered text:\n%s", text)
				assert.Equal(t, domain.SourceFlatTextPrefix+string(format), result.Source)
				assert.Equal(t, shape.recipe.Name, result.Recipe.Name)
				assert.Equal(t, shape.recipe.Yield, result.Recipe.Yield)
				assert.Equal(t, shape.recipe.Ingredients, result.Recipe.Ingredients, "rendered text:\n%s", text)
				assert.Equal(t, shape.recipe.Instructions, result.Recipe.Instructions, "rendered text:\n%s", text)
			})
		}
	}

	t.Run("paprika keeps times and source", func(t *testing.T) {
		full := *recipe
		full.PrepTime = domain.Minutes(20)
		full.TotalTime = domain.Minutes(95)
		full.SourceURL = "https://example.com/soup"
		full.Notes = "Freezes well."

		text, err := RenderText(&full, FormatPaprika)
		require.NoError(t, err)

		got := p.Parse(text, FormatPaprika).Recipe
		require.NotNil(t, got)
		assert.Equal(t, full.PrepTime, got.PrepTime)
		assert.Equal(t, full.TotalTime, got.TotalTime)
		assert.Equal(t, full.SourceURL, got.SourceURL)
		assert.Equal(t, full.Categories, got.Categories)
		assert.Equal(t, full.Notes, got.Notes)
	})

	t.Run("rejects nameless recipe", func(t *testing.T) {
		_, err := RenderText(&domain.ParsedRecipe{}, FormatGeneric)
		assert.True(t, errors.Is(err, domain.ErrInvalidRequest))
	})
}
