package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recipebox/backend/internal/domain"
)

const jsonLDPage = `<!DOCTYPE html>
<html><head>
<title>Best Chili | Example Kitchen</title>
<script type="application/ld+json">{"@context":"https://schema.org","@type":"WebSite","name":"Example Kitchen"}</script>
<script type="application/ld+json">
{
  "@context": "https://schema.org",
  "@graph": [
    {"@type": "WebPage", "name": "Best Chili"},
    {
      "@type": ["Recipe", "NewsArticle"],
      "name": "Best Chili &amp; Cornbread",
      "description": "A <b>hearty</b> chili.",
      "prepTime": "PT20M",
      "cookTime": "PT1H",
      "totalTime": "PT1H20M",
      "recipeYield": ["6", "6 servings"],
      "recipeIngredient": ["1 lb ground beef", "2 cans kidney beans"],
      "recipeInstructions": [
        {"@type": "HowToSection", "name": "Chili", "itemListElement": [
          {"@type": "HowToStep", "text": "Brown the beef."},
          {"@type": "HowToStep", "text": "Add beans and simmer."}
        ]},
        "Serve hot."
      ],
      "author": {"@type": "Person", "name": "Sam Cook"},
      "image": {"@type": "ImageObject", "url": "/img/chili.jpg"},
      "recipeCategory": "Dinner",
      "keywords": "chili, beef, dinner"
    }
  ]
}
</script>
</head><body><h1>Best Chili</h1></body></html>`

const microdataPage = `<html><body>
<div itemscope itemtype="https://schema.org/Recipe">
  <h1 itemprop="name">Grandma's Apple Pie</h1>
  <div itemprop="author" itemscope itemtype="https://schema.org/Person"><span itemprop="name">Grandma</span></div>
  <meta itemprop="prepTime" content="PT30M">
  <time itemprop="cookTime" datetime="PT45M">45 minutes</time>
  <span itemprop="recipeYield">8 slices</span>
  <img itemprop="image" src="pie.jpg">
  <ul>
    <li itemprop="recipeIngredient">6 apples,
        sliced</li>
    <li itemprop="recipeIngredient">1 cup sugar</li>
  </ul>
  <ol itemprop="recipeInstructions">
    <li>Fill the crust.</li>
    <li>Bake.</li>
  </ol>
</div>
</body></html>`

const heuristicPage = `<html><head>
<title>Weeknight Tacos - Blog</title>
<meta property="og:title" content="Weeknight Tacos">
<meta property="og:image" content="https://cdn.example.com/tacos.jpg">
<meta name="description" content="Fast tacos.">
</head><body>
<nav><ul><li>Home</li><li>Recipes</li></ul></nav>
<article>
  <p>My family loves these. Read my life story first.</p>
  <h2>Ingredients</h2>
  <ul><li>1 lb ground turkey</li><li>8 <a href="/tortillas">tortillas</a></li></ul>
  <p>For the salsa:</p>
  <ul><li>2 tomatoes</li></ul>
  <h2>Instructions</h2>
  <ol><li>Cook the turkey.</li><li>Fill the tortillas.</li></ol>
</article>
<footer>Copyright</footer>
</body></html>`

func TestMarkupExtractor_JSONLD(t *testing.T) {
	e := NewMarkupExtractor(nil)

	result := e.Extract(jsonLDPage, "https://example.com/recipes/chili")

	require.True(t, result.Found())
	assert.Equal(t, domain.ConfidenceHigh, result.Confidence)
	assert.Equal(t, domain.SourceStructuredMarkup, result.Source)

	r := result.Recipe
	assert.Equal(t, "Best Chili & Cornbread", r.Name)
	assert.Equal(t, "A hearty chili.", r.Description)
	assert.Equal(t, domain.Minutes(20), r.PrepTime)
	assert.Equal(t, domain.Minutes(60), r.CookTime)
	assert.Equal(t, domain.Minutes(80), r.TotalTime)
	assert.Equal(t, "6 servings", r.Yield)
	assert.Equal(t, []string{"1 lb ground beef", "2 cans kidney beans"}, r.Ingredients)
	assert.Equal(t, []string{"Brown the beef.", "Add beans and simmer.", "Serve hot."}, r.Instructions)
	assert.Equal(t, "Sam Cook", r.SourceName)
	assert.Equal(t, "https://example.com/img/chili.jpg", r.ImageURL)
	assert.Equal(t, "https://example.com/recipes/chili", r.SourceURL)
	assert.Equal(t, []string{"Dinner", "chili", "beef"}, r.Categories)
}

func TestMarkupExtractor_Microdata(t *testing.T) {
	e := NewMarkupExtractor(nil)

	result := e.Extract(microdataPage, "https://pies.example.org/apple/")

	require.True(t, result.Found())
	assert.Equal(t, domain.ConfidenceHigh, result.Confidence)
	assert.Equal(t, domain.SourceStructuredMarkup, result.Source)

	r := result.Recipe
	assert.Equal(t, "Grandma's Apple Pie", r.Name)
	assert.Equal(t, "Grandma", r.SourceName)
	assert.Equal(t, domain.Minutes(30), r.PrepTime)
	assert.Equal(t, domain.Minutes(45), r.CookTime)
	assert.Equal(t, "8 slices", r.Yield)
	assert.Equal(t, "https://pies.example.org/apple/pie.jpg", r.ImageURL)
	assert.Equal(t, []string{"6 apples, sliced", "1 cup sugar"}, r.Ingredients)
	assert.Equal(t, []string{"Fill the crust.", "Bake."}, r.Instructions)
}

func TestMarkupExtractor_Heuristic(t *testing.T) {
	e := NewMarkupExtractor(nil)

	t.Run("sections under headings", func(t *testing.T) {
		result := e.Extract(heuristicPage, "https://blog.example.com/tacos")

		require.True(t, result.Found())
		assert.Equal(t, domain.ConfidenceMedium, result.Confidence)
		assert.Equal(t, domain.SourceHeuristic, result.Source)

		r := result.Recipe
		assert.Equal(t, "Weeknight Tacos", r.Name)
		assert.Equal(t, "Fast tacos.", r.Description)
		// page group labels are layout, not ingredients
		assert.Equal(t, []string{"1 lb ground turkey", "8 tortillas", "2 tomatoes"}, r.Ingredients)
		assert.Equal(t, []string{"Cook the turkey.", "Fill the tortillas."}, r.Instructions)
		assert.Equal(t, "https://cdn.example.com/tacos.jpg", r.ImageURL)
		assert.Equal(t, "https://blog.example.com/tacos", r.SourceURL)
	})

	t.Run("instructions only is low confidence", func(t *testing.T) {
		page := `<html><body><h1>Toast</h1><main><h2>Directions</h2><ol><li>Toast the bread.</li></ol></main></body></html>`
		result := e.Extract(page, "https://example.com/toast")

		require.True(t, result.Found())
		assert.Equal(t, domain.ConfidenceLow, result.Confidence)
		assert.Empty(t, result.Recipe.Ingredients)
		assert.Equal(t, []string{"Toast the bread."}, result.Recipe.Instructions)
	})
}

func TestMarkupExtractor_NothingFound(t *testing.T) {
	e := NewMarkupExtractor(nil)

	pages := map[string]string{
		"empty":            "",
		"no recipe":        `<html><head><title>About us</title></head><body><p>We are a blog.</p></body></html>`,
		"title only":       `<html><body><h1>Toast</h1><main><p>Toast is great.</p></main></body></html>`,
		"broken json-ld":   `<html><head><script type="application/ld+json">{"@type": "Recipe",</script></head><body></body></html>`,
		"recipe type only": `<html><head><script type="application/ld+json">{"@type": "Recipe"}</script></head><body></body></html>`,
	}

	for name, page := range pages {
		t.Run(name, func(t *testing.T) {
			result := e.Extract(page, "https://example.com/")
			assert.Nil(t, result.Recipe)
			assert.Equal(t, domain.ConfidenceLow, result.Confidence)
			assert.Equal(t, domain.SourceHeuristic, result.Source)
		})
	}
}
