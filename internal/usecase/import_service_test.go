package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recipebox/backend/internal/domain"
)

// MockCacheRepository is a mock implementation of domain.CacheRepository
type MockCacheRepository struct {
	data      map[string][]byte
	getError  error
	setError  error
	getCalled bool
	setCalled bool
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{
		data: make(map[string][]byte),
	}
}

func (m *MockCacheRepository) Get(ctx context.Context, key string) ([]byte, error) {
	m.getCalled = true
	if m.getError != nil {
		return nil, m.getError
	}
	if value, ok := m.data[key]; ok {
		return value, nil
	}
	return nil, domain.ErrCacheMiss
}

func (m *MockCacheRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.setCalled = true
	if m.setError != nil {
		return m.setError
	}
	m.data[key] = value
	return nil
}

func (m *MockCacheRepository) Delete(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func (m *MockCacheRepository) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := m.data[key]
	return ok, nil
}

// MockPageFetcher is a mock implementation of domain.PageFetcher
type MockPageFetcher struct {
	page  *domain.FetchedPage
	err   error
	calls int
}

func (m *MockPageFetcher) Fetch(ctx context.Context, pageURL string) (*domain.FetchedPage, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.page, nil
}

// MockCatalog is a mock implementation of domain.IngredientCatalog
type MockCatalog struct {
	catalog *domain.Catalog
	err     error
}

func (m *MockCatalog) ListIngredients(ctx context.Context) ([]domain.CanonicalIngredient, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.catalog.Ingredients, nil
}

func (m *MockCatalog) ListAliases(ctx context.Context) ([]domain.IngredientAlias, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.catalog.Aliases, nil
}

// MockRecipeRepository is a mock implementation of domain.RecipeRepository
type MockRecipeRepository struct {
	saved   map[string]*domain.SavedRecipe
	saveErr error
}

func NewMockRecipeRepository() *MockRecipeRepository {
	return &MockRecipeRepository{saved: make(map[string]*domain.SavedRecipe)}
}

func (m *MockRecipeRepository) SaveRecipe(ctx context.Context, recipe *domain.SavedRecipe) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved[recipe.ID] = recipe
	return nil
}

func (m *MockRecipeRepository) GetRecipe(ctx context.Context, id string) (*domain.SavedRecipe, error) {
	if r, ok := m.saved[id]; ok {
		return r, nil
	}
	return nil, domain.ErrRecipeNotFound
}

type recordingMetrics struct {
	imports       []string
	fetchFailures []int
	cacheHits     int
	cacheMisses   int
}

func (r *recordingMetrics) RecordImport(source string, _ domain.Confidence, _ time.Duration) {
	r.imports = append(r.imports, source)
}
func (r *recordingMetrics) RecordFetchFailure(status int) { r.fetchFailures = append(r.fetchFailures, status) }
func (r *recordingMetrics) RecordMatches(domain.MatchReport) {}
func (r *recordingMetrics) RecordCacheLookup(hit bool) {
	if hit {
		r.cacheHits++
	} else {
		r.cacheMisses++
	}
}

const chiliPage = `<html><head><script type="application/ld+json">
{"@context":"https://schema.org","@type":"Recipe","name":"Chili",
 "recipeIngredient":["2 cloves garlic, minced","1 lb ground beef"],
 "recipeInstructions":"Cook it."}
</script></head><body></body></html>`

func okPage(body string) *domain.FetchedPage {
	return &domain.FetchedPage{
		RequestURL:  "https://example.com/chili",
		FinalURL:    "https://example.com/chili",
		StatusCode:  200,
		ContentType: "text/html",
		Body:        []byte(body),
	}
}

func TestNewImportService(t *testing.T) {
	t.Run("creates service with default values", func(t *testing.T) {
		svc := NewImportService(nil, nil, nil, nil, ImportServiceConfig{})
		require.NotNil(t, svc)
		assert.Equal(t, 24*time.Hour, svc.cacheTTL)
		assert.Equal(t, 0.5, svc.matcher.partialThreshold)
	})

	t.Run("creates service with custom values", func(t *testing.T) {
		svc := NewImportService(nil, nil, nil, nil, ImportServiceConfig{
			CacheTTL:         time.Hour,
			PartialThreshold: 0.7,
		})
		assert.Equal(t, time.Hour, svc.cacheTTL)
		assert.Equal(t, 0.7, svc.matcher.partialThreshold)
	})
}

func TestImportURL(t *testing.T) {
	ctx := context.Background()
	catalog := &MockCatalog{catalog: testCatalog()}

	t.Run("rejects invalid urls", func(t *testing.T) {
		svc := NewImportService(nil, &MockPageFetcher{}, catalog, nil, ImportServiceConfig{})

		for _, raw := range []string{"", "   ", "not a url", "ftp://example.com/x", "/relative/path"} {
			_, err := svc.ImportURL(ctx, raw)
			assert.True(t, errors.Is(err, domain.ErrInvalidRequest), "url %q: %v", raw, err)
		}
	})

	t.Run("extracts and matches on cache miss", func(t *testing.T) {
		cache := NewMockCacheRepository()
		fetcher := &MockPageFetcher{page: okPage(chiliPage)}
		metrics := &recordingMetrics{}
		svc := NewImportService(cache, fetcher, catalog, nil, ImportServiceConfig{Metrics: metrics})

		result, err := svc.ImportURL(ctx, "https://example.com/chili#comments")
		require.NoError(t, err)

		assert.NotEmpty(t, result.ID)
		require.NotNil(t, result.Recipe)
		assert.Equal(t, "Chili", result.Recipe.Name)
		assert.Equal(t, domain.ConfidenceHigh, result.Confidence)
		require.Len(t, result.MatchedIngredients, 1)
		assert.Equal(t, int64(1), result.MatchedIngredients[0].Ingredient.ID)
		assert.Equal(t, []string{"1 lb ground beef"}, result.UnmatchedLines)

		assert.True(t, cache.setCalled)
		assert.Contains(t, cache.data, "import:url:https://example.com/chili")
		assert.Equal(t, []string{domain.SourceStructuredMarkup}, metrics.imports)
		assert.Equal(t, 1, metrics.cacheMisses)
	})

	t.Run("returns cached result with a fresh id", func(t *testing.T) {
		cache := NewMockCacheRepository()
		fetcher := &MockPageFetcher{page: okPage(chiliPage)}
		svc := NewImportService(cache, fetcher, catalog, nil, ImportServiceConfig{})

		first, err := svc.ImportURL(ctx, "https://example.com/chili")
		require.NoError(t, err)
		second, err := svc.ImportURL(ctx, "https://example.com/chili")
		require.NoError(t, err)

		assert.Equal(t, 1, fetcher.calls)
		assert.Equal(t, first.Recipe, second.Recipe)
		assert.NotEqual(t, first.ID, second.ID)
	})

	t.Run("cached extraction is matched against the current catalog", func(t *testing.T) {
		cache := NewMockCacheRepository()
		fetcher := &MockPageFetcher{page: okPage(chiliPage)}
		current := &MockCatalog{catalog: testCatalog()}
		svc := NewImportService(cache, fetcher, current, nil, ImportServiceConfig{})

		first, err := svc.ImportURL(ctx, "https://example.com/chili")
		require.NoError(t, err)
		assert.Equal(t, []string{"1 lb ground beef"}, first.UnmatchedLines)

		// catalog reloaded with beef after the page was cached
		reloaded := testCatalog()
		reloaded.Ingredients = append(reloaded.Ingredients, domain.CanonicalIngredient{ID: 10, Name: "beef"})
		reloaded.Aliases = append(reloaded.Aliases, domain.IngredientAlias{ID: 3, Alias: "ground beef", IngredientID: 10})
		current.catalog = reloaded

		second, err := svc.ImportURL(ctx, "https://example.com/chili")
		require.NoError(t, err)

		assert.Equal(t, 1, fetcher.calls)
		assert.Empty(t, second.UnmatchedLines)
		require.Len(t, second.MatchedIngredients, 2)
		assert.Equal(t, int64(10), second.MatchedIngredients[1].Ingredient.ID)
	})

	t.Run("cache holds the extraction without matches", func(t *testing.T) {
		cache := NewMockCacheRepository()
		svc := NewImportService(cache, &MockPageFetcher{page: okPage(chiliPage)}, catalog, nil, ImportServiceConfig{})

		_, err := svc.ImportURL(ctx, "https://example.com/chili")
		require.NoError(t, err)

		stored := string(cache.data["import:url:https://example.com/chili"])
		assert.Contains(t, stored, `"source":"structured-markup"`)
		assert.NotContains(t, stored, "matchedIngredients")
	})

	t.Run("cache failure falls through to fetch", func(t *testing.T) {
		cache := NewMockCacheRepository()
		cache.getError = domain.ErrCacheUnavailable
		cache.setError = domain.ErrCacheUnavailable
		fetcher := &MockPageFetcher{page: okPage(chiliPage)}
		svc := NewImportService(cache, fetcher, catalog, nil, ImportServiceConfig{})

		result, err := svc.ImportURL(ctx, "https://example.com/chili")
		require.NoError(t, err)
		assert.NotNil(t, result.Recipe)
		assert.Equal(t, 1, fetcher.calls)
	})

	t.Run("non-2xx status is a fetch error", func(t *testing.T) {
		page := okPage("gone")
		page.StatusCode = 404
		metrics := &recordingMetrics{}
		svc := NewImportService(nil, &MockPageFetcher{page: page}, catalog, nil, ImportServiceConfig{Metrics: metrics})

		_, err := svc.ImportURL(ctx, "https://example.com/chili")
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrFetchFailed))

		var fetchErr *domain.FetchError
		require.True(t, errors.As(err, &fetchErr))
		assert.Equal(t, 404, fetchErr.StatusCode)
		assert.Equal(t, []int{404}, metrics.fetchFailures)
	})

	t.Run("transport failure is a fetch error", func(t *testing.T) {
		cause := errors.New("connection refused")
		svc := NewImportService(nil, &MockPageFetcher{err: cause}, catalog, nil, ImportServiceConfig{})

		_, err := svc.ImportURL(ctx, "https://example.com/chili")
		assert.True(t, errors.Is(err, domain.ErrFetchFailed))
		assert.True(t, errors.Is(err, cause))
	})

	t.Run("page without recipe is data, not an error", func(t *testing.T) {
		cache := NewMockCacheRepository()
		svc := NewImportService(cache, &MockPageFetcher{page: okPage("<html><body><p>hi</p></body></html>")}, catalog, nil, ImportServiceConfig{})

		result, err := svc.ImportURL(ctx, "https://example.com/chili")
		require.NoError(t, err)
		assert.Nil(t, result.Recipe)
		assert.Equal(t, domain.SourceHeuristic, result.Source)
		assert.Empty(t, result.MatchedIngredients)
		assert.False(t, cache.setCalled)
	})

	t.Run("catalog failure is reported", func(t *testing.T) {
		broken := &MockCatalog{err: errors.New("db down")}
		svc := NewImportService(nil, &MockPageFetcher{page: okPage(chiliPage)}, broken, nil, ImportServiceConfig{})

		_, err := svc.ImportURL(ctx, "https://example.com/chili")
		assert.True(t, errors.Is(err, domain.ErrCatalogUnavailable))
	})
}

func TestImportText(t *testing.T) {
	ctx := context.Background()
	svc := NewImportService(nil, nil, &MockCatalog{catalog: testCatalog()}, nil, ImportServiceConfig{})

	t.Run("parses and matches", func(t *testing.T) {
		result, err := svc.ImportText(ctx, paprikaSample, FormatAuto)
		require.NoError(t, err)
		require.NotNil(t, result.Recipe)
		assert.Equal(t, "flat-text:paprika", result.Source)
		assert.Equal(t, len(result.Recipe.Ingredients), len(result.MatchedIngredients)+len(result.UnmatchedLines))
	})

	t.Run("unparseable text carries a hint", func(t *testing.T) {
		result, err := svc.ImportText(ctx, "", FormatAuto)
		require.NoError(t, err)
		assert.Nil(t, result.Recipe)
		assert.NotEmpty(t, result.Hint)
		assert.NotNil(t, result.MatchedIngredients)
		assert.NotNil(t, result.UnmatchedLines)
	})
}

func TestImportArchive(t *testing.T) {
	ctx := context.Background()
	svc := NewImportService(nil, nil, &MockCatalog{catalog: testCatalog()}, nil, ImportServiceConfig{})

	t.Run("paprika export with a text sibling", func(t *testing.T) {
		export := zipBytes(t,
			zipFile{"Garlic Bread.paprikarecipe", gzipBytes(t, []byte(`{"name":"Garlic Bread","ingredients":"3 cloves garlic\n1 baguette"}`))},
			zipFile{"noodles.mmf", []byte(mealMasterSample)},
		)

		results, err := svc.ImportArchive(ctx, export)
		require.NoError(t, err)
		require.Len(t, results, 2)

		assert.Equal(t, "Garlic Bread", results[0].Recipe.Name)
		assert.Equal(t, domain.SourcePaprikaJSON, results[0].Source)
		require.Len(t, results[0].MatchedIngredients, 1)
		assert.Equal(t, []string{"1 baguette"}, results[0].UnmatchedLines)

		assert.Equal(t, "Garlic Butter Noodles", results[1].Recipe.Name)
		assert.NotEqual(t, results[0].ID, results[1].ID)
	})

	t.Run("unrecognized bytes yield no results", func(t *testing.T) {
		results, err := svc.ImportArchive(ctx, []byte("plain words"))
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("empty upload is invalid", func(t *testing.T) {
		_, err := svc.ImportArchive(ctx, nil)
		assert.True(t, errors.Is(err, domain.ErrInvalidRequest))
	})
}

func TestMatchLines(t *testing.T) {
	svc := NewImportService(nil, nil, &MockCatalog{catalog: testCatalog()}, nil, ImportServiceConfig{})

	report, err := svc.MatchLines(context.Background(), []string{"2 cloves Garlic", "1 cup water", "1 celery stalk"})
	require.NoError(t, err)

	assert.Equal(t, 3, report.TotalLines)
	require.Len(t, report.Matched, 2)
	assert.Equal(t, int64(1), report.Matched[0].Ingredient.ID)
	assert.Equal(t, int64(9), report.Matched[1].Ingredient.ID)
	assert.Equal(t, []string{"1 cup water"}, report.UnmatchedLines)
}

func TestSave(t *testing.T) {
	ctx := context.Background()
	result := &domain.ImportResult{
		ID:     "abc",
		Recipe: &domain.ParsedRecipe{Name: "Chili", Ingredients: []string{"1 lb beef"}},
	}

	t.Run("without a store", func(t *testing.T) {
		svc := NewImportService(nil, nil, nil, nil, ImportServiceConfig{})
		_, err := svc.Save(ctx, "owner-1", result)
		assert.True(t, errors.Is(err, domain.ErrPersistenceUnavailable))
	})

	t.Run("validates input", func(t *testing.T) {
		svc := NewImportService(nil, nil, nil, NewMockRecipeRepository(), ImportServiceConfig{})

		_, err := svc.Save(ctx, "", result)
		assert.True(t, errors.Is(err, domain.ErrInvalidRequest))

		_, err = svc.Save(ctx, "owner-1", &domain.ImportResult{})
		assert.True(t, errors.Is(err, domain.ErrInvalidRequest))
	})

	t.Run("hands recipe and matches to the store", func(t *testing.T) {
		store := NewMockRecipeRepository()
		svc := NewImportService(nil, nil, nil, store, ImportServiceConfig{})

		saved, err := svc.Save(ctx, "owner-1", result)
		require.NoError(t, err)
		assert.Equal(t, "abc", saved.ID)
		assert.Equal(t, "owner-1", saved.OwnerID)
		assert.NotNil(t, saved.IngredientMatches)

		got, err := svc.GetRecipe(ctx, "abc")
		require.NoError(t, err)
		assert.Equal(t, "Chili", got.Recipe.Name)
	})

	t.Run("store errors propagate", func(t *testing.T) {
		store := NewMockRecipeRepository()
		store.saveErr = domain.ErrForbidden
		svc := NewImportService(nil, nil, nil, store, ImportServiceConfig{})

		_, err := svc.Save(ctx, "intruder", result)
		assert.True(t, errors.Is(err, domain.ErrForbidden))
	})
}
