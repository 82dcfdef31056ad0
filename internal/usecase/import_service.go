package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/recipebox/backend/internal/domain"
	"github.com/recipebox/backend/pkg/logger"
)

const (
	defaultImportCacheTTL = 24 * time.Hour
	urlCacheKeyPrefix     = "import:url:"
)

// ImportRecorder receives import telemetry. The prometheus adapter implements it.
type ImportRecorder interface {
	RecordImport(source string, confidence domain.Confidence, elapsed time.Duration)
	RecordFetchFailure(statusCode int)
	RecordMatches(report domain.MatchReport)
	RecordCacheLookup(hit bool)
}

type nopRecorder struct{}

func (nopRecorder) RecordImport(string, domain.Confidence, time.Duration) {}
func (nopRecorder) RecordFetchFailure(int)                                {}
func (nopRecorder) RecordMatches(domain.MatchReport)                      {}
func (nopRecorder) RecordCacheLookup(bool)                                {}

// ImportServiceConfig holds configuration for the import service
type ImportServiceConfig struct {
	CacheTTL         time.Duration
	MaxArchiveDepth  int
	MaxEntryBytes    int64
	MaxTotalBytes    int64
	PartialThreshold float64
	Logger           *zap.Logger
	Metrics          ImportRecorder
}

// ImportService turns URLs, pasted text and export archives into recipes
// with matched ingredients. Cache, catalog and persistence are optional.
type ImportService struct {
	cache    domain.CacheRepository
	fetcher  domain.PageFetcher
	catalog  domain.IngredientCatalog
	recipes  domain.RecipeRepository
	extract  *MarkupExtractor
	text     *TextParser
	archive  *ArchiveDecoder
	jsonDec  *JSONRecipeDecoder
	matcher  *IngredientMatcher
	metrics  ImportRecorder
	logger   *zap.Logger
	cacheTTL time.Duration
}

// NewImportService creates a new import service with dependencies
func NewImportService(
	cache domain.CacheRepository,
	fetcher domain.PageFetcher,
	catalog domain.IngredientCatalog,
	recipes domain.RecipeRepository,
	config ImportServiceConfig,
) *ImportService {
	log := logger.OrNop(config.Logger)

	cacheTTL := config.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = defaultImportCacheTTL
	}

	var metrics ImportRecorder = nopRecorder{}
	if config.Metrics != nil {
		metrics = config.Metrics
	}

	return &ImportService{
		cache:   cache,
		fetcher: fetcher,
		catalog: catalog,
		recipes: recipes,
		extract: NewMarkupExtractor(log),
		text:    NewTextParser(log),
		archive: NewArchiveDecoder(ArchiveConfig{
			MaxDepth:      config.MaxArchiveDepth,
			MaxEntryBytes: config.MaxEntryBytes,
			MaxTotalBytes: config.MaxTotalBytes,
			Logger:        log,
		}),
		jsonDec: NewJSONRecipeDecoder(log),
		matcher: NewIngredientMatcher(MatchConfig{
			PartialThreshold: config.PartialThreshold,
			Logger:           log,
		}),
		metrics:  metrics,
		logger:   log,
		cacheTTL: cacheTTL,
	}
}

// ImportURL fetches a page and extracts a recipe from it.
// Flow: check cache -> fetch -> extract -> cache -> match ingredients -> return
// Only the extraction is cached, so matching always sees the current catalog.
func (s *ImportService) ImportURL(ctx context.Context, rawURL string) (*domain.ImportResult, error) {
	start := time.Now()

	pageURL, err := validatePageURL(rawURL)
	if err != nil {
		return nil, err
	}
	cacheKey := urlCacheKeyPrefix + pageURL

	extraction, cached := s.getFromCache(ctx, cacheKey)
	if !cached {
		extraction, err = s.fetchAndExtract(ctx, pageURL)
		if err != nil {
			return nil, err
		}
		// only successful extractions are worth caching
		if extraction.Recipe != nil {
			if err := s.setInCache(ctx, cacheKey, extraction); err != nil {
				s.logger.Warn("failed to cache import", zap.String("url", pageURL), zap.Error(err))
			}
		}
	}

	catalog, err := s.loadCatalog(ctx)
	if err != nil {
		return nil, err
	}
	result, err := s.buildResult(ctx, extraction, catalog)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordImport(result.Source, result.Confidence, time.Since(start))
	s.logger.Info("imported recipe from url",
		zap.String("url", pageURL),
		zap.String("source", result.Source),
		zap.String("confidence", string(result.Confidence)),
		zap.Bool("found", result.Recipe != nil),
		zap.Bool("cached", cached))
	return result, nil
}

func (s *ImportService) fetchAndExtract(ctx context.Context, pageURL string) (domain.ExtractionResult, error) {
	if s.fetcher == nil {
		return domain.ExtractionResult{}, &domain.FetchError{URL: pageURL, Err: errors.New("no fetcher configured")}
	}

	page, err := s.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		var fetchErr *domain.FetchError
		if !errors.As(err, &fetchErr) {
			fetchErr = &domain.FetchError{URL: pageURL, Err: err}
		}
		s.metrics.RecordFetchFailure(fetchErr.StatusCode)
		return domain.ExtractionResult{}, fetchErr
	}
	if !page.OK() {
		s.metrics.RecordFetchFailure(page.StatusCode)
		return domain.ExtractionResult{}, &domain.FetchError{URL: pageURL, StatusCode: page.StatusCode}
	}

	baseURL := page.FinalURL
	if baseURL == "" {
		baseURL = pageURL
	}
	return s.extract.Extract(string(page.Body), baseURL), nil
}

// ImportText parses pasted or uploaded recipe text
func (s *ImportService) ImportText(ctx context.Context, text string, format TextFormat) (*domain.ImportResult, error) {
	start := time.Now()

	extraction := s.text.Parse(text, format)

	catalog, err := s.loadCatalog(ctx)
	if err != nil {
		return nil, err
	}
	result, err := s.buildResult(ctx, extraction, catalog)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordImport(result.Source, result.Confidence, time.Since(start))
	return result, nil
}

// ImportArchive decodes an export file (Paprika archive, zip of recipes,
// gzipped or bare JSON) and returns one result per recipe found
func (s *ImportService) ImportArchive(ctx context.Context, data []byte) ([]*domain.ImportResult, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: archive is empty", domain.ErrInvalidRequest)
	}
	start := time.Now()

	var extractions []domain.ExtractionResult
	for _, entry := range s.archive.Decode(data) {
		switch entry.Kind {
		case domain.EntryJSON:
			extractions = append(extractions, s.jsonDec.Decode(entry.Data)...)
		case domain.EntryText:
			extractions = append(extractions, s.text.ParseAll(string(entry.Data), FormatAuto)...)
		}
	}

	results := make([]*domain.ImportResult, 0, len(extractions))
	if len(extractions) == 0 {
		return results, nil
	}

	catalog, err := s.loadCatalog(ctx)
	if err != nil {
		return nil, err
	}
	for _, extraction := range extractions {
		result, err := s.buildResult(ctx, extraction, catalog)
		if err != nil {
			return nil, err
		}
		s.metrics.RecordImport(result.Source, result.Confidence, time.Since(start))
		results = append(results, result)
	}

	s.logger.Info("imported archive", zap.Int("bytes", len(data)), zap.Int("recipes", len(results)))
	return results, nil
}

// MatchLines runs the ingredient matcher over free-standing lines
func (s *ImportService) MatchLines(ctx context.Context, lines []string) (domain.MatchReport, error) {
	catalog, err := s.loadCatalog(ctx)
	if err != nil {
		return domain.MatchReport{}, err
	}
	report, err := s.matcher.MatchAll(ctx, lines, catalog)
	if err != nil {
		return domain.MatchReport{}, err
	}
	s.metrics.RecordMatches(report)
	return report, nil
}

// Save hands a reviewed import to the recipe store
func (s *ImportService) Save(ctx context.Context, ownerID string, result *domain.ImportResult) (*domain.SavedRecipe, error) {
	if s.recipes == nil {
		return nil, domain.ErrPersistenceUnavailable
	}
	if strings.TrimSpace(ownerID) == "" {
		return nil, fmt.Errorf("%w: owner id is required", domain.ErrInvalidRequest)
	}
	if result == nil || result.Recipe == nil || strings.TrimSpace(result.Recipe.Name) == "" {
		return nil, fmt.Errorf("%w: a named recipe is required", domain.ErrInvalidRequest)
	}

	id := result.ID
	if id == "" {
		id = uuid.NewString()
	}
	matches := result.MatchedIngredients
	if matches == nil {
		matches = []domain.MatchResult{}
	}

	saved := &domain.SavedRecipe{
		ID:                id,
		OwnerID:           ownerID,
		Recipe:            *result.Recipe,
		IngredientMatches: matches,
	}
	if err := s.recipes.SaveRecipe(ctx, saved); err != nil {
		return nil, err
	}

	s.logger.Info("saved recipe", zap.String("id", saved.ID), zap.String("owner", ownerID))
	return saved, nil
}

// GetRecipe loads a previously saved recipe
func (s *ImportService) GetRecipe(ctx context.Context, id string) (*domain.SavedRecipe, error) {
	if s.recipes == nil {
		return nil, domain.ErrPersistenceUnavailable
	}
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: recipe id is required", domain.ErrInvalidRequest)
	}
	return s.recipes.GetRecipe(ctx, id)
}

func (s *ImportService) buildResult(ctx context.Context, extraction domain.ExtractionResult, catalog *domain.Catalog) (*domain.ImportResult, error) {
	result := &domain.ImportResult{
		ID:                 uuid.NewString(),
		Recipe:             extraction.Recipe,
		Confidence:         extraction.Confidence,
		Source:             extraction.Source,
		Hint:               extraction.Hint,
		MatchedIngredients: []domain.MatchResult{},
		UnmatchedLines:     []string{},
	}
	if extraction.Recipe == nil {
		return result, nil
	}

	report, err := s.matcher.MatchAll(ctx, extraction.Recipe.Ingredients, catalog)
	if err != nil {
		return nil, err
	}
	result.MatchedIngredients = report.Matched
	result.UnmatchedLines = report.UnmatchedLines
	s.metrics.RecordMatches(report)
	return result, nil
}

// loadCatalog reads the whole vocabulary once per request. No catalog means
// every line goes unmatched.
func (s *ImportService) loadCatalog(ctx context.Context) (*domain.Catalog, error) {
	if s.catalog == nil {
		return &domain.Catalog{}, nil
	}

	ingredients, err := s.catalog.ListIngredients(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, err)
	}
	aliases, err := s.catalog.ListAliases(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, err)
	}
	return &domain.Catalog{Ingredients: ingredients, Aliases: aliases}, nil
}

// getFromCache retrieves a previous extraction; any failure counts as a miss
func (s *ImportService) getFromCache(ctx context.Context, key string) (domain.ExtractionResult, bool) {
	if s.cache == nil {
		return domain.ExtractionResult{}, false
	}

	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			s.logger.Warn("cache lookup failed", zap.String("key", key), zap.Error(err))
		}
		s.metrics.RecordCacheLookup(false)
		return domain.ExtractionResult{}, false
	}

	var extraction domain.ExtractionResult
	if err := json.Unmarshal(data, &extraction); err != nil || extraction.Recipe == nil {
		s.metrics.RecordCacheLookup(false)
		return domain.ExtractionResult{}, false
	}
	s.metrics.RecordCacheLookup(true)
	return extraction, true
}

// setInCache stores an extraction; ingredient matches are never cached
func (s *ImportService) setInCache(ctx context.Context, key string, result domain.ExtractionResult) error {
	if s.cache == nil {
		return nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, key, data, s.cacheTTL)
}

// validatePageURL accepts absolute http(s) URLs and drops the fragment
func validatePageURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: url is required", domain.ErrInvalidRequest)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: url must be absolute http or https", domain.ErrInvalidRequest)
	}
	u.Fragment = ""
	return u.String(), nil
}
