package usecase

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/recipebox/backend/internal/domain"
	"github.com/recipebox/backend/pkg/logger"
)

const (
	defaultPartialThreshold = 0.5 // partial candidates must score strictly above this
	minAliasTokenLength     = 2   // key tokens must be longer than this to hit an alias
	exactMatchScore         = 1.0
)

// MatchConfig holds configuration for the ingredient matcher
type MatchConfig struct {
	PartialThreshold float64
	Logger           *zap.Logger
}

// IngredientMatcher resolves ingredient lines against a caller-supplied catalog
type IngredientMatcher struct {
	partialThreshold float64
	normalizer       *IngredientNormalizer
	logger           *zap.Logger
}

// NewIngredientMatcher creates a new matcher with the given configuration
func NewIngredientMatcher(config MatchConfig) *IngredientMatcher {
	threshold := config.PartialThreshold
	if threshold <= 0 || threshold >= 1 {
		threshold = defaultPartialThreshold
	}

	log := logger.OrNop(config.Logger)
	return &IngredientMatcher{
		partialThreshold: threshold,
		normalizer:       NewIngredientNormalizer(log),
		logger:           log,
	}
}

type preparedIngredient struct {
	ingredient domain.CanonicalIngredient
	form       string
	length     int
}

type preparedAlias struct {
	alias  domain.IngredientAlias
	form   string
	length int
}

// preparedCatalog is the comparison view of a catalog, built once per batch
type preparedCatalog struct {
	ingredients []preparedIngredient
	aliases     []preparedAlias
	byID        map[int64]int
}

func prepareCatalog(catalog *domain.Catalog) *preparedCatalog {
	p := &preparedCatalog{byID: make(map[int64]int)}
	if catalog == nil {
		return p
	}

	p.ingredients = make([]preparedIngredient, 0, len(catalog.Ingredients))
	for _, ing := range catalog.Ingredients {
		form := comparisonForm(ing.Name)
		if _, seen := p.byID[ing.ID]; !seen {
			p.byID[ing.ID] = len(p.ingredients)
		}
		p.ingredients = append(p.ingredients, preparedIngredient{
			ingredient: ing,
			form:       form,
			length:     utf8.RuneCountInString(form),
		})
	}

	p.aliases = make([]preparedAlias, 0, len(catalog.Aliases))
	for _, a := range catalog.Aliases {
		form := comparisonForm(a.Alias)
		if form == "" {
			continue
		}
		p.aliases = append(p.aliases, preparedAlias{
			alias:  a,
			form:   form,
			length: utf8.RuneCountInString(form),
		})
	}

	return p
}

// resolve returns a copy of the canonical ingredient for id, or an id-only
// reference when the alias table points outside the ingredient table.
func (p *preparedCatalog) resolve(id int64) *domain.CanonicalIngredient {
	if idx, ok := p.byID[id]; ok {
		ing := p.ingredients[idx].ingredient
		return &ing
	}
	return &domain.CanonicalIngredient{ID: id}
}

// MatchLine normalizes a raw line and matches its key
func (m *IngredientMatcher) MatchLine(line string, catalog *domain.Catalog) domain.MatchResult {
	return m.matchPrepared(line, m.normalizer.Normalize(line), prepareCatalog(catalog))
}

// MatchKey matches an already-normalized key. The first rule that yields a
// candidate decides: exact, then alias, then partial.
func (m *IngredientMatcher) MatchKey(key string, catalog *domain.Catalog) domain.MatchResult {
	return m.matchPrepared(key, key, prepareCatalog(catalog))
}

// MatchAll matches every line independently against one prepared catalog.
// Unmatched lines are kept verbatim and in order.
func (m *IngredientMatcher) MatchAll(ctx context.Context, lines []string, catalog *domain.Catalog) (domain.MatchReport, error) {
	report := domain.MatchReport{
		Matched:        make([]domain.MatchResult, 0, len(lines)),
		UnmatchedLines: make([]string, 0),
		TotalLines:     len(lines),
	}

	prepared := prepareCatalog(catalog)
	for _, line := range lines {
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		default:
		}

		result := m.matchPrepared(line, m.normalizer.Normalize(line), prepared)
		if result.Matched() {
			report.Matched = append(report.Matched, result)
		} else {
			report.UnmatchedLines = append(report.UnmatchedLines, line)
		}
	}

	m.logger.Debug("matched ingredient batch",
		zap.Int("lines", report.TotalLines),
		zap.Int("matched", len(report.Matched)),
		zap.Int("unmatched", len(report.UnmatchedLines)))

	return report, nil
}

func (m *IngredientMatcher) matchPrepared(line, key string, p *preparedCatalog) domain.MatchResult {
	result := domain.MatchResult{Line: line, Key: key}
	if key == "" {
		return result
	}

	if r, ok := m.matchExact(key, p); ok {
		r.Line = line
		return r
	}
	if r, ok := m.matchAlias(key, p); ok {
		r.Line = line
		return r
	}
	if r, ok := m.matchPartial(key, p); ok {
		r.Line = line
		return r
	}

	m.logger.Debug("no ingredient match", zap.String("line", line), zap.String("key", key))
	return result
}

func (m *IngredientMatcher) matchExact(key string, p *preparedCatalog) (domain.MatchResult, bool) {
	for i := range p.ingredients {
		if p.ingredients[i].form == key {
			ing := p.ingredients[i].ingredient
			return domain.MatchResult{
				Key:         key,
				Ingredient:  &ing,
				MatchType:   domain.MatchExact,
				MatchedTerm: ing.Name,
				Score:       exactMatchScore,
			}, true
		}
	}
	return domain.MatchResult{}, false
}

// matchAlias accepts an alias when the key contains it, or when it contains one
// of the key's tokens longer than two characters. The longest alias wins; ties
// go to the earliest row.
func (m *IngredientMatcher) matchAlias(key string, p *preparedCatalog) (domain.MatchResult, bool) {
	var tokens []string
	for _, tok := range strings.Fields(key) {
		if utf8.RuneCountInString(tok) > minAliasTokenLength {
			tokens = append(tokens, tok)
		}
	}

	best := -1
	for i := range p.aliases {
		a := &p.aliases[i]
		if !aliasHits(key, tokens, a.form) {
			continue
		}
		if best < 0 || a.length > p.aliases[best].length {
			best = i
		}
	}
	if best < 0 {
		return domain.MatchResult{}, false
	}

	a := p.aliases[best]
	return domain.MatchResult{
		Key:         key,
		Ingredient:  p.resolve(a.alias.IngredientID),
		MatchType:   domain.MatchAlias,
		MatchedTerm: a.alias.Alias,
		Score:       lengthRatio(utf8.RuneCountInString(key), a.length),
	}, true
}

func aliasHits(key string, tokens []string, aliasForm string) bool {
	if strings.Contains(key, aliasForm) {
		return true
	}
	for _, tok := range tokens {
		if strings.Contains(aliasForm, tok) {
			return true
		}
	}
	return false
}

// matchPartial scores substring relations in either direction by length ratio
// and accepts the best candidate only when it clears the threshold.
func (m *IngredientMatcher) matchPartial(key string, p *preparedCatalog) (domain.MatchResult, bool) {
	keyLen := utf8.RuneCountInString(key)
	best := -1
	bestScore := 0.0

	for i := range p.ingredients {
		ing := &p.ingredients[i]
		if ing.form == "" {
			continue
		}
		if !strings.Contains(key, ing.form) && !strings.Contains(ing.form, key) {
			continue
		}
		score := lengthRatio(keyLen, ing.length)
		if score > bestScore {
			best = i
			bestScore = score
		}
	}

	if best < 0 || bestScore <= m.partialThreshold {
		return domain.MatchResult{}, false
	}

	ing := p.ingredients[best].ingredient
	return domain.MatchResult{
		Key:         key,
		Ingredient:  &ing,
		MatchType:   domain.MatchPartial,
		MatchedTerm: ing.Name,
		Score:       bestScore,
	}, true
}

// lengthRatio is min/max of two lengths, 0 when either is empty
func lengthRatio(a, b int) float64 {
	if a <= 0 || b <= 0 {
		return 0
	}
	if a > b {
		a, b = b, a
	}
	return float64(a) / float64(b)
}
