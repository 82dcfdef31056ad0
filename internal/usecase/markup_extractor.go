package usecase

import (
	"encoding/json"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/recipebox/backend/internal/domain"
	"github.com/recipebox/backend/pkg/logger"
)

var (
	markdownImagePattern  = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	markdownLinkPattern   = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	markdownEscapePattern = regexp.MustCompile("\\\\([\\\\`*_{}\\[\\]()#+\\-.!|>~])")
	jsonCommentPattern    = regexp.MustCompile(`^\s*<!--|-->\s*$`)
)

// selectors stripped from the main content before heuristic parsing
const boilerplateSelector = "script, style, noscript, template, iframe, svg, nav, header, footer, aside, form, button"

// tried in order for the main content container
var mainContentSelectors = []string{"article", "main", "[role=main]", "body"}

// MarkupExtractor derives a recipe from a fetched page: schema.org JSON-LD
// first, microdata second, and a content heuristic last.
type MarkupExtractor struct {
	logger *zap.Logger
}

// NewMarkupExtractor creates a new markup extractor
func NewMarkupExtractor(log *zap.Logger) *MarkupExtractor {
	return &MarkupExtractor{logger: logger.OrNop(log)}
}

// Extract never fails. When nothing recipe-like is found the result carries
// a nil recipe with low confidence.
func (e *MarkupExtractor) Extract(markup, pageURL string) domain.ExtractionResult {
	notFound := domain.ExtractionResult{Confidence: domain.ConfidenceLow, Source: domain.SourceHeuristic}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		e.logger.Debug("markup could not be parsed", zap.String("url", pageURL), zap.Error(err))
		return notFound
	}

	if recipe := e.fromJSONLD(doc, pageURL); recipe != nil {
		e.logger.Debug("recipe found in JSON-LD", zap.String("url", pageURL))
		return domain.ExtractionResult{Recipe: recipe, Confidence: domain.ConfidenceHigh, Source: domain.SourceStructuredMarkup}
	}

	if recipe := e.fromMicrodata(doc, pageURL); recipe != nil {
		e.logger.Debug("recipe found in microdata", zap.String("url", pageURL))
		return domain.ExtractionResult{Recipe: recipe, Confidence: domain.ConfidenceHigh, Source: domain.SourceStructuredMarkup}
	}

	recipe := e.fromContent(doc, pageURL)
	if recipe == nil {
		return notFound
	}

	confidence := domain.ConfidenceLow
	if len(recipe.Ingredients) > 0 {
		confidence = domain.ConfidenceMedium
	}
	e.logger.Debug("recipe derived heuristically",
		zap.String("url", pageURL),
		zap.String("confidence", string(confidence)))
	return domain.ExtractionResult{Recipe: recipe, Confidence: confidence, Source: domain.SourceHeuristic}
}

func (e *MarkupExtractor) fromJSONLD(doc *goquery.Document, pageURL string) *domain.ParsedRecipe {
	var found *domain.ParsedRecipe

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(i int, s *goquery.Selection) bool {
		raw := strings.TrimSpace(jsonCommentPattern.ReplaceAllString(s.Text(), ""))
		raw = strings.TrimSuffix(raw, ";")
		if raw == "" {
			return true
		}

		var payload any
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			e.logger.Debug("skipping malformed JSON-LD block", zap.Int("index", i), zap.Error(err))
			return true
		}

		for _, node := range findRecipeNodes(payload) {
			if recipe := recipeFromSchema(node, pageURL); recipe != nil {
				found = recipe
				return false
			}
		}
		return true
	})

	return found
}

func (e *MarkupExtractor) fromMicrodata(doc *goquery.Document, pageURL string) *domain.ParsedRecipe {
	scope := doc.Find(`[itemscope][itemtype*="schema.org/Recipe"]`).First()
	if scope.Length() == 0 {
		return nil
	}

	node := microdataItem(scope)
	node["@type"] = "Recipe"
	return recipeFromSchema(node, pageURL)
}

// microdataItem collects the itemprops that belong to scope itself, leaving
// out those of nested items, into the same shape JSON-LD decodes to
func microdataItem(scope *goquery.Selection) map[string]any {
	item := make(map[string]any)

	scope.Find("[itemprop]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Parent().Closest("[itemscope]").IsSelection(scope)
	}).Each(func(_ int, s *goquery.Selection) {
		var value any
		if _, nested := s.Attr("itemscope"); nested {
			value = microdataItem(s)
		} else if items := s.Find("li"); items.Length() > 0 {
			list := make([]any, 0, items.Length())
			items.Each(func(_ int, li *goquery.Selection) {
				list = append(list, cleanSchemaText(li.Text()))
			})
			value = list
		} else {
			value = microdataValue(s)
		}

		for _, prop := range strings.Fields(s.AttrOr("itemprop", "")) {
			switch existing := item[prop].(type) {
			case nil:
				item[prop] = value
			case []any:
				if list, ok := value.([]any); ok {
					item[prop] = append(existing, list...)
				} else {
					item[prop] = append(existing, value)
				}
			default:
				item[prop] = []any{existing, value}
			}
		}
	})

	return item
}

// microdataValue reads a property value per the microdata rules for each element kind
func microdataValue(s *goquery.Selection) string {
	if content, ok := s.Attr("content"); ok {
		return content
	}
	switch goquery.NodeName(s) {
	case "img", "audio", "video", "source", "embed", "iframe":
		return s.AttrOr("src", "")
	case "a", "link", "area":
		return s.AttrOr("href", "")
	case "time":
		if dt, ok := s.Attr("datetime"); ok {
			return dt
		}
	case "data", "meter":
		if v, ok := s.Attr("value"); ok {
			return v
		}
	}
	return cleanSchemaText(s.Text())
}

// fromContent is the fallback for pages without structured data: the main
// content is converted to markdown and read with the flat-text section rules.
func (e *MarkupExtractor) fromContent(doc *goquery.Document, pageURL string) *domain.ParsedRecipe {
	name := pageTitle(doc)
	if name == "" {
		return nil
	}

	var main *goquery.Selection
	for _, selector := range mainContentSelectors {
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			main = sel.Clone()
			break
		}
	}
	if main == nil {
		return nil
	}
	main.Find(boilerplateSelector).Remove()

	fragment, err := goquery.OuterHtml(main)
	if err != nil {
		return nil
	}
	markdown, err := htmltomarkdown.ConvertString(fragment)
	if err != nil {
		e.logger.Debug("markdown conversion failed", zap.String("url", pageURL), zap.Error(err))
		return nil
	}

	recipe := &domain.ParsedRecipe{Name: name, Ingredients: []string{}, Instructions: []string{}}
	parseGenericSections(recipe, splitLines(cleanMarkdown(markdown)), true)
	if len(recipe.Ingredients) == 0 && len(recipe.Instructions) == 0 {
		return nil
	}

	// the page prose before the first heading is not a description
	recipe.Description = strings.TrimSpace(metaContent(doc, `meta[property="og:description"]`, `meta[name="description"]`))
	recipe.Notes = ""
	recipe.ImageURL = resolveURL(pageURL, metaContent(doc, `meta[property="og:image"]`))
	recipe.SourceName = strings.TrimSpace(metaContent(doc, `meta[property="og:site_name"]`))
	recipe.SourceURL = pageURL
	return recipe
}

func pageTitle(doc *goquery.Document) string {
	if t := cleanSchemaText(metaContent(doc, `meta[property="og:title"]`)); t != "" {
		return t
	}
	if t := cleanSchemaText(doc.Find("h1").First().Text()); t != "" {
		return t
	}
	return cleanSchemaText(doc.Find("title").First().Text())
}

func metaContent(doc *goquery.Document, selectors ...string) string {
	for _, selector := range selectors {
		if v, ok := doc.Find(selector).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// cleanMarkdown drops images, keeps link text and removes escaping so the
// section parser sees plain lines
func cleanMarkdown(md string) string {
	md = markdownImagePattern.ReplaceAllString(md, "")
	md = markdownLinkPattern.ReplaceAllString(md, "$1")
	return markdownEscapePattern.ReplaceAllString(md, "$1")
}
