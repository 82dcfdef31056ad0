package usecase

import (
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/recipebox/backend/internal/domain"
	"github.com/recipebox/backend/pkg/logger"
)

// paprikaRecipe is the per-recipe JSON document inside a Paprika export
type paprikaRecipe struct {
	UID         string   `json:"uid"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Ingredients string   `json:"ingredients"`
	Directions  string   `json:"directions"`
	Notes       string   `json:"notes"`
	Servings    string   `json:"servings"`
	PrepTime    string   `json:"prep_time"`
	CookTime    string   `json:"cook_time"`
	TotalTime   string   `json:"total_time"`
	Source      string   `json:"source"`
	SourceURL   string   `json:"source_url"`
	ImageURL    string   `json:"image_url"`
	Categories  []string `json:"categories"`
}

// JSONRecipeDecoder turns JSON archive entries into recipes. It understands
// Paprika's per-recipe documents and schema.org Recipe objects.
type JSONRecipeDecoder struct {
	logger *zap.Logger
}

// NewJSONRecipeDecoder creates a new JSON recipe decoder
func NewJSONRecipeDecoder(log *zap.Logger) *JSONRecipeDecoder {
	return &JSONRecipeDecoder{logger: logger.OrNop(log)}
}

// Decode returns every recipe found in data. Invalid JSON or JSON with no
// recognizable recipe yields an empty slice.
func (d *JSONRecipeDecoder) Decode(data []byte) []domain.ExtractionResult {
	var doc any
	if err := json.Unmarshal(trimBOM(data), &doc); err != nil {
		d.logger.Debug("entry is not valid JSON", zap.Error(err))
		return nil
	}

	var results []domain.ExtractionResult
	for _, node := range recipeObjects(doc) {
		if r := d.decodeObject(node); r.Found() {
			results = append(results, r)
		}
	}
	return results
}

func (d *JSONRecipeDecoder) decodeObject(node map[string]any) domain.ExtractionResult {
	if schemaNodes := findRecipeNodes(node); len(schemaNodes) > 0 {
		if recipe := recipeFromSchema(schemaNodes[0], ""); recipe != nil {
			return domain.ExtractionResult{
				Recipe:     recipe,
				Confidence: domain.ConfidenceHigh,
				Source:     domain.SourceStructuredMarkup,
			}
		}
	}

	if !isPaprikaShaped(node) {
		return domain.ExtractionResult{}
	}

	// re-decode through the typed struct so field types are checked once
	raw, err := json.Marshal(node)
	if err != nil {
		return domain.ExtractionResult{}
	}
	var p paprikaRecipe
	if err := json.Unmarshal(raw, &p); err != nil {
		d.logger.Debug("entry does not match the paprika layout", zap.Error(err))
		return domain.ExtractionResult{}
	}

	recipe := recipeFromPaprika(&p)
	if recipe == nil {
		return domain.ExtractionResult{}
	}
	return domain.ExtractionResult{
		Recipe:     recipe,
		Confidence: domain.ConfidenceHigh,
		Source:     domain.SourcePaprikaJSON,
	}
}

// recipeObjects expands a top-level array into its objects
func recipeObjects(doc any) []map[string]any {
	switch v := doc.(type) {
	case map[string]any:
		return []map[string]any{v}
	case []any:
		out := make([]map[string]any, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

func isPaprikaShaped(node map[string]any) bool {
	if _, ok := node["name"].(string); !ok {
		return false
	}
	_, hasIngredients := node["ingredients"].(string)
	_, hasDirections := node["directions"].(string)
	return hasIngredients || hasDirections
}

func recipeFromPaprika(p *paprikaRecipe) *domain.ParsedRecipe {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil
	}
	categories := make([]string, 0, len(p.Categories))
	for _, c := range p.Categories {
		if c = strings.TrimSpace(c); c != "" {
			categories = append(categories, c)
		}
	}
	if len(categories) == 0 {
		categories = nil
	}

	return &domain.ParsedRecipe{
		Name:         name,
		Description:  strings.TrimSpace(p.Description),
		PrepTime:     ParseDuration(p.PrepTime),
		CookTime:     ParseDuration(p.CookTime),
		TotalTime:    ParseDuration(p.TotalTime),
		Yield:        strings.TrimSpace(p.Servings),
		Ingredients:  nonBlankLines(p.Ingredients),
		Instructions: nonBlankLines(p.Directions),
		Categories:   categories,
		Notes:        strings.TrimSpace(p.Notes),
		SourceName:   strings.TrimSpace(p.Source),
		SourceURL:    strings.TrimSpace(p.SourceURL),
		ImageURL:     strings.TrimSpace(p.ImageURL),
	}
}

func nonBlankLines(s string) []string {
	out := []string{}
	for _, line := range strings.Split(normalizeLineEndings(s), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func trimBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xef && data[1] == 0xbb && data[2] == 0xbf {
		return data[3:]
	}
	return data
}
