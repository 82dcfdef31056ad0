package usecase

import (
	"html"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/recipebox/backend/internal/domain"
)

var (
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
	digitsOnlyPattern = regexp.MustCompile(`^\s*\d+\s*$`)
)

// isRecipeType reports whether a schema.org node's @type names Recipe,
// accepting a string or an array and prefixed forms like "schema:Recipe"
func isRecipeType(node map[string]any) bool {
	switch t := node["@type"].(type) {
	case string:
		return isRecipeTypeName(t)
	case []any:
		for _, v := range t {
			if s, ok := v.(string); ok && isRecipeTypeName(s) {
				return true
			}
		}
	}
	return false
}

func isRecipeTypeName(s string) bool {
	s = strings.TrimSpace(s)
	return s == "Recipe" || strings.HasSuffix(s, "/Recipe") || strings.HasSuffix(s, ":Recipe")
}

// findRecipeNodes walks a decoded JSON-LD document looking for Recipe nodes
// at the top level, inside arrays, and inside @graph containers
func findRecipeNodes(v any) []map[string]any {
	var out []map[string]any
	var walk func(v any, depth int)
	walk = func(v any, depth int) {
		if depth > 4 {
			return
		}
		switch node := v.(type) {
		case []any:
			for _, item := range node {
				walk(item, depth+1)
			}
		case map[string]any:
			if isRecipeType(node) {
				out = append(out, node)
				return
			}
			if graph, ok := node["@graph"]; ok {
				walk(graph, depth+1)
			}
			if main, ok := node["mainEntity"]; ok {
				walk(main, depth+1)
			}
		}
	}
	walk(v, 0)
	return out
}

// recipeFromSchema maps a schema.org Recipe node onto ParsedRecipe.
// A node without a name yields nil.
func recipeFromSchema(node map[string]any, pageURL string) *domain.ParsedRecipe {
	name := cleanSchemaText(stringValue(node["name"]))
	if name == "" {
		name = cleanSchemaText(stringValue(node["headline"]))
	}
	if name == "" {
		return nil
	}

	ingredients := stringList(node["recipeIngredient"])
	if len(ingredients) == 0 {
		ingredients = stringList(node["ingredients"])
	}

	recipe := &domain.ParsedRecipe{
		Name:         name,
		Description:  cleanSchemaText(stringValue(node["description"])),
		PrepTime:     ParseDuration(stringValue(node["prepTime"])),
		CookTime:     ParseDuration(stringValue(node["cookTime"])),
		TotalTime:    ParseDuration(stringValue(node["totalTime"])),
		Yield:        yieldValue(node["recipeYield"]),
		Ingredients:  ingredients,
		Instructions: instructionList(node["recipeInstructions"]),
		Categories:   categoryList(node["recipeCategory"], node["keywords"]),
		SourceName:   personName(node["author"]),
		SourceURL:    resolveURL(pageURL, stringValue(node["url"])),
		ImageURL:     resolveURL(pageURL, imageValue(node["image"])),
	}
	if recipe.SourceName == "" {
		recipe.SourceName = personName(node["publisher"])
	}
	if recipe.SourceURL == "" {
		recipe.SourceURL = pageURL
	}
	return recipe
}

// cleanSchemaText unescapes entities, strips inline tags and collapses whitespace
func cleanSchemaText(s string) string {
	if s == "" {
		return ""
	}
	s = html.UnescapeString(s)
	s = tagPattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
}

// stringValue reads a scalar that sites publish as text, number, a one-element
// array, or an object carrying "@value", "name" or "text"
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case []any:
		for _, item := range val {
			if s := stringValue(item); s != "" {
				return s
			}
		}
	case map[string]any:
		for _, key := range []string{"@value", "name", "text"} {
			if s, ok := val[key].(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

func stringList(v any) []string {
	out := []string{}
	switch val := v.(type) {
	case string:
		for _, line := range strings.Split(normalizeLineEndings(val), "\n") {
			if line = cleanSchemaText(line); line != "" {
				out = append(out, line)
			}
		}
	case []any:
		for _, item := range val {
			if s := cleanSchemaText(stringValue(item)); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// instructionList flattens string, []string, HowToStep and HowToSection forms
func instructionList(v any) []string {
	out := []string{}
	var walk func(v any)
	walk = func(v any) {
		switch val := v.(type) {
		case string:
			for _, line := range strings.Split(normalizeLineEndings(val), "\n") {
				if line = stripListMarker(cleanSchemaText(line)); line != "" {
					out = append(out, line)
				}
			}
		case []any:
			for _, item := range val {
				walk(item)
			}
		case map[string]any:
			if items, ok := val["itemListElement"]; ok {
				walk(items)
				return
			}
			if text, ok := val["text"].(string); ok {
				walk(text)
				return
			}
			if name, ok := val["name"].(string); ok {
				walk(name)
			}
		}
	}
	walk(v)
	return out
}

// yieldValue prefers a descriptive entry such as "4 servings" over a bare count
func yieldValue(v any) string {
	items, ok := v.([]any)
	if !ok {
		return cleanSchemaText(stringValue(v))
	}
	fallback := ""
	for _, item := range items {
		s := cleanSchemaText(stringValue(item))
		if s == "" {
			continue
		}
		if !digitsOnlyPattern.MatchString(s) {
			return s
		}
		if fallback == "" {
			fallback = s
		}
	}
	return fallback
}

func categoryList(values ...any) []string {
	var out []string
	seen := make(map[string]bool)
	for _, v := range values {
		var parts []string
		switch val := v.(type) {
		case string:
			parts = strings.Split(val, ",")
		case []any:
			for _, item := range val {
				parts = append(parts, stringValue(item))
			}
		}
		for _, p := range parts {
			p = cleanSchemaText(p)
			key := strings.ToLower(p)
			if p == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, p)
		}
	}
	return out
}

func personName(v any) string {
	return cleanSchemaText(stringValue(v))
}

// imageValue accepts a URL string, an ImageObject, or an array of either
func imageValue(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case []any:
		for _, item := range val {
			if s := imageValue(item); s != "" {
				return s
			}
		}
	case map[string]any:
		if s, ok := val["url"].(string); ok {
			return strings.TrimSpace(s)
		}
		if s, ok := val["contentUrl"].(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// resolveURL makes ref absolute against base. Unparseable input is returned as-is.
func resolveURL(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || base == "" {
		return ref
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}
