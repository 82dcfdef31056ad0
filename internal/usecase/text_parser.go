package usecase

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/recipebox/backend/internal/domain"
	"github.com/recipebox/backend/pkg/logger"
)

// TextFormat is the closed set of flat-text dialects a caller may declare
type TextFormat string

const (
	FormatAuto       TextFormat = "auto"
	FormatMealMaster TextFormat = "meal-master"
	FormatPaprika    TextFormat = "paprika"
	FormatGeneric    TextFormat = "generic"
)

// SupportedTextFormats lists the dialects in auto-detection priority order
func SupportedTextFormats() []TextFormat {
	return []TextFormat{FormatMealMaster, FormatPaprika, FormatGeneric}
}

// ParseTextFormat maps a user-supplied hint onto a TextFormat. Empty means auto.
func ParseTextFormat(s string) (TextFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return FormatAuto, nil
	case "meal-master", "mealmaster", "mmf":
		return FormatMealMaster, nil
	case "paprika":
		return FormatPaprika, nil
	case "generic", "text", "plain":
		return FormatGeneric, nil
	}
	return "", fmt.Errorf("%w: %q (supported: %s)", domain.ErrUnsupportedFormat, s, supportedFormatsList())
}

func supportedFormatsList() string {
	names := make([]string, 0, 4)
	for _, f := range SupportedTextFormats() {
		names = append(names, string(f))
	}
	return strings.Join(names, ", ")
}

// parseFailureHint is returned to callers when no dialect yields a recipe name
func parseFailureHint() string {
	return fmt.Sprintf("no recipe name could be found; supported formats are %s (or auto to detect)", supportedFormatsList())
}

// parsedText is one recipe produced by a dialect
type parsedText struct {
	recipe     *domain.ParsedRecipe
	confidence domain.Confidence
}

// textDialect is one flat-text convention: a structural sniff plus a parser
type textDialect struct {
	format TextFormat
	detect func(lines []string) bool
	parse  func(lines []string) []parsedText
}

// dialects in fixed detection order; generic accepts anything and goes last
var dialects = []textDialect{
	{format: FormatMealMaster, detect: detectMealMaster, parse: parseMealMaster},
	{format: FormatPaprika, detect: detectPaprika, parse: parsePaprika},
	{format: FormatGeneric, detect: func([]string) bool { return true }, parse: parseGeneric},
}

func dialectFor(format TextFormat) (textDialect, bool) {
	for _, d := range dialects {
		if d.format == format {
			return d, true
		}
	}
	return textDialect{}, false
}

// TextParser turns flat recipe text into ParsedRecipe values
type TextParser struct {
	logger *zap.Logger
}

// NewTextParser creates a new flat-text parser
func NewTextParser(log *zap.Logger) *TextParser {
	return &TextParser{logger: logger.OrNop(log)}
}

// Parse returns the first recipe found in text. Failure is reported as a nil
// recipe with a hint, never as a recipe with a placeholder name.
func (p *TextParser) Parse(text string, format TextFormat) domain.ExtractionResult {
	results := p.ParseAll(text, format)
	if len(results) == 0 {
		return domain.ExtractionResult{
			Confidence: domain.ConfidenceLow,
			Source:     domain.SourceFlatTextPrefix + string(format),
			Hint:       parseFailureHint(),
		}
	}
	return results[0]
}

// ParseAll returns every recipe in text, e.g. each entry of a Meal-Master file
func (p *TextParser) ParseAll(text string, format TextFormat) []domain.ExtractionResult {
	if format == "" {
		format = FormatAuto
	}
	lines := splitLines(text)

	var candidates []textDialect
	if format == FormatAuto {
		candidates = dialects
	} else if d, ok := dialectFor(format); ok {
		candidates = []textDialect{d}
	}

	for _, d := range candidates {
		if format == FormatAuto && !d.detect(lines) {
			continue
		}
		parsed := d.parse(lines)
		if len(parsed) == 0 {
			p.logger.Debug("dialect produced no recipe", zap.String("dialect", string(d.format)))
			continue
		}

		results := make([]domain.ExtractionResult, 0, len(parsed))
		for _, pt := range parsed {
			results = append(results, domain.ExtractionResult{
				Recipe:     pt.recipe,
				Confidence: pt.confidence,
				Source:     domain.SourceFlatTextPrefix + string(d.format),
			})
		}
		p.logger.Debug("parsed recipe text",
			zap.String("dialect", string(d.format)),
			zap.Int("recipes", len(results)))
		return results
	}

	return nil
}

// RenderText writes a recipe in the given dialect; auto renders generic text
func RenderText(recipe *domain.ParsedRecipe, format TextFormat) (string, error) {
	if recipe == nil || strings.TrimSpace(recipe.Name) == "" {
		return "", fmt.Errorf("%w: recipe name is required", domain.ErrInvalidRequest)
	}
	switch format {
	case FormatMealMaster:
		return renderMealMaster(recipe), nil
	case FormatPaprika:
		return renderPaprika(recipe), nil
	case FormatGeneric, FormatAuto, "":
		return renderGeneric(recipe), nil
	}
	return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, format)
}

// normalizeLineEndings maps \r\n and bare \r to \n before any splitting
func normalizeLineEndings(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

func splitLines(text string) []string {
	text = strings.TrimPrefix(text, "\ufeff")
	return strings.Split(normalizeLineEndings(text), "\n")
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// splitList splits a comma separated metadata value, dropping empties and "None"
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" || strings.EqualFold(part, "none") {
			continue
		}
		out = append(out, part)
	}
	return out
}

// ---------------------------------------------------------------------------
// Meal-Master

var (
	mmStartPattern = regexp.MustCompile(`(?i)^\s*(?:MMMMM|-----).*meal-?master`)
	mmEndPattern   = regexp.MustCompile(`^\s*(?:M{5,}|-{5,})\s*$`)
	mmGroupPattern = regexp.MustCompile(`^\s*(?:M{5}|-{5})-*\s*([^-\s][^-]*?)\s*-*\s*$`)
	mmFieldPattern = regexp.MustCompile(`(?i)^\s*(title|categories|yield|servings)\s*:\s*(.*)$`)
)

// a run this long of blank lines before any ingredient means the block is empty
const mmEmptyIngredientsBlankRun = 2

func detectMealMaster(lines []string) bool {
	title, categories := false, false
	for _, line := range lines {
		if mmStartPattern.MatchString(line) {
			return true
		}
		if m := mmFieldPattern.FindStringSubmatch(line); m != nil {
			switch strings.ToLower(m[1]) {
			case "title":
				title = true
			case "categories":
				categories = true
			}
		}
	}
	return title && categories
}

func parseMealMaster(lines []string) []parsedText {
	var chunks [][]string
	var current []string
	inRecipe := false
	sawStart := false

	for _, line := range lines {
		switch {
		case mmStartPattern.MatchString(line):
			if inRecipe && len(current) > 0 {
				chunks = append(chunks, current)
			}
			current = nil
			inRecipe = true
			sawStart = true
		case inRecipe && mmEndPattern.MatchString(line):
			chunks = append(chunks, current)
			current = nil
			inRecipe = false
		case inRecipe:
			current = append(current, line)
		}
	}
	if inRecipe && len(current) > 0 {
		chunks = append(chunks, current)
	}
	if !sawStart {
		chunks = [][]string{lines}
	}

	var out []parsedText
	for _, chunk := range chunks {
		if r := parseMealMasterChunk(chunk); r != nil {
			out = append(out, parsedText{recipe: r, confidence: domain.ConfidenceHigh})
		}
	}
	return out
}

func parseMealMasterChunk(lines []string) *domain.ParsedRecipe {
	recipe := &domain.ParsedRecipe{Ingredients: []string{}, Instructions: []string{}}

	const (
		phaseHeader = iota
		phaseIngredients
		phaseInstructions
	)
	phase := phaseHeader
	fieldsSeen := false
	blankRun := 0
	var paragraph []string

	flush := func() {
		if len(paragraph) > 0 {
			recipe.Instructions = append(recipe.Instructions, strings.Join(paragraph, " "))
			paragraph = nil
		}
	}

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		switch phase {
		case phaseHeader:
			if trimmed == "" {
				if fieldsSeen {
					phase = phaseIngredients
				}
				continue
			}
			if m := mmFieldPattern.FindStringSubmatch(line); m != nil {
				fieldsSeen = true
				value := strings.TrimSpace(m[2])
				switch strings.ToLower(m[1]) {
				case "title":
					recipe.Name = value
				case "categories":
					recipe.Categories = splitList(value)
				case "yield", "servings":
					recipe.Yield = value
				}
				continue
			}
			phase = phaseIngredients
			i--

		case phaseIngredients:
			if trimmed == "" {
				if len(recipe.Ingredients) == 0 {
					blankRun++
					if blankRun >= mmEmptyIngredientsBlankRun {
						phase = phaseInstructions
					}
					continue
				}
				if next := nextNonBlank(lines, i+1); next >= 0 && mmGroupPattern.MatchString(lines[next]) && !mmEndPattern.MatchString(lines[next]) {
					continue
				}
				phase = phaseInstructions
				continue
			}
			if mmGroupPattern.MatchString(line) && !mmEndPattern.MatchString(line) {
				continue
			}
			recipe.Ingredients = append(recipe.Ingredients, trimmed)

		case phaseInstructions:
			if trimmed == "" {
				flush()
				continue
			}
			paragraph = append(paragraph, trimmed)
		}
	}
	flush()

	if recipe.Name == "" {
		return nil
	}
	return recipe
}

func nextNonBlank(lines []string, from int) int {
	for i := from; i < len(lines); i++ {
		if !isBlank(lines[i]) {
			return i
		}
	}
	return -1
}

func renderMealMaster(r *domain.ParsedRecipe) string {
	var b strings.Builder
	b.WriteString("MMMMM----- Recipe via Meal-Master (tm) v8.05\n\n")
	fmt.Fprintf(&b, "      Title: %s\n", r.Name)
	if len(r.Categories) > 0 {
		fmt.Fprintf(&b, " Categories: %s\n", strings.Join(r.Categories, ", "))
	}
	if r.Yield != "" {
		fmt.Fprintf(&b, "      Yield: %s\n", r.Yield)
	}
	b.WriteString("\n")
	if len(r.Ingredients) == 0 {
		b.WriteString("\n")
	}
	for _, line := range r.Ingredients {
		fmt.Fprintf(&b, "  %s\n", line)
	}
	for _, step := range r.Instructions {
		fmt.Fprintf(&b, "\n  %s\n", step)
	}
	b.WriteString("\nMMMMM\n")
	return b.String()
}

// ---------------------------------------------------------------------------
// Paprika

var paprikaLabelPattern = regexp.MustCompile(`^\s*([A-Za-z][A-Za-z ]{1,20}?)\s*:\s*(.*)$`)

// single-line metadata labels
var paprikaFieldLabels = map[string]bool{
	"name": true, "servings": true, "yield": true, "prep time": true, "cook time": true,
	"total time": true, "source": true, "source url": true, "image": true, "image url": true,
	"categories": true, "difficulty": true, "rating": true,
}

// multi-line section labels
var paprikaSectionLabels = map[string]bool{
	"description": true, "ingredients": true, "directions": true, "instructions": true,
	"notes": true, "nutrition": true,
}

func paprikaLabel(line string) (label, value string, ok bool) {
	m := paprikaLabelPattern.FindStringSubmatch(line)
	if m == nil {
		return "", "", false
	}
	label = strings.ToLower(strings.Join(strings.Fields(m[1]), " "))
	if !paprikaFieldLabels[label] && !paprikaSectionLabels[label] {
		return "", "", false
	}
	return label, strings.TrimSpace(m[2]), true
}

func detectPaprika(lines []string) bool {
	ingredients, metadata := false, false
	for _, line := range lines {
		label, _, ok := paprikaLabel(line)
		if !ok {
			continue
		}
		if label == "ingredients" {
			ingredients = true
		} else if paprikaFieldLabels[label] {
			metadata = true
		}
	}
	return ingredients && metadata
}

func parsePaprika(lines []string) []parsedText {
	recipe := &domain.ParsedRecipe{Ingredients: []string{}, Instructions: []string{}}
	section := ""
	seenLabel := false
	var description, notes []string

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if label, value, ok := paprikaLabel(line); ok {
			seenLabel = true
			section = ""
			switch label {
			case "name":
				recipe.Name = value
			case "servings", "yield":
				recipe.Yield = value
			case "prep time":
				recipe.PrepTime = ParseDuration(value)
			case "cook time":
				recipe.CookTime = ParseDuration(value)
			case "total time":
				recipe.TotalTime = ParseDuration(value)
			case "source":
				recipe.SourceName = value
			case "source url":
				recipe.SourceURL = value
			case "image", "image url":
				recipe.ImageURL = value
			case "categories":
				recipe.Categories = splitList(value)
			default:
				if paprikaSectionLabels[label] {
					section = label
					if value != "" {
						appendPaprikaSection(recipe, section, value, &description, &notes)
					}
				}
			}
			continue
		}

		if trimmed == "" {
			continue
		}
		if !seenLabel && recipe.Name == "" {
			recipe.Name = trimmed
			continue
		}
		appendPaprikaSection(recipe, section, trimmed, &description, &notes)
	}

	recipe.Description = strings.Join(description, "\n")
	recipe.Notes = strings.Join(notes, "\n")

	if recipe.Name == "" {
		return nil
	}
	return []parsedText{{recipe: recipe, confidence: domain.ConfidenceHigh}}
}

func appendPaprikaSection(r *domain.ParsedRecipe, section, line string, description, notes *[]string) {
	switch section {
	case "ingredients":
		r.Ingredients = append(r.Ingredients, line)
	case "directions", "instructions":
		r.Instructions = append(r.Instructions, line)
	case "description":
		*description = append(*description, line)
	case "notes":
		*notes = append(*notes, line)
	}
}

func renderPaprika(r *domain.ParsedRecipe) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", r.Name)
	if r.Yield != "" {
		fmt.Fprintf(&b, "Servings: %s\n", r.Yield)
	}
	if r.SourceName != "" {
		fmt.Fprintf(&b, "Source: %s\n", r.SourceName)
	}
	if r.SourceURL != "" {
		fmt.Fprintf(&b, "Source URL: %s\n", r.SourceURL)
	}
	if r.PrepTime != nil {
		fmt.Fprintf(&b, "Prep Time: %s\n", FormatDuration(r.PrepTime))
	}
	if r.CookTime != nil {
		fmt.Fprintf(&b, "Cook Time: %s\n", FormatDuration(r.CookTime))
	}
	if r.TotalTime != nil {
		fmt.Fprintf(&b, "Total Time: %s\n", FormatDuration(r.TotalTime))
	}
	if r.ImageURL != "" {
		fmt.Fprintf(&b, "Image URL: %s\n", r.ImageURL)
	}
	if len(r.Categories) > 0 {
		fmt.Fprintf(&b, "Categories: %s\n", strings.Join(r.Categories, ", "))
	}
	if r.Description != "" {
		fmt.Fprintf(&b, "\nDescription:\n%s\n", r.Description)
	}
	b.WriteString("\nIngredients:\n")
	for _, line := range r.Ingredients {
		fmt.Fprintf(&b, "%s\n", line)
	}
	b.WriteString("\nDirections:\n")
	for _, step := range r.Instructions {
		fmt.Fprintf(&b, "%s\n", step)
	}
	if r.Notes != "" {
		fmt.Fprintf(&b, "\nNotes:\n%s\n", r.Notes)
	}
	return b.String()
}

// ---------------------------------------------------------------------------
// Generic pasted text

var (
	ingredientsHeadingPattern  = regexp.MustCompile(`(?i)^(?:#+\s*)?(?:\*\*|__)?\s*(?:ingredients?|ingredient list|what you(?:'ll| will)? need|you will need)\s*:?\s*(?:\*\*|__)?\s*:?$`)
	instructionsHeadingPattern = regexp.MustCompile(`(?i)^(?:#+\s*)?(?:\*\*|__)?\s*(?:instructions?|directions?|method|preparation|steps?|how to make(?: it)?)\s*:?\s*(?:\*\*|__)?\s*:?$`)
	notesHeadingPattern        = regexp.MustCompile(`(?i)^(?:#+\s*)?(?:\*\*|__)?\s*(?:notes?|tips?|recipe notes)\s*:?\s*(?:\*\*|__)?\s*:?$`)

	listMarkerPattern    = regexp.MustCompile(`(?i)^(?:[-*•·+▢☐□]|\d+[.)]|step\s+\d+\s*[:.)]?)\s+`)
	titleDecorPattern    = regexp.MustCompile(`^(?:#+\s*)|(?:\*\*|__)`)
	quantityStartPattern = regexp.MustCompile(`^(?:\d+(?:[./]\d+)?|[¼½¾⅓⅔⅛⅜⅝⅞])(?:\s|[A-Za-z¼½¾⅓⅔⅛]|$)`)
	yieldLinePattern     = regexp.MustCompile(`(?i)^(?:serves|servings|yield|yields|makes)\s*:?\s*(.+)$`)
	timeLinePattern      = regexp.MustCompile(`(?i)^(prep|cook|cooking|total)(?:\s*time)?\s*:\s*(.+)$`)
	sourceLinePattern    = regexp.MustCompile(`(?i)^source\s*:\s*(.+)$`)
	groupHeaderPattern   = regexp.MustCompile(`^[^\d]*:$`)
)

const maxGenericTitleLength = 200

func stripListMarker(s string) string {
	return strings.TrimSpace(listMarkerPattern.ReplaceAllString(strings.TrimSpace(s), ""))
}

func cleanTitle(s string) string {
	return strings.TrimSpace(titleDecorPattern.ReplaceAllString(strings.TrimSpace(s), ""))
}

func isSectionHeading(line string) bool {
	t := strings.TrimSpace(line)
	return ingredientsHeadingPattern.MatchString(t) || instructionsHeadingPattern.MatchString(t) || notesHeadingPattern.MatchString(t)
}

func parseGeneric(lines []string) []parsedText {
	start := nextNonBlank(lines, 0)
	if start < 0 || isSectionHeading(lines[start]) {
		return nil
	}
	name := cleanTitle(lines[start])
	if name == "" || len(name) > maxGenericTitleLength {
		return nil
	}

	recipe := &domain.ParsedRecipe{Name: name, Ingredients: []string{}, Instructions: []string{}}
	body := lines[start+1:]

	headed := false
	for _, line := range body {
		if isSectionHeading(line) {
			headed = true
			break
		}
	}

	if headed {
		parseGenericSections(recipe, body, false)
		return []parsedText{{recipe: recipe, confidence: domain.ConfidenceMedium}}
	}

	if !parseGenericUnheaded(recipe, body) {
		return nil
	}
	return []parsedText{{recipe: recipe, confidence: domain.ConfidenceLow}}
}

// parseGenericSections reads headed sections. Ingredient lines are kept
// verbatim; dropGroupHeaders removes digit-free "For the sauce:" lines, which
// only page-derived text asks for.
func parseGenericSections(recipe *domain.ParsedRecipe, body []string, dropGroupHeaders bool) {
	section := "description"
	var description, notes []string

	for _, line := range body {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		switch {
		case ingredientsHeadingPattern.MatchString(trimmed):
			section = "ingredients"
			continue
		case instructionsHeadingPattern.MatchString(trimmed):
			section = "instructions"
			continue
		case notesHeadingPattern.MatchString(trimmed):
			section = "notes"
			continue
		}

		switch section {
		case "description":
			if !applyGenericMetadata(recipe, trimmed) {
				description = append(description, trimmed)
			}
		case "ingredients":
			item := stripListMarker(trimmed)
			if item == "" || (dropGroupHeaders && groupHeaderPattern.MatchString(item)) {
				continue
			}
			recipe.Ingredients = append(recipe.Ingredients, item)
		case "instructions":
			if step := stripListMarker(trimmed); step != "" {
				recipe.Instructions = append(recipe.Instructions, step)
			}
		case "notes":
			notes = append(notes, stripListMarker(trimmed))
		}
	}

	recipe.Description = strings.Join(description, " ")
	recipe.Notes = strings.Join(notes, "\n")
}

// parseGenericUnheaded sniffs quantity-led lines as the ingredient block and
// treats what follows as steps.
func parseGenericUnheaded(recipe *domain.ParsedRecipe, body []string) bool {
	const (
		before = iota
		inside
		after
	)
	state := before

	for _, line := range body {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		item := stripBullet(trimmed)
		looksLikeIngredient := quantityStartPattern.MatchString(item)

		switch state {
		case before:
			if looksLikeIngredient {
				state = inside
				recipe.Ingredients = append(recipe.Ingredients, item)
			} else if !applyGenericMetadata(recipe, trimmed) {
				if recipe.Description != "" {
					recipe.Description += " "
				}
				recipe.Description += trimmed
			}
		case inside:
			if looksLikeIngredient {
				recipe.Ingredients = append(recipe.Ingredients, item)
				continue
			}
			state = after
			recipe.Instructions = append(recipe.Instructions, stripListMarker(trimmed))
		case after:
			recipe.Instructions = append(recipe.Instructions, stripListMarker(trimmed))
		}
	}

	return len(recipe.Ingredients) > 0
}

// stripBullet removes unordered bullets only, so "1 cup" keeps its quantity
func stripBullet(s string) string {
	if len(s) > 0 {
		for _, bullet := range []string{"- ", "* ", "• ", "+ ", "▢ ", "☐ ", "□ "} {
			if strings.HasPrefix(s, bullet) {
				return strings.TrimSpace(s[len(bullet):])
			}
		}
	}
	return s
}

func applyGenericMetadata(recipe *domain.ParsedRecipe, line string) bool {
	if m := yieldLinePattern.FindStringSubmatch(line); m != nil {
		recipe.Yield = strings.TrimSpace(m[1])
		return true
	}
	if m := timeLinePattern.FindStringSubmatch(line); m != nil {
		d := ParseDuration(m[2])
		switch strings.ToLower(m[1]) {
		case "prep":
			recipe.PrepTime = d
		case "cook", "cooking":
			recipe.CookTime = d
		case "total":
			recipe.TotalTime = d
		}
		return true
	}
	if m := sourceLinePattern.FindStringSubmatch(line); m != nil {
		value := strings.TrimSpace(m[1])
		if strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://") {
			recipe.SourceURL = value
		} else {
			recipe.SourceName = value
		}
		return true
	}
	return false
}

func renderGeneric(r *domain.ParsedRecipe) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", r.Name)
	if r.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", r.Description)
	}
	if r.Yield != "" {
		fmt.Fprintf(&b, "Serves: %s\n", r.Yield)
	}
	b.WriteString("\nIngredients\n")
	for _, line := range r.Ingredients {
		fmt.Fprintf(&b, "- %s\n", line)
	}
	b.WriteString("\nInstructions\n")
	for i, step := range r.Instructions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}
	if r.Notes != "" {
		fmt.Fprintf(&b, "\nNotes\n%s\n", r.Notes)
	}
	return b.String()
}
