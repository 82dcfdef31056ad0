package usecase

import (
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/recipebox/backend/pkg/logger"
)

// unitWords are measures and containers that never identify an ingredient
var unitWords = map[string]bool{
	// Volume
	"cup": true, "cups": true, "c": true,
	"tablespoon": true, "tablespoons": true, "tbsp": true, "tbsps": true, "tbs": true, "tbl": true, "tb": true,
	"teaspoon": true, "teaspoons": true, "tsp": true, "tsps": true, "t": true,
	"liter": true, "liters": true, "litre": true, "litres": true, "l": true,
	"milliliter": true, "milliliters": true, "millilitre": true, "millilitres": true, "ml": true,
	"pint": true, "pints": true, "pt": true, "quart": true, "quarts": true, "qt": true,
	"gallon": true, "gallons": true, "gal": true, "fl": true, "fluid": true,
	// Weight
	"ounce": true, "ounces": true, "oz": true,
	"pound": true, "pounds": true, "lb": true, "lbs": true,
	"gram": true, "grams": true, "g": true, "kilogram": true, "kilograms": true, "kg": true, "mg": true,
	// Counts and containers
	"clove": true, "cloves": true, "stalk": true, "stalks": true, "sprig": true, "sprigs": true,
	"slice": true, "slices": true, "piece": true, "pieces": true, "stick": true, "sticks": true,
	"bunch": true, "bunches": true, "head": true, "heads": true, "handful": true, "handfuls": true,
	"pinch": true, "pinches": true, "dash": true, "dashes": true, "drop": true, "drops": true,
	"can": true, "cans": true, "jar": true, "jars": true, "package": true, "packages": true, "pkg": true,
	"packet": true, "packets": true, "envelope": true, "bag": true, "box": true, "bottle": true, "container": true,
	"inch": true, "inches": true, "cm": true,
}

// preparationWords describe how an ingredient is prepared or sized
var preparationWords = map[string]bool{
	"diced": true, "chopped": true, "peeled": true, "minced": true, "sliced": true,
	"grated": true, "shredded": true, "crushed": true, "cubed": true, "julienned": true,
	"halved": true, "quartered": true, "trimmed": true, "rinsed": true, "drained": true,
	"softened": true, "melted": true, "beaten": true, "sifted": true, "packed": true,
	"divided": true, "seeded": true, "cored": true, "zested": true, "mashed": true,
	"finely": true, "roughly": true, "coarsely": true, "thinly": true, "freshly": true,
	"fresh": true, "dried": true, "frozen": true, "thawed": true, "cooked": true, "uncooked": true,
	"large": true, "medium": true, "small": true, "heaping": true, "level": true,
}

// fillerWords carry no ingredient identity once units are gone
var fillerWords = map[string]bool{
	"of": true, "to": true, "taste": true, "optional": true, "about": true,
	"approximately": true, "plus": true, "room": true, "temperature": true,
}

// IngredientNormalizer derives comparison keys from raw ingredient lines
type IngredientNormalizer struct {
	logger *zap.Logger
}

// NewIngredientNormalizer creates a new normalizer
func NewIngredientNormalizer(log *zap.Logger) *IngredientNormalizer {
	return &IngredientNormalizer{logger: logger.OrNop(log)}
}

// Normalize returns the comparison key for a raw ingredient line.
// The line itself is never modified; the key is only used for matching.
func (n *IngredientNormalizer) Normalize(line string) string {
	key := NormalizeIngredientLine(line)
	n.logger.Debug("normalized ingredient line", zap.String("line", line), zap.String("key", key))
	return key
}

// NormalizeIngredientLine lowercases and folds the line, turns punctuation into
// whitespace, then drops numeric tokens, unit words and preparation descriptors.
// It accepts every string and is idempotent.
func NormalizeIngredientLine(line string) string {
	if line == "" {
		return ""
	}

	// Step 1: punctuation (commas, dashes, ampersands, slashes, parens...) becomes whitespace
	cleaned := punctuationToSpace(foldText(line))

	// Step 2: drop tokens that never identify an ingredient
	words := strings.Fields(cleaned)
	kept := make([]string, 0, len(words))
	for _, word := range words {
		if isNumericToken(word) || unitWords[word] || preparationWords[word] || fillerWords[word] {
			continue
		}
		kept = append(kept, word)
	}

	// Step 3: single spaces, no padding
	return strings.Join(kept, " ")
}

// foldText lowercases s and strips combining marks ("Jalapeño" -> "jalapeno").
func foldText(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

func punctuationToSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return r
		}
		return ' '
	}, s)
}

// comparisonForm prepares catalog text (names, aliases) for comparison with keys.
// Unlike keys it keeps numbers and descriptor words.
func comparisonForm(s string) string {
	return strings.Join(strings.Fields(punctuationToSpace(foldText(s))), " ")
}

// isNumericToken reports tokens made only of digits or numeric symbols such as ½
func isNumericToken(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsNumber(r) {
			return false
		}
	}
	return true
}
