package domain

import "time"

// Confidence is a coarse label describing how much an extractor trusts a derived recipe.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Extraction strategy tags reported in ExtractionResult.Source
const (
	SourceStructuredMarkup = "structured-markup"
	SourceHeuristic        = "heuristic"
	SourcePaprikaJSON      = "paprika-json"
	SourceFlatTextPrefix   = "flat-text:"
)

// DurationUnitMinutes is the unit every parsed Duration is normalized to
const DurationUnitMinutes = "minutes"

// Duration is a structured amount of time as parsed from a recipe source
type Duration struct {
	Value int    `json:"value" yaml:"value"`
	Unit  string `json:"unit" yaml:"unit"`
}

// Minutes builds a Duration normalized to minutes
func Minutes(n int) *Duration {
	return &Duration{Value: n, Unit: DurationUnitMinutes}
}

// ToTimeDuration converts the amount to a time.Duration
func (d Duration) ToTimeDuration() time.Duration {
	switch d.Unit {
	case "hours":
		return time.Duration(d.Value) * time.Hour
	case "seconds":
		return time.Duration(d.Value) * time.Second
	default:
		return time.Duration(d.Value) * time.Minute
	}
}

// ParsedRecipe is the normalized recipe model every extraction strategy produces.
// Name is never empty; a source that cannot establish a name yields no recipe at all.
type ParsedRecipe struct {
	Name         string    `json:"name" yaml:"name"`
	Description  string    `json:"description,omitempty" yaml:"description,omitempty"`
	PrepTime     *Duration `json:"prepTime,omitempty" yaml:"prepTime,omitempty"`
	CookTime     *Duration `json:"cookTime,omitempty" yaml:"cookTime,omitempty"`
	TotalTime    *Duration `json:"totalTime,omitempty" yaml:"totalTime,omitempty"`
	Yield        string    `json:"yield,omitempty" yaml:"yield,omitempty"`
	Ingredients  []string  `json:"ingredients" yaml:"ingredients"`
	Instructions []string  `json:"instructions" yaml:"instructions"`
	Categories   []string  `json:"categories,omitempty" yaml:"categories,omitempty"`
	Notes        string    `json:"notes,omitempty" yaml:"notes,omitempty"`
	SourceName   string    `json:"sourceName,omitempty" yaml:"sourceName,omitempty"`
	SourceURL    string    `json:"sourceUrl,omitempty" yaml:"sourceUrl,omitempty"`
	ImageURL     string    `json:"imageUrl,omitempty" yaml:"imageUrl,omitempty"`
}

// ExtractionResult wraps a possibly-nil recipe with the strategy that produced it.
// Confidence is informational and never decides whether a recipe is returned.
type ExtractionResult struct {
	Recipe     *ParsedRecipe `json:"recipe"`
	Confidence Confidence    `json:"confidence"`
	Source     string        `json:"source"`
	Hint       string        `json:"hint,omitempty"`
}

// Found reports whether a recipe was derived
func (r ExtractionResult) Found() bool {
	return r.Recipe != nil
}

// ImportResult is the caller-facing shape of one recipe import
type ImportResult struct {
	ID                 string        `json:"id" yaml:"id"`
	Recipe             *ParsedRecipe `json:"recipe" yaml:"recipe"`
	Confidence         Confidence    `json:"confidence" yaml:"confidence"`
	Source             string        `json:"source" yaml:"source"`
	Hint               string        `json:"hint,omitempty" yaml:"hint,omitempty"`
	MatchedIngredients []MatchResult `json:"matchedIngredients" yaml:"matchedIngredients"`
	UnmatchedLines     []string      `json:"unmatchedLines" yaml:"unmatchedLines"`
}

// ContainerKind classifies a byte buffer by signature
type ContainerKind string

const (
	ContainerZip     ContainerKind = "zip"
	ContainerGzip    ContainerKind = "gzip"
	ContainerJSON    ContainerKind = "json"
	ContainerUnknown ContainerKind = "unknown"
)

// EntryKind describes the payload of a decoded archive entry
type EntryKind string

const (
	EntryJSON EntryKind = "json"
	EntryText EntryKind = "text"
)

// RawArchiveEntry is a named blob unpacked from a container; discarded once classified
type RawArchiveEntry struct {
	Path string
	Kind EntryKind
	Data []byte
}
