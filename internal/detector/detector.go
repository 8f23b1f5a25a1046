// Package detector finds PII entities in text using configurable regex
// recognizers, in the style of Presidio's pattern recognizers: per-pattern
// base scores, context-word score boosts, and hard validation gates (Luhn,
// IBAN MOD-97) for checksum-bearing entity types.
package detector

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"

	"github.com/prokopidis/presidio/internal/anonymizer"
	presidiootel "github.com/prokopidis/presidio/internal/otel"
)

var tracer = presidiootel.Tracer("github.com/prokopidis/presidio/internal/detector")

const (
	// DefaultMinScore is the Presidio-compatible minimum confidence
	// threshold. Matches below this score are discarded unless boosted by
	// context words.
	DefaultMinScore = 0.5

	// ContextSimilarityFactor is the score boost applied when context words
	// are found near a match.
	ContextSimilarityFactor = 0.35

	// ContextWindowChars is the number of bytes searched before and after a
	// match when looking for context words.
	ContextWindowChars = 100
)

// Detector detects PII entity spans using compiled regex recognizers.
// It implements anonymizer.Detector; emitted span offsets are rune indices.
type Detector struct {
	patterns []Pattern
	minScore float64
}

// Option configures a Detector via the functional options pattern.
type Option func(*detectorConfig)

type detectorConfig struct {
	patternFile       string
	enabledEntities   []string
	disabledEntities  []string
	customRecognizers []RecognizerConfig
	minScore          float64
}

// WithMinScore overrides the default minimum confidence threshold for matches.
func WithMinScore(score float64) Option {
	return func(c *detectorConfig) { c.minScore = score }
}

// WithPatternFile loads additional recognizers from a global patterns YAML
// file. If the file does not exist, it is silently skipped.
func WithPatternFile(path string) Option {
	return func(c *detectorConfig) { c.patternFile = path }
}

// WithEnabledEntities sets a whitelist of entity types. When non-empty, only
// recognizers with a matching supported_entity will be active.
func WithEnabledEntities(entities []string) Option {
	return func(c *detectorConfig) { c.enabledEntities = entities }
}

// WithDisabledEntities sets a blacklist of entity types to exclude.
func WithDisabledEntities(entities []string) Option {
	return func(c *detectorConfig) { c.disabledEntities = entities }
}

// WithCustomRecognizers adds per-call custom recognizer definitions.
func WithCustomRecognizers(recognizers []RecognizerConfig) Option {
	return func(c *detectorConfig) { c.customRecognizers = recognizers }
}

// New creates a pattern detector. Without options it uses the embedded Greek
// defaults. Options layer global overrides and custom recognizers on top.
func New(opts ...Option) (*Detector, error) {
	var cfg detectorConfig
	for _, o := range opts {
		o(&cfg)
	}

	defaults, err := DefaultRecognizers()
	if err != nil {
		return nil, fmt.Errorf("loading default recognizers: %w", err)
	}

	var globalRecs []*RecognizerConfig
	if cfg.patternFile != "" {
		rf, err := LoadRecognizerFile(cfg.patternFile)
		if err != nil {
			return nil, fmt.Errorf("loading global pattern file: %w", err)
		}
		if rf != nil {
			globalRecs = toPtrSlice(rf.Recognizers)
		}
	}

	var customRecs []*RecognizerConfig
	if len(cfg.customRecognizers) > 0 {
		customRecs = toPtrSlice(cfg.customRecognizers)
	}

	merged := MergeRecognizers(toPtrSlice(defaults), globalRecs, customRecs)
	merged = FilterByEntities(merged, cfg.enabledEntities, cfg.disabledEntities)

	compiled, err := CompilePatterns(merged)
	if err != nil {
		return nil, fmt.Errorf("compiling patterns: %w", err)
	}

	minScore := DefaultMinScore
	if cfg.minScore > 0 {
		minScore = cfg.minScore
	}

	return &Detector{patterns: compiled, minScore: minScore}, nil
}

// MustNew is like New but panics on error. Useful for zero-config startup
// where the embedded defaults are expected to always compile.
func MustNew(opts ...Option) *Detector {
	d, err := New(opts...)
	if err != nil {
		panic(fmt.Sprintf("detector.New: %v", err))
	}
	return d
}

// ID implements anonymizer.Detector.
func (d *Detector) ID() string { return "pattern_registry" }

// Detect scans text and returns raw entity spans with rune offsets. Each
// match passes its hard validation gate and score-based context filtering
// before being emitted; the recognizer name becomes the span's source_id.
func (d *Detector) Detect(ctx context.Context, text string) ([]anonymizer.RawSpan, error) {
	_, span := tracer.Start(ctx, "detector.detect")
	defer span.End()

	var spans []anonymizer.RawSpan
	for _, pattern := range d.patterns {
		matches := pattern.Pattern.FindAllStringIndex(text, -1)
		for _, match := range matches {
			value := text[match[0]:match[1]]

			if pattern.ValidateIBAN {
				clean := strings.ReplaceAll(value, " ", "")
				if !validateIBANLength(clean) || !validateIBANChecksum(clean) {
					continue
				}
			}
			if pattern.ValidateLuhn {
				if !luhnValid(stripNonDigits(value)) {
					continue
				}
			}

			score := enhanceScoreWithContext(text, match[0], pattern.Score, pattern.ContextWords)
			if score < d.minScore {
				continue
			}

			start := utf8.RuneCountInString(text[:match[0]])
			spans = append(spans, anonymizer.RawSpan{
				EntityType: pattern.Entity,
				Start:      start,
				End:        start + utf8.RuneCountInString(value),
				Score:      score,
				SourceID:   pattern.Name,
			})
		}
	}

	span.SetAttributes(attribute.Int("detector.span_count", len(spans)))
	return spans, nil
}

// enhanceScoreWithContext boosts a match's base score if context words are
// found within +/- ContextWindowChars of the match position. This mirrors
// Presidio's LemmaContextAwareEnhancer with a fixed context_similarity_factor.
func enhanceScoreWithContext(text string, position int, baseScore float64, contextWords []string) float64 {
	if len(contextWords) == 0 {
		return baseScore
	}
	start := position - ContextWindowChars
	if start < 0 {
		start = 0
	}
	end := position + ContextWindowChars
	if end > len(text) {
		end = len(text)
	}
	window := strings.ToLower(text[start:end])

	for _, cw := range contextWords {
		if strings.Contains(window, strings.ToLower(cw)) {
			return baseScore + ContextSimilarityFactor
		}
	}
	return baseScore
}
