package anonymizer

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	presidiootel "github.com/prokopidis/presidio/internal/otel"
)

var tracer = presidiootel.Tracer("github.com/prokopidis/presidio/internal/anonymizer")

// Detector supplies raw entity spans for one text unit. Implementations run
// outside the core; offsets in returned spans are rune indices.
type Detector interface {
	// ID names the detector for logging; each span additionally carries its
	// recognizer's source_id.
	ID() string
	Detect(ctx context.Context, text string) ([]RawSpan, error)
}

// Record is the anonymization result for one paragraph. EntityMapping is
// present only in reversible mode and enables a later Deanonymize call.
type Record struct {
	FullText      string        `json:"full_text"`
	Masked        string        `json:"masked"`
	Spans         []SpanRecord  `json:"spans"`
	EntityMapping EntityMapping `json:"entity_mapping,omitempty"`
}

// Pipeline orchestrates detection, span aggregation, and substitution per
// paragraph. All work is synchronous, in-memory, and session-scoped; a
// Pipeline is safe for concurrent use because every Anonymize call builds
// its own mapping state.
type Pipeline struct {
	detectors     []Detector
	operators     OperatorTable
	reversible    bool
	sharedMapping bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithOperators sets the per-entity-type substitution strategy table.
func WithOperators(t OperatorTable) Option {
	return func(p *Pipeline) { p.operators = t }
}

// WithReversible includes the session's EntityMapping in each record so the
// caller can deanonymize later.
func WithReversible() Option {
	return func(p *Pipeline) { p.reversible = true }
}

// WithSharedMapping scopes one EntityMapping to the whole document instead
// of the default paragraph scope.
func WithSharedMapping() Option {
	return func(p *Pipeline) { p.sharedMapping = true }
}

// NewPipeline builds a pipeline over the given detectors. Without options,
// every entity type falls through to the Keep operator.
func NewPipeline(detectors []Detector, opts ...Option) *Pipeline {
	p := &Pipeline{
		detectors: detectors,
		operators: OperatorTable{Default: Keep{}},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Anonymize splits text on line breaks and processes each non-blank
// paragraph independently. Paragraphs that are empty or whitespace-only are
// dropped entirely; they do not appear in the result sequence.
func (p *Pipeline) Anonymize(ctx context.Context, text string) ([]Record, error) {
	ctx, span := tracer.Start(ctx, "anonymizer.anonymize")
	defer span.End()

	var shared EntityMapping
	if p.sharedMapping {
		shared = NewEntityMapping()
	}

	var records []Record
	for _, paragraph := range strings.Split(text, "\n") {
		if strings.TrimSpace(paragraph) == "" {
			continue
		}
		mapping := shared
		if mapping == nil {
			mapping = NewEntityMapping()
		}
		rec, err := p.AnonymizeParagraph(ctx, paragraph, mapping)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}

	span.SetAttributes(attribute.Int("anonymizer.paragraphs", len(records)))
	return records, nil
}

// AnonymizeParagraph runs detection, aggregation, and substitution over one
// text unit, recording substitutions in mapping.
//
// When the substituted span count diverges from the resolved span count
// (overlapping detections consumed by clamping), the span list is rebuilt by
// aligning the masked text back against the original instead of silently
// pairing mismatched lists; placeholders that cannot be aligned are dropped
// with a warning while the masked text is kept.
func (p *Pipeline) AnonymizeParagraph(ctx context.Context, text string, mapping EntityMapping) (*Record, error) {
	ctx, span := tracer.Start(ctx, "anonymizer.paragraph")
	defer span.End()

	var raw []RawSpan
	for _, d := range p.detectors {
		spans, err := d.Detect(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("detector %s: %w", d.ID(), err)
		}
		raw = append(raw, spans...)
	}

	resolved := Aggregate(utf8.RuneCountInString(text), raw)
	masked, spanRecords := applySpans(text, resolved, p.operators, mapping)

	if len(spanRecords) != len(resolved) {
		log.Warn().
			Err(ErrSpanMismatch).
			Int("resolved", len(resolved)).
			Int("substituted", len(spanRecords)).
			Func(presidiootel.LogTraceFields(ctx)).
			Msg("realigning spans from masked text")
		spanRecords = p.realign(text, masked)
	}

	span.SetAttributes(
		attribute.Int("anonymizer.spans.raw", len(raw)),
		attribute.Int("anonymizer.spans.resolved", len(resolved)),
	)

	rec := &Record{FullText: text, Masked: masked, Spans: spanRecords}
	if p.reversible {
		rec.EntityMapping = mapping
	}
	return rec, nil
}

// realign rebuilds span records by anchoring each placeholder in the masked
// text back onto the original. Unresolved placeholders are dropped; that is
// a soft, logged degradation, not an error.
func (p *Pipeline) realign(text, masked string) []SpanRecord {
	placeholders := Placeholders(masked)
	aligned := Align(text, masked, placeholders)

	maskRunes := []rune(masked)
	records := make([]SpanRecord, 0, len(aligned))
	for i, ent := range aligned {
		if !ent.Resolved {
			log.Warn().
				Str("entity_type", ent.EntityType).
				Msg("placeholder could not be aligned to original text")
			continue
		}
		records = append(records, SpanRecord{
			EntityType:    ent.EntityType,
			EntityValue:   ent.Value,
			MaskedValue:   string(maskRunes[placeholders[i].Start:placeholders[i].End]),
			Operator:      p.operators.For(ent.EntityType).Name(),
			StartPosition: ent.Start,
			EndPosition:   ent.End,
		})
	}
	return records
}
