package anonymizer

import "strings"

// SpanRecord describes one substituted entity in a paragraph record.
// Positions are rune offsets into the original paragraph text.
type SpanRecord struct {
	EntityType    string `json:"entity_type"`
	EntityValue   string `json:"entity_value"`
	MaskedValue   string `json:"masked_entity_value,omitempty"`
	Operator      string `json:"operator,omitempty"`
	StartPosition int    `json:"start_position"`
	EndPosition   int    `json:"end_position"`
}

// applySpans replaces each resolved span in text with its operator's output.
// Operators run left to right so counter placeholders number entities in
// reading order; the splice itself runs from the highest start offset to the
// lowest, since replacing an earlier span first would shift the absolute
// positions of every span after it. A span overlapping its successor is
// clamped to the unconsumed prefix; a span starting inside it is skipped
// (the caller detects the resulting count mismatch).
func applySpans(text string, spans []RawSpan, ops OperatorTable, mapping EntityMapping) (string, []SpanRecord) {
	runes := []rune(text)

	records := make([]SpanRecord, 0, len(spans))
	for i, sp := range spans {
		start, end := sp.Start, sp.End
		// clamp against whichever later span survives; spans are sorted
		// by (start, end) ascending.
		for j := i + 1; j < len(spans); j++ {
			if spans[j].Start > start {
				if end > spans[j].Start {
					end = spans[j].Start
				}
				break
			}
		}
		if start >= end {
			continue
		}
		value := string(runes[start:end])
		op := ops.For(sp.EntityType)

		records = append(records, SpanRecord{
			EntityType:    sp.EntityType,
			EntityValue:   value,
			MaskedValue:   op.Operate(value, sp.EntityType, mapping),
			Operator:      op.Name(),
			StartPosition: start,
			EndPosition:   end,
		})
	}

	out := append([]rune(nil), runes...)
	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		rest := append([]rune(rec.MaskedValue), out[rec.EndPosition:]...)
		out = append(out[:rec.StartPosition], rest...)
	}
	return string(out), records
}

// Deanonymize restores the original text from a masked text, the span
// records produced during anonymization, and the session's entity mapping.
// Each reversible span consumes one occurrence of its placeholder, left to
// right. A span whose entity type or placeholder is absent from the mapping
// fails with ErrMappingNotFound; no silent fallback.
func Deanonymize(masked string, spans []SpanRecord, mapping EntityMapping) (string, error) {
	out := masked
	for _, sp := range spans {
		if sp.Operator == (Keep{}).Name() || sp.MaskedValue == "" || sp.MaskedValue == sp.EntityValue {
			continue
		}
		original, err := mapping.Original(sp.EntityType, sp.MaskedValue)
		if err != nil {
			return "", err
		}
		out = strings.Replace(out, sp.MaskedValue, original, 1)
	}
	return out, nil
}
