package anonymizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// spanOver returns the rune span of the nth occurrence of needle in text.
func spanOver(t *testing.T, text, needle, entityType string, nth int) RawSpan {
	t.Helper()
	runes := []rune(text)
	needleRunes := []rune(needle)
	seen := 0
	for i := 0; i+len(needleRunes) <= len(runes); i++ {
		if string(runes[i:i+len(needleRunes)]) == needle {
			if seen == nth {
				return RawSpan{EntityType: entityType, Start: i, End: i + len(needleRunes), Score: 1.0, SourceID: "test"}
			}
			seen++
		}
	}
	t.Fatalf("occurrence %d of %q not found in %q", nth, needle, text)
	return RawSpan{}
}

func TestApplySpansCounterMemoization(t *testing.T) {
	text := "Γιάννης είπε. Γιάννης έφυγε. Μαρία ήρθε."
	spans := []RawSpan{
		spanOver(t, text, "Γιάννης", "PERSON", 0),
		spanOver(t, text, "Γιάννης", "PERSON", 1),
		spanOver(t, text, "Μαρία", "PERSON", 0),
	}
	mapping := NewEntityMapping()
	ops := Operators(Counter{}, "PERSON")

	masked, records := applySpans(text, spans, ops, mapping)

	assert.Equal(t, "{{PERSON_0}} είπε. {{PERSON_0}} έφυγε. {{PERSON_1}} ήρθε.", masked)
	require.Len(t, records, 3)
	assert.Equal(t, "{{PERSON_0}}", records[0].MaskedValue)
	assert.Equal(t, "{{PERSON_0}}", records[1].MaskedValue)
	assert.Equal(t, "{{PERSON_1}}", records[2].MaskedValue)
	assert.Equal(t, "Γιάννης", records[0].EntityValue)
	assert.Equal(t, "Μαρία", records[2].EntityValue)
}

func TestApplySpansRecordsAscending(t *testing.T) {
	text := "alpha beta gamma"
	spans := []RawSpan{
		spanOver(t, text, "alpha", "A", 0),
		spanOver(t, text, "gamma", "B", 0),
	}
	_, records := applySpans(text, spans, Operators(Replace{}, "A", "B"), NewEntityMapping())
	require.Len(t, records, 2)
	assert.Less(t, records[0].StartPosition, records[1].StartPosition)
	assert.Equal(t, "A", records[0].EntityType)
	assert.Equal(t, "B", records[1].EntityType)
}

func TestApplySpansReplaceOperator(t *testing.T) {
	text := "call 2101234567 now"
	spans := []RawSpan{spanOver(t, text, "2101234567", "PHONE_NUMBER", 0)}

	masked, records := applySpans(text, spans, Operators(Replace{}, "PHONE_NUMBER"), NewEntityMapping())
	assert.Equal(t, "call {{PHONE_NUMBER}} now", masked)
	require.Len(t, records, 1)
	assert.Equal(t, "replace", records[0].Operator)
}

func TestApplySpansKeepDefault(t *testing.T) {
	text := "nothing configured here"
	spans := []RawSpan{spanOver(t, text, "configured", "MISC", 0)}

	masked, records := applySpans(text, spans, OperatorTable{Default: Keep{}}, NewEntityMapping())
	assert.Equal(t, text, masked, "keep leaves the text unchanged")
	require.Len(t, records, 1)
	assert.Equal(t, "keep", records[0].Operator)
	assert.Equal(t, "configured", records[0].MaskedValue)
}

func TestApplySpansClampsPartialOverlap(t *testing.T) {
	text := "abcdefgh"
	spans := []RawSpan{
		{EntityType: "A", Start: 0, End: 5, Score: 1},
		{EntityType: "B", Start: 3, End: 8, Score: 1},
	}
	masked, records := applySpans(text, spans, Operators(Replace{}, "A", "B"), NewEntityMapping())
	assert.Equal(t, "{{A}}{{B}}", masked)
	require.Len(t, records, 2)
	assert.Equal(t, "abc", records[0].EntityValue, "clamped to the unconsumed prefix")
	assert.Equal(t, 3, records[0].EndPosition)
	assert.Equal(t, "defgh", records[1].EntityValue)
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		text string
		find []struct{ needle, entity string }
	}{
		{
			name: "greek persons and location",
			text: "Ο Γιάννης πήγε στην Αθήνα. Ο Γιάννης γύρισε.",
			find: []struct{ needle, entity string }{
				{"Γιάννης", "PERSON"},
				{"Αθήνα", "LOCATION"},
			},
		},
		{
			name: "phone and email",
			text: "Τηλ 6936745127, email gp@example.com.",
			find: []struct{ needle, entity string }{
				{"6936745127", "PHONE_NUMBER"},
				{"gp@example.com", "EMAIL_ADDRESS"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var spans []RawSpan
			var entities []string
			runes := []rune(tt.text)
			for _, f := range tt.find {
				entities = append(entities, f.entity)
				for nth := 0; ; nth++ {
					found := false
					needleRunes := []rune(f.needle)
					seen := 0
					for i := 0; i+len(needleRunes) <= len(runes); i++ {
						if string(runes[i:i+len(needleRunes)]) == f.needle && seen == nth {
							spans = append(spans, RawSpan{EntityType: f.entity, Start: i, End: i + len(needleRunes), Score: 1})
							found = true
							break
						} else if string(runes[i:i+len(needleRunes)]) == f.needle {
							seen++
						}
					}
					if !found {
						break
					}
				}
			}

			resolved := Aggregate(len(runes), spans)
			mapping := NewEntityMapping()
			masked, records := applySpans(tt.text, resolved, Operators(Counter{}, entities...), mapping)
			require.NotEqual(t, tt.text, masked)

			restored, err := Deanonymize(masked, records, mapping)
			require.NoError(t, err)
			assert.Equal(t, tt.text, restored)
		})
	}
}

func TestDeanonymizeMappingNotFound(t *testing.T) {
	spans := []SpanRecord{{
		EntityType:  "IBAN_CODE",
		EntityValue: "GR1601101250000000012300695",
		MaskedValue: "{{IBAN_CODE_0}}",
		Operator:    "counter",
	}}

	t.Run("entity type never anonymized", func(t *testing.T) {
		_, err := Deanonymize("{{IBAN_CODE_0}}", spans, NewEntityMapping())
		require.ErrorIs(t, err, ErrMappingNotFound)
	})

	t.Run("placeholder missing under known type", func(t *testing.T) {
		m := NewEntityMapping()
		m.Placeholder("IBAN_CODE", "DE89370400440532013000")
		badSpans := []SpanRecord{{
			EntityType:  "IBAN_CODE",
			MaskedValue: "{{IBAN_CODE_7}}",
			Operator:    "counter",
		}}
		_, err := Deanonymize("{{IBAN_CODE_7}}", badSpans, m)
		require.ErrorIs(t, err, ErrMappingNotFound)
	})
}

func TestDeanonymizeSkipsKeepSpans(t *testing.T) {
	spans := []SpanRecord{{
		EntityType:  "MISC",
		EntityValue: "unchanged",
		MaskedValue: "unchanged",
		Operator:    "keep",
	}}
	got, err := Deanonymize("totally unchanged text", spans, NewEntityMapping())
	require.NoError(t, err)
	assert.Equal(t, "totally unchanged text", got)
}
