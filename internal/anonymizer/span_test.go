package anonymizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregate(t *testing.T) {
	tests := []struct {
		name    string
		textLen int
		spans   []RawSpan
		want    [][2]int
	}{
		{
			name:    "empty input yields empty output",
			textLen: 100,
			spans:   nil,
			want:    nil,
		},
		{
			name:    "longest match wins over contained span",
			textLen: 20,
			spans: []RawSpan{
				{EntityType: "PHONE_NUMBER", Start: 0, End: 10, Score: 1.0, SourceID: "a"},
				{EntityType: "PHONE_NUMBER", Start: 0, End: 14, Score: 1.0, SourceID: "b"},
			},
			want: [][2]int{{0, 14}},
		},
		{
			name:    "exact duplicates collapse regardless of source",
			textLen: 20,
			spans: []RawSpan{
				{EntityType: "EMAIL_ADDRESS", Start: 3, End: 9, Score: 0.6, SourceID: "a"},
				{EntityType: "EMAIL_ADDRESS", Start: 3, End: 9, Score: 0.9, SourceID: "b"},
			},
			want: [][2]int{{3, 9}},
		},
		{
			name:    "partial overlap without containment keeps both",
			textLen: 20,
			spans: []RawSpan{
				{EntityType: "PERSON", Start: 0, End: 5, Score: 1.0},
				{EntityType: "LOCATION", Start: 3, End: 8, Score: 1.0},
			},
			want: [][2]int{{0, 5}, {3, 8}},
		},
		{
			name:    "inner span inside strictly longer span is dropped",
			textLen: 30,
			spans: []RawSpan{
				{EntityType: "PERSON", Start: 5, End: 9, Score: 1.0},
				{EntityType: "PERSON", Start: 4, End: 12, Score: 0.5},
				{EntityType: "PERSON", Start: 20, End: 25, Score: 1.0},
			},
			want: [][2]int{{4, 12}, {20, 25}},
		},
		{
			name:    "malformed spans dropped locally",
			textLen: 10,
			spans: []RawSpan{
				{EntityType: "PERSON", Start: -1, End: 3, Score: 1.0},
				{EntityType: "PERSON", Start: 5, End: 5, Score: 1.0},
				{EntityType: "PERSON", Start: 7, End: 4, Score: 1.0},
				{EntityType: "PERSON", Start: 2, End: 11, Score: 1.0},
				{EntityType: "PERSON", Start: 2, End: 6, Score: 1.0},
			},
			want: [][2]int{{2, 6}},
		},
		{
			name:    "survivors sorted by start then end",
			textLen: 30,
			spans: []RawSpan{
				{EntityType: "A", Start: 10, End: 15, Score: 1.0},
				{EntityType: "B", Start: 2, End: 6, Score: 1.0},
				{EntityType: "C", Start: 10, End: 12, Score: 1.0},
				{EntityType: "D", Start: 8, End: 12, Score: 1.0},
			},
			// (10,12) is contained in the longer (10,15)
			want: [][2]int{{2, 6}, {8, 12}, {10, 15}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Aggregate(tt.textLen, tt.spans)
			require.Len(t, got, len(tt.want))
			for i, w := range tt.want {
				assert.Equal(t, w[0], got[i].Start, "span %d start", i)
				assert.Equal(t, w[1], got[i].End, "span %d end", i)
			}
		})
	}
}

func TestAggregateKeepsHighestScoreOnDuplicate(t *testing.T) {
	got := Aggregate(20, []RawSpan{
		{EntityType: "EMAIL_ADDRESS", Start: 3, End: 9, Score: 0.6, SourceID: "regex"},
		{EntityType: "EMAIL_ADDRESS", Start: 3, End: 9, Score: 0.95, SourceID: "ner"},
	})
	require.Len(t, got, 1)
	assert.Equal(t, 0.95, got[0].Score)
	assert.Equal(t, "ner", got[0].SourceID)
}

func TestAggregateNoStrictContainmentProperty(t *testing.T) {
	spans := []RawSpan{
		{EntityType: "A", Start: 0, End: 3, Score: 1},
		{EntityType: "A", Start: 0, End: 10, Score: 1},
		{EntityType: "A", Start: 2, End: 8, Score: 1},
		{EntityType: "A", Start: 6, End: 14, Score: 1},
		{EntityType: "A", Start: 6, End: 14, Score: 1},
		{EntityType: "A", Start: 9, End: 12, Score: 1},
	}
	got := Aggregate(20, spans)
	for i, si := range got {
		for j, sj := range got {
			if i == j {
				continue
			}
			strictlyContained := sj.contains(si) && sj.length() > si.length()
			assert.False(t, strictlyContained, "span %v strictly contained in %v", si, sj)
		}
	}
}
