package anonymizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceholderMemoization(t *testing.T) {
	m := NewEntityMapping()

	first := m.Placeholder("PERSON", "Γιάννης")
	assert.Equal(t, "{{PERSON_0}}", first)

	// Same value, same placeholder; no new index consumed.
	again := m.Placeholder("PERSON", "Γιάννης")
	assert.Equal(t, first, again)

	second := m.Placeholder("PERSON", "Μαρία")
	assert.Equal(t, "{{PERSON_1}}", second)

	// Independent counter per entity type.
	loc := m.Placeholder("LOCATION", "Αθήνα")
	assert.Equal(t, "{{LOCATION_0}}", loc)
}

func TestPlaceholderNextIndexIsMaxPlusOne(t *testing.T) {
	m := EntityMapping{
		"PERSON": {
			"Γιάννης": "{{PERSON_0}}",
			"Νίκος":   "{{PERSON_5}}",
		},
	}
	assert.Equal(t, "{{PERSON_6}}", m.Placeholder("PERSON", "Μαρία"))
}

func TestOriginal(t *testing.T) {
	m := NewEntityMapping()
	m.Placeholder("PERSON", "Γιάννης")
	m.Placeholder("PERSON", "Μαρία")

	got, err := m.Original("PERSON", "{{PERSON_1}}")
	require.NoError(t, err)
	assert.Equal(t, "Μαρία", got)
}

func TestOriginalMappingNotFound(t *testing.T) {
	m := NewEntityMapping()
	m.Placeholder("PERSON", "Γιάννης")

	t.Run("unknown entity type", func(t *testing.T) {
		_, err := m.Original("LOCATION", "{{LOCATION_0}}")
		require.ErrorIs(t, err, ErrMappingNotFound)
	})

	t.Run("unknown placeholder", func(t *testing.T) {
		_, err := m.Original("PERSON", "{{PERSON_9}}")
		require.ErrorIs(t, err, ErrMappingNotFound)
	})
}

func TestPlaceholderIndexParsing(t *testing.T) {
	tests := []struct {
		placeholder string
		entityType  string
		wantIdx     int
		wantOK      bool
	}{
		{"{{PERSON_0}}", "PERSON", 0, true},
		{"{{PERSON_12}}", "PERSON", 12, true},
		{"{{PERSON}}", "PERSON", 0, false},
		{"{{PHONE_NUMBER_3}}", "PHONE_NUMBER", 3, true},
		{"{{PHONE_NUMBER_3}}", "PHONE", 0, false},
	}
	for _, tt := range tests {
		idx, ok := placeholderIndex(tt.placeholder, tt.entityType)
		assert.Equal(t, tt.wantOK, ok, tt.placeholder)
		if tt.wantOK {
			assert.Equal(t, tt.wantIdx, idx, tt.placeholder)
		}
	}
}
