package anonymizer

import (
	"fmt"
	"strconv"
	"strings"
)

// EntityMapping records, per entity type, which original value was replaced
// by which placeholder token. It is built incrementally during one
// anonymization session, is append-only, and is never persisted or shared
// across sessions.
type EntityMapping map[string]map[string]string

// NewEntityMapping returns an empty session mapping.
func NewEntityMapping() EntityMapping {
	return make(EntityMapping)
}

// Placeholder returns the placeholder token for value under entityType,
// assigning a new instance-counter token on first sight. The same original
// value always maps to the same placeholder within a session; a new value
// gets index max(existing)+1, starting at 0.
func (m EntityMapping) Placeholder(entityType, value string) string {
	byType, ok := m[entityType]
	if !ok {
		byType = make(map[string]string)
		m[entityType] = byType
	}
	if p, ok := byType[value]; ok {
		return p
	}
	p := fmt.Sprintf("{{%s_%d}}", entityType, m.nextIndex(entityType))
	byType[value] = p
	return p
}

// Original reverse-searches the per-type mapping for the value whose
// placeholder equals placeholder. Fails with ErrMappingNotFound when the
// entity type or the placeholder is absent. No side effects.
func (m EntityMapping) Original(entityType, placeholder string) (string, error) {
	byType, ok := m[entityType]
	if !ok {
		return "", fmt.Errorf("entity type %q: %w", entityType, ErrMappingNotFound)
	}
	for value, p := range byType {
		if p == placeholder {
			return value, nil
		}
	}
	return "", fmt.Errorf("placeholder %q for entity type %q: %w", placeholder, entityType, ErrMappingNotFound)
}

// nextIndex returns max(existing indices)+1 for entityType, or 0 when the
// type has no entries yet.
func (m EntityMapping) nextIndex(entityType string) int {
	next := 0
	for _, p := range m[entityType] {
		if idx, ok := placeholderIndex(p, entityType); ok && idx >= next {
			next = idx + 1
		}
	}
	return next
}

// placeholderIndex extracts N from a "{{TYPE_N}}" token for the given type.
func placeholderIndex(placeholder, entityType string) (int, bool) {
	inner := strings.TrimSuffix(strings.TrimPrefix(placeholder, "{{"), "}}")
	rest := strings.TrimPrefix(inner, entityType+"_")
	if rest == inner {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
