package anonymizer

import (
	"strings"
	"unicode"
)

// ContextWindowRunes is how much literal context is anchored on either side
// of a placeholder when recovering original-text offsets.
const ContextWindowRunes = 20

// MaskedEntity is a placeholder occurrence in a masked text, by rune offsets.
type MaskedEntity struct {
	EntityType string
	Start      int
	End        int
}

// AlignedEntity is the alignment result for one placeholder. When Resolved
// is false the original-text offsets are unknown (-1) and Value is empty;
// this is a soft failure the caller should surface as a warning.
type AlignedEntity struct {
	EntityType string
	Value      string
	Start      int
	End        int
	Resolved   bool
}

// Placeholders scans a masked text for "{{...}}" tokens and returns them in
// order. A trailing "_N" index suffix is stripped from the entity type, so
// both "{{PERSON}}" and "{{PERSON_3}}" yield type PERSON.
func Placeholders(masked string) []MaskedEntity {
	runes := []rune(masked)
	var entities []MaskedEntity
	for i := 0; i+1 < len(runes); i++ {
		if runes[i] != '{' || runes[i+1] != '{' {
			continue
		}
		closing := runeIndex(runes, []rune("}}"), i+2)
		if closing < 0 {
			break
		}
		inner := string(runes[i+2 : closing])
		entities = append(entities, MaskedEntity{
			EntityType: stripIndexSuffix(inner),
			Start:      i,
			End:        closing + 2,
		})
		i = closing + 1
	}
	return entities
}

// Align recovers, for each placeholder occurrence in masked, the substring
// and rune offsets it replaced in original. Used when placeholders have lost
// their index markers (e.g. "{{PERSON}}" instead of "{{PERSON_3}}") and
// offsets no longer correspond 1:1.
//
// Primary strategy anchors up to ContextWindowRunes of literal context on
// each side of the placeholder (placeholder delimiters stripped) and locates
// both anchors verbatim in the original. Fallback reduces the anchors to the
// nearest whitespace-delimited tokens. Entities are expected in ascending
// masked order; each successive "before" search starts no earlier than the
// previous resolved end, so stale context earlier in the text cannot match.
func Align(original, masked string, entities []MaskedEntity) []AlignedEntity {
	orig := []rune(original)
	mask := []rune(masked)

	aligned := make([]AlignedEntity, 0, len(entities))
	cursor := 0
	for _, ent := range entities {
		before, after := contextWindows(mask, ent.Start, ent.End)

		start, end, ok := alignByContext(orig, before, after, cursor)
		if !ok {
			start, end, ok = alignByTokens(orig, before, after, cursor)
		}
		if !ok {
			aligned = append(aligned, AlignedEntity{
				EntityType: ent.EntityType,
				Start:      -1,
				End:        -1,
			})
			continue
		}

		aligned = append(aligned, AlignedEntity{
			EntityType: ent.EntityType,
			Value:      string(orig[start:end]),
			Start:      start,
			End:        end,
			Resolved:   true,
		})
		cursor = end
	}
	return aligned
}

// contextWindows extracts the literal context around a placeholder. The
// before window is truncated at the end of the nearest preceding placeholder
// and the after window at the start of the nearest following one, so only
// literal text is anchored; any leftover placeholder delimiters are stripped.
func contextWindows(mask []rune, start, end int) (before, after []rune) {
	b := start - ContextWindowRunes
	if b < 0 {
		b = 0
	}
	beforeStr := string(mask[b:start])
	if i := strings.LastIndex(beforeStr, "}}"); i >= 0 {
		beforeStr = beforeStr[i+2:]
	}

	a := end + ContextWindowRunes
	if a > len(mask) {
		a = len(mask)
	}
	afterStr := string(mask[end:a])
	if i := strings.Index(afterStr, "{{"); i >= 0 {
		afterStr = afterStr[:i]
	}

	strip := strings.NewReplacer("{{", "", "}}", "")
	return []rune(strip.Replace(beforeStr)), []rune(strip.Replace(afterStr))
}

// alignByContext locates the full before/after context verbatim.
func alignByContext(orig, before, after []rune, cursor int) (start, end int, ok bool) {
	beforeEnd := cursor
	if len(before) > 0 {
		pos := runeIndex(orig, before, cursor)
		if pos < 0 {
			return 0, 0, false
		}
		beforeEnd = pos + len(before)
	}
	if len(after) == 0 {
		return beforeEnd, len(orig), true
	}
	afterPos := runeIndex(orig, after, beforeEnd)
	if afterPos < beforeEnd {
		return 0, 0, false
	}
	return beforeEnd, afterPos, true
}

// alignByTokens falls back to the last whitespace-delimited token before the
// placeholder and the first token after it, trimming the recovered span of
// surrounding whitespace.
func alignByTokens(orig, before, after []rune, cursor int) (start, end int, ok bool) {
	beforeTokens := strings.Fields(string(before))
	afterTokens := strings.Fields(string(after))
	if len(beforeTokens) == 0 || len(afterTokens) == 0 {
		return 0, 0, false
	}
	lastBefore := []rune(beforeTokens[len(beforeTokens)-1])
	firstAfter := []rune(afterTokens[0])

	beforePos := runeIndex(orig, lastBefore, cursor)
	if beforePos < 0 {
		return 0, 0, false
	}
	beforeEnd := beforePos + len(lastBefore)
	afterPos := runeIndex(orig, firstAfter, beforeEnd)
	if afterPos <= beforeEnd {
		return 0, 0, false
	}

	start, end = beforeEnd, afterPos
	for start < end && unicode.IsSpace(orig[start]) {
		start++
	}
	for end > start && unicode.IsSpace(orig[end-1]) {
		end--
	}
	return start, end, true
}

// runeIndex returns the first index >= from where needle occurs in haystack,
// or -1. Naive scan; context windows are short.
func runeIndex(haystack, needle []rune, from int) int {
	if from < 0 {
		from = 0
	}
	if len(needle) == 0 {
		return from
	}
	for i := from; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// stripIndexSuffix removes a trailing "_N" instance index from a placeholder
// entity name.
func stripIndexSuffix(name string) string {
	i := strings.LastIndex(name, "_")
	if i < 0 || i == len(name)-1 {
		return name
	}
	for _, r := range name[i+1:] {
		if r < '0' || r > '9' {
			return name
		}
	}
	return name[:i]
}
