// Package anonymizer reconciles entity spans from multiple detectors into a
// single non-overlapping span set, substitutes each span with a placeholder
// token, and can invert the substitution from the mapping built along the way.
//
// All offsets in this package are RUNE indices into the text unit, not byte
// offsets. Detectors working on byte offsets (e.g. regexp matches) must
// convert before handing spans over; Greek text makes the distinction matter.
package anonymizer

import "sort"

// RawSpan is a single entity detection as produced by one detector.
type RawSpan struct {
	EntityType string  `json:"entity_type"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Score      float64 `json:"score"`
	SourceID   string  `json:"source_id"`
}

func (s RawSpan) length() int { return s.End - s.Start }

// contains reports whether s fully covers other.
func (s RawSpan) contains(other RawSpan) bool {
	return s.Start <= other.Start && s.End >= other.End
}

// Aggregate merges raw spans from any number of detectors into an ordered,
// resolved span set:
//
//  1. malformed spans (negative start, start >= end, end beyond textLen) are
//     dropped locally rather than aborting the whole unit;
//  2. spans with identical (start, end) are deduplicated regardless of
//     source, keeping the highest-scoring one;
//  3. a span fully contained in a strictly longer span is discarded
//     (longest match wins); equal-length overlaps are both retained;
//  4. survivors are sorted ascending by (start, end).
//
// Partial overlaps without containment are deliberately kept; substitution
// handles them by clamping. Total over any input; empty in, empty out.
func Aggregate(textLen int, spans []RawSpan) []RawSpan {
	var valid []RawSpan
	for _, s := range spans {
		if s.Start < 0 || s.Start >= s.End || s.End > textLen {
			continue
		}
		valid = append(valid, s)
	}

	index := make(map[[2]int]int, len(valid))
	var uniq []RawSpan
	for _, s := range valid {
		key := [2]int{s.Start, s.End}
		if i, ok := index[key]; ok {
			if s.Score > uniq[i].Score {
				uniq[i] = s
			}
			continue
		}
		index[key] = len(uniq)
		uniq = append(uniq, s)
	}

	var resolved []RawSpan
	for i, si := range uniq {
		contained := false
		for j, sj := range uniq {
			if i == j {
				continue
			}
			if sj.contains(si) && sj.length() > si.length() {
				contained = true
				break
			}
		}
		if !contained {
			resolved = append(resolved, si)
		}
	}

	sort.Slice(resolved, func(i, j int) bool {
		if resolved[i].Start != resolved[j].Start {
			return resolved[i].Start < resolved[j].Start
		}
		return resolved[i].End < resolved[j].End
	})
	return resolved
}
