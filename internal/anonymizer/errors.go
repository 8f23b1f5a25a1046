package anonymizer

import "errors"

var (
	// ErrMappingNotFound is returned by deanonymization when the supplied
	// entity mapping has no entry for the requested entity type or
	// placeholder value. Always surfaced to the caller: returning a wrong
	// original value would be worse than failing loudly.
	ErrMappingNotFound = errors.New("entity mapping not found")

	// ErrSpanMismatch signals that the number of resolved spans does not
	// equal the number of substitution records for a text unit. The
	// pipeline recovers via alignment instead of failing, but logs the
	// condition with this sentinel.
	ErrSpanMismatch = errors.New("resolved span count does not match substitution count")
)
