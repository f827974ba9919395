package internalerr

import (
	"errors"
	"fmt"
)

// Sentinel errors captured verbatim in failed run records so callers can
// distinguish failure causes without parsing free text.
var (
	ErrNoKeywords = errors.New("NO_KEYWORDS")
	ErrNoSerps    = errors.New("NO_SERPS")
)

// CoverageError reports incomplete SERP resolution after all fetch waves.
// Partial SERP data produces misleading clusters, so a run refuses to
// cluster when any eligible keyword stays unresolved.
type CoverageError struct {
	Unresolved int
	Total      int
}

func (e *CoverageError) Error() string {
	return fmt.Sprintf("INCOMPLETE_SERP_COVERAGE:%d/%d", e.Unresolved, e.Total)
}
