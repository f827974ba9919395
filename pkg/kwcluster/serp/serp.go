// Package serp retrieves top organic result URLs for a keyword from an
// external search-result extraction API, with bounded retries and
// exponential backoff.
package serp

// RankedURL is one organic result.
type RankedURL struct {
	URL      string `json:"url"`
	Position int    `json:"position"`
}

// Result describes one keyword's fetch outcome after all retries.
// Status is "ok" on success and "error" after exhausted attempts; the
// caller persists either as an immutable snapshot.
type Result struct {
	URLs       []RankedURL
	Status     string
	HTTPStatus int
	DurationMs int64
	RawExcerpt string
	Err        string
}

// StatusOK and StatusError are the two snapshot statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)
