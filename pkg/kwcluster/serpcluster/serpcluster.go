// Package serpcluster groups keywords by shared ranking URLs: keywords
// are resolved to their top organic result hosts in bounded fetch
// waves, then partitioned over a Jaccard-weighted host-overlap graph.
package serpcluster

import (
	"context"
	"time"

	"github.com/keywordscope/kwcluster/pkg/kwcluster/serp"
)

// Keyword is one clustering input.
type Keyword struct {
	ID            int64
	Text          string
	DemandMonthly float64
}

// Snapshot is one fetch outcome for one keyword, persisted append-only.
type Snapshot struct {
	KeywordID  int64
	FetchedAt  time.Time
	Status     string
	HTTPStatus int
	URLs       []serp.RankedURL
	RawExcerpt string
	Err        string
}

// Resolved is a keyword with its normalized SERP footprint.
type Resolved struct {
	Keyword Keyword
	// Hosts are the lowercased result hosts within the top-N window,
	// deduplicated, in first-seen rank order.
	Hosts []string
	// URLs are the normalized full URLs within the window, deduplicated,
	// in rank order.
	URLs []string
}

// Fetcher retrieves SERP results for a keyword, retries included.
type Fetcher interface {
	Fetch(ctx context.Context, keyword string) serp.Result
}

// SnapshotStore reads and appends snapshot records for one project.
type SnapshotStore interface {
	// Latest returns the most recent snapshot for a keyword, if any.
	Latest(ctx context.Context, keywordID int64) (Snapshot, bool, error)
	// Append persists one fetch outcome.
	Append(ctx context.Context, snap Snapshot) error
}

// Reusable reports whether a stored snapshot can stand in for a fresh
// fetch: the fetch succeeded, the HTTP status was 2xx, and the top-N
// window still yields at least one parseable URL.
func Reusable(snap Snapshot, topN int) bool {
	if snap.Status != serp.StatusOK {
		return false
	}
	if snap.HTTPStatus < 200 || snap.HTTPStatus >= 300 {
		return false
	}
	hosts, _ := footprint(snap.URLs, topN)
	return len(hosts) > 0
}

// footprint reduces ranked URLs to the deduplicated host set and
// normalized URL list within the top-N window.
func footprint(urls []serp.RankedURL, topN int) (hosts []string, normalized []string) {
	if topN <= 0 {
		topN = len(urls)
	}

	seenHost := make(map[string]struct{})
	seenURL := make(map[string]struct{})
	taken := 0
	for _, ru := range urls {
		if taken >= topN {
			break
		}
		taken++

		host, ok := serp.Host(ru.URL)
		if !ok {
			continue
		}
		if _, dup := seenHost[host]; !dup {
			seenHost[host] = struct{}{}
			hosts = append(hosts, host)
		}
		if norm, ok := serp.NormalizeURL(ru.URL); ok {
			if _, dup := seenURL[norm]; !dup {
				seenURL[norm] = struct{}{}
				normalized = append(normalized, norm)
			}
		}
	}
	return hosts, normalized
}
