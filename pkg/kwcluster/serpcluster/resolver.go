package serpcluster

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/keywordscope/kwcluster/pkg/kwcluster/internalerr"
	"github.com/keywordscope/kwcluster/pkg/kwcluster/serp"
)

// ResolverConfig controls wave-based SERP resolution.
type ResolverConfig struct {
	// Waves bounds fetch rounds; keywords still lacking URLs after a
	// wave are retried in the next.
	Waves int
	// Concurrency bounds in-flight fetches per wave.
	Concurrency int
	// TopN is the result window considered per keyword.
	TopN int
	// ForceRefetch skips snapshot reuse entirely.
	ForceRefetch bool
}

func (c *ResolverConfig) defaults() {
	if c.Waves <= 0 {
		c.Waves = 3
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 8
	}
	if c.TopN <= 0 {
		c.TopN = 10
	}
}

// Progress counts resolution work for run observability.
type Progress struct {
	Eligible  int
	Resolved  int
	Waves     int
	Fetches   int
	CacheHits int
	Successes int
}

// Resolver resolves keywords to SERP footprints across fetch waves.
type Resolver struct {
	fetcher Fetcher
	snaps   SnapshotStore
	cfg     ResolverConfig
}

// NewResolver creates a Resolver; zero config fields get defaults.
func NewResolver(fetcher Fetcher, snaps SnapshotStore, cfg ResolverConfig) *Resolver {
	cfg.defaults()
	return &Resolver{fetcher: fetcher, snaps: snaps, cfg: cfg}
}

// Resolve fetches SERP footprints for all keywords, reusing stored
// snapshots where allowed. Waves are hard barriers: wave N+1 starts
// only after every wave-N task settles, because its keyword set is
// wave N's leftovers. If any keyword stays unresolved after the last
// wave, Resolve returns the partial result with a CoverageError:
// clustering on partial SERP data silently degrades quality, so the
// caller is expected to fail the run instead.
//
// onWave, when non-nil, observes progress after each wave.
func (r *Resolver) Resolve(ctx context.Context, keywords []Keyword, onWave func(Progress)) ([]Resolved, Progress, error) {
	progress := Progress{Eligible: len(keywords)}
	if len(keywords) == 0 {
		return nil, progress, nil
	}

	resolved := make(map[int64]Resolved, len(keywords))
	pending := append([]Keyword(nil), keywords...)

	// Snapshot reuse happens once, ahead of the first wave.
	if !r.cfg.ForceRefetch {
		var still []Keyword
		for _, kw := range pending {
			snap, ok, err := r.snaps.Latest(ctx, kw.ID)
			if err != nil {
				return nil, progress, err
			}
			if ok && Reusable(snap, r.cfg.TopN) {
				hosts, urls := footprint(snap.URLs, r.cfg.TopN)
				resolved[kw.ID] = Resolved{Keyword: kw, Hosts: hosts, URLs: urls}
				progress.CacheHits++
				continue
			}
			still = append(still, kw)
		}
		pending = still
	}
	progress.Resolved = len(resolved)

	for wave := 0; wave < r.cfg.Waves && len(pending) > 0; wave++ {
		progress.Waves++

		results, err := r.fetchWave(ctx, pending)
		if err != nil {
			return nil, progress, err
		}
		progress.Fetches += len(pending)

		var still []Keyword
		for _, kw := range pending {
			res, ok := results[kw.ID]
			if !ok {
				still = append(still, kw)
				continue
			}
			hosts, urls := footprint(res.URLs, r.cfg.TopN)
			if res.Status == serp.StatusOK && len(hosts) > 0 {
				resolved[kw.ID] = Resolved{Keyword: kw, Hosts: hosts, URLs: urls}
				progress.Successes++
			} else {
				still = append(still, kw)
			}
		}
		pending = still
		progress.Resolved = len(resolved)

		if onWave != nil {
			onWave(progress)
		}
	}

	out := make([]Resolved, 0, len(resolved))
	for _, kw := range keywords {
		if rk, ok := resolved[kw.ID]; ok {
			out = append(out, rk)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Keyword.ID < out[j].Keyword.ID
	})

	if len(pending) > 0 {
		return out, progress, &internalerr.CoverageError{
			Unresolved: len(pending),
			Total:      len(keywords),
		}
	}
	return out, progress, nil
}

// fetchWave fetches all pending keywords through a bounded worker pool
// and persists every outcome as a snapshot. Completion order within a
// wave is unconstrained; each keyword writes its own snapshot row, so
// no coordination beyond the semaphore is needed.
func (r *Resolver) fetchWave(ctx context.Context, pending []Keyword) (map[int64]serp.Result, error) {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[int64]serp.Result, len(pending))
		sem     = make(chan struct{}, r.cfg.Concurrency)
		errs    []error
	)

	for _, kw := range pending {
		wg.Add(1)
		sem <- struct{}{}
		go func(kw Keyword) {
			defer wg.Done()
			defer func() { <-sem }()

			res := r.fetcher.Fetch(ctx, kw.Text)
			snap := Snapshot{
				KeywordID:  kw.ID,
				FetchedAt:  time.Now().UTC(),
				Status:     res.Status,
				HTTPStatus: res.HTTPStatus,
				URLs:       res.URLs,
				RawExcerpt: res.RawExcerpt,
				Err:        res.Err,
			}
			err := r.snaps.Append(ctx, snap)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			results[kw.ID] = res
		}(kw)
	}
	wg.Wait()

	if len(errs) > 0 {
		return nil, errs[0]
	}
	return results, nil
}
