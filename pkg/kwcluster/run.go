package kwcluster

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/keywordscope/kwcluster/pkg/kwcluster/internalerr"
	"github.com/keywordscope/kwcluster/pkg/kwcluster/parentmap"
	"github.com/keywordscope/kwcluster/pkg/kwcluster/serpcluster"
	"github.com/keywordscope/kwcluster/pkg/kwcluster/store"
)

const parentTopKeywords = 5

// RunSerpClustering executes one full clustering run for a project:
// bootstrap keywords from analytics if the project is empty, resolve
// SERP footprints in waves, partition by URL overlap, map parents, and
// persist everything atomically. The returned run carries the final
// state; on failure the run is marked failed with the error message
// and whatever progress had accumulated.
func (e *Engine) RunSerpClustering(ctx context.Context, projectID string) (store.Run, error) {
	cfgJSON, err := json.Marshal(e.cfg)
	if err != nil {
		return store.Run{}, err
	}

	run := store.Run{
		ID:         e.newID(),
		ProjectID:  projectID,
		Status:     store.RunPending,
		ConfigJSON: string(cfgJSON),
	}
	if err := e.store.CreateRun(ctx, run); err != nil {
		return store.Run{}, err
	}

	if err := e.transition(ctx, &run, store.RunRunning); err != nil {
		return e.markFailed(ctx, run, err)
	}

	eligible, err := e.store.CountKeywords(ctx, projectID, e.cfg.MinDemand)
	if err != nil {
		return e.markFailed(ctx, run, err)
	}
	if eligible == 0 && e.analytics != nil {
		if err := e.transition(ctx, &run, store.RunImportingGSC); err != nil {
			return e.markFailed(ctx, run, err)
		}
		if err := e.importAnalytics(ctx, projectID); err != nil {
			return e.markFailed(ctx, run, err)
		}
		eligible, err = e.store.CountKeywords(ctx, projectID, e.cfg.MinDemand)
		if err != nil {
			return e.markFailed(ctx, run, err)
		}
	}
	if eligible == 0 {
		return e.markFailed(ctx, run, internalerr.ErrNoKeywords)
	}

	if err := e.transition(ctx, &run, store.RunFetchingSerps); err != nil {
		return e.markFailed(ctx, run, err)
	}

	keywords, err := e.store.ListKeywords(ctx, projectID, e.cfg.MinDemand)
	if err != nil {
		return e.markFailed(ctx, run, err)
	}
	inputs := make([]serpcluster.Keyword, len(keywords))
	for i, k := range keywords {
		inputs[i] = serpcluster.Keyword{ID: k.ID, Text: k.Norm, DemandMonthly: k.DemandMonthly}
	}

	resolver := serpcluster.NewResolver(e.fetcher, snapshotStore{e.store}, serpcluster.ResolverConfig{
		Waves:        e.cfg.Waves,
		Concurrency:  e.cfg.Concurrency,
		TopN:         e.cfg.TopN,
		ForceRefetch: e.cfg.ForceRefetch,
	})
	resolved, progress, resErr := resolver.Resolve(ctx, inputs, func(p serpcluster.Progress) {
		run.Progress = runProgress(p)
		// Mid-flight progress is best effort; a failed write here must
		// not abort the wave loop.
		_ = e.store.UpdateRun(ctx, run)
	})
	run.Progress = runProgress(progress)
	if resErr != nil {
		var cov *internalerr.CoverageError
		if errors.As(resErr, &cov) && len(resolved) == 0 {
			return e.markFailed(ctx, run, internalerr.ErrNoSerps)
		}
		return e.markFailed(ctx, run, resErr)
	}
	if len(resolved) == 0 {
		return e.markFailed(ctx, run, internalerr.ErrNoSerps)
	}

	if err := e.transition(ctx, &run, store.RunClustering); err != nil {
		return e.markFailed(ctx, run, err)
	}

	clusterer := serpcluster.NewClusterer(serpcluster.Config{
		OverlapThreshold: e.cfg.OverlapThreshold,
		MinSharedHosts:   e.cfg.MinSharedHosts,
		Algorithm:        e.cfg.Algorithm,
		Seed:             e.cfg.Seed,
	})
	subclusters := clusterer.Cluster(resolved)
	run.Progress.UsedKeywords = countMembers(subclusters)

	if err := e.transition(ctx, &run, store.RunMappingParents); err != nil {
		return e.markFailed(ctx, run, err)
	}

	textByID := make(map[int64]string, len(keywords))
	demandByID := make(map[int64]float64, len(keywords))
	for _, k := range keywords {
		textByID[k.ID] = k.Norm
		demandByID[k.ID] = k.DemandMonthly
	}
	parents := parentmap.NewMapper(e.llm).Map(ctx, mapperInputs(subclusters, textByID, demandByID))

	storeSubs := make([]store.Subcluster, len(subclusters))
	subByID := make(map[string]store.Subcluster, len(subclusters))
	for i, sc := range subclusters {
		row := store.Subcluster{
			ID:           sc.ID,
			RunID:        run.ID,
			Name:         sc.Name,
			MemberIDs:    sc.MemberIDs,
			TotalDemand:  sc.TotalDemand,
			KeywordCount: sc.KeywordCount,
			TopDomains:   sc.TopDomains,
			TopURLs:      sc.TopURLs,
			OverlapScore: sc.OverlapScore,
		}
		storeSubs[i] = row
		subByID[sc.ID] = row
	}
	storeParents := buildParentRows(run.ID, parents, subByID, e.newID)

	run.Status = store.RunCompleted
	run.CompletedAt = time.Now().UTC()
	if err := e.store.CompleteRun(ctx, run, storeSubs, storeParents); err != nil {
		run.Status = store.RunMappingParents
		run.CompletedAt = time.Time{}
		return e.markFailed(ctx, run, err)
	}

	if _, err := e.store.PruneRuns(ctx, projectID, e.cfg.MaxRetainedRuns); err != nil {
		return run, err
	}
	return run, nil
}

func (e *Engine) transition(ctx context.Context, run *store.Run, status string) error {
	run.Status = status
	return e.store.UpdateRun(ctx, *run)
}

// markFailed records the failure message verbatim together with the
// progress accumulated so far, then returns the original error.
func (e *Engine) markFailed(ctx context.Context, run store.Run, cause error) (store.Run, error) {
	run.Status = store.RunFailed
	run.Error = cause.Error()
	if err := e.store.UpdateRun(ctx, run); err != nil {
		return run, errors.Join(cause, err)
	}
	return run, cause
}

func (e *Engine) importAnalytics(ctx context.Context, projectID string) error {
	rows, err := e.analytics.RecentQueries(ctx, e.cfg.GSCLookbackDays, 1000)
	if err != nil {
		return err
	}
	ingest := make([]IngestRow, len(rows))
	for i, r := range rows {
		ingest[i] = IngestRow{
			Raw:         r.Query,
			SourceID:    "gsc",
			SourceType:  "gsc",
			Impressions: r.Impressions,
			Clicks:      r.Clicks,
			Position:    r.Position,
			DateFrom:    r.DateFrom,
			DateTo:      r.DateTo,
		}
	}
	_, err = e.IngestKeywords(ctx, projectID, ingest)
	return err
}

func runProgress(p serpcluster.Progress) store.RunProgress {
	return store.RunProgress{
		EligibleKeywords: p.Eligible,
		ResolvedKeywords: p.Resolved,
		Waves:            p.Waves,
		Fetches:          p.Fetches,
		CacheHits:        p.CacheHits,
		Successes:        p.Successes,
	}
}

func countMembers(subclusters []serpcluster.Subcluster) int {
	n := 0
	for _, sc := range subclusters {
		n += len(sc.MemberIDs)
	}
	return n
}

func mapperInputs(subclusters []serpcluster.Subcluster, textByID map[int64]string, demandByID map[int64]float64) []parentmap.Subcluster {
	out := make([]parentmap.Subcluster, len(subclusters))
	for i, sc := range subclusters {
		members := append([]int64(nil), sc.MemberIDs...)
		sort.Slice(members, func(a, b int) bool {
			if demandByID[members[a]] != demandByID[members[b]] {
				return demandByID[members[a]] > demandByID[members[b]]
			}
			return members[a] < members[b]
		})
		if len(members) > parentTopKeywords {
			members = members[:parentTopKeywords]
		}
		top := make([]string, 0, len(members))
		for _, id := range members {
			if text := textByID[id]; text != "" {
				top = append(top, text)
			}
		}
		out[i] = parentmap.Subcluster{
			ID:           sc.ID,
			Name:         sc.Name,
			TopDomains:   sc.TopDomains,
			TopKeywords:  top,
			KeywordCount: sc.KeywordCount,
			TotalDemand:  sc.TotalDemand,
		}
	}
	return out
}

// buildParentRows aggregates demand, keyword counts, and top domains
// from each parent's subclusters.
func buildParentRows(runID string, parents []parentmap.Parent, subByID map[string]store.Subcluster, newID func() string) []store.ParentCluster {
	rows := make([]store.ParentCluster, len(parents))
	for i, p := range parents {
		row := store.ParentCluster{
			ID:            newID(),
			RunID:         runID,
			Name:          p.Name,
			Rationale:     p.Rationale,
			SubclusterIDs: p.SubclusterIDs,
		}
		domainFreq := make(map[string]int)
		var domainOrder []string
		for _, id := range p.SubclusterIDs {
			sc, ok := subByID[id]
			if !ok {
				continue
			}
			row.TotalDemand += sc.TotalDemand
			row.KeywordCount += sc.KeywordCount
			for _, d := range sc.TopDomains {
				if domainFreq[d] == 0 {
					domainOrder = append(domainOrder, d)
				}
				domainFreq[d]++
			}
		}
		sort.SliceStable(domainOrder, func(a, b int) bool {
			return domainFreq[domainOrder[a]] > domainFreq[domainOrder[b]]
		})
		if len(domainOrder) > 5 {
			domainOrder = domainOrder[:5]
		}
		row.TopDomains = domainOrder
		rows[i] = row
	}
	return rows
}

// snapshotStore adapts store.Store to the resolver's snapshot
// interface.
type snapshotStore struct {
	s store.Store
}

func (a snapshotStore) Latest(ctx context.Context, keywordID int64) (serpcluster.Snapshot, bool, error) {
	snap, ok, err := a.s.LatestSnapshot(ctx, keywordID)
	if err != nil || !ok {
		return serpcluster.Snapshot{}, ok, err
	}
	return serpcluster.Snapshot{
		KeywordID:  snap.KeywordID,
		FetchedAt:  snap.FetchedAt,
		Status:     snap.Status,
		HTTPStatus: snap.HTTPStatus,
		URLs:       snap.URLs,
		RawExcerpt: snap.RawExcerpt,
		Err:        snap.Err,
	}, true, nil
}

func (a snapshotStore) Append(ctx context.Context, snap serpcluster.Snapshot) error {
	return a.s.AppendSnapshot(ctx, store.Snapshot{
		KeywordID:  snap.KeywordID,
		FetchedAt:  snap.FetchedAt,
		Status:     snap.Status,
		HTTPStatus: snap.HTTPStatus,
		URLs:       snap.URLs,
		RawExcerpt: snap.RawExcerpt,
		Err:        snap.Err,
	})
}
