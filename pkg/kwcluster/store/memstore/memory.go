// Package memstore is an in-memory implementation of store.Store for
// tests and small experiments.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/keywordscope/kwcluster/pkg/kwcluster/store"
)

type keywordKey struct {
	projectID string
	norm      string
}

type metricKey struct {
	keywordID int64
	sourceID  string
}

// Store holds everything in maps guarded by one RWMutex. Values are
// copied on read so callers cannot mutate stored state.
type Store struct {
	mu          sync.RWMutex
	nextID      int64
	nextULID    int64
	keywords    map[int64]store.Keyword
	byNorm      map[keywordKey]int64
	metrics     map[metricKey]store.KeywordMetric
	preclusters map[string][]store.Precluster
	snapshots   map[int64][]store.Snapshot
	runs        map[string]store.Run
	subclusters map[string][]store.Subcluster
	parents     map[string][]store.ParentCluster
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		nextID:      1,
		keywords:    make(map[int64]store.Keyword),
		byNorm:      make(map[keywordKey]int64),
		metrics:     make(map[metricKey]store.KeywordMetric),
		preclusters: make(map[string][]store.Precluster),
		snapshots:   make(map[int64][]store.Snapshot),
		runs:        make(map[string]store.Run),
		subclusters: make(map[string][]store.Subcluster),
		parents:     make(map[string][]store.ParentCluster),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

func (s *Store) newID() string {
	s.nextULID++
	return fmt.Sprintf("mem-%08d", s.nextULID)
}

// UpsertKeyword inserts or updates a keyword by (project id, norm).
func (s *Store) UpsertKeyword(_ context.Context, k store.Keyword) (int64, error) {
	if k.ProjectID == "" || k.Norm == "" {
		return 0, fmt.Errorf("memstore: keyword requires project id and norm")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	key := keywordKey{k.ProjectID, k.Norm}
	if id, ok := s.byNorm[key]; ok {
		existing := s.keywords[id]
		existing.Raw = k.Raw
		existing.Sig = k.Sig
		existing.UpdatedAt = now
		s.keywords[id] = existing
		return id, nil
	}

	id := s.nextID
	s.nextID++
	k.ID = id
	k.CreatedAt = now
	k.UpdatedAt = now
	s.keywords[id] = k
	s.byNorm[key] = id
	return id, nil
}

// SetKeywordDemand updates the aggregated demand fields of a keyword.
func (s *Store) SetKeywordDemand(_ context.Context, keywordID int64, demand float64, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.keywords[keywordID]
	if !ok {
		return fmt.Errorf("memstore: keyword %d not found", keywordID)
	}
	k.DemandMonthly = demand
	k.DemandSource = source
	k.UpdatedAt = time.Now().UTC()
	s.keywords[keywordID] = k
	return nil
}

// ListKeywords returns a project's keywords at or above minDemand,
// ordered by demand descending then id.
func (s *Store) ListKeywords(_ context.Context, projectID string, minDemand float64) ([]store.Keyword, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.Keyword
	for _, k := range s.keywords {
		if k.ProjectID == projectID && k.DemandMonthly >= minDemand {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DemandMonthly != out[j].DemandMonthly {
			return out[i].DemandMonthly > out[j].DemandMonthly
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// CountKeywords counts a project's keywords at or above minDemand.
func (s *Store) CountKeywords(_ context.Context, projectID string, minDemand float64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, k := range s.keywords {
		if k.ProjectID == projectID && k.DemandMonthly >= minDemand {
			n++
		}
	}
	return n, nil
}

// UpsertKeywordMetric writes a metric row, last-writer-wins per
// (keyword id, source id).
func (s *Store) UpsertKeywordMetric(_ context.Context, m store.KeywordMetric) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.UpdatedAt = time.Now().UTC()
	s.metrics[metricKey{m.KeywordID, m.SourceID}] = m
	return nil
}

// GetKeywordMetrics returns all metric rows for a keyword.
func (s *Store) GetKeywordMetrics(_ context.Context, keywordID int64) ([]store.KeywordMetric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.KeywordMetric
	for key, m := range s.metrics {
		if key.keywordID == keywordID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceID < out[j].SourceID })
	return out, nil
}

// ReplacePreclusters swaps a project's precluster set.
func (s *Store) ReplacePreclusters(_ context.Context, projectID string, clusters []store.Precluster) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	replacement := make([]store.Precluster, len(clusters))
	for i, c := range clusters {
		if c.ID == "" {
			c.ID = s.newID()
		}
		c.ProjectID = projectID
		c.CreatedAt = now
		c.MemberIDs = append([]int64(nil), c.MemberIDs...)
		replacement[i] = c
	}
	s.preclusters[projectID] = replacement
	return nil
}

// ListPreclusters returns a project's preclusters ordered by demand
// descending then label.
func (s *Store) ListPreclusters(_ context.Context, projectID string) ([]store.Precluster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.Precluster, len(s.preclusters[projectID]))
	for i, c := range s.preclusters[projectID] {
		c.MemberIDs = append([]int64(nil), c.MemberIDs...)
		out[i] = c
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalDemand != out[j].TotalDemand {
			return out[i].TotalDemand > out[j].TotalDemand
		}
		return out[i].Label < out[j].Label
	})
	return out, nil
}

// AppendSnapshot inserts one fetch outcome.
func (s *Store) AppendSnapshot(_ context.Context, snap store.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.ID == "" {
		snap.ID = s.newID()
	}
	if snap.FetchedAt.IsZero() {
		snap.FetchedAt = time.Now().UTC()
	}
	snap.URLs = append(snap.URLs[:0:0], snap.URLs...)
	s.snapshots[snap.KeywordID] = append(s.snapshots[snap.KeywordID], snap)
	return nil
}

// LatestSnapshot returns the last appended snapshot for a keyword.
func (s *Store) LatestSnapshot(_ context.Context, keywordID int64) (store.Snapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snaps := s.snapshots[keywordID]
	if len(snaps) == 0 {
		return store.Snapshot{}, false, nil
	}
	snap := snaps[len(snaps)-1]
	snap.URLs = append(snap.URLs[:0:0], snap.URLs...)
	return snap, true, nil
}

// SnapshotCount reports how many snapshots a keyword has. Test helper,
// not part of store.Store.
func (s *Store) SnapshotCount(keywordID int64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshots[keywordID])
}

// CreateRun inserts a new run row.
func (s *Store) CreateRun(_ context.Context, run store.Run) error {
	if run.ID == "" {
		return fmt.Errorf("memstore: run requires an id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.ID]; exists {
		return fmt.Errorf("memstore: run %s already exists", run.ID)
	}
	now := time.Now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = now
	s.runs[run.ID] = run
	return nil
}

// UpdateRun overwrites a run's mutable fields.
func (s *Store) UpdateRun(_ context.Context, run store.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateRunLocked(run)
}

func (s *Store) updateRunLocked(run store.Run) error {
	existing, ok := s.runs[run.ID]
	if !ok {
		return fmt.Errorf("memstore: run %s not found", run.ID)
	}
	existing.Status = run.Status
	existing.Progress = run.Progress
	existing.Error = run.Error
	existing.CompletedAt = run.CompletedAt
	existing.UpdatedAt = time.Now().UTC()
	s.runs[run.ID] = existing
	return nil
}

// GetRun returns a run by id.
func (s *Store) GetRun(_ context.Context, id string) (store.Run, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	return run, ok, nil
}

// ListRuns returns a project's newest runs first, capped at limit.
func (s *Store) ListRuns(_ context.Context, projectID string, limit int) ([]store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	var out []store.Run
	for _, run := range s.runs {
		if run.ProjectID == projectID {
			out = append(out, run)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CompleteRun writes subclusters, parents, and the run state together.
func (s *Store) CompleteRun(_ context.Context, run store.Run, subclusters []store.Subcluster, parents []store.ParentCluster) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.updateRunLocked(run); err != nil {
		return err
	}

	subs := make([]store.Subcluster, len(subclusters))
	for i, sc := range subclusters {
		if sc.ID == "" {
			sc.ID = s.newID()
		}
		sc.RunID = run.ID
		sc.MemberIDs = append([]int64(nil), sc.MemberIDs...)
		sc.TopDomains = append([]string(nil), sc.TopDomains...)
		sc.TopURLs = append([]string(nil), sc.TopURLs...)
		subs[i] = sc
	}
	s.subclusters[run.ID] = subs

	ps := make([]store.ParentCluster, len(parents))
	for i, p := range parents {
		if p.ID == "" {
			p.ID = s.newID()
		}
		p.RunID = run.ID
		p.TopDomains = append([]string(nil), p.TopDomains...)
		p.SubclusterIDs = append([]string(nil), p.SubclusterIDs...)
		ps[i] = p
	}
	s.parents[run.ID] = ps
	return nil
}

// ListSubclusters returns a run's subclusters ordered by demand
// descending then name.
func (s *Store) ListSubclusters(_ context.Context, runID string) ([]store.Subcluster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.Subcluster, len(s.subclusters[runID]))
	for i, sc := range s.subclusters[runID] {
		sc.MemberIDs = append([]int64(nil), sc.MemberIDs...)
		sc.TopDomains = append([]string(nil), sc.TopDomains...)
		sc.TopURLs = append([]string(nil), sc.TopURLs...)
		out[i] = sc
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalDemand != out[j].TotalDemand {
			return out[i].TotalDemand > out[j].TotalDemand
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// ListParentClusters returns a run's parents ordered by demand
// descending then name.
func (s *Store) ListParentClusters(_ context.Context, runID string) ([]store.ParentCluster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.ParentCluster, len(s.parents[runID]))
	for i, p := range s.parents[runID] {
		p.TopDomains = append([]string(nil), p.TopDomains...)
		p.SubclusterIDs = append([]string(nil), p.SubclusterIDs...)
		out[i] = p
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalDemand != out[j].TotalDemand {
			return out[i].TotalDemand > out[j].TotalDemand
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// PruneRuns deletes completed runs for a project beyond the newest
// keep, together with their subclusters and parents.
func (s *Store) PruneRuns(_ context.Context, projectID string, keep int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if keep <= 0 {
		keep = 50
	}
	var completed []store.Run
	for _, run := range s.runs {
		if run.ProjectID == projectID && run.Status == store.RunCompleted {
			completed = append(completed, run)
		}
	}
	sort.Slice(completed, func(i, j int) bool {
		if !completed[i].CreatedAt.Equal(completed[j].CreatedAt) {
			return completed[i].CreatedAt.After(completed[j].CreatedAt)
		}
		return completed[i].ID > completed[j].ID
	})

	pruned := 0
	for _, run := range completed[min(keep, len(completed)):] {
		delete(s.runs, run.ID)
		delete(s.subclusters, run.ID)
		delete(s.parents, run.ID)
		pruned++
	}
	return pruned, nil
}
