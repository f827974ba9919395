package memstore

import (
	"context"
	"fmt"
	"testing"

	"github.com/keywordscope/kwcluster/pkg/kwcluster/serp"
	"github.com/keywordscope/kwcluster/pkg/kwcluster/store"
)

func TestUpsertKeywordDeduplicatesByNorm(t *testing.T) {
	s := New()
	ctx := context.Background()

	id1, err := s.UpsertKeyword(ctx, store.Keyword{ProjectID: "p1", Raw: "Laufschuhe!", Norm: "laufschuhe"})
	if err != nil {
		t.Fatalf("UpsertKeyword: %v", err)
	}
	id2, err := s.UpsertKeyword(ctx, store.Keyword{ProjectID: "p1", Raw: "laufschuhe", Norm: "laufschuhe"})
	if err != nil {
		t.Fatalf("UpsertKeyword: %v", err)
	}
	if id1 != id2 {
		t.Errorf("ids differ: %d vs %d", id1, id2)
	}

	other, err := s.UpsertKeyword(ctx, store.Keyword{ProjectID: "p2", Norm: "laufschuhe"})
	if err != nil {
		t.Fatalf("UpsertKeyword: %v", err)
	}
	if other == id1 {
		t.Error("projects share keyword ids")
	}

	if _, err := s.UpsertKeyword(ctx, store.Keyword{ProjectID: "p1"}); err == nil {
		t.Error("empty norm accepted")
	}
}

func TestListKeywordsDemandFilterAndOrder(t *testing.T) {
	s := New()
	ctx := context.Background()

	for i, text := range []string{"a", "b", "c"} {
		id, err := s.UpsertKeyword(ctx, store.Keyword{ProjectID: "p1", Raw: text, Norm: text})
		if err != nil {
			t.Fatalf("UpsertKeyword: %v", err)
		}
		if err := s.SetKeywordDemand(ctx, id, float64(100*(i+1)), "gsc"); err != nil {
			t.Fatalf("SetKeywordDemand: %v", err)
		}
	}

	kws, err := s.ListKeywords(ctx, "p1", 150)
	if err != nil {
		t.Fatalf("ListKeywords: %v", err)
	}
	if len(kws) != 2 || kws[0].Norm != "c" || kws[1].Norm != "b" {
		t.Errorf("keywords = %+v", kws)
	}

	n, err := s.CountKeywords(ctx, "p1", 150)
	if err != nil || n != 2 {
		t.Errorf("count = %d, %v", n, err)
	}
}

func TestUpsertKeywordMetricLastWriterWins(t *testing.T) {
	s := New()
	ctx := context.Background()

	m := store.KeywordMetric{KeywordID: 1, SourceID: "gsc:site", SourceType: "gsc", Impressions: 100}
	if err := s.UpsertKeywordMetric(ctx, m); err != nil {
		t.Fatalf("UpsertKeywordMetric: %v", err)
	}
	m.Impressions = 900
	if err := s.UpsertKeywordMetric(ctx, m); err != nil {
		t.Fatalf("UpsertKeywordMetric: %v", err)
	}

	metrics, err := s.GetKeywordMetrics(ctx, 1)
	if err != nil {
		t.Fatalf("GetKeywordMetrics: %v", err)
	}
	if len(metrics) != 1 || metrics[0].Impressions != 900 {
		t.Errorf("metrics = %+v", metrics)
	}
}

func TestReplacePreclusters(t *testing.T) {
	s := New()
	ctx := context.Background()

	first := []store.Precluster{{Label: "alt", TotalDemand: 10, MemberIDs: []int64{1}}}
	if err := s.ReplacePreclusters(ctx, "p1", first); err != nil {
		t.Fatalf("ReplacePreclusters: %v", err)
	}
	second := []store.Precluster{
		{Label: "neu", TotalDemand: 50, MemberIDs: []int64{1, 2}},
		{Label: "klein", TotalDemand: 5, MemberIDs: []int64{3}},
	}
	if err := s.ReplacePreclusters(ctx, "p1", second); err != nil {
		t.Fatalf("ReplacePreclusters: %v", err)
	}

	got, err := s.ListPreclusters(ctx, "p1")
	if err != nil {
		t.Fatalf("ListPreclusters: %v", err)
	}
	if len(got) != 2 || got[0].Label != "neu" || got[1].Label != "klein" {
		t.Errorf("preclusters = %+v", got)
	}
	if got[0].ID == "" {
		t.Error("missing generated id")
	}
}

func TestSnapshotAppendAndLatest(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, ok, err := s.LatestSnapshot(ctx, 7); ok || err != nil {
		t.Fatalf("LatestSnapshot on empty store = %v, %v", ok, err)
	}

	for i := 0; i < 3; i++ {
		err := s.AppendSnapshot(ctx, store.Snapshot{
			KeywordID: 7,
			Status:    serp.StatusOK,
			URLs:      []serp.RankedURL{{URL: fmt.Sprintf("https://a.de/%d", i), Position: 1}},
		})
		if err != nil {
			t.Fatalf("AppendSnapshot: %v", err)
		}
	}

	snap, ok, err := s.LatestSnapshot(ctx, 7)
	if err != nil || !ok {
		t.Fatalf("LatestSnapshot: %v, %v", ok, err)
	}
	if snap.URLs[0].URL != "https://a.de/2" {
		t.Errorf("latest = %+v", snap)
	}
	if s.SnapshotCount(7) != 3 {
		t.Errorf("snapshots = %d", s.SnapshotCount(7))
	}
}

func TestRunLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()

	run := store.Run{ID: "r1", ProjectID: "p1", Status: store.RunPending}
	if err := s.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if err := s.CreateRun(ctx, run); err == nil {
		t.Error("duplicate run accepted")
	}

	run.Status = store.RunFetchingSerps
	run.Progress.EligibleKeywords = 5
	if err := s.UpdateRun(ctx, run); err != nil {
		t.Fatalf("UpdateRun: %v", err)
	}

	got, ok, err := s.GetRun(ctx, "r1")
	if err != nil || !ok {
		t.Fatalf("GetRun: %v, %v", ok, err)
	}
	if got.Status != store.RunFetchingSerps || got.Progress.EligibleKeywords != 5 {
		t.Errorf("run = %+v", got)
	}

	if err := s.UpdateRun(ctx, store.Run{ID: "missing"}); err == nil {
		t.Error("update of missing run accepted")
	}
}

func TestCompleteRunWritesEverything(t *testing.T) {
	s := New()
	ctx := context.Background()

	run := store.Run{ID: "r1", ProjectID: "p1", Status: store.RunMappingParents}
	if err := s.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	run.Status = store.RunCompleted
	subs := []store.Subcluster{{ID: "sc-1", Name: "laufschuhe", MemberIDs: []int64{1, 2}, TotalDemand: 200}}
	parents := []store.ParentCluster{{ID: "pc-1", Name: "Schuhe", SubclusterIDs: []string{"sc-1"}, TotalDemand: 200}}
	if err := s.CompleteRun(ctx, run, subs, parents); err != nil {
		t.Fatalf("CompleteRun: %v", err)
	}

	gotSubs, err := s.ListSubclusters(ctx, "r1")
	if err != nil || len(gotSubs) != 1 || gotSubs[0].RunID != "r1" {
		t.Errorf("subclusters = %+v, %v", gotSubs, err)
	}
	gotParents, err := s.ListParentClusters(ctx, "r1")
	if err != nil || len(gotParents) != 1 || gotParents[0].Name != "Schuhe" {
		t.Errorf("parents = %+v, %v", gotParents, err)
	}
	gotRun, _, _ := s.GetRun(ctx, "r1")
	if gotRun.Status != store.RunCompleted {
		t.Errorf("status = %q", gotRun.Status)
	}
}

func TestPruneRunsKeepsNewestCompleted(t *testing.T) {
	s := New()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		run := store.Run{ID: fmt.Sprintf("r%d", i), ProjectID: "p1", Status: store.RunPending}
		if err := s.CreateRun(ctx, run); err != nil {
			t.Fatalf("CreateRun: %v", err)
		}
		run.Status = store.RunCompleted
		if err := s.CompleteRun(ctx, run, []store.Subcluster{{ID: fmt.Sprintf("sc%d", i)}}, nil); err != nil {
			t.Fatalf("CompleteRun: %v", err)
		}
	}
	failed := store.Run{ID: "rf", ProjectID: "p1", Status: store.RunFailed}
	if err := s.CreateRun(ctx, failed); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	pruned, err := s.PruneRuns(ctx, "p1", 2)
	if err != nil {
		t.Fatalf("PruneRuns: %v", err)
	}
	if pruned != 3 {
		t.Errorf("pruned = %d, want 3", pruned)
	}

	runs, err := s.ListRuns(ctx, "p1", 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	// Failed runs are never pruned.
	if len(runs) != 3 {
		t.Errorf("remaining runs = %d, want 3", len(runs))
	}
	for _, run := range runs {
		if run.Status == store.RunCompleted {
			if subs, _ := s.ListSubclusters(ctx, run.ID); len(subs) != 1 {
				t.Errorf("run %s lost its subclusters", run.ID)
			}
		}
	}
}
