// Package kwcluster is the keyword clustering engine facade: keyword
// ingestion with demand aggregation, lexical preclustering, and
// SERP-based clustering runs over an injected store, SERP fetcher, and
// chat client.
package kwcluster

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/keywordscope/kwcluster/pkg/kwcluster/config"
	"github.com/keywordscope/kwcluster/pkg/kwcluster/demand"
	"github.com/keywordscope/kwcluster/pkg/kwcluster/normalize"
	"github.com/keywordscope/kwcluster/pkg/kwcluster/parentmap"
	"github.com/keywordscope/kwcluster/pkg/kwcluster/precluster"
	"github.com/keywordscope/kwcluster/pkg/kwcluster/serpcluster"
	"github.com/keywordscope/kwcluster/pkg/kwcluster/store"
)

// QueryRow is one query pulled from an external search-analytics
// source.
type QueryRow struct {
	Query       string
	Impressions float64
	Clicks      float64
	Position    float64
	DateFrom    time.Time
	DateTo      time.Time
}

// QuerySource provides recent query data for demand bootstrapping.
type QuerySource interface {
	RecentQueries(ctx context.Context, lookbackDays, limit int) ([]QueryRow, error)
}

// Engine is the keyword clustering engine facade.
type Engine struct {
	store      store.Store
	normalizer *normalize.Normalizer
	fetcher    serpcluster.Fetcher
	llm        parentmap.ChatClient
	analytics  QuerySource
	cfg        config.RunConfig

	entropyMu sync.Mutex
	entropy   *ulid.MonotonicEntropy
}

// Options configures an Engine. Store is required; Fetcher is required
// for clustering runs. LLM and Analytics are optional capabilities:
// without an LLM parent mapping uses its deterministic fallback, and
// without Analytics the GSC bootstrap phase is skipped.
type Options struct {
	Store      store.Store
	Normalizer *normalize.Normalizer
	Fetcher    serpcluster.Fetcher
	LLM        parentmap.ChatClient
	Analytics  QuerySource
	Config     config.RunConfig
}

// New creates an Engine with the given dependencies.
func New(opts Options) *Engine {
	if opts.Normalizer == nil {
		opts.Normalizer = normalize.New()
	}
	if opts.Config == (config.RunConfig{}) {
		opts.Config = config.DefaultRunConfig()
	}
	return &Engine{
		store:      opts.Store,
		normalizer: opts.Normalizer,
		fetcher:    opts.Fetcher,
		llm:        opts.LLM,
		analytics:  opts.Analytics,
		cfg:        opts.Config,
		entropy:    ulid.Monotonic(rand.Reader, 0),
	}
}

// Close shuts the engine down.
func (e *Engine) Close() error {
	return e.store.Close()
}

func (e *Engine) newID() string {
	e.entropyMu.Lock()
	defer e.entropyMu.Unlock()
	return ulid.MustNew(ulid.Now(), e.entropy).String()
}

// IngestRow is one keyword observation to ingest, after column mapping
// has resolved which source field carries which semantic value.
type IngestRow struct {
	Raw         string
	SourceID    string
	SourceType  string
	Impressions float64
	Clicks      float64
	Position    float64
	Volume      float64
	URL         string
	DateFrom    time.Time
	DateTo      time.Time
}

// IngestKeywords normalizes and stores keyword rows for a project and
// recomputes each touched keyword's monthly demand from all of its
// metrics. Rows that reduce to no signal after normalization are
// skipped. Returns how many rows were ingested.
func (e *Engine) IngestKeywords(ctx context.Context, projectID string, rows []IngestRow) (int, error) {
	touched := make(map[int64]struct{})
	ingested := 0

	for _, row := range rows {
		res := e.normalizer.Keyword(row.Raw)
		if !res.OK {
			continue
		}

		id, err := e.store.UpsertKeyword(ctx, store.Keyword{
			ProjectID: projectID,
			Raw:       row.Raw,
			Norm:      res.Norm,
			Sig:       res.Sig,
		})
		if err != nil {
			return ingested, err
		}

		err = e.store.UpsertKeywordMetric(ctx, store.KeywordMetric{
			KeywordID:   id,
			SourceID:    row.SourceID,
			SourceType:  row.SourceType,
			Impressions: row.Impressions,
			Clicks:      row.Clicks,
			Position:    row.Position,
			Volume:      row.Volume,
			URL:         row.URL,
			DateFrom:    row.DateFrom,
			DateTo:      row.DateTo,
		})
		if err != nil {
			return ingested, err
		}

		touched[id] = struct{}{}
		ingested++
	}

	for id := range touched {
		if err := e.recomputeDemand(ctx, id); err != nil {
			return ingested, err
		}
	}
	return ingested, nil
}

func (e *Engine) recomputeDemand(ctx context.Context, keywordID int64) error {
	metrics, err := e.store.GetKeywordMetrics(ctx, keywordID)
	if err != nil {
		return err
	}
	inputs := make([]demand.Metric, len(metrics))
	for i, m := range metrics {
		inputs[i] = demand.Metric{
			SourceType:  m.SourceType,
			Impressions: m.Impressions,
			Volume:      m.Volume,
			DateFrom:    m.DateFrom,
			DateTo:      m.DateTo,
		}
	}
	monthly, source := demand.Aggregate(inputs)
	return e.store.SetKeywordDemand(ctx, keywordID, monthly, source)
}

// Precluster clusters a project's eligible keywords lexically and
// replaces the stored precluster set. Returns the stored clusters in
// demand order.
func (e *Engine) Precluster(ctx context.Context, projectID string) ([]store.Precluster, error) {
	keywords, err := e.store.ListKeywords(ctx, projectID, e.cfg.MinDemand)
	if err != nil {
		return nil, err
	}

	inputs := make([]precluster.Keyword, len(keywords))
	for i, k := range keywords {
		inputs[i] = precluster.Keyword{ID: k.ID, Text: k.Norm, DemandMonthly: k.DemandMonthly}
	}

	cfg := precluster.DefaultConfig()
	cfg.EdgeThreshold = e.cfg.EdgeThreshold
	cfg.Seed = e.cfg.Seed
	clusters := precluster.New(e.normalizer, cfg).Cluster(inputs)

	rows := make([]store.Precluster, len(clusters))
	for i, c := range clusters {
		rows[i] = store.Precluster{
			ID:          e.newID(),
			ProjectID:   projectID,
			Label:       c.Label,
			AlgoVersion: precluster.AlgoVersion,
			TotalDemand: c.TotalDemand,
			Cohesion:    c.Cohesion,
			MemberIDs:   c.MemberIDs,
		}
	}
	if err := e.store.ReplacePreclusters(ctx, projectID, rows); err != nil {
		return nil, err
	}
	return e.store.ListPreclusters(ctx, projectID)
}

// Keywords returns a project's keywords at or above minDemand.
func (e *Engine) Keywords(ctx context.Context, projectID string, minDemand float64) ([]store.Keyword, error) {
	return e.store.ListKeywords(ctx, projectID, minDemand)
}

// Preclusters returns a project's stored preclusters.
func (e *Engine) Preclusters(ctx context.Context, projectID string) ([]store.Precluster, error) {
	return e.store.ListPreclusters(ctx, projectID)
}

// Run returns one run for status polling.
func (e *Engine) Run(ctx context.Context, runID string) (store.Run, bool, error) {
	return e.store.GetRun(ctx, runID)
}

// Runs returns a project's newest runs first.
func (e *Engine) Runs(ctx context.Context, projectID string, limit int) ([]store.Run, error) {
	return e.store.ListRuns(ctx, projectID, limit)
}

// Subclusters returns a run's subclusters.
func (e *Engine) Subclusters(ctx context.Context, runID string) ([]store.Subcluster, error) {
	return e.store.ListSubclusters(ctx, runID)
}

// ParentClusters returns a run's parent clusters.
func (e *Engine) ParentClusters(ctx context.Context, runID string) ([]store.ParentCluster, error) {
	return e.store.ListParentClusters(ctx, runID)
}
