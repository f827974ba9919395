package store

import (
	"context"
	"time"

	"github.com/keywordscope/kwcluster/pkg/kwcluster/serp"
)

// Run lifecycle states.
const (
	RunPending        = "pending"
	RunRunning        = "running"
	RunImportingGSC   = "importing_gsc"
	RunFetchingSerps  = "fetching_serps"
	RunClustering     = "clustering"
	RunMappingParents = "mapping_parents"
	RunCompleted      = "completed"
	RunFailed         = "failed"
)

// Store is the persistence boundary for keywords, clusters, and runs.
type Store interface {
	Close() error

	// Keywords
	UpsertKeyword(ctx context.Context, k Keyword) (int64, error)
	SetKeywordDemand(ctx context.Context, keywordID int64, demand float64, source string) error
	ListKeywords(ctx context.Context, projectID string, minDemand float64) ([]Keyword, error)
	CountKeywords(ctx context.Context, projectID string, minDemand float64) (int, error)

	// Metrics
	UpsertKeywordMetric(ctx context.Context, m KeywordMetric) error
	GetKeywordMetrics(ctx context.Context, keywordID int64) ([]KeywordMetric, error)

	// Preclusters
	ReplacePreclusters(ctx context.Context, projectID string, clusters []Precluster) error
	ListPreclusters(ctx context.Context, projectID string) ([]Precluster, error)

	// SERP snapshots
	AppendSnapshot(ctx context.Context, snap Snapshot) error
	LatestSnapshot(ctx context.Context, keywordID int64) (Snapshot, bool, error)

	// Runs
	CreateRun(ctx context.Context, run Run) error
	UpdateRun(ctx context.Context, run Run) error
	GetRun(ctx context.Context, id string) (Run, bool, error)
	ListRuns(ctx context.Context, projectID string, limit int) ([]Run, error)
	CompleteRun(ctx context.Context, run Run, subclusters []Subcluster, parents []ParentCluster) error
	ListSubclusters(ctx context.Context, runID string) ([]Subcluster, error)
	ListParentClusters(ctx context.Context, runID string) ([]ParentCluster, error)
	PruneRuns(ctx context.Context, projectID string, keep int) (int, error)
}

// Keyword is a normalized keyword within a project. The natural key is
// (ProjectID, Norm); ingesting the same normalized form twice updates
// the existing row.
type Keyword struct {
	ID            int64
	ProjectID     string
	Raw           string
	Norm          string
	Sig           string
	DemandMonthly float64
	DemandSource  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// KeywordMetric is one observation of a keyword from one source,
// last-writer-wins keyed by (KeywordID, SourceID).
type KeywordMetric struct {
	KeywordID   int64
	SourceID    string
	SourceType  string
	Impressions float64
	Clicks      float64
	Position    float64
	Volume      float64
	URL         string
	DateFrom    time.Time
	DateTo      time.Time
	UpdatedAt   time.Time
}

// Precluster is one lexical cluster. Precluster sets are replaced
// wholesale per project on each re-run.
type Precluster struct {
	ID          string
	ProjectID   string
	Label       string
	AlgoVersion string
	TotalDemand float64
	Cohesion    float64
	MemberIDs   []int64
	CreatedAt   time.Time
}

// Snapshot is one SERP fetch outcome, append-only.
type Snapshot struct {
	ID         string
	KeywordID  int64
	FetchedAt  time.Time
	Status     string
	HTTPStatus int
	URLs       []serp.RankedURL
	RawExcerpt string
	Err        string
}

// Subcluster is one SERP-overlap cluster belonging to a run.
type Subcluster struct {
	ID           string
	RunID        string
	Name         string
	MemberIDs    []int64
	TotalDemand  float64
	KeywordCount int
	TopDomains   []string
	TopURLs      []string
	OverlapScore float64
}

// ParentCluster is one named parent topic over a run's subclusters.
type ParentCluster struct {
	ID            string
	RunID         string
	Name          string
	Rationale     string
	TotalDemand   float64
	KeywordCount  int
	TopDomains    []string
	SubclusterIDs []string
}

// RunProgress holds the counters observers poll mid-flight.
type RunProgress struct {
	EligibleKeywords int
	ResolvedKeywords int
	UsedKeywords     int
	Waves            int
	Fetches          int
	CacheHits        int
	Successes        int
}

// Run is one clustering run with its configuration snapshot.
type Run struct {
	ID          string
	ProjectID   string
	Status      string
	ConfigJSON  string
	Progress    RunProgress
	Error       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt time.Time
}
