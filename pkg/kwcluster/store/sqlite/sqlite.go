// Package sqlite persists kwcluster data in a single SQLite database.
// List-valued fields are stored as JSON text columns; ids for
// string-keyed rows are ULIDs minted here when the caller leaves them
// empty.
package sqlite

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/keywordscope/kwcluster/pkg/kwcluster/store"
)

type sqliteStore struct {
	db *sql.DB

	entropyMu sync.Mutex
	entropy   *ulid.MonotonicEntropy
}

// Open opens a SQLite database with WAL mode enabled and the schema
// initialized.
func Open(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{
		db:      db,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}, nil
}

// Close closes the database connection.
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func (s *sqliteStore) newID() string {
	s.entropyMu.Lock()
	defer s.entropyMu.Unlock()
	return ulid.MustNew(ulid.Now(), s.entropy).String()
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS keywords (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id TEXT NOT NULL,
	raw TEXT NOT NULL,
	norm TEXT NOT NULL,
	sig TEXT NOT NULL DEFAULT '',
	demand_monthly REAL NOT NULL DEFAULT 0,
	demand_source TEXT NOT NULL DEFAULT 'none',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	UNIQUE(project_id, norm)
);

CREATE TABLE IF NOT EXISTS keyword_metrics (
	keyword_id INTEGER NOT NULL,
	source_id TEXT NOT NULL,
	source_type TEXT NOT NULL,
	impressions REAL NOT NULL DEFAULT 0,
	clicks REAL NOT NULL DEFAULT 0,
	position REAL NOT NULL DEFAULT 0,
	volume REAL NOT NULL DEFAULT 0,
	url TEXT NOT NULL DEFAULT '',
	date_from TEXT NOT NULL DEFAULT '',
	date_to TEXT NOT NULL DEFAULT '',
	updated_at TEXT NOT NULL,
	PRIMARY KEY(keyword_id, source_id),
	FOREIGN KEY(keyword_id) REFERENCES keywords(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS preclusters (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	label TEXT NOT NULL,
	algo_version TEXT NOT NULL,
	total_demand REAL NOT NULL,
	cohesion REAL NOT NULL,
	member_ids TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_preclusters_project ON preclusters(project_id);

CREATE TABLE IF NOT EXISTS serp_snapshots (
	id TEXT PRIMARY KEY,
	keyword_id INTEGER NOT NULL,
	fetched_at TEXT NOT NULL,
	status TEXT NOT NULL,
	http_status INTEGER NOT NULL DEFAULT 0,
	urls TEXT NOT NULL,
	raw_excerpt TEXT NOT NULL DEFAULT '',
	err TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_snapshots_keyword ON serp_snapshots(keyword_id, fetched_at);

CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	status TEXT NOT NULL,
	config_json TEXT NOT NULL DEFAULT '',
	eligible_keywords INTEGER NOT NULL DEFAULT 0,
	resolved_keywords INTEGER NOT NULL DEFAULT 0,
	used_keywords INTEGER NOT NULL DEFAULT 0,
	waves INTEGER NOT NULL DEFAULT 0,
	fetches INTEGER NOT NULL DEFAULT 0,
	cache_hits INTEGER NOT NULL DEFAULT 0,
	successes INTEGER NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	completed_at TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_runs_project ON runs(project_id, created_at);

CREATE TABLE IF NOT EXISTS subclusters (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	name TEXT NOT NULL,
	member_ids TEXT NOT NULL,
	total_demand REAL NOT NULL,
	keyword_count INTEGER NOT NULL,
	top_domains TEXT NOT NULL,
	top_urls TEXT NOT NULL,
	overlap_score REAL NOT NULL,
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_subclusters_run ON subclusters(run_id);

CREATE TABLE IF NOT EXISTS parent_clusters (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	name TEXT NOT NULL,
	rationale TEXT NOT NULL DEFAULT '',
	total_demand REAL NOT NULL,
	keyword_count INTEGER NOT NULL,
	top_domains TEXT NOT NULL,
	subcluster_ids TEXT NOT NULL,
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_parents_run ON parent_clusters(run_id);
`

	_, err := db.ExecContext(ctx, schema)
	return err
}

// UpsertKeyword inserts or updates a keyword by (project_id, norm) and
// returns its id. Raw text follows the latest ingest; demand fields are
// managed separately through SetKeywordDemand.
func (s *sqliteStore) UpsertKeyword(ctx context.Context, k store.Keyword) (int64, error) {
	if k.ProjectID == "" || k.Norm == "" {
		return 0, fmt.Errorf("sqlite: keyword requires project id and norm")
	}
	now := time.Now().UTC().Format(time.RFC3339)

	const stmt = `
INSERT INTO keywords (project_id, raw, norm, sig, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(project_id, norm) DO UPDATE SET
	raw=excluded.raw,
	sig=excluded.sig,
	updated_at=excluded.updated_at
RETURNING id;
`

	var id int64
	err := s.db.QueryRowContext(ctx, stmt, k.ProjectID, k.Raw, k.Norm, k.Sig, now, now).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// SetKeywordDemand updates the aggregated demand fields of a keyword.
func (s *sqliteStore) SetKeywordDemand(ctx context.Context, keywordID int64, demand float64, source string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx,
		`UPDATE keywords SET demand_monthly=?, demand_source=?, updated_at=? WHERE id=?`,
		demand, source, now, keywordID)
	return err
}

// ListKeywords returns a project's keywords at or above minDemand,
// ordered by demand descending then id for stable output.
func (s *sqliteStore) ListKeywords(ctx context.Context, projectID string, minDemand float64) ([]store.Keyword, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, project_id, raw, norm, sig, demand_monthly, demand_source, created_at, updated_at
FROM keywords
WHERE project_id=? AND demand_monthly>=?
ORDER BY demand_monthly DESC, id ASC`, projectID, minDemand)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Keyword
	for rows.Next() {
		var k store.Keyword
		var created, updated string
		if err := rows.Scan(&k.ID, &k.ProjectID, &k.Raw, &k.Norm, &k.Sig,
			&k.DemandMonthly, &k.DemandSource, &created, &updated); err != nil {
			return nil, err
		}
		k.CreatedAt = parseTime(created)
		k.UpdatedAt = parseTime(updated)
		out = append(out, k)
	}
	return out, rows.Err()
}

// CountKeywords counts a project's keywords at or above minDemand.
func (s *sqliteStore) CountKeywords(ctx context.Context, projectID string, minDemand float64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM keywords WHERE project_id=? AND demand_monthly>=?`,
		projectID, minDemand).Scan(&n)
	return n, err
}

// UpsertKeywordMetric writes a metric row, last-writer-wins per
// (keyword_id, source_id).
func (s *sqliteStore) UpsertKeywordMetric(ctx context.Context, m store.KeywordMetric) error {
	now := time.Now().UTC().Format(time.RFC3339)
	const stmt = `
INSERT INTO keyword_metrics
	(keyword_id, source_id, source_type, impressions, clicks, position, volume, url, date_from, date_to, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(keyword_id, source_id) DO UPDATE SET
	source_type=excluded.source_type,
	impressions=excluded.impressions,
	clicks=excluded.clicks,
	position=excluded.position,
	volume=excluded.volume,
	url=excluded.url,
	date_from=excluded.date_from,
	date_to=excluded.date_to,
	updated_at=excluded.updated_at;
`
	_, err := s.db.ExecContext(ctx, stmt,
		m.KeywordID, m.SourceID, m.SourceType,
		m.Impressions, m.Clicks, m.Position, m.Volume, m.URL,
		formatTime(m.DateFrom), formatTime(m.DateTo), now)
	return err
}

// GetKeywordMetrics returns all metric rows for a keyword.
func (s *sqliteStore) GetKeywordMetrics(ctx context.Context, keywordID int64) ([]store.KeywordMetric, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT keyword_id, source_id, source_type, impressions, clicks, position, volume, url, date_from, date_to, updated_at
FROM keyword_metrics
WHERE keyword_id=?
ORDER BY source_id ASC`, keywordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.KeywordMetric
	for rows.Next() {
		var m store.KeywordMetric
		var from, to, updated string
		if err := rows.Scan(&m.KeywordID, &m.SourceID, &m.SourceType,
			&m.Impressions, &m.Clicks, &m.Position, &m.Volume, &m.URL,
			&from, &to, &updated); err != nil {
			return nil, err
		}
		m.DateFrom = parseTime(from)
		m.DateTo = parseTime(to)
		m.UpdatedAt = parseTime(updated)
		out = append(out, m)
	}
	return out, rows.Err()
}

// ReplacePreclusters swaps a project's precluster set in one
// transaction so readers never observe a partial set.
func (s *sqliteStore) ReplacePreclusters(ctx context.Context, projectID string, clusters []store.Precluster) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM preclusters WHERE project_id=?`, projectID); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO preclusters (id, project_id, label, algo_version, total_demand, cohesion, member_ids, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, c := range clusters {
		id := c.ID
		if id == "" {
			id = s.newID()
		}
		members, err := json.Marshal(c.MemberIDs)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, id, projectID, c.Label, c.AlgoVersion,
			c.TotalDemand, c.Cohesion, string(members), now); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListPreclusters returns a project's preclusters ordered by demand
// descending then label.
func (s *sqliteStore) ListPreclusters(ctx context.Context, projectID string) ([]store.Precluster, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, project_id, label, algo_version, total_demand, cohesion, member_ids, created_at
FROM preclusters
WHERE project_id=?
ORDER BY total_demand DESC, label ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Precluster
	for rows.Next() {
		var c store.Precluster
		var members, created string
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.Label, &c.AlgoVersion,
			&c.TotalDemand, &c.Cohesion, &members, &created); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(members), &c.MemberIDs); err != nil {
			return nil, fmt.Errorf("sqlite: precluster %s member_ids: %w", c.ID, err)
		}
		c.CreatedAt = parseTime(created)
		out = append(out, c)
	}
	return out, rows.Err()
}

// AppendSnapshot inserts one fetch outcome.
func (s *sqliteStore) AppendSnapshot(ctx context.Context, snap store.Snapshot) error {
	id := snap.ID
	if id == "" {
		id = s.newID()
	}
	urls, err := json.Marshal(snap.URLs)
	if err != nil {
		return err
	}
	fetchedAt := snap.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO serp_snapshots (id, keyword_id, fetched_at, status, http_status, urls, raw_excerpt, err)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, snap.KeywordID, fetchedAt.UTC().Format(time.RFC3339Nano),
		snap.Status, snap.HTTPStatus, string(urls), snap.RawExcerpt, snap.Err)
	return err
}

// LatestSnapshot returns the most recent snapshot for a keyword. The id
// column breaks timestamp ties because ULIDs sort in mint order.
func (s *sqliteStore) LatestSnapshot(ctx context.Context, keywordID int64) (store.Snapshot, bool, error) {
	var snap store.Snapshot
	var fetched, urls string
	err := s.db.QueryRowContext(ctx, `
SELECT id, keyword_id, fetched_at, status, http_status, urls, raw_excerpt, err
FROM serp_snapshots
WHERE keyword_id=?
ORDER BY fetched_at DESC, id DESC
LIMIT 1`, keywordID).Scan(&snap.ID, &snap.KeywordID, &fetched,
		&snap.Status, &snap.HTTPStatus, &urls, &snap.RawExcerpt, &snap.Err)
	if err == sql.ErrNoRows {
		return store.Snapshot{}, false, nil
	}
	if err != nil {
		return store.Snapshot{}, false, err
	}
	if err := json.Unmarshal([]byte(urls), &snap.URLs); err != nil {
		return store.Snapshot{}, false, fmt.Errorf("sqlite: snapshot %s urls: %w", snap.ID, err)
	}
	snap.FetchedAt = parseTime(fetched)
	return snap, true, nil
}

// CreateRun inserts a new run row.
func (s *sqliteStore) CreateRun(ctx context.Context, run store.Run) error {
	if run.ID == "" {
		return fmt.Errorf("sqlite: run requires an id")
	}
	now := time.Now().UTC()
	created := run.CreatedAt
	if created.IsZero() {
		created = now
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO runs
	(id, project_id, status, config_json,
	 eligible_keywords, resolved_keywords, used_keywords, waves, fetches, cache_hits, successes,
	 error, created_at, updated_at, completed_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.ProjectID, run.Status, run.ConfigJSON,
		run.Progress.EligibleKeywords, run.Progress.ResolvedKeywords, run.Progress.UsedKeywords,
		run.Progress.Waves, run.Progress.Fetches, run.Progress.CacheHits, run.Progress.Successes,
		run.Error, created.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
		formatTime(run.CompletedAt))
	return err
}

// UpdateRun overwrites a run's mutable fields.
func (s *sqliteStore) UpdateRun(ctx context.Context, run store.Run) error {
	return s.updateRun(ctx, s.db, run)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *sqliteStore) updateRun(ctx context.Context, db execer, run store.Run) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := db.ExecContext(ctx, `
UPDATE runs SET
	status=?,
	eligible_keywords=?, resolved_keywords=?, used_keywords=?,
	waves=?, fetches=?, cache_hits=?, successes=?,
	error=?, updated_at=?, completed_at=?
WHERE id=?`,
		run.Status,
		run.Progress.EligibleKeywords, run.Progress.ResolvedKeywords, run.Progress.UsedKeywords,
		run.Progress.Waves, run.Progress.Fetches, run.Progress.CacheHits, run.Progress.Successes,
		run.Error, now, formatTime(run.CompletedAt), run.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("sqlite: run %s not found", run.ID)
	}
	return nil
}

// GetRun returns a run by id.
func (s *sqliteStore) GetRun(ctx context.Context, id string) (store.Run, bool, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, `
SELECT id, project_id, status, config_json,
	eligible_keywords, resolved_keywords, used_keywords, waves, fetches, cache_hits, successes,
	error, created_at, updated_at, completed_at
FROM runs WHERE id=?`, id))
	if err == sql.ErrNoRows {
		return store.Run{}, false, nil
	}
	if err != nil {
		return store.Run{}, false, err
	}
	return run, true, nil
}

// ListRuns returns a project's newest runs first, capped at limit.
func (s *sqliteStore) ListRuns(ctx context.Context, projectID string, limit int) ([]store.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, project_id, status, config_json,
	eligible_keywords, resolved_keywords, used_keywords, waves, fetches, cache_hits, successes,
	error, created_at, updated_at, completed_at
FROM runs
WHERE project_id=?
ORDER BY created_at DESC, id DESC
LIMIT ?`, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (store.Run, error) {
	var run store.Run
	var created, updated, completed string
	err := row.Scan(&run.ID, &run.ProjectID, &run.Status, &run.ConfigJSON,
		&run.Progress.EligibleKeywords, &run.Progress.ResolvedKeywords, &run.Progress.UsedKeywords,
		&run.Progress.Waves, &run.Progress.Fetches, &run.Progress.CacheHits, &run.Progress.Successes,
		&run.Error, &created, &updated, &completed)
	if err != nil {
		return store.Run{}, err
	}
	run.CreatedAt = parseTime(created)
	run.UpdatedAt = parseTime(updated)
	run.CompletedAt = parseTime(completed)
	return run, nil
}

// CompleteRun writes subclusters, parents, and the completed run state
// in one transaction so a crash never leaves a completed run with
// partial cluster data.
func (s *sqliteStore) CompleteRun(ctx context.Context, run store.Run, subclusters []store.Subcluster, parents []store.ParentCluster) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM subclusters WHERE run_id=?`, run.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM parent_clusters WHERE run_id=?`, run.ID); err != nil {
		return err
	}

	for _, sc := range subclusters {
		id := sc.ID
		if id == "" {
			id = s.newID()
		}
		members, err := json.Marshal(sc.MemberIDs)
		if err != nil {
			return err
		}
		domains, err := json.Marshal(sc.TopDomains)
		if err != nil {
			return err
		}
		urls, err := json.Marshal(sc.TopURLs)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO subclusters (id, run_id, name, member_ids, total_demand, keyword_count, top_domains, top_urls, overlap_score)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, run.ID, sc.Name, string(members), sc.TotalDemand, sc.KeywordCount,
			string(domains), string(urls), sc.OverlapScore); err != nil {
			return err
		}
	}

	for _, p := range parents {
		id := p.ID
		if id == "" {
			id = s.newID()
		}
		domains, err := json.Marshal(p.TopDomains)
		if err != nil {
			return err
		}
		subIDs, err := json.Marshal(p.SubclusterIDs)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO parent_clusters (id, run_id, name, rationale, total_demand, keyword_count, top_domains, subcluster_ids)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id, run.ID, p.Name, p.Rationale, p.TotalDemand, p.KeywordCount,
			string(domains), string(subIDs)); err != nil {
			return err
		}
	}

	if err := s.updateRun(ctx, tx, run); err != nil {
		return err
	}

	return tx.Commit()
}

// ListSubclusters returns a run's subclusters ordered by demand
// descending then name.
func (s *sqliteStore) ListSubclusters(ctx context.Context, runID string) ([]store.Subcluster, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, run_id, name, member_ids, total_demand, keyword_count, top_domains, top_urls, overlap_score
FROM subclusters
WHERE run_id=?
ORDER BY total_demand DESC, name ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Subcluster
	for rows.Next() {
		var sc store.Subcluster
		var members, domains, urls string
		if err := rows.Scan(&sc.ID, &sc.RunID, &sc.Name, &members, &sc.TotalDemand,
			&sc.KeywordCount, &domains, &urls, &sc.OverlapScore); err != nil {
			return nil, err
		}
		if err := unmarshalJSON(members, &sc.MemberIDs); err != nil {
			return nil, fmt.Errorf("sqlite: subcluster %s member_ids: %w", sc.ID, err)
		}
		if err := unmarshalJSON(domains, &sc.TopDomains); err != nil {
			return nil, fmt.Errorf("sqlite: subcluster %s top_domains: %w", sc.ID, err)
		}
		if err := unmarshalJSON(urls, &sc.TopURLs); err != nil {
			return nil, fmt.Errorf("sqlite: subcluster %s top_urls: %w", sc.ID, err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// ListParentClusters returns a run's parents ordered by demand
// descending then name.
func (s *sqliteStore) ListParentClusters(ctx context.Context, runID string) ([]store.ParentCluster, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, run_id, name, rationale, total_demand, keyword_count, top_domains, subcluster_ids
FROM parent_clusters
WHERE run_id=?
ORDER BY total_demand DESC, name ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.ParentCluster
	for rows.Next() {
		var p store.ParentCluster
		var domains, subIDs string
		if err := rows.Scan(&p.ID, &p.RunID, &p.Name, &p.Rationale,
			&p.TotalDemand, &p.KeywordCount, &domains, &subIDs); err != nil {
			return nil, err
		}
		if err := unmarshalJSON(domains, &p.TopDomains); err != nil {
			return nil, fmt.Errorf("sqlite: parent %s top_domains: %w", p.ID, err)
		}
		if err := unmarshalJSON(subIDs, &p.SubclusterIDs); err != nil {
			return nil, fmt.Errorf("sqlite: parent %s subcluster_ids: %w", p.ID, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// PruneRuns deletes completed runs for a project beyond the newest
// keep, oldest first, and returns how many were removed. Cascades
// remove the runs' subclusters and parents.
func (s *sqliteStore) PruneRuns(ctx context.Context, projectID string, keep int) (int, error) {
	if keep <= 0 {
		keep = 50
	}
	res, err := s.db.ExecContext(ctx, `
DELETE FROM runs
WHERE project_id=? AND status=? AND id NOT IN (
	SELECT id FROM runs
	WHERE project_id=? AND status=?
	ORDER BY created_at DESC, id DESC
	LIMIT ?
)`, projectID, store.RunCompleted, projectID, store.RunCompleted, keep)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func unmarshalJSON[T any](raw string, dest *T) error {
	if raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), dest)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
