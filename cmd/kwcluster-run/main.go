package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/keywordscope/kwcluster/internal/gsc"
	"github.com/keywordscope/kwcluster/internal/llm"
	"github.com/keywordscope/kwcluster/pkg/kwcluster"
	"github.com/keywordscope/kwcluster/pkg/kwcluster/config"
	"github.com/keywordscope/kwcluster/pkg/kwcluster/serp"
	"github.com/keywordscope/kwcluster/pkg/kwcluster/store/sqlite"
)

func main() {
	var (
		dbPath     = flag.String("db", "", "Database path (required)")
		project    = flag.String("project", "", "Project id (required)")
		configPath = flag.String("config", "", "Run config YAML (optional)")
		envPath    = flag.String("env", "", "Env file with credentials (optional, default .env if present)")
	)
	flag.Parse()

	if *dbPath == "" {
		log.Fatal("--db required")
	}
	if *project == "" {
		log.Fatal("--project required")
	}

	if *envPath != "" {
		if err := godotenv.Load(*envPath); err != nil {
			log.Fatalf("load env file: %v", err)
		}
	} else {
		// Best effort: a local .env is a convenience, not a requirement.
		_ = godotenv.Load()
	}

	runCfg := config.DefaultRunConfig()
	if *configPath != "" {
		var err error
		runCfg, err = config.LoadRunConfig(*configPath)
		if err != nil {
			log.Fatalf("load run config: %v", err)
		}
	}

	if os.Getenv("SERP_ENDPOINT") == "" {
		log.Fatal("SERP_ENDPOINT not set")
	}
	fetcher := serp.NewClient(serp.Config{
		Endpoint: os.Getenv("SERP_ENDPOINT"),
		Username: os.Getenv("SERP_USERNAME"),
		Password: os.Getenv("SERP_PASSWORD"),
	})

	opts := kwcluster.Options{
		Fetcher: fetcher,
		Config:  runCfg,
	}
	if os.Getenv("LLM_BASE_URL") != "" {
		opts.LLM = &llm.Client{
			BaseURL: os.Getenv("LLM_BASE_URL"),
			APIKey:  os.Getenv("LLM_API_KEY"),
			Model:   os.Getenv("LLM_MODEL"),
		}
	}
	if os.Getenv("GSC_SITE_URL") != "" {
		opts.Analytics = gscSource{&gsc.Client{
			SiteURL: os.Getenv("GSC_SITE_URL"),
			Token:   os.Getenv("GSC_TOKEN"),
		}}
	}

	ctx := context.Background()
	st, err := sqlite.Open(ctx, *dbPath)
	if err != nil {
		log.Fatal("Failed to open database:", err)
	}
	opts.Store = st

	engine := kwcluster.New(opts)
	defer engine.Close()

	log.Printf("Starting clustering run for project %s", *project)
	run, err := engine.RunSerpClustering(ctx, *project)
	if err != nil {
		log.Fatalf("Run %s failed: %v", run.ID, err)
	}

	log.Printf("Run %s completed: %d/%d keywords resolved in %d waves (%d fetches, %d cache hits)",
		run.ID, run.Progress.ResolvedKeywords, run.Progress.EligibleKeywords,
		run.Progress.Waves, run.Progress.Fetches, run.Progress.CacheHits)

	subs, err := engine.Subclusters(ctx, run.ID)
	if err != nil {
		log.Fatalf("list subclusters: %v", err)
	}
	parents, err := engine.ParentClusters(ctx, run.ID)
	if err != nil {
		log.Fatalf("list parents: %v", err)
	}
	log.Printf("%d subclusters, %d parent topics", len(subs), len(parents))
	for _, p := range parents {
		log.Printf("  %s: %d keywords, demand %.0f", p.Name, p.KeywordCount, p.TotalDemand)
	}
}

// gscSource adapts the Search Console client to the engine's
// analytics interface.
type gscSource struct {
	c *gsc.Client
}

func (s gscSource) RecentQueries(ctx context.Context, lookbackDays, limit int) ([]kwcluster.QueryRow, error) {
	rows, err := s.c.RecentQueries(ctx, lookbackDays, limit)
	if err != nil {
		return nil, err
	}
	out := make([]kwcluster.QueryRow, len(rows))
	for i, r := range rows {
		out[i] = kwcluster.QueryRow{
			Query:       r.Query,
			Impressions: r.Impressions,
			Clicks:      r.Clicks,
			Position:    r.Position,
			DateFrom:    r.DateFrom,
			DateTo:      r.DateTo,
		}
	}
	return out, nil
}
