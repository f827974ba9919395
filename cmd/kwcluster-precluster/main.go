package main

import (
	"context"
	"flag"
	"log"

	"github.com/keywordscope/kwcluster/pkg/kwcluster"
	"github.com/keywordscope/kwcluster/pkg/kwcluster/config"
	"github.com/keywordscope/kwcluster/pkg/kwcluster/normalize"
	"github.com/keywordscope/kwcluster/pkg/kwcluster/store/sqlite"
)

func main() {
	var (
		dbPath       = flag.String("db", "", "Database path (required)")
		project      = flag.String("project", "", "Project id (required)")
		dataPath     = flag.String("data", "", "Keyword JSONL file to ingest first (optional)")
		sourceID     = flag.String("source", "upload", "Source id for ingested rows")
		configPath   = flag.String("config", "", "Run config YAML (optional)")
		stoplistPath = flag.String("stoplist", "", "Stopword override YAML (optional)")
	)
	flag.Parse()

	if *dbPath == "" {
		log.Fatal("--db required")
	}
	if *project == "" {
		log.Fatal("--project required")
	}

	runCfg := config.DefaultRunConfig()
	if *configPath != "" {
		var err error
		runCfg, err = config.LoadRunConfig(*configPath)
		if err != nil {
			log.Fatalf("load run config: %v", err)
		}
	}

	normalizer := normalize.New()
	if *stoplistPath != "" {
		sl, err := config.LoadStoplist(*stoplistPath)
		if err != nil {
			log.Fatalf("load stoplist: %v", err)
		}
		normalizer = normalize.NewWithStopwords(sl.Terms)
	}

	ctx := context.Background()
	st, err := sqlite.Open(ctx, *dbPath)
	if err != nil {
		log.Fatal("Failed to open database:", err)
	}

	engine := kwcluster.New(kwcluster.Options{
		Store:      st,
		Normalizer: normalizer,
		Config:     runCfg,
	})
	defer engine.Close()

	if *dataPath != "" {
		rows, err := kwcluster.LoadIngestRowsJSONL(*dataPath, *sourceID)
		if err != nil {
			log.Fatalf("load keywords: %v", err)
		}
		n, err := engine.IngestKeywords(ctx, *project, rows)
		if err != nil {
			log.Fatalf("ingest keywords: %v", err)
		}
		log.Printf("Ingested %d keyword rows from %s", n, *dataPath)
	}

	clusters, err := engine.Precluster(ctx, *project)
	if err != nil {
		log.Fatalf("precluster: %v", err)
	}

	log.Printf("%d preclusters for project %s", len(clusters), *project)
	for _, c := range clusters {
		log.Printf("  %s: %d keywords, demand %.0f, cohesion %.2f",
			c.Label, len(c.MemberIDs), c.TotalDemand, c.Cohesion)
	}
}
