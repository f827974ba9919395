package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/keywordscope/kwcluster/pkg/kwcluster"
	"github.com/keywordscope/kwcluster/pkg/kwcluster/store"
	"github.com/keywordscope/kwcluster/pkg/kwcluster/store/sqlite"
)

func main() {
	var (
		dbPath  = flag.String("db", "", "Database path (required)")
		project = flag.String("project", "", "Project id (required)")
		runID   = flag.String("run", "", "Run id (default: latest completed run)")
		outPath = flag.String("out", "", "Output CSV path (default: stdout)")
	)
	flag.Parse()

	if *dbPath == "" {
		log.Fatal("--db required")
	}
	if *project == "" {
		log.Fatal("--project required")
	}

	ctx := context.Background()
	st, err := sqlite.Open(ctx, *dbPath)
	if err != nil {
		log.Fatal("Failed to open database:", err)
	}

	engine := kwcluster.New(kwcluster.Options{Store: st})
	defer engine.Close()

	id := *runID
	if id == "" {
		runs, err := engine.Runs(ctx, *project, 0)
		if err != nil {
			log.Fatalf("list runs: %v", err)
		}
		for _, r := range runs {
			if r.Status == store.RunCompleted {
				id = r.ID
				break
			}
		}
		if id == "" {
			log.Fatalf("no completed run for project %s", *project)
		}
	}

	rows, err := engine.ExportRows(ctx, *project, id)
	if err != nil {
		log.Fatalf("export rows: %v", err)
	}

	out := os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			log.Fatalf("create output: %v", err)
		}
		defer f.Close()
		out = f
	}

	if err := kwcluster.WriteCSV(out, rows); err != nil {
		log.Fatalf("write csv: %v", err)
	}
	if *outPath != "" {
		log.Printf("Exported %d rows from run %s to %s", len(rows), id, *outPath)
	}
}
