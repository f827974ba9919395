package kwcluster

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"
)

type uploadRow struct {
	Keyword     string  `json:"kw"`
	Source      string  `json:"source"`
	Impressions float64 `json:"impressions"`
	Clicks      float64 `json:"clicks"`
	Position    float64 `json:"position"`
	Volume      float64 `json:"volume"`
	URL         string  `json:"url"`
	DateFrom    string  `json:"date_from"`
	DateTo      string  `json:"date_to"`
}

// LoadIngestRowsJSONL reads keyword rows from a JSONL file, one object
// per line, after upstream column mapping has produced the field names
// above. Malformed lines are skipped with a warning. Rows without an
// explicit source are treated as uploads under sourceID.
func LoadIngestRowsJSONL(path, sourceID string) ([]IngestRow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", path, err)
	}

	var rows []IngestRow
	lines := strings.Split(string(data), "\n")

	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var row uploadRow
		if err := json.Unmarshal([]byte(line), &row); err != nil {
			log.Printf("Warning: skipping malformed JSON at line %d in %s: %v", i+1, path, err)
			continue
		}
		if row.Keyword == "" {
			log.Printf("Warning: skipping row without keyword at line %d in %s", i+1, path)
			continue
		}

		sourceType := row.Source
		if sourceType == "" {
			sourceType = "upload"
		}
		rows = append(rows, IngestRow{
			Raw:         row.Keyword,
			SourceID:    sourceID,
			SourceType:  sourceType,
			Impressions: row.Impressions,
			Clicks:      row.Clicks,
			Position:    row.Position,
			Volume:      row.Volume,
			URL:         row.URL,
			DateFrom:    parseDate(row.DateFrom),
			DateTo:      parseDate(row.DateTo),
		})
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("no valid rows found in %s", path)
	}

	return rows, nil
}

func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}
	}
	return t
}
