package kwcluster

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// FlatRow is one exportable keyword row: the keyword, its subcluster
// and parent names, and its monthly demand.
type FlatRow struct {
	Query         string
	Cluster       string
	Parent        string
	DemandMonthly float64
}

// ExportRows flattens a completed run into one row per clustered
// keyword, ordered by subcluster demand then keyword demand.
func (e *Engine) ExportRows(ctx context.Context, projectID, runID string) ([]FlatRow, error) {
	subclusters, err := e.store.ListSubclusters(ctx, runID)
	if err != nil {
		return nil, err
	}
	parents, err := e.store.ListParentClusters(ctx, runID)
	if err != nil {
		return nil, err
	}
	keywords, err := e.store.ListKeywords(ctx, projectID, 0)
	if err != nil {
		return nil, err
	}

	parentBySub := make(map[string]string)
	for _, p := range parents {
		for _, id := range p.SubclusterIDs {
			parentBySub[id] = p.Name
		}
	}
	byID := make(map[int64]FlatRow, len(keywords))
	for _, k := range keywords {
		byID[k.ID] = FlatRow{Query: k.Norm, DemandMonthly: k.DemandMonthly}
	}

	var rows []FlatRow
	for _, sc := range subclusters {
		for _, id := range sc.MemberIDs {
			row, ok := byID[id]
			if !ok {
				continue
			}
			row.Cluster = sc.Name
			row.Parent = parentBySub[sc.ID]
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// WriteCSV writes flat rows as CSV with a header line.
func WriteCSV(w io.Writer, rows []FlatRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"query", "cluster", "parent", "demand_monthly"}); err != nil {
		return err
	}
	for _, row := range rows {
		record := []string{
			row.Query,
			row.Cluster,
			row.Parent,
			strconv.FormatFloat(row.DemandMonthly, 'f', 2, 64),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}
