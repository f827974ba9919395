// Package gsc pulls recent query data from the Google Search Console
// Search Analytics API to bootstrap keyword demand for a project.
package gsc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const defaultBaseURL = "https://www.googleapis.com/webmasters/v3"

// Client queries the Search Analytics endpoint for one property.
type Client struct {
	SiteURL string
	Token   string

	// BaseURL overrides the API host, mainly for tests.
	BaseURL    string
	HTTPClient *http.Client
}

// QueryRow is one query with its aggregated metrics over the window.
type QueryRow struct {
	Query       string
	Impressions float64
	Clicks      float64
	Position    float64
	DateFrom    time.Time
	DateTo      time.Time
}

type analyticsRequest struct {
	StartDate  string   `json:"startDate"`
	EndDate    string   `json:"endDate"`
	Dimensions []string `json:"dimensions"`
	RowLimit   int      `json:"rowLimit"`
}

type analyticsResponse struct {
	Rows []struct {
		Keys        []string `json:"keys"`
		Clicks      float64  `json:"clicks"`
		Impressions float64  `json:"impressions"`
		Position    float64  `json:"position"`
	} `json:"rows"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// RecentQueries returns per-query metrics over the last lookbackDays
// days, up to limit rows.
func (c *Client) RecentQueries(ctx context.Context, lookbackDays, limit int) ([]QueryRow, error) {
	if c.SiteURL == "" || c.Token == "" {
		return nil, fmt.Errorf("gsc: site URL and token required")
	}
	if lookbackDays <= 0 {
		lookbackDays = 90
	}
	if limit <= 0 {
		limit = 1000
	}

	to := time.Now().UTC().Truncate(24 * time.Hour)
	from := to.AddDate(0, 0, -lookbackDays)

	reqBody, err := json.Marshal(analyticsRequest{
		StartDate:  from.Format("2006-01-02"),
		EndDate:    to.Format("2006-01-02"),
		Dimensions: []string{"query"},
		RowLimit:   limit,
	})
	if err != nil {
		return nil, err
	}

	base := c.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	endpoint := fmt.Sprintf("%s/sites/%s/searchAnalytics/query", base, url.PathEscape(c.SiteURL))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload analyticsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("gsc: decode response: %w", err)
	}
	if payload.Error != nil {
		return nil, fmt.Errorf("gsc error: %s", payload.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gsc: http %d", resp.StatusCode)
	}

	rows := make([]QueryRow, 0, len(payload.Rows))
	for _, r := range payload.Rows {
		if len(r.Keys) == 0 || r.Keys[0] == "" {
			continue
		}
		rows = append(rows, QueryRow{
			Query:       r.Keys[0],
			Impressions: r.Impressions,
			Clicks:      r.Clicks,
			Position:    r.Position,
			DateFrom:    from,
			DateTo:      to,
		})
	}
	return rows, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}
