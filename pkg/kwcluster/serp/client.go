package serp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"time"
)

// Config configures the SERP client.
type Config struct {
	// Endpoint is the search-result extraction API, called with Basic auth.
	Endpoint string
	Username string
	Password string

	// Locale and Country are geolocation hints ("de-DE", "de").
	Locale  string
	Country string
	// Device is the emulated device type.
	Device string

	// MaxResults caps the organic URLs kept per fetch.
	MaxResults int
	// MaxAttempts bounds retries per keyword.
	MaxAttempts int
	// Timeout aborts one stuck attempt; the abort counts as a failed
	// attempt, it does not cancel the surrounding work.
	Timeout time.Duration

	HTTPClient *http.Client
	// Sleep is the backoff wait, injectable for tests.
	Sleep func(context.Context, time.Duration) error
	// Rand drives backoff jitter, injectable for tests.
	Rand *rand.Rand
}

func (c *Config) defaults() {
	if c.Locale == "" {
		c.Locale = "de-DE"
	}
	if c.Country == "" {
		c.Country = "de"
	}
	if c.Device == "" {
		c.Device = "desktop"
	}
	if c.MaxResults <= 0 {
		c.MaxResults = 20
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 4
	}
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{}
	}
	if c.Sleep == nil {
		c.Sleep = sleepContext
	}
	if c.Rand == nil {
		c.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
}

// Client fetches top organic results for keywords.
type Client struct {
	cfg Config
}

// NewClient creates a Client; zero Config fields get defaults.
func NewClient(cfg Config) *Client {
	cfg.defaults()
	return &Client{cfg: cfg}
}

type scrapeRequest struct {
	URL     string `json:"url"`
	Country string `json:"country"`
	Locale  string `json:"locale"`
	Device  string `json:"device"`
}

type scrapeResponse struct {
	Organic []struct {
		URL      string `json:"url"`
		Position int    `json:"position"`
		Rank     int    `json:"rank"`
	} `json:"organic"`
}

const rawExcerptLimit = 500

// Fetch retrieves the top organic result URLs for a keyword. It retries
// network errors, 429, 5xx, and empty-but-2xx responses with doubling
// backoff and ±30% jitter, then returns the best available result with
// an error annotation instead of failing; the caller persists every
// outcome as a snapshot.
func (c *Client) Fetch(ctx context.Context, keyword string) Result {
	start := time.Now()

	var last Result
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		res, retryable := c.attempt(ctx, keyword)
		if !retryable {
			res.DurationMs = time.Since(start).Milliseconds()
			return res
		}
		last = res

		if attempt < c.cfg.MaxAttempts {
			delay := Jitter(Delay(attempt, res.HTTPStatus), c.cfg.Rand)
			if err := c.cfg.Sleep(ctx, delay); err != nil {
				last.Err = fmt.Sprintf("%s; backoff interrupted: %v", last.Err, err)
				break
			}
		}
	}

	last.Status = StatusError
	if last.Err == "" {
		last.Err = "retries exhausted"
	}
	last.DurationMs = time.Since(start).Milliseconds()
	return last
}

// attempt performs one request. The second return value reports whether
// the failure class is worth retrying.
func (c *Client) attempt(ctx context.Context, keyword string) (Result, bool) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	target := "https://www.google.com/search?q=" + url.QueryEscape(keyword) +
		"&hl=" + url.QueryEscape(c.cfg.Locale) + "&gl=" + url.QueryEscape(c.cfg.Country)

	body, err := json.Marshal(scrapeRequest{
		URL:     target,
		Country: c.cfg.Country,
		Locale:  c.cfg.Locale,
		Device:  c.cfg.Device,
	})
	if err != nil {
		return Result{Status: StatusError, Err: fmt.Sprintf("marshal request: %v", err)}, false
	}

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{Status: StatusError, Err: fmt.Sprintf("new request: %v", err)}, false
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.cfg.Username, c.cfg.Password)

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		// Network failure or timeout: retryable.
		return Result{Status: StatusError, Err: err.Error()}, true
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	excerpt := string(raw)
	if len(excerpt) > rawExcerptLimit {
		excerpt = excerpt[:rawExcerptLimit]
	}

	res := Result{HTTPStatus: resp.StatusCode, RawExcerpt: excerpt}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		res.Status = StatusError
		res.Err = "http 429"
		return res, true
	case resp.StatusCode >= 500:
		res.Status = StatusError
		res.Err = fmt.Sprintf("http %d", resp.StatusCode)
		return res, true
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		res.Status = StatusError
		res.Err = fmt.Sprintf("http %d", resp.StatusCode)
		return res, false
	}

	if readErr != nil {
		res.Status = StatusError
		res.Err = fmt.Sprintf("read body: %v", readErr)
		return res, true
	}

	urls := parseOrganic(raw, c.cfg.MaxResults)
	if len(urls) == 0 {
		// An empty result page on 2xx is usually a transient scraping
		// artifact, not a true zero-result query.
		res.Status = StatusError
		res.Err = "no parseable results"
		return res, true
	}

	res.Status = StatusOK
	res.URLs = urls
	return res, false
}

func parseOrganic(raw []byte, max int) []RankedURL {
	var payload scrapeResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil
	}

	var urls []RankedURL
	for _, item := range payload.Organic {
		if item.URL == "" {
			continue
		}
		pos := item.Position
		if pos == 0 {
			pos = item.Rank
		}
		if pos == 0 {
			pos = len(urls) + 1
		}
		urls = append(urls, RankedURL{URL: item.URL, Position: pos})
		if len(urls) >= max {
			break
		}
	}
	return urls
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
