package gsc

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRecentQueries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("auth header = %q", got)
		}
		if !strings.Contains(r.URL.Path, "searchAnalytics/query") {
			t.Errorf("path = %q", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"dimensions":["query"]`) {
			t.Errorf("request body = %s", body)
		}
		fmt.Fprint(w, `{"rows":[
			{"keys":["laufschuhe damen"],"clicks":12,"impressions":2800,"position":4.2},
			{"keys":[""],"clicks":1,"impressions":5,"position":1}
		]}`)
	}))
	defer srv.Close()

	c := &Client{SiteURL: "sc-domain:example.de", Token: "tok", BaseURL: srv.URL}
	rows, err := c.RecentQueries(context.Background(), 28, 100)
	if err != nil {
		t.Fatalf("RecentQueries: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %+v", rows)
	}
	if rows[0].Query != "laufschuhe damen" || rows[0].Impressions != 2800 {
		t.Errorf("row = %+v", rows[0])
	}
	if rows[0].DateTo.Sub(rows[0].DateFrom).Hours() != 28*24 {
		t.Errorf("window = %v .. %v", rows[0].DateFrom, rows[0].DateTo)
	}
}

func TestRecentQueriesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":{"message":"insufficient permissions"}}`)
	}))
	defer srv.Close()

	c := &Client{SiteURL: "sc-domain:example.de", Token: "tok", BaseURL: srv.URL}
	if _, err := c.RecentQueries(context.Background(), 28, 100); err == nil {
		t.Fatal("expected error")
	}
}

func TestRecentQueriesRequiresConfig(t *testing.T) {
	if _, err := (&Client{}).RecentQueries(context.Background(), 28, 100); err == nil {
		t.Fatal("unconfigured client accepted")
	}
}
