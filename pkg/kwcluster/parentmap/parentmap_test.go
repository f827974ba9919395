package parentmap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

type scriptedClient struct {
	replies []string
	err     error
	calls   int
	prompts []string
}

func (c *scriptedClient) Chat(_ context.Context, _, user string) (string, error) {
	c.prompts = append(c.prompts, user)
	if c.err != nil {
		return "", c.err
	}
	reply := c.replies[c.calls]
	c.calls++
	return reply, nil
}

func subs(n int) []Subcluster {
	out := make([]Subcluster, n)
	for i := range out {
		out[i] = Subcluster{
			ID:          fmt.Sprintf("sc-%02d", i+1),
			Name:        fmt.Sprintf("cluster %d", i+1),
			TopDomains:  []string{fmt.Sprintf("domain%d.de", i+1)},
			TotalDemand: float64(100 * (i + 1)),
		}
	}
	return out
}

func TestMapNoClientFallsBack(t *testing.T) {
	input := subs(3)
	parents := NewMapper(nil).Map(context.Background(), input)
	if len(parents) != 3 {
		t.Fatalf("parents = %d, want one per subcluster", len(parents))
	}
	for i, p := range parents {
		if len(p.SubclusterIDs) != 1 || p.SubclusterIDs[0] != input[i].ID {
			t.Errorf("parent %d ids = %v", i, p.SubclusterIDs)
		}
		if p.Rationale != ReasonNoLLM {
			t.Errorf("parent %d rationale = %q", i, p.Rationale)
		}
		if p.Name != input[i].TopDomains[0] {
			t.Errorf("parent %d name = %q, want top domain", i, p.Name)
		}
	}
}

func TestMapClientErrorFallsBack(t *testing.T) {
	client := &scriptedClient{err: errors.New("timeout")}
	parents := NewMapper(client).Map(context.Background(), subs(2))
	if len(parents) != 2 {
		t.Fatalf("parents = %d", len(parents))
	}
	if parents[0].Rationale != ReasonLLMError {
		t.Errorf("rationale = %q", parents[0].Rationale)
	}
}

func TestMapNonJSONFallsBack(t *testing.T) {
	client := &scriptedClient{replies: []string{"Gerne! Hier sind die Themen: Schuhe und Garten."}}
	input := subs(2)
	parents := NewMapper(client).Map(context.Background(), input)
	if len(parents) != 2 {
		t.Fatalf("parents = %d, want one per subcluster", len(parents))
	}
	for i, p := range parents {
		if len(p.SubclusterIDs) != 1 || p.SubclusterIDs[0] != input[i].ID {
			t.Errorf("parent %d ids = %v", i, p.SubclusterIDs)
		}
		if p.Rationale != ReasonParseError {
			t.Errorf("parent %d rationale = %q", i, p.Rationale)
		}
	}
}

func TestMapParsesFencedJSON(t *testing.T) {
	client := &scriptedClient{replies: []string{
		"```json\n{\"parents\":[{\"name\":\"Laufschuhe\",\"subclusterIds\":[\"sc-01\",\"sc-02\"],\"rationale\":\"gleiches Thema\"}]}\n```",
	}}
	parents := NewMapper(client).Map(context.Background(), subs(2))
	if len(parents) != 1 {
		t.Fatalf("parents = %v", parents)
	}
	if parents[0].Name != "Laufschuhe" || len(parents[0].SubclusterIDs) != 2 {
		t.Errorf("parent = %+v", parents[0])
	}
	if parents[0].Rationale != "gleiches Thema" {
		t.Errorf("rationale = %q", parents[0].Rationale)
	}
}

func TestMapUnmentionedSubclusterBecomesSingleton(t *testing.T) {
	client := &scriptedClient{replies: []string{
		`{"parents":[{"name":"Laufschuhe","subclusterIds":["sc-01"]}]}`,
	}}
	input := subs(2)
	parents := NewMapper(client).Map(context.Background(), input)
	if len(parents) != 2 {
		t.Fatalf("parents = %v", parents)
	}
	if parents[1].SubclusterIDs[0] != "sc-02" {
		t.Errorf("singleton ids = %v", parents[1].SubclusterIDs)
	}
	if parents[1].Name != "domain2.de" {
		t.Errorf("singleton name = %q", parents[1].Name)
	}
}

func TestMapIgnoresUnknownAndDuplicateIDs(t *testing.T) {
	client := &scriptedClient{replies: []string{
		`{"parents":[
			{"name":"Erstes","subclusterIds":["sc-01","sc-99"]},
			{"name":"Zweites","subclusterIds":["sc-01","sc-02"]}
		]}`,
	}}
	parents := NewMapper(client).Map(context.Background(), subs(2))
	if len(parents) != 2 {
		t.Fatalf("parents = %v", parents)
	}
	if len(parents[0].SubclusterIDs) != 1 || parents[0].SubclusterIDs[0] != "sc-01" {
		t.Errorf("first = %v", parents[0].SubclusterIDs)
	}
	if len(parents[1].SubclusterIDs) != 1 || parents[1].SubclusterIDs[0] != "sc-02" {
		t.Errorf("second = %v", parents[1].SubclusterIDs)
	}
}

func TestMapChunksAndMergesByName(t *testing.T) {
	input := subs(35)
	client := &scriptedClient{replies: []string{
		`{"parents":[{"name":"Schuhe","subclusterIds":["sc-01","sc-02"]}]}`,
		`{"parents":[{"name":"schuhe","subclusterIds":["sc-31"]}]}`,
	}}
	parents := NewMapper(client).Map(context.Background(), input)
	if client.calls != 2 {
		t.Fatalf("chat calls = %d, want 2 chunks for 35 subclusters", client.calls)
	}
	// Case-insensitive merge keeps the first seen spelling.
	if parents[0].Name != "Schuhe" {
		t.Errorf("merged name = %q", parents[0].Name)
	}
	want := []string{"sc-01", "sc-02", "sc-31"}
	if len(parents[0].SubclusterIDs) != 3 {
		t.Fatalf("merged ids = %v", parents[0].SubclusterIDs)
	}
	for i, id := range want {
		if parents[0].SubclusterIDs[i] != id {
			t.Errorf("merged ids = %v, want %v", parents[0].SubclusterIDs, want)
		}
	}
	// 32 unmentioned subclusters trail as singletons.
	if len(parents) != 33 {
		t.Errorf("parents = %d, want 33", len(parents))
	}
	// Chunk prompts carry only their own subclusters.
	if strings.Contains(client.prompts[0], "sc-31") || !strings.Contains(client.prompts[1], "sc-31") {
		t.Error("chunking split prompts incorrectly")
	}
}

func TestMapEmptyInput(t *testing.T) {
	if parents := NewMapper(nil).Map(context.Background(), nil); parents != nil {
		t.Errorf("parents = %v, want nil", parents)
	}
}

func TestParseReplyRejectsEmptyParents(t *testing.T) {
	if _, err := parseReply(`{"parents":[]}`); err == nil {
		t.Error("empty parent list accepted")
	}
	if _, err := parseReply(`{`); err == nil {
		t.Error("lone brace accepted")
	}
}
