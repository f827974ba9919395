// Package parentmap merges SERP subclusters into a small set of named
// parent topics. A chat model proposes names and assignments; when no
// credential is configured or the model's output cannot be parsed, a
// deterministic one-parent-per-subcluster fallback takes over so a run
// always completes.
package parentmap

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Fallback reason codes recorded in parent rationales.
const (
	ReasonNoLLM      = "FALLBACK_NO_LLM"
	ReasonLLMError   = "FALLBACK_LLM_ERROR"
	ReasonParseError = "FALLBACK_PARSE_ERROR"
)

const chunkSize = 30

// Subcluster is the mapper's view of one SERP subcluster.
type Subcluster struct {
	ID           string
	Name         string
	TopDomains   []string
	TopKeywords  []string
	KeywordCount int
	TotalDemand  float64
}

// Parent is one named group of subclusters.
type Parent struct {
	Name          string
	SubclusterIDs []string
	Rationale     string
}

// ChatClient issues one system/user prompt pair and returns the text
// reply. Implemented by internal/llm.
type ChatClient interface {
	Chat(ctx context.Context, system, user string) (string, error)
}

// Mapper assigns subclusters to parents.
type Mapper struct {
	client ChatClient
}

// NewMapper creates a Mapper. A nil client is valid and forces the
// deterministic fallback.
func NewMapper(client ChatClient) *Mapper {
	return &Mapper{client: client}
}

// Map groups subclusters into parents. Every input subcluster appears
// in exactly one parent: ids the model never mentions become singleton
// parents, and any chunk-level failure discards all model output for
// this call in favor of the fallback. Mixed naming from a half-parsed
// response is worse than no model naming at all.
func (m *Mapper) Map(ctx context.Context, subclusters []Subcluster) []Parent {
	if len(subclusters) == 0 {
		return nil
	}
	if m.client == nil {
		return fallback(subclusters, ReasonNoLLM)
	}

	known := make(map[string]struct{}, len(subclusters))
	for _, sc := range subclusters {
		known[sc.ID] = struct{}{}
	}

	// Parents merge across chunks by case-insensitive name.
	byKey := make(map[string]*Parent)
	var order []string

	for start := 0; start < len(subclusters); start += chunkSize {
		end := start + chunkSize
		if end > len(subclusters) {
			end = len(subclusters)
		}
		chunk := subclusters[start:end]

		reply, err := m.client.Chat(ctx, systemPrompt, userPrompt(chunk))
		if err != nil {
			return fallback(subclusters, ReasonLLMError)
		}
		groups, err := parseReply(reply)
		if err != nil {
			return fallback(subclusters, ReasonParseError)
		}

		for _, g := range groups {
			name := strings.TrimSpace(g.Name)
			if name == "" {
				continue
			}
			key := strings.ToLower(name)
			p, ok := byKey[key]
			if !ok {
				p = &Parent{Name: name, Rationale: strings.TrimSpace(g.Rationale)}
				byKey[key] = p
				order = append(order, key)
			}
			for _, id := range g.SubclusterIDs {
				if _, valid := known[id]; valid {
					p.SubclusterIDs = append(p.SubclusterIDs, id)
				}
			}
		}
	}

	// First assignment wins when the model places an id in two parents.
	assigned := make(map[string]struct{}, len(subclusters))
	parents := make([]Parent, 0, len(order))
	for _, key := range order {
		p := byKey[key]
		var ids []string
		for _, id := range p.SubclusterIDs {
			if _, dup := assigned[id]; dup {
				continue
			}
			assigned[id] = struct{}{}
			ids = append(ids, id)
		}
		if len(ids) == 0 {
			continue
		}
		sort.Strings(ids)
		parents = append(parents, Parent{Name: p.Name, SubclusterIDs: ids, Rationale: p.Rationale})
	}

	for _, sc := range subclusters {
		if _, ok := assigned[sc.ID]; !ok {
			parents = append(parents, singleton(sc, "vom Modell nicht zugeordnet"))
		}
	}

	return parents
}

// fallback emits one parent per subcluster, named after its strongest
// domain so the output still reads as topics rather than raw labels.
func fallback(subclusters []Subcluster, reason string) []Parent {
	parents := make([]Parent, len(subclusters))
	for i, sc := range subclusters {
		parents[i] = singleton(sc, reason)
	}
	return parents
}

func singleton(sc Subcluster, rationale string) Parent {
	name := sc.Name
	if len(sc.TopDomains) > 0 && sc.TopDomains[0] != "" {
		name = sc.TopDomains[0]
	}
	return Parent{
		Name:          name,
		SubclusterIDs: []string{sc.ID},
		Rationale:     rationale,
	}
}

const systemPrompt = "Du bist ein SEO-Analyst. Du gruppierst Keyword-Cluster zu wenigen " +
	"übergeordneten Themen. Antworte ausschließlich mit striktem JSON ohne " +
	"Markdown, ohne Erklärtext, exakt in der Form " +
	`{"parents":[{"name":"...","subclusterIds":["..."],"rationale":"..."}]}. ` +
	"Namen sind kurze deutsche Themenbezeichnungen."

func userPrompt(chunk []Subcluster) string {
	var b strings.Builder
	b.WriteString("Gruppiere die folgenden Subcluster zu übergeordneten Themen. ")
	b.WriteString("Jede Subcluster-ID muss genau einem Thema zugeordnet werden.\n\n")
	for _, sc := range chunk {
		fmt.Fprintf(&b, "ID: %s\nName: %s\n", sc.ID, sc.Name)
		if len(sc.TopDomains) > 0 {
			fmt.Fprintf(&b, "Domains: %s\n", strings.Join(sc.TopDomains, ", "))
		}
		if len(sc.TopKeywords) > 0 {
			fmt.Fprintf(&b, "Keywords: %s\n", strings.Join(sc.TopKeywords, ", "))
		}
		fmt.Fprintf(&b, "Suchvolumen: %.0f (%d Keywords)\n\n", sc.TotalDemand, sc.KeywordCount)
	}
	return b.String()
}

type replyGroup struct {
	Name          string   `json:"name"`
	SubclusterIDs []string `json:"subclusterIds"`
	Rationale     string   `json:"rationale"`
}

type replyEnvelope struct {
	Parents []replyGroup `json:"parents"`
}

// parseReply extracts the JSON object from a model reply. Models wrap
// JSON in prose or code fences often enough that we slice from the
// first to the last brace before decoding, but never attempt repair
// beyond that.
func parseReply(reply string) ([]replyGroup, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("parentmap: no JSON object in reply")
	}
	var envelope replyEnvelope
	if err := json.Unmarshal([]byte(reply[start:end+1]), &envelope); err != nil {
		return nil, fmt.Errorf("parentmap: decode reply: %w", err)
	}
	if len(envelope.Parents) == 0 {
		return nil, fmt.Errorf("parentmap: reply names no parents")
	}
	return envelope.Parents, nil
}
