// Package normalize turns raw keyword text into the canonical form and
// stemmed signature used for similarity comparisons.
package normalize

import (
	"sort"
	"strings"

	"github.com/blevesearch/snowballstem"
	"github.com/blevesearch/snowballstem/german"
	"golang.org/x/text/unicode/norm"
)

// Result holds the normalized views of one keyword.
type Result struct {
	Norm   string   // cleaned, non-stemmed form: duplicate detection and display
	Sig    string   // stemmed tokens, sorted and space-joined: order-independent key
	Tokens []string // cleaned tokens after stopword removal
	Stems  []string // stemmed tokens, input order
	OK     bool     // false when the text reduces to nothing clusterable
}

// Normalizer normalizes German keyword text.
type Normalizer struct {
	stops map[string]struct{}
}

// New creates a Normalizer with the default German stopword list.
func New() *Normalizer {
	return NewWithStopwords(DefaultStopwords())
}

// NewWithStopwords creates a Normalizer with the given stopword list.
func NewWithStopwords(stopwords []string) *Normalizer {
	stops := make(map[string]struct{}, len(stopwords))
	for _, w := range stopwords {
		stops[strings.ToLower(w)] = struct{}{}
	}
	return &Normalizer{stops: stops}
}

// Keyword normalizes raw keyword text. The function is deterministic and
// side-effect free; re-normalizing Result.Norm yields the same Result.
func (n *Normalizer) Keyword(raw string) Result {
	cleaned := clean(raw)
	if cleaned == "" {
		return Result{}
	}

	var tokens []string
	for _, tok := range splitTokens(cleaned) {
		if tok == "" {
			continue
		}
		if _, stop := n.stops[tok]; stop {
			continue
		}
		tokens = append(tokens, tok)
	}
	if len(tokens) == 0 {
		return Result{}
	}

	stems := make([]string, len(tokens))
	for i, tok := range tokens {
		stems[i] = stem(tok)
	}

	sorted := make([]string, len(stems))
	copy(sorted, stems)
	sort.Strings(sorted)

	return Result{
		Norm:   cleaned,
		Sig:    strings.Join(sorted, " "),
		Tokens: tokens,
		Stems:  stems,
		OK:     true,
	}
}

// IsStop reports whether a token is on the stopword list.
func (n *Normalizer) IsStop(token string) bool {
	_, ok := n.stops[strings.ToLower(token)]
	return ok
}

// clean lowercases, strips characters outside [a-z0-9äöüß\s\-/] to
// whitespace, and collapses runs of whitespace.
func clean(raw string) string {
	s := strings.ToLower(norm.NFKC.String(raw))

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == 'ä' || r == 'ö' || r == 'ü' || r == 'ß':
			b.WriteRune(r)
		case r == '-' || r == '/':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// stem runs the Snowball German stemmer over one token.
func stem(tok string) string {
	env := snowballstem.NewEnv(tok)
	german.Stem(env)
	return env.Current()
}

// splitTokens splits cleaned text on whitespace, hyphen, and slash.
func splitTokens(cleaned string) []string {
	return strings.FieldsFunc(cleaned, func(r rune) bool {
		return r == ' ' || r == '-' || r == '/'
	})
}
