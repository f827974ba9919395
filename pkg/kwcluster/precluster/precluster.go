// Package precluster groups keywords into lexical clusters using
// combined character-n-gram and stemmed-token TF-IDF cosine similarity
// over a community-partitioned similarity graph.
package precluster

import (
	"sort"

	"github.com/keywordscope/kwcluster/pkg/kwcluster/normalize"
	"github.com/keywordscope/kwcluster/pkg/kwcluster/simgraph"
	"github.com/keywordscope/kwcluster/pkg/kwcluster/tfidf"
)

// AlgoVersion tags precluster records for provenance tracking.
const AlgoVersion = "lex-tfidf-v1"

// Keyword is one clustering input.
type Keyword struct {
	ID            int64
	Text          string
	DemandMonthly float64
}

// Cluster is one lexical cluster.
type Cluster struct {
	Label       string
	TotalDemand float64
	Cohesion    float64
	MemberIDs   []int64
}

// Config controls similarity weighting and graph partitioning.
type Config struct {
	// EdgeThreshold is the minimum combined similarity for a graph
	// edge. Lower merges more aggressively.
	EdgeThreshold float64
	// CharWeight and StemWeight combine the two cosine spaces.
	CharWeight float64
	StemWeight float64
	// NGramMin and NGramMax bound character n-gram lengths.
	NGramMin int
	NGramMax int
	// Seed drives community detection determinism.
	Seed int64
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		EdgeThreshold: 0.55,
		CharWeight:    0.7,
		StemWeight:    0.3,
		NGramMin:      3,
		NGramMax:      5,
		Seed:          1,
	}
}

// Clusterer runs lexical preclustering.
type Clusterer struct {
	norm *normalize.Normalizer
	cfg  Config
}

// New creates a Clusterer. A nil normalizer gets the default German
// one; zero config fields get defaults, with the two similarity
// weights defaulted as a pair so a single-space config stays valid.
func New(n *normalize.Normalizer, cfg Config) *Clusterer {
	if n == nil {
		n = normalize.New()
	}
	def := DefaultConfig()
	if cfg.EdgeThreshold <= 0 {
		cfg.EdgeThreshold = def.EdgeThreshold
	}
	if cfg.CharWeight <= 0 && cfg.StemWeight <= 0 {
		cfg.CharWeight = def.CharWeight
		cfg.StemWeight = def.StemWeight
	}
	if cfg.NGramMin <= 0 {
		cfg.NGramMin = def.NGramMin
	}
	if cfg.NGramMax <= 0 {
		cfg.NGramMax = def.NGramMax
	}
	if cfg.NGramMax < cfg.NGramMin {
		cfg.NGramMax = cfg.NGramMin
	}
	if cfg.Seed == 0 {
		cfg.Seed = def.Seed
	}
	return &Clusterer{norm: n, cfg: cfg}
}

// Cluster partitions keywords into lexical clusters. Keywords whose
// text reduces to nothing are discarded. Zero keywords yield an empty
// result. Output is sorted by total demand descending, then label,
// then smallest member id, so repeated runs are reproducible.
func (c *Clusterer) Cluster(keywords []Keyword) []Cluster {
	var docs []doc
	for _, kw := range keywords {
		res := c.norm.Keyword(kw.Text)
		if !res.OK {
			continue
		}
		docs = append(docs, doc{
			kw:     kw,
			ngrams: charNGrams(res.Norm, c.cfg.NGramMin, c.cfg.NGramMax),
			stems:  res.Stems,
		})
	}
	if len(docs) == 0 {
		return nil
	}

	ngramDocs := make([][]string, len(docs))
	stemDocs := make([][]string, len(docs))
	for i, d := range docs {
		ngramDocs[i] = d.ngrams
		stemDocs[i] = d.stems
	}

	charVec := tfidf.NewVectorizer(ngramDocs)
	stemVec := tfidf.NewVectorizer(stemDocs)

	charVecs := make([]tfidf.Vector, len(docs))
	stemVecs := make([]tfidf.Vector, len(docs))
	for i := range docs {
		charVecs[i] = charVec.Vector(ngramDocs[i])
		stemVecs[i] = stemVec.Vector(stemDocs[i])
	}

	// Full pairwise combined-similarity matrix; also feeds cohesion
	// and medoid selection after partitioning.
	n := len(docs)
	sims := make([][]float64, n)
	for i := range sims {
		sims[i] = make([]float64, n)
		sims[i][i] = 1
	}

	graph := simgraph.New()
	for i := 0; i < n; i++ {
		graph.AddNode(i)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sim := c.cfg.CharWeight*tfidf.Cosine(charVecs[i], charVecs[j]) +
				c.cfg.StemWeight*tfidf.Cosine(stemVecs[i], stemVecs[j])
			sims[i][j] = sim
			sims[j][i] = sim
			if sim >= c.cfg.EdgeThreshold {
				graph.AddEdge(i, j, sim)
			}
		}
	}

	var clusters []Cluster
	for _, members := range graph.Communities(c.cfg.Seed) {
		clusters = append(clusters, buildCluster(docs, members, sims))
	}

	sort.Slice(clusters, func(i, j int) bool {
		a, b := clusters[i], clusters[j]
		if a.TotalDemand != b.TotalDemand {
			return a.TotalDemand > b.TotalDemand
		}
		if a.Label != b.Label {
			return a.Label < b.Label
		}
		return a.MemberIDs[0] < b.MemberIDs[0]
	})

	return clusters
}

type doc struct {
	kw     Keyword
	ngrams []string
	stems  []string
}

// buildCluster computes the label, cohesion, and demand total for one
// community. Cohesion is the mean pairwise combined similarity;
// singletons get 1.0 by convention. The label is the medoid: the member
// with the highest mean similarity to the others, ties broken toward
// the earliest member, falling back to highest demand when every
// pairwise similarity is zero.
func buildCluster(docs []doc, members []int, sims [][]float64) Cluster {
	cluster := Cluster{MemberIDs: make([]int64, len(members))}
	for i, m := range members {
		cluster.MemberIDs[i] = docs[m].kw.ID
		cluster.TotalDemand += docs[m].kw.DemandMonthly
	}

	if len(members) == 1 {
		cluster.Cohesion = 1.0
		cluster.Label = docs[members[0]].kw.Text
		return cluster
	}

	var pairSum float64
	pairs := 0
	bestIdx := members[0]
	bestMean := -1.0
	for _, a := range members {
		var rowSum float64
		for _, b := range members {
			if a == b {
				continue
			}
			rowSum += sims[a][b]
			if a < b {
				pairSum += sims[a][b]
				pairs++
			}
		}
		mean := rowSum / float64(len(members)-1)
		if mean > bestMean {
			bestMean = mean
			bestIdx = a
		}
	}

	cluster.Cohesion = pairSum / float64(pairs)

	if bestMean <= 0 {
		// No lexical signal to pick a medoid from; take the member
		// with the highest demand instead.
		bestIdx = members[0]
		for _, m := range members[1:] {
			if docs[m].kw.DemandMonthly > docs[bestIdx].kw.DemandMonthly {
				bestIdx = m
			}
		}
	}
	cluster.Label = docs[bestIdx].kw.Text

	return cluster
}

// charNGrams emits character n-grams of lengths [min, max] over the
// text padded with one leading and trailing space, so boundary n-grams
// stay distinguishable from interior ones.
func charNGrams(text string, min, max int) []string {
	if min <= 0 {
		min = 3
	}
	if max < min {
		max = min
	}

	runes := []rune(" " + text + " ")
	var grams []string
	for size := min; size <= max; size++ {
		for i := 0; i+size <= len(runes); i++ {
			grams = append(grams, string(runes[i:i+size]))
		}
	}
	return grams
}
