package serpcluster

import (
	"crypto/rand"
	"sort"

	"github.com/oklog/ulid/v2"

	"github.com/keywordscope/kwcluster/pkg/kwcluster/serp"
	"github.com/keywordscope/kwcluster/pkg/kwcluster/simgraph"
)

// Partitioning algorithm names.
const (
	AlgoCommunity  = "community"
	AlgoComponents = "components"
)

// Config controls overlap-graph construction and partitioning.
type Config struct {
	// OverlapThreshold is the minimum host-set Jaccard for an edge.
	OverlapThreshold float64
	// MinSharedHosts adds an edge on raw intersection size regardless
	// of Jaccard: with many distinct hosts the relative overlap is
	// diluted even when co-occurrence is strong. Empirically tuned.
	MinSharedHosts int
	// Algorithm selects the partitioner: AlgoCommunity or
	// AlgoComponents (single-link, produces larger looser groups).
	Algorithm string
	// Seed drives community detection determinism.
	Seed int64
	// MaxTopDomains and MaxTopURLs cap per-subcluster stats.
	MaxTopDomains int
	MaxTopURLs    int
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		OverlapThreshold: 0.3,
		MinSharedHosts:   3,
		Algorithm:        AlgoCommunity,
		Seed:             1,
		MaxTopDomains:    5,
		MaxTopURLs:       10,
	}
}

// Subcluster is one SERP-overlap cluster.
type Subcluster struct {
	ID           string
	Name         string
	MemberIDs    []int64
	TotalDemand  float64
	KeywordCount int
	TopDomains   []string
	TopURLs      []string
	OverlapScore float64
}

// Clusterer partitions resolved keywords into subclusters.
type Clusterer struct {
	cfg     Config
	entropy *ulid.MonotonicEntropy
}

// NewClusterer creates a Clusterer; zero config fields get defaults.
func NewClusterer(cfg Config) *Clusterer {
	def := DefaultConfig()
	if cfg.OverlapThreshold <= 0 {
		cfg.OverlapThreshold = def.OverlapThreshold
	}
	if cfg.MinSharedHosts <= 0 {
		cfg.MinSharedHosts = def.MinSharedHosts
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = def.Algorithm
	}
	if cfg.Seed == 0 {
		cfg.Seed = def.Seed
	}
	if cfg.MaxTopDomains <= 0 {
		cfg.MaxTopDomains = def.MaxTopDomains
	}
	if cfg.MaxTopURLs <= 0 {
		cfg.MaxTopURLs = def.MaxTopURLs
	}
	return &Clusterer{cfg: cfg, entropy: ulid.Monotonic(rand.Reader, 0)}
}

// Cluster builds the host-overlap graph over resolved keywords and
// partitions it. Output is sorted by total demand descending, then
// name, for reproducible ordering.
func (c *Clusterer) Cluster(resolved []Resolved) []Subcluster {
	if len(resolved) == 0 {
		return nil
	}

	hostSets := make([]map[string]struct{}, len(resolved))
	for i, rk := range resolved {
		set := make(map[string]struct{}, len(rk.Hosts))
		for _, h := range rk.Hosts {
			set[h] = struct{}{}
		}
		hostSets[i] = set
	}

	n := len(resolved)
	jac := make([][]float64, n)
	for i := range jac {
		jac[i] = make([]float64, n)
		jac[i][i] = 1
	}

	graph := simgraph.New()
	for i := 0; i < n; i++ {
		graph.AddNode(i)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			inter := intersectionSize(hostSets[i], hostSets[j])
			sim := jaccard(inter, len(hostSets[i]), len(hostSets[j]))
			jac[i][j] = sim
			jac[j][i] = sim
			if sim >= c.cfg.OverlapThreshold || inter >= c.cfg.MinSharedHosts {
				weight := sim
				if weight <= 0 {
					// Edge earned via raw intersection alone; keep a
					// small positive weight so the partitioner sees it.
					weight = 0.01
				}
				graph.AddEdge(i, j, weight)
			}
		}
	}

	var parts [][]int
	if c.cfg.Algorithm == AlgoComponents {
		parts = graph.Components()
	} else {
		parts = graph.Communities(c.cfg.Seed)
	}

	subclusters := make([]Subcluster, 0, len(parts))
	for _, members := range parts {
		subclusters = append(subclusters, c.buildSubcluster(resolved, members, jac))
	}

	sort.Slice(subclusters, func(i, j int) bool {
		a, b := subclusters[i], subclusters[j]
		if a.TotalDemand != b.TotalDemand {
			return a.TotalDemand > b.TotalDemand
		}
		return a.Name < b.Name
	})

	return subclusters
}

func (c *Clusterer) buildSubcluster(resolved []Resolved, members []int, jac [][]float64) Subcluster {
	sub := Subcluster{
		ID:           ulid.MustNew(ulid.Now(), c.entropy).String(),
		KeywordCount: len(members),
		MemberIDs:    make([]int64, len(members)),
	}
	for i, m := range members {
		sub.MemberIDs[i] = resolved[m].Keyword.ID
		sub.TotalDemand += resolved[m].Keyword.DemandMonthly
	}

	// Medoid by mean pairwise Jaccard; singletons score 1.0 by
	// convention, there is no pair to average.
	if len(members) == 1 {
		sub.OverlapScore = 1.0
		sub.Name = resolved[members[0]].Keyword.Text
	} else {
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
				rowSum += jac[a][b]
				if a < b {
					pairSum += jac[a][b]
					pairs++
				}
			}
			if mean := rowSum / float64(len(members)-1); mean > bestMean {
				bestMean = mean
				bestIdx = a
			}
		}
		sub.OverlapScore = pairSum / float64(pairs)
		sub.Name = resolved[bestIdx].Keyword.Text
	}

	sub.TopDomains = topByFrequency(members, c.cfg.MaxTopDomains, func(m int) []string {
		domains := make([]string, 0, len(resolved[m].Hosts))
		seen := make(map[string]struct{})
		for _, h := range resolved[m].Hosts {
			d := serp.RegistrableDomain(h)
			if _, dup := seen[d]; !dup {
				seen[d] = struct{}{}
				domains = append(domains, d)
			}
		}
		return domains
	})
	sub.TopURLs = topByFrequency(members, c.cfg.MaxTopURLs, func(m int) []string {
		return resolved[m].URLs
	})

	return sub
}

// topByFrequency ranks values by how many members carry them, breaking
// ties lexicographically for determinism, capped at max.
func topByFrequency(members []int, max int, values func(int) []string) []string {
	freq := make(map[string]int)
	for _, m := range members {
		for _, v := range values(m) {
			freq[v]++
		}
	}

	ranked := make([]string, 0, len(freq))
	for v := range freq {
		ranked = append(ranked, v)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if freq[ranked[i]] != freq[ranked[j]] {
			return freq[ranked[i]] > freq[ranked[j]]
		}
		return ranked[i] < ranked[j]
	})

	if len(ranked) > max {
		ranked = ranked[:max]
	}
	return ranked
}

func intersectionSize(a, b map[string]struct{}) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	n := 0
	for v := range a {
		if _, ok := b[v]; ok {
			n++
		}
	}
	return n
}

func jaccard(inter, lenA, lenB int) float64 {
	union := lenA + lenB - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
