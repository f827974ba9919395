package simgraph

import (
	"math/rand"
	"sort"
)

// maxLevels bounds graph aggregation rounds; real inputs converge in
// two or three.
const maxLevels = 8

const gainEpsilon = 1e-12

// Communities partitions the graph by greedy modularity maximization:
// Louvain-style local moving followed by graph aggregation, repeated
// until no move improves modularity. The sweep order is shuffled with
// the given seed and all tie-breaks prefer the smallest community id,
// so output is deterministic for a fixed seed.
//
// Isolated nodes form singleton communities. Each community is sorted
// ascending; communities are ordered by their smallest member.
func (g *Graph) Communities(seed int64) [][]int {
	nodes := g.Nodes()
	if len(nodes) == 0 {
		return nil
	}

	// assign maps each original node to its current supernode.
	assign := make(map[int]int, len(nodes))
	for _, n := range nodes {
		assign[n] = n
	}

	cur := &levelGraph{
		nodes: nodes,
		adj:   copyAdj(g.adj),
		self:  make(map[int]float64),
	}
	rng := rand.New(rand.NewSource(seed))

	for level := 0; level < maxLevels; level++ {
		comm, moved := localMove(cur, rng)
		if !moved {
			break
		}
		relabelByMinMember(comm)
		for orig, sn := range assign {
			assign[orig] = comm[sn]
		}
		cur = aggregate(cur, comm)
	}

	return groupByCommunity(assign)
}

// levelGraph is one aggregation level: supernode adjacency plus
// self-loop weight accumulated from intra-community edges below.
type levelGraph struct {
	nodes []int
	adj   map[int]map[int]float64
	self  map[int]float64
}

func (lg *levelGraph) totalWeight() float64 {
	var m float64
	for _, w := range lg.self {
		m += w
	}
	for _, nbs := range lg.adj {
		for _, w := range nbs {
			m += w / 2
		}
	}
	return m
}

// localMove runs modularity-improving single-node moves until a full
// sweep makes none. A node moves only on a strict gain over staying.
func localMove(lg *levelGraph, rng *rand.Rand) (map[int]int, bool) {
	comm := make(map[int]int, len(lg.nodes))
	deg := make(map[int]float64, len(lg.nodes))
	sumTot := make(map[int]float64, len(lg.nodes))
	for _, n := range lg.nodes {
		comm[n] = n
		d := 2 * lg.self[n]
		for _, w := range lg.adj[n] {
			d += w
		}
		deg[n] = d
		sumTot[n] = d
	}

	m := lg.totalWeight()
	if m == 0 {
		return comm, false
	}

	order := append([]int(nil), lg.nodes...)
	rng.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})

	anyMoved := false
	for {
		movedThisSweep := false
		for _, n := range order {
			current := comm[n]

			// Edge weight from n into each adjacent community.
			wTo := make(map[int]float64, len(lg.adj[n]))
			for nb, w := range lg.adj[n] {
				wTo[comm[nb]] += w
			}

			sumTot[current] -= deg[n]

			best := current
			bestGain := wTo[current] - sumTot[current]*deg[n]/(2*m)

			cands := make([]int, 0, len(wTo))
			for c := range wTo {
				cands = append(cands, c)
			}
			sort.Ints(cands)
			for _, c := range cands {
				if c == current {
					continue
				}
				gain := wTo[c] - sumTot[c]*deg[n]/(2*m)
				if gain > bestGain+gainEpsilon {
					best = c
					bestGain = gain
				}
			}

			sumTot[best] += deg[n]
			if best != current {
				comm[n] = best
				movedThisSweep = true
				anyMoved = true
			}
		}
		if !movedThisSweep {
			break
		}
	}

	return comm, anyMoved
}

// relabelByMinMember rewrites community labels to the smallest member
// id of each community, in place.
func relabelByMinMember(comm map[int]int) {
	min := make(map[int]int, len(comm))
	for n, c := range comm {
		if cur, ok := min[c]; !ok || n < cur {
			min[c] = n
		}
	}
	for n, c := range comm {
		comm[n] = min[c]
	}
}

// aggregate condenses communities into supernodes. Intra-community
// edges become self-loop weight; inter-community edges are summed.
func aggregate(lg *levelGraph, comm map[int]int) *levelGraph {
	ng := &levelGraph{
		adj:  make(map[int]map[int]float64),
		self: make(map[int]float64),
	}

	seen := make(map[int]struct{})
	for _, n := range lg.nodes {
		c := comm[n]
		if _, ok := seen[c]; !ok {
			seen[c] = struct{}{}
			ng.nodes = append(ng.nodes, c)
			if ng.adj[c] == nil {
				ng.adj[c] = make(map[int]float64)
			}
		}
		ng.self[c] += lg.self[n]
		for nb, w := range lg.adj[n] {
			cb := comm[nb]
			if cb == c {
				if n < nb {
					ng.self[c] += w
				}
				continue
			}
			ng.adj[c][cb] += w
		}
	}

	sort.Ints(ng.nodes)
	return ng
}

func groupByCommunity(assign map[int]int) [][]int {
	groups := make(map[int][]int)
	for n, c := range assign {
		groups[c] = append(groups[c], n)
	}

	var out [][]int
	for _, members := range groups {
		sort.Ints(members)
		out = append(out, members)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i][0] < out[j][0]
	})
	return out
}

func copyAdj(adj map[int]map[int]float64) map[int]map[int]float64 {
	out := make(map[int]map[int]float64, len(adj))
	for n, nbs := range adj {
		m := make(map[int]float64, len(nbs))
		for nb, w := range nbs {
			m[nb] = w
		}
		out[n] = m
	}
	return out
}
