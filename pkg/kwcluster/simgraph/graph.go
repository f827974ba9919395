// Package simgraph implements the undirected weighted similarity graph
// used by both clustering stages, with two interchangeable partitioners:
// greedy-modularity community detection and connected components.
//
// Nodes are plain int ids (indices into the caller's keyword slice);
// edges are symmetric. This is adjacency data, not an object graph.
package simgraph

import "sort"

// Graph is an undirected weighted graph over int node ids.
type Graph struct {
	adj map[int]map[int]float64
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{adj: make(map[int]map[int]float64)}
}

// AddNode ensures a node exists, even without edges.
func (g *Graph) AddNode(id int) {
	if _, ok := g.adj[id]; !ok {
		g.adj[id] = make(map[int]float64)
	}
}

// AddEdge inserts a symmetric edge. Self-loops and non-positive weights
// are ignored.
func (g *Graph) AddEdge(a, b int, w float64) {
	if a == b || w <= 0 {
		return
	}
	g.AddNode(a)
	g.AddNode(b)
	g.adj[a][b] = w
	g.adj[b][a] = w
}

// Weight returns the weight of the edge between a and b, if present.
func (g *Graph) Weight(a, b int) (float64, bool) {
	w, ok := g.adj[a][b]
	return w, ok
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	return len(g.adj)
}

// Nodes returns all node ids in ascending order.
func (g *Graph) Nodes() []int {
	nodes := make([]int, 0, len(g.adj))
	for n := range g.adj {
		nodes = append(nodes, n)
	}
	sort.Ints(nodes)
	return nodes
}

func (g *Graph) sortedNeighbors(id int) []int {
	nbs := make([]int, 0, len(g.adj[id]))
	for nb := range g.adj[id] {
		nbs = append(nbs, nb)
	}
	sort.Ints(nbs)
	return nbs
}
