package simgraph

import "sort"

// Components partitions the graph into connected components
// (single-link clustering: any chain of edges joins two nodes).
// Each component is sorted ascending; components are ordered by their
// smallest member.
func (g *Graph) Components() [][]int {
	visited := make(map[int]bool, len(g.adj))
	var comps [][]int

	for _, start := range g.Nodes() {
		if visited[start] {
			continue
		}
		visited[start] = true
		queue := []int{start}
		var comp []int
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			comp = append(comp, cur)
			for _, nb := range g.sortedNeighbors(cur) {
				if !visited[nb] {
					visited[nb] = true
					queue = append(queue, nb)
				}
			}
		}
		sort.Ints(comp)
		comps = append(comps, comp)
	}

	return comps
}
