package simgraph

import (
	"reflect"
	"testing"
)

func TestAddEdgeSymmetric(t *testing.T) {
	g := New()
	g.AddEdge(1, 2, 0.8)

	if w, ok := g.Weight(1, 2); !ok || w != 0.8 {
		t.Errorf("Weight(1,2) = %v %v", w, ok)
	}
	if w, ok := g.Weight(2, 1); !ok || w != 0.8 {
		t.Errorf("Weight(2,1) = %v %v", w, ok)
	}
}

func TestAddEdgeRejectsSelfLoopAndZeroWeight(t *testing.T) {
	g := New()
	g.AddEdge(1, 1, 0.9)
	g.AddEdge(1, 2, 0)

	if _, ok := g.Weight(1, 1); ok {
		t.Error("self loop stored")
	}
	if _, ok := g.Weight(1, 2); ok {
		t.Error("zero-weight edge stored")
	}
}

func TestComponents(t *testing.T) {
	g := New()
	g.AddEdge(1, 2, 1)
	g.AddEdge(2, 3, 1)
	g.AddEdge(5, 6, 1)
	g.AddNode(9)

	got := g.Components()
	want := [][]int{{1, 2, 3}, {5, 6}, {9}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Components = %v, want %v", got, want)
	}
}

func TestCommunitiesEmpty(t *testing.T) {
	if got := New().Communities(1); got != nil {
		t.Errorf("empty graph communities = %v, want nil", got)
	}
}

func TestCommunitiesIsolatedNodesStaySingleton(t *testing.T) {
	g := New()
	g.AddNode(1)
	g.AddNode(2)
	g.AddNode(3)

	got := g.Communities(1)
	want := [][]int{{1}, {2}, {3}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Communities = %v, want %v", got, want)
	}
}

func TestCommunitiesTwoCliques(t *testing.T) {
	g := New()
	// Clique A: 0-1-2, Clique B: 10-11-12, weak bridge 2-10.
	g.AddEdge(0, 1, 1)
	g.AddEdge(1, 2, 1)
	g.AddEdge(0, 2, 1)
	g.AddEdge(10, 11, 1)
	g.AddEdge(11, 12, 1)
	g.AddEdge(10, 12, 1)
	g.AddEdge(2, 10, 0.1)

	got := g.Communities(1)
	if len(got) != 2 {
		t.Fatalf("Communities = %v, want 2 groups", got)
	}
	want := [][]int{{0, 1, 2}, {10, 11, 12}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Communities = %v, want %v", got, want)
	}
}

func TestCommunitiesDeterministicGivenSeed(t *testing.T) {
	build := func() *Graph {
		g := New()
		g.AddEdge(0, 1, 0.9)
		g.AddEdge(1, 2, 0.8)
		g.AddEdge(0, 2, 0.7)
		g.AddEdge(3, 4, 0.9)
		g.AddEdge(4, 5, 0.6)
		g.AddEdge(2, 3, 0.2)
		g.AddNode(7)
		return g
	}

	first := build().Communities(42)
	for i := 0; i < 5; i++ {
		if got := build().Communities(42); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d differs: %v vs %v", i, got, first)
		}
	}
}

func TestCommunitiesCoverAllNodes(t *testing.T) {
	g := New()
	g.AddEdge(0, 1, 1)
	g.AddEdge(2, 3, 1)
	g.AddNode(4)

	seen := make(map[int]int)
	for _, comm := range g.Communities(1) {
		for _, n := range comm {
			seen[n]++
		}
	}
	for _, n := range g.Nodes() {
		if seen[n] != 1 {
			t.Errorf("node %d appears %d times across communities", n, seen[n])
		}
	}
}

func TestCommunitiesPairedNodesLandTogether(t *testing.T) {
	g := New()
	g.AddEdge(1, 2, 1.0)
	g.AddNode(3)

	got := g.Communities(1)
	want := [][]int{{1, 2}, {3}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Communities = %v, want %v", got, want)
	}
}
