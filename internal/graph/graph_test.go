package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddNodeAndEdge(t *testing.T) {
	g := New[string, string]()
	a := g.AddNode("a")
	b := g.AddNode("b")
	g.AddEdge(a, b, "sync")

	require.Equal(t, 2, g.NodeCount())
	out := g.Out(a)
	require.Len(t, out, 1)
	assert.Equal(t, b, out[0].To)
	assert.Equal(t, "sync", out[0].Data)
}

func TestCyclesAreSafeToTraverse(t *testing.T) {
	g := New[string, string]()
	a := g.AddNode("a")
	b := g.AddNode("b")
	g.AddEdge(a, b, "e")
	g.AddEdge(b, a, "e")

	visitCount := 0
	g.WalkTopological([]NodeID{a}, func(string) bool { return true }, func(NodeID) {
		visitCount++
	})
	assert.Equal(t, 2, visitCount, "each node in the cycle visited exactly once")
}

func TestRemoveEdgeDeletesBothDirections(t *testing.T) {
	g := New[string, string]()
	a := g.AddNode("a")
	b := g.AddNode("b")
	g.AddEdge(a, b, "contains")

	g.RemoveEdge(a, b)

	assert.Equal(t, 0, g.OutDegree(a))
	assert.Equal(t, 0, g.InDegree(b))
}

func TestHasCycleDetectsAndIgnoresFilteredEdges(t *testing.T) {
	g := New[string, string]()
	a := g.AddNode("a")
	b := g.AddNode("b")
	g.AddEdge(a, b, "sync")
	g.AddEdge(b, a, "async")

	assert.True(t, g.HasCycle([]NodeID{a}, func(e string) bool { return true }))
	assert.False(t, g.HasCycle([]NodeID{a}, func(e string) bool { return e == "sync" }))
}
