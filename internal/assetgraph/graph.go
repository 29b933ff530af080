// Package assetgraph implements the Asset Graph Builder (spec §4.4): the
// discovery loop that walks entry dependencies, resolves and transforms
// assets, and produces the asset/dependency DAG consumed by the bundler.
package assetgraph

import (
	"github.com/apex-build/corebuild/internal/graph"
	"github.com/apex-build/corebuild/pkg/model"
)

// NodeKind is one of the four asset-graph node kinds (spec §3).
type NodeKind int

const (
	NodeRoot NodeKind = iota
	NodeEntry
	NodeAsset
	NodeDependency
)

// ResolutionState is a Dependency node's resolution status (spec §3).
type ResolutionState int

const (
	ResolutionNew ResolutionState = iota
	ResolutionResolved
	ResolutionDeferred
)

// EdgeKind is the asset graph's single unweighted edge relation (spec §3:
// "Edges are unweighted").
type EdgeKind int

const childEdge EdgeKind = 0

// Node is the data carried at each asset-graph node handle.
type Node struct {
	Kind NodeKind

	// Asset is populated for NodeAsset; RequestedSymbols is the merged set
	// of symbols requested by every dependency that resolved to this asset
	// (spec §4.4 step 5: "dedupe by asset id... merge requested-symbol
	// sets").
	Asset            *model.Asset
	RequestedSymbols map[model.Symbol]struct{}

	// Dependency is populated for NodeDependency.
	Dependency *model.Dependency
	State      ResolutionState

	// EntryName is populated for NodeEntry.
	EntryName string
}

// AssetGraph is the discovery loop's output: a DAG (spec §3 invariants)
// with exactly one Root, unique asset ids among Asset nodes, and unique
// dependency ids among Dependency nodes.
type AssetGraph struct {
	g      *graph.Graph[Node, EdgeKind]
	rootID graph.NodeID

	byAssetID      map[model.AssetID]graph.NodeID
	byDependencyID map[model.DependencyID]graph.NodeID
}

// New creates an empty AssetGraph with its single Root node.
func New() *AssetGraph {
	g := graph.New[Node, EdgeKind]()
	root := g.AddNode(Node{Kind: NodeRoot})
	return &AssetGraph{
		g:              g,
		rootID:         root,
		byAssetID:      make(map[model.AssetID]graph.NodeID),
		byDependencyID: make(map[model.DependencyID]graph.NodeID),
	}
}

// RootID returns the graph's single Root node handle.
func (a *AssetGraph) RootID() graph.NodeID { return a.rootID }

// Underlying exposes the generic graph for callers (e.g. the bundler) that
// need to walk it directly.
func (a *AssetGraph) Underlying() *graph.Graph[Node, EdgeKind] { return a.g }

// AddEntry adds an Entry node for name, edged from the Root.
func (a *AssetGraph) AddEntry(name string) graph.NodeID {
	n := a.g.AddNode(Node{Kind: NodeEntry, EntryName: name})
	a.g.AddEdge(a.rootID, n, childEdge)
	return n
}

// AddDependency adds a new Dependency node, deduped by dependency id: a
// second AddDependency call for an id already present returns the existing
// node's handle instead of creating a duplicate (spec §3: "dependency ids
// are unique among Dependency nodes").
func (a *AssetGraph) AddDependency(from graph.NodeID, dep *model.Dependency) graph.NodeID {
	if existing, ok := a.byDependencyID[dep.ID]; ok {
		a.g.AddEdge(from, existing, childEdge)
		return existing
	}
	n := a.g.AddNode(Node{Kind: NodeDependency, Dependency: dep, State: ResolutionNew})
	a.byDependencyID[dep.ID] = n
	a.g.AddEdge(from, n, childEdge)
	return n
}

// SetDependencyState updates a dependency node's resolution state.
func (a *AssetGraph) SetDependencyState(id graph.NodeID, state ResolutionState) {
	n := a.g.Node(id)
	n.State = state
	a.g.SetNode(id, n)
}

// AddOrMergeAsset implements spec §4.4 step 5: if an asset with this id
// already exists, reuse it and merge the requested symbol set; otherwise
// create a new node. Returns the node handle and whether it was newly
// created.
func (a *AssetGraph) AddOrMergeAsset(from graph.NodeID, asset *model.Asset, requested map[model.Symbol]struct{}) (graph.NodeID, bool) {
	if existing, ok := a.byAssetID[asset.ID]; ok {
		a.g.AddEdge(from, existing, childEdge)
		n := a.g.Node(existing)
		mergeSymbols(n.RequestedSymbols, requested)
		a.g.SetNode(existing, n)
		return existing, false
	}
	merged := make(map[model.Symbol]struct{}, len(requested))
	mergeSymbols(merged, requested)
	n := a.g.AddNode(Node{Kind: NodeAsset, Asset: asset, RequestedSymbols: merged})
	a.byAssetID[asset.ID] = n
	a.g.AddEdge(from, n, childEdge)
	return n, true
}

func mergeSymbols(dst, src map[model.Symbol]struct{}) {
	for s := range src {
		dst[s] = struct{}{}
	}
}

// AssetNode returns the node data for an asset-graph handle known to be an
// Asset node.
func (a *AssetGraph) AssetNode(id graph.NodeID) Node { return a.g.Node(id) }

// DependencyNode returns the node data for a handle known to be a
// Dependency node.
func (a *AssetGraph) DependencyNode(id graph.NodeID) Node { return a.g.Node(id) }

// AssetNodeByID looks up an asset node by its content-addressed id.
func (a *AssetGraph) AssetNodeByID(id model.AssetID) (graph.NodeID, bool) {
	n, ok := a.byAssetID[id]
	return n, ok
}

// ParentAssetOf returns the Asset-kind node that owns depNode (the node
// whose edge points into it), if any — used by the symbol tracker's
// transitive propagation (spec §4.6: "propagate... to the parent asset's
// incoming dependencies").
func (a *AssetGraph) ParentAssetOf(depNode graph.NodeID) (graph.NodeID, bool) {
	for _, in := range a.g.In(depNode) {
		n := a.g.Node(in.From)
		if n.Kind == NodeAsset {
			return in.From, true
		}
	}
	return 0, false
}

// AllAssetIDs returns every distinct asset id present in the graph.
func (a *AssetGraph) AllAssetIDs() []model.AssetID {
	ids := make([]model.AssetID, 0, len(a.byAssetID))
	for id := range a.byAssetID {
		ids = append(ids, id)
	}
	return ids
}

// AssetCount returns the number of distinct assets in the graph.
func (a *AssetGraph) AssetCount() int { return len(a.byAssetID) }

// DependencyCount returns the number of distinct dependencies in the graph.
func (a *AssetGraph) DependencyCount() int { return len(a.byDependencyID) }
