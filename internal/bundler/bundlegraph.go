// Package bundler implements the Bundler / ideal-graph partitioner (spec
// §4.7): consuming a completed asset graph and producing a BundleGraph.
package bundler

import (
	"github.com/apex-build/corebuild/internal/graph"
	"github.com/apex-build/corebuild/pkg/model"
)

// NodeKind is one of the bundle-graph's node kinds: Root, Bundle,
// BundleGroup, and AssetRef standing for an asset-graph asset. Asset-graph
// dependencies are not carried as bundle-graph nodes.
type NodeKind int

const (
	NodeRoot NodeKind = iota
	NodeBundle
	NodeBundleGroup
	NodeAssetRef
)

// EdgeKind enumerates the bundle-graph's edge relations (spec §3, §4.7).
type EdgeKind int

const (
	EdgeContains EdgeKind = iota
	EdgeBundleGroupToBundle
	EdgeReferences
	EdgeInternalAsync
	EdgeBundleSyncLoads
	EdgeBundleAsyncLoads
	EdgeRootEntryOf
	EdgeRootSharedBundleOf
	EdgeRootAsyncBundleOf
	EdgeRootTypeChangeBundleOf
)

// Node is the data carried at a bundle-graph node handle.
type Node struct {
	Kind NodeKind

	Bundle      *model.Bundle
	BundleGroup *model.BundleGroup
	AssetID     model.AssetID
}

// BundleGraph is the Bundler's output (spec §3, §4.7).
type BundleGraph struct {
	g      *graph.Graph[Node, EdgeKind]
	rootID graph.NodeID

	byBundleID map[model.BundleID]graph.NodeID
	assetNodes map[model.AssetID]graph.NodeID
}

func newBundleGraph() *BundleGraph {
	g := graph.New[Node, EdgeKind]()
	root := g.AddNode(Node{Kind: NodeRoot})
	return &BundleGraph{
		g:          g,
		rootID:     root,
		byBundleID: make(map[model.BundleID]graph.NodeID),
		assetNodes: make(map[model.AssetID]graph.NodeID),
	}
}

// Underlying exposes the generic graph for read-only traversal by the
// packager.
func (bg *BundleGraph) Underlying() *graph.Graph[Node, EdgeKind] { return bg.g }

// RootID returns the bundle graph's single Root node.
func (bg *BundleGraph) RootID() graph.NodeID { return bg.rootID }

func (bg *BundleGraph) assetNode(id model.AssetID) graph.NodeID {
	if n, ok := bg.assetNodes[id]; ok {
		return n
	}
	n := bg.g.AddNode(Node{Kind: NodeAssetRef, AssetID: id})
	bg.assetNodes[id] = n
	return n
}

func (bg *BundleGraph) newBundleNode(b *model.Bundle) graph.NodeID {
	n := bg.g.AddNode(Node{Kind: NodeBundle, Bundle: b})
	bg.byBundleID[b.ID] = n
	return n
}

func (bg *BundleGraph) newGroupNode(group *model.BundleGroup) graph.NodeID {
	return bg.g.AddNode(Node{Kind: NodeBundleGroup, BundleGroup: group})
}

func (bg *BundleGraph) addContains(bundleNode graph.NodeID, assetID model.AssetID) {
	bg.g.AddEdge(bundleNode, bg.assetNode(assetID), EdgeContains)
}

// Bundles returns every Bundle node's data.
func (bg *BundleGraph) Bundles() []*model.Bundle {
	out := make([]*model.Bundle, 0, len(bg.byBundleID))
	for _, n := range bg.byBundleID {
		out = append(out, bg.g.Node(n).Bundle)
	}
	return out
}

// BundleNodeID looks up a bundle's graph handle by id.
func (bg *BundleGraph) BundleNodeID(id model.BundleID) (graph.NodeID, bool) {
	n, ok := bg.byBundleID[id]
	return n, ok
}

// AssetsOf returns every asset id contained in bundle, in the order the
// Contains edges were recorded (the traversal order the bundler assigned).
func (bg *BundleGraph) AssetsOf(bundleNode graph.NodeID) []model.AssetID {
	var out []model.AssetID
	for _, e := range bg.g.Out(bundleNode) {
		if e.Data != EdgeContains {
			continue
		}
		n := bg.g.Node(e.To)
		if n.Kind == NodeAssetRef {
			out = append(out, n.AssetID)
		}
	}
	return out
}

// ContainingBundles returns every bundle node that contains assetID via a
// Contains edge.
func (bg *BundleGraph) ContainingBundles(assetID model.AssetID) []graph.NodeID {
	assetNode, ok := bg.assetNodes[assetID]
	if !ok {
		return nil
	}
	var out []graph.NodeID
	for _, e := range bg.g.In(assetNode) {
		if e.Data == EdgeContains {
			out = append(out, e.From)
		}
	}
	return out
}
