package bundler

import (
	"sort"

	"github.com/apex-build/corebuild/internal/assetgraph"
	"github.com/apex-build/corebuild/internal/graph"
	"github.com/apex-build/corebuild/internal/ids"
	"github.com/apex-build/corebuild/pkg/model"
)

// Partitioner implements the five-step ideal-graph algorithm (spec §4.7).
type Partitioner struct {
	ag *assetgraph.AssetGraph

	// SharedBundleMinSize and SharedBundleMaxParallelRequests resolve the
	// shared-bundle promotion Open Question (spec §9, resolved in
	// SPEC_FULL §4.7): an asset contained in >=2 bundles is promoted to a
	// shared bundle when its code length exceeds SharedBundleMinSize.
	// SharedBundleMaxParallelRequests is stored but not consulted by the
	// promotion step, and the containing bundles need not share a bundle
	// group.
	SharedBundleMinSize             int64
	SharedBundleMaxParallelRequests int
}

// NewPartitioner creates a Partitioner over a completed asset graph.
func NewPartitioner(ag *assetgraph.AssetGraph, minSize int64, maxParallel int) *Partitioner {
	if maxParallel <= 0 {
		maxParallel = 4
	}
	return &Partitioner{ag: ag, SharedBundleMinSize: minSize, SharedBundleMaxParallelRequests: maxParallel}
}

type groupState struct {
	group       *model.BundleGroup
	groupNode   graph.NodeID
	bundleCount int
}

// Partition consumes the completed asset graph and yields a BundleGraph
// (spec §4.7).
func (p *Partitioner) Partition() *BundleGraph {
	bg := newBundleGraph()
	publicIDs := ids.NewPublicIDAssigner(5)
	visited := make(map[graph.NodeID]bool)

	// Step 1: seed one bundle per entry dependency.
	for _, entryDepNode := range p.entryDependencyNodes() {
		dep := p.ag.DependencyNode(entryDepNode).Dependency
		assetNode, asset, ok := p.firstAssetChild(entryDepNode)
		if !ok {
			continue
		}

		bundle := p.newBundle(publicIDs, asset, dep.Env, false, false)
		bundleNode := bg.newBundleNode(bundle)
		group := &model.BundleGroup{ID: bundle.ID, EntryBundleID: bundle.ID}
		groupNode := bg.newGroupNode(group)
		bg.g.AddEdge(groupNode, bundleNode, EdgeBundleGroupToBundle)
		bg.g.AddEdge(bg.rootID, bundleNode, EdgeRootEntryOf)

		gs := &groupState{group: group, groupNode: groupNode, bundleCount: 1}
		p.placeAsset(bg, assetNode, asset, bundleNode, bundle, gs, publicIDs, visited)
	}

	p.promoteSharedBundles(bg, publicIDs)
	return bg
}

func (p *Partitioner) entryDependencyNodes() []graph.NodeID {
	var out []graph.NodeID
	for _, rootEdge := range p.ag.Underlying().Out(p.ag.RootID()) {
		entryNode := rootEdge.To
		for _, e := range p.ag.Underlying().Out(entryNode) {
			out = append(out, e.To)
		}
	}
	return out
}

func (p *Partitioner) firstAssetChild(depNode graph.NodeID) (graph.NodeID, *model.Asset, bool) {
	for _, e := range p.ag.Underlying().Out(depNode) {
		n := p.ag.AssetNode(e.To)
		if n.Asset != nil {
			return e.To, n.Asset, true
		}
	}
	return 0, nil, false
}

func (p *Partitioner) newBundle(publicIDs *ids.PublicIDAssigner, entry *model.Asset, env *model.Environment, isShared, isTypeChange bool) *model.Bundle {
	h := ids.New().WriteString(string(entry.ID)).WriteBool(isShared).WriteBool(isTypeChange)
	hashID := h.Sum64()
	bundleID := model.BundleID(ids.HexOf(hashID))
	return &model.Bundle{
		ID:           bundleID,
		PublicID:     publicIDs.Assign(hashID),
		Type:         entry.FileType,
		Env:          env,
		EntryAssetID: entry.ID,
		IsShared:     isShared,
		IsTypeChange: isTypeChange,
	}
}

// placeAsset implements step 2 of spec §4.7: walk the asset graph, placing
// each Sync-reachable asset in the current bundle (splitting into a
// type-change bundle at a file-type boundary), each Parallel-reachable
// asset into a new sibling bundle in the same group, and each Lazy
// dependency into a new bundle group.
func (p *Partitioner) placeAsset(bg *BundleGraph, assetNode graph.NodeID, asset *model.Asset, bundleNode graph.NodeID, bundle *model.Bundle, gs *groupState, publicIDs *ids.PublicIDAssigner, visited map[graph.NodeID]bool) {
	bg.addContains(bundleNode, asset.ID)
	key := assetNode
	if visited[key] {
		return
	}
	visited[key] = true

	for _, out := range p.ag.Underlying().Out(assetNode) {
		depData := p.ag.DependencyNode(out.To)
		if depData.Dependency == nil {
			continue
		}
		dep := depData.Dependency

		childNode, childAsset, ok := p.firstAssetChild(out.To)
		if !ok {
			continue
		}

		switch dep.Priority {
		case model.PriorityLazy, model.PriorityConditional:
			newBundle := p.newBundle(publicIDs, childAsset, dep.Env, false, false)
			newBundleNode := bg.newBundleNode(newBundle)
			group := &model.BundleGroup{ID: newBundle.ID, EntryBundleID: newBundle.ID}
			groupNode := bg.newGroupNode(group)
			bg.g.AddEdge(groupNode, newBundleNode, EdgeBundleGroupToBundle)
			bg.g.AddEdge(bundleNode, newBundleNode, EdgeBundleAsyncLoads)
			bg.g.AddEdge(bg.rootID, newBundleNode, EdgeRootAsyncBundleOf)
			newGS := &groupState{group: group, groupNode: groupNode, bundleCount: 1}
			p.placeAsset(bg, childNode, childAsset, newBundleNode, newBundle, newGS, publicIDs, visited)

		case model.PriorityParallel:
			newBundle := p.newBundle(publicIDs, childAsset, dep.Env, false, false)
			newBundleNode := bg.newBundleNode(newBundle)
			bg.g.AddEdge(gs.groupNode, newBundleNode, EdgeBundleGroupToBundle)
			bg.g.AddEdge(bundleNode, newBundleNode, EdgeBundleSyncLoads)
			bg.g.AddEdge(bg.rootID, newBundleNode, EdgeRootSharedBundleOf)
			gs.bundleCount++
			p.placeAsset(bg, childNode, childAsset, newBundleNode, newBundle, gs, publicIDs, visited)

		default: // Sync
			if childAsset.FileType != asset.FileType {
				tcBundle := p.newBundle(publicIDs, childAsset, dep.Env, false, true)
				tcBundleNode := bg.newBundleNode(tcBundle)
				bg.g.AddEdge(gs.groupNode, tcBundleNode, EdgeBundleGroupToBundle)
				bg.g.AddEdge(bg.rootID, tcBundleNode, EdgeRootTypeChangeBundleOf)
				gs.bundleCount++
				p.placeAsset(bg, childNode, childAsset, tcBundleNode, tcBundle, gs, publicIDs, visited)
			} else {
				p.placeAsset(bg, childNode, childAsset, bundleNode, bundle, gs, publicIDs, visited)
			}
		}
	}
}

// promoteSharedBundles implements step 3 of spec §4.7: compute an asset ->
// bundles-that-contain-it map, and promote any asset contained in two or
// more bundles to a shared bundle when its code length exceeds
// SharedBundleMinSize. No per-group parallel-request limit is applied.
func (p *Partitioner) promoteSharedBundles(bg *BundleGraph, publicIDs *ids.PublicIDAssigner) {
	assetIDs := make([]model.AssetID, 0, len(bg.assetNodes))
	for assetID := range bg.assetNodes {
		assetIDs = append(assetIDs, assetID)
	}
	sort.Slice(assetIDs, func(i, j int) bool { return assetIDs[i] < assetIDs[j] })

	seen := make(map[model.AssetID]bool)
	for _, assetID := range assetIDs {
		if seen[assetID] {
			continue
		}
		seen[assetID] = true

		containers := bg.ContainingBundles(assetID)
		if len(containers) < 2 {
			continue
		}
		asset := p.ag.AssetNode(p.assetGraphNodeFor(assetID)).Asset
		if asset == nil || int64(len(asset.Code)) <= p.SharedBundleMinSize {
			continue
		}

		sharedBundle := p.newBundle(publicIDs, asset, asset.Env, true, false)
		sharedNode := bg.newBundleNode(sharedBundle)
		bg.g.AddEdge(bg.rootID, sharedNode, EdgeRootSharedBundleOf)
		bg.addContains(sharedNode, assetID)

		for _, containerNode := range containers {
			bg.g.RemoveEdge(containerNode, bg.assetNode(assetID))
			bg.g.AddEdge(containerNode, sharedNode, EdgeReferences)
		}
	}
}

func (p *Partitioner) assetGraphNodeFor(id model.AssetID) graph.NodeID {
	n, _ := p.ag.AssetNodeByID(id)
	return n
}
