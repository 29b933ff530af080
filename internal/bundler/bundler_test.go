package bundler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apex-build/corebuild/internal/assetgraph"
	"github.com/apex-build/corebuild/internal/graph"
	"github.com/apex-build/corebuild/pkg/model"
)

func newAsset(path string, ft model.FileType, env *model.Environment, code string) *model.Asset {
	a := &model.Asset{
		FilePath: path,
		FileType: ft,
		Env:      env,
		Code:     []byte(code),
	}
	a.ID = model.ComputeAssetID(model.AssetIDInputs{EnvironmentID: env.ID, FilePath: path})
	return a
}

func newDep(specifier string, priority model.Priority, env *model.Environment) *model.Dependency {
	d := &model.Dependency{Specifier: specifier, Priority: priority, Env: env}
	d.UpdateID()
	return d
}

var testEnv = &model.Environment{ID: "env1", Context: model.ContextBrowser}

// linearGraph builds a two-asset sync chain: entry -> a.js -> b.js.
func linearGraph() *assetgraph.AssetGraph {
	g := assetgraph.New()
	entryNode := g.AddEntry("main")

	entryDep := newDep("/a.js", model.PrioritySync, testEnv)
	depNode := g.AddDependency(entryNode, entryDep)
	g.SetDependencyState(depNode, assetgraph.ResolutionResolved)

	assetA := newAsset("/a.js", model.FileJS, testEnv, "import './b'")
	aNode, _ := g.AddOrMergeAsset(depNode, assetA, nil)

	childDep := newDep("/b.js", model.PrioritySync, testEnv)
	childDepNode := g.AddDependency(aNode, childDep)
	g.SetDependencyState(childDepNode, assetgraph.ResolutionResolved)

	assetB := newAsset("/b.js", model.FileJS, testEnv, "export const b = 1;")
	g.AddOrMergeAsset(childDepNode, assetB, nil)

	return g
}

func TestPartitionSingleEntryProducesOneBundleWithBothAssets(t *testing.T) {
	ag := linearGraph()
	p := NewPartitioner(ag, 1024, 4)
	bg := p.Partition()

	bundles := bg.Bundles()
	require.Len(t, bundles, 1)
	assets := bg.AssetsOf(mustBundleNode(t, bg, bundles[0].ID))
	assert.Len(t, assets, 2)
}

func TestPartitionDynamicImportProducesSeparateBundleWithAsyncEdge(t *testing.T) {
	g := assetgraph.New()
	entryNode := g.AddEntry("main")

	entryDep := newDep("/a.js", model.PrioritySync, testEnv)
	depNode := g.AddDependency(entryNode, entryDep)
	g.SetDependencyState(depNode, assetgraph.ResolutionResolved)

	assetA := newAsset("/a.js", model.FileJS, testEnv, "import('./b')")
	aNode, _ := g.AddOrMergeAsset(depNode, assetA, nil)

	lazyDep := newDep("/b.js", model.PriorityLazy, testEnv)
	lazyDepNode := g.AddDependency(aNode, lazyDep)
	g.SetDependencyState(lazyDepNode, assetgraph.ResolutionResolved)

	assetB := newAsset("/b.js", model.FileJS, testEnv, "export const b = 1;")
	g.AddOrMergeAsset(lazyDepNode, assetB, nil)

	p := NewPartitioner(g, 1024, 4)
	bg := p.Partition()

	require.Len(t, bg.Bundles(), 2)

	var entryBundleNode, asyncBundleNode graph.NodeID
	for _, b := range bg.Bundles() {
		n, _ := bg.BundleNodeID(b.ID)
		if b.EntryAssetID == assetA.ID {
			entryBundleNode = n
		} else {
			asyncBundleNode = n
		}
	}
	require.NotZero(t, entryBundleNode)
	require.NotZero(t, asyncBundleNode)

	foundAsyncEdge := false
	for _, e := range bg.Underlying().Out(entryBundleNode) {
		if e.To == asyncBundleNode && e.Data == EdgeBundleAsyncLoads {
			foundAsyncEdge = true
		}
	}
	assert.True(t, foundAsyncEdge, "expected a BundleAsyncLoads edge from the entry bundle to the lazily-loaded bundle")
}

func TestPartitionFileTypeChangeSplitsIntoTypeChangeBundle(t *testing.T) {
	g := assetgraph.New()
	entryNode := g.AddEntry("main")

	entryDep := newDep("/a.js", model.PrioritySync, testEnv)
	depNode := g.AddDependency(entryNode, entryDep)
	g.SetDependencyState(depNode, assetgraph.ResolutionResolved)

	assetA := newAsset("/a.js", model.FileJS, testEnv, "import './b.css'")
	aNode, _ := g.AddOrMergeAsset(depNode, assetA, nil)

	cssDep := newDep("/b.css", model.PrioritySync, testEnv)
	cssDepNode := g.AddDependency(aNode, cssDep)
	g.SetDependencyState(cssDepNode, assetgraph.ResolutionResolved)

	assetCSS := newAsset("/b.css", model.FileCSS, testEnv, "body{}")
	g.AddOrMergeAsset(cssDepNode, assetCSS, nil)

	p := NewPartitioner(g, 1024, 4)
	bg := p.Partition()

	require.Len(t, bg.Bundles(), 2)
	var cssBundle *model.Bundle
	for _, b := range bg.Bundles() {
		if b.IsTypeChange {
			cssBundle = b
		}
	}
	require.NotNil(t, cssBundle)
	assert.Equal(t, model.FileCSS, cssBundle.Type)
}

func TestPartitionPublicIDsAreUniquePerBundle(t *testing.T) {
	g := assetgraph.New()
	entryNode := g.AddEntry("main")

	entryDep := newDep("/a.js", model.PrioritySync, testEnv)
	depNode := g.AddDependency(entryNode, entryDep)
	g.SetDependencyState(depNode, assetgraph.ResolutionResolved)

	assetA := newAsset("/a.js", model.FileJS, testEnv, "import('./b'); import('./c')")
	aNode, _ := g.AddOrMergeAsset(depNode, assetA, nil)

	for _, path := range []string{"/b.js", "/c.js"} {
		lazyDep := newDep(path, model.PriorityLazy, testEnv)
		lazyDepNode := g.AddDependency(aNode, lazyDep)
		g.SetDependencyState(lazyDepNode, assetgraph.ResolutionResolved)
		asset := newAsset(path, model.FileJS, testEnv, "export const v = 1;")
		g.AddOrMergeAsset(lazyDepNode, asset, nil)
	}

	p := NewPartitioner(g, 1024, 4)
	bg := p.Partition()

	bundles := bg.Bundles()
	require.Len(t, bundles, 3)
	seen := make(map[string]bool)
	for _, b := range bundles {
		assert.GreaterOrEqual(t, len(b.PublicID), 5)
		assert.False(t, seen[b.PublicID], "public id %q reused across bundles", b.PublicID)
		seen[b.PublicID] = true
	}
}

func mustBundleNode(t *testing.T, bg *BundleGraph, id model.BundleID) graph.NodeID {
	t.Helper()
	n, ok := bg.BundleNodeID(id)
	require.True(t, ok)
	return n
}
