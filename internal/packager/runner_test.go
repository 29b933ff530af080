package packager

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apex-build/corebuild/internal/assetgraph"
	"github.com/apex-build/corebuild/internal/bundler"
	"github.com/apex-build/corebuild/internal/config"
	"github.com/apex-build/corebuild/internal/plugin"
	"github.com/apex-build/corebuild/pkg/model"
)

// concatPackager concatenates each asset's code in order, joined with a
// newline, and emits a hash-reference placeholder for every referenced
// bundle so the substitution pass has something to do.
type concatPackager struct{}

func (concatPackager) Identity() plugin.Identity { return plugin.Identity{PackageName: "concat-packager"} }
func (concatPackager) Version() string            { return "1" }

func (concatPackager) Package(ctx context.Context, req plugin.PackageRequest) (*model.PackagedBundle, error) {
	var content []byte
	for _, id := range req.AssetOrder {
		content = append(content, req.AssetContents[id]...)
		content = append(content, '\n')
	}
	var refs []string
	for bundleID := range req.ReferencedBundles {
		content = append(content, []byte(hashReferenceToken(bundleID))...)
		refs = append(refs, string(bundleID))
	}
	return &model.PackagedBundle{
		BundleID: req.Bundle.ID,
		Content:  content,
		Info:     model.BundleInfo{HashReferences: refs},
	}, nil
}

// htmlPackager emits a script tag referencing the async bundle's entry
// asset id, simulating what a real HTML packager plugin would do before
// the core rewrites it to the bundle's public path.
type htmlPackager struct{ asyncEntryAssetID model.AssetID }

func (htmlPackager) Identity() plugin.Identity { return plugin.Identity{PackageName: "html-packager"} }
func (htmlPackager) Version() string           { return "1" }

func (p htmlPackager) Package(ctx context.Context, req plugin.PackageRequest) (*model.PackagedBundle, error) {
	html := fmt.Sprintf(
		`<html><body><script src="%s"></script><script src="%s"></script></body></html>`,
		p.asyncEntryAssetID, p.asyncEntryAssetID,
	)
	return &model.PackagedBundle{BundleID: req.Bundle.ID, Content: []byte(html)}, nil
}

func newAsset(path string, ft model.FileType, env *model.Environment, code string) *model.Asset {
	a := &model.Asset{FilePath: path, FileType: ft, Env: env, Code: []byte(code)}
	a.ID = model.ComputeAssetID(model.AssetIDInputs{EnvironmentID: env.ID, FilePath: path})
	return a
}

func newDep(specifier string, priority model.Priority, env *model.Environment) *model.Dependency {
	d := &model.Dependency{Specifier: specifier, Priority: priority, Env: env}
	d.UpdateID()
	return d
}

var testEnv = &model.Environment{ID: "env1", Context: model.ContextBrowser}

func TestPackageAllSubstitutesHashReferencePlaceholder(t *testing.T) {
	g := assetgraph.New()
	entryNode := g.AddEntry("main")

	entryDep := newDep("/a.js", model.PrioritySync, testEnv)
	depNode := g.AddDependency(entryNode, entryDep)
	g.SetDependencyState(depNode, assetgraph.ResolutionResolved)

	assetA := newAsset("/a.js", model.FileJS, testEnv, "console.log(1)")
	aNode, _ := g.AddOrMergeAsset(depNode, assetA, nil)

	lazyDep := newDep("/b.js", model.PriorityLazy, testEnv)
	lazyDepNode := g.AddDependency(aNode, lazyDep)
	g.SetDependencyState(lazyDepNode, assetgraph.ResolutionResolved)

	assetB := newAsset("/b.js", model.FileJS, testEnv, "console.log(2)")
	g.AddOrMergeAsset(lazyDepNode, assetB, nil)

	bg := bundler.NewPartitioner(g, 1024, 4).Partition()

	reg := config.NewRegistry()
	reg.RegisterPackager("js", func() plugin.Packager { return concatPackager{} })
	cfg := &config.ParcelConfig{Packagers: map[string]string{"*.js": "js"}}
	loader := config.NewPluginLoader(reg)

	runner := NewRunner(loader, cfg, nil)
	results, err := runner.PackageAll(context.Background(), bg, g)
	require.NoError(t, err)
	require.Len(t, results, 2)

	for _, pkg := range results {
		assert.NotContains(t, string(pkg.Content), "@@HASH_REF:", "placeholder should have been substituted")
	}
}

func TestPackageAllRewritesHTMLAndDedupsSecondOccurrence(t *testing.T) {
	g := assetgraph.New()
	entryNode := g.AddEntry("main")

	entryDep := newDep("/index.html", model.PrioritySync, testEnv)
	depNode := g.AddDependency(entryNode, entryDep)
	g.SetDependencyState(depNode, assetgraph.ResolutionResolved)

	htmlAsset := newAsset("/index.html", model.FileHTML, testEnv, "<html></html>")
	htmlNode, _ := g.AddOrMergeAsset(depNode, htmlAsset, nil)

	lazyDep := newDep("/b.js", model.PriorityLazy, testEnv)
	lazyDepNode := g.AddDependency(htmlNode, lazyDep)
	g.SetDependencyState(lazyDepNode, assetgraph.ResolutionResolved)

	assetB := newAsset("/b.js", model.FileJS, testEnv, "console.log(2)")
	g.AddOrMergeAsset(lazyDepNode, assetB, nil)

	bg := bundler.NewPartitioner(g, 1024, 4).Partition()

	reg := config.NewRegistry()
	reg.RegisterPackager("html", func() plugin.Packager { return htmlPackager{asyncEntryAssetID: assetB.ID} })
	reg.RegisterPackager("js", func() plugin.Packager { return concatPackager{} })
	cfg := &config.ParcelConfig{Packagers: map[string]string{"*.html": "html", "*.js": "js"}}
	loader := config.NewPluginLoader(reg)

	runner := NewRunner(loader, cfg, nil)
	results, err := runner.PackageAll(context.Background(), bg, g)
	require.NoError(t, err)

	var htmlResult *model.PackagedBundle
	for _, r := range results {
		if r.Info.Type == model.FileHTML {
			htmlResult = r
		}
	}
	require.NotNil(t, htmlResult)

	content := string(htmlResult.Content)
	assert.Contains(t, content, ".js\"></script>", "first script tag should be rewritten to the bundle's public path")
	assert.Contains(t, content, fmt.Sprintf(`src="%s"></script>`, assetB.ID), "second script tag with the same source should keep its original specifier")
}
