package packager

import (
	"path/filepath"

	"github.com/apex-build/corebuild/internal/builderrors"
	"github.com/apex-build/corebuild/internal/bundler"
	"github.com/apex-build/corebuild/internal/graph"
	"github.com/apex-build/corebuild/internal/plugin"
	"github.com/apex-build/corebuild/pkg/model"
)

func filepathMatch(pattern, name string) (bool, error) {
	return filepath.Match(pattern, name)
}

func pluginPackageRequest(b *model.Bundle, order []model.AssetID, contents map[model.AssetID][]byte, referenced map[model.BundleID]string) plugin.PackageRequest {
	return plugin.PackageRequest{
		Bundle:            b,
		AssetOrder:        order,
		AssetContents:     contents,
		ReferencedBundles: referenced,
	}
}

// referencedBundles maps every bundle reachable from bundleNode via a
// cross-bundle edge to its final public path, the mapping a packager
// plugin consults to resolve references it can satisfy without an
// after-the-fact substitution pass.
func referencedBundles(bg *bundler.BundleGraph, bundleNode graph.NodeID, publicPaths map[model.BundleID]string) map[model.BundleID]string {
	out := make(map[model.BundleID]string)
	for _, e := range bg.Underlying().Out(bundleNode) {
		if e.Data != bundler.EdgeBundleSyncLoads && e.Data != bundler.EdgeBundleAsyncLoads && e.Data != bundler.EdgeReferences {
			continue
		}
		target := bg.Underlying().Node(e.To)
		if target.Bundle == nil {
			continue
		}
		out[target.Bundle.ID] = publicPaths[target.Bundle.ID]
	}
	return out
}

func callPackager(p plugin.Packager, fn func() error) error {
	err := plugin.Call(p.Identity(), "", fn)
	if err != nil {
		return &builderrors.TransformationError{PluginPackage: p.Identity().PackageName, Wrapped: err}
	}
	return nil
}
