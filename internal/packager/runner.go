// Package packager implements the Packager (spec §4.8): driving the
// registered packager plugin per bundle and owning the cross-cutting
// behaviors the spec marks non-negotiable — hash-reference placeholder
// substitution, HTML script/link rewriting, deterministic cache-key
// composition, and the large-blob threshold flag.
package packager

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/apex-build/corebuild/internal/assetgraph"
	"github.com/apex-build/corebuild/internal/builderrors"
	"github.com/apex-build/corebuild/internal/bundler"
	"github.com/apex-build/corebuild/internal/cache"
	"github.com/apex-build/corebuild/internal/config"
	"github.com/apex-build/corebuild/internal/ids"
	"github.com/apex-build/corebuild/pkg/model"
)

// Runner packages every bundle in a BundleGraph and commits the results to
// the cache as a single commit-group (spec §4.9: "one transaction per
// commit-group").
type Runner struct {
	loader *config.PluginLoader
	cfg    *config.ParcelConfig
	cache  *cache.Cache

	// LargeBlobThreshold is the implementation-defined size, in bytes,
	// above which a bundle is marked is_large_blob (spec §4.8).
	LargeBlobThreshold int64
}

// NewRunner builds a Runner. cacheStore may be nil for callers that only
// want packaged bytes without committing them (e.g. tests).
func NewRunner(loader *config.PluginLoader, cfg *config.ParcelConfig, cacheStore *cache.Cache) *Runner {
	return &Runner{loader: loader, cfg: cfg, cache: cacheStore, LargeBlobThreshold: 5 << 20}
}

// PackageAll packages every bundle node in bg, substitutes hash-reference
// placeholders, rewrites HTML script/link tags to final public paths, and
// (if a cache is configured) commits each bundle's content, map (when
// present) and JSON-encoded info blobs in one transaction.
func (r *Runner) PackageAll(ctx context.Context, bg *bundler.BundleGraph, ag *assetgraph.AssetGraph) ([]*model.PackagedBundle, error) {
	publicPaths := publicPathsOf(bg)

	packaged := make([]*model.PackagedBundle, 0, len(bg.Bundles()))
	for _, b := range bg.Bundles() {
		pkg, err := r.packageOne(ctx, bg, ag, b, publicPaths)
		if err != nil {
			return nil, err
		}
		packaged = append(packaged, pkg)
	}

	if r.cache != nil {
		entries := make(map[string][]byte, len(packaged)*3)
		for _, p := range packaged {
			entries[p.Info.CacheKeys.Content] = p.Content
			if p.Map != nil {
				entries[p.Info.CacheKeys.Map] = p.Map
			}
			info, err := json.Marshal(p.Info)
			if err != nil {
				return nil, &builderrors.CacheIOError{Operation: "packager encode bundle info", Wrapped: err}
			}
			entries[p.Info.CacheKeys.Info] = info
		}
		if err := r.cache.CommitGroup(ctx, entries); err != nil {
			return nil, &builderrors.CacheIOError{Operation: "packager commit group", Wrapped: err}
		}
	}

	return packaged, nil
}

func (r *Runner) packageOne(ctx context.Context, bg *bundler.BundleGraph, ag *assetgraph.AssetGraph, b *model.Bundle, publicPaths map[model.BundleID]string) (*model.PackagedBundle, error) {
	name, ok := packagerNameFor(r.cfg.Packagers, b.Type)
	if !ok {
		return nil, &builderrors.ConfigurationError{Message: fmt.Sprintf("no packager configured for bundle type %q", b.Type)}
	}
	pkgPlugin, err := r.loader.PackagerFor(name)
	if err != nil {
		return nil, &builderrors.ConfigurationError{Message: err.Error()}
	}

	bundleNode, ok := bg.BundleNodeID(b.ID)
	if !ok {
		return nil, fmt.Errorf("packager: bundle %s has no graph node", b.ID)
	}

	assetOrder := bg.AssetsOf(bundleNode)
	contents := make(map[model.AssetID][]byte, len(assetOrder))
	for _, assetID := range assetOrder {
		if n, ok := ag.AssetNodeByID(assetID); ok {
			if a := ag.AssetNode(n).Asset; a != nil {
				contents[assetID] = a.Code
			}
		}
	}

	req := pluginPackageRequest(b, assetOrder, contents, referencedBundles(bg, bundleNode, publicPaths))

	start := time.Now()

	var result *model.PackagedBundle
	callErr := callPackager(pkgPlugin, func() error {
		out, err := pkgPlugin.Package(ctx, req)
		if err != nil {
			return err
		}
		result = out
		return nil
	})
	if callErr != nil {
		return nil, callErr
	}

	result.Content = substituteHashReferences(result.Content, result.Info.HashReferences, publicPaths)
	if b.Type == model.FileHTML {
		result.Content = rewriteHTML(result.Content, htmlReferenceMap(bg, bundleNode, publicPaths))
	}

	result.Info.Size = int64(len(result.Content))
	result.Info.IsLargeBlob = result.Info.Size > r.LargeBlobThreshold
	result.Info.CacheKeys = cacheKeysFor(pkgPlugin, b.ID)
	result.Info.Type = b.Type
	result.Info.Hash = ids.New().WriteString(string(b.ID)).WriteString(string(result.Content)).Hex()
	elapsed := time.Since(start).Milliseconds()
	result.Info.TimeMS = &elapsed
	return result, nil
}

// publicPathsOf assigns every bundle's final public path: its public id
// plus its file-type extension.
func publicPathsOf(bg *bundler.BundleGraph) map[model.BundleID]string {
	out := make(map[model.BundleID]string, len(bg.Bundles()))
	for _, b := range bg.Bundles() {
		out[b.ID] = fmt.Sprintf("%s.%s", b.PublicID, b.Type)
	}
	return out
}

func packagerNameFor(packagers map[string]string, bundleType model.BundleType) (string, bool) {
	synthetic := "bundle." + string(bundleType)
	var best string
	bestLen := -1
	for glob, name := range packagers {
		ok, err := filepathMatch(glob, synthetic)
		if err == nil && ok && len(glob) > bestLen {
			best = name
			bestLen = len(glob)
		}
	}
	if bestLen < 0 {
		return "", false
	}
	return best, true
}
