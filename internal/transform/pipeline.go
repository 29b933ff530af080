// Package transform implements the Transformer Pipeline (spec §4.5): the
// per-asset sequence of transformer plugins, including the critical
// re-lookup-on-file-type-change rule.
package transform

import (
	"context"

	"github.com/apex-build/corebuild/internal/builderrors"
	"github.com/apex-build/corebuild/internal/config"
	"github.com/apex-build/corebuild/internal/ids"
	"github.com/apex-build/corebuild/internal/plugin"
	"github.com/apex-build/corebuild/pkg/model"
)

// extensionForFileType maps a FileType back to the extension the plugin
// config's transformer globs key on, for the re-lookup step.
var extensionForFileType = map[model.FileType]string{
	model.FileJS:   ".js",
	model.FileJSX:  ".jsx",
	model.FileTS:   ".ts",
	model.FileTSX:  ".tsx",
	model.FileCSS:  ".css",
	model.FileHTML: ".html",
	model.FileJSON: ".json",
	model.FileYAML: ".yaml",
}

// Result is what a completed pipeline run produces for the asset that
// entered it (spec §4.5, §4.4 step 2).
type Result struct {
	// Asset is the final transformed asset, its id recomputed if the file
	// type changed during the run.
	Asset *model.Asset
	// Peers are discovered_assets accumulated across every transformer
	// call; the caller attaches the initial Asset to the parent dependency
	// and treats these as siblings (spec §4.5: "the first asset to reach
	// completion is the initial asset... any other discovered_assets
	// become peers").
	Peers         []*model.Asset
	Dependencies  []*model.Dependency
	Invalidations []model.Invalidation
}

// Runner applies a configured transformer pipeline to one asset at a time.
type Runner struct {
	loader *config.PluginLoader
	cfg    *config.ParcelConfig
}

// NewRunner creates a Runner bound to a resolved plugin config.
func NewRunner(loader *config.PluginLoader, cfg *config.ParcelConfig) *Runner {
	return &Runner{loader: loader, cfg: cfg}
}

// Run drives asset through its configured pipeline to completion, including
// any number of file-type-triggered pipeline re-selections (spec §4.5).
func (r *Runner) Run(ctx context.Context, asset *model.Asset) (*Result, error) {
	current := asset

	chain, err := r.loader.TransformersFor(r.cfg, current.FilePath, current.Pipeline)
	if err != nil {
		return nil, err
	}
	currentID := combinedPipelineID(chain)

	var deps []*model.Dependency
	var peers []*model.Asset
	var invs []model.Invalidation

	for i := 0; i < len(chain); i++ {
		t := chain[i]
		if t.ShouldSkip(current) {
			continue
		}

		beforeType := current.FileType
		res, err := callTransform(ctx, t, current)
		if err != nil {
			return nil, err
		}
		current = res.Asset
		deps = append(deps, res.Dependencies...)
		peers = append(peers, res.DiscoveredAssets...)
		for _, path := range res.InvalidateOnFileChange {
			invs = append(invs, model.Invalidation{Kind: model.InvalidationFileChange, Key: path})
		}

		if current.FileType == beforeType {
			continue
		}
		current.UpdateID()

		// File type changed: re-look-up the pipeline for the new
		// extension. Re-select only if the new pipeline's identity
		// differs (spec §4.5, §8 property 7).
		newExt, ok := extensionForFileType[current.FileType]
		if !ok {
			continue
		}
		newChain, err := r.loader.TransformersFor(r.cfg, "asset"+newExt, current.Pipeline)
		if err != nil {
			continue
		}
		newID := combinedPipelineID(newChain)
		if newID == currentID {
			continue
		}

		chain = newChain
		currentID = newID
		i = -1
	}

	return &Result{Asset: current, Peers: peers, Dependencies: deps, Invalidations: invs}, nil
}

func callTransform(ctx context.Context, t plugin.Transformer, asset *model.Asset) (*plugin.TransformResult, error) {
	var result *plugin.TransformResult
	err := plugin.Call(t.Identity(), asset.FilePath, func() error {
		var callErr error
		result, callErr = t.Transform(ctx, asset)
		return callErr
	})
	if err != nil {
		return nil, &builderrors.TransformationError{
			PluginPackage: t.Identity().PackageName,
			AssetPath:     asset.FilePath,
			Wrapped:       err,
		}
	}
	if result == nil || result.Asset == nil {
		return nil, &builderrors.TransformationError{
			PluginPackage: t.Identity().PackageName,
			AssetPath:     asset.FilePath,
			Wrapped:       errNilAssetResult,
		}
	}
	return result, nil
}

var errNilAssetResult = transformNilAssetError{}

type transformNilAssetError struct{}

func (transformNilAssetError) Error() string {
	return "transformer returned a nil asset; pipeline could not reach completion"
}

func combinedPipelineID(chain []plugin.Transformer) uint64 {
	h := ids.New()
	for _, t := range chain {
		h.WriteUint64(t.ID())
	}
	return h.Sum64()
}
