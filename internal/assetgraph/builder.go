package assetgraph

import (
	"context"

	"github.com/apex-build/corebuild/internal/builderrors"
	"github.com/apex-build/corebuild/internal/fs"
	"github.com/apex-build/corebuild/internal/graph"
	"github.com/apex-build/corebuild/internal/plugin"
	"github.com/apex-build/corebuild/internal/request"
	"github.com/apex-build/corebuild/internal/symbols"
	"github.com/apex-build/corebuild/internal/transform"
	"github.com/apex-build/corebuild/pkg/model"
)

// Builder drives the discovery loop (spec §4.4): PathRequest -> AssetRequest
// -> add asset node -> enqueue new dependencies -> dedupe, repeated until
// the work queue is empty.
type Builder struct {
	filesystem fs.FileSystem
	resolvers  []plugin.Resolver
	runner     *transform.Runner
	tracker    *symbols.Tracker

	// reqTracker, when set via SetTracker, routes resolution and
	// transformation through the request tracker (internal/request) so
	// repeated Build calls against an unchanged file reuse the prior
	// PathRequest/AssetRequest result instead of re-resolving and
	// re-transforming it (spec §4.1, scenario S5). nil means run both
	// steps directly, which is what every Build call did before a Tracker
	// was threaded in and is what the in-memory unit tests below exercise.
	reqTracker *request.Tracker
}

// NewBuilder creates a Builder. resolvers is the configured resolver chain
// (spec §4.2: "first resolver to return a non-nil result wins").
func NewBuilder(filesystem fs.FileSystem, resolvers []plugin.Resolver, runner *transform.Runner, tracker *symbols.Tracker) *Builder {
	return &Builder{filesystem: filesystem, resolvers: resolvers, runner: runner, tracker: tracker}
}

// SetTracker installs the request tracker this Builder's resolve/transform
// steps should memoize through. Call it once, before Build, on a Builder
// meant to be reused across rebuilds (spec §4.1).
func (b *Builder) SetTracker(t *request.Tracker) {
	b.reqTracker = t
}

type queueItem struct {
	depNode graph.NodeID
	dep     *model.Dependency
}

// Build runs the discovery loop from entryDeps (one per target per entry,
// spec §4.4) to completion, returning the finished asset graph. Partial
// failures are surfaced immediately rather than retried (spec §4.4:
// "tolerates partial failures only by surfacing them; it does not retry").
func (b *Builder) Build(ctx context.Context, entryDeps []*model.Dependency) (*AssetGraph, error) {
	g := New()
	entry := g.AddEntry("entry")

	queue := make([]queueItem, 0, len(entryDeps))
	for _, dep := range entryDeps {
		dep.Flags.IsEntry = true
		dep.UpdateID()
		node := g.AddDependency(entry, dep)
		queue = append(queue, queueItem{depNode: node, dep: dep})
	}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resolved, err := b.resolveViaTracker(ctx, item.dep)
		if err != nil {
			if item.dep.Flags.IsOptional {
				g.SetDependencyState(item.depNode, ResolutionDeferred)
				continue
			}
			return nil, err
		}
		if resolved == nil {
			if item.dep.Flags.IsOptional {
				g.SetDependencyState(item.depNode, ResolutionDeferred)
				continue
			}
			return nil, &builderrors.ResolutionError{Specifier: item.dep.Specifier}
		}
		g.SetDependencyState(item.depNode, ResolutionResolved)

		asset, result, err := b.loadAndTransformViaTracker(ctx, item.dep, resolved)
		if err != nil {
			return nil, err
		}

		assetNode, isNew := g.AddOrMergeAsset(item.depNode, asset, item.dep.RequestedSymbols)
		if err := b.propagate(g, item.depNode, item.dep, asset); err != nil {
			return nil, err
		}
		if !isNew {
			continue
		}

		for _, peer := range result.Peers {
			peer.Env = asset.Env
			peer.UpdateID()
			g.AddOrMergeAsset(item.depNode, peer, nil)
		}

		for _, newDep := range result.Dependencies {
			newDep.SourceAssetID = asset.ID
			if newDep.Env == nil {
				newDep.Env = asset.Env
			}
			newDep.UpdateID()
			depNode := g.AddDependency(assetNode, newDep)
			queue = append(queue, queueItem{depNode: depNode, dep: newDep})
		}
	}

	return g, nil
}

// resolveViaTracker runs dependency resolution, memoized through
// reqTracker's PathRequest when one is installed (spec §3: "PathRequest
// (resolve a specifier)"); with no tracker it calls resolveDirect as every
// Build call did before SetTracker existed.
func (b *Builder) resolveViaTracker(ctx context.Context, dep *model.Dependency) (*plugin.ResolveResult, error) {
	if b.reqTracker == nil {
		return b.resolveDirect(ctx, dep)
	}
	return request.Run[*plugin.ResolveResult](ctx, b.reqTracker, &pathRequest{b: b, dep: dep})
}

// loadAndTransformViaTracker runs asset loading and transformation, memoized
// through reqTracker's AssetRequest when one is installed (spec §3:
// "AssetRequest (transform a file)"); with no tracker it calls
// loadAndTransformDirect directly.
func (b *Builder) loadAndTransformViaTracker(ctx context.Context, dep *model.Dependency, resolved *plugin.ResolveResult) (*model.Asset, *transform.Result, error) {
	if b.reqTracker == nil {
		return b.loadAndTransformDirect(ctx, dep, resolved)
	}
	assetID := computeAssetID(dep, resolved)
	res, err := request.Run[*assetResult](ctx, b.reqTracker, &assetRequest{b: b, dep: dep, resolved: resolved, assetID: assetID})
	if err != nil {
		return nil, nil, err
	}
	return res.Asset, res.Result, nil
}

// computeAssetID precomputes the id an asset resolved from dep/resolved
// will carry, so assetRequest can be looked up in the tracker before the
// transform pipeline actually runs (spec §8 invariant 1: the asset id is a
// hash of environment, file path, pipeline, query and unique key).
func computeAssetID(dep *model.Dependency, resolved *plugin.ResolveResult) model.AssetID {
	envID := model.EnvironmentID("")
	if dep.Env != nil {
		envID = dep.Env.ID
	}
	pipeline := resolved.Pipeline
	if pipeline == "" {
		pipeline = dep.Pipeline
	}
	return model.ComputeAssetID(model.AssetIDInputs{
		EnvironmentID: envID,
		FilePath:      resolved.FilePath,
		Pipeline:      pipeline,
		Query:         resolved.Query,
	})
}

// resolveDirect implements spec §4.4 step 1: the first resolver to return a
// non-nil result wins; nil with no error means no resolver matched, which
// Build treats as deferred for an optional dependency and as a
// ResolutionError otherwise.
func (b *Builder) resolveDirect(ctx context.Context, dep *model.Dependency) (*plugin.ResolveResult, error) {
	for _, r := range b.resolvers {
		var result *plugin.ResolveResult
		err := plugin.Call(r.Identity(), dep.Specifier, func() error {
			var callErr error
			result, callErr = r.Resolve(ctx, dep)
			return callErr
		})
		if err != nil {
			return nil, err
		}
		if result != nil {
			return result, nil
		}
	}
	return nil, nil
}

// loadAndTransformDirect implements spec §4.4 step 2: compute the asset id,
// load code and any sibling sourcemap, then run the transformer pipeline.
func (b *Builder) loadAndTransformDirect(ctx context.Context, dep *model.Dependency, resolved *plugin.ResolveResult) (*model.Asset, *transform.Result, error) {
	envID := model.EnvironmentID("")
	if dep.Env != nil {
		envID = dep.Env.ID
	}
	pipeline := resolved.Pipeline
	if pipeline == "" {
		pipeline = dep.Pipeline
	}

	asset := &model.Asset{
		FilePath: resolved.FilePath,
		Pipeline: pipeline,
		Query:    resolved.Query,
		Env:      dep.Env,
		FileType: fileTypeForPath(resolved.FilePath),
	}
	asset.ID = model.ComputeAssetID(model.AssetIDInputs{
		EnvironmentID: envID,
		FilePath:      asset.FilePath,
		Pipeline:      asset.Pipeline,
		Query:         asset.Query,
		UniqueKey:     asset.UniqueKey,
	})

	if resolved.IsSource != nil {
		asset.Flags.IsSource = *resolved.IsSource
	} else {
		asset.Flags.IsSource = true
	}
	if resolved.SideEffects != nil {
		asset.Flags.SideEffects = *resolved.SideEffects
	} else {
		asset.Flags.SideEffects = true
	}

	if resolved.Code != nil {
		asset.Code = resolved.Code
	} else {
		code, err := b.filesystem.Read(resolved.FilePath)
		if err != nil {
			return nil, nil, &builderrors.ResolutionError{Specifier: dep.Specifier}
		}
		asset.Code = code
	}

	if sourceMapEligible(asset.FileType) {
		asset.SourceMap = findSourceMap(b.filesystem, asset.FilePath, asset.Code)
	}

	result, err := b.runner.Run(ctx, asset)
	if err != nil {
		return nil, nil, err
	}
	return result.Asset, result, nil
}

// propagate implements the recording half of spec §4.6: for each symbol dep
// requests, resolve it against asset's exports and record the final
// location, propagating newly-satisfied symbols to the parent asset's own
// incoming dependencies when the parent re-exports under the same local
// name.
func (b *Builder) propagate(g *AssetGraph, depNode graph.NodeID, dep *model.Dependency, asset *model.Asset) error {
	return b.propagateVisited(g, depNode, dep, asset, make(map[graph.NodeID]bool))
}

func (b *Builder) propagateVisited(g *AssetGraph, depNode graph.NodeID, dep *model.Dependency, asset *model.Asset, visited map[graph.NodeID]bool) error {
	if visited[depNode] {
		return nil
	}
	visited[depNode] = true

	for sym := range dep.RequestedSymbols {
		strong, _ := symbols.Resolve(sym, asset.Exports)
		if strong == nil {
			continue
		}
		isNew, err := b.tracker.Record(dep, asset.ID, *strong)
		if err != nil {
			return err
		}
		if !isNew {
			continue
		}

		parentAssetNode, ok := g.ParentAssetOf(depNode)
		if !ok {
			continue
		}
		parentAsset := g.AssetNode(parentAssetNode).Asset
		for _, in := range g.g.In(parentAssetNode) {
			parentDepData := g.g.Node(in.From)
			if parentDepData.Kind != NodeDependency || parentDepData.Dependency == nil {
				continue
			}
			for _, exp := range parentAsset.Exports {
				if exp.Local != strong.Local {
					continue
				}
				if err := b.propagateVisited(g, in.From, parentDepData.Dependency, parentAsset, visited); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
