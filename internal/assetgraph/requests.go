package assetgraph

import (
	"context"

	"github.com/apex-build/corebuild/internal/plugin"
	"github.com/apex-build/corebuild/internal/request"
	"github.com/apex-build/corebuild/internal/transform"
	"github.com/apex-build/corebuild/pkg/model"
)

// pathRequest wraps dependency resolution (spec §4.4 step 1, spec §3:
// "PathRequest (resolve a specifier)") so the request tracker can memoize
// it across builds. Its id is the dependency's own id, which is already a
// deterministic hash of the specifier/environment/target fields spec §3
// requires a dependency id to be stable under.
type pathRequest struct {
	b   *Builder
	dep *model.Dependency
}

func (r *pathRequest) ID() string   { return "path:" + string(r.dep.ID) }
func (r *pathRequest) Kind() string { return "PathRequest" }

func (r *pathRequest) Run(ctx context.Context, _ *request.TrackerContext) (any, []model.Invalidation, error) {
	resolved, err := r.b.resolveDirect(ctx, r.dep)
	if err != nil {
		return nil, nil, err
	}
	var invs []model.Invalidation
	if resolved != nil && resolved.Code == nil {
		invs = append(invs, model.Invalidation{Kind: model.InvalidationFileChange, Key: resolved.FilePath})
	}
	return resolved, invs, nil
}

// assetResult is what an assetRequest's Run produces: the transformed asset
// plus the pipeline's accumulated dependencies/peers, matching what
// loadAndTransformDirect returns today.
type assetResult struct {
	Asset  *model.Asset
	Result *transform.Result
}

// assetRequest wraps resolve-to-asset loading and transformation (spec §4.4
// step 2, spec §3: "AssetRequest (transform a file)"). Its id is the same
// tuple that determines the resulting asset's own id (spec §8 invariant 1),
// so two dependencies that resolve to the same file/pipeline/query/env
// share one cached transform.
type assetRequest struct {
	b        *Builder
	dep      *model.Dependency
	resolved *plugin.ResolveResult
	assetID  model.AssetID
}

func (r *assetRequest) ID() string   { return "asset:" + string(r.assetID) }
func (r *assetRequest) Kind() string { return "AssetRequest" }

func (r *assetRequest) Run(ctx context.Context, _ *request.TrackerContext) (any, []model.Invalidation, error) {
	asset, result, err := r.b.loadAndTransformDirect(ctx, r.dep, r.resolved)
	if err != nil {
		return nil, nil, err
	}
	var invs []model.Invalidation
	if r.resolved.Code == nil {
		invs = append(invs, model.Invalidation{Kind: model.InvalidationFileChange, Key: r.resolved.FilePath})
	}
	return &assetResult{Asset: asset, Result: result}, invs, nil
}
