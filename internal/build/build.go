// Package build wires every other layer into one top-level entry point
// (spec §2 data flow): targets are resolved once per entry, each target's
// asset graph is discovered, the bundler partitions it, and the packager
// produces and caches the final bundle bytes.
//
// Build owns its Tracker, Cache and plugin config explicitly and installs
// none of them as package-level state (Design Notes: "avoid process-wide
// singletons entirely") — a host process can run several Builders
// concurrently, each against its own filesystem root and cache.
package build

import (
	"context"
	"fmt"
	"time"

	"github.com/apex-build/corebuild/internal/assetgraph"
	"github.com/apex-build/corebuild/internal/bundler"
	"github.com/apex-build/corebuild/internal/cache"
	"github.com/apex-build/corebuild/internal/config"
	"github.com/apex-build/corebuild/internal/fs"
	"github.com/apex-build/corebuild/internal/logging"
	"github.com/apex-build/corebuild/internal/metrics"
	"github.com/apex-build/corebuild/internal/options"
	"github.com/apex-build/corebuild/internal/packager"
	"github.com/apex-build/corebuild/internal/plugin"
	"github.com/apex-build/corebuild/internal/request"
	"github.com/apex-build/corebuild/internal/symbols"
	"github.com/apex-build/corebuild/internal/target"
	"github.com/apex-build/corebuild/internal/tracing"
	"github.com/apex-build/corebuild/internal/transform"
	"github.com/apex-build/corebuild/pkg/model"
)

// Builder runs builds against one project root. It is safe to reuse across
// builds — reuse is what lets the request tracker's memoization
// (internal/request) pay off on a rebuild — but a single Builder must not
// be driven concurrently by two Build calls sharing the same Cache.
type Builder struct {
	FileSystem  fs.FileSystem
	Registry    *config.Registry
	EnvRegistry *model.Registry
	Cache       *cache.Cache
	Options     options.Options

	// Tracker is the request tracker (internal/request) this Builder's
	// asset graph discovery routes resolution/transformation through. It
	// is created once in New and reused across every Build call so an
	// unchanged file's PathRequest/AssetRequest is served from memo rather
	// than re-run (spec §4.1, scenario S5 — "a.js's asset request is
	// reused from cache... b.js's asset request re-runs").
	Tracker *request.Tracker
}

// New creates a Builder. cacheStore may be nil to run without a persistent
// cache (e.g. a one-shot CLI build).
func New(filesystem fs.FileSystem, registry *config.Registry, cacheStore *cache.Cache, opts options.Options) *Builder {
	return &Builder{
		FileSystem:  filesystem,
		Registry:    registry,
		EnvRegistry: model.NewRegistry(),
		Cache:       cacheStore,
		Options:     opts,
		Tracker:     request.NewTracker(0),
	}
}

// SetChangeSet installs the set of external changes (spec §4.1) the next
// Build call's reused requests should check their invalidations against.
// A caller driving repeated builds against the same Builder (a watch-mode
// host, or an incremental-rebuild test) calls this once per rebuild with
// whatever changed since the last Build; a one-shot build can leave it
// unset, in which case every request is a first run anyway.
func (b *Builder) SetChangeSet(cs model.ChangeSet) {
	b.Tracker.SetChangeSet(cs)
}

// TargetResult is one resolved target's full output.
type TargetResult struct {
	Target          *model.Target
	AssetGraph      *assetgraph.AssetGraph
	BundleGraph     *bundler.BundleGraph
	PackagedBundles []*model.PackagedBundle
}

// Result is the output of one Build call across every resolved target.
type Result struct {
	Targets []*TargetResult
}

// Build runs the full pipeline for every target resolved from
// packageJSONPath, against the entries configured on the Builder's Options
// (spec §2: "Targets -> entry dependencies -> Asset Graph Builder ->
// Bundler -> Packager").
func (b *Builder) Build(ctx context.Context, packageJSONPath string, custom []target.CustomTargetDescriptor) (*Result, error) {
	ctx, span := tracing.StartSpan(ctx, "Build", packageJSONPath)
	defer span.End()
	start := time.Now()

	cfg, err := b.loadConfig(ctx)
	if err != nil {
		return nil, err
	}

	pkg, err := config.LoadPackageJSON(b.FileSystem, packageJSONPath)
	if err != nil {
		return nil, err
	}

	targets, err := target.NewResolver(b.EnvRegistry, b.Options.DefaultTargetOptions).Resolve(pkg, custom)
	if err != nil {
		return nil, err
	}

	loader := config.NewPluginLoader(b.Registry)
	resolvers, err := loader.Resolvers(cfg)
	if err != nil {
		return nil, err
	}

	result := &Result{Targets: make([]*TargetResult, 0, len(targets))}
	for _, t := range targets {
		tr, err := b.buildTarget(ctx, t, loader, resolvers, cfg)
		if err != nil {
			return nil, fmt.Errorf("build: target %s: %w", t.Name, err)
		}
		result.Targets = append(result.Targets, tr)
	}

	logging.S().Infow("build complete",
		"targets", len(result.Targets),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

func (b *Builder) loadConfig(ctx context.Context) (*config.ParcelConfig, error) {
	path := b.Options.ConfigPath
	if path == "" {
		path = b.Options.FallbackConfig
	}
	if path == "" {
		return &config.ParcelConfig{}, nil
	}
	return config.LoadConfig(b.FileSystem, path)
}

func (b *Builder) buildTarget(ctx context.Context, t *model.Target, loader *config.PluginLoader, resolvers []plugin.Resolver, cfg *config.ParcelConfig) (*TargetResult, error) {
	symTracker := symbols.NewTracker()
	transformRunner := transform.NewRunner(loader, cfg)
	assetBuilder := assetgraph.NewBuilder(b.FileSystem, resolvers, transformRunner, symTracker)
	assetBuilder.SetTracker(b.Tracker)

	entryDeps := make([]*model.Dependency, 0, len(b.Options.Entries))
	for _, entry := range b.Options.Entries {
		dep := &model.Dependency{
			Specifier:     entry,
			SpecifierType: model.SpecifierESM,
			Priority:      model.PrioritySync,
			Env:           t.Env,
			Flags:         model.DependencyFlags{IsEntry: true},
		}
		dep.UpdateID()
		entryDeps = append(entryDeps, dep)
	}

	ag, err := assetBuilder.Build(ctx, entryDeps)
	if err != nil {
		return nil, err
	}

	bg := bundler.NewPartitioner(ag, b.Options.SharedBundleMinSize, b.Options.SharedBundleMaxParallelRequests).Partition()
	for _, bundle := range bg.Bundles() {
		metrics.Get().BundlesEmittedTotal.WithLabelValues(string(bundle.Type)).Inc()
	}

	packaged, err := packager.NewRunner(loader, cfg, b.Cache).PackageAll(ctx, bg, ag)
	if err != nil {
		return nil, err
	}
	for _, p := range packaged {
		metrics.Get().PackagedBundleBytes.WithLabelValues(string(p.Info.Type)).Observe(float64(p.Info.Size))
		metrics.Get().HashReferencesTotal.Add(float64(len(p.Info.HashReferences)))
	}

	return &TargetResult{Target: t, AssetGraph: ag, BundleGraph: bg, PackagedBundles: packaged}, nil
}
