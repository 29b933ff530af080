package config

import (
	"fmt"

	"github.com/apex-build/corebuild/internal/plugin"
)

// Registry holds the plugin constructors a build process links in. Spec §1
// scopes out plugin implementations themselves; the registry is how a host
// binary wires concrete Resolver/Transformer/etc. instances up to the names
// a ParcelConfig references.
type Registry struct {
	resolvers    map[string]func() plugin.Resolver
	transformers map[string]func() plugin.Transformer
	packagers    map[string]func() plugin.Packager
	optimizers   map[string]func() plugin.Optimizer
	compressors  map[string]func() plugin.Compressor
}

// NewRegistry returns an empty plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		resolvers:    make(map[string]func() plugin.Resolver),
		transformers: make(map[string]func() plugin.Transformer),
		packagers:    make(map[string]func() plugin.Packager),
		optimizers:   make(map[string]func() plugin.Optimizer),
		compressors:  make(map[string]func() plugin.Compressor),
	}
}

func (r *Registry) RegisterResolver(name string, ctor func() plugin.Resolver) {
	r.resolvers[name] = ctor
}

func (r *Registry) RegisterTransformer(name string, ctor func() plugin.Transformer) {
	r.transformers[name] = ctor
}

func (r *Registry) RegisterPackager(name string, ctor func() plugin.Packager) {
	r.packagers[name] = ctor
}

func (r *Registry) RegisterOptimizer(name string, ctor func() plugin.Optimizer) {
	r.optimizers[name] = ctor
}

func (r *Registry) RegisterCompressor(name string, ctor func() plugin.Compressor) {
	r.compressors[name] = ctor
}

// PluginLoader instantiates concrete plugin instances from a ParcelConfig
// against a Registry (spec §2: "Config & Plugin Loader... instantiates
// plugin instances").
type PluginLoader struct {
	registry *Registry
}

func NewPluginLoader(registry *Registry) *PluginLoader {
	return &PluginLoader{registry: registry}
}

// Resolvers instantiates the configured resolver chain in declared order.
func (l *PluginLoader) Resolvers(cfg *ParcelConfig) ([]plugin.Resolver, error) {
	out := make([]plugin.Resolver, 0, len(cfg.Resolvers))
	for _, name := range cfg.Resolvers {
		ctor, ok := l.registry.resolvers[name]
		if !ok {
			return nil, fmt.Errorf("config: no resolver registered for %q", name)
		}
		out = append(out, ctor())
	}
	return out, nil
}

// TransformersFor instantiates the transformer pipeline configured for
// filePath under the given named pipeline (empty for the default), in
// declared order (spec §4.5).
func (l *PluginLoader) TransformersFor(cfg *ParcelConfig, filePath, pipeline string) ([]plugin.Transformer, error) {
	names, ok := cfg.MatchTransformers(filePath, pipeline)
	if !ok {
		return nil, fmt.Errorf("config: no transformer pipeline matches %q (pipeline=%q)", filePath, pipeline)
	}
	out := make([]plugin.Transformer, 0, len(names))
	for _, name := range names {
		ctor, ok := l.registry.transformers[name]
		if !ok {
			return nil, fmt.Errorf("config: no transformer registered for %q", name)
		}
		out = append(out, ctor())
	}
	return out, nil
}

// PackagerFor instantiates the packager registered under name.
func (l *PluginLoader) PackagerFor(name string) (plugin.Packager, error) {
	ctor, ok := l.registry.packagers[name]
	if !ok {
		return nil, fmt.Errorf("config: no packager registered for %q", name)
	}
	return ctor(), nil
}

// OptimizersFor instantiates the optimizer chain configured for glob.
func (l *PluginLoader) OptimizersFor(cfg *ParcelConfig, glob string) ([]plugin.Optimizer, error) {
	names, ok := cfg.Optimizers[glob]
	if !ok {
		return nil, nil
	}
	out := make([]plugin.Optimizer, 0, len(names))
	for _, name := range names {
		ctor, ok := l.registry.optimizers[name]
		if !ok {
			return nil, fmt.Errorf("config: no optimizer registered for %q", name)
		}
		out = append(out, ctor())
	}
	return out, nil
}

// Compressors instantiates the configured compressor chain.
func (l *PluginLoader) Compressors(cfg *ParcelConfig) ([]plugin.Compressor, error) {
	out := make([]plugin.Compressor, 0, len(cfg.Compressors))
	for _, name := range cfg.Compressors {
		ctor, ok := l.registry.compressors[name]
		if !ok {
			return nil, fmt.Errorf("config: no compressor registered for %q", name)
		}
		out = append(out, ctor())
	}
	return out, nil
}
