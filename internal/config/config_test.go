package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apex-build/corebuild/internal/fs"
	"github.com/apex-build/corebuild/internal/plugin"
	"github.com/apex-build/corebuild/pkg/model"
)

func TestLoadConfigMergesExtends(t *testing.T) {
	mem := fs.NewMemFS()
	mem.WriteFile("/base.json", []byte(`{
		"resolvers": ["@apex/resolver-default"],
		"transformers": {"*.js": ["@apex/transformer-js"]},
		"bundler": "@apex/bundler-default"
	}`))
	mem.WriteFile("/.parcelrc", []byte(`{
		"extends": "./base.json",
		"transformers": {"*.svg": ["@apex/transformer-svg"]}
	}`))

	cfg, err := LoadConfig(mem, "/.parcelrc")
	require.NoError(t, err)

	assert.Equal(t, []string{"@apex/resolver-default"}, cfg.Resolvers)
	assert.Equal(t, "@apex/bundler-default", cfg.Bundler)
	assert.Equal(t, []string{"@apex/transformer-js"}, cfg.Transformers["*.js"])
	assert.Equal(t, []string{"@apex/transformer-svg"}, cfg.Transformers["*.svg"])
}

func TestLoadConfigDetectsCircularExtends(t *testing.T) {
	mem := fs.NewMemFS()
	mem.WriteFile("/a.json", []byte(`{"extends": "./b.json"}`))
	mem.WriteFile("/b.json", []byte(`{"extends": "./a.json"}`))

	_, err := LoadConfig(mem, "/a.json")
	require.Error(t, err)
}

func TestMatchTransformersPrefersMoreSpecificGlob(t *testing.T) {
	cfg := &ParcelConfig{
		Transformers: map[string][]string{
			"*.js":       {"@apex/transformer-js"},
			"*.module.js": {"@apex/transformer-js-module"},
		},
	}
	names, ok := cfg.MatchTransformers("/src/app.module.js", "")
	require.True(t, ok)
	assert.Equal(t, []string{"@apex/transformer-js-module"}, names)
}

func TestMatchTransformersHonorsNamedPipeline(t *testing.T) {
	cfg := &ParcelConfig{
		Transformers: map[string][]string{
			"*.js":          {"@apex/transformer-js"},
			"bundle-text:*": {"@apex/transformer-raw"},
		},
	}
	names, ok := cfg.MatchTransformers("/src/data.txt", "bundle-text")
	require.True(t, ok)
	assert.Equal(t, []string{"@apex/transformer-raw"}, names)
}

func TestLoadPackageJSONParsesCustomTargets(t *testing.T) {
	mem := fs.NewMemFS()
	mem.WriteFile("/package.json", []byte(`{
		"name": "demo",
		"type": "module",
		"main": "dist/main.js",
		"sideEffects": false,
		"myTarget": {"context": "browser", "outputFormat": "esmodule"}
	}`))

	pkg, err := LoadPackageJSON(mem, "/package.json")
	require.NoError(t, err)
	assert.Equal(t, "demo", pkg.Name)
	assert.Equal(t, PackageTypeModule, pkg.Type)
	field, ok := pkg.TargetFieldFor("myTarget")
	require.True(t, ok)
	assert.Equal(t, "browser", field.Context)
	assert.True(t, pkg.IsSideEffectFree("anything.js"))
}

type fakeTransformer struct{ id uint64 }

func (f *fakeTransformer) Identity() plugin.Identity { return plugin.Identity{PackageName: "fake"} }
func (f *fakeTransformer) ID() uint64                { return f.id }
func (f *fakeTransformer) ShouldSkip(*model.Asset) bool { return false }
func (f *fakeTransformer) Conditions() []plugin.Condition { return nil }
func (f *fakeTransformer) Transform(ctx context.Context, a *model.Asset) (*plugin.TransformResult, error) {
	return &plugin.TransformResult{Asset: a}, nil
}

func TestPluginLoaderInstantiatesTransformerChain(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterTransformer("@apex/transformer-js", func() plugin.Transformer { return &fakeTransformer{id: 1} })
	loader := NewPluginLoader(reg)

	cfg := &ParcelConfig{Transformers: map[string][]string{"*.js": {"@apex/transformer-js"}}}
	chain, err := loader.TransformersFor(cfg, "/a.js", "")
	require.NoError(t, err)
	require.Len(t, chain, 1)
	assert.Equal(t, uint64(1), chain[0].ID())
}

func TestPluginLoaderMissingRegistrationErrors(t *testing.T) {
	reg := NewRegistry()
	loader := NewPluginLoader(reg)
	cfg := &ParcelConfig{Transformers: map[string][]string{"*.js": {"@apex/transformer-js"}}}
	_, err := loader.TransformersFor(cfg, "/a.js", "")
	require.Error(t, err)
}
