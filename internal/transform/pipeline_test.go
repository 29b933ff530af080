package transform

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apex-build/corebuild/internal/config"
	"github.com/apex-build/corebuild/internal/plugin"
	"github.com/apex-build/corebuild/pkg/model"
)

type stubTransformer struct {
	id     uint64
	skip   bool
	mutate func(*model.Asset) *plugin.TransformResult
	err    error
}

func (s *stubTransformer) Identity() plugin.Identity       { return plugin.Identity{PackageName: "stub"} }
func (s *stubTransformer) ID() uint64                       { return s.id }
func (s *stubTransformer) ShouldSkip(a *model.Asset) bool   { return s.skip }
func (s *stubTransformer) Conditions() []plugin.Condition   { return nil }
func (s *stubTransformer) Transform(ctx context.Context, a *model.Asset) (*plugin.TransformResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.mutate(a), nil
}

func newLoader(t *testing.T, reg *config.Registry) *config.PluginLoader {
	t.Helper()
	return config.NewPluginLoader(reg)
}

func TestRunAppliesPipelineSequentially(t *testing.T) {
	reg := config.NewRegistry()
	reg.RegisterTransformer("t1", func() plugin.Transformer {
		return &stubTransformer{id: 1, mutate: func(a *model.Asset) *plugin.TransformResult {
			a.Code = append(a.Code, '1')
			return &plugin.TransformResult{Asset: a}
		}}
	})
	reg.RegisterTransformer("t2", func() plugin.Transformer {
		return &stubTransformer{id: 2, mutate: func(a *model.Asset) *plugin.TransformResult {
			a.Code = append(a.Code, '2')
			return &plugin.TransformResult{Asset: a}
		}}
	})
	cfg := &config.ParcelConfig{Transformers: map[string][]string{"*.js": {"t1", "t2"}}}
	loader := newLoader(t, reg)
	runner := NewRunner(loader, cfg)

	asset := &model.Asset{FilePath: "/a.js", FileType: model.FileJS, Code: []byte("x")}
	result, err := runner.Run(context.Background(), asset)
	require.NoError(t, err)
	assert.Equal(t, "x12", string(result.Asset.Code))
}

func TestRunSkipsWhenShouldSkip(t *testing.T) {
	reg := config.NewRegistry()
	reg.RegisterTransformer("t1", func() plugin.Transformer {
		return &stubTransformer{id: 1, skip: true, mutate: func(a *model.Asset) *plugin.TransformResult {
			a.Code = append(a.Code, '1')
			return &plugin.TransformResult{Asset: a}
		}}
	})
	cfg := &config.ParcelConfig{Transformers: map[string][]string{"*.js": {"t1"}}}
	loader := newLoader(t, reg)
	runner := NewRunner(loader, cfg)

	asset := &model.Asset{FilePath: "/a.js", FileType: model.FileJS, Code: []byte("x")}
	result, err := runner.Run(context.Background(), asset)
	require.NoError(t, err)
	assert.Equal(t, "x", string(result.Asset.Code))
}

func TestRunReselectsPipelineOnFileTypeChange(t *testing.T) {
	reg := config.NewRegistry()
	reg.RegisterTransformer("yaml-to-js", func() plugin.Transformer {
		return &stubTransformer{id: 10, mutate: func(a *model.Asset) *plugin.TransformResult {
			a.FileType = model.FileJS
			a.Code = []byte("module.exports = {}")
			return &plugin.TransformResult{Asset: a}
		}}
	})
	reg.RegisterTransformer("js-minify", func() plugin.Transformer {
		return &stubTransformer{id: 20, mutate: func(a *model.Asset) *plugin.TransformResult {
			a.Code = append(a.Code, ';')
			return &plugin.TransformResult{Asset: a}
		}}
	})
	cfg := &config.ParcelConfig{Transformers: map[string][]string{
		"*.yaml": {"yaml-to-js"},
		"*.js":   {"js-minify"},
	}}
	loader := newLoader(t, reg)
	runner := NewRunner(loader, cfg)

	asset := &model.Asset{FilePath: "/a.yaml", FileType: model.FileYAML, Code: []byte("x: 1")}
	result, err := runner.Run(context.Background(), asset)
	require.NoError(t, err)
	assert.Equal(t, model.FileJS, result.Asset.FileType)
	assert.Equal(t, "module.exports = {};", string(result.Asset.Code))
}

func TestRunAccumulatesPeersAndDependencies(t *testing.T) {
	reg := config.NewRegistry()
	reg.RegisterTransformer("t1", func() plugin.Transformer {
		return &stubTransformer{id: 1, mutate: func(a *model.Asset) *plugin.TransformResult {
			return &plugin.TransformResult{
				Asset:            a,
				DiscoveredAssets: []*model.Asset{{FilePath: "/virtual.css"}},
				Dependencies:     []*model.Dependency{{Specifier: "./b"}},
			}
		}}
	})
	cfg := &config.ParcelConfig{Transformers: map[string][]string{"*.js": {"t1"}}}
	loader := newLoader(t, reg)
	runner := NewRunner(loader, cfg)

	asset := &model.Asset{FilePath: "/a.js", FileType: model.FileJS}
	result, err := runner.Run(context.Background(), asset)
	require.NoError(t, err)
	assert.Len(t, result.Peers, 1)
	assert.Len(t, result.Dependencies, 1)
}

func TestRunWrapsTransformerError(t *testing.T) {
	reg := config.NewRegistry()
	reg.RegisterTransformer("t1", func() plugin.Transformer {
		return &stubTransformer{id: 1, err: assert.AnError}
	})
	cfg := &config.ParcelConfig{Transformers: map[string][]string{"*.js": {"t1"}}}
	loader := newLoader(t, reg)
	runner := NewRunner(loader, cfg)

	asset := &model.Asset{FilePath: "/a.js", FileType: model.FileJS}
	_, err := runner.Run(context.Background(), asset)
	require.Error(t, err)
}
