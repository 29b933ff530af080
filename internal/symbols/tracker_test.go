package symbols

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apex-build/corebuild/internal/builderrors"
	"github.com/apex-build/corebuild/pkg/model"
)

func TestResolvePrefersStrongExport(t *testing.T) {
	exports := []model.ExportedSymbol{
		{Exported: "x", Local: "weakX", IsWeak: true},
		{Exported: "x", Local: "realX"},
	}
	strong, weak := Resolve("x", exports)
	require.NotNil(t, strong)
	assert.Equal(t, model.Symbol("realX"), strong.Local)
	assert.Len(t, weak, 1)
}

func TestResolveReturnsOnlyWeakWhenNoStrongMatch(t *testing.T) {
	exports := []model.ExportedSymbol{{Exported: "x", Local: "weakX", IsWeak: true}}
	strong, weak := Resolve("x", exports)
	assert.Nil(t, strong)
	assert.Len(t, weak, 1)
}

func TestRecordNewLocationSucceeds(t *testing.T) {
	tr := NewTracker()
	dep := &model.Dependency{ID: "dep1"}
	isNew, err := tr.Record(dep, "assetA", model.ExportedSymbol{Exported: "x", Local: "x"})
	require.NoError(t, err)
	assert.True(t, isNew)

	loc, ok := tr.Location("dep1", "x")
	require.True(t, ok)
	assert.Equal(t, model.AssetID("assetA"), loc.ProvidingAsset)
}

func TestRecordSameLocationIsIdempotent(t *testing.T) {
	tr := NewTracker()
	dep := &model.Dependency{ID: "dep1"}
	_, err := tr.Record(dep, "assetA", model.ExportedSymbol{Exported: "x", Local: "x"})
	require.NoError(t, err)
	isNew, err := tr.Record(dep, "assetA", model.ExportedSymbol{Exported: "x", Local: "x"})
	require.NoError(t, err)
	assert.False(t, isNew)
}

func TestRecordConflictingLocationFails(t *testing.T) {
	tr := NewTracker()
	dep := &model.Dependency{ID: "dep1"}
	_, err := tr.Record(dep, "assetA", model.ExportedSymbol{Exported: "x", Local: "x"})
	require.NoError(t, err)

	_, err = tr.Record(dep, "assetB", model.ExportedSymbol{Exported: "x", Local: "x"})
	require.Error(t, err)
	var conflict *builderrors.SymbolConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestAllSatisfiedListsEveryRecordedSymbol(t *testing.T) {
	tr := NewTracker()
	dep := &model.Dependency{ID: "dep1"}
	_, _ = tr.Record(dep, "assetA", model.ExportedSymbol{Exported: "x", Local: "x"})
	_, _ = tr.Record(dep, "assetA", model.ExportedSymbol{Exported: "y", Local: "y"})

	symbols := tr.AllSatisfied("dep1")
	assert.Len(t, symbols, 2)
}
