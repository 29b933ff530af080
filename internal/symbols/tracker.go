// Package symbols implements the Symbol Tracker (spec §4.6): propagating
// reachable-symbol information across the asset graph to enable
// tree-shaking, and detecting symbol-conflict diagnostics.
package symbols

import (
	"sync"

	"github.com/apex-build/corebuild/internal/builderrors"
	"github.com/apex-build/corebuild/pkg/model"
)

// Location is a FinalSymbolLocation (spec §4.6): where a requested symbol is
// ultimately bound once an asset's exports are known.
type Location struct {
	LocalName      model.Symbol
	ImportedName   model.Symbol
	ProvidingAsset model.AssetID
}

type key struct {
	dep    model.DependencyID
	symbol model.Symbol
}

// Tracker records FinalSymbolLocations and detects conflicting claims. It
// holds no reference to the asset graph itself — callers (the asset graph
// builder) drive propagation across dependency edges.
type Tracker struct {
	mu    sync.Mutex
	final map[key]Location
}

// NewTracker creates an empty symbol tracker.
func NewTracker() *Tracker {
	return &Tracker{final: make(map[key]Location)}
}

// Resolve finds the strongest (non-weak) export matching requested among
// exports, if any, along with every weak export matching it (weak
// re-exports establish a lookup path but never claim final ownership,
// spec §4.6).
func Resolve(requested model.Symbol, exports []model.ExportedSymbol) (strong *model.ExportedSymbol, weak []model.ExportedSymbol) {
	for i := range exports {
		e := exports[i]
		if e.Exported != requested {
			continue
		}
		if e.IsWeak {
			weak = append(weak, e)
			continue
		}
		found := e
		strong = &found
	}
	return strong, weak
}

// Record claims, for dep's requested symbol, that providingAsset is its
// final location via export. If dep already has a recorded location for
// this symbol at a different asset or local name, it returns a
// SymbolConflictError (spec §4.6, §7). Returns true when this call newly
// satisfied the request (callers then propagate to the parent asset's
// incoming dependencies).
func (t *Tracker) Record(dep *model.Dependency, providingAsset model.AssetID, export model.ExportedSymbol) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	k := key{dep: dep.ID, symbol: export.Exported}
	loc := Location{
		LocalName:      export.Local,
		ImportedName:    export.Exported,
		ProvidingAsset: providingAsset,
	}
	existing, ok := t.final[k]
	if ok {
		if existing.ProvidingAsset == loc.ProvidingAsset && existing.LocalName == loc.LocalName {
			return false, nil
		}
		return false, &builderrors.SymbolConflictError{
			ImportSite:      string(dep.ID),
			RequestedSymbol: string(export.Exported),
			FirstProvider:   string(existing.ProvidingAsset),
			SecondProvider:  string(providingAsset),
		}
	}
	t.final[k] = loc
	return true, nil
}

// Location returns the recorded final location for dep's symbol, if any.
func (t *Tracker) Location(dep model.DependencyID, symbol model.Symbol) (Location, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	loc, ok := t.final[key{dep: dep, symbol: symbol}]
	return loc, ok
}

// AllSatisfied reports every symbol currently finalized for dep.
func (t *Tracker) AllSatisfied(dep model.DependencyID) []model.Symbol {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []model.Symbol
	for k := range t.final {
		if k.dep == dep {
			out = append(out, k.symbol)
		}
	}
	return out
}
