// Package model defines the core data types shared by every layer of the
// build pipeline: Asset, Dependency, Environment, Target, Bundle and
// BundleInfo from spec §3, plus the Invalidation and ChangeSet types the
// request tracker checks.
//
// The asset and bundle graphs are not defined here: internal/assetgraph and
// internal/bundler build them on internal/graph's flat node arrays plus
// adjacency lists indexed by integer handles, not pointer-linked structs,
// so graphs with import cycles stay safe to traverse.
package model

import (
	"sort"

	"github.com/apex-build/corebuild/internal/ids"
)

// Context is the runtime an Environment compiles for.
type Context string

const (
	ContextBrowser          Context = "browser"
	ContextNode              Context = "node"
	ContextWebWorker         Context = "web-worker"
	ContextServiceWorker     Context = "service-worker"
	ContextElectronMain      Context = "electron-main"
	ContextElectronRenderer  Context = "electron-renderer"
	ContextWorklet           Context = "worklet"
)

// OutputFormat is the module format an Environment's assets are emitted in.
type OutputFormat string

const (
	OutputGlobal     OutputFormat = "global"
	OutputCommonJS   OutputFormat = "commonjs"
	OutputESModule   OutputFormat = "esmodule"
)

// SourceType distinguishes whether an asset is parsed as a module or script.
type SourceType string

const (
	SourceModule SourceType = "module"
	SourceScript SourceType = "script"
)

// IncludeNodeModulesPolicy controls whether node_modules sources are treated
// as first-party (is_source) for a given environment.
type IncludeNodeModulesPolicy struct {
	// Mode is "all", "none", or "map" (per-module override via Map).
	Mode string
	Map  map[string]bool
}

// IncludesModule reports whether the given specifier is covered.
func (p IncludeNodeModulesPolicy) IncludesModule(specifier string) bool {
	switch p.Mode {
	case "none":
		return false
	case "map":
		v, ok := p.Map[specifier]
		return ok && v
	default:
		return true
	}
}

// EngineRanges holds the semver-range engine constraints an Environment was
// compiled against (node/browsers/electron). Values are opaque range
// strings; resolving them against a browserslist database is explicitly out
// of scope (spec §1 Non-goals).
type EngineRanges struct {
	Node      string
	Browsers  []string
	Electron  string
}

// SourceMapOptions configures whether/how an Environment's assets carry
// source maps. Stitching algorithms are out of scope; only the presence
// flag and inline-vs-external choice matter to this core.
type SourceMapOptions struct {
	Enabled bool
	Inline  bool
}

// Environment is the compilation context assets compile into. Identity is
// the hash of every field here except source location (spec §3).
type Environment struct {
	ID EnvironmentID

	Context             Context
	Engines             EngineRanges
	IncludeNodeModules  IncludeNodeModulesPolicy
	OutputFormat        OutputFormat
	SourceType          SourceType

	IsLibrary        bool
	ShouldOptimize   bool
	ShouldScopeHoist bool

	SourceMap *SourceMapOptions
}

// EnvironmentID is the 16-hex-char content hash of an Environment's fields.
type EnvironmentID string

// ComputeID derives the Environment's id from its fields, per spec §3.
func (e *Environment) ComputeID() EnvironmentID {
	h := ids.New().
		WriteString(string(e.Context)).
		WriteString(e.Engines.Node).
		WriteString(e.Engines.Electron)
	for _, b := range e.Engines.Browsers {
		h.WriteString(b)
	}
	h.WriteString(e.IncludeNodeModules.Mode)
	moduleNames := make([]string, 0, len(e.IncludeNodeModules.Map))
	for name := range e.IncludeNodeModules.Map {
		moduleNames = append(moduleNames, name)
	}
	sort.Strings(moduleNames)
	for _, name := range moduleNames {
		h.WriteString(name).WriteBool(e.IncludeNodeModules.Map[name])
	}
	h.WriteBool(e.IsLibrary).
		WriteBool(e.ShouldOptimize).
		WriteBool(e.ShouldScopeHoist).
		WriteString(string(e.OutputFormat)).
		WriteString(string(e.SourceType))
	if e.SourceMap != nil {
		h.WriteBool(e.SourceMap.Enabled).WriteBool(e.SourceMap.Inline)
	}
	return EnvironmentID(ids.HexOf(h.Sum64()))
}

// Registry interns Environment values so that assets sharing a compilation
// context reference a single ref-counted handle rather than duplicating the
// struct, matching the "interning table keyed by environment-id" design note.
type Registry struct {
	byID map[EnvironmentID]*Environment
	refs map[EnvironmentID]int
}

// NewRegistry creates an empty Environment registry.
func NewRegistry() *Registry {
	return &Registry{
		byID: make(map[EnvironmentID]*Environment),
		refs: make(map[EnvironmentID]int),
	}
}

// Intern returns the canonical shared *Environment for env, computing its id
// if necessary and incrementing its reference count.
func (r *Registry) Intern(env Environment) *Environment {
	if env.ID == "" {
		env.ID = env.ComputeID()
	}
	if existing, ok := r.byID[env.ID]; ok {
		r.refs[env.ID]++
		return existing
	}
	stored := env
	r.byID[stored.ID] = &stored
	r.refs[stored.ID] = 1
	return &stored
}

// Release decrements the reference count for an interned environment.
func (r *Registry) Release(id EnvironmentID) {
	if r.refs[id] <= 1 {
		delete(r.refs, id)
		delete(r.byID, id)
		return
	}
	r.refs[id]--
}

// Lookup returns the interned environment for id, if any.
func (r *Registry) Lookup(id EnvironmentID) (*Environment, bool) {
	e, ok := r.byID[id]
	return e, ok
}
