package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/apex-build/corebuild/internal/fs"
)

// PackageJSONType is the `type` field's enumerated values (spec §6).
type PackageJSONType string

const (
	PackageTypeCommonJS PackageJSONType = "commonjs"
	PackageTypeModule   PackageJSONType = "module"
)

// Engines mirrors the `engines` field's sub-keys relevant to target
// inference (spec §4.3: "engines declare runtime support").
type Engines struct {
	Node    string `json:"node,omitempty"`
	Browsers string `json:"browsers,omitempty"`
}

// TargetField is one entry under a custom top-level target name in
// package.json (spec §6: "plus the user-named top-level fields for custom
// targets").
type TargetField struct {
	Context        string   `json:"context,omitempty"`
	OutputFormat   string   `json:"outputFormat,omitempty"`
	IsLibrary      *bool    `json:"isLibrary,omitempty"`
	ScopeHoist     *bool    `json:"scopeHoist,omitempty"`
	Distdir        string   `json:"distDir,omitempty"`
	Source         string   `json:"source,omitempty"`
	Engines        *Engines `json:"engines,omitempty"`
	IncludeNodeModules json.RawMessage `json:"includeNodeModules,omitempty"`
}

// PackageJSON is the subset of package.json fields the target resolver and
// asset graph builder consume (spec §6): "name, type (commonjs|module),
// main, module, browser, types, engines, browserslist, targets, source,
// sideEffects, plus the user-named top-level fields for custom targets."
type PackageJSON struct {
	Name         string                 `json:"name,omitempty"`
	Type         PackageJSONType        `json:"type,omitempty"`
	Main         string                 `json:"main,omitempty"`
	Module       string                 `json:"module,omitempty"`
	Browser      json.RawMessage        `json:"browser,omitempty"`
	Types        string                 `json:"types,omitempty"`
	Engines      Engines                `json:"engines,omitempty"`
	Browserslist json.RawMessage        `json:"browserslist,omitempty"`
	Source       json.RawMessage        `json:"source,omitempty"`
	SideEffects  json.RawMessage        `json:"sideEffects,omitempty"`

	// Targets is parsed from the "targets" field by hand (see
	// LoadPackageJSON) rather than via a json struct tag: a real
	// package.json may disable a built-in target by setting its entry to
	// `false` instead of an object (spec §4.3 rule 2: "not explicitly
	// disabled (false)"), which a direct struct-tag unmarshal into
	// map[string]TargetField would reject outright.
	Targets         map[string]TargetField `json:"-"`
	DisabledTargets map[string]bool        `json:"-"`

	// CustomTargets holds any remaining top-level key whose value parses as
	// a TargetField object, i.e. a user-named target not nested under
	// "targets" (real package.json files write custom targets inline at the
	// top level, keyed by the target's own name).
	CustomTargets map[string]TargetField `json:"-"`

	// Raw holds every top-level field by name, used by the target resolver
	// to look up the string-valued field matching a `targets.customTarget`
	// entry's name (spec §4.3 rule 3: "the matching top-level package.json
	// field (if present and a string) supplies the output path").
	Raw map[string]json.RawMessage `json:"-"`
}

// LoadPackageJSON reads and parses the package.json at path.
func LoadPackageJSON(filesystem fs.FileSystem, path string) (*PackageJSON, error) {
	data, err := filesystem.Read(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var pkg PackageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	pkg.Raw = raw

	knownKeys := map[string]bool{
		"name": true, "type": true, "main": true, "module": true,
		"browser": true, "types": true, "engines": true, "browserslist": true,
		"source": true, "sideEffects": true, "targets": true,
	}
	pkg.CustomTargets = make(map[string]TargetField)
	for key, value := range raw {
		if knownKeys[key] {
			continue
		}
		var field TargetField
		if err := json.Unmarshal(value, &field); err == nil && field.Context != "" {
			pkg.CustomTargets[key] = field
		}
	}

	pkg.Targets, pkg.DisabledTargets = parseTargetsField(raw["targets"])
	return &pkg, nil
}

// parseTargetsField tolerantly parses the "targets" field: each entry is
// either a descriptor object or the literal `false` disabling a built-in
// target (spec §4.3 rule 2). Entries that are neither are skipped rather
// than failing the whole package.json load, matching the tolerant-parsing
// style already used by IsSideEffectFree/CustomTargets above.
func parseTargetsField(raw json.RawMessage) (map[string]TargetField, map[string]bool) {
	targets := make(map[string]TargetField)
	disabled := make(map[string]bool)
	if len(raw) == 0 {
		return targets, disabled
	}
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return targets, disabled
	}
	for name, value := range entries {
		var asBool bool
		if err := json.Unmarshal(value, &asBool); err == nil {
			if !asBool {
				disabled[name] = true
			}
			continue
		}
		var field TargetField
		if err := json.Unmarshal(value, &field); err == nil {
			targets[name] = field
		}
	}
	return targets, disabled
}

// IsTargetDisabled reports whether name was explicitly set to `false` under
// the "targets" field (spec §4.3 rule 2).
func (p *PackageJSON) IsTargetDisabled(name string) bool {
	return p.DisabledTargets[name]
}

// TopLevelString returns the top-level field named name if it parses as a
// JSON string (spec §4.3 rule 3).
func (p *PackageJSON) TopLevelString(name string) (string, bool) {
	raw, ok := p.Raw[name]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// AllTargetNames returns every target name declared either under `targets`
// or as a custom top-level field (spec §4.3 rule 1: "one Target per entry
// per declared target name").
func (p *PackageJSON) AllTargetNames() []string {
	names := make([]string, 0, len(p.Targets)+len(p.CustomTargets))
	for name := range p.Targets {
		names = append(names, name)
	}
	for name := range p.CustomTargets {
		names = append(names, name)
	}
	return names
}

// TargetFieldFor returns the declared TargetField for name, checking both
// the `targets` map and top-level custom fields.
func (p *PackageJSON) TargetFieldFor(name string) (TargetField, bool) {
	if f, ok := p.Targets[name]; ok {
		return f, true
	}
	if f, ok := p.CustomTargets[name]; ok {
		return f, true
	}
	return TargetField{}, false
}

// IsSideEffectFree reports whether the package declares itself free of
// side effects, either globally (`"sideEffects": false`) or for a specific
// relative file path when the field is an array of globs.
func (p *PackageJSON) IsSideEffectFree(relPath string) bool {
	if len(p.SideEffects) == 0 {
		return false
	}
	var asBool bool
	if err := json.Unmarshal(p.SideEffects, &asBool); err == nil {
		return !asBool
	}
	var globs []string
	if err := json.Unmarshal(p.SideEffects, &globs); err == nil {
		for _, g := range globs {
			if ok, _ := matchSideEffectGlob(g, relPath); ok {
				return false
			}
		}
		return true
	}
	return false
}

func matchSideEffectGlob(glob, path string) (bool, error) {
	if glob == path {
		return true, nil
	}
	return filepath.Match(glob, path)
}
