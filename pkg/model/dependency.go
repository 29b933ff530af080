package model

import "github.com/apex-build/corebuild/internal/ids"

// SpecifierType is how a dependency's target was written in source.
type SpecifierType string

const (
	SpecifierESM        SpecifierType = "esm"
	SpecifierCommonJS   SpecifierType = "commonjs"
	SpecifierURL        SpecifierType = "url"
	SpecifierCustom      SpecifierType = "custom"
	SpecifierVirtualFile SpecifierType = "virtual-file"
)

// Priority is when a dependency's target must be available relative to its
// source asset (spec §3).
type Priority string

const (
	PrioritySync        Priority = "sync"
	PriorityParallel    Priority = "parallel"
	PriorityLazy        Priority = "lazy"
	PriorityConditional Priority = "conditional"
)

// BundleBehavior constrains how a dependency's target may be placed by the
// bundler (spec §3).
type BundleBehavior string

const (
	BundleBehaviorNone     BundleBehavior = "none"
	BundleBehaviorInline   BundleBehavior = "inline"
	BundleBehaviorIsolated BundleBehavior = "isolated"
)

// DependencyID is the 16-hex-char hash of a Dependency's identity fields
// (spec §3).
type DependencyID string

// DependencyIDInputs are the fields that determine a DependencyID.
type DependencyIDInputs struct {
	SourceAssetID       AssetID
	Specifier           string
	EnvironmentID       EnvironmentID
	Target              string
	Pipeline            string
	SpecifierType       SpecifierType
	BundleBehavior      BundleBehavior
	Priority            Priority
	PackageConditions   []string
}

// ComputeDependencyID derives a dependency's id from its identity inputs.
func ComputeDependencyID(in DependencyIDInputs) DependencyID {
	h := ids.New().
		WriteString(string(in.SourceAssetID)).
		WriteString(in.Specifier).
		WriteString(string(in.EnvironmentID)).
		WriteString(in.Target).
		WriteString(in.Pipeline).
		WriteString(string(in.SpecifierType)).
		WriteString(string(in.BundleBehavior)).
		WriteString(string(in.Priority))
	for _, c := range in.PackageConditions {
		h.WriteString(c)
	}
	return DependencyID(ids.HexOf(h.Sum64()))
}

// DependencyFlags are the boolean attributes carried on every Dependency.
type DependencyFlags struct {
	IsEntry       bool
	IsOptional    bool
	NeedsStableName bool
	IsESM         bool
}

// Dependency is a directed edge between a source asset and a not-yet
// resolved target (spec §3, Glossary).
type Dependency struct {
	ID DependencyID

	SourceAssetID AssetID
	Specifier     string
	SpecifierType SpecifierType
	Priority      Priority
	BundleBehavior BundleBehavior

	Env *Environment

	RequestedSymbols map[Symbol]struct{}

	// Target is the resolved Target name this dependency was derived for,
	// when it is an entry dependency (spec §4.4 step 0).
	Target string

	Pipeline          string
	PackageConditions []string

	Flags DependencyFlags
}

// IDInputs extracts the current identity inputs from the dependency.
func (d *Dependency) IDInputs() DependencyIDInputs {
	envID := EnvironmentID("")
	if d.Env != nil {
		envID = d.Env.ID
	}
	return DependencyIDInputs{
		SourceAssetID:     d.SourceAssetID,
		Specifier:         d.Specifier,
		EnvironmentID:     envID,
		Target:            d.Target,
		Pipeline:          d.Pipeline,
		SpecifierType:     d.SpecifierType,
		BundleBehavior:    d.BundleBehavior,
		Priority:          d.Priority,
		PackageConditions: d.PackageConditions,
	}
}

// UpdateID recomputes and stores the dependency's id from its current
// identity inputs.
func (d *Dependency) UpdateID() {
	d.ID = ComputeDependencyID(d.IDInputs())
}

// RequestSymbol records that this dependency wants the given exported
// symbol from its eventual target (spec §4.6).
func (d *Dependency) RequestSymbol(s Symbol) {
	if d.RequestedSymbols == nil {
		d.RequestedSymbols = make(map[Symbol]struct{})
	}
	d.RequestedSymbols[s] = struct{}{}
}
