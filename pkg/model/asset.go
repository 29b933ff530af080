package model

import "github.com/apex-build/corebuild/internal/ids"

// FileType is the asset's content kind, used to select a transformer
// pipeline and a bundle's bundle_type (spec §4.5, §4.7).
type FileType string

const (
	FileJS   FileType = "js"
	FileJSX  FileType = "jsx"
	FileTS   FileType = "ts"
	FileTSX  FileType = "tsx"
	FileCSS  FileType = "css"
	FileHTML FileType = "html"
	FileJSON FileType = "json"
	FileYAML FileType = "yaml"
)

// AssetID is the 16-hex-char content hash of (environment-id, file-path,
// pipeline, query, unique-key), per spec §3.
type AssetID string

// AssetIDInputs are the fields that determine an AssetID. Recomputed on
// every file-type change (transform pipeline re-selection, spec §4.5).
type AssetIDInputs struct {
	EnvironmentID EnvironmentID
	FilePath      string
	Pipeline      string
	Query         string
	UniqueKey     string
}

// ComputeAssetID derives an asset's id from its identity inputs.
func ComputeAssetID(in AssetIDInputs) AssetID {
	h := ids.New().
		WriteString(string(in.EnvironmentID)).
		WriteString(in.FilePath).
		WriteString(in.Pipeline).
		WriteString(in.Query).
		WriteString(in.UniqueKey)
	return AssetID(ids.HexOf(h.Sum64()))
}

// Symbol names a single exported/requested binding.
type Symbol string

// ExportedSymbol records one export an asset provides, and whether it is a
// weak re-export (establishes a lookup path but never claims final
// ownership, spec §4.6).
type ExportedSymbol struct {
	Exported Symbol
	Local    Symbol
	IsWeak   bool
}

// AssetFlags are the boolean attributes carried on every Asset (spec §3).
type AssetFlags struct {
	IsSource           bool
	SideEffects        bool
	IsBundleSplittable bool
	HasCJSExports      bool
	StaticExports      bool
	ShouldWrap         bool
	IsConstantModule   bool
}

// SourceMap is the optional sourcemap payload attached to an asset, loaded
// either from a sibling .map file or a sourceMappingURL= comment (spec §4.4).
// Stitching/merging algorithms across transforms are out of scope.
type SourceMap struct {
	Sources  []string
	Mappings string
	Raw      []byte
}

// Asset is a source unit: a file after transformation, or a virtual one
// synthesised by a transformer (spec §3, Glossary).
type Asset struct {
	ID AssetID

	FilePath  string
	Pipeline  string
	Query     string
	UniqueKey string

	Env *Environment

	Code     []byte
	FileType FileType

	Exports []ExportedSymbol
	Flags   AssetFlags

	SourceMap *SourceMap

	// Meta is free-form plugin metadata (spec §3: "plugin metadata
	// (free-form JSON)").
	Meta map[string]any
}

// IDInputs extracts the current identity inputs from the asset, for
// recomputing its id after a pipeline re-selection (spec §4.5).
func (a *Asset) IDInputs() AssetIDInputs {
	envID := EnvironmentID("")
	if a.Env != nil {
		envID = a.Env.ID
	}
	return AssetIDInputs{
		EnvironmentID: envID,
		FilePath:      a.FilePath,
		Pipeline:      a.Pipeline,
		Query:         a.Query,
		UniqueKey:     a.UniqueKey,
	}
}

// UpdateID recomputes and stores the asset's id from its current identity
// inputs. Spec §4.5: "Asset id is recomputed (update_id) on every file-type
// change" — callers invoke this after mutating Pipeline/Query/UniqueKey.
func (a *Asset) UpdateID() {
	a.ID = ComputeAssetID(a.IDInputs())
}
