package model

import "time"

// BundleID identifies a bundle within a BundleGraph.
type BundleID string

// BundleType equals the file-type of a bundle's entry asset (spec §4.7
// invariant).
type BundleType = FileType

// Bundle is an output file: a group of assets concatenated and emitted
// together (Glossary). The asset membership itself lives in the
// BundleGraph's Contains edges (internal/graph); this struct carries the
// bundle's own identity and metadata.
type Bundle struct {
	ID       BundleID
	PublicID string

	Type BundleType
	Env  *Environment

	// EntryAssetID is the asset this bundle was seeded from (spec §4.7
	// step 1), or "" for a shared bundle with no single entry.
	EntryAssetID AssetID

	// IsShared marks a bundle promoted because an asset is reachable
	// from multiple sibling bundles (spec §4.7 step 3).
	IsShared bool

	// IsTypeChange marks a bundle created because a Sync dependency
	// crosses a file-type boundary (spec §4.7 step 2).
	IsTypeChange bool

	Target *Target
}

// BundleGroupID identifies a set of bundles loaded together at a single
// load site (Glossary).
type BundleGroupID string

// BundleGroup is a set of bundles loaded together at a single load site: an
// entry, a dynamic import, or a shared-bundle decision (spec §3, Glossary).
type BundleGroup struct {
	ID BundleID
	// EntryBundleID is the bundle that owns this group's load site.
	EntryBundleID BundleID
}

// CacheKeys names the three blobs a packaged bundle produces (spec §3
// BundleInfo).
type CacheKeys struct {
	Content string
	Map     string
	Info    string
}

// BundleInfo is the packager's output record for one bundle (spec §3).
type BundleInfo struct {
	Type FileType
	Size int64
	Hash string

	// HashReferences lists the placeholder tokens this bundle's content
	// emitted, to be substituted post-packaging (spec §4.8).
	HashReferences []string

	CacheKeys CacheKeys

	IsLargeBlob bool
	TimeMS      *int64
}

// PackagedBundle is the full byte payload a packager produces for one
// bundle, prior to committing it to the cache.
type PackagedBundle struct {
	BundleID BundleID
	Content  []byte
	Map      []byte
	Info     BundleInfo
	BuiltAt  time.Time
}
