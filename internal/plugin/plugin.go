// Package plugin defines the contract between the build core and the
// plugin host (spec §4.2). The core never embeds language-specific
// transformers, resolvers, or packagers — it only talks to these narrow
// interfaces, which an out-of-process or in-process plugin host satisfies.
package plugin

import (
	"context"
	"fmt"

	"github.com/apex-build/corebuild/pkg/model"
)

// Kind names the dispatch strategy for a plugin instance (Design Notes:
// "a small capability set... a variant for the handful of built-in
// kinds"). Dispatch is dynamic only at the plugin-call site.
type Kind string

const (
	KindNativeGo   Kind = "native-go"
	KindRemoteRPC  Kind = "remote-rpc"
	KindInProcess  Kind = "in-process"
)

// Identity names a plugin instance for error attribution (spec §4.2, §7:
// "Attributed to the plugin package name").
type Identity struct {
	PackageName string
	Kind        Kind
}

// ResolveResult is what a Resolver returns for a successfully resolved
// dependency (spec §4.2).
type ResolveResult struct {
	FilePath     string
	Pipeline     string
	Query        string
	SideEffects  *bool
	IsSource     *bool
	Code         []byte
}

// Resolver resolves a Dependency to a file path (spec §4.2). The first
// resolver in the configured chain to return a non-nil result wins.
type Resolver interface {
	Identity() Identity
	Resolve(ctx context.Context, dep *model.Dependency) (*ResolveResult, error)
}

// TransformResult is what a Transformer produces for one asset (spec §4.2).
type TransformResult struct {
	Asset              *model.Asset
	Dependencies       []*model.Dependency
	DiscoveredAssets    []*model.Asset
	InvalidateOnFileChange []string
}

// Condition gates whether a Transformer's should_skip fast path applies
// (spec §4.2: "conditions (code-regex, origin=source|third-party,
// enabled-flag)").
type Condition struct {
	CodeRegex   string
	OriginThirdParty *bool
	EnabledFlag string
}

// Transformer applies one step of an asset's pipeline (spec §4.2, §4.5).
type Transformer interface {
	Identity() Identity
	// ID is the transformer's pipeline-identity used to decide whether a
	// pipeline changed across a file-type re-selection (spec §4.5).
	ID() uint64
	ShouldSkip(asset *model.Asset) bool
	Transform(ctx context.Context, asset *model.Asset) (*TransformResult, error)
	Conditions() []Condition
}

// Optimizer, Packager and Compressor each expose a single whole-bundle
// method (spec §4.2).
type Optimizer interface {
	Identity() Identity
	Optimize(ctx context.Context, bundle *model.Bundle, content []byte) ([]byte, error)
}

type Packager interface {
	Identity() Identity
	Version() string
	Package(ctx context.Context, req PackageRequest) (*model.PackagedBundle, error)
}

// PackageRequest is the input a Packager receives for one bundle (spec
// §4.8). AssetContents maps each contained asset's id to its current code,
// in the traversal order the bundler recorded.
type PackageRequest struct {
	Bundle         *model.Bundle
	AssetOrder     []model.AssetID
	AssetContents  map[model.AssetID][]byte
	// ReferencedBundles maps a referenced bundle's id to its public path,
	// used to resolve hash-reference placeholders (spec §4.8).
	ReferencedBundles map[model.BundleID]string
}

type Compressor interface {
	Identity() Identity
	Compress(ctx context.Context, content []byte) ([]byte, error)
}

// FatalError is a transformation error attributed to a plugin package name
// (spec §7). The core wraps panics and returned errors from plugin calls
// into this type before surfacing them.
type FatalError struct {
	Plugin  Identity
	Asset   string
	Wrapped error
}

func (e *FatalError) Error() string {
	if e.Asset != "" {
		return fmt.Sprintf("plugin %s (%s): %s: %v", e.Plugin.PackageName, e.Plugin.Kind, e.Asset, e.Wrapped)
	}
	return fmt.Sprintf("plugin %s (%s): %v", e.Plugin.PackageName, e.Plugin.Kind, e.Wrapped)
}

func (e *FatalError) Unwrap() error { return e.Wrapped }

// Call invokes fn, converting both a returned error and a recovered panic
// into a *FatalError attributed to id (spec §4.2: "possibly async, possibly
// panicking... any thrown error is converted to a Fatal transformation
// error attributed to the plugin package name").
func Call(id Identity, asset string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &FatalError{Plugin: id, Asset: asset, Wrapped: fmt.Errorf("panic: %v", r)}
		}
	}()
	if callErr := fn(); callErr != nil {
		return &FatalError{Plugin: id, Asset: asset, Wrapped: callErr}
	}
	return nil
}
