// Package builderrors defines the core's error taxonomy (spec §7): typed
// errors that carry enough context (file, line, column, source snippet) to
// render a codeframe, without any language-specific vocabulary baked in.
package builderrors

import "fmt"

// CodeFrame is the source snippet implicated in an error, when a span is
// available (spec §7: "pairs each error with a codeframe extracted from the
// implicated source file").
type CodeFrame struct {
	FilePath string
	Line     int
	Column   int
	Snippet  string
}

func (f *CodeFrame) String() string {
	if f == nil || f.FilePath == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d:%d", f.FilePath, f.Line, f.Column)
}

// ConfigurationError covers malformed plugin config, invalid target
// descriptors, and extension/output-format/scope-hoist violations (spec
// §7). Always fatal.
type ConfigurationError struct {
	Message string
	Frame   *CodeFrame
}

func (e *ConfigurationError) Error() string {
	if loc := e.Frame.String(); loc != "" {
		return fmt.Sprintf("configuration error at %s: %s", loc, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// ResolutionError reports that no resolver could resolve a dependency. Fatal
// unless the dependency is optional (spec §7); callers check
// Dependency.Flags.IsOptional before surfacing this.
type ResolutionError struct {
	Specifier string
	Frame     *CodeFrame
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("could not resolve %q", e.Specifier)
}

// TransformationError wraps a transformer failure: a thrown/panicking
// transform, an invalid returned asset, or a pipeline that could not reach
// completion (spec §7). Attributed to the plugin package name.
type TransformationError struct {
	PluginPackage string
	AssetPath     string
	Wrapped       error
}

func (e *TransformationError) Error() string {
	return fmt.Sprintf("transformation error in %s on %s: %v", e.PluginPackage, e.AssetPath, e.Wrapped)
}

func (e *TransformationError) Unwrap() error { return e.Wrapped }

// SymbolConflictError fires when two distinct assets claim to provide the
// same export to the same import site (spec §4.6, §7). Always fatal.
type SymbolConflictError struct {
	ImportSite      string
	RequestedSymbol string
	FirstProvider   string
	SecondProvider  string
}

func (e *SymbolConflictError) Error() string {
	return fmt.Sprintf("symbol conflict for %q at %s: %s and %s both claim to provide it",
		e.RequestedSymbol, e.ImportSite, e.FirstProvider, e.SecondProvider)
}

// CacheIOError reports a failed cache write transaction (spec §7). Fatal for
// the current build; state may be partially written and is reconciled on
// the next build via invalidation.
type CacheIOError struct {
	Operation string
	Wrapped   error
}

func (e *CacheIOError) Error() string {
	return fmt.Sprintf("cache I/O error during %s: %v", e.Operation, e.Wrapped)
}

func (e *CacheIOError) Unwrap() error { return e.Wrapped }
