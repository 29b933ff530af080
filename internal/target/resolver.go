// Package target implements the Target Resolver (spec §4.3): it reads a
// project's package.json and produces the list of model.Target values the
// rest of the pipeline builds against, one per built-in/custom/default
// target.
package target

import (
	"path/filepath"
	"strings"

	"github.com/apex-build/corebuild/internal/builderrors"
	"github.com/apex-build/corebuild/internal/config"
	"github.com/apex-build/corebuild/internal/options"
	"github.com/apex-build/corebuild/pkg/model"
)

// builtinTargets lists the four package.json fields that double as implicit
// target descriptors (spec §4.3 rule 2), in the order they're resolved.
var builtinTargets = []string{"main", "module", "browser", "types"}

// builtinExtensions is the extension allow-list validated per built-in
// target (spec §4.3 validation 1).
var builtinExtensions = map[string][]string{
	"main":    {".cjs", ".mjs", ".js"},
	"module":  {".js", ".mjs"},
	"types":   {".ts"},
	"browser": {".cjs", ".js", ".mjs"},
}

// CustomTargetDescriptor is a target supplied directly by the build's
// caller (spec §4.3 rule 1: "if user options supply explicit CustomTarget
// targets, those win outright"), bypassing package.json entirely.
type CustomTargetDescriptor struct {
	Name      string
	DistDir   string
	DistEntry string
	PublicURL string

	Context      string
	OutputFormat string
	IsLibrary    *bool
	ScopeHoist   *bool
	NodeEngine   string
}

// Resolver derives targets from a package.json plus the build's default
// target options (spec §4.3).
type Resolver struct {
	envRegistry *model.Registry
	defaults    options.DefaultTargetOptions
}

// NewResolver creates a Resolver. envRegistry is the registry every
// resolved target's Environment is interned into, so targets sharing a
// compilation context (most commonly "main" and "module" against the same
// engines) share one *model.Environment.
func NewResolver(envRegistry *model.Registry, defaults options.DefaultTargetOptions) *Resolver {
	return &Resolver{envRegistry: envRegistry, defaults: defaults}
}

// Resolve produces the list of targets for pkg, applying the four rules of
// spec §4.3 in order. custom, when non-empty, wins outright over anything
// in pkg (rule 1).
func (r *Resolver) Resolve(pkg *config.PackageJSON, custom []CustomTargetDescriptor) ([]*model.Target, error) {
	if pkg == nil {
		pkg = &config.PackageJSON{}
	}

	if len(custom) > 0 {
		targets := make([]*model.Target, 0, len(custom))
		for _, d := range custom {
			t, err := r.resolveCustomDescriptor(pkg, d)
			if err != nil {
				return nil, err
			}
			targets = append(targets, t)
		}
		return targets, nil
	}

	var targets []*model.Target

	builtins, err := r.resolveBuiltins(pkg)
	if err != nil {
		return nil, err
	}
	targets = append(targets, builtins...)

	named, err := r.resolveNamedTargets(pkg)
	if err != nil {
		return nil, err
	}
	targets = append(targets, named...)

	if len(targets) == 0 {
		targets = append(targets, r.defaultTarget())
	}
	return targets, nil
}

// resolveBuiltins implements spec §4.3 rule 2: one target per built-in
// package.json field present and not explicitly disabled.
func (r *Resolver) resolveBuiltins(pkg *config.PackageJSON) ([]*model.Target, error) {
	var targets []*model.Target
	for _, name := range builtinTargets {
		if pkg.IsTargetDisabled(name) {
			continue
		}
		distEntry, ok := builtinFieldValue(pkg, name)
		if !ok || distEntry == "" {
			continue
		}

		field := pkg.Targets[name]
		t, err := r.buildTarget(pkg, name, distEntry, field, true)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, nil
}

// builtinFieldValue returns the top-level package.json field matching a
// built-in target name, if present and string-valued.
func builtinFieldValue(pkg *config.PackageJSON, name string) (string, bool) {
	switch name {
	case "main":
		return pkg.Main, pkg.Main != ""
	case "module":
		return pkg.Module, pkg.Module != ""
	case "types":
		return pkg.Types, pkg.Types != ""
	case "browser":
		return pkg.TopLevelString("browser")
	default:
		return "", false
	}
}

// resolveNamedTargets implements spec §4.3 rule 3: targets.customTarget
// entries whose matching top-level field supplies the output path. It also
// honors the top-level-object shorthand (a custom target declared directly
// at the top level rather than nested under "targets") that
// config.PackageJSON already parses into CustomTargets, for compatibility
// with package.json files that write targets that way.
func (r *Resolver) resolveNamedTargets(pkg *config.PackageJSON) ([]*model.Target, error) {
	var targets []*model.Target
	seen := make(map[string]bool)

	for _, name := range pkg.AllTargetNames() {
		if isBuiltinName(name) || seen[name] {
			continue
		}
		seen[name] = true

		field, _ := pkg.TargetFieldFor(name)

		distEntry, ok := pkg.TopLevelString(name)
		if !ok {
			// Fall back to the target field's own distDir, matching the
			// top-level-object shorthand used by CustomTargets.
			distEntry = field.Distdir
		}
		if distEntry == "" {
			continue
		}

		t, err := r.buildTarget(pkg, name, distEntry, field, false)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, nil
}

func isBuiltinName(name string) bool {
	for _, b := range builtinTargets {
		if b == name {
			return true
		}
	}
	return false
}

// buildTarget assembles and validates a single Target from a resolved
// output path and its (possibly zero-value) descriptor field.
func (r *Resolver) buildTarget(pkg *config.PackageJSON, name, distEntry string, field config.TargetField, isBuiltin bool) (*model.Target, error) {
	ext := strings.ToLower(filepath.Ext(distEntry))
	if isBuiltin {
		if allowed, ok := builtinExtensions[name]; ok && !containsString(allowed, ext) {
			return nil, &builderrors.ConfigurationError{
				Message: "target \"" + name + "\" output path \"" + distEntry + "\" has an invalid extension for this target",
			}
		}
	}

	isLibrary := r.defaults.IsLibrary
	if field.IsLibrary != nil {
		isLibrary = *field.IsLibrary
	}
	shouldScopeHoist := r.defaults.ShouldScopeHoist
	if field.ScopeHoist != nil {
		shouldScopeHoist = *field.ScopeHoist
	}
	if isLibrary && field.ScopeHoist != nil && !*field.ScopeHoist {
		return nil, &builderrors.ConfigurationError{
			Message: "target \"" + name + "\" declares is_library with scope_hoist explicitly disabled",
		}
	}

	outputFormat := field.OutputFormat
	if outputFormat == "" {
		outputFormat = inferOutputFormat(ext, pkg)
	}
	if outputFormat == string(model.OutputGlobal) {
		return nil, &builderrors.ConfigurationError{
			Message: "target \"" + name + "\" may not use the \"global\" output format",
		}
	}

	if name == "main" {
		inferred := inferOutputFormat(ext, pkg)
		if field.OutputFormat != "" && field.OutputFormat != inferred {
			return nil, &builderrors.ConfigurationError{
				Message: "target \"main\" output format \"" + field.OutputFormat + "\" conflicts with the format implied by its extension (\"" + inferred + "\")",
			}
		}
	}

	ctx := field.Context
	if ctx == "" {
		ctx = inferContext(pkg)
	}

	engines := model.EngineRanges{Node: pkg.Engines.Node, Browsers: splitBrowserslist(pkg.Engines.Browsers)}
	if field.Engines != nil {
		if field.Engines.Node != "" {
			engines.Node = field.Engines.Node
		}
		if field.Engines.Browsers != "" {
			engines.Browsers = splitBrowserslist(field.Engines.Browsers)
		}
	}

	env := r.envRegistry.Intern(model.Environment{
		Context:            model.Context(ctx),
		Engines:            engines,
		IncludeNodeModules: model.IncludeNodeModulesPolicy{Mode: "all"},
		OutputFormat:       model.OutputFormat(outputFormat),
		SourceType:         model.SourceModule,
		IsLibrary:          isLibrary,
		ShouldOptimize:     r.defaults.ShouldOptimize,
		ShouldScopeHoist:   shouldScopeHoist,
		SourceMap:          &model.SourceMapOptions{Enabled: r.defaults.SourceMaps},
	})

	distDir := field.Distdir
	if distDir == "" {
		distDir = filepath.Dir(distEntry)
	}

	return &model.Target{
		Name:      name,
		DistDir:   distDir,
		DistEntry: filepath.Base(distEntry),
		PublicURL: r.defaults.PublicURL,
		Env:       env,
	}, nil
}

// resolveCustomDescriptor builds a Target directly from a caller-supplied
// descriptor (spec §4.3 rule 1), skipping package.json entirely.
func (r *Resolver) resolveCustomDescriptor(pkg *config.PackageJSON, d CustomTargetDescriptor) (*model.Target, error) {
	isLibrary := r.defaults.IsLibrary
	if d.IsLibrary != nil {
		isLibrary = *d.IsLibrary
	}
	shouldScopeHoist := r.defaults.ShouldScopeHoist
	if d.ScopeHoist != nil {
		shouldScopeHoist = *d.ScopeHoist
	}
	if isLibrary && d.ScopeHoist != nil && !*d.ScopeHoist {
		return nil, &builderrors.ConfigurationError{
			Message: "custom target \"" + d.Name + "\" declares is_library with scope_hoist explicitly disabled",
		}
	}

	outputFormat := d.OutputFormat
	if outputFormat == "" {
		outputFormat = r.defaults.OutputFormat
	}

	ctx := d.Context
	if ctx == "" {
		ctx = inferContext(pkg)
	}

	engines := model.EngineRanges{Node: pkg.Engines.Node, Browsers: splitBrowserslist(pkg.Engines.Browsers)}
	if d.NodeEngine != "" {
		engines.Node = d.NodeEngine
	}

	env := r.envRegistry.Intern(model.Environment{
		Context:            model.Context(ctx),
		Engines:            engines,
		IncludeNodeModules: model.IncludeNodeModulesPolicy{Mode: "all"},
		OutputFormat:       model.OutputFormat(outputFormat),
		SourceType:         model.SourceModule,
		IsLibrary:          isLibrary,
		ShouldOptimize:     r.defaults.ShouldOptimize,
		ShouldScopeHoist:   shouldScopeHoist,
		SourceMap:          &model.SourceMapOptions{Enabled: r.defaults.SourceMaps},
	})

	distDir := d.DistDir
	if distDir == "" {
		distDir = r.defaults.DistDir
	}

	return &model.Target{
		Name:      d.Name,
		DistDir:   distDir,
		DistEntry: d.DistEntry,
		PublicURL: firstNonEmpty(d.PublicURL, r.defaults.PublicURL),
		Env:       env,
	}, nil
}

// defaultTarget synthesizes the fallback target emitted when nothing else
// was (spec §4.3 rule 4).
func (r *Resolver) defaultTarget() *model.Target {
	env := r.envRegistry.Intern(model.Environment{
		Context:            model.Context(inferContext(nil)),
		Engines:            model.EngineRanges{},
		IncludeNodeModules: model.IncludeNodeModulesPolicy{Mode: "all"},
		OutputFormat:       model.OutputFormat(firstNonEmpty(r.defaults.OutputFormat, string(model.OutputESModule))),
		SourceType:         model.SourceModule,
		IsLibrary:          r.defaults.IsLibrary,
		ShouldOptimize:     r.defaults.ShouldOptimize,
		ShouldScopeHoist:   r.defaults.ShouldScopeHoist,
		SourceMap:          &model.SourceMapOptions{Enabled: r.defaults.SourceMaps},
	})
	distDir := r.defaults.DistDir
	if distDir == "" {
		distDir = "dist"
	}
	return &model.Target{
		Name:      "default",
		DistDir:   distDir,
		PublicURL: r.defaults.PublicURL,
		Env:       env,
	}
}

// inferContext implements spec §4.3's environment inference: a browser
// field with no declared Node engine implies Browser; engines.node alone
// implies Node; anything else falls back to Browser.
func inferContext(pkg *config.PackageJSON) string {
	if pkg == nil {
		return string(model.ContextBrowser)
	}
	_, hasBrowser := pkg.TopLevelString("browser")
	hasNodeEngine := pkg.Engines.Node != ""
	if hasBrowser && !hasNodeEngine {
		return string(model.ContextBrowser)
	}
	if hasNodeEngine && !hasBrowser {
		return string(model.ContextNode)
	}
	return string(model.ContextBrowser)
}

// inferOutputFormat implements spec §4.3's output-format inference: `.cjs`
// is CommonJS, `.mjs` is EsModule, and `.js` inherits package.json#type.
func inferOutputFormat(ext string, pkg *config.PackageJSON) string {
	switch ext {
	case ".cjs":
		return string(model.OutputCommonJS)
	case ".mjs":
		return string(model.OutputESModule)
	default:
		if pkg != nil && pkg.Type == config.PackageTypeModule {
			return string(model.OutputESModule)
		}
		return string(model.OutputCommonJS)
	}
}

func splitBrowserslist(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func containsString(list []string, v string) bool {
	for _, e := range list {
		if e == v {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
