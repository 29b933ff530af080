// Package config implements the Config & Plugin Loader (spec §2, §4.2, §6):
// parsing `.parcelrc`-style JSON with `extends` inheritance, parsing the
// consumed `package.json` fields, and instantiating plugin instances from a
// caller-supplied registry (the core never embeds plugin implementations —
// spec §1 Non-goals).
package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/apex-build/corebuild/internal/fs"
)

// ParcelConfig is the parsed shape of a `.parcelrc`-style JSON file (spec
// §6): resolvers, glob-keyed transformers, and the remaining single-value
// or glob-keyed plugin sections.
type ParcelConfig struct {
	Extends []string `json:"extends,omitempty"`

	Resolvers    []string            `json:"resolvers,omitempty"`
	Transformers map[string][]string `json:"transformers,omitempty"`
	Bundler      string              `json:"bundler,omitempty"`
	Namers       []string            `json:"namers,omitempty"`
	Packagers    map[string]string   `json:"packagers,omitempty"`
	Optimizers   map[string][]string `json:"optimizers,omitempty"`
	Compressors  []string            `json:"compressors,omitempty"`
	Reporters    []string            `json:"reporters,omitempty"`
}

// rawParcelConfig lets Extends be either a single string or an array, which
// real `.parcelrc` files do interchangeably.
type rawParcelConfig struct {
	Extends      json.RawMessage     `json:"extends,omitempty"`
	Resolvers    []string            `json:"resolvers,omitempty"`
	Transformers map[string][]string `json:"transformers,omitempty"`
	Bundler      string              `json:"bundler,omitempty"`
	Namers       []string            `json:"namers,omitempty"`
	Packagers    map[string]string   `json:"packagers,omitempty"`
	Optimizers   map[string][]string `json:"optimizers,omitempty"`
	Compressors  []string            `json:"compressors,omitempty"`
	Reporters    []string            `json:"reporters,omitempty"`
}

// LoadConfig reads and resolves a `.parcelrc`-style config file at path,
// recursively merging any `extends` entries (spec §6: "An extends field
// supports inheritance").
func LoadConfig(filesystem fs.FileSystem, path string) (*ParcelConfig, error) {
	return loadConfig(filesystem, path, make(map[string]bool))
}

func loadConfig(filesystem fs.FileSystem, path string, seen map[string]bool) (*ParcelConfig, error) {
	if seen[path] {
		return nil, fmt.Errorf("config: circular extends at %s", path)
	}
	seen[path] = true

	data, err := filesystem.Read(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var raw rawParcelConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	extendsPaths, err := parseExtends(raw.Extends)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	own := &ParcelConfig{
		Resolvers:    raw.Resolvers,
		Transformers: raw.Transformers,
		Bundler:      raw.Bundler,
		Namers:       raw.Namers,
		Packagers:    raw.Packagers,
		Optimizers:   raw.Optimizers,
		Compressors:  raw.Compressors,
		Reporters:    raw.Reporters,
	}

	merged := &ParcelConfig{}
	dir := filepath.Dir(path)
	for _, ext := range extendsPaths {
		extPath := ext
		if !filepath.IsAbs(extPath) {
			extPath = filepath.Join(dir, extPath)
		}
		base, err := loadConfig(filesystem, extPath, seen)
		if err != nil {
			return nil, err
		}
		merged = mergeConfig(merged, base)
	}
	merged = mergeConfig(merged, own)
	return merged, nil
}

func parseExtends(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if single == "" {
			return nil, nil
		}
		return []string{single}, nil
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil, fmt.Errorf("extends: %w", err)
	}
	return many, nil
}

// mergeConfig layers override on top of base: scalar fields in override win
// when non-empty, slice fields in override win when non-empty (otherwise
// base's are kept), and map fields are merged key-by-key with override
// taking precedence on collision.
func mergeConfig(base, override *ParcelConfig) *ParcelConfig {
	out := &ParcelConfig{
		Resolvers:    firstNonEmpty(override.Resolvers, base.Resolvers),
		Bundler:      firstNonEmptyString(override.Bundler, base.Bundler),
		Namers:       firstNonEmpty(override.Namers, base.Namers),
		Compressors:  firstNonEmpty(override.Compressors, base.Compressors),
		Reporters:    firstNonEmpty(override.Reporters, base.Reporters),
		Transformers: mergeStringSliceMap(base.Transformers, override.Transformers),
		Optimizers:   mergeStringSliceMap(base.Optimizers, override.Optimizers),
		Packagers:    mergeStringMap(base.Packagers, override.Packagers),
	}
	return out
}

func firstNonEmpty(a, b []string) []string {
	if len(a) > 0 {
		return a
	}
	return b
}

func firstNonEmptyString(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func mergeStringSliceMap(base, override map[string][]string) map[string][]string {
	out := make(map[string][]string, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

func mergeStringMap(base, override map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

// MatchTransformers returns the ordered transformer names configured for
// filePath under an optional named pipeline, matching the most specific
// glob key in cfg.Transformers (spec §4.5: "the pipeline is determined by
// the asset's (file_extension, pipeline) pair via the user's plugin
// configuration").
func (c *ParcelConfig) MatchTransformers(filePath, pipeline string) ([]string, bool) {
	base := filepath.Base(filePath)
	var best string
	var bestNames []string
	found := false
	for glob, names := range c.Transformers {
		key := glob
		if pipeline != "" {
			// Named-pipeline keys are written "pipelineName:glob".
			prefix := pipeline + ":"
			if len(key) <= len(prefix) || key[:len(prefix)] != prefix {
				continue
			}
			key = key[len(prefix):]
		} else if hasPipelinePrefix(key) {
			continue
		}
		if ok, _ := filepath.Match(key, base); ok {
			if !found || len(key) > len(best) {
				best = key
				bestNames = names
				found = true
			}
		}
	}
	return bestNames, found
}

func hasPipelinePrefix(glob string) bool {
	for i, r := range glob {
		if r == ':' {
			return i > 0
		}
		if r == '*' || r == '.' || r == '/' {
			return false
		}
	}
	return false
}
