package packager

import (
	"regexp"

	"github.com/apex-build/corebuild/internal/bundler"
	"github.com/apex-build/corebuild/internal/graph"
	"github.com/apex-build/corebuild/pkg/model"
)

// scriptOrLinkAttr matches a script src="..." or link href="..." attribute
// value, the two tag shapes spec §4.8 rewrites.
var scriptOrLinkAttr = regexp.MustCompile(`(<script\b[^>]*\bsrc=")([^"]+)(")|(<link\b[^>]*\bhref=")([^"]+)(")`)

// htmlReferenceMap maps the entry-asset-id placeholder a packager plugin
// wrote into an HTML bundle's script src / link href to the referenced
// bundle's final public path.
func htmlReferenceMap(bg *bundler.BundleGraph, bundleNode graph.NodeID, publicPaths map[model.BundleID]string) map[string]string {
	out := make(map[string]string)
	for _, e := range bg.Underlying().Out(bundleNode) {
		if e.Data != bundler.EdgeBundleSyncLoads && e.Data != bundler.EdgeBundleAsyncLoads && e.Data != bundler.EdgeReferences {
			continue
		}
		target := bg.Underlying().Node(e.To)
		if target.Bundle == nil {
			continue
		}
		out[string(target.Bundle.EntryAssetID)] = publicPaths[target.Bundle.ID]
	}
	return out
}

// rewriteHTML rewrites script src= / link href= attributes whose value is
// a known placeholder to the referenced bundle's public path, eliding
// duplicates: only the first occurrence of a given source placeholder is
// rewritten, subsequent ones are left with their original specifier so a
// downstream HTML minifier's dedup removes them (spec §4.8).
func rewriteHTML(content []byte, refs map[string]string) []byte {
	if len(refs) == 0 {
		return content
	}
	seen := make(map[string]bool, len(refs))
	return scriptOrLinkAttr.ReplaceAllFunc(content, func(match []byte) []byte {
		sub := scriptOrLinkAttr.FindSubmatch(match)
		var prefix, value, suffix []byte
		if len(sub[2]) > 0 {
			prefix, value, suffix = sub[1], sub[2], sub[3]
		} else {
			prefix, value, suffix = sub[4], sub[5], sub[6]
		}

		path, known := refs[string(value)]
		if !known || seen[string(value)] {
			return match
		}
		seen[string(value)] = true

		out := make([]byte, 0, len(prefix)+len(path)+len(suffix))
		out = append(out, prefix...)
		out = append(out, []byte(path)...)
		out = append(out, suffix...)
		return out
	})
}
