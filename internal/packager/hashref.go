package packager

import (
	"bytes"
	"fmt"

	"github.com/apex-build/corebuild/pkg/model"
)

// hashReferenceToken returns the placeholder a packager plugin emits in
// place of a not-yet-known final filename for bundleID (spec §4.8: "the
// packager emits placeholder tokens of a fixed shape wherever an
// inter-bundle reference... is needed").
func hashReferenceToken(bundleID model.BundleID) string {
	return fmt.Sprintf("@@HASH_REF:%s@@", bundleID)
}

// substituteHashReferences replaces every placeholder the plugin recorded
// in hashReferences with the referenced bundle's final content-hashed
// public path (spec §4.8: "a second pass substitutes each placeholder with
// the referenced bundle's final content-hashed filename").
func substituteHashReferences(content []byte, hashReferences []string, publicPaths map[model.BundleID]string) []byte {
	out := content
	for _, ref := range hashReferences {
		bundleID := model.BundleID(ref)
		path, ok := publicPaths[bundleID]
		if !ok {
			continue
		}
		out = bytes.ReplaceAll(out, []byte(hashReferenceToken(bundleID)), []byte(path))
	}
	return out
}
