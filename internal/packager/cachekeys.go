package packager

import (
	"fmt"

	"github.com/apex-build/corebuild/internal/plugin"
	"github.com/apex-build/corebuild/pkg/model"
)

// cacheKeysFor composes the three deterministic cache keys a packaged
// bundle produces (spec §4.8): "{plugin}/{version}/{bundle_id}/{content|
// map|info}".
func cacheKeysFor(pkg plugin.Packager, bundleID model.BundleID) model.CacheKeys {
	base := fmt.Sprintf("%s/%s/%s", pkg.Identity().PackageName, pkg.Version(), bundleID)
	return model.CacheKeys{
		Content: base + "/content",
		Map:     base + "/map",
		Info:    base + "/info",
	}
}
