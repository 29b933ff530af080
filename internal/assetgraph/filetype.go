package assetgraph

import (
	"path/filepath"
	"strings"

	"github.com/apex-build/corebuild/pkg/model"
)

var extToFileType = map[string]model.FileType{
	".js":   model.FileJS,
	".jsx":  model.FileJSX,
	".ts":   model.FileTS,
	".tsx":  model.FileTSX,
	".css":  model.FileCSS,
	".html": model.FileHTML,
	".htm":  model.FileHTML,
	".json": model.FileJSON,
	".yaml": model.FileYAML,
	".yml":  model.FileYAML,
}

// fileTypeForPath infers an asset's FileType from its path's extension.
func fileTypeForPath(path string) model.FileType {
	ext := strings.ToLower(filepath.Ext(path))
	if ft, ok := extToFileType[ext]; ok {
		return ft
	}
	return model.FileJS
}

// sourceMapEligible reports whether a file type participates in sibling
// sourcemap discovery (spec §4.4 step 2: "for css/js/jsx/ts/tsx asset
// types").
func sourceMapEligible(ft model.FileType) bool {
	switch ft {
	case model.FileJS, model.FileJSX, model.FileTS, model.FileTSX, model.FileCSS:
		return true
	default:
		return false
	}
}
