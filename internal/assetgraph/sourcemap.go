package assetgraph

import (
	"bytes"
	"encoding/base64"
	"path/filepath"
	"strings"

	"github.com/apex-build/corebuild/internal/fs"
	"github.com/apex-build/corebuild/pkg/model"
)

var sourceMappingURLMarker = []byte("sourceMappingURL=")

// findSourceMap scans code for a `sourceMappingURL=` comment (spec §4.4 step
// 2) and loads the referenced map, either inline (a data: URI) or from a
// sibling file next to filePath.
func findSourceMap(filesystem fs.FileSystem, filePath string, code []byte) *model.SourceMap {
	idx := bytes.LastIndex(code, sourceMappingURLMarker)
	if idx < 0 {
		return nil
	}
	rest := code[idx+len(sourceMappingURLMarker):]
	end := bytes.IndexAny(rest, " \t\r\n")
	if end < 0 {
		end = len(rest)
	}
	if closeIdx := bytes.Index(rest[:end], []byte("*/")); closeIdx >= 0 {
		end = closeIdx
	}
	ref := strings.TrimSpace(string(rest[:end]))
	if ref == "" {
		return nil
	}

	if strings.HasPrefix(ref, "data:") {
		return decodeInlineSourceMap(ref)
	}

	mapPath := filepath.Join(filepath.Dir(filePath), ref)
	raw, err := filesystem.Read(mapPath)
	if err != nil {
		return nil
	}
	return &model.SourceMap{Raw: raw}
}

func decodeInlineSourceMap(dataURI string) *model.SourceMap {
	commaIdx := strings.IndexByte(dataURI, ',')
	if commaIdx < 0 {
		return nil
	}
	meta := dataURI[:commaIdx]
	payload := dataURI[commaIdx+1:]
	if strings.Contains(meta, ";base64") {
		decoded, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil
		}
		return &model.SourceMap{Raw: decoded}
	}
	return &model.SourceMap{Raw: []byte(payload)}
}
