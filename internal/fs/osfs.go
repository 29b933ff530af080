package fs

import (
	"context"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/apex-build/corebuild/internal/logging"
)

// OSFileSystem is the production FileSystem backed by the local disk, with
// fsnotify-driven invalidation watching (spec §4.1 invalidations come from
// "files modified/deleted/created-matching-pattern").
type OSFileSystem struct{}

// NewOSFileSystem returns the OS-backed filesystem.
func NewOSFileSystem() *OSFileSystem {
	return &OSFileSystem{}
}

func (OSFileSystem) Read(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (OSFileSystem) ReadToString(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (OSFileSystem) IsFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func (OSFileSystem) IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func (OSFileSystem) Canonicalize(path string, cache CanonicalizeCache) (string, error) {
	if cache != nil {
		if c, ok := cache.Get(path); ok {
			return c, nil
		}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// Non-existent paths (e.g. a not-yet-created output dir) still
		// canonicalize to their absolute form.
		real = abs
	}
	if cache != nil {
		cache.Put(path, real)
	}
	return real, nil
}

func (OSFileSystem) CreateDirectory(path string) error {
	return os.MkdirAll(path, 0o755)
}

// Watch subscribes to changes under the given paths/directories and emits
// each changed file path on the returned channel until ctx is cancelled.
// Nothing in this module calls Watch; turning the emitted paths into a
// model.ChangeSet for the request tracker is up to the caller.
func (OSFileSystem) Watch(ctx context.Context, paths []string) (<-chan string, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	for _, p := range paths {
		target := p
		if info, statErr := os.Stat(p); statErr == nil && !info.IsDir() {
			target = filepath.Dir(p)
		}
		if err := watcher.Add(target); err != nil {
			logging.S().Warnw("fs: failed to watch path", "path", target, "error", err)
		}
	}

	out := make(chan string, 64)
	go func() {
		defer watcher.Close()
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
					select {
					case out <- ev.Name:
					case <-ctx.Done():
						return
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.S().Warnw("fs: watch error", "error", err)
			}
		}
	}()

	return out, nil
}
