// Package tempstore manages the engine's scratch directory: it hands
// out uniquely-named temp file paths for chunking-phase runs and
// merge-pass intermediates, and disposes of all of them (and the
// directory itself) with best-effort, error-suppressing cleanup. The
// registry is never a source of sort failure.
package tempstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
)

// Registry allocates and tracks temp file paths under one working
// directory.
type Registry struct {
	dir        string
	ownsDir    bool // true if we created dir and should remove it on Dispose
	chunkID    int64
	mu         sync.Mutex
	paths      []string
}

// Open creates (or adopts) the working directory. If dir is empty, a
// uniquely-named subdirectory of os.TempDir() is created and owned by
// the registry. If dir is non-empty, it is created if missing but not
// removed on Dispose (the caller supplied it, the caller owns it).
func Open(dir string) (*Registry, error) {
	if dir == "" {
		d, err := os.MkdirTemp("", "filesort-")
		if err != nil {
			return nil, fmt.Errorf("tempstore: create working directory: %w", err)
		}
		return &Registry{dir: d, ownsDir: true}, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("tempstore: create working directory %s: %w", dir, err)
	}
	return &Registry{dir: dir, ownsDir: false}, nil
}

// Dir returns the working directory path.
func (r *Registry) Dir() string {
	return r.dir
}

// NewChunkPath allocates a path for a phase-1 chunk run, e.g.
// "chunk_000042".
func (r *Registry) NewChunkPath() string {
	id := atomic.AddInt64(&r.chunkID, 1) - 1
	return r.track(filepath.Join(r.dir, fmt.Sprintf("chunk_%06d", id)))
}

// NewMergePath allocates a path for one batch's output within a merge
// pass, e.g. "merge_p1_i000003".
func (r *Registry) NewMergePath(pass, batch int) string {
	return r.track(filepath.Join(r.dir, fmt.Sprintf("merge_p%d_i%06d", pass, batch)))
}

func (r *Registry) track(path string) string {
	r.mu.Lock()
	r.paths = append(r.paths, path)
	r.mu.Unlock()
	return path
}

// Dispose deletes every path ever handed out, then the working
// directory if the registry created it. All errors are suppressed:
// the registry never raises on cleanup.
func (r *Registry) Dispose() {
	r.mu.Lock()
	paths := r.paths
	r.paths = nil
	r.mu.Unlock()

	for _, p := range paths {
		_ = os.Remove(p)
	}
	if r.ownsDir {
		_ = os.RemoveAll(r.dir)
	}
}
