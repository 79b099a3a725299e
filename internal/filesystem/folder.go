// Package filesystem provides depth-bounded folder enumeration for hunts.
package filesystem

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/digggggmori-pixel/ferret-hunt/internal/logger"
)

// Unbounded can be passed as a depth to descend without limit.
const Unbounded = -1

// File is a regular file found under a folder
type File struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
	Hidden  bool
}

// Folder is a directory path. Operations never fail: unreadable or missing
// folders simply produce no results.
type Folder struct {
	path string
}

// NewFolder wraps a directory path
func NewFolder(path string) Folder {
	return Folder{path: filepath.Clean(path)}
}

// Path returns the folder path
func (f Folder) Path() string { return f.path }

// Child returns the folder at the given relative path below f, whether or
// not it exists.
func (f Folder) Child(rel string) Folder {
	return NewFolder(filepath.Join(f.path, filepath.FromSlash(rel)))
}

// Exists reports whether the path is an existing directory
func (f Folder) Exists() bool {
	info, err := os.Stat(f.path)
	return err == nil && info.IsDir()
}

// Subdirectories lists nested directories up to maxDepth levels below f.
// 0 yields nothing, 1 yields the immediate children, Unbounded yields all.
// Symbolic links and junctions are never descended into.
func (f Folder) Subdirectories(maxDepth int) []Folder {
	var out []Folder
	if maxDepth == 0 {
		return out
	}
	f.walk(maxDepth, func(dir string, entries []fs.DirEntry, depth int) {
		for _, e := range entries {
			if e.IsDir() {
				out = append(out, Folder{path: filepath.Join(dir, e.Name())})
			}
		}
	})
	return out
}

// Files lists regular files in f and in nested directories up to maxDepth
// levels below it (0 = this folder only, Unbounded = everything). A nil or
// empty extensions set accepts every file; otherwise the match is
// case-insensitive and accepts "bat" or ".bat".
func (f Folder) Files(extensions []string, maxDepth int) []File {
	filter := newExtensionFilter(extensions)

	var out []File
	descend := maxDepth
	if descend >= 0 {
		descend++
	}
	f.walk(descend, func(dir string, entries []fs.DirEntry, depth int) {
		for _, e := range entries {
			if !e.Type().IsRegular() || !filter.accept(e.Name()) {
				continue
			}
			info, err := e.Info()
			if err != nil {
				logger.Debug("Skipping %s: %v", filepath.Join(dir, e.Name()), err)
				continue
			}
			path := filepath.Join(dir, e.Name())
			out = append(out, File{
				Path:    path,
				Name:    e.Name(),
				Size:    info.Size(),
				ModTime: info.ModTime(),
				Hidden:  isHidden(path, info),
			})
		}
	})
	return out
}

// walk reads f and its subdirectories breadth-first. levels counts how many
// directory levels are read, f itself being the first; Unbounded reads all.
func (f Folder) walk(levels int, visit func(dir string, entries []fs.DirEntry, depth int)) {
	type pending struct {
		path  string
		depth int
	}
	queue := []pending{{path: f.path, depth: 1}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		entries, err := os.ReadDir(cur.path)
		if err != nil {
			// Missing, denied or not a directory
			logger.Debug("Folder not readable: %s (%v)", cur.path, err)
			continue
		}
		visit(cur.path, entries, cur.depth)

		if levels != Unbounded && cur.depth >= levels {
			continue
		}
		for _, e := range entries {
			// DirEntry.IsDir is false for symlinks, so links are never followed
			if e.IsDir() {
				queue = append(queue, pending{path: filepath.Join(cur.path, e.Name()), depth: cur.depth + 1})
			}
		}
	}
}

type extensionFilter map[string]struct{}

func newExtensionFilter(extensions []string) extensionFilter {
	if len(extensions) == 0 {
		return nil
	}
	filter := make(extensionFilter, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimPrefix(ext, "."))
		filter[ext] = struct{}{}
	}
	return filter
}

func (e extensionFilter) accept(name string) bool {
	if e == nil {
		return true
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	_, ok := e[ext]
	return ok
}
