// Package catalog indexes a directory tree of GZIP-wrapped CCP4 density
// maps, the way an EMDB mirror lays them out on disk: one file per
// accession, nested under whatever subdirectory structure the mirror
// uses, discovered by glob rather than read from an archive header.
package catalog

import (
	"encoding/json"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/exp/mmap"
)

// DefaultPattern matches the conventional EMDB map filename, e.g.
// "emd_1234.map.gz", at any depth under the catalog root.
const DefaultPattern = "**/*.map.gz"

// Entry describes one discovered map file, relative to a catalog's root.
type Entry struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
}

// Discover globs root for files matching pattern (DefaultPattern if empty)
// and returns their root-relative paths in sorted order.
func Discover(root, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	matches, err := doublestar.Glob(os.DirFS(root), pattern)
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// FS is an indexed directory of map files, built once by New or Decode and
// then queried repeatedly without re-walking the filesystem.
type FS struct {
	root    string
	entries []*Entry
	index   map[string]int
}

// New walks root for files matching pattern (DefaultPattern if empty) and
// stats each one to build an FS.
func New(root, pattern string) (*FS, error) {
	matches, err := Discover(root, pattern)
	if err != nil {
		return nil, err
	}

	fsys := &FS{
		root:    root,
		entries: make([]*Entry, 0, len(matches)),
		index:   make(map[string]int, len(matches)),
	}

	for _, rel := range matches {
		fi, err := os.Stat(path.Join(root, rel))
		if err != nil {
			return nil, err
		}
		fsys.index[rel] = len(fsys.entries)
		fsys.entries = append(fsys.entries, &Entry{
			Path:    rel,
			Size:    fi.Size(),
			ModTime: fi.ModTime(),
		})
	}

	return fsys, nil
}

// Entries returns the catalog's entries in discovery order.
func (fsys *FS) Entries() []*Entry {
	return fsys.entries
}

// Lookup returns the entry for a root-relative path, if cataloged.
func (fsys *FS) Lookup(relPath string) (*Entry, bool) {
	i, ok := fsys.index[relPath]
	if !ok {
		return nil, false
	}
	return fsys.entries[i], true
}

// Open memory-maps the file at relPath for sequential or random-access
// reads. (orchestrator.MmapProducer does not take this ReaderAt: it maps
// its file itself from a path, see orchestrator.NewMmapProducer.)
func (fsys *FS) Open(relPath string) (*mmap.ReaderAt, error) {
	if _, ok := fsys.index[relPath]; !ok {
		return nil, fs.ErrNotExist
	}
	return mmap.Open(path.Join(fsys.root, relPath))
}

// TOC is the JSON-encodable table of contents persisted alongside a
// catalog root, so a mirror doesn't need to be re-walked on every restart.
type TOC struct {
	Entries []*Entry `json:"entries"`
}

// Encode writes the catalog's table of contents as JSON.
func (fsys *FS) Encode(w io.Writer) error {
	toc := TOC{Entries: fsys.entries}
	return json.NewEncoder(w).Encode(&toc)
}

// Decode rebuilds an FS rooted at root from a previously Encoded TOC,
// without touching the filesystem.
func Decode(root string, r io.Reader) (*FS, error) {
	var toc TOC
	if err := json.NewDecoder(r).Decode(&toc); err != nil {
		return nil, err
	}

	fsys := &FS{
		root:    root,
		entries: toc.Entries,
		index:   make(map[string]int, len(toc.Entries)),
	}
	for i, e := range fsys.entries {
		fsys.index[e.Path] = i
	}

	return fsys, nil
}
