// Package catalog discovers input files deposited in the data directory.
package catalog

import (
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/djherbis/times"
)

// CandidateFile is an input file offered for selection.
type CandidateFile struct {
	Path      string
	CreatedAt time.Time
}

// Name returns the file's base name.
func (f CandidateFile) Name() string {
	return filepath.Base(f.Path)
}

// Lister is the directory listing capability the catalog depends on.
type Lister interface {
	// ReadDir returns the paths of the regular entries in dir.
	ReadDir(dir string) ([]string, error)
	// CreatedAt returns the creation time of path.
	CreatedAt(path string) (time.Time, error)
}

// OSLister lists the local filesystem.
type OSLister struct{}

// ReadDir returns the non-directory entries of dir. Entries read before a
// failure are still returned alongside the error.
func (OSLister) ReadDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	return paths, err
}

// CreatedAt returns the birth time when the filesystem records one, and the
// modification time otherwise.
func (OSLister) CreatedAt(path string) (time.Time, error) {
	ts, err := times.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	if ts.HasBirthTime() {
		return ts.BirthTime(), nil
	}
	return ts.ModTime(), nil
}

// Catalog lists candidate files with a given extension in one directory.
type Catalog struct {
	dir    string
	ext    string
	lister Lister
	logger *slog.Logger
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithLister replaces the filesystem lister.
func WithLister(l Lister) Option {
	return func(c *Catalog) { c.lister = l }
}

// WithLogger sets the logger used for skipped entries.
func WithLogger(l *slog.Logger) Option {
	return func(c *Catalog) { c.logger = l }
}

// New creates a catalog over dir matching files ending in ext (for example ".csv").
func New(dir, ext string, opts ...Option) *Catalog {
	c := &Catalog{
		dir:    dir,
		ext:    ext,
		lister: OSLister{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dir returns the scanned directory.
func (c *Catalog) Dir() string {
	return c.dir
}

// List returns matching files, most recently created first. It never fails:
// a missing or unreadable directory yields an empty list and entries whose
// metadata cannot be read are skipped.
func (c *Catalog) List() []CandidateFile {
	paths, err := c.lister.ReadDir(c.dir)
	if err != nil {
		c.logger.Debug("read data directory", "dir", c.dir, "error", err)
	}

	files := make([]CandidateFile, 0, len(paths))
	for _, p := range paths {
		if !strings.EqualFold(filepath.Ext(p), c.ext) {
			continue
		}
		created, err := c.lister.CreatedAt(p)
		if err != nil {
			c.logger.Debug("skip file with unreadable metadata", "path", p, "error", err)
			continue
		}
		files = append(files, CandidateFile{Path: p, CreatedAt: created})
	}

	slices.SortStableFunc(files, func(a, b CandidateFile) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	return files
}
