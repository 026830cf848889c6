// Package deps resolves the modules a PE image imports against an ordered list of search
// directories, and drives the per-file analysis pipeline.
package deps

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ZacharyZcR/wldd/internal/logger"
	"github.com/ZacharyZcR/wldd/internal/pe"
)

// Entry is one resolved dependency.
type Entry struct {
	Name string
	// Dir is the first search directory holding the module; empty when not found.
	Dir string
	// File is the on-disk spelling of the matched file name.
	File  string
	Found bool
	// Also lists later directories that hold the module too. Only filled with WithAllMatches.
	Also []string
	// Err is the extraction failure for this descriptor; the entry was not looked up.
	Err error
}

// Missing reports whether the module was read but found in no search directory.
func (e Entry) Missing() bool {
	return e.Err == nil && !e.Found
}

// Path returns the matched file's full path, or "" when not found.
func (e Entry) Path() string {
	if !e.Found {
		return ""
	}
	return filepath.Join(e.Dir, e.File)
}

// Lister lists directory contents and follows symlinks found there. It is the only
// filesystem access the resolver makes.
type Lister interface {
	ReadDir(dir string) ([]fs.DirEntry, error)
	Stat(path string) (fs.FileInfo, error)
}

type osLister struct{}

func (osLister) ReadDir(dir string) ([]fs.DirEntry, error) {
	return os.ReadDir(dir)
}

func (osLister) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLister replaces the OS directory lister.
func WithLister(l Lister) Option {
	return func(r *Resolver) { r.lister = l }
}

// WithAllMatches records every directory holding a module, not just the first.
func WithAllMatches() Option {
	return func(r *Resolver) { r.allMatches = true }
}

// WithLogger sets the logger for directory listing failures.
func WithLogger(l logger.Logger) Option {
	return func(r *Resolver) { r.log = l }
}

// Resolver maps module names to the first search directory that holds them. The directory
// list is fixed at construction; a Resolver is safe for concurrent use.
type Resolver struct {
	dirs       []string
	lister     Lister
	allMatches bool
	log        logger.Logger

	mu       sync.Mutex
	listings map[string]*listing
}

// listing maps lower-cased file names in one directory to their on-disk spelling.
type listing struct {
	once  sync.Once
	files map[string]string
}

// NewResolver creates a resolver over dirs, searched in the given order.
func NewResolver(dirs []string, opts ...Option) *Resolver {
	r := &Resolver{
		dirs:     append([]string(nil), dirs...),
		lister:   osLister{},
		log:      logger.Discard(),
		listings: make(map[string]*listing),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Dirs returns a copy of the search directories in search order.
func (r *Resolver) Dirs() []string {
	return append([]string(nil), r.dirs...)
}

// Resolve resolves every extracted import, keeping order. Imports that carry an error are
// passed through with that error and are not looked up.
func (r *Resolver) Resolve(imports []pe.Import) []Entry {
	entries := make([]Entry, len(imports))
	for i, imp := range imports {
		if imp.Err != nil {
			entries[i] = Entry{Name: imp.Name, Err: imp.Err}
			continue
		}
		entries[i] = r.Lookup(imp.Name)
	}
	return entries
}

// Lookup searches the directories for name, compared case-insensitively and taken
// literally: no extension is added or removed.
func (r *Resolver) Lookup(name string) Entry {
	e := Entry{Name: name}
	key := strings.ToLower(name)

	for _, dir := range r.dirs {
		file, ok := r.listing(dir).files[key]
		if !ok {
			continue
		}
		if !e.Found {
			e.Found = true
			e.Dir = dir
			e.File = file
			if !r.allMatches {
				break
			}
			continue
		}
		e.Also = append(e.Also, dir)
	}
	return e
}

func (r *Resolver) listing(dir string) *listing {
	r.mu.Lock()
	l, ok := r.listings[dir]
	if !ok {
		l = &listing{}
		r.listings[dir] = l
	}
	r.mu.Unlock()

	l.once.Do(func() {
		l.files = r.readDir(dir)
	})
	return l
}

func (r *Resolver) readDir(dir string) map[string]string {
	files := make(map[string]string)
	entries, err := r.lister.ReadDir(dir)
	if err != nil {
		r.log.Debug("search directory unreadable", "dir", dir, "error", err)
		return files
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if entry.Type()&fs.ModeSymlink != 0 {
			info, err := r.lister.Stat(filepath.Join(dir, entry.Name()))
			if err != nil || info.IsDir() {
				continue
			}
		}
		key := strings.ToLower(entry.Name())
		if _, dup := files[key]; !dup {
			files[key] = entry.Name()
		}
	}
	return files
}
