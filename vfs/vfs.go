// Package vfs implements the project virtual file system described by the
// installer and worker pool: a flat, in-memory mapping from normalised path
// to file record, with no real directories, permissions, or symlinks.
package vfs

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Record is a single file in the project tree.
type Record struct {
	Path      string
	Contents  string
	IsEntry   bool
	IsJSEntry bool
}

// Proxy is the capability interface implemented by a remote FS peer (for
// example a worker-side FS mirroring a main-thread FS, or vice versa).
// Every mutating FS method, after updating its local map, invokes the
// matching Proxy method if one is bound.
type Proxy interface {
	WriteFile(path, contents string) error
	AppendFile(path, contents string) error
	DeleteFile(path string) error
	Rmdir(path string) error
	SetFiles(files map[string]Record) error
	Chdir(path string) error
}

// FS is the project virtual file system.
type FS struct {
	mu       sync.Mutex
	files    map[string]*Record
	cwd      string
	proxy    Proxy
	logger   *slog.Logger
	watchers map[chan Event]struct{}
}

// New creates an empty virtual file system rooted at /app.
func New() *FS {
	return &FS{
		files:  make(map[string]*Record),
		cwd:    "app",
		logger: slog.New(slog.DiscardHandler),
	}
}

// SetLogger installs a structured logger; the default discards everything.
func (fsys *FS) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	fsys.logger = logger
}

// Bind attaches a remote FS proxy that mirrors future mutations.
func (fsys *FS) Bind(proxy Proxy) {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	fsys.proxy = proxy
}

// normalise strips exactly one leading slash so "/app/x" and "app/x"
// collapse to the same key.
func normalise(p string) string {
	return strings.TrimPrefix(p, "/")
}

// Cwd returns the current working directory, normalised.
func (fsys *FS) Cwd() string {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	return fsys.cwd
}

// Chdir changes the current working directory. It never fails: the vfs
// does not materialise directories, so any path is accepted.
func (fsys *FS) Chdir(path string) error {
	path = normalise(path)
	fsys.mu.Lock()
	fsys.cwd = path
	proxy := fsys.proxy
	fsys.mu.Unlock()
	fsys.logger.Debug("chdir", "path", path)
	if proxy != nil {
		return proxy.Chdir(path)
	}
	return nil
}

// Exists reports whether p is a key of the map.
func (fsys *FS) Exists(p string) bool {
	p = normalise(p)
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	_, ok := fsys.files[p]
	return ok
}

// IsDirectory reports whether some stored key begins with p and is
// strictly longer than p by more than one character (i.e. p + "/" + more).
func (fsys *FS) IsDirectory(p string) bool {
	p = normalise(p)
	prefix := p
	if prefix != "" {
		prefix += "/"
	}
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	for key := range fsys.files {
		if strings.HasPrefix(key, prefix) && len(key) > len(prefix) {
			return true
		}
	}
	return false
}

// ReadFile returns the stored contents, or the empty string when the path
// is absent. It never fails.
func (fsys *FS) ReadFile(p string) string {
	p = normalise(p)
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	rec, ok := fsys.files[p]
	if !ok {
		return ""
	}
	return rec.Contents
}

// ReadDir returns every stored key beginning with p; callers are
// responsible for filtering down to immediate children if needed.
func (fsys *FS) ReadDir(p string) []string {
	p = normalise(p)
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	var out []string
	for key := range fsys.files {
		if strings.HasPrefix(key, p) {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}

// WriteFile merges contents into any existing record, preserving the
// entry flags, and forwards the write to a bound proxy.
func (fsys *FS) WriteFile(p, contents string) error {
	p = normalise(p)
	fsys.mu.Lock()
	rec, ok := fsys.files[p]
	if !ok {
		rec = &Record{Path: p}
		fsys.files[p] = rec
	}
	rec.Contents = contents
	proxy := fsys.proxy
	fsys.mu.Unlock()
	fsys.logger.Debug("writefile", "path", p, "size", len(contents))
	fsys.notify(Event{Path: p, Op: "write"})
	if proxy != nil {
		return proxy.WriteFile(p, contents)
	}
	return nil
}

// AppendFile merges appended contents into any existing record.
func (fsys *FS) AppendFile(p, contents string) error {
	p = normalise(p)
	fsys.mu.Lock()
	rec, ok := fsys.files[p]
	if !ok {
		rec = &Record{Path: p}
		fsys.files[p] = rec
	}
	rec.Contents += contents
	proxy := fsys.proxy
	fsys.mu.Unlock()
	fsys.logger.Debug("appendfile", "path", p, "added", len(contents))
	fsys.notify(Event{Path: p, Op: "append"})
	if proxy != nil {
		return proxy.AppendFile(p, contents)
	}
	return nil
}

// DeleteFile removes a single file record.
func (fsys *FS) DeleteFile(p string) error {
	p = normalise(p)
	fsys.mu.Lock()
	delete(fsys.files, p)
	proxy := fsys.proxy
	fsys.mu.Unlock()
	fsys.logger.Debug("deletefile", "path", p)
	fsys.notify(Event{Path: p, Op: "delete"})
	if proxy != nil {
		return proxy.DeleteFile(p)
	}
	return nil
}

// Rmdir removes every stored record beginning with p (there being no
// explicit directory entity to remove).
func (fsys *FS) Rmdir(p string) error {
	p = normalise(p)
	prefix := p
	if prefix != "" {
		prefix += "/"
	}
	fsys.mu.Lock()
	for key := range fsys.files {
		if key == p || strings.HasPrefix(key, prefix) {
			delete(fsys.files, key)
		}
	}
	proxy := fsys.proxy
	fsys.mu.Unlock()
	fsys.logger.Debug("rmdir", "path", p)
	fsys.notify(Event{Path: p, Op: "rmdir"})
	if proxy != nil {
		return proxy.Rmdir(p)
	}
	return nil
}

// SetFiles shallow-merges each supplied record onto any existing record
// for that path.
func (fsys *FS) SetFiles(files map[string]Record) error {
	fsys.mu.Lock()
	for p, rec := range files {
		p = normalise(p)
		rec.Path = p
		existing, ok := fsys.files[p]
		if !ok {
			cp := rec
			fsys.files[p] = &cp
			continue
		}
		merged := *existing
		merged.Contents = rec.Contents
		if rec.IsEntry {
			merged.IsEntry = rec.IsEntry
		}
		if rec.IsJSEntry {
			merged.IsJSEntry = rec.IsJSEntry
		}
		fsys.files[p] = &merged
	}
	proxy := fsys.proxy
	fsys.mu.Unlock()
	fsys.logger.Debug("setfiles", "count", len(files))
	fsys.notify(Event{Op: "setfiles"})
	if proxy != nil {
		return proxy.SetFiles(files)
	}
	return nil
}

// RawFiles returns a snapshot of every stored path to its contents,
// suitable for handing to a worker as a project snapshot.
func (fsys *FS) RawFiles() map[string]string {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	out := make(map[string]string, len(fsys.files))
	for p, rec := range fsys.files {
		out[p] = rec.Contents
	}
	return out
}

// Records returns a deep copy of every stored record, keyed by path.
func (fsys *FS) Records() map[string]Record {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	out := make(map[string]Record, len(fsys.files))
	for p, rec := range fsys.files {
		out[p] = *rec
	}
	return out
}

// Clone returns an independent FS seeded with a snapshot of this one's
// records, without a bound proxy or watchers. Writes to the clone do not
// affect this FS, and vice versa.
func (fsys *FS) Clone() *FS {
	fsys.mu.Lock()
	files := make(map[string]*Record, len(fsys.files))
	for p, rec := range fsys.files {
		cp := *rec
		files[p] = &cp
	}
	cwd := fsys.cwd
	fsys.mu.Unlock()
	return &FS{
		files:  files,
		cwd:    cwd,
		logger: fsys.logger,
	}
}

// Reset replaces the entire contents of the FS with the given snapshot,
// the way a worker resets its FS before a transform or build.
func (fsys *FS) Reset(snapshot map[string]string) {
	fsys.mu.Lock()
	fsys.files = make(map[string]*Record, len(snapshot))
	for p, contents := range snapshot {
		p = normalise(p)
		fsys.files[p] = &Record{Path: p, Contents: contents}
	}
	fsys.mu.Unlock()
	fsys.logger.Debug("reset", "count", len(snapshot))
}
