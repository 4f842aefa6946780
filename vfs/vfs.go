// Package vfs implements the in-memory filesystem the toolchain host
// presents to the foreign compiler and linker: a mapping from normalized
// absolute path to byte content, a set of directories, and a current
// working directory. It is pure data; it performs no I/O of its own.
package vfs

import (
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/monstercameron/GoScript/goerr"
)

// entry is a file's content. It is stored as whatever was written (string or
// []byte) and converts to bytes lazily on read.
type entry struct {
	str   string
	bytes []byte
	isStr bool
	mtime time.Time
}

func (e entry) data() []byte {
	if e.isStr {
		return []byte(e.str)
	}
	return e.bytes
}

func (e entry) size() int64 {
	if e.isStr {
		return int64(len(e.str))
	}
	return int64(len(e.bytes))
}

// FS is the in-memory filesystem. The zero value is not usable; construct
// one with New.
type FS struct {
	mu    sync.RWMutex
	files map[string]entry
	dirs  map[string]struct{}
	cwd   string
}

var _ fs.FS = (*FS)(nil)
var _ fs.StatFS = (*FS)(nil)
var _ fs.ReadDirFS = (*FS)(nil)
var _ fs.ReadFileFS = (*FS)(nil)

// New returns an FS containing only the root directory.
func New() *FS {
	f := &FS{
		files: make(map[string]entry),
		dirs:  make(map[string]struct{}),
		cwd:   "/",
	}
	f.dirs["/"] = struct{}{}
	return f
}

// Getwd returns the current working directory.
func (f *FS) Getwd() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.cwd
}

// Chdir sets the current working directory. The target need not already
// exist as a directory entry; neither Chdir nor fsshim's process.chdir
// checks that it does.
func (f *FS) Chdir(p string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cwd = clean(f.cwd, p)
}

// ensureDirs adds p and every ancestor of p to the directory set. Callers
// must hold f.mu for writing.
func (f *FS) ensureDirs(p string) {
	f.dirs[p] = struct{}{}
	for _, a := range ancestors(p) {
		f.dirs[a] = struct{}{}
	}
}

// WriteFile normalizes path relative to the current working directory,
// stores content, and ensures every ancestor directory exists. Succeeds
// unconditionally for any syntactically valid path.
func (f *FS) WriteFile(p string, content any) {
	np := clean(f.Getwd(), p)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeLocked(np, content)
}

func (f *FS) writeLocked(np string, content any) {
	e := entry{mtime: now()}
	switch v := content.(type) {
	case string:
		e.str, e.isStr = v, true
	case []byte:
		e.bytes = v
	default:
		panic("vfs: WriteFile content must be string or []byte")
	}
	f.files[np] = e
	f.ensureDirs(parent(np))
}

// ReadFile returns the stored content as bytes. Fails with goerr.NotFound if
// path does not name a file.
func (f *FS) ReadFile(p string) ([]byte, error) {
	np := clean(f.Getwd(), p)
	f.mu.RLock()
	defer f.mu.RUnlock()
	e, ok := f.files[np]
	if !ok {
		return nil, goerr.New("vfs.ReadFile", goerr.NotFound, np, nil)
	}
	b := e.data()
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// Exists reports whether path names either a file or a directory.
func (f *FS) Exists(p string) bool {
	np := clean(f.Getwd(), p)
	f.mu.RLock()
	defer f.mu.RUnlock()
	if _, ok := f.files[np]; ok {
		return true
	}
	_, ok := f.dirs[np]
	return ok
}

// IsDirectory reports whether path is in the directory set.
func (f *FS) IsDirectory(p string) bool {
	np := clean(f.Getwd(), p)
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.dirs[np]
	return ok
}

// Mkdir adds path to the directory set. Idempotent.
func (f *FS) Mkdir(p string) {
	np := clean(f.Getwd(), p)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensureDirs(np)
}

// Remove deletes a file from the VFS. It does not remove the parent
// directory entry. Removing a path that isn't a file is a no-op, matching
// the FS-Shim's "accept and report success" unlink contract.
func (f *FS) Remove(p string) {
	np := clean(f.Getwd(), p)
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, np)
}

// RemoveDir removes an empty directory entry. It never removes files; it is
// a no-op if the directory still has children or doesn't exist.
func (f *FS) RemoveDir(p string) bool {
	np := clean(f.Getwd(), p)
	if np == "/" {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, name := range f.childrenLocked(np) {
		_ = name
		return false
	}
	delete(f.dirs, np)
	return true
}

// Rename moves a file or directory from src to dst, overwriting dst if it
// names an existing file.
func (f *FS) Rename(src, dst string) error {
	nsrc := clean(f.Getwd(), src)
	ndst := clean(f.Getwd(), dst)
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.files[nsrc]; ok {
		delete(f.files, nsrc)
		f.files[ndst] = e
		f.ensureDirs(parent(ndst))
		return nil
	}
	if _, ok := f.dirs[nsrc]; ok {
		prefix := nsrc + "/"
		for fp, e := range f.files {
			if fp == nsrc || strings.HasPrefix(fp, prefix) {
				np := ndst + strings.TrimPrefix(fp, nsrc)
				delete(f.files, fp)
				f.files[np] = e
			}
		}
		var subdirs []string
		for dp := range f.dirs {
			if strings.HasPrefix(dp, prefix) {
				subdirs = append(subdirs, dp)
			}
		}
		for _, dp := range subdirs {
			delete(f.dirs, dp)
			f.ensureDirs(ndst + strings.TrimPrefix(dp, nsrc))
		}
		delete(f.dirs, nsrc)
		f.ensureDirs(ndst)
		return nil
	}
	return goerr.New("vfs.Rename", goerr.NotFound, nsrc, nil)
}

// childrenLocked returns the immediate child names of dir. Callers must hold
// f.mu.
func (f *FS) childrenLocked(dir string) []string {
	seen := make(map[string]struct{})
	add := func(full string) {
		rel := strings.TrimPrefix(full, dir)
		rel = strings.TrimPrefix(rel, "/")
		if rel == "" {
			return
		}
		if i := strings.IndexByte(rel, '/'); i >= 0 {
			rel = rel[:i]
		}
		seen[rel] = struct{}{}
	}
	prefix := dir
	if prefix != "/" {
		prefix += "/"
	}
	for fp := range f.files {
		if strings.HasPrefix(fp, prefix) && fp != dir {
			add(fp)
		}
	}
	for dp := range f.dirs {
		if dp != dir && strings.HasPrefix(dp, prefix) {
			add(dp)
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ListDir returns the sorted, unique immediate children of path: the first
// path component of every file or directory that descends from it.
func (f *FS) ListDir(p string) []string {
	np := clean(f.Getwd(), p)
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.childrenLocked(np)
}

// Clear empties the filesystem and re-adds the root.
func (f *FS) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files = make(map[string]entry)
	f.dirs = map[string]struct{}{"/": {}}
	f.cwd = "/"
}

// Stats summarizes the filesystem's contents.
type Stats struct {
	FileCount   int
	DirCount    int
	GoFileCount int
	TotalBytes  int64
}

// GetStats computes aggregate counts over the filesystem, O(files).
// GoFileCount counts paths ending in ".go", for informational reporting.
func (f *FS) GetStats() Stats {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var s Stats
	s.DirCount = len(f.dirs)
	for p, e := range f.files {
		s.FileCount++
		s.TotalBytes += e.size()
		if strings.HasSuffix(p, ".go") {
			s.GoFileCount++
		}
	}
	return s
}

// Snapshot returns a deterministic copy of every file's content, keyed by
// normalized path, so whole-filesystem state can be compared without
// walking the tree by hand.
func (f *FS) Snapshot() map[string][]byte {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string][]byte, len(f.files))
	for p, e := range f.files {
		b := e.data()
		cp := make([]byte, len(b))
		copy(cp, b)
		out[p] = cp
	}
	return out
}

func now() time.Time { return time.Unix(0, 0).UTC() }

// --- io/fs.FS family, for callers that want to fs.WalkDir/fs.Glob over the
// VFS. ---

type fsFile struct {
	name string
	data []byte
	dir  bool
	fsys *FS
}

func (f *fsFile) Stat() (fs.FileInfo, error) { return fileInfo{f.name, int64(len(f.data)), f.dir}, nil }
func (f *fsFile) Read(b []byte) (int, error) {
	if f.dir {
		return 0, fs.ErrInvalid
	}
	n := copy(b, f.data)
	f.data = f.data[n:]
	if n == 0 && len(b) > 0 {
		return 0, io.EOF
	}
	return n, nil
}
func (f *fsFile) Close() error { return nil }

type fileInfo struct {
	name string
	sz   int64
	dir  bool
}

func (i fileInfo) Name() string { return path.Base(i.name) }
func (i fileInfo) Size() int64  { return i.sz }
func (i fileInfo) Mode() fs.FileMode {
	if i.dir {
		return fs.ModeDir | 0o777
	}
	return 0o666
}
func (i fileInfo) ModTime() time.Time { return now() }
func (i fileInfo) IsDir() bool        { return i.dir }
func (i fileInfo) Sys() any           { return nil }

// Open implements fs.FS. name follows io/fs convention: relative, no
// leading slash.
func (f *FS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, fs.ErrInvalid
	}
	np := "/" + name
	if name == "." {
		np = "/"
	}
	if f.IsDirectory(np) {
		return &fsFile{name: np, dir: true, fsys: f}, nil
	}
	b, err := f.ReadFile(np)
	if err != nil {
		return nil, fs.ErrNotExist
	}
	return &fsFile{name: np, data: b}, nil
}

// Stat implements fs.StatFS.
func (f *FS) Stat(name string) (fs.FileInfo, error) {
	file, err := f.Open(name)
	if err != nil {
		return nil, err
	}
	return file.Stat()
}

// ReadDir implements fs.ReadDirFS.
func (f *FS) ReadDir(name string) ([]fs.DirEntry, error) {
	if !fs.ValidPath(name) {
		return nil, fs.ErrInvalid
	}
	np := "/" + name
	if name == "." {
		np = "/"
	}
	names := f.ListDir(np)
	out := make([]fs.DirEntry, 0, len(names))
	for _, n := range names {
		full := path.Join(np, n)
		out = append(out, dirEntry{name: n, dir: f.IsDirectory(full)})
	}
	return out, nil
}

type dirEntry struct {
	name string
	dir  bool
}

func (d dirEntry) Name() string  { return d.name }
func (d dirEntry) IsDir() bool   { return d.dir }
func (d dirEntry) Type() fs.FileMode {
	if d.dir {
		return fs.ModeDir
	}
	return 0
}
func (d dirEntry) Info() (fs.FileInfo, error) { return fileInfo{name: d.name, dir: d.dir}, nil }
