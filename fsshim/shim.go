// Package fsshim implements the POSIX-shaped filesystem surface the foreign
// compiler and linker expect at startup: open/read/write/close/stat/
// lstat/fstat/mkdir/readdir/unlink/rename/rmdir/writeSync, plus
// process.cwd/chdir, backed by a vfs.FS and a file-descriptor table.
//
// Every operation here is a plain function returning a result struct
// rather than taking a callback. The js-tagged install code in shim_js.go
// is the only place that adapts these into the foreign modules'
// callback-style ABI.
package fsshim

import (
	"time"

	"github.com/monstercameron/GoScript/goerr"
	"github.com/monstercameron/GoScript/vfs"
)

// OutputSink receives text written to fd 1 or 2. Implementations must not
// throw/panic on malformed input; they receive text defensively.
type OutputSink interface {
	Write(text string)
}

// discardSink is used when no sink is installed; it drops output silently
// rather than leaving a nil pointer to dereference.
type discardSink struct{}

func (discardSink) Write(string) {}

// Shim holds the OS-agnostic filesystem state: the backing VFS and the
// open-FD table. Construct with New; install into a JS global namespace via
// the js-tagged Install in shim_js.go.
type Shim struct {
	FS  *vfs.FS
	fds *fdTable
	out OutputSink
}

// New returns a Shim over fs, discarding output until SetOutput is called.
func New(fs *vfs.FS) *Shim {
	return &Shim{FS: fs, fds: newFDTable(), out: discardSink{}}
}

// SetOutput installs the sink fd 1/2 writes are routed to. Callers should
// restore the previous sink around a run so stdlib-load logging and
// program output don't mix.
func (s *Shim) SetOutput(sink OutputSink) OutputSink {
	prev := s.out
	if sink == nil {
		sink = discardSink{}
	}
	s.out = sink
	return prev
}

// FileStat is the subset of POSIX stat(2) fields the foreign modules
// probe. Numeric attributes the VFS has no real source for (inode,
// device, link count) are plausible fixed values.
type FileStat struct {
	Mode        uint32
	IsFile      bool
	IsDirectory bool
	Size        int64
	Mtime       time.Time
	Ino         uint64
	Dev         uint64
	Uid         uint32
	Gid         uint32
	Nlink       uint32
	Blksize     uint32
	Blocks      uint32
}

const (
	modeFile = 0o666
	modeDir  = 0o40777
)

func statOf(fs *vfs.FS, path string) (FileStat, error) {
	if fs.Exists(path) && !fs.IsDirectory(path) {
		b, err := fs.ReadFile(path)
		if err != nil {
			return FileStat{}, err
		}
		return FileStat{Mode: modeFile, IsFile: true, Size: int64(len(b)), Mtime: time.Unix(0, 0).UTC(), Ino: 1, Nlink: 1, Blksize: 4096}, nil
	}
	if fs.IsDirectory(path) {
		return FileStat{Mode: modeDir, IsDirectory: true, Mtime: time.Unix(0, 0).UTC(), Ino: 1, Nlink: 1, Blksize: 4096}, nil
	}
	return FileStat{}, goerr.New("fsshim.stat", goerr.NotFound, path, nil)
}

// Stat resolves path and reports file-or-directory attributes.
func (s *Shim) Stat(path string) (FileStat, error) { return statOf(s.FS, path) }

// Lstat is identical to Stat: there is no symlink concept in VFS.
func (s *Shim) Lstat(path string) (FileStat, error) { return statOf(s.FS, path) }

// Fstat reports attributes keyed by the FD's snapshot length.
func (s *Shim) Fstat(fd int) (FileStat, error) {
	e, ok := s.fds.get(fd)
	if !ok {
		return FileStat{}, goerr.New("fsshim.fstat", goerr.BadFD, "", nil)
	}
	return FileStat{Mode: modeFile, IsFile: true, Size: int64(len(e.snapshot)), Mtime: time.Unix(0, 0).UTC(), Ino: 1, Nlink: 1, Blksize: 4096}, nil
}

// Open resolves path against the VFS working directory and allocates a
// fresh FD. If path doesn't exist and O_CREAT is unset, fails NotFound. If
// O_TRUNC is set, the opened content starts empty.
func (s *Shim) Open(path string, flags int) (int, error) {
	var content []byte
	if s.FS.Exists(path) && !s.FS.IsDirectory(path) {
		b, err := s.FS.ReadFile(path)
		if err != nil {
			return 0, err
		}
		content = b
	} else if flags&OCreat == 0 {
		return 0, goerr.New("fsshim.open", goerr.NotFound, path, nil)
	}
	if flags&OTrunc != 0 {
		content = nil
	}
	if content == nil && flags&OCreat != 0 {
		s.FS.WriteFile(path, []byte{})
	}
	fd := s.fds.open(&fdEntry{path: path, flags: flags, snapshot: content})
	return fd, nil
}

// Close removes the FD entry. Succeeds whether or not fd was open.
func (s *Shim) Close(fd int) {
	s.fds.close(fd)
}

// Read performs a positional or current-position read from fd into buf,
// returning the number of bytes copied. pos < 0 means "use and advance the
// FD's current position"; pos >= 0 means an explicit, non-advancing
// position.
func (s *Shim) Read(fd int, buf []byte, length int, pos int64) (int, error) {
	e, ok := s.fds.get(fd)
	if !ok {
		return 0, goerr.New("fsshim.read", goerr.BadFD, "", nil)
	}
	at := pos
	advancing := pos < 0
	if advancing {
		at = e.pos
	}
	if at >= int64(len(e.snapshot)) {
		return 0, nil
	}
	n := copy(buf[:min(length, len(buf))], e.snapshot[at:])
	if advancing {
		e.pos += int64(n)
	}
	return n, nil
}

// Write performs a positional or current-position write of data[:length]
// into fd's snapshot, extending the file (zero-filling any gap) if the
// write lands past the current end, then flushes to VFS.
func (s *Shim) Write(fd int, data []byte, length int, pos int64) (int, error) {
	e, ok := s.fds.get(fd)
	if !ok {
		return 0, goerr.New("fsshim.write", goerr.BadFD, "", nil)
	}
	if length > len(data) {
		length = len(data)
	}
	payload := data[:length]
	at := pos
	advancing := pos < 0
	if advancing {
		at = e.pos
	}
	end := at + int64(len(payload))
	if end > int64(len(e.snapshot)) {
		grown := make([]byte, end)
		copy(grown, e.snapshot)
		e.snapshot = grown
	}
	copy(e.snapshot[at:end], payload)
	if advancing {
		e.pos = end
	}
	s.FS.WriteFile(e.path, e.snapshot)
	return len(payload), nil
}

// WriteSync is the synchronous write entry point foreign modules call for
// stdout/stderr and for small writes in general. fd 1/2 route to the
// installed OutputSink; any other known fd flushes through to VFS exactly
// like Write. Unknown fd fails BadFD.
func (s *Shim) WriteSync(fd int, data []byte) (int, error) {
	if fd == FDStdout || fd == FDStderr {
		s.out.Write(string(data))
		return len(data), nil
	}
	return s.Write(fd, data, len(data), -1)
}

// Mkdir delegates to VFS. Always succeeds.
func (s *Shim) Mkdir(path string) { s.FS.Mkdir(path) }

// Readdir delegates to VFS.ListDir.
func (s *Shim) Readdir(path string) []string { return s.FS.ListDir(path) }

// Unlink removes a file.
func (s *Shim) Unlink(path string) { s.FS.Remove(path) }

// Rename moves src to dst.
func (s *Shim) Rename(src, dst string) error { return s.FS.Rename(src, dst) }

// Rmdir removes an empty directory.
func (s *Shim) Rmdir(path string) { s.FS.RemoveDir(path) }

// Cwd returns the VFS working directory.
func (s *Shim) Cwd() string { return s.FS.Getwd() }

// Chdir sets the VFS working directory.
func (s *Shim) Chdir(path string) { s.FS.Chdir(path) }
