package fsshim

import "sync"

// fdEntry is the record a file descriptor maps to: the path it was opened
// against, the flags it was opened with, a content snapshot that writes
// mutate and flush through to VFS, and a current position for read/write
// calls that don't pass an explicit position.
type fdEntry struct {
	path     string
	flags    int
	snapshot []byte
	pos      int64
}

// fdTable allocates descriptors starting at FDFloor and hands back
// independent entries for repeated opens of the same path.
type fdTable struct {
	mu      sync.Mutex
	next    int
	entries map[int]*fdEntry
}

func newFDTable() *fdTable {
	return &fdTable{next: FDFloor, entries: make(map[int]*fdEntry)}
}

func (t *fdTable) open(e *fdEntry) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	fd := t.next
	t.next++
	t.entries[fd] = e
	return fd
}

func (t *fdTable) get(fd int) (*fdEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[fd]
	return e, ok
}

// close removes an FD entry. Succeeds whether or not the FD was present.
func (t *fdTable) close(fd int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, fd)
}
