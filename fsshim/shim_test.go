package fsshim

import (
	"errors"
	"testing"

	"github.com/monstercameron/GoScript/goerr"
	"github.com/monstercameron/GoScript/vfs"
)

type recordingSink struct{ got []string }

func (r *recordingSink) Write(text string) { r.got = append(r.got, text) }

func newShim() *Shim { return New(vfs.New()) }

func TestConstantsMatchABI(t *testing.T) {
	want := map[string]int{
		"O_WRONLY":    1,
		"O_RDWR":      2,
		"O_CREAT":     64,
		"O_TRUNC":     512,
		"O_APPEND":    1024,
		"O_EXCL":      128,
		"O_DIRECTORY": 65536,
	}
	got := Constants()
	if len(got) != len(want) {
		t.Fatalf("Constants() has %d entries, want %d", len(got), len(want))
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("Constants()[%q] = %d, want %d", k, got[k], v)
		}
	}
}

func TestWriteSyncStdoutRoutesToSink(t *testing.T) {
	s := newShim()
	sink := &recordingSink{}
	s.SetOutput(sink)
	n, err := s.WriteSync(FDStdout, []byte("hello\n"))
	if err != nil {
		t.Fatal(err)
	}
	if n != 6 {
		t.Fatalf("n = %d, want 6", n)
	}
	if len(sink.got) != 1 || sink.got[0] != "hello\n" {
		t.Fatalf("sink got %v, want [\"hello\\n\"]", sink.got)
	}
}

func TestOpenUnknownFDIsBadFD(t *testing.T) {
	s := newShim()
	_, err := s.Read(12345, make([]byte, 4), 4, -1)
	if !errors.Is(err, goerr.BadFD) {
		t.Fatalf("err = %v, want goerr.BadFD", err)
	}
}

func TestFDIsolationDistinctPositions(t *testing.T) {
	s := newShim()
	s.FS.WriteFile("/a", []byte("abcdef"))
	fd1, err := s.Open("/a", 0)
	if err != nil {
		t.Fatal(err)
	}
	fd2, err := s.Open("/a", 0)
	if err != nil {
		t.Fatal(err)
	}
	if fd1 == fd2 {
		t.Fatal("expected distinct FDs for repeated opens")
	}

	buf := make([]byte, 3)
	n, err := s.Read(fd1, buf, 3, -1)
	if err != nil || n != 3 || string(buf[:n]) != "abc" {
		t.Fatalf("fd1 first read = %q, %v", buf[:n], err)
	}
	n, err = s.Read(fd1, buf, 3, -1)
	if err != nil || n != 3 || string(buf[:n]) != "def" {
		t.Fatalf("fd1 second read = %q, %v", buf[:n], err)
	}

	n, err = s.Read(fd2, buf, 3, -1)
	if err != nil || n != 3 || string(buf[:n]) != "abc" {
		t.Fatalf("fd2 first read = %q, %v, want independent position", buf[:n], err)
	}
}

func TestOpenMissingWithoutCreateFails(t *testing.T) {
	s := newShim()
	_, err := s.Open("/nope", 0)
	if !errors.Is(err, goerr.NotFound) {
		t.Fatalf("err = %v, want goerr.NotFound", err)
	}
}

func TestOpenCreateMakesEmptyFile(t *testing.T) {
	s := newShim()
	fd, err := s.Open("/new", OCreat)
	if err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 4)
	n, err := s.Read(fd, buf, 4, -1)
	if err != nil || n != 0 {
		t.Fatalf("read of fresh file: n=%d err=%v", n, err)
	}
}

func TestWriteFlushesThroughToVFS(t *testing.T) {
	s := newShim()
	fd, err := s.Open("/f", OCreat)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Write(fd, []byte("payload"), 7, -1); err != nil {
		t.Fatal(err)
	}
	got, err := s.FS.ReadFile("/f")
	if err != nil || string(got) != "payload" {
		t.Fatalf("ReadFile(/f) = %q, %v", got, err)
	}
}

func TestWritePastEOFWithPositionZeroFillsGap(t *testing.T) {
	s := newShim()
	fd, err := s.Open("/f", OCreat)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Write(fd, []byte("X"), 1, 4); err != nil {
		t.Fatal(err)
	}
	got, err := s.FS.ReadFile("/f")
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0, 0, 0, 0, 'X'}
	if len(got) != len(want) {
		t.Fatalf("len(got) = %d, want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	s := newShim()
	s.Close(999)
	fd, _ := s.Open("/a", OCreat)
	s.Close(fd)
	s.Close(fd)
}

func TestStatFileVsDirectory(t *testing.T) {
	s := newShim()
	s.FS.WriteFile("/f", "x")
	s.Mkdir("/d")

	fst, err := s.Stat("/f")
	if err != nil || !fst.IsFile || fst.Mode != modeFile {
		t.Fatalf("stat(/f) = %+v, %v", fst, err)
	}
	dst, err := s.Stat("/d")
	if err != nil || !dst.IsDirectory || dst.Mode != modeDir {
		t.Fatalf("stat(/d) = %+v, %v", dst, err)
	}
	_, err = s.Stat("/nope")
	if !errors.Is(err, goerr.NotFound) {
		t.Fatalf("err = %v, want goerr.NotFound", err)
	}
}

func TestUnlinkRenameRmdirAreReal(t *testing.T) {
	s := newShim()
	s.FS.WriteFile("/a", "x")
	s.Unlink("/a")
	if s.FS.Exists("/a") {
		t.Fatal("unlink must actually remove the file")
	}

	s.FS.WriteFile("/b", "y")
	if err := s.Rename("/b", "/c"); err != nil {
		t.Fatal(err)
	}
	if s.FS.Exists("/b") || !s.FS.Exists("/c") {
		t.Fatal("rename must actually move the file")
	}

	s.Mkdir("/empty")
	s.Rmdir("/empty")
	if s.FS.IsDirectory("/empty") {
		t.Fatal("rmdir must actually remove an empty directory")
	}
}

func TestCwdChdir(t *testing.T) {
	s := newShim()
	s.Mkdir("/work")
	s.Chdir("/work")
	if s.Cwd() != "/work" {
		t.Fatalf("Cwd() = %q, want /work", s.Cwd())
	}
}
