package vfs

import (
	"errors"
	"testing"

	"github.com/monstercameron/GoScript/goerr"
)

func TestPathCanonicalizationEquivalence(t *testing.T) {
	pairs := [][2]string{
		{"/a/b/c", "/a/./b/c"},
		{"/a/b/c", "/a/b/../b/c"},
		{"/a//b/c", "/a/b/c"},
		{"a/b/c", "/a/b/c"},
	}
	for _, pr := range pairs {
		f := New()
		f.WriteFile(pr[0], "payload")
		got, err := f.ReadFile(pr[1])
		if err != nil {
			t.Fatalf("ReadFile(%q) after WriteFile(%q): %v", pr[1], pr[0], err)
		}
		if string(got) != "payload" {
			t.Errorf("ReadFile(%q) = %q, want %q", pr[1], got, "payload")
		}
	}
}

func TestDirectoryContainment(t *testing.T) {
	f := New()
	f.WriteFile("/a/b/c", []byte("x"))

	if !contains(f.ListDir("/"), "a") {
		t.Errorf("listDir(/) = %v, want to contain %q", f.ListDir("/"), "a")
	}
	if !contains(f.ListDir("/a"), "b") {
		t.Errorf("listDir(/a) = %v, want to contain %q", f.ListDir("/a"), "b")
	}
	if !contains(f.ListDir("/a/b"), "c") {
		t.Errorf("listDir(/a/b) = %v, want to contain %q", f.ListDir("/a/b"), "c")
	}
}

func TestReadFileNotFound(t *testing.T) {
	f := New()
	_, err := f.ReadFile("/nope")
	if !errors.Is(err, goerr.NotFound) {
		t.Fatalf("err = %v, want goerr.NotFound", err)
	}
}

func TestMkdirIdempotent(t *testing.T) {
	f := New()
	f.Mkdir("/tmp")
	f.Mkdir("/tmp")
	if !f.IsDirectory("/tmp") {
		t.Fatal("/tmp should be a directory")
	}
}

func TestClearResetsToRootOnly(t *testing.T) {
	f := New()
	f.WriteFile("/a/b", "x")
	f.Clear()
	if !f.Exists("/") {
		t.Fatal("root must survive Clear")
	}
	if f.Exists("/a") || f.Exists("/a/b") {
		t.Fatal("Clear must remove everything but root")
	}
	st := f.GetStats()
	if st.FileCount != 0 || st.DirCount != 1 {
		t.Fatalf("stats after Clear = %+v", st)
	}
}

func TestRemoveDoesNotRemoveParentDir(t *testing.T) {
	f := New()
	f.WriteFile("/a/b", "x")
	f.Remove("/a/b")
	if f.Exists("/a/b") {
		t.Fatal("file should be gone")
	}
	if !f.IsDirectory("/a") {
		t.Fatal("removing a file must not remove its parent directory")
	}
}

func TestRenameMovesFile(t *testing.T) {
	f := New()
	f.WriteFile("/a", "x")
	if err := f.Rename("/a", "/b"); err != nil {
		t.Fatal(err)
	}
	if f.Exists("/a") {
		t.Fatal("/a should no longer exist")
	}
	got, err := f.ReadFile("/b")
	if err != nil || string(got) != "x" {
		t.Fatalf("ReadFile(/b) = %q, %v", got, err)
	}
}

func TestGetStats(t *testing.T) {
	f := New()
	f.WriteFile("/main.go", "package main\n")
	f.WriteFile("/pkg/a.txt", []byte("hello"))
	st := f.GetStats()
	if st.FileCount != 2 {
		t.Fatalf("FileCount = %d, want 2", st.FileCount)
	}
	if st.GoFileCount != 1 {
		t.Fatalf("GoFileCount = %d, want 1", st.GoFileCount)
	}
	if st.TotalBytes != int64(len("package main\n")+len("hello")) {
		t.Fatalf("TotalBytes = %d", st.TotalBytes)
	}
}

func TestSnapshotDeterministic(t *testing.T) {
	f := New()
	f.WriteFile("/a", "1")
	f.WriteFile("/b", "2")
	s1 := f.Snapshot()
	s2 := f.Snapshot()
	if len(s1) != 2 || string(s1["/a"]) != "1" || string(s1["/b"]) != "2" {
		t.Fatalf("unexpected snapshot: %v", s1)
	}
	for k, v := range s1 {
		if string(s2[k]) != string(v) {
			t.Fatalf("snapshot not stable for %q", k)
		}
	}
}

func contains(xs []string, want string) bool {
	for _, x := range xs {
		if x == want {
			return true
		}
	}
	return false
}
