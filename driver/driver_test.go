package driver

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/monstercameron/GoScript/artifactcache"
	"github.com/monstercameron/GoScript/pack"
	"github.com/monstercameron/GoScript/test/log"
	"github.com/monstercameron/GoScript/vfs"
	"github.com/monstercameron/GoScript/wasmhost"
)

// fakeRunner simulates the compiler/linker by inspecting argv rather than
// actually instantiating any WebAssembly bytes, and writes its declared
// output directly into the backing VFS, the same way the real foreign
// modules would via the FS-Shim's global fs object.
type fakeRunner struct {
	fs           *vfs.FS
	calls        int32
	failCompile  bool
	failLink     bool
	badMagic     bool
}

func flagValue(argv []string, flag string) string {
	for i, a := range argv {
		if a == flag && i+1 < len(argv) {
			return argv[i+1]
		}
	}
	return ""
}

func (r *fakeRunner) Run(ctx context.Context, module wasmhost.Module, argv []string, env map[string]string, output wasmhost.CaptureWriter) (int, error) {
	atomic.AddInt32(&r.calls, 1)
	out := flagValue(argv, "-o")
	cmd := ""
	if len(argv) > 0 {
		cmd = argv[0]
	}
	switch cmd {
	case "compile":
		if output != nil {
			output.Write("compiling\n")
		}
		if r.failCompile {
			return 1, nil
		}
		r.fs.WriteFile(out, "object-bytes")
	case "link":
		if r.failLink {
			return 1, nil
		}
		payload := []byte{0x00, 'a', 's', 'm', 0x01, 0x00, 0x00, 0x00}
		if r.badMagic {
			payload = []byte("not-wasm-bytes")
		}
		payload = append(payload, []byte("program-bytes")...)
		r.fs.WriteFile(out, payload)
	default:
		if output != nil {
			output.Write("running\n")
		}
	}
	return 0, nil
}

func samplePack(t *testing.T) []byte {
	t.Helper()
	buf, err := pack.Build([]byte("compiler-bytes"), []byte("linker-bytes"), map[string][]byte{
		"fmt": []byte("fmt archive"),
	}, false)
	if err != nil {
		t.Fatal(err)
	}
	return buf
}

func newTestDriver(t *testing.T, runner *fakeRunner) (*Driver, *httpPackServer) {
	t.Helper()
	srv := newHTTPPackServer(t, samplePack(t))
	d, err := New(Options{
		PackURL:       srv.URL(),
		PackStore:     pack.NewMemStore(),
		ArtifactStore: artifactcache.NewMemStore(),
		Runner:        runner,
	})
	if err != nil {
		t.Fatal(err)
	}
	runner.fs = d.fs
	return d, srv
}

func TestNewRejectsMissingFields(t *testing.T) {
	_, err := New(Options{})
	if err == nil {
		t.Fatal("expected error for empty Options")
	}
}

func TestCompileSucceedsAndCaches(t *testing.T) {
	ctx, done := log.TestLogger(context.Background(), t)
	defer done()
	runner := &fakeRunner{}
	d, srv := newTestDriver(t, runner)
	defer srv.Close()

	res := d.Compile(ctx, SingleFile("package main\nfunc main() {}\n"))
	if !res.Success {
		t.Fatalf("compile failed: %s", res.Error)
	}
	if len(res.Wasm) < 8 || string(res.Wasm[:4]) != "\x00asm" {
		t.Errorf("result wasm missing magic: %x", res.Wasm[:min(8, len(res.Wasm))])
	}
	if d.GetState() != Done {
		t.Errorf("state = %v, want Done", d.GetState())
	}

	callsAfterFirst := atomic.LoadInt32(&runner.calls)

	res2 := d.Compile(ctx, SingleFile("package main\nfunc main() {}\n"))
	if !res2.Success {
		t.Fatalf("second compile failed: %s", res2.Error)
	}
	if atomic.LoadInt32(&runner.calls) != callsAfterFirst {
		t.Errorf("second compile should hit the artifact cache without invoking the runner again, calls went %d -> %d", callsAfterFirst, runner.calls)
	}

	f, err := d.FileSystem().Open("output/main.wasm")
	if err != nil {
		t.Fatalf("FileSystem().Open(output/main.wasm): %v", err)
	}
	f.Close()
}

func TestCompileRejectsConcurrent(t *testing.T) {
	runner := &fakeRunner{}
	d, srv := newTestDriver(t, runner)
	defer srv.Close()

	d.mu.Lock()
	d.stage = Compile
	d.mu.Unlock()

	res := d.Compile(context.Background(), SingleFile("package main\n"))
	if res.Success {
		t.Fatal("expected Busy rejection")
	}
}

func TestCompileFailsWhenCompilerEmitsNoObject(t *testing.T) {
	ctx, done := log.TestLogger(context.Background(), t)
	defer done()
	runner := &fakeRunner{failCompile: true}
	d, srv := newTestDriver(t, runner)
	defer srv.Close()

	res := d.Compile(ctx, SingleFile("package main\n"))
	if res.Success {
		t.Fatal("expected failure")
	}
	if !contains(res.Error, "compile") && !contains(res.Error, "Compile") {
		t.Errorf("error should mention Compile kind, got %q", res.Error)
	}
	if d.GetState() != Failed {
		t.Errorf("state = %v, want Failed", d.GetState())
	}
}

func TestCompileFailsOnBadMagic(t *testing.T) {
	runner := &fakeRunner{badMagic: true}
	d, srv := newTestDriver(t, runner)
	defer srv.Close()

	res := d.Compile(context.Background(), SingleFile("package main\n"))
	if res.Success {
		t.Fatal("expected failure for missing WebAssembly magic")
	}
}

func TestRunDeliversCapturedOutput(t *testing.T) {
	runner := &fakeRunner{}
	d, srv := newTestDriver(t, runner)
	defer srv.Close()

	var captured string
	d.opts.OnOutput = func(text string) { captured += text }

	res := d.Run(context.Background(), []byte{0x00, 'a', 's', 'm', 0x01, 0x00, 0x00, 0x00}, RunOptions{})
	if !res.Success {
		t.Fatalf("run failed: %s", res.Error)
	}
	if captured == "" {
		t.Error("expected OnOutput to receive captured text")
	}
}

func contains(s, sub string) bool {
	return len(s) >= len(sub) && (func() bool {
		for i := 0; i+len(sub) <= len(s); i++ {
			if s[i:i+len(sub)] == sub {
				return true
			}
		}
		return false
	})()
}
