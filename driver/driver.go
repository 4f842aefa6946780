// Package driver implements the toolchain host's top-level orchestrator: a
// long-lived Driver that owns the in-memory filesystem, the pack loader,
// and the artifact cache, and drives a seven-stage compile pipeline plus a
// separate run path over them.
package driver

import (
	"context"
	"io/fs"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quay/zlog"

	"github.com/monstercameron/GoScript/artifactcache"
	"github.com/monstercameron/GoScript/goerr"
	"github.com/monstercameron/GoScript/internal/filterfs"
	"github.com/monstercameron/GoScript/pack"
	"github.com/monstercameron/GoScript/vfs"
	"github.com/monstercameron/GoScript/wasmhost"
)

// outputSink adapts a func(string) to both fsshim.OutputSink and
// wasmhost.CaptureWriter, which share the same Write(text string) method
// set but are declared as distinct named interfaces in their packages.
type outputSink struct {
	fn func(string)
}

func (o outputSink) Write(text string) {
	if o.fn != nil {
		o.fn(text)
	}
}

// Driver is the toolchain host's top-level orchestrator.
type Driver struct {
	opts *Options

	fs *vfs.FS

	loader *pack.Loader
	cache  *artifactcache.Cache

	mu     sync.Mutex
	stage  Stage
	loaded *pack.Parser
}

// New validates opts, patches the host global namespace with the FS-Shim
// (a no-op outside the browser), and returns a Driver ready to compile.
// The shim must be patched before either foreign module is instantiated,
// so New does it once up front rather than per compile.
func New(opts Options) (*Driver, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	fs := vfs.New()
	installGlobalShim(fs)
	d := &Driver{
		opts:   &opts,
		fs:     fs,
		loader: pack.NewLoader(opts.PackStore, opts.Client),
		cache:  artifactcache.New(opts.ArtifactStore),
		stage:  Idle,
	}
	return d, nil
}

func (d *Driver) setStage(s Stage) {
	d.mu.Lock()
	d.stage = s
	d.mu.Unlock()
}

// GetState returns the Driver's current Stage.
func (d *Driver) GetState() Stage {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stage
}

// GetStats summarizes the VFS contents.
func (d *Driver) GetStats() vfs.Stats {
	return d.fs.GetStats()
}

// FileSystem exposes a read-only, defensively-filtered view of the
// compile VFS for external collaborators (a demo terminal's autocomplete,
// an output browser) that only need to read finished artifacts, not mutate
// build state.
func (d *Driver) FileSystem() fs.FS {
	return filterfs.New(d.fs)
}

// HasPackage reports whether name was indexed by the loaded pack's stdlib
// archive set.
func (d *Driver) HasPackage(name string) bool {
	d.mu.Lock()
	p := d.loaded
	d.mu.Unlock()
	if p == nil {
		return false
	}
	_, ok := p.GetPackage(name)
	return ok
}

// GetPackages lists every package name the loaded pack declares.
func (d *Driver) GetPackages() []string {
	d.mu.Lock()
	p := d.loaded
	d.mu.Unlock()
	if p == nil {
		return nil
	}
	return p.PackageNames()
}

// Reset clears the VFS and returns the Driver to Idle. The loaded pack
// stays resident so a reset doesn't force a redundant network fetch.
func (d *Driver) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fs.Clear()
	d.stage = Idle
}

// Compile runs the seven-stage pipeline over inputs. Only one Compile may
// be in progress at a time; a concurrent call is rejected with a failed
// result carrying a goerr.Busy error rather than blocking. If ctx is done
// at a stage boundary, the remaining stages are skipped and the Driver
// moves to Cancelled.
func (d *Driver) Compile(ctx context.Context, inputs Inputs) CompileResult {
	d.mu.Lock()
	if d.stage.Busy() {
		d.mu.Unlock()
		return CompileResult{Success: false, Error: goerr.New("driver.Compile", goerr.Busy, "compile already in progress", nil).Error()}
	}
	d.stage = LoadToolchain
	d.mu.Unlock()

	id := uuid.NewString()
	ctx = zlog.ContextWithValues(ctx, "compile_id", id)

	s := &buildState{
		ctx:           ctx,
		d:             d,
		correlationID: id,
		inputs:        inputs,
		start:         time.Now(),
	}

	for f := stageLoadToolchain; f != nil; {
		if err := ctx.Err(); err != nil {
			msg := goerr.New("driver.Compile", goerr.Cancelled, "compile cancelled", err).Error()
			d.setStage(Cancelled)
			s.out = &CompileResult{Success: false, Error: msg}
			compilesTotal.WithLabelValues(string(goerr.Cancelled)).Inc()
			d.opts.notify(Cancelled, "cancelled")
			d.opts.fail(msg)
			break
		}
		f = f(s)
	}

	if s.out == nil {
		// Every terminal stageFn sets s.out before returning nil;
		// this only triggers on a programmer error in the FSM.
		s.out = &CompileResult{Success: false, Error: "pipeline produced no result"}
	}
	return *s.out
}

// Run executes previously compiled wasm bytes via a fresh wasmhost.Runner
// instance. The Driver retains no state across calls: bytes are supplied
// by the caller each time.
func (d *Driver) Run(ctx context.Context, wasmBytes []byte, opts RunOptions) RunResult {
	var buf []string
	sink := outputSink{fn: func(text string) {
		buf = append(buf, text)
		if d.opts.OnOutput != nil {
			d.opts.OnOutput(text)
		}
	}}

	exitCode, err := d.opts.Runner.Run(ctx, wasmhost.Module(wasmBytes), opts.Args, opts.Env, sink)
	out := joinOutput(buf)
	if err != nil {
		return RunResult{Success: false, Output: out, Error: err.Error(), ExitCode: exitCode}
	}
	return RunResult{Success: exitCode == 0, Output: out, ExitCode: exitCode}
}

func joinOutput(parts []string) string {
	total := 0
	for _, p := range parts {
		total += len(p)
	}
	buf := make([]byte, 0, total)
	for _, p := range parts {
		buf = append(buf, p...)
	}
	return string(buf)
}
