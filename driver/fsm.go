package driver

import (
	"fmt"
	"time"

	"github.com/quay/zlog"

	"github.com/monstercameron/GoScript/artifactcache"
	"github.com/monstercameron/GoScript/goerr"
	"github.com/monstercameron/GoScript/pack"
)

func inputsByteSize(in Inputs) int {
	n := 0
	for _, v := range in {
		n += len(v)
	}
	return n
}

func inputsAsFiles(in Inputs) map[string][]byte {
	out := make(map[string][]byte, len(in))
	for p, content := range in {
		out[p] = []byte(content)
	}
	return out
}

// stageLoadToolchain is stage 1: ensure the pack is loaded and its stdlib
// archives are present in the working VFS.
func stageLoadToolchain(s *buildState) stageFn {
	s.d.setStage(LoadToolchain)
	s.d.opts.notify(LoadToolchain, "start")
	s.d.opts.progress(0, "loading toolchain")

	s.d.mu.Lock()
	loaded := s.d.loaded
	s.d.mu.Unlock()

	if loaded == nil {
		p, err := s.d.loader.Load(s.ctx, s.d.opts.PackURL)
		if err != nil {
			return s.fail(LoadToolchain, err)
		}
		if err := pack.LoadAllIntoVFS(s.ctx, p, s.d.fs); err != nil {
			return s.fail(LoadToolchain, err)
		}
		s.d.mu.Lock()
		s.d.loaded = p
		s.d.mu.Unlock()
		loaded = p
	}
	s.compiler = loaded.GetCompilerBytes()
	s.linker = loaded.GetLinkerBytes()

	s.d.opts.progress(15, "toolchain ready")
	return stageCacheCheck
}

// stageCacheCheck is stage 2: short-circuit on a cached artifact for this
// exact set of inputs.
func stageCacheCheck(s *buildState) stageFn {
	s.d.setStage(CacheCheck)
	s.d.opts.notify(CacheCheck, "start")

	s.hash = artifactcache.NewSourceHash(inputsAsFiles(s.inputs))

	rec, hit := s.d.cache.Get(s.ctx, s.hash)
	if hit && (len(rec.Bytes) < 8 || string(rec.Bytes[:4]) != "\x00asm" || string(rec.Bytes[4:8]) != "\x01\x00\x00\x00") {
		zlog.Debug(s.ctx).Str("hash", string(s.hash)).Msg("cached artifact failed validation, recompiling")
		hit = false
	}
	if hit {
		cacheHitsTotal.Inc()
		zlog.Debug(s.ctx).Str("hash", string(s.hash)).Msg("artifact cache hit")
		return s.complete(rec.Bytes, CompileMetadata{
			CompileTime: time.Since(s.start),
			WasmSize:    len(rec.Bytes),
			SourceFiles: len(s.inputs),
		})
	}

	s.d.opts.progress(20, "cache miss")
	return stageStageSources
}

// stageStageSources is stage 3: write each input file into a fresh working
// directory keyed by the compile's correlation ID.
func stageStageSources(s *buildState) stageFn {
	s.d.setStage(StageSources)
	s.d.opts.notify(StageSources, "start")

	s.workDir = fmt.Sprintf("/tmp/%s", s.correlationID)
	s.sourcePaths = make([]string, 0, len(s.inputs))
	for p, content := range s.inputs {
		full := s.workDir + "/" + p
		s.d.fs.WriteFile(full, content)
		s.sourcePaths = append(s.sourcePaths, full)
	}

	s.d.opts.progress(30, "sources staged")
	return stagePrepareBuild
}

// stagePrepareBuild is stage 4: ensure the standard build directories exist
// and drop an informational build-info blob.
func stagePrepareBuild(s *buildState) stageFn {
	s.d.setStage(PrepareBuild)
	s.d.opts.notify(PrepareBuild, "start")

	s.d.fs.Mkdir("/tmp")
	s.d.fs.Mkdir("/build")
	s.d.fs.Mkdir("/output")

	s.objPath = fmt.Sprintf("/build/%s.o", s.correlationID)
	s.wasmPath = "/output/main.wasm"

	info := fmt.Sprintf("compile_id=%s\nsource_files=%d\n", s.correlationID, len(s.inputs))
	s.d.fs.WriteFile(fmt.Sprintf("/build/%s.info", s.correlationID), info)

	s.d.opts.progress(40, "build prepared")
	return stageCompile
}

// stageCompile is stage 5: instantiate the compiler module, check its exit
// code, and verify the declared object file shows up in the VFS.
func stageCompile(s *buildState) stageFn {
	s.d.setStage(Compile)
	s.d.opts.notify(Compile, "start")

	pkgDir := fmt.Sprintf("/pkg/%s", pack.ArchTarget)
	argv := append([]string{"compile", "-o", s.objPath, "-p", "main", "-I", pkgDir}, s.sourcePaths...)
	env := map[string]string{"GOOS": "js", "GOARCH": "wasm", "GOROOT": "/"}
	if s.d.opts.Debug {
		zlog.Debug(s.ctx).Strs("argv", argv).Msg("invoking compiler")
	}

	started := time.Now()
	sink := outputSink{fn: s.emitOutput}
	code, err := s.d.opts.Runner.Run(s.ctx, s.compiler, argv, env, sink)
	stageDuration.WithLabelValues(Compile.String()).Observe(time.Since(started).Seconds())
	if err != nil {
		return s.fail(Compile, err)
	}
	if code != 0 {
		return s.fail(Compile, goerr.New("driver.compile", goerr.Compile, fmt.Sprintf("compiler exited with code %d", code), nil))
	}
	if !s.d.fs.Exists(s.objPath) {
		return s.fail(Compile, goerr.New("driver.compile", goerr.Compile, "compiler did not produce "+s.objPath, nil))
	}

	s.d.opts.progress(60, "compiled")
	return stageLink
}

// stageLink is stage 6: instantiate the linker module, check its exit code,
// verify the output file exists, and validate the WebAssembly magic.
func stageLink(s *buildState) stageFn {
	s.d.setStage(Link)
	s.d.opts.notify(Link, "start")

	pkgDir := fmt.Sprintf("/pkg/%s", pack.ArchTarget)
	argv := []string{"link", "-o", s.wasmPath, "-L", pkgDir, s.objPath}
	env := map[string]string{"GOOS": "js", "GOARCH": "wasm", "GOROOT": "/"}

	started := time.Now()
	sink := outputSink{fn: s.emitOutput}
	code, err := s.d.opts.Runner.Run(s.ctx, s.linker, argv, env, sink)
	stageDuration.WithLabelValues(Link.String()).Observe(time.Since(started).Seconds())
	if err != nil {
		return s.fail(Link, err)
	}
	if code != 0 {
		return s.fail(Link, goerr.New("driver.link", goerr.Link, fmt.Sprintf("linker exited with code %d", code), nil))
	}
	if !s.d.fs.Exists(s.wasmPath) {
		return s.fail(Link, goerr.New("driver.link", goerr.Link, "linker did not produce "+s.wasmPath, nil))
	}

	out, err := s.d.fs.ReadFile(s.wasmPath)
	if err != nil {
		return s.fail(Link, goerr.New("driver.link", goerr.Link, "reading linked output", err))
	}
	if len(out) < 8 || string(out[:4]) != "\x00asm" || string(out[4:8]) != "\x01\x00\x00\x00" {
		return s.fail(Link, goerr.New("driver.link", goerr.Format, "linked output missing WebAssembly magic", nil))
	}
	s.wasmBytes = out

	s.d.opts.progress(85, "linked")
	return stagePublish
}

// stagePublish is stage 7: persist the artifact and signal completion.
func stagePublish(s *buildState) stageFn {
	s.d.setStage(Publish)
	s.d.opts.notify(Publish, "start")

	meta := CompileMetadata{
		CompileTime: time.Since(s.start),
		WasmSize:    len(s.wasmBytes),
		SourceFiles: len(s.inputs),
	}
	s.d.cache.Put(s.ctx, &artifactcache.ArtifactRecord{
		SourceHash: s.hash,
		Bytes:      s.wasmBytes,
		Metadata: artifactcache.Metadata{
			ProducedAt: time.Now(),
			InputSize:  inputsByteSize(s.inputs),
			OutputSize: len(s.wasmBytes),
			Target:     "js_wasm",
		},
	})

	return s.complete(s.wasmBytes, meta)
}
