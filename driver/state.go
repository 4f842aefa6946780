package driver

import (
	"context"
	"errors"
	"time"

	"github.com/monstercameron/GoScript/artifactcache"
	"github.com/monstercameron/GoScript/goerr"
)

// Inputs is the source set a Compile call builds from: path relative to
// the working directory, mapped to file content.
type Inputs map[string]string

// SingleFile wraps a single source string as Inputs, for callers that only
// have one file and don't want to name it.
func SingleFile(source string) Inputs {
	return Inputs{"main.go": source}
}

// CompileMetadata is the informational half of a successful compile.
type CompileMetadata struct {
	CompileTime time.Duration
	WasmSize    int
	SourceFiles int
}

// CompileResult is Driver.Compile's return value.
type CompileResult struct {
	Success  bool
	Wasm     []byte
	Error    string
	Metadata CompileMetadata
}

// RunOptions customizes a Driver.Run call.
type RunOptions struct {
	Args []string
	Env  map[string]string
}

// RunResult is Driver.Run's return value.
type RunResult struct {
	Success  bool
	Output   string
	Error    string
	ExitCode int
}

// buildState is the working set threaded through the self-referential
// compile pipeline: one instance per Compile call.
type buildState struct {
	ctx context.Context
	d   *Driver

	correlationID string
	inputs        Inputs
	hash          artifactcache.SourceHash

	compiler []byte
	linker   []byte

	workDir     string
	sourcePaths []string
	objPath     string
	wasmPath    string
	wasmBytes   []byte

	start time.Time

	out *CompileResult
	err error
}

// emitOutput forwards captured fd 1/2 text to Options.OnOutput, if set.
func (s *buildState) emitOutput(text string) {
	if s.d.opts.OnOutput != nil {
		s.d.opts.OnOutput(text)
	}
}

// stageFn is the self-referential type for each stage of the compile
// pipeline. A nil return is terminal.
type stageFn func(*buildState) stageFn

// outcomeOf extracts a metrics-friendly label from err, falling back to
// "error" for anything not carrying a goerr.Kind.
func outcomeOf(err error) string {
	var ge *goerr.Error
	if errors.As(err, &ge) {
		return string(ge.Kind)
	}
	return "error"
}

func (s *buildState) fail(stage Stage, err error) stageFn {
	s.err = err
	s.d.setStage(Failed)
	msg := err.Error()
	s.out = &CompileResult{Success: false, Error: msg}
	compilesTotal.WithLabelValues(outcomeOf(err)).Inc()
	s.d.opts.notify(Failed, stage.String())
	s.d.opts.fail(msg)
	return nil
}

// complete marks the pipeline successful with wasm and metadata, and is
// the one path (besides fail) that sets s.out and returns the terminal nil.
func (s *buildState) complete(wasm []byte, meta CompileMetadata) stageFn {
	s.d.setStage(Done)
	s.out = &CompileResult{Success: true, Wasm: wasm, Metadata: meta}
	compilesTotal.WithLabelValues("success").Inc()
	s.d.opts.notify(Done, "complete")
	s.d.opts.progress(100, "complete")
	if s.d.opts.OnComplete != nil {
		s.d.opts.OnComplete(wasm, artifactcache.Metadata{
			ProducedAt:    time.Now(),
			InputSize:     inputsByteSize(s.inputs),
			OutputSize:    len(wasm),
			Target:        "js_wasm",
			Optimizations: "",
		})
	}
	return nil
}
