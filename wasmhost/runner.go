// Package wasmhost instantiates a foreign WebAssembly module and drives it
// to exit. This file is OS-agnostic so driver can depend on the Runner
// contract without pulling in syscall/js; the real implementation lives in
// instance.go under the js build tag.
package wasmhost

import "context"

// CaptureWriter receives text written to fd 1/2 during a Run, routed
// through an injected sink so callers (and tests) can observe it
// deterministically instead of reading a real stdout/stderr stream.
type CaptureWriter interface {
	Write(text string)
}

// Module is the raw bytes of a foreign WebAssembly module awaiting
// instantiation. Declared as any (rather than []byte) so this file stays
// free of any assumption about how the js-tagged Runner converts it;
// driver never inspects it beyond passing it through.
type Module any

// Runner instantiates a foreign WebAssembly module and drives it to exit,
// supplying argv/env and capturing fd 1/2 output.
type Runner interface {
	Run(ctx context.Context, module Module, argv []string, env map[string]string, output CaptureWriter) (exitCode int, err error)
}
