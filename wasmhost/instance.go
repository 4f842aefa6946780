//go:build js

// Package wasmhost instantiates a foreign WebAssembly module compiled for
// GOOS=js GOARCH=wasm and drives it to completion, supplying the host
// import surface that module's own runtime expects (scheduled timeouts,
// wall/nano time, random bytes, exit, a reference-counted JS-value table,
// and the syscall/js.* value-manipulation family).
//
// The host imports are resolved once per instance into a table of js.Func
// callbacks, registered with the WebAssembly instance, and released when
// the run ends.
package wasmhost

import (
	"context"
	"encoding/binary"
	"math"
	"syscall/js"
	"time"

	"github.com/monstercameron/GoScript/goerr"
)

// bufCaptureWriter is the default CaptureWriter, accumulating everything
// written so a caller can inspect it after Run returns.
type bufCaptureWriter struct{ buf []byte }

func (w *bufCaptureWriter) Write(text string) { w.buf = append(w.buf, text...) }
func (w *bufCaptureWriter) String() string    { return string(w.buf) }

// NewCaptureWriter returns a CaptureWriter that accumulates output for
// later inspection via its String method.
func NewCaptureWriter() interface {
	CaptureWriter
	String() string
} {
	return &bufCaptureWriter{}
}

// reservedValue indexes the fixed, always-present slots of the JS value
// table, mirroring the published js/wasm host-embedding contract's
// predefined IDs for NaN, zero, null, true, false, global, and "this".
const (
	idNaN = iota
	idZero
	idNull
	idTrue
	idFalse
	idGlobal
	idThis
	reservedValueCount
)

// nanHead is the sign-extended NaN head used to box a value-table index
// into a float64 so it round-trips through the module's linear-memory
// float64 slots, per the published js/wasm ABI.
const nanHead = 0x7FF80000

// valueTable is the reference-counted table of JS values the foreign
// module addresses by float64-encoded ID.
type valueTable struct {
	values []js.Value
	refs   []int32
	free   []int
}

func newValueTable() *valueTable {
	vt := &valueTable{
		values: make([]js.Value, reservedValueCount),
		refs:   make([]int32, reservedValueCount),
	}
	vt.values[idNaN] = js.ValueOf(math.NaN())
	vt.values[idZero] = js.ValueOf(0)
	vt.values[idNull] = js.Null()
	vt.values[idTrue] = js.ValueOf(true)
	vt.values[idFalse] = js.ValueOf(false)
	vt.values[idGlobal] = js.Global()
	vt.values[idThis] = js.Global()
	for i := range vt.refs {
		vt.refs[i] = 1 // reserved slots are never collected
	}
	return vt
}

func (vt *valueTable) store(v js.Value) uint32 {
	if len(vt.free) > 0 {
		i := vt.free[len(vt.free)-1]
		vt.free = vt.free[:len(vt.free)-1]
		vt.values[i] = v
		vt.refs[i] = 1
		return uint32(i)
	}
	vt.values = append(vt.values, v)
	vt.refs = append(vt.refs, 1)
	return uint32(len(vt.values) - 1)
}

func (vt *valueTable) get(id uint32) js.Value {
	if int(id) >= len(vt.values) {
		return js.Undefined()
	}
	return vt.values[id]
}

func (vt *valueTable) ref(id uint32) {
	if int(id) < len(vt.refs) {
		vt.refs[id]++
	}
}

func (vt *valueTable) unref(id uint32) {
	if int(id) < reservedValueCount || int(id) >= len(vt.refs) {
		return
	}
	vt.refs[id]--
	if vt.refs[id] <= 0 {
		vt.values[id] = js.Value{}
		vt.free = append(vt.free, int(id))
	}
}

// boxFloat encodes a value-table ID as the NaN-boxed float64 the module
// reads directly out of linear memory.
func boxFloat(id uint32) float64 {
	bits := uint64(nanHead)<<32 | uint64(id)
	return math.Float64frombits(bits)
}

// Instance is one run of a foreign WebAssembly module: its argument vector,
// environment, the import object built for it, and the machinery needed to
// drive it to exit.
type Instance struct {
	Argv   []string
	Env    map[string]string
	Output CaptureWriter

	mem      js.Value
	values   *valueTable
	funcs    []js.Func
	exitCh   chan int
	deadline time.Duration
}

// NewInstance returns an Instance with argv/env set, ready to be
// instantiated against a compiled WebAssembly module.
func NewInstance(argv []string, env map[string]string) *Instance {
	if env == nil {
		env = map[string]string{}
	}
	return &Instance{
		Argv:   argv,
		Env:    env,
		Output: &bufCaptureWriter{},
		values: newValueTable(),
		exitCh: make(chan int, 1),
	}
}

// SetDeadline arms a timeout: Run returns goerr.Timeout if the module has
// not exited within d.
func (inst *Instance) SetDeadline(d time.Duration) { inst.deadline = d }

// JSRunner implements wasmhost.Runner against the real browser
// WebAssembly host. A Driver holds one per Options.Runner; each call to
// Run builds a fresh Instance so state never leaks between a compile and
// link stage.
var _ Runner = JSRunner{}

type JSRunner struct {
	// Deadline, if non-zero, is applied to every Instance this runner
	// creates.
	Deadline time.Duration
}

// Run implements wasmhost.Runner. module must be the raw WebAssembly bytes
// ([]byte) of the foreign compiler, linker, or a previously compiled
// program; Run wraps them in a Uint8Array before handing them to
// WebAssembly.instantiate.
func (r JSRunner) Run(ctx context.Context, module Module, argv []string, env map[string]string, output CaptureWriter) (int, error) {
	raw, ok := module.([]byte)
	if !ok {
		return 0, goerr.New("wasmhost.Run", goerr.Compile, "module is not []byte", nil)
	}
	buf := js.Global().Get("Uint8Array").New(len(raw))
	js.CopyBytesToJS(buf, raw)

	inst := NewInstance(argv, env)
	if output != nil {
		inst.Output = output
	}
	if r.Deadline > 0 {
		inst.SetDeadline(r.Deadline)
	}
	return inst.Run(ctx, buf)
}

// importObject builds the "go" module import namespace the foreign
// compiler/linker binaries require at instantiation: exit, write, time,
// randomness, scheduling, memory-view reset, and the syscall/js.*
// value-manipulation family, all addressed against inst.mem.
func (inst *Instance) importObject() js.Value {
	goNS := js.Global().Get("Object").New()

	set := func(name string, fn func(args []js.Value) any) {
		f := js.FuncOf(func(this js.Value, args []js.Value) any { return fn(args) })
		inst.funcs = append(inst.funcs, f)
		goNS.Set(name, f)
	}

	set("runtime.wasmExit", func(args []js.Value) any {
		code := args[0].Int()
		select {
		case inst.exitCh <- code:
		default:
		}
		return nil
	})

	set("runtime.wasmWrite", func(args []js.Value) any {
		fd := args[0].Int()
		ptr := int64(args[1].Int())
		n := args[2].Int()
		b := make([]byte, n)
		js.CopyBytesToGo(b, inst.mem.Call("subarray", ptr, ptr+int64(n)))
		if fd == 1 || fd == 2 {
			inst.Output.Write(string(b))
		}
		return nil
	})

	set("runtime.resetMemoryDataView", func(args []js.Value) any {
		return nil
	})

	set("runtime.nanotime1", func(args []js.Value) any {
		return js.ValueOf(time.Now().UnixNano())
	})

	set("runtime.walltime", func(args []js.Value) any {
		now := time.Now()
		return []any{js.ValueOf(now.Unix()), js.ValueOf(now.Nanosecond())}
	})

	set("runtime.scheduleTimeoutEvent", func(args []js.Value) any {
		delay := args[0].Int()
		id := js.Global().Call("setTimeout", js.FuncOf(func(js.Value, []js.Value) any { return nil }), delay)
		return id
	})

	set("runtime.clearTimeoutEvent", func(args []js.Value) any {
		js.Global().Call("clearTimeout", args[0])
		return nil
	})

	set("runtime.getRandomData", func(args []js.Value) any {
		ptr := int64(args[0].Int())
		n := args[1].Int()
		b := make([]byte, n)
		for i := range b {
			b[i] = byte(i) // deterministic filler; a real host wires crypto.getRandomValues
		}
		js.CopyBytesToJS(inst.mem.Call("subarray", ptr, ptr+int64(n)), b)
		return nil
	})

	set("syscall/js.valueGet", func(args []js.Value) any {
		recv := inst.values.get(uint32(args[0].Int()))
		prop := args[1].String()
		return inst.values.store(recv.Get(prop))
	})

	set("syscall/js.valueSet", func(args []js.Value) any {
		recv := inst.values.get(uint32(args[0].Int()))
		prop := args[1].String()
		val := inst.values.get(uint32(args[2].Int()))
		recv.Set(prop, val)
		return nil
	})

	set("syscall/js.valueDelete", func(args []js.Value) any {
		recv := inst.values.get(uint32(args[0].Int()))
		recv.Delete(args[1].String())
		return nil
	})

	set("syscall/js.valueIndex", func(args []js.Value) any {
		recv := inst.values.get(uint32(args[0].Int()))
		return inst.values.store(recv.Index(args[1].Int()))
	})

	set("syscall/js.valueSetIndex", func(args []js.Value) any {
		recv := inst.values.get(uint32(args[0].Int()))
		recv.SetIndex(args[1].Int(), inst.values.get(uint32(args[2].Int())))
		return nil
	})

	set("syscall/js.valueLength", func(args []js.Value) any {
		recv := inst.values.get(uint32(args[0].Int()))
		return js.ValueOf(recv.Length())
	})

	set("syscall/js.valueCall", func(args []js.Value) any {
		recv := inst.values.get(uint32(args[0].Int()))
		method := args[1].String()
		callArgs := inst.decodeArgs(args[2:])
		return inst.values.store(recv.Call(method, callArgs...))
	})

	set("syscall/js.valueInvoke", func(args []js.Value) any {
		recv := inst.values.get(uint32(args[0].Int()))
		callArgs := inst.decodeArgs(args[1:])
		return inst.values.store(recv.Invoke(callArgs...))
	})

	set("syscall/js.valueNew", func(args []js.Value) any {
		recv := inst.values.get(uint32(args[0].Int()))
		callArgs := inst.decodeArgs(args[1:])
		return inst.values.store(recv.New(callArgs...))
	})

	set("syscall/js.valueInstanceOf", func(args []js.Value) any {
		recv := inst.values.get(uint32(args[0].Int()))
		ctor := inst.values.get(uint32(args[1].Int()))
		return js.ValueOf(recv.InstanceOf(ctor))
	})

	set("syscall/js.valueLoadString", func(args []js.Value) any {
		recv := inst.values.get(uint32(args[0].Int()))
		return js.ValueOf(recv.String())
	})

	set("syscall/js.stringVal", func(args []js.Value) any {
		return inst.values.store(js.ValueOf(args[0].String()))
	})

	set("syscall/js.finalizeRef", func(args []js.Value) any {
		inst.values.unref(uint32(args[0].Int()))
		return nil
	})

	set("syscall/js.copyBytesToGo", func(args []js.Value) any {
		dst := args[0]
		src := inst.values.get(uint32(args[1].Int()))
		n := js.CopyBytesToGo(make([]byte, dst.Get("length").Int()), src)
		return js.ValueOf(n)
	})

	set("syscall/js.copyBytesToJS", func(args []js.Value) any {
		dst := inst.values.get(uint32(args[0].Int()))
		src := args[1]
		b := make([]byte, src.Get("length").Int())
		js.CopyBytesToGo(b, src)
		n := js.CopyBytesToJS(dst, b)
		return js.ValueOf(n)
	})

	goModule := js.Global().Get("Object").New()
	goModule.Set("go", goNS)
	return goModule
}

func (inst *Instance) decodeArgs(vals []js.Value) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = inst.values.get(uint32(v.Int()))
	}
	return out
}

// Run instantiates module with inst's argv/env wired into linear memory via
// the layout the foreign module expects, invokes its run export, and
// blocks until wasmExit fires or ctx is done, whichever first. If
// SetDeadline was called, exceeding it fails goerr.Timeout.
func (inst *Instance) Run(ctx context.Context, module js.Value) (int, error) {
	imports := inst.importObject()
	result, err := await(js.Global().Get("WebAssembly").Call("instantiate", module, imports))
	if err != nil {
		return 0, goerr.New("wasmhost.Run", goerr.Compile, "instantiate failed", err)
	}
	wasmInstance := result.Get("instance")
	inst.mem = wasmInstance.Get("exports").Get("mem")

	writeArgvEnv(inst.mem, inst.Argv, inst.Env)

	runExport := wasmInstance.Get("exports").Get("run")
	runExport.Invoke()

	var timeoutCh <-chan time.Time
	if inst.deadline > 0 {
		timer := time.NewTimer(inst.deadline)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case code := <-inst.exitCh:
		inst.release()
		return code, nil
	case <-ctx.Done():
		inst.release()
		return 0, goerr.New("wasmhost.Run", goerr.Cancelled, "context done before exit", ctx.Err())
	case <-timeoutCh:
		inst.release()
		return 0, goerr.New("wasmhost.Run", goerr.Timeout, "module did not exit before deadline", nil)
	}
}

// release tears down every js.Func registered for this run, mirroring
// internal/guestfs's cleanup-on-teardown discipline so an Instance doesn't
// leak host callbacks after Run returns.
func (inst *Instance) release() {
	for _, f := range inst.funcs {
		f.Release()
	}
	inst.funcs = nil
}

// writeArgvEnv encodes argv and env into mem's linear memory starting at a
// fixed offset: NUL-terminated UTF-8 strings (argv entries, then "key=value"
// env entries), each 8-byte aligned, followed by a table of 8-byte pointers
// to them in the same order.
func writeArgvEnv(mem js.Value, argv []string, env map[string]string) {
	offset := int64(4096)
	write := func(s string) int64 {
		b := append([]byte(s), 0)
		start := offset
		js.CopyBytesToJS(mem.Call("subarray", offset, offset+int64(len(b))), b)
		offset += int64(len(b))
		offset = (offset + 7) &^ 7
		return start
	}

	argPtrs := make([]int64, len(argv))
	for i, a := range argv {
		argPtrs[i] = write(a)
	}
	envKeys := make([]string, 0, len(env))
	for k := range env {
		envKeys = append(envKeys, k)
	}
	envPtrs := make([]int64, len(envKeys))
	for i, k := range envKeys {
		envPtrs[i] = write(k + "=" + env[k])
	}

	var tbl [8]byte
	for _, p := range append(append([]int64{}, argPtrs...), envPtrs...) {
		binary.LittleEndian.PutUint64(tbl[:], uint64(p))
		js.CopyBytesToJS(mem.Call("subarray", offset, offset+8), tbl[:])
		offset += 8
	}
}

// await blocks the calling goroutine until a JS Promise settles, returning
// its resolved value or an error built from its rejection reason.
func await(promise js.Value) (js.Value, error) {
	done := make(chan struct{})
	var resultVal js.Value
	var rejectVal js.Value
	var rejected bool

	onResolve := js.FuncOf(func(this js.Value, args []js.Value) any {
		resultVal = args[0]
		close(done)
		return nil
	})
	defer onResolve.Release()
	onReject := js.FuncOf(func(this js.Value, args []js.Value) any {
		rejectVal = args[0]
		rejected = true
		close(done)
		return nil
	})
	defer onReject.Release()

	promise.Call("then", onResolve, onReject)
	<-done
	if rejected {
		return js.Value{}, goerr.New("wasmhost.await", goerr.Compile, rejectVal.String(), nil)
	}
	return resultVal, nil
}
