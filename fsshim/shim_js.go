//go:build js

package fsshim

import (
	"errors"
	"syscall/js"

	"github.com/monstercameron/GoScript/goerr"
	"github.com/monstercameron/GoScript/vfs"
)

// JSShim is a Shim patched into a JS global namespace. The foreign compiler
// and linker look up fs/process by name at instantiation time; Install
// performs that patch once and Close restores whatever previously occupied
// those names.
type JSShim struct {
	*Shim
	global      js.Value
	prevFS      js.Value
	prevProcess js.Value
	funcs       []js.Func
}

// Install patches fs and process onto global, backed by vfsFS. The patch is
// sticky until Close is called; callers must Install before instantiating
// either foreign module.
func Install(global js.Value, vfsFS *vfs.FS) *JSShim {
	j := &JSShim{Shim: New(vfsFS), global: global}
	j.prevFS = global.Get("fs")
	j.prevProcess = global.Get("process")

	fsObj := js.Global().Get("Object").New()
	fsObj.Set("constants", j.constantsValue())
	j.bind(fsObj, "writeSync", j.jsWriteSync)
	j.bind(fsObj, "write", j.jsWrite)
	j.bind(fsObj, "open", j.jsOpen)
	j.bind(fsObj, "read", j.jsRead)
	j.bind(fsObj, "close", j.jsClose)
	j.bind(fsObj, "stat", j.jsStat)
	j.bind(fsObj, "lstat", j.jsLstat)
	j.bind(fsObj, "fstat", j.jsFstat)
	j.bind(fsObj, "mkdir", j.jsMkdir)
	j.bind(fsObj, "readdir", j.jsReaddir)
	j.bind(fsObj, "unlink", j.jsUnlink)
	j.bind(fsObj, "rename", j.jsRename)
	j.bind(fsObj, "rmdir", j.jsRmdir)
	global.Set("fs", fsObj)

	processObj := j.prevProcess
	if processObj.IsUndefined() || processObj.IsNull() {
		processObj = js.Global().Get("Object").New()
	}
	j.bind(processObj, "cwd", j.jsCwd)
	j.bind(processObj, "chdir", j.jsChdir)
	processObj.Set("pid", js.ValueOf(1))
	j.bind(processObj, "umask", j.jsUmask)
	global.Set("process", processObj)

	return j
}

// Close restores the globals Install overwrote and releases every js.Func
// registered along the way.
func (j *JSShim) Close() {
	j.global.Set("fs", j.prevFS)
	j.global.Set("process", j.prevProcess)
	for _, f := range j.funcs {
		f.Release()
	}
	j.funcs = nil
}

func (j *JSShim) bind(obj js.Value, name string, fn func(this js.Value, args []js.Value) any) {
	f := js.FuncOf(fn)
	j.funcs = append(j.funcs, f)
	obj.Set(name, f)
}

func (j *JSShim) constantsValue() js.Value {
	v := js.Global().Get("Object").New()
	for k, val := range Constants() {
		v.Set(k, js.ValueOf(val))
	}
	return v
}

// jsError builds a thrown-shaped Error with a code field mirroring the
// POSIX errno a Node-style fs binding would set, so the foreign runtime's
// generic error handling (which inspects .code) degrades gracefully.
func jsError(err error) js.Value {
	code := "EIO"
	var ge *goerr.Error
	if errors.As(err, &ge) {
		switch ge.Kind {
		case goerr.NotFound:
			code = "ENOENT"
		case goerr.BadFD:
			code = "EBADF"
		}
	}
	e := js.Global().Get("Error").New(err.Error())
	e.Set("code", code)
	return e
}

func callback(args []js.Value, idx int) js.Value {
	if idx < len(args) {
		return args[idx]
	}
	return js.Undefined()
}

func invoke(cb js.Value, errVal js.Value, results ...any) {
	if cb.IsUndefined() || cb.IsNull() {
		return
	}
	jsArgs := make([]any, 0, 1+len(results))
	jsArgs = append(jsArgs, errVal)
	jsArgs = append(jsArgs, results...)
	cb.Invoke(jsArgs...)
}

func bytesOf(v js.Value) []byte {
	b := make([]byte, v.Get("length").Int())
	js.CopyBytesToGo(b, v)
	return b
}

func (j *JSShim) jsWriteSync(this js.Value, args []js.Value) any {
	fd := args[0].Int()
	buf := bytesOf(args[1])
	n, err := j.WriteSync(fd, buf)
	if err != nil {
		panic(jsError(err))
	}
	return js.ValueOf(n)
}

func (j *JSShim) jsWrite(this js.Value, args []js.Value) any {
	fd := args[0].Int()
	buf := bytesOf(args[1])
	off := args[2].Int()
	length := args[3].Int()
	pos := int64(-1)
	if !args[4].IsNull() && !args[4].IsUndefined() {
		pos = int64(args[4].Int())
	}
	cb := callback(args, 5)
	data := buf[off:]
	n, err := j.Write(fd, data, length, pos)
	if err != nil {
		invoke(cb, jsError(err), js.ValueOf(0))
		return js.Undefined()
	}
	invoke(cb, js.Null(), js.ValueOf(n))
	return js.Undefined()
}

func (j *JSShim) jsOpen(this js.Value, args []js.Value) any {
	path := args[0].String()
	flags := args[1].Int()
	cb := callback(args, 3)
	fd, err := j.Open(path, flags)
	if err != nil {
		invoke(cb, jsError(err), js.ValueOf(0))
		return js.Undefined()
	}
	invoke(cb, js.Null(), js.ValueOf(fd))
	return js.Undefined()
}

func (j *JSShim) jsRead(this js.Value, args []js.Value) any {
	fd := args[0].Int()
	buf := args[1]
	off := args[2].Int()
	length := args[3].Int()
	pos := int64(-1)
	if !args[4].IsNull() && !args[4].IsUndefined() {
		pos = int64(args[4].Int())
	}
	cb := callback(args, 5)
	tmp := make([]byte, length)
	n, err := j.Read(fd, tmp, length, pos)
	if err != nil {
		invoke(cb, jsError(err), js.ValueOf(0))
		return js.Undefined()
	}
	if n > 0 {
		js.CopyBytesToJS(buf, tmp[:n])
		_ = off
	}
	invoke(cb, js.Null(), js.ValueOf(n))
	return js.Undefined()
}

func (j *JSShim) jsClose(this js.Value, args []js.Value) any {
	fd := args[0].Int()
	cb := callback(args, 1)
	j.Close(fd)
	invoke(cb, js.Null())
	return js.Undefined()
}

func statJS(st FileStat) js.Value {
	v := js.Global().Get("Object").New()
	v.Set("mode", js.ValueOf(int(st.Mode)))
	v.Set("size", js.ValueOf(st.Size))
	v.Set("ino", js.ValueOf(int(st.Ino)))
	v.Set("dev", js.ValueOf(int(st.Dev)))
	v.Set("uid", js.ValueOf(int(st.Uid)))
	v.Set("gid", js.ValueOf(int(st.Gid)))
	v.Set("nlink", js.ValueOf(int(st.Nlink)))
	v.Set("blksize", js.ValueOf(int(st.Blksize)))
	v.Set("blocks", js.ValueOf(int(st.Blocks)))
	ms := st.Mtime.UnixMilli()
	v.Set("mtimeMs", js.ValueOf(ms))
	v.Set("isFile", js.FuncOf(func(js.Value, []js.Value) any { return js.ValueOf(st.IsFile) }))
	v.Set("isDirectory", js.FuncOf(func(js.Value, []js.Value) any { return js.ValueOf(st.IsDirectory) }))
	return v
}

func (j *JSShim) jsStat(this js.Value, args []js.Value) any {
	path := args[0].String()
	cb := callback(args, 1)
	st, err := j.Stat(path)
	if err != nil {
		invoke(cb, jsError(err))
		return js.Undefined()
	}
	invoke(cb, js.Null(), statJS(st))
	return js.Undefined()
}

func (j *JSShim) jsLstat(this js.Value, args []js.Value) any {
	path := args[0].String()
	cb := callback(args, 1)
	st, err := j.Lstat(path)
	if err != nil {
		invoke(cb, jsError(err))
		return js.Undefined()
	}
	invoke(cb, js.Null(), statJS(st))
	return js.Undefined()
}

func (j *JSShim) jsFstat(this js.Value, args []js.Value) any {
	fd := args[0].Int()
	cb := callback(args, 1)
	st, err := j.Fstat(fd)
	if err != nil {
		invoke(cb, jsError(err))
		return js.Undefined()
	}
	invoke(cb, js.Null(), statJS(st))
	return js.Undefined()
}

func (j *JSShim) jsMkdir(this js.Value, args []js.Value) any {
	path := args[0].String()
	cb := callback(args, 2)
	j.Mkdir(path)
	invoke(cb, js.Null())
	return js.Undefined()
}

func (j *JSShim) jsReaddir(this js.Value, args []js.Value) any {
	path := args[0].String()
	cb := callback(args, 1)
	names := j.Readdir(path)
	arr := js.Global().Get("Array").New(len(names))
	for i, n := range names {
		arr.SetIndex(i, js.ValueOf(n))
	}
	invoke(cb, js.Null(), arr)
	return js.Undefined()
}

func (j *JSShim) jsUnlink(this js.Value, args []js.Value) any {
	path := args[0].String()
	cb := callback(args, 1)
	j.Unlink(path)
	invoke(cb, js.Null())
	return js.Undefined()
}

func (j *JSShim) jsRename(this js.Value, args []js.Value) any {
	src := args[0].String()
	dst := args[1].String()
	cb := callback(args, 2)
	if err := j.Rename(src, dst); err != nil {
		invoke(cb, jsError(err))
		return js.Undefined()
	}
	invoke(cb, js.Null())
	return js.Undefined()
}

func (j *JSShim) jsRmdir(this js.Value, args []js.Value) any {
	path := args[0].String()
	cb := callback(args, 1)
	j.Rmdir(path)
	invoke(cb, js.Null())
	return js.Undefined()
}

func (j *JSShim) jsCwd(this js.Value, args []js.Value) any {
	return js.ValueOf(j.Cwd())
}

func (j *JSShim) jsChdir(this js.Value, args []js.Value) any {
	j.Chdir(args[0].String())
	return js.Undefined()
}

func (j *JSShim) jsUmask(this js.Value, args []js.Value) any {
	return js.ValueOf(0)
}
