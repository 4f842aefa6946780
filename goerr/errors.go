// Package goerr defines the error-kind domain type shared across the
// toolchain host: VFS, FS-Shim, PackLoader, ArtifactCache, FuncRunner, and
// Driver all wrap failures in an *Error so callers can inspect the kind with
// errors.Is instead of matching strings.
package goerr

import (
	"errors"
	"strings"
)

// Error is the goscript error domain type.
//
// Errors coming out of toolchain-host components should be inspectable
// (errors.As) as an *Error at some point in the chain. Components should
// create an Error at the boundary where a fault is first detected (a missing
// VFS path, a bad pack header, a non-zero compiler exit) and let intermediate
// layers wrap with fmt.Errorf("%w") rather than nesting another Error.
type Error struct {
	Inner   error
	Kind    Kind
	Message string
	Op      string
}

var (
	_ error                       = (*Error)(nil)
	_ interface{ Is(error) bool } = (*Error)(nil)
	_ interface{ Unwrap() error } = (*Error)(nil)
)

// Error implements error.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(" ")
	}
	b.WriteString("[")
	b.WriteString(string(e.Kind))
	b.WriteString("]")
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Inner != nil {
		b.WriteString(": ")
		b.WriteString(e.Inner.Error())
	}
	return b.String()
}

// Is enables errors.Is against one of the Kind sentinels below.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// Unwrap enables errors.Unwrap.
func (e *Error) Unwrap() error { return e.Inner }

// New constructs an *Error with the given op/kind/message, wrapping inner if
// non-nil.
func New(op string, kind Kind, msg string, inner error) *Error {
	return &Error{Op: op, Kind: kind, Message: msg, Inner: inner}
}

// Kind classifies a toolchain-host failure. See spec §7.
type Kind string

// Error implements error so a bare Kind can be used with errors.Is.
func (k Kind) Error() string { return string(k) }

// Defined kinds, per spec §7.
var (
	// NotFound: missing file in VFS, propagated from readFile.
	NotFound = Kind("not-found")
	// BadFD: unknown file descriptor in a shim operation.
	BadFD = Kind("bad-fd")
	// Network: HTTP non-OK fetching a pack.
	Network = Kind("network")
	// Format: bad pack header/section lengths, or a produced binary missing
	// the WebAssembly magic.
	Format = Kind("format")
	// Compile: the compiler module exited non-zero, or its declared output
	// is absent from the VFS.
	Compile = Kind("compile")
	// Link: analogous to Compile, for the linker stage.
	Link = Kind("link")
	// Busy: compile() called while one is already in progress.
	Busy = Kind("busy")
	// Cancelled: pipeline cancelled before reaching Complete.
	Cancelled = Kind("cancelled")
	// Timeout: foreign-module execution exceeded an implementer-chosen
	// bound.
	Timeout = Kind("timeout")
)
