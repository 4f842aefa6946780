// Package artifactcache is a persistent per-source-hash store of previously
// produced output binaries, so identical inputs short-circuit compilation.
package artifactcache

import (
	"encoding/binary"
	"encoding/hex"
	"hash/fnv"
	"sort"
)

// SourceHash is a stable, non-cryptographic digest over a canonicalized set
// of input files: sorted by path, each length-prefixed, then content
// bytes. A cached artifact that fails WebAssembly magic validation is
// recompiled rather than returned.
type SourceHash string

// NewSourceHash computes SourceHash over files, keyed by path. Two FNV-1a-64
// accumulators seeded differently are concatenated to widen the hash beyond
// a single 64-bit accumulator without reaching for crypto/*.
func NewSourceHash(files map[string][]byte) SourceHash {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	h1 := fnv.New64a()
	h2 := fnv.New64a()
	h2.Write([]byte{0x9E, 0x37, 0x79, 0xB9}) // distinct seed so h1 != h2 over the same input

	var lenBuf [4]byte
	for _, p := range paths {
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(p)))
		h1.Write(lenBuf[:])
		h1.Write([]byte(p))
		h2.Write(lenBuf[:])
		h2.Write([]byte(p))

		content := files[p]
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(content)))
		h1.Write(lenBuf[:])
		h1.Write(content)
		h2.Write(lenBuf[:])
		h2.Write(content)
	}

	out := make([]byte, 16)
	copy(out[:8], h1.Sum(nil))
	copy(out[8:], h2.Sum(nil))
	return SourceHash(hex.EncodeToString(out))
}
