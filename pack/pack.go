// Package pack implements a bit-exact binary container format: a
// "GOSCRIPT"-magic TLV carrying a foreign compiler blob, a foreign linker
// blob, a package-name list, and an indexed region of standard-library
// archive blobs.
package pack

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"sort"

	"github.com/klauspost/compress/zstd"
	"github.com/monstercameron/GoScript/goerr"
)

// Magic is the fixed 8-byte ASCII literal every pack begins with.
const Magic = "GOSCRIPT"

// Version is the only accepted pack format version.
const Version = 2

// compressionKind tags how an archive blob is stored in the data region,
// so the standard-library archive region can be shipped zstd-compressed
// without changing any other offset in the format.
type compressionKind byte

const (
	compressionStore compressionKind = 0
	compressionZstd  compressionKind = 1
)

// packageEntry records where one archive's (possibly compressed) bytes live
// in the pack buffer.
type packageEntry struct {
	name           string
	absoluteOffset int // offset of the 1-byte compression-kind tag
	size           int // size of the stored payload, not counting the tag
}

// Parser holds a fully parsed pack. Archive blobs are zero-copy views into
// buf until decompression is required.
type Parser struct {
	buf            []byte
	compilerBytes  []byte
	linkerBytes    []byte
	names          []string
	index          map[string]packageEntry
	decompressed   map[string][]byte
	dataRegionBase int
}

// cursor is a sequential reader over a byte slice, failing with a
// goerr.Format error instead of panicking on overrun.
type cursor struct {
	buf []byte
	pos int
}

func (c *cursor) remaining() int { return len(c.buf) - c.pos }

func (c *cursor) take(n int) ([]byte, error) {
	if n < 0 || n > c.remaining() {
		return nil, goerr.New("pack.Parse", goerr.Format, "section overruns buffer", nil)
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

func (c *cursor) u32() (uint32, error) {
	b, err := c.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (c *cursor) u64() (uint64, error) {
	b, err := c.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (c *cursor) u16() (uint16, error) {
	b, err := c.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// Parse validates the header and builds the archive index. It does not
// decompress or copy archive payloads; those remain views into buf.
func Parse(buf []byte) (*Parser, error) {
	c := &cursor{buf: buf}

	magic, err := c.take(len(Magic))
	if err != nil {
		return nil, goerr.New("pack.Parse", goerr.Format, "truncated before magic", err)
	}
	if string(magic) != Magic {
		return nil, goerr.New("pack.Parse", goerr.Format, "bad magic", nil)
	}

	version, err := c.u32()
	if err != nil {
		return nil, goerr.New("pack.Parse", goerr.Format, "truncated version", err)
	}
	if version != Version {
		return nil, goerr.New("pack.Parse", goerr.Format, "unsupported version", nil)
	}

	l1, err := c.u32()
	if err != nil {
		return nil, err
	}
	compilerBytes, err := c.take(int(l1))
	if err != nil {
		return nil, goerr.New("pack.Parse", goerr.Format, "compiler section overrun", err)
	}

	l2, err := c.u32()
	if err != nil {
		return nil, err
	}
	linkerBytes, err := c.take(int(l2))
	if err != nil {
		return nil, goerr.New("pack.Parse", goerr.Format, "linker section overrun", err)
	}

	l3, err := c.u32()
	if err != nil {
		return nil, err
	}
	namesJSON, err := c.take(int(l3))
	if err != nil {
		return nil, goerr.New("pack.Parse", goerr.Format, "package-name section overrun", err)
	}
	var names []string
	if len(namesJSON) > 0 {
		if err := json.Unmarshal(namesJSON, &names); err != nil {
			return nil, goerr.New("pack.Parse", goerr.Format, "package-name JSON invalid", err)
		}
	}

	count, err := c.u32()
	if err != nil {
		return nil, err
	}

	indexOffset, err := c.u64()
	if err != nil {
		return nil, err
	}

	dataRegionBase := c.pos

	if int(indexOffset) < 0 || int(indexOffset) > len(buf) {
		return nil, goerr.New("pack.Parse", goerr.Format, "index offset out of range", nil)
	}
	idx := &cursor{buf: buf, pos: int(indexOffset)}

	index := make(map[string]packageEntry, count)
	for i := uint32(0); i < count; i++ {
		nameLen, err := idx.u16()
		if err != nil {
			return nil, goerr.New("pack.Parse", goerr.Format, "index entry truncated", err)
		}
		nameBytes, err := idx.take(int(nameLen))
		if err != nil {
			return nil, goerr.New("pack.Parse", goerr.Format, "index entry name overrun", err)
		}
		dataOffset, err := idx.u64()
		if err != nil {
			return nil, err
		}
		dataSize, err := idx.u32()
		if err != nil {
			return nil, err
		}
		abs := dataRegionBase + int(dataOffset)
		if abs < 0 || abs+1+int(dataSize) > len(buf) {
			return nil, goerr.New("pack.Parse", goerr.Format, "archive range out of bounds", nil)
		}
		index[string(nameBytes)] = packageEntry{name: string(nameBytes), absoluteOffset: abs, size: int(dataSize)}
	}

	return &Parser{
		buf:            buf,
		compilerBytes:  compilerBytes,
		linkerBytes:    linkerBytes,
		names:          names,
		index:          index,
		decompressed:   make(map[string][]byte),
		dataRegionBase: dataRegionBase,
	}, nil
}

// GetCompilerBytes returns the compiler module's WebAssembly bytes.
func (p *Parser) GetCompilerBytes() []byte { return p.compilerBytes }

// GetLinkerBytes returns the linker module's WebAssembly bytes.
func (p *Parser) GetLinkerBytes() []byte { return p.linkerBytes }

// PackageNames returns the declared package-name list, possibly empty.
func (p *Parser) PackageNames() []string { return p.names }

// GetPackage returns the archive bytes for name, decompressing and caching
// on first access if the entry was zstd-compressed. Returns false if name
// isn't in the index.
func (p *Parser) GetPackage(name string) ([]byte, bool) {
	e, ok := p.index[name]
	if !ok {
		return nil, false
	}
	if cached, ok := p.decompressed[name]; ok {
		return cached, true
	}
	if e.size == 0 {
		return nil, true
	}
	tag := compressionKind(p.buf[e.absoluteOffset])
	payload := p.buf[e.absoluteOffset+1 : e.absoluteOffset+1+e.size]
	if tag == compressionStore {
		return payload, true
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, false
	}
	defer dec.Close()
	out, err := dec.DecodeAll(payload, nil)
	if err != nil {
		return nil, false
	}
	p.decompressed[name] = out
	return out, true
}

// archiveInput is the uncompressed source for one package entry, supplied
// to Build.
type archiveInput struct {
	name string
	data []byte
}

// Build assembles a pack buffer from a compiler module, a linker module,
// and a set of named archives, inverting Parse. Used by tests to construct
// valid packs instead of hand-assembling byte slices.
func Build(compiler, linker []byte, packages map[string][]byte, compress bool) ([]byte, error) {
	names := make([]string, 0, len(packages))
	for name := range packages {
		names = append(names, name)
	}
	sort.Strings(names)

	namesJSON, err := json.Marshal(names)
	if err != nil {
		return nil, err
	}

	var body bytes.Buffer
	body.WriteString(Magic)
	writeU32(&body, Version)
	writeU32(&body, uint32(len(compiler)))
	body.Write(compiler)
	writeU32(&body, uint32(len(linker)))
	body.Write(linker)
	writeU32(&body, uint32(len(namesJSON)))
	body.Write(namesJSON)
	writeU32(&body, uint32(len(names)))

	indexOffsetPos := body.Len()
	writeU64(&body, 0) // patched below

	dataRegionBase := body.Len()

	type builtEntry struct {
		name       string
		dataOffset uint64
		dataSize   uint32
	}
	var enc *zstd.Encoder
	if compress {
		enc, err = zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		defer enc.Close()
	}

	entries := make([]builtEntry, 0, len(names))
	for _, name := range names {
		raw := packages[name]
		kind := compressionStore
		payload := raw
		if compress && len(raw) > 0 {
			payload = enc.EncodeAll(raw, nil)
			kind = compressionZstd
		}
		offset := uint64(body.Len() - dataRegionBase)
		body.WriteByte(byte(kind))
		body.Write(payload)
		entries = append(entries, builtEntry{name: name, dataOffset: offset, dataSize: uint32(len(payload))})
	}

	indexOffset := uint64(body.Len())
	for _, e := range entries {
		writeU16(&body, uint16(len(e.name)))
		body.WriteString(e.name)
		writeU64(&body, e.dataOffset)
		writeU32(&body, e.dataSize)
	}

	out := body.Bytes()
	binary.LittleEndian.PutUint64(out[indexOffsetPos:indexOffsetPos+8], indexOffset)
	return out, nil
}

func writeU16(b *bytes.Buffer, v uint16) {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	b.Write(tmp[:])
}

func writeU32(b *bytes.Buffer, v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	b.Write(tmp[:])
}

func writeU64(b *bytes.Buffer, v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	b.Write(tmp[:])
}
