//go:build js

package jsstore

import (
	"context"
	"syscall/js"
	"time"

	"github.com/monstercameron/GoScript/artifactcache"
)

// ArtifactStore implements artifactcache.Store against the
// "goscript-artifacts" object store: key = source hash, value = {bytes,
// metadata}.
type ArtifactStore struct {
	db *DB
}

var _ artifactcache.Store = (*ArtifactStore)(nil)

// NewArtifactStore returns an artifactcache.Store backed by db.
func NewArtifactStore(db *DB) *ArtifactStore { return &ArtifactStore{db: db} }

func (s *ArtifactStore) Get(ctx context.Context, hash artifactcache.SourceHash) (*artifactcache.ArtifactRecord, bool, error) {
	val, err := s.db.transaction(ctx, artifactsObjectStore, "readonly", func(store js.Value) js.Value {
		return store.Call("get", string(hash))
	})
	if err != nil {
		return nil, false, err
	}
	if val.IsUndefined() || val.IsNull() {
		return nil, false, nil
	}
	return &artifactcache.ArtifactRecord{
		SourceHash: hash,
		Bytes:      bytesOfValue(val.Get("bytes")),
		Metadata:   metadataFromJS(val.Get("metadata")),
	}, true, nil
}

func (s *ArtifactStore) Put(ctx context.Context, record *artifactcache.ArtifactRecord) error {
	arr := js.Global().Get("Uint8Array").New(len(record.Bytes))
	js.CopyBytesToJS(arr, record.Bytes)

	meta := js.Global().Get("Object").New()
	meta.Set("producedAt", record.Metadata.ProducedAt.Format(time.RFC3339Nano))
	meta.Set("inputSize", record.Metadata.InputSize)
	meta.Set("outputSize", record.Metadata.OutputSize)
	meta.Set("optimizations", record.Metadata.Optimizations)
	meta.Set("target", record.Metadata.Target)

	entry := js.Global().Get("Object").New()
	entry.Set("bytes", arr)
	entry.Set("metadata", meta)

	_, err := s.db.transaction(ctx, artifactsObjectStore, "readwrite", func(store js.Value) js.Value {
		return store.Call("put", entry, string(record.SourceHash))
	})
	return err
}

func (s *ArtifactStore) Clear(ctx context.Context) error {
	_, err := s.db.transaction(ctx, artifactsObjectStore, "readwrite", func(store js.Value) js.Value {
		return store.Call("clear")
	})
	return err
}

func bytesOfValue(v js.Value) []byte {
	b := make([]byte, v.Get("length").Int())
	js.CopyBytesToGo(b, v)
	return b
}

func metadataFromJS(v js.Value) artifactcache.Metadata {
	m := artifactcache.Metadata{
		InputSize:     v.Get("inputSize").Int(),
		OutputSize:    v.Get("outputSize").Int(),
		Optimizations: v.Get("optimizations").String(),
		Target:        v.Get("target").String(),
	}
	if t, err := time.Parse(time.RFC3339Nano, v.Get("producedAt").String()); err == nil {
		m.ProducedAt = t
	}
	return m
}
