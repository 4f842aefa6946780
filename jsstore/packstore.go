//go:build js

package jsstore

import (
	"context"
	"syscall/js"

	"github.com/monstercameron/GoScript/pack"
)

// PackStore implements pack.Store against the "goscript-packs" object
// store: key = pack URL, value = raw bytes.
type PackStore struct {
	db *DB
}

var _ pack.Store = (*PackStore)(nil)

// NewPackStore returns a pack.Store backed by db.
func NewPackStore(db *DB) *PackStore { return &PackStore{db: db} }

func (s *PackStore) Get(ctx context.Context, url string) ([]byte, bool, error) {
	val, err := s.db.transaction(ctx, packsObjectStore, "readonly", func(store js.Value) js.Value {
		return store.Call("get", url)
	})
	if err != nil {
		return nil, false, err
	}
	if val.IsUndefined() || val.IsNull() {
		return nil, false, nil
	}
	b := make([]byte, val.Get("length").Int())
	js.CopyBytesToGo(b, val)
	return b, true, nil
}

func (s *PackStore) Put(ctx context.Context, url string, data []byte) error {
	arr := js.Global().Get("Uint8Array").New(len(data))
	js.CopyBytesToJS(arr, data)
	_, err := s.db.transaction(ctx, packsObjectStore, "readwrite", func(store js.Value) js.Value {
		return store.Call("put", arr, url)
	})
	return err
}

func (s *PackStore) Clear(ctx context.Context) error {
	_, err := s.db.transaction(ctx, packsObjectStore, "readwrite", func(store js.Value) js.Value {
		return store.Call("clear")
	})
	return err
}
