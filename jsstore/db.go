//go:build js

// Package jsstore implements pack.Store and artifactcache.Store against the
// browser's IndexedDB. One *DB opens a single IndexedDB database with two
// object stores, "goscript-packs" and "goscript-artifacts", and
// PackStore/ArtifactStore are thin typed views over the same handle.
package jsstore

import (
	"context"
	"syscall/js"

	"github.com/monstercameron/GoScript/goerr"
)

// DatabaseName is the IndexedDB database jsstore opens.
const DatabaseName = "goscript"

// DatabaseVersion is bumped whenever the object-store schema changes.
const DatabaseVersion = 1

const (
	packsObjectStore     = "goscript-packs"
	artifactsObjectStore = "goscript-artifacts"
)

// DB is a handle to the opened IndexedDB database, shared by PackStore and
// ArtifactStore.
type DB struct {
	handle js.Value
}

// Open opens (creating if necessary) the goscript IndexedDB database with
// both object stores declared.
func Open(ctx context.Context) (*DB, error) {
	idb := js.Global().Get("indexedDB")
	if idb.IsUndefined() {
		return nil, goerr.New("jsstore.Open", goerr.Format, "indexedDB not available in this host", nil)
	}
	req := idb.Call("open", DatabaseName, DatabaseVersion)

	done := make(chan struct{})
	var dbVal js.Value
	var openErr error

	var onUpgrade, onSuccess, onError js.Func
	onUpgrade = js.FuncOf(func(this js.Value, args []js.Value) any {
		db := args[0].Get("target").Get("result")
		names := db.Get("objectStoreNames")
		if !names.Call("contains", packsObjectStore).Bool() {
			db.Call("createObjectStore", packsObjectStore)
		}
		if !names.Call("contains", artifactsObjectStore).Bool() {
			db.Call("createObjectStore", artifactsObjectStore)
		}
		return nil
	})
	onSuccess = js.FuncOf(func(this js.Value, args []js.Value) any {
		dbVal = args[0].Get("target").Get("result")
		close(done)
		return nil
	})
	onError = js.FuncOf(func(this js.Value, args []js.Value) any {
		openErr = goerr.New("jsstore.Open", goerr.Format, "indexedDB open failed", nil)
		close(done)
		return nil
	})
	defer onUpgrade.Release()
	defer onSuccess.Release()
	defer onError.Release()

	req.Set("onupgradeneeded", onUpgrade)
	req.Set("onsuccess", onSuccess)
	req.Set("onerror", onError)

	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if openErr != nil {
		return nil, openErr
	}
	return &DB{handle: dbVal}, nil
}

// transaction runs fn with a read/write object-store handle for storeName,
// awaiting completion or the request's error event.
func (db *DB) transaction(ctx context.Context, storeName string, mode string, fn func(store js.Value) js.Value) (js.Value, error) {
	tx := db.handle.Call("transaction", []any{storeName}, mode)
	store := tx.Call("objectStore", storeName)
	reqResult := fn(store)

	done := make(chan struct{})
	var resultErr error
	var onSuccess, onError js.Func
	onSuccess = js.FuncOf(func(this js.Value, args []js.Value) any {
		close(done)
		return nil
	})
	onError = js.FuncOf(func(this js.Value, args []js.Value) any {
		resultErr = goerr.New("jsstore.transaction", goerr.Format, "request failed", nil)
		close(done)
		return nil
	})
	defer onSuccess.Release()
	defer onError.Release()
	reqResult.Set("onsuccess", onSuccess)
	reqResult.Set("onerror", onError)

	select {
	case <-done:
	case <-ctx.Done():
		return js.Value{}, ctx.Err()
	}
	if resultErr != nil {
		return js.Value{}, resultErr
	}
	return reqResult.Get("result"), nil
}
