package pack

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/monstercameron/GoScript/goerr"
)

func buildSamplePack(t *testing.T, compress bool) []byte {
	t.Helper()
	packages := map[string][]byte{
		"fmt":     []byte("fmt archive bytes"),
		"strings": []byte("strings archive bytes"),
	}
	buf, err := Build([]byte("compiler-bytes"), []byte("linker-bytes"), packages, compress)
	if err != nil {
		t.Fatal(err)
	}
	return buf
}

func TestRoundTripUncompressed(t *testing.T) {
	buf := buildSamplePack(t, false)
	p, err := Parse(buf)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(p.GetCompilerBytes(), []byte("compiler-bytes")) {
		t.Errorf("compiler bytes = %q", p.GetCompilerBytes())
	}
	if !bytes.Equal(p.GetLinkerBytes(), []byte("linker-bytes")) {
		t.Errorf("linker bytes = %q", p.GetLinkerBytes())
	}
	if diff := cmp.Diff([]string{"fmt", "strings"}, p.PackageNames()); diff != "" {
		t.Errorf("PackageNames() mismatch (-want +got):\n%s", diff)
	}
	got, ok := p.GetPackage("fmt")
	if !ok || !bytes.Equal(got, []byte("fmt archive bytes")) {
		t.Errorf("GetPackage(fmt) = %q, %v", got, ok)
	}
	if _, ok := p.GetPackage("nope"); ok {
		t.Error("GetPackage(nope) should miss")
	}
}

func TestRoundTripCompressed(t *testing.T) {
	buf := buildSamplePack(t, true)
	p, err := Parse(buf)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := p.GetPackage("strings")
	if !ok || !bytes.Equal(got, []byte("strings archive bytes")) {
		t.Fatalf("GetPackage(strings) = %q, %v", got, ok)
	}
	// second access should hit the decompressed cache and return the same bytes.
	again, _ := p.GetPackage("strings")
	if !bytes.Equal(got, again) {
		t.Error("decompressed cache returned different bytes on second access")
	}
}

func TestMagicRejection(t *testing.T) {
	buf := buildSamplePack(t, false)
	for i := 0; i < len(Magic); i++ {
		corrupt := append([]byte(nil), buf...)
		corrupt[i] ^= 0xFF
		if _, err := Parse(corrupt); err == nil {
			t.Fatalf("byte %d: expected Format error for corrupted magic", i)
		} else if err.(*goerr.Error).Kind != goerr.Format {
			t.Fatalf("byte %d: err kind = %v, want Format", i, err.(*goerr.Error).Kind)
		}
	}
}

func TestEmptyPackFetchMiss(t *testing.T) {
	// spec scenario: magic + version 2 + four zero-length sections + 0 package count.
	var body bytes.Buffer
	body.WriteString(Magic)
	writeU32(&body, Version)
	writeU32(&body, 0) // compiler length
	writeU32(&body, 0) // linker length
	writeU32(&body, 0) // package-name JSON length
	writeU32(&body, 0) // package count
	writeU64(&body, uint64(body.Len()+8))

	p, err := Parse(body.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if len(p.PackageNames()) != 0 {
		t.Errorf("PackageNames() = %v, want empty", p.PackageNames())
	}
	if len(p.GetCompilerBytes()) != 0 {
		t.Errorf("GetCompilerBytes() length = %d, want 0", len(p.GetCompilerBytes()))
	}
}

func TestLoaderPrefersStoreOverNetwork(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	buf := buildSamplePack(t, false)
	if err := store.Put(ctx, "http://pack.example/p", buf); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("network should not be reached on a store hit")
	}))
	defer srv.Close()

	l := NewLoader(store, srv.Client())
	p, err := l.Load(ctx, "http://pack.example/p")
	if err != nil {
		t.Fatal(err)
	}
	if len(p.PackageNames()) != 2 {
		t.Fatalf("PackageNames() = %v", p.PackageNames())
	}
}

func TestLoaderFetchesAndPopulatesStoreOnMiss(t *testing.T) {
	ctx := context.Background()
	buf := buildSamplePack(t, false)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(buf)
	}))
	defer srv.Close()

	store := NewMemStore()
	l := NewLoader(store, srv.Client())
	if _, err := l.Load(ctx, srv.URL); err != nil {
		t.Fatal(err)
	}
	cached, ok, err := store.Get(ctx, srv.URL)
	if err != nil || !ok {
		t.Fatalf("store should be populated after a miss: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(cached, buf) {
		t.Error("cached bytes differ from fetched bytes")
	}
}

func TestLoaderNetworkFailureIsNetworkKind(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	l := NewLoader(NewMemStore(), srv.Client())
	_, err := l.Load(ctx, srv.URL)
	if err == nil {
		t.Fatal("expected an error")
	}
	if err.(*goerr.Error).Kind != goerr.Network {
		t.Fatalf("err kind = %v, want Network", err.(*goerr.Error).Kind)
	}
}
