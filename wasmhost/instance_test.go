//go:build js

package wasmhost

import (
	"syscall/js"
	"testing"
)

func TestValueTableReservedSlotsNeverCollected(t *testing.T) {
	vt := newValueTable()
	for id := uint32(0); id < reservedValueCount; id++ {
		vt.unref(id)
		if vt.refs[id] != 1 || len(vt.free) != 0 {
			t.Fatalf("reserved id %d collected after unref: refs=%d free=%v", id, vt.refs[id], vt.free)
		}
	}
}

func TestValueTableStoreAndFreeReuse(t *testing.T) {
	vt := newValueTable()
	id := vt.store(js.ValueOf("hello"))
	if got := vt.get(id).String(); got != "hello" {
		t.Fatalf("get(%d) = %q, want hello", id, got)
	}
	vt.unref(id)
	reused := vt.store(js.ValueOf("world"))
	if reused != id {
		t.Fatalf("expected freed slot %d to be reused, got %d", id, reused)
	}
}

func TestValueTableRefCounting(t *testing.T) {
	vt := newValueTable()
	id := vt.store(js.ValueOf(42))
	vt.ref(id)
	vt.unref(id)
	if got := vt.get(id).Int(); got != 42 {
		t.Fatalf("value should survive one unref after a ref, got %d", got)
	}
	vt.unref(id)
	if got := vt.get(id); !got.IsUndefined() {
		t.Fatalf("value should be gone after matching unref, got %v", got)
	}
}
