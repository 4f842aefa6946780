package pack

import "context"

// Store is a persistent, durable key/value cache of raw pack bytes keyed
// by URL. Errors are non-fatal to callers; Loader downgrades them to a log
// entry and proceeds as though the cache were empty.
type Store interface {
	Get(ctx context.Context, url string) ([]byte, bool, error)
	Put(ctx context.Context, url string, data []byte) error
	Clear(ctx context.Context) error
}

// memStore is an in-process Store used by tests that don't need a browser;
// production code uses the js-tagged jsstore package, backed by IndexedDB.
type memStore struct {
	data map[string][]byte
}

// NewMemStore returns a Store backed by an in-memory map.
func NewMemStore() Store {
	return &memStore{data: make(map[string][]byte)}
}

func (m *memStore) Get(_ context.Context, url string) ([]byte, bool, error) {
	b, ok := m.data[url]
	return b, ok, nil
}

func (m *memStore) Put(_ context.Context, url string, data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	m.data[url] = cp
	return nil
}

func (m *memStore) Clear(_ context.Context) error {
	m.data = make(map[string][]byte)
	return nil
}
