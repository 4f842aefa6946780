package artifactcache

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/quay/zlog"
)

// Cache wraps a Store: Store errors are logged and treated as a miss
// rather than surfaced to the caller, and concurrent Produce callers racing
// the same hash within one process are coalesced into a single call to
// produce via a singleflight.Group.
type Cache struct {
	store Store
	sf    singleflight.Group
}

// New returns a Cache over store.
func New(store Store) *Cache {
	return &Cache{store: store}
}

// Get looks up hash. A Store error is logged and reported as a miss, never
// returned to the caller.
func (c *Cache) Get(ctx context.Context, hash SourceHash) (*ArtifactRecord, bool) {
	rec, ok, err := c.store.Get(ctx, hash)
	if err != nil {
		zlog.Warn(ctx).Err(err).Str("hash", string(hash)).Msg("artifact cache get failed, treating as miss")
		return nil, false
	}
	return rec, ok
}

// Put stores record, logging (not propagating) any Store error.
func (c *Cache) Put(ctx context.Context, record *ArtifactRecord) {
	if err := c.store.Put(ctx, record); err != nil {
		zlog.Warn(ctx).Err(err).Str("hash", string(record.SourceHash)).Msg("artifact cache put failed")
	}
}

// Produce returns the cached record for hash if present; otherwise it calls
// produce exactly once per set of concurrent callers sharing hash, caches
// the result, and returns it to all of them.
func (c *Cache) Produce(ctx context.Context, hash SourceHash, produce func(context.Context) (*ArtifactRecord, error)) (*ArtifactRecord, error, bool) {
	if rec, ok := c.Get(ctx, hash); ok {
		return rec, nil, true
	}
	v, err, shared := c.sf.Do(string(hash), func() (any, error) {
		rec, err := produce(ctx)
		if err != nil {
			return nil, err
		}
		c.Put(ctx, rec)
		return rec, nil
	})
	if err != nil {
		return nil, err, false
	}
	return v.(*ArtifactRecord), nil, shared
}
