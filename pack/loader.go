package pack

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/quay/zlog"

	"github.com/monstercameron/GoScript/goerr"
	"github.com/monstercameron/GoScript/internal/cache"
	"github.com/monstercameron/GoScript/internal/httputil"
	"github.com/monstercameron/GoScript/vfs"
)

// Loader fetches and parses a pack: check Store, else fetch over HTTP and
// write back, then Parse. A Loader is used once per pack URL; the Driver's
// first compile stage calls Load and keeps the resulting *Parser for the
// Driver's lifetime, across later compiles and resets.
type Loader struct {
	Store  Store
	Client *http.Client
}

// NewLoader returns a Loader backed by store, using http.DefaultClient if
// client is nil.
func NewLoader(store Store, client *http.Client) *Loader {
	if client == nil {
		client = http.DefaultClient
	}
	return &Loader{Store: store, Client: client}
}

// liveParsers holds already-parsed packs in process memory, keyed by URL,
// for as long as something in the process still references the *Parser.
// Shared across every Loader: two Loaders (e.g. two Driver instances)
// pointed at the same pack URL within one page/process parse it at most
// once between them.
var liveParsers cache.Live[string, Parser]

// Load fetches and parses the pack at url. Store errors are logged and
// treated as a cache miss, never fatal; parse failures are fatal and
// returned as a goerr.Format error. Concurrent and repeat calls for the
// same url within the process are coalesced by liveParsers rather than
// re-fetched or re-parsed.
func (l *Loader) Load(ctx context.Context, url string) (*Parser, error) {
	return liveParsers.Get(ctx, url, l.fetchAndParse)
}

// fetchAndParse is liveParsers' CreateFunc: the actual Store-then-network
// sequence, invoked at most once per url per live cache entry.
func (l *Loader) fetchAndParse(ctx context.Context, url string) (*Parser, error) {
	if b, ok, err := l.Store.Get(ctx, url); err != nil {
		zlog.Warn(ctx).Err(err).Str("url", url).Msg("pack store get failed, falling back to network")
	} else if ok {
		zlog.Debug(ctx).Str("url", url).Msg("pack store hit")
		return Parse(b)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, goerr.New("pack.Load", goerr.Network, url, err)
	}
	resp, err := l.Client.Do(req)
	if err != nil {
		return nil, goerr.New("pack.Load", goerr.Network, url, err)
	}
	defer resp.Body.Close()
	if err := httputil.CheckResponse(resp, http.StatusOK); err != nil {
		return nil, goerr.New("pack.Load", goerr.Network, url, err)
	}
	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, goerr.New("pack.Load", goerr.Network, url, err)
	}

	if err := l.Store.Put(ctx, url, buf); err != nil {
		zlog.Warn(ctx).Err(err).Str("url", url).Msg("pack store put failed")
	}

	return Parse(buf)
}

// ArchTarget names the stdlib archive subdirectory the foreign linker
// expects: /pkg/<ArchTarget>/<name>.a.
const ArchTarget = "js_wasm"

// LoadAllIntoVFS writes every archive in the pack's package index into vfs
// at /pkg/<ArchTarget>/<name>.a, taking ownership of the archive bytes by
// reference rather than copying.
func LoadAllIntoVFS(ctx context.Context, p *Parser, fs *vfs.FS) error {
	for _, name := range p.PackageNames() {
		data, ok := p.GetPackage(name)
		if !ok {
			zlog.Warn(ctx).Str("package", name).Msg("package name declared but missing from index")
			continue
		}
		path := fmt.Sprintf("/pkg/%s/%s.a", ArchTarget, name)
		fs.WriteFile(path, data)
	}
	return nil
}
