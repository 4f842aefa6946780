package driver

import (
	"fmt"
	"net/http"

	"github.com/monstercameron/GoScript/artifactcache"
	"github.com/monstercameron/GoScript/pack"
	"github.com/monstercameron/GoScript/wasmhost"
)

// Options holds the dependencies and callbacks needed to build a Driver.
type Options struct {
	// PackURL is fetched by the pack.Loader on the first Compile call.
	PackURL string
	// PackStore persists raw pack bytes across sessions.
	PackStore pack.Store
	// ArtifactStore persists compiled output bytes across sessions.
	ArtifactStore artifactcache.Store
	// Runner instantiates and drives the compiler/linker WebAssembly
	// modules.
	Runner wasmhost.Runner
	// Client is used for the pack fetch; http.DefaultClient if nil.
	Client *http.Client

	// OnProgress reports a 0-100 estimate and a short message for the
	// current stage.
	OnProgress func(pct int, msg string)
	// OnStage reports stage transitions.
	OnStage func(stage Stage, status string)
	// OnOutput receives text written to fd 1/2 during compile or run.
	OnOutput func(text string)
	// OnError reports a human-readable failure message.
	OnError func(msg string)
	// OnComplete reports a successful compile's bytes and metadata.
	OnComplete func(wasmBytes []byte, metadata artifactcache.Metadata)

	// Debug, if set, asks stage functions to log at debug level.
	Debug bool
}

func (o *Options) validate() error {
	if o.PackURL == "" {
		return fmt.Errorf("field PackURL cannot be empty")
	}
	if o.PackStore == nil {
		return fmt.Errorf("field PackStore cannot be nil")
	}
	if o.ArtifactStore == nil {
		return fmt.Errorf("field ArtifactStore cannot be nil")
	}
	if o.Runner == nil {
		return fmt.Errorf("field Runner cannot be nil")
	}
	if o.Client == nil {
		o.Client = http.DefaultClient
	}
	return nil
}

func (o *Options) notify(stage Stage, status string) {
	if o.OnStage != nil {
		o.OnStage(stage, status)
	}
}

func (o *Options) progress(pct int, msg string) {
	if o.OnProgress != nil {
		o.OnProgress(pct, msg)
	}
}

func (o *Options) fail(msg string) {
	if o.OnError != nil {
		o.OnError(msg)
	}
}
