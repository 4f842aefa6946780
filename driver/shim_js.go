//go:build js

package driver

import (
	"syscall/js"

	"github.com/monstercameron/GoScript/fsshim"
	"github.com/monstercameron/GoScript/vfs"
)

// installGlobalShim patches the browser's global fs/process namespace so
// the compiler and linker modules' imports resolve against fs. It must run
// before either module is instantiated, and the patch stays in place for
// the page's lifetime.
func installGlobalShim(fs *vfs.FS) {
	fsshim.Install(js.Global(), fs)
}
