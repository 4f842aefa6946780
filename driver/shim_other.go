//go:build !js

package driver

import "github.com/monstercameron/GoScript/vfs"

// installGlobalShim is a no-op outside the browser; there is no host
// global namespace to patch when running driver's tests on a native GOOS.
func installGlobalShim(fs *vfs.FS) {}
