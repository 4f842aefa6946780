package fsshim

// Flag constants the foreign compiler/linker read directly off fs.constants.
// Values are part of the ABI contract with those binaries and must match
// bit-for-bit.
const (
	OWronly    = 1
	ORdwr      = 2
	OCreat     = 64
	OTrunc     = 512
	OAppend    = 1024
	OExcl      = 128
	ODirectory = 65536
)

// Constants returns the published fs.constants map, in the exact shape the
// foreign modules expect to read it.
func Constants() map[string]int {
	return map[string]int{
		"O_WRONLY":    OWronly,
		"O_RDWR":      ORdwr,
		"O_CREAT":     OCreat,
		"O_TRUNC":     OTrunc,
		"O_APPEND":    OAppend,
		"O_EXCL":      OExcl,
		"O_DIRECTORY": ODirectory,
	}
}

// Reserved file descriptors. Never allocated to files; writes route to the
// host output sink instead of VFS.
const (
	FDStdin  = 0
	FDStdout = 1
	FDStderr = 2

	// FDFloor is the first FD number allocated to an opened file.
	FDFloor = 100
)
