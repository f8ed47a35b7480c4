// Package fsutil carries the one platform-specific concern the
// engine has: hinting to the kernel that a file handle will be read
// sequentially, so read-ahead is tuned accordingly. A real
// implementation on one platform, a harmless no-op everywhere else,
// since this engine only ever does sequential range reads, never
// random access.
package fsutil

import "os"

// AdviseSequential hints that f will be read sequentially from here
// on. Best-effort: a failure to advise is never an error the caller
// needs to handle, since it is purely a performance hint.
func AdviseSequential(f *os.File) {
	adviseSequential(f)
}
