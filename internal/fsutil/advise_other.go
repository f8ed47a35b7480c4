//go:build !linux

package fsutil

import "os"

func adviseSequential(f *os.File) {}
