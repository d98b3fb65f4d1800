//go:build linux || darwin

package vfs

import (
	"os"
	"syscall"
)

// deviceOf returns the st_dev of info, or 0 if the platform-specific
// syscall.Stat_t assertion fails.
func deviceOf(info os.FileInfo) uint64 {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0
	}
	return uint64(stat.Dev)
}
