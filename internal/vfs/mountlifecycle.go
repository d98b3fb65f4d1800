package vfs

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/jacobsa/fuse"

	"github.com/rivenmedia/rivenfs/cfg"
	"github.com/rivenmedia/rivenfs/internal/logger"
)

// unmountStrategies is the ordered list of commands tried against a
// possibly-stale mountpoint before rivenfs mounts its own server there,
// carried over verbatim from the original implementation's
// _prepare_mountpoint: fusermount3 is preferred where present (modern
// Linux), fusermount is the older equivalent, and umount -l is the last
// resort lazy-unmount when neither fuse-specific helper exists.
var unmountStrategies = [][]string{
	{"fusermount3", "-u", "-z"},
	{"fusermount", "-u", "-z"},
	{"umount", "-l"},
}

// MountLifecycle owns one mount's startup and shutdown sequence (C11):
// preparing the mountpoint, driving fuse.Mount, and coordinating a clean
// fuse.Unmount, the same role cmd/mount.go's mountWithStorageHandle plus
// registerSIGINTHandler play together in the teacher, just packaged as a
// single reusable type instead of inline main-package code.
type MountLifecycle struct {
	dir string
	mfs *fuse.MountedFileSystem
}

// Mount prepares dir (unmounting anything stale already there, creating the
// directory if needed) and mounts server on it per §4.10 step 4. The
// dispatch loop runs on fuse's own background goroutine; call Wait to block
// until it exits and Close to request a clean shutdown.
func Mount(dir string, server fuse.Server, mountCfg cfg.MountConfig) (*MountLifecycle, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving mountpoint: %w", err)
	}

	if isMounted(absDir) {
		logger.Warnf("%s appears already mounted, attempting to unmount it first", absDir)
		unmountStale(absDir)
	}

	if err := os.MkdirAll(absDir, 0755); err != nil {
		return nil, fmt.Errorf("creating mountpoint %s: %w", absDir, err)
	}

	fuseCfg := &fuse.MountConfig{
		FSName:     mountCfg.FSName,
		Subtype:    "rivenfs",
		VolumeName: mountCfg.FSName,
		Options:    fuseOptions(mountCfg),
	}

	mfs, err := fuse.Mount(absDir, server, fuseCfg)
	if err != nil {
		return nil, fmt.Errorf("mount: %w", err)
	}

	return &MountLifecycle{dir: absDir, mfs: mfs}, nil
}

// fuseOptions builds the {fsname, allow_other, [debug]} mount option set
// called for by §4.10 step 4.
func fuseOptions(mountCfg cfg.MountConfig) map[string]string {
	opts := map[string]string{"fsname": mountCfg.FSName}
	if mountCfg.AllowOther {
		opts["allow_other"] = ""
	}
	if mountCfg.DebugFuse {
		opts["debug"] = ""
	}
	return opts
}

// Dir returns the absolute mountpoint path.
func (m *MountLifecycle) Dir() string {
	return m.dir
}

// Wait blocks until the mount is unmounted, by any means (Close, an
// external `fusermount -u`, or a kernel-initiated teardown).
func (m *MountLifecycle) Wait(ctx context.Context) error {
	return m.mfs.Join(ctx)
}

// Close requests termination and waits up to timeout for the dispatch loop
// to join, per §4.10 shutdown steps 1-2, then always issues a final unmount
// through unmountStale's fusermount/umount chain as a safety net (step 3)
// and removes the mountpoint directory if it is
// now empty (step 4). All errors at this stage are logged and swallowed,
// matching the design's explicit tolerance for a best-effort shutdown.
func (m *MountLifecycle) Close(timeout time.Duration) {
	if err := fuse.Unmount(m.dir); err != nil {
		logger.Warnf("unmount %s: %v (will retry via Join timeout)", m.dir, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := m.mfs.Join(ctx); err != nil {
		logger.Warnf("join after unmount request for %s: %v", m.dir, err)
	}
	unmountStale(m.dir)

	removeIfEmpty(m.dir)
}

// isMounted reports whether dir looks like an active mountpoint, by
// comparing its device number against its parent's: a mounted directory
// sits on a different device than the filesystem containing it.
func isMounted(dir string) bool {
	info, err := os.Stat(dir)
	if err != nil {
		return false
	}
	parentInfo, err := os.Stat(filepath.Dir(dir))
	if err != nil {
		return false
	}
	return !os.SameFile(info, parentInfo) && deviceOf(info) != deviceOf(parentInfo)
}

// unmountStale tries each strategy in unmountStrategies in turn, tolerating
// a missing binary (exec.LookPath failure) and moving on to the next
// strategy; it stops at the first strategy that runs without error.
func unmountStale(dir string) {
	for _, strategy := range unmountStrategies {
		bin := strategy[0]
		if _, err := exec.LookPath(bin); err != nil {
			continue
		}
		args := append(append([]string{}, strategy[1:]...), dir)
		cmd := exec.Command(bin, args...)
		if err := cmd.Run(); err != nil {
			logger.Tracef("unmount strategy %s %v on %s failed: %v", bin, args, dir, err)
			continue
		}
		logger.Infof("unmounted stale mount at %s via %s", dir, bin)
		return
	}
}

// removeIfEmpty removes dir if it exists and has no entries left in it,
// swallowing any error per §4.10 shutdown step 4.
func removeIfEmpty(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) > 0 {
		return
	}
	if err := os.Remove(dir); err != nil {
		logger.Tracef("removing empty mountpoint %s: %v", dir, err)
	}
}
