package vfs

import (
	"github.com/jacobsa/fuse"

	"github.com/rivenmedia/rivenfs/internal/logger"
	"github.com/rivenmedia/rivenfs/internal/pathutil"
)

// cacheInvalidator pushes kernel dentry-cache invalidations (C10) through a
// *fuse.Notifier, the same mechanism gcsfuse wires into ServerConfig behind
// ExperimentalEnableDentryCache, except here it is always present:
// NewFileSystem builds one for every mount, since the structural mutation
// API (Mutations) is the only way this filesystem's contents ever change,
// and that change must reach a live kernel session. "Entry not yet cached"
// failures from the kernel are expected and swallowed, as the design calls
// for; nil is only ever passed in tests that don't construct a mount.
type cacheInvalidator struct {
	notifier *fuse.Notifier
	inodes   *inodeTable
}

func newCacheInvalidator(notifier *fuse.Notifier, inodes *inodeTable) *cacheInvalidator {
	return &cacheInvalidator{notifier: notifier, inodes: inodes}
}

func (c *cacheInvalidator) invalidateName(parentPath, name string) {
	if c.notifier == nil {
		return
	}
	parentID, ok := c.inodes.lookupInode(parentPath)
	if !ok {
		return
	}
	if err := c.notifier.InvalidateEntry(parentID, name); err != nil {
		logger.Tracef("invalidate entry %s/%s: %v (benign if not yet cached)", parentPath, name, err)
	}
}

// onAddFile invalidates the new name under its parent and walks the parent
// chain up to root invalidating each ancestor's name under its own parent,
// so the kernel picks up both the new leaf and any newly-created
// intermediate directories on the next lookup. Invalidating an ancestor
// that already existed is harmless, since the kernel treats it as "entry
// not yet cached" and ignores it.
func (c *cacheInvalidator) onAddFile(path string) {
	for p := path; p != "/"; p = pathutil.Parent(p) {
		c.invalidateName(pathutil.Parent(p), pathutil.Base(p))
	}
}

// onRemove invalidates the removed name under its parent and forgets the
// inode binding outright so a stale cached lookup cannot resurrect it; it
// also invalidates the names of the two nearest ancestors. Catalog.Remove
// may prune empty directories further up than that; those higher names are
// not invalidated here and keep any kernel dentry until it times out.
func (c *cacheInvalidator) onRemove(path string) {
	c.invalidateName(pathutil.Parent(path), pathutil.Base(path))
	c.inodes.forgetPath(path)

	anc := pathutil.Parent(path)
	for i := 0; i < 2 && anc != "/"; i++ {
		c.invalidateName(pathutil.Parent(anc), pathutil.Base(anc))
		anc = pathutil.Parent(anc)
	}
}

// onRename invalidates both the vacated old name and the newly occupied
// name, and forgets the old path's inode binding.
func (c *cacheInvalidator) onRename(oldPath, newPath string) {
	c.invalidateName(pathutil.Parent(oldPath), pathutil.Base(oldPath))
	c.invalidateName(pathutil.Parent(newPath), pathutil.Base(newPath))
	c.inodes.forgetPath(oldPath)
}
