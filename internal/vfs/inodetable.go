// Package vfs implements the FUSE-facing half of rivenfs: the InodeTable,
// HandleTable, per-path lock map, HTTP range fetcher and the KernelAdapter
// that wires them into a jacobsa/fuse server, plus the mount lifecycle that
// drives fuse.Mount/fuse.Unmount. It plays the role gcsfuse's fs package
// plays for GCS, but over a Catalog of debrid-provider URLs instead of GCS
// objects.
package vfs

import (
	"sync"

	"github.com/jacobsa/fuse/fuseops"

	"github.com/rivenmedia/rivenfs/internal/pathutil"
)

// inodeTable binds catalog paths to stable fuseops.InodeID values for the
// lifetime of the mount, mirroring the inodes/generationBackedInodes maps
// gcsfuse's fileSystem keeps under fs.mu, simplified because a path is its
// own stable identity here (no GCS object generation to race against).
type inodeTable struct {
	mu sync.Mutex

	nextID fuseops.InodeID

	pathToInode map[string]fuseops.InodeID
	inodeToPath map[fuseops.InodeID]string

	// lookupCount mirrors the kernel's reference count for each inode, bumped
	// on every lookup reply and decremented by ForgetInode; an inode
	// is only evicted from the table once its count reaches zero.
	lookupCount map[fuseops.InodeID]uint64
}

func newInodeTable() *inodeTable {
	t := &inodeTable{
		nextID:      fuseops.RootInodeID + 1,
		pathToInode: make(map[string]fuseops.InodeID),
		inodeToPath: make(map[fuseops.InodeID]string),
		lookupCount: make(map[fuseops.InodeID]uint64),
	}
	t.pathToInode[pathutil.Normalize("/")] = fuseops.RootInodeID
	t.inodeToPath[fuseops.RootInodeID] = pathutil.Normalize("/")
	return t
}

// assign returns the inode bound to path, minting one if this is the first
// time path has been seen, and bumps its lookup count by n.
func (t *inodeTable) assign(path string, n uint64) fuseops.InodeID {
	t.mu.Lock()
	defer t.mu.Unlock()

	id, ok := t.pathToInode[path]
	if !ok {
		id = t.nextID
		t.nextID++
		t.pathToInode[path] = id
		t.inodeToPath[id] = path
	}
	t.lookupCount[id] += n
	return id
}

// lookupPath returns the path bound to id, if any.
func (t *inodeTable) lookupPath(id fuseops.InodeID) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.inodeToPath[id]
	return p, ok
}

// lookupInode returns the inode bound to path, if any, without minting one.
func (t *inodeTable) lookupInode(path string) (fuseops.InodeID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.pathToInode[path]
	return id, ok
}

// forget decrements id's lookup count by n, removing the binding entirely
// once it reaches zero, matching fuseops.ForgetInodeOp semantics.
func (t *inodeTable) forget(id fuseops.InodeID, n uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if id == fuseops.RootInodeID {
		return
	}

	count := t.lookupCount[id]
	if n >= count {
		delete(t.lookupCount, id)
		if p, ok := t.inodeToPath[id]; ok {
			delete(t.pathToInode, p)
			delete(t.inodeToPath, id)
		}
		return
	}
	t.lookupCount[id] = count - n
}

// forgetPath removes path's binding outright regardless of lookup count,
// used by the CacheInvalidator when a path is removed or renamed out from
// under a still-referenced inode; the kernel will still ForgetInode it
// eventually, at which point forget is a harmless no-op on a missing key.
func (t *inodeTable) forgetPath(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id, ok := t.pathToInode[path]
	if !ok {
		return
	}
	delete(t.pathToInode, path)
	delete(t.inodeToPath, id)
	delete(t.lookupCount, id)
}
