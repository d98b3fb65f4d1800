package vfs

import (
	"github.com/rivenmedia/rivenfs/internal/catalog"
	"github.com/rivenmedia/rivenfs/internal/pathutil"
)

// Mutations is the internal mutation API (§6): the only way the Catalog's
// tree changes, since the KernelAdapter rejects every FUSE-facing write op
// with EROFS. It is the caller-goroutine counterpart to the dispatch-loop
// read path: every method here runs to completion on the caller's own
// goroutine, touching the database and then pushing the resulting
// inode/cache-invalidation side effects, exactly as gcsfuse's own mutating
// ops (MkDir, CreateFile, ...) run inline rather than being queued.
type Mutations struct {
	catalog  *catalog.Catalog
	urlCache urlcacheEvictor
	inodes   *inodeTable
	invalid  *cacheInvalidator
}

// urlcacheEvictor is the subset of *urlcache.Cache Mutations needs: the
// ability to drop stale entries for a path (and everything below it) once
// the path's Catalog row changes shape.
type urlcacheEvictor interface {
	Evict(path string)
	EvictPrefix(prefix string)
}

// NewMutations builds the mutation-API layer over an already-constructed
// Catalog and the same inodeTable/cacheInvalidator/URL-cache the
// KernelAdapter for the same mount uses, so invalidations reach the same
// kernel session the reads are served through.
func NewMutations(c *catalog.Catalog, cache urlcacheEvictor, inodes *inodeTable, invalid *cacheInvalidator) *Mutations {
	return &Mutations{catalog: c, urlCache: cache, inodes: inodes, invalid: invalid}
}

// AddFile creates or updates the file entry at path and pushes the
// resulting inode/cache-invalidation side effects. Returns false only if
// the underlying Catalog call failed.
func (m *Mutations) AddFile(path, url string, size int64, provider, providerDownloadID string) (bool, error) {
	resolved, err := m.catalog.AddFile(path, url, size, provider, providerDownloadID)
	if err != nil {
		return false, err
	}
	m.urlCache.Evict(resolved)
	m.invalid.onAddFile(resolved)
	return true, nil
}

// RegisterExistingFile performs only the inode/invalidation side effects of
// AddFile, for a row that was inserted into the Catalog out-of-band (e.g. a
// bulk import that wrote rows directly). Returns false if path has no
// Catalog row to register.
func (m *Mutations) RegisterExistingFile(path string) (bool, error) {
	path = pathutil.Normalize(path)
	ok, err := m.catalog.Exists(path)
	if err != nil || !ok {
		return false, err
	}
	m.invalid.onAddFile(path)
	return true, nil
}

// RenameFile moves oldPath to newPath, evicts both paths' cached URLs (the
// moved subtree's URLs are still valid but keyed by the old path, so a stale
// cache entry under the old key would otherwise serve forever) and pushes
// the rename invalidation.
func (m *Mutations) RenameFile(oldPath, newPath string) (bool, error) {
	moved, err := m.catalog.Rename(oldPath, newPath, catalog.RenameOpts{})
	if err != nil {
		return false, err
	}
	if !moved {
		return false, nil
	}
	m.urlCache.EvictPrefix(oldPath)
	m.urlCache.EvictPrefix(newPath)
	m.invalid.onRename(oldPath, newPath)
	return true, nil
}

// RemoveFile deletes path (and every descendant, per Catalog.Remove),
// evicts every cached URL under the removed subtree, and pushes the remove
// invalidation.
func (m *Mutations) RemoveFile(path string) (bool, error) {
	removed, err := m.catalog.Remove(path)
	if err != nil {
		return false, err
	}
	if !removed {
		return false, nil
	}
	m.urlCache.EvictPrefix(path)
	m.invalid.onRemove(path)
	return true, nil
}

// FileExists reports whether path has a Catalog entry.
func (m *Mutations) FileExists(path string) (bool, error) {
	return m.catalog.Exists(path)
}

// GetFileInfo returns the Catalog entry at path, or
// (nil, vfserr.ErrNoSuchEntry) if it does not exist.
func (m *Mutations) GetFileInfo(path string) (*catalog.DirEntry, error) {
	return m.catalog.GetEntry(path)
}

// ListDirectory returns path's immediate children, sorted by name.
func (m *Mutations) ListDirectory(path string) ([]catalog.DirEntry, error) {
	return m.catalog.ListDirectory(path)
}
