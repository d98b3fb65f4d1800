package vfs

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"

	"github.com/rivenmedia/rivenfs/cfg"
	"github.com/rivenmedia/rivenfs/internal/catalog"
	"github.com/rivenmedia/rivenfs/internal/logger"
	"github.com/rivenmedia/rivenfs/internal/pathutil"
	"github.com/rivenmedia/rivenfs/internal/provider"
	"github.com/rivenmedia/rivenfs/internal/urlcache"
	"github.com/rivenmedia/rivenfs/internal/urlresolver"
	"github.com/rivenmedia/rivenfs/internal/vfserr"
)

// unknownSize is reported for a regular file whose size the catalog does
// not yet know, so media players probing the file do not refuse to open it
// outright; §4.8 allows any fixed value of at least 1 MiB, and this one
// is 1 GiB.
const unknownSize = 1 << 30 // ~1 GiB placeholder, consistent within a mount.

// fileSystem is the KernelAdapter (C9): a fuseutil.NotImplementedFileSystem
// that overrides only the read-only subset of ops a media mount needs,
// exactly as gcsfuse's fileSystem embeds the same type and overrides a
// larger, read-write subset. All structural mutation happens through the
// Mutations methods below, not through the kernel-facing Mkdir/Unlink/etc,
// which are left unimplemented and so return ENOSYS by embedding, or are
// explicitly overridden here to return EROFS where a real client might
// plausibly attempt them (Unlink, RmDir, Rename).
// fs.mu from the teacher's lock-ordering discipline (§10.1) is realized
// here as each of inodeTable, handleTable and pathLockMap owning its own
// short-lived mutex rather than one coarse filesystem lock: each is held
// only to look up or mutate its map, never across a suspension point (DB
// call, HTTP call).
type fileSystem struct {
	fuseutil.NotImplementedFileSystem

	catalog   *catalog.Catalog
	providers *provider.Registry
	resolver  *urlresolver.Resolver
	urlCache  *urlcache.Cache

	inodes  *inodeTable
	handles *handleTable
	locks   *pathLockMap
	invalid *cacheInvalidator

	mountCfg  cfg.MountConfig
	streamCfg cfg.StreamingConfig

	uid, gid uint32
}

// Config bundles the dependencies a fileSystem is built from.
type Config struct {
	Catalog   *catalog.Catalog
	Providers *provider.Registry
	Resolver  *urlresolver.Resolver
	URLCache  *urlcache.Cache
	Mount     cfg.MountConfig
	Streaming cfg.StreamingConfig
}

// NewFileSystem builds the KernelAdapter and wraps it into a fuse.Server,
// mirroring gcsfuse's NewServer: construct the struct, seed the root
// inode, hand back fuseutil.NewFileSystemServer(fs). It also returns the
// Mutations handle sharing this same fileSystem's inodeTable and
// cacheInvalidator, so a mutation made through it invalidates the kernel
// cache of the exact mount NewFileSystem just built.
//
// A *fuse.Notifier is always created and wired into both the server and
// the cacheInvalidator (C10), the same way samples/notify_inval builds its
// own notifier rather than taking one optionally from the caller: without
// it, a RemoveFile/RenameFile made through Mutations would never reach the
// kernel's dentry cache, and a lookup on a removed name would keep
// succeeding until the entry-timeout expired.
func NewFileSystem(c Config) (fuse.Server, *Mutations) {
	inodes := newInodeTable()
	fs := &fileSystem{
		catalog:   c.Catalog,
		providers: c.Providers,
		resolver:  c.Resolver,
		urlCache:  c.URLCache,
		inodes:    inodes,
		handles:   newHandleTable(),
		locks:     newPathLockMap(),
		mountCfg:  c.Mount,
		streamCfg: c.Streaming,
		uid:       uint32(os.Getuid()),
		gid:       uint32(os.Getgid()),
	}

	n := fuse.NewNotifier()
	fs.invalid = newCacheInvalidator(n, inodes)

	mutations := NewMutations(c.Catalog, c.URLCache, inodes, fs.invalid)
	server := fuse.NewServerWithNotifier(n, fuseutil.NewFileSystemServer(fs))
	return server, mutations
}

func (fs *fileSystem) pathFor(id fuseops.InodeID) (string, error) {
	p, ok := fs.inodes.lookupPath(id)
	if !ok {
		return "", vfserr.ErrNoSuchEntry
	}
	return p, nil
}

func (fs *fileSystem) attributesFor(entry *catalog.DirEntry) fuseops.InodeAttributes {
	now := time.Now()
	if entry.IsDirectory {
		return fuseops.InodeAttributes{
			Size:  0,
			Nlink: 2,
			Mode:  0755 | os.ModeDir,
			Atime: now, Mtime: now, Ctime: now, Crtime: now,
			Uid: fs.uid, Gid: fs.gid,
		}
	}

	size := uint64(entry.Size)
	if size == 0 {
		size = unknownSize
	}
	return fuseops.InodeAttributes{
		Size:  size,
		Nlink: 1,
		Mode:  0644,
		Atime: now, Mtime: now, Ctime: now, Crtime: now,
		Uid: fs.uid, Gid: fs.gid,
	}
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) GetInodeAttributes(op *fuseops.GetInodeAttributesOp) (err error) {
	path, err := fs.pathFor(op.Inode)
	if err != nil {
		return vfserr.ToErrno(err)
	}

	entry, err := fs.catalog.GetEntry(path)
	if err != nil {
		return vfserr.ToErrno(err)
	}

	op.Attributes = fs.attributesFor(entry)
	op.AttributesExpiration = time.Now().Add(fs.mountCfg.AttrTimeout())
	return nil
}

// SetInodeAttributes is never legitimately needed on a read-only mount;
// deny it outright rather than embed-inherit ENOSYS, since a client might
// reasonably attempt a chmod/utimes before giving up.
func (fs *fileSystem) SetInodeAttributes(op *fuseops.SetInodeAttributesOp) (err error) {
	return vfserr.ToErrno(vfserr.ErrReadOnly)
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) LookUpInode(op *fuseops.LookUpInodeOp) (err error) {
	parentPath, err := fs.pathFor(op.Parent)
	if err != nil {
		return vfserr.ToErrno(err)
	}

	var childPath string
	switch op.Name {
	case ".":
		childPath = parentPath
	case "..":
		childPath = pathutil.Parent(parentPath)
	default:
		childPath = pathutil.Join(parentPath, op.Name)
	}

	entry, err := fs.catalog.GetEntry(childPath)
	if err != nil {
		return vfserr.ToErrno(err)
	}

	childID := fs.inodes.assign(childPath, 1)
	op.Entry.Child = childID
	op.Entry.Attributes = fs.attributesFor(entry)
	op.Entry.EntryExpiration = time.Now().Add(fs.mountCfg.EntryTimeout())
	op.Entry.AttributesExpiration = time.Now().Add(fs.mountCfg.AttrTimeout())
	return nil
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) ForgetInode(op *fuseops.ForgetInodeOp) (err error) {
	fs.inodes.forget(op.Inode, op.N)
	return nil
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) OpenDir(op *fuseops.OpenDirOp) (err error) {
	path, err := fs.pathFor(op.Inode)
	if err != nil {
		return vfserr.ToErrno(err)
	}

	entry, err := fs.catalog.GetEntry(path)
	if err != nil {
		return vfserr.ToErrno(err)
	}
	if !entry.IsDirectory {
		return vfserr.ToErrno(vfserr.ErrNotADirectory)
	}

	op.Handle = fuseops.HandleID(op.Inode)
	return nil
}

// ReadDir enumerates "." and "..", then the catalog listing sorted by
// name, starting at op.Offset, stopping as soon as an entry would not fit
// in op.Data (§4.8).
func (fs *fileSystem) ReadDir(op *fuseops.ReadDirOp) (err error) {
	path, err := fs.pathFor(op.Inode)
	if err != nil {
		return vfserr.ToErrno(err)
	}

	children, err := fs.catalog.ListDirectory(path)
	if err != nil {
		return vfserr.ToErrno(err)
	}
	sort.Slice(children, func(i, j int) bool { return children[i].Name < children[j].Name })

	entries := make([]fuseops.Dirent, 0, len(children)+2)
	entries = append(entries,
		fuseops.Dirent{Offset: 1, Inode: op.Inode, Name: ".", Type: fuseops.DT_Directory},
		fuseops.Dirent{Offset: 2, Inode: fs.inodes.assign(pathutil.Parent(path), 0), Name: "..", Type: fuseops.DT_Directory},
	)
	for i, child := range children {
		childType := fuseops.DT_File
		if child.IsDirectory {
			childType = fuseops.DT_Directory
		}
		entries = append(entries, fuseops.Dirent{
			Offset: fuseops.DirOffset(i + 3),
			Inode:  fs.inodes.assign(child.Path, 0),
			Name:   child.Name,
			Type:   childType,
		})
	}

	if int(op.Offset) > len(entries) {
		return vfserr.ToErrno(fmt.Errorf("%w: offset past end of directory", vfserr.ErrIO))
	}

	for _, e := range entries[op.Offset:] {
		n := fuseutil.WriteDirent(op.Data[len(op.Data):op.Size], e)
		if n == 0 {
			break
		}
		op.Data = op.Data[:len(op.Data)+n]
	}
	return nil
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) ReleaseDirHandle(op *fuseops.ReleaseDirHandleOp) (err error) {
	return nil
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) OpenFile(op *fuseops.OpenFileOp) (err error) {
	path, perr := fs.pathFor(op.Inode)
	if perr != nil {
		return vfserr.ToErrno(perr)
	}

	if writeIntent(op.Flags) {
		return vfserr.ToErrno(vfserr.ErrPermissionDenied)
	}

	entry, err := fs.catalog.GetEntry(path)
	if err != nil {
		return vfserr.ToErrno(err)
	}
	if entry.IsDirectory {
		return vfserr.ToErrno(vfserr.ErrNoSuchEntry)
	}

	op.Handle = fs.handles.open(path, fs.streamCfg)
	return nil
}

func writeIntent(flags uint32) bool {
	const accessModeMask = 0x3 // O_RDONLY=0, O_WRONLY=1, O_RDWR=2
	mode := flags & accessModeMask
	return mode == 1 || mode == 2
}

// ReadFile implements the streaming read path of §4.6.
func (fs *fileSystem) ReadFile(op *fuseops.ReadFileOp) (err error) {
	h, ok := fs.handles.get(op.Handle)
	if !ok {
		return vfserr.ToErrno(vfserr.ErrBadHandle)
	}

	entry, err := fs.catalog.GetEntry(h.path)
	if err != nil {
		return vfserr.ToErrno(err)
	}
	if entry.IsDirectory {
		return vfserr.ToErrno(vfserr.ErrNoSuchEntry)
	}

	url, err := cacheLookup(op.Context(), fs.urlCache, fs.resolver, h.path)
	if err != nil {
		return vfserr.ToErrno(err)
	}

	refresher := &refreshingResolver{resolver: fs.resolver, cache: fs.urlCache}

	data, err := streamingRead(
		op.Context(), h, fs.locks, fs.streamCfg.EnableRequestSerialization,
		url, entry.Size, op.Offset, int64(op.Size), fs.streamCfg, refresher,
	)
	if err != nil {
		logger.Warnf("%s -> read failed: %v", h.path, err)
		return vfserr.ToErrno(err)
	}

	op.Data = data
	return nil
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) ReleaseFileHandle(op *fuseops.ReleaseFileHandleOp) (err error) {
	fs.handles.release(op.Handle)
	return nil
}

func (fs *fileSystem) FlushFile(op *fuseops.FlushFileOp) (err error) {
	return nil
}

func (fs *fileSystem) SyncFile(op *fuseops.SyncFileOp) (err error) {
	return nil
}

// Writable structural operations are always rejected: the VFS is read-only
// from the kernel's perspective, per §4.8 and §7. All structural mutation
// comes from the Mutations methods (AddFile, RenameFile, RemoveFile, ...)
// called by whatever owns the debrid-provider integration, not by a FUSE
// client.
func (fs *fileSystem) MkDir(op *fuseops.MkDirOp) (err error) {
	return vfserr.ToErrno(vfserr.ErrReadOnly)
}

func (fs *fileSystem) RmDir(op *fuseops.RmDirOp) (err error) {
	return vfserr.ToErrno(vfserr.ErrReadOnly)
}

func (fs *fileSystem) Unlink(op *fuseops.UnlinkOp) (err error) {
	return vfserr.ToErrno(vfserr.ErrReadOnly)
}

func (fs *fileSystem) Rename(op *fuseops.RenameOp) (err error) {
	return vfserr.ToErrno(vfserr.ErrReadOnly)
}

func (fs *fileSystem) CreateFile(op *fuseops.CreateFileOp) (err error) {
	return vfserr.ToErrno(vfserr.ErrReadOnly)
}

func (fs *fileSystem) WriteFile(op *fuseops.WriteFileOp) (err error) {
	return vfserr.ToErrno(vfserr.ErrReadOnly)
}
