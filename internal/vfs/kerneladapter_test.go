package vfs

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/rivenmedia/rivenfs/cfg"
	"github.com/rivenmedia/rivenfs/internal/catalog"
	"github.com/rivenmedia/rivenfs/internal/provider"
	"github.com/rivenmedia/rivenfs/internal/urlcache"
	"github.com/rivenmedia/rivenfs/internal/urlresolver"
	"github.com/rivenmedia/rivenfs/internal/vfserr"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type KernelAdapterTest struct {
	suite.Suite
	cat *catalog.Catalog
	fs  *fileSystem
}

func TestKernelAdapterSuite(t *testing.T) {
	suite.Run(t, new(KernelAdapterTest))
}

func (t *KernelAdapterTest) SetupTest() {
	cat, err := catalog.Open(":memory:")
	require.NoError(t.T(), err)
	t.cat = cat

	providers := provider.NewRegistry()
	server, _ := NewFileSystem(Config{
		Catalog:   cat,
		Providers: providers,
		Resolver:  urlresolver.New(cat, providers),
		URLCache:  urlcache.New(cfg.DefaultConfig().Streaming.UrlCacheTtl()),
		Mount:     cfg.DefaultConfig().Mount,
		Streaming: cfg.DefaultConfig().Streaming,
	})
	// NewFileSystem wraps fileSystem behind fuseutil.NewFileSystemServer; the
	// tests below exercise fileSystem's methods directly, so build one more
	// fileSystem here sharing the same catalog rather than unwrap the server.
	_ = server
	t.fs = &fileSystem{
		catalog:   cat,
		providers: providers,
		resolver:  urlresolver.New(cat, providers),
		urlCache:  urlcache.New(cfg.DefaultConfig().Streaming.UrlCacheTtl()),
		inodes:    newInodeTable(),
		handles:   newHandleTable(),
		locks:     newPathLockMap(),
		mountCfg:  cfg.DefaultConfig().Mount,
		streamCfg: cfg.DefaultConfig().Streaming,
	}
	t.fs.invalid = newCacheInvalidator(nil, t.fs.inodes)
}

func (t *KernelAdapterTest) TearDownTest() {
	require.NoError(t.T(), t.cat.Close())
}

func (t *KernelAdapterTest) TestLookUpInodeRoot() {
	_, err := t.cat.AddFile("/movies/A/a.mkv", "https://cdn.example.com/a", 1000, "", "")
	require.NoError(t.T(), err)

	op := &fuseops.LookUpInodeOp{Parent: fuseops.RootInodeID, Name: "movies"}
	require.NoError(t.T(), t.fs.LookUpInode(op))
	t.True(op.Entry.Attributes.Mode.IsDir())
}

func (t *KernelAdapterTest) TestLookUpInodeMissing() {
	op := &fuseops.LookUpInodeOp{Parent: fuseops.RootInodeID, Name: "nope"}
	err := t.fs.LookUpInode(op)
	t.ErrorIs(err, vfserr.ToErrno(vfserr.ErrNoSuchEntry))
}

func (t *KernelAdapterTest) TestGetInodeAttributesFile() {
	_, err := t.cat.AddFile("/movies/A/a.mkv", "https://cdn.example.com/a", 1234, "", "")
	require.NoError(t.T(), err)

	lookup := &fuseops.LookUpInodeOp{Parent: fuseops.RootInodeID, Name: "movies"}
	require.NoError(t.T(), t.fs.LookUpInode(lookup))
	moviesInode := lookup.Entry.Child

	lookup2 := &fuseops.LookUpInodeOp{Parent: moviesInode, Name: "A"}
	require.NoError(t.T(), t.fs.LookUpInode(lookup2))
	dirInode := lookup2.Entry.Child

	lookup3 := &fuseops.LookUpInodeOp{Parent: dirInode, Name: "a.mkv"}
	require.NoError(t.T(), t.fs.LookUpInode(lookup3))

	getAttr := &fuseops.GetInodeAttributesOp{Inode: lookup3.Entry.Child}
	require.NoError(t.T(), t.fs.GetInodeAttributes(getAttr))
	t.EqualValues(1234, getAttr.Attributes.Size)
}

func (t *KernelAdapterTest) TestSetInodeAttributesDenied() {
	err := t.fs.SetInodeAttributes(&fuseops.SetInodeAttributesOp{Inode: fuseops.RootInodeID})
	t.ErrorIs(err, vfserr.ToErrno(vfserr.ErrReadOnly))
}

func (t *KernelAdapterTest) TestReadDirListsChildren() {
	_, err := t.cat.AddFile("/movies/A/a.mkv", "https://cdn.example.com/a", 1000, "", "")
	require.NoError(t.T(), err)

	lookup := &fuseops.LookUpInodeOp{Parent: fuseops.RootInodeID, Name: "movies"}
	require.NoError(t.T(), t.fs.LookUpInode(lookup))

	openDir := &fuseops.OpenDirOp{Inode: lookup.Entry.Child}
	require.NoError(t.T(), t.fs.OpenDir(openDir))

	readDir := &fuseops.ReadDirOp{
		Inode:  lookup.Entry.Child,
		Offset: 0,
		Data:   make([]byte, 4096)[:0],
		Size:   4096,
	}
	require.NoError(t.T(), t.fs.ReadDir(readDir))
	t.NotEmpty(readDir.Data)
}

func (t *KernelAdapterTest) TestOpenFileDeniesWriteIntent() {
	_, err := t.cat.AddFile("/movies/A/a.mkv", "https://cdn.example.com/a", 1000, "", "")
	require.NoError(t.T(), err)

	path := resolveToInode(t, t.fs, "/movies/A/a.mkv")
	op := &fuseops.OpenFileOp{Inode: path, Flags: 1} // O_WRONLY
	err = t.fs.OpenFile(op)
	t.ErrorIs(err, vfserr.ToErrno(vfserr.ErrPermissionDenied))
}

func (t *KernelAdapterTest) TestReadFileServesBytes() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Range", "bytes 0-4/5")
		w.WriteHeader(http.StatusPartialContent)
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	_, err := t.cat.AddFile("/movies/A/a.mkv", srv.URL, 5, "", "")
	require.NoError(t.T(), err)

	inode := resolveToInode(t, t.fs, "/movies/A/a.mkv")
	openOp := &fuseops.OpenFileOp{Inode: inode}
	require.NoError(t.T(), t.fs.OpenFile(openOp))

	readOp := &fuseops.ReadFileOp{Handle: openOp.Handle, Offset: 0, Size: 5}
	require.NoError(t.T(), t.fs.ReadFile(readOp))
	t.Equal("hello", string(readOp.Data))
}

func (t *KernelAdapterTest) TestWritableOpsDenied() {
	t.ErrorIs(t.fs.MkDir(&fuseops.MkDirOp{}), vfserr.ToErrno(vfserr.ErrReadOnly))
	t.ErrorIs(t.fs.RmDir(&fuseops.RmDirOp{}), vfserr.ToErrno(vfserr.ErrReadOnly))
	t.ErrorIs(t.fs.Unlink(&fuseops.UnlinkOp{}), vfserr.ToErrno(vfserr.ErrReadOnly))
	t.ErrorIs(t.fs.Rename(&fuseops.RenameOp{}), vfserr.ToErrno(vfserr.ErrReadOnly))
	t.ErrorIs(t.fs.CreateFile(&fuseops.CreateFileOp{}), vfserr.ToErrno(vfserr.ErrReadOnly))
	t.ErrorIs(t.fs.WriteFile(&fuseops.WriteFileOp{}), vfserr.ToErrno(vfserr.ErrReadOnly))
}

// resolveToInode walks path component by component through LookUpInode,
// mirroring what the kernel does on a cold dentry cache, and returns the
// leaf's inode ID.
func resolveToInode(t *KernelAdapterTest, fs *fileSystem, path string) fuseops.InodeID {
	segments := splitPath(path)
	parent := fuseops.RootInodeID
	var leaf fuseops.InodeID
	for _, seg := range segments {
		op := &fuseops.LookUpInodeOp{Parent: parent, Name: seg}
		require.NoError(t.T(), fs.LookUpInode(op))
		parent = op.Entry.Child
		leaf = op.Entry.Child
	}
	return leaf
}

func splitPath(path string) []string {
	var out []string
	cur := ""
	for _, r := range path {
		if r == '/' {
			if cur != "" {
				out = append(out, cur)
				cur = ""
			}
			continue
		}
		cur += string(r)
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}
