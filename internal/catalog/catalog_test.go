package catalog

import (
	"testing"

	"github.com/rivenmedia/rivenfs/internal/vfserr"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type CatalogTest struct {
	suite.Suite
	cat *Catalog
}

func TestCatalogSuite(t *testing.T) {
	suite.Run(t, new(CatalogTest))
}

func (t *CatalogTest) SetupTest() {
	cat, err := Open(":memory:")
	require.NoError(t.T(), err)
	t.cat = cat
}

func (t *CatalogTest) TearDownTest() {
	require.NoError(t.T(), t.cat.Close())
}

func (t *CatalogTest) TestDefaultRootsExist() {
	for _, dir := range defaultRoots {
		exists, err := t.cat.Exists(dir)
		require.NoError(t.T(), err)
		t.True(exists, dir)
	}
}

func (t *CatalogTest) TestGetEntryRootSynthesized() {
	e, err := t.cat.GetEntry("/")
	require.NoError(t.T(), err)
	t.Equal("/", e.Path)
	t.True(e.IsDirectory)
}

func (t *CatalogTest) TestGetEntryMissing() {
	_, err := t.cat.GetEntry("/movies/Nope")
	t.ErrorIs(err, vfserr.ErrNoSuchEntry)
}

func (t *CatalogTest) TestAddFileCreatesParentChain() {
	path, err := t.cat.AddFile("/movies/Foo (2020)/Foo.mkv", "https://example.com/a", 1024, "realdebrid", "abc123")
	require.NoError(t.T(), err)
	t.Equal("/movies/Foo (2020)/Foo.mkv", path)

	exists, err := t.cat.Exists("/movies/Foo (2020)")
	require.NoError(t.T(), err)
	t.True(exists)

	entry, err := t.cat.GetEntry("/movies/Foo (2020)/Foo.mkv")
	require.NoError(t.T(), err)
	t.False(entry.IsDirectory)
	t.EqualValues(1024, entry.Size)
}

func (t *CatalogTest) TestAddFileUpdatesExisting() {
	_, err := t.cat.AddFile("/movies/Foo.mkv", "https://example.com/a", 1024, "realdebrid", "abc")
	require.NoError(t.T(), err)

	_, err = t.cat.AddFile("/movies/Foo.mkv", "https://example.com/b", 2048, "realdebrid", "def")
	require.NoError(t.T(), err)

	entry, err := t.cat.GetEntry("/movies/Foo.mkv")
	require.NoError(t.T(), err)
	t.EqualValues(2048, entry.Size)

	raw, err := t.cat.GetRaw("/movies/Foo.mkv")
	require.NoError(t.T(), err)
	t.Equal("https://example.com/b", raw.DownloadURL)
	t.Equal("def", raw.ProviderDownloadID)
}

func (t *CatalogTest) TestListDirectory() {
	_, err := t.cat.AddFile("/movies/A.mkv", "u", 1, "p", "1")
	require.NoError(t.T(), err)
	_, err = t.cat.AddFile("/movies/B.mkv", "u", 1, "p", "1")
	require.NoError(t.T(), err)
	_, err = t.cat.AddDirectory("/movies/Sub")
	require.NoError(t.T(), err)

	children, err := t.cat.ListDirectory("/movies")
	require.NoError(t.T(), err)
	require.Len(t.T(), children, 3)
	t.Equal("A.mkv", children[0].Name)
	t.Equal("B.mkv", children[1].Name)
	t.Equal("Sub", children[2].Name)
}

func (t *CatalogTest) TestListDirectoryOnFileReturnsNotADirectory() {
	_, err := t.cat.AddFile("/movies/A.mkv", "u", 1, "p", "1")
	require.NoError(t.T(), err)

	_, err = t.cat.ListDirectory("/movies/A.mkv")
	t.ErrorIs(err, vfserr.ErrNotADirectory)
}

func (t *CatalogTest) TestRemovePrunesEmptyAncestors() {
	_, err := t.cat.AddFile("/movies/Foo (2020)/Sub/Foo.mkv", "u", 1, "p", "1")
	require.NoError(t.T(), err)

	ok, err := t.cat.Remove("/movies/Foo (2020)/Sub/Foo.mkv")
	require.NoError(t.T(), err)
	t.True(ok)

	exists, err := t.cat.Exists("/movies/Foo (2020)")
	require.NoError(t.T(), err)
	t.False(exists, "empty ancestor chain should be pruned")

	exists, err = t.cat.Exists("/movies")
	require.NoError(t.T(), err)
	t.True(exists, "default root must never be pruned")
}

func (t *CatalogTest) TestRemoveKeepsNonEmptyAncestor() {
	_, err := t.cat.AddFile("/movies/Foo (2020)/Foo.mkv", "u", 1, "p", "1")
	require.NoError(t.T(), err)
	_, err = t.cat.AddFile("/movies/Foo (2020)/Foo.nfo", "u", 1, "p", "1")
	require.NoError(t.T(), err)

	ok, err := t.cat.Remove("/movies/Foo (2020)/Foo.mkv")
	require.NoError(t.T(), err)
	t.True(ok)

	exists, err := t.cat.Exists("/movies/Foo (2020)")
	require.NoError(t.T(), err)
	t.True(exists, "ancestor with remaining sibling must survive")
}

func (t *CatalogTest) TestRenameMovesSubtree() {
	_, err := t.cat.AddFile("/movies/Foo (2020)/Foo.mkv", "u", 1, "p", "1")
	require.NoError(t.T(), err)
	_, err = t.cat.AddFile("/movies/Foo (2020)/Foo.nfo", "u", 1, "p", "1")
	require.NoError(t.T(), err)

	ok, err := t.cat.Rename("/movies/Foo (2020)", "/movies/Foo (2021)", RenameOpts{})
	require.NoError(t.T(), err)
	t.True(ok)

	exists, err := t.cat.Exists("/movies/Foo (2021)/Foo.mkv")
	require.NoError(t.T(), err)
	t.True(exists)

	exists, err = t.cat.Exists("/movies/Foo (2020)")
	require.NoError(t.T(), err)
	t.False(exists)
}

func (t *CatalogTest) TestRenameMissingReturnsFalse() {
	ok, err := t.cat.Rename("/movies/Nope", "/movies/Also-Nope", RenameOpts{})
	require.NoError(t.T(), err)
	t.False(ok)
}
