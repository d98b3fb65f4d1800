package urlresolver

import (
	"context"
	"errors"
	"testing"

	"github.com/rivenmedia/rivenfs/internal/catalog"
	"github.com/rivenmedia/rivenfs/internal/provider"
	"github.com/rivenmedia/rivenfs/internal/vfserr"
	"github.com/stretchr/testify/require"
)

type fakeAdapter struct {
	link *provider.ResolvedLink
	err  error
}

func (f *fakeAdapter) ResolveLink(ctx context.Context, restrictedURL string) (*provider.ResolvedLink, error) {
	return f.link, f.err
}

func newTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = cat.Close() })
	return cat
}

func TestResolveForPersistenceReturnsStoredURL(t *testing.T) {
	cat := newTestCatalog(t)
	_, err := cat.AddFile("/movies/A.mkv", "https://real-debrid.com/d/XYZ", 0, "realdebrid", "XYZ")
	require.NoError(t, err)

	r := New(cat, provider.NewRegistry())
	url, err := r.Resolve(context.Background(), "/movies/A.mkv", false, false)
	require.NoError(t, err)
	require.Equal(t, "https://real-debrid.com/d/XYZ", url)
}

func TestResolveMissingEntry(t *testing.T) {
	cat := newTestCatalog(t)
	r := New(cat, provider.NewRegistry())
	_, err := r.Resolve(context.Background(), "/movies/Nope.mkv", true, false)
	require.ErrorIs(t, err, vfserr.ErrNoSuchEntry)
}

func TestResolveForHTTPUsesPersistedUnrestrictedWhenFresh(t *testing.T) {
	cat := newTestCatalog(t)
	_, err := cat.AddFile("/movies/A.mkv", "https://real-debrid.com/d/XYZ", 0, "realdebrid", "XYZ")
	require.NoError(t, err)
	require.NoError(t, cat.SetUnrestrictedURL("/movies/A.mkv", "https://cdn.example.com/cached", nil))

	registry := provider.NewRegistry()
	registry.Register("realdebrid", &fakeAdapter{err: errors.New("should not be called")})

	r := New(cat, registry)
	url, err := r.Resolve(context.Background(), "/movies/A.mkv", true, false)
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com/cached", url)
}

func TestResolveForHTTPForceResolveCallsProvider(t *testing.T) {
	cat := newTestCatalog(t)
	_, err := cat.AddFile("/movies/A.mkv", "https://real-debrid.com/d/XYZ", 0, "realdebrid", "XYZ")
	require.NoError(t, err)
	require.NoError(t, cat.SetUnrestrictedURL("/movies/A.mkv", "https://cdn.example.com/stale", nil))

	registry := provider.NewRegistry()
	size := int64(5000)
	registry.Register("realdebrid", &fakeAdapter{link: &provider.ResolvedLink{DownloadURL: "https://cdn.example.com/fresh", Size: size}})

	r := New(cat, registry)
	url, err := r.Resolve(context.Background(), "/movies/A.mkv", true, true)
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com/fresh", url)

	raw, err := cat.GetRaw("/movies/A.mkv")
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com/fresh", raw.UnrestrictedURL)
	require.EqualValues(t, 5000, raw.FileSize)
}

func TestResolveForHTTPNoProviderFallsBackToDownloadURL(t *testing.T) {
	cat := newTestCatalog(t)
	_, err := cat.AddFile("/movies/A.mkv", "https://direct.example.com/a.mkv", 10, "", "")
	require.NoError(t, err)

	r := New(cat, provider.NewRegistry())
	url, err := r.Resolve(context.Background(), "/movies/A.mkv", true, false)
	require.NoError(t, err)
	require.Equal(t, "https://direct.example.com/a.mkv", url)
}

func TestResolveForHTTPUnregisteredProviderFallsBackWithoutPersisting(t *testing.T) {
	cat := newTestCatalog(t)
	_, err := cat.AddFile("/movies/A.mkv", "https://real-debrid.com/d/XYZ", 10, "realdebrid", "XYZ")
	require.NoError(t, err)

	// No adapter registered for "realdebrid" at all: Resolve must fall back
	// to the stored download_url directly and must not call into the
	// registry or persist anything as the resolved unrestricted_url.
	r := New(cat, provider.NewRegistry())
	url, err := r.Resolve(context.Background(), "/movies/A.mkv", true, false)
	require.NoError(t, err)
	require.Equal(t, "https://real-debrid.com/d/XYZ", url)

	raw, err := cat.GetRaw("/movies/A.mkv")
	require.NoError(t, err)
	require.Empty(t, raw.UnrestrictedURL)
}

func TestResolveForHTTPAdapterFailureFallsBack(t *testing.T) {
	cat := newTestCatalog(t)
	_, err := cat.AddFile("/movies/A.mkv", "https://real-debrid.com/d/XYZ", 10, "realdebrid", "XYZ")
	require.NoError(t, err)

	registry := provider.NewRegistry()
	registry.Register("realdebrid", &fakeAdapter{err: errors.New("rate limited")})

	r := New(cat, registry)
	url, err := r.Resolve(context.Background(), "/movies/A.mkv", true, false)
	require.NoError(t, err)
	require.Equal(t, "https://real-debrid.com/d/XYZ", url)
}
