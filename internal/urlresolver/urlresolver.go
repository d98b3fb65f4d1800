// Package urlresolver implements UrlResolver (C3): given a catalog path, it
// returns the best available URL for either persistence (the restricted
// download_url) or an HTTP fetch (the live unrestricted_url, refreshed
// through the provider registry when asked to or when none is cached).
package urlresolver

import (
	"context"

	"github.com/rivenmedia/rivenfs/internal/catalog"
	"github.com/rivenmedia/rivenfs/internal/logger"
	"github.com/rivenmedia/rivenfs/internal/provider"
	"github.com/rivenmedia/rivenfs/internal/vfserr"
)

// Resolver combines a Catalog and a provider Registry into the single
// resolve(path, for_http, force_resolve) entry point the streaming read
// path and the persistence path both call.
type Resolver struct {
	catalog   *catalog.Catalog
	providers *provider.Registry
}

func New(cat *catalog.Catalog, providers *provider.Registry) *Resolver {
	return &Resolver{catalog: cat, providers: providers}
}

// Resolve returns the URL to use for path. forHTTP selects between the
// stored restricted download_url (false, for persistence callers) and the
// live unrestricted URL (true, for the streaming read path); forceResolve
// bypasses any persisted unrestricted_url and asks the provider for a
// fresh one. Returns vfserr.ErrNoSuchEntry if the row is absent, including
// when it is deleted concurrently during the resolve.
func (r *Resolver) Resolve(ctx context.Context, path string, forHTTP, forceResolve bool) (string, error) {
	row, err := r.catalog.GetRaw(path)
	if err != nil {
		return "", err
	}

	if !forHTTP {
		return row.DownloadURL, nil
	}

	if row.UnrestrictedURL != "" && !forceResolve {
		return row.UnrestrictedURL, nil
	}

	if row.DownloadURL == "" {
		return "", vfserr.ErrNoSuchEntry
	}

	// A provider named on the row but with no adapter registered for it
	// falls back to whatever is already known, same as no provider at all,
	// and without persisting: ResolveURL would return the restricted URL
	// unchanged in this case too, but persisting that into unrestricted_url
	// would be wrong since it was never actually resolved.
	if row.Provider == "" || !r.providers.IsRegistered(row.Provider) {
		if row.UnrestrictedURL != "" {
			return row.UnrestrictedURL, nil
		}
		return row.DownloadURL, nil
	}

	// On adapter failure ResolveURL hands the restricted URL back unchanged;
	// that is treated like no result, so it is never persisted and a
	// previously resolved unrestricted_url still wins.
	resolved := r.providers.ResolveURL(ctx, row.DownloadURL, row.Provider)
	if resolved == nil || resolved.DownloadURL == "" || resolved.DownloadURL == row.DownloadURL {
		if row.UnrestrictedURL != "" {
			return row.UnrestrictedURL, nil
		}
		return row.DownloadURL, nil
	}

	var size *int64
	if row.FileSize == 0 && resolved.Size > 0 {
		size = &resolved.Size
	}
	if err := r.catalog.SetUnrestrictedURL(path, resolved.DownloadURL, size); err != nil {
		logger.Warnf("%s -> failed to persist resolved unrestricted URL: %v", path, err)
	}
	if ok, err := r.catalog.Exists(path); err == nil && !ok {
		return "", vfserr.ErrNoSuchEntry
	}

	return resolved.DownloadURL, nil
}
