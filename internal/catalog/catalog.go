package catalog

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rivenmedia/rivenfs/internal/pathutil"
	"github.com/rivenmedia/rivenfs/internal/vfserr"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DirEntry is the read-shaped view of a catalog row, returned by GetEntry and
// ListDirectory. The root itself is synthesized when no row for "/" exists.
type DirEntry struct {
	Path        string
	Name        string
	Size        int64
	IsDirectory bool
	ModifiedAt  *time.Time
}

// Catalog is the persistent path->entry mapping. All mutations hold mu for
// the duration of their transaction: sqlite only allows one writer at a
// time, and mu keeps concurrent rivenfs mutation paths from tripping over
// gorm's own "database is locked" retries.
type Catalog struct {
	db *gorm.DB
	mu sync.Mutex
}

// Open creates/opens the sqlite-backed catalog at dbPath, migrates the
// schema, and ensures the four default library roots exist.
func Open(dbPath string) (*Catalog, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening catalog database: %w", err)
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("migrating catalog schema: %w", err)
	}

	c := &Catalog{db: db}
	if err := c.ensureDefaultDirectories(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) ensureDefaultDirectories() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.db.Transaction(func(tx *gorm.DB) error {
		for _, dir := range defaultRoots {
			var count int64
			if err := tx.Model(&Entry{}).Where("path = ?", dir).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				continue
			}
			if err := tx.Create(&Entry{Path: dir, IsDirectory: true}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

var defaultRoots = []string{"/movies", "/shows", "/anime_movies", "/anime_shows"}

// isDefaultRoot reports whether path is one of the library roots that
// AddDirectory/ensureDefaultDirectories create and remove/prune never
// deletes.
func isDefaultRoot(path string) bool {
	for _, r := range defaultRoots {
		if path == r {
			return true
		}
	}
	return false
}

func rowToDirEntry(e *Entry) DirEntry {
	name := pathutil.Base(e.Path)
	out := DirEntry{
		Path:        e.Path,
		Name:        name,
		Size:        e.FileSize,
		IsDirectory: e.IsDirectory,
	}
	if !e.UpdatedAt.IsZero() {
		t := e.UpdatedAt
		out.ModifiedAt = &t
	}
	return out
}

// GetEntry returns the entry at path, or the synthesized root entry if path
// is "/" and no explicit row exists, or vfserr.ErrNoSuchEntry.
func (c *Catalog) GetEntry(path string) (*DirEntry, error) {
	path = pathutil.Normalize(path)

	var e Entry
	err := c.db.Where("path = ?", path).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if path == "/" {
			return &DirEntry{Path: "/", Name: "/", IsDirectory: true}, nil
		}
		return nil, vfserr.ErrNoSuchEntry
	}
	if err != nil {
		return nil, fmt.Errorf("querying catalog: %w", err)
	}
	out := rowToDirEntry(&e)
	return &out, nil
}

// ListDirectory returns the immediate children of path, sorted by name.
// Returns vfserr.ErrNoSuchEntry if path does not exist, or
// vfserr.ErrNotADirectory if it is a file.
func (c *Catalog) ListDirectory(path string) ([]DirEntry, error) {
	path = pathutil.Normalize(path)

	if path != "/" {
		parent, err := c.GetEntry(path)
		if err != nil {
			return nil, err
		}
		if !parent.IsDirectory {
			return nil, vfserr.ErrNotADirectory
		}
	}

	var rows []Entry
	if path == "/" {
		if err := c.db.Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("querying catalog: %w", err)
		}
	} else {
		prefix := path + "/%"
		if err := c.db.Where("path LIKE ?", prefix).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("querying catalog: %w", err)
		}
	}

	out := make([]DirEntry, 0, len(rows))
	for _, e := range rows {
		if e.Path == "/" {
			continue
		}
		if pathutil.Parent(e.Path) != path {
			continue
		}
		out = append(out, rowToDirEntry(&e))
	}
	sortDirEntriesByName(out)
	return out, nil
}

func sortDirEntriesByName(entries []DirEntry) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j-1].Name > entries[j].Name; j-- {
			entries[j-1], entries[j] = entries[j], entries[j-1]
		}
	}
}

// Exists reports whether path has a catalog entry. The root always exists.
func (c *Catalog) Exists(path string) (bool, error) {
	path = pathutil.Normalize(path)
	if path == "/" {
		return true, nil
	}
	var count int64
	if err := c.db.Model(&Entry{}).Where("path = ?", path).Count(&count).Error; err != nil {
		return false, fmt.Errorf("querying catalog: %w", err)
	}
	return count > 0, nil
}

// AddDirectory creates a directory entry at path if it does not already
// exist, creating any missing ancestor directories along the way.
func (c *Catalog) AddDirectory(path string) (string, error) {
	path = pathutil.Normalize(path)

	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.db.Transaction(func(tx *gorm.DB) error {
		return ensureDirChain(tx, path)
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

// ensureDirChain creates a directory entry at path and every ancestor of
// path that does not already exist, grounded on db.py's _ensure_dir_chain.
func ensureDirChain(tx *gorm.DB, path string) error {
	path = pathutil.Normalize(path)
	if path == "/" {
		return nil
	}

	segments := strings.Split(strings.Trim(path, "/"), "/")
	acc := ""
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		acc += "/" + seg

		var count int64
		if err := tx.Model(&Entry{}).Where("path = ?", acc).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		if err := tx.Create(&Entry{Path: acc, IsDirectory: true}).Error; err != nil {
			return err
		}
	}
	return nil
}

// AddFile creates or updates the file entry at path, ensuring its parent
// directory chain exists.
func (c *Catalog) AddFile(path, url string, size int64, provider, providerDownloadID string) (string, error) {
	path = pathutil.Normalize(path)
	parent := pathutil.Parent(path)

	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.db.Transaction(func(tx *gorm.DB) error {
		if err := ensureDirChain(tx, parent); err != nil {
			return err
		}

		var e Entry
		err := tx.Where("path = ?", path).First(&e).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(&Entry{
				Path:               path,
				IsDirectory:        false,
				FileSize:           size,
				Provider:           provider,
				ProviderDownloadID: providerDownloadID,
				DownloadURL:        url,
			}).Error
		case err != nil:
			return err
		default:
			e.DownloadURL = url
			e.FileSize = size
			e.Provider = provider
			e.ProviderDownloadID = providerDownloadID
			e.UpdatedAt = time.Now().UTC()
			return tx.Save(&e).Error
		}
	})
	if err != nil {
		return "", fmt.Errorf("adding file entry: %w", err)
	}
	return path, nil
}

// UpdateSize sets the file_size and updated_at of the entry at path. A
// missing entry is silently ignored, matching db.py's update_size.
func (c *Catalog) UpdateSize(path string, size int64) error {
	path = pathutil.Normalize(path)

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.db.Model(&Entry{}).
		Where("path = ?", path).
		Updates(map[string]any{"file_size": size, "updated_at": time.Now().UTC()}).Error
}

// SetUnrestrictedURL persists a freshly resolved unrestricted URL (and,
// opportunistically, a file size learned from the resolve) for path. Used
// by the URL resolver after a successful provider resolve.
func (c *Catalog) SetUnrestrictedURL(path, unrestrictedURL string, size *int64) error {
	path = pathutil.Normalize(path)

	c.mu.Lock()
	defer c.mu.Unlock()

	updates := map[string]any{"unrestricted_url": unrestrictedURL, "updated_at": time.Now().UTC()}
	if size != nil {
		var e Entry
		if err := c.db.Where("path = ?", path).First(&e).Error; err == nil && e.FileSize == 0 {
			updates["file_size"] = *size
		}
	}
	return c.db.Model(&Entry{}).Where("path = ?", path).Updates(updates).Error
}

// GetRaw returns the underlying row for path, used by the resolver to read
// download_url/provider/unrestricted_url directly.
func (c *Catalog) GetRaw(path string) (*Entry, error) {
	path = pathutil.Normalize(path)
	var e Entry
	err := c.db.Where("path = ?", path).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, vfserr.ErrNoSuchEntry
	}
	if err != nil {
		return nil, fmt.Errorf("querying catalog: %w", err)
	}
	return &e, nil
}

// Remove deletes path and every descendant of path, then prunes now-empty
// ancestor directories up to (but not including) a default root or "/".
// Removing "/" is a no-op that returns false.
func (c *Catalog) Remove(path string) (bool, error) {
	path = pathutil.Normalize(path)
	if path == "/" {
		return false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("path = ? OR path LIKE ?", path, path+"/%").Delete(&Entry{}).Error; err != nil {
			return err
		}
		return pruneEmptyDirs(tx, pathutil.Parent(path))
	})
	if err != nil {
		return false, fmt.Errorf("removing entry: %w", err)
	}
	return true, nil
}

// pruneEmptyDirs walks from start up through ancestors, deleting childless
// directory entries until it hits a default root or the filesystem root,
// grounded on db.py's _prune_empty_dirs (generalized here to walk the full
// chain rather than stopping after a fixed depth).
func pruneEmptyDirs(tx *gorm.DB, start string) error {
	cur := pathutil.Normalize(start)
	for cur != "/" && !isDefaultRoot(cur) {
		var childCount int64
		if err := tx.Model(&Entry{}).Where("path LIKE ?", cur+"/%").Count(&childCount).Error; err != nil {
			return err
		}
		if childCount > 0 {
			break
		}
		if err := tx.Where("path = ? AND is_directory = ?", cur, true).Delete(&Entry{}).Error; err != nil {
			return err
		}
		cur = pathutil.Parent(cur)
	}
	return nil
}

// RenameOpts carries the optional fields rename may refresh alongside the
// path move, mirroring db.py's rename(..., provider=, provider_download_id=,
// download_url=, size=) keyword arguments.
type RenameOpts struct {
	Provider           *string
	ProviderDownloadID *string
	DownloadURL        *string
	Size               *int64
}

// Rename moves the entry at oldPath to newPath, rewriting every descendant's
// path to keep the subtree consistent, and creating newPath's ancestor
// chain if needed. Returns false if oldPath does not exist.
func (c *Catalog) Rename(oldPath, newPath string, opts RenameOpts) (bool, error) {
	oldPath = pathutil.Normalize(oldPath)
	newPath = pathutil.Normalize(newPath)

	c.mu.Lock()
	defer c.mu.Unlock()

	moved := false
	err := c.db.Transaction(func(tx *gorm.DB) error {
		var e Entry
		err := tx.Where("path = ?", oldPath).First(&e).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := ensureDirChain(tx, pathutil.Parent(newPath)); err != nil {
			return err
		}

		e.Path = newPath
		if opts.Provider != nil {
			e.Provider = *opts.Provider
		}
		if opts.ProviderDownloadID != nil {
			e.ProviderDownloadID = *opts.ProviderDownloadID
		}
		if opts.DownloadURL != nil {
			e.DownloadURL = *opts.DownloadURL
		}
		if opts.Size != nil {
			e.FileSize = *opts.Size
		}
		e.UpdatedAt = time.Now().UTC()
		if err := tx.Save(&e).Error; err != nil {
			return err
		}

		var children []Entry
		if err := tx.Where("path LIKE ?", oldPath+"/%").Find(&children).Error; err != nil {
			return err
		}
		for _, child := range children {
			suffix := strings.TrimPrefix(child.Path, oldPath)
			newChildPath := newPath + suffix
			if err := ensureDirChain(tx, pathutil.Parent(newChildPath)); err != nil {
				return err
			}
			child.Path = newChildPath
			if err := tx.Save(&child).Error; err != nil {
				return err
			}
		}

		moved = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("renaming entry: %w", err)
	}
	return moved, nil
}

// Close releases the underlying sqlite connection.
func (c *Catalog) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
