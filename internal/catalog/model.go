// Package catalog is the persistent path->entry mapping backing the virtual
// filesystem (C1): every directory and file the kernel can see is a row in
// this table, addressed by its normalized path. Grounded on the Python
// VFSDatabase/FilesystemEntry pair, reimplemented against gorm+sqlite the
// way rclone's go.mod pulls in the same driver pair for its own
// relational-metadata backends.
package catalog

import "time"

// Entry is the gorm model for a single filesystem node, directory or file.
// Path is the unique, normalized (pathutil.Normalize) address of the node.
type Entry struct {
	ID uint `gorm:"primarykey"`

	Path string `gorm:"uniqueIndex;not null"`

	IsDirectory bool `gorm:"not null;default:false"`

	FileSize int64 `gorm:"not null;default:0"`

	Provider string

	ProviderDownloadID string

	DownloadURL string

	UnrestrictedURL string

	CreatedAt time.Time

	UpdatedAt time.Time
}

func (Entry) TableName() string {
	return "filesystem_entries"
}
