// Package vfserr defines the sentinel errors shared between the catalog,
// resolver and kernel adapter layers, and the translation from those
// sentinels to the errno values the kernel expects, the same sentinel style
// gcsfuse's fs.fileSystem methods return (fuse.ENOENT, fuse.ENOTDIR,
// fuse.EEXIST, ...). Errnos gcsfuse never needed (EACCES, EROFS, EISDIR,
// EBADF) are taken directly from syscall, since fuse.Errno values satisfy
// the standard error interface either way.
package vfserr

import (
	"errors"
	"syscall"

	"github.com/jacobsa/fuse"
)

var (
	// ErrNoSuchEntry means the catalog has no entry for a given path.
	ErrNoSuchEntry = errors.New("vfserr: no such entry")

	// ErrNotADirectory means an operation requiring a directory was given a
	// path to a regular file.
	ErrNotADirectory = errors.New("vfserr: not a directory")

	// ErrIsADirectory means an operation requiring a regular file was given a
	// path to a directory.
	ErrIsADirectory = errors.New("vfserr: is a directory")

	// ErrAlreadyExists means a create/mkdir target already exists.
	ErrAlreadyExists = errors.New("vfserr: already exists")

	// ErrNotEmpty means an rmdir target has children.
	ErrNotEmpty = errors.New("vfserr: directory not empty")

	// ErrPermissionDenied means the caller is not allowed to perform the
	// requested mutation (the filesystem is read-only for most writes).
	ErrPermissionDenied = errors.New("vfserr: permission denied")

	// ErrReadOnly means the operation is a mutation the filesystem never
	// allows through the kernel surface (write, chmod, symlink, ...).
	ErrReadOnly = errors.New("vfserr: read-only filesystem")

	// ErrIO means an upstream fetch or catalog operation failed for reasons
	// outside the caller's control (network error, disk error).
	ErrIO = errors.New("vfserr: I/O error")

	// ErrBadHandle means a handle ID given by the kernel no longer maps to an
	// open handle (forgotten, already released).
	ErrBadHandle = errors.New("vfserr: bad handle")

	// ErrLinkUnavailable means the provider could not resolve a restricted
	// URL into an unrestricted one (expired, rate-limited, no premium status).
	ErrLinkUnavailable = errors.New("vfserr: link unavailable")
)

// ToErrno translates one of this package's sentinels (or an error wrapping
// one) into the fuse.Errno the kernel adapter should return to the kernel.
// Unrecognized errors map to fuse.EIO, the same default gcsfuse falls back
// to for unclassified errors.
func ToErrno(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNoSuchEntry):
		return fuse.ENOENT
	case errors.Is(err, ErrNotADirectory):
		return fuse.ENOTDIR
	case errors.Is(err, ErrIsADirectory):
		return syscall.EISDIR
	case errors.Is(err, ErrAlreadyExists):
		return fuse.EEXIST
	case errors.Is(err, ErrNotEmpty):
		return fuse.ENOTEMPTY
	case errors.Is(err, ErrPermissionDenied):
		return syscall.EACCES
	case errors.Is(err, ErrReadOnly):
		return syscall.EROFS
	case errors.Is(err, ErrBadHandle):
		return syscall.EBADF
	case errors.Is(err, ErrLinkUnavailable):
		return fuse.EIO
	case errors.Is(err, ErrIO):
		return fuse.EIO
	default:
		return fuse.EIO
	}
}
