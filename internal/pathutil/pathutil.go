// Package pathutil implements the POSIX-normal path rules shared by the
// catalog and kernel adapter: every path stored in or looked up from the
// catalog passes through Normalize first.
package pathutil

import (
	"path"
	"strings"
)

// Normalize collapses a path the way the catalog expects it: leading slash
// enforced, "." and ".." segments resolved, duplicate slashes collapsed, and
// any trailing slash stripped except for the root itself.
func Normalize(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		p = "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}

	p = path.Clean(p)

	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if p != "/" && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}

// Parent returns the normalized parent of a normalized path. Parent("/") is
// "/".
func Parent(p string) string {
	p = Normalize(p)
	if p == "/" {
		return "/"
	}
	dir := path.Dir(p)
	return Normalize(dir)
}

// Base returns the final path component of a normalized path, "/" for the
// root itself.
func Base(p string) string {
	p = Normalize(p)
	if p == "/" {
		return "/"
	}
	return path.Base(p)
}

// Join normalizes the concatenation of a parent path and a child name.
func Join(parent, name string) string {
	parent = Normalize(parent)
	if parent == "/" {
		return Normalize("/" + name)
	}
	return Normalize(parent + "/" + name)
}

// IsAncestor reports whether ancestor is a strict ancestor directory of p
// (both normalized first).
func IsAncestor(ancestor, p string) bool {
	ancestor = Normalize(ancestor)
	p = Normalize(p)
	if ancestor == p {
		return false
	}
	if ancestor == "/" {
		return p != "/"
	}
	return strings.HasPrefix(p, ancestor+"/")
}
