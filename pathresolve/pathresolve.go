// Package pathresolve implements spec §4.C: mapping a request path to a
// filesystem path confined under the configured document root.
//
// Exposed as a small pure function rather than bundled into the request
// worker, matching the teacher's preference (pkg/x/http) for pulling
// pure helpers out of handler code so they're unit-testable without a
// listening socket.
package pathresolve

import (
	"path"
	"strings"
)

// Result carries the resolved filesystem path plus whether the raw
// request path named a directory (trailing slash).
type Result struct {
	// FSPath is the absolute filesystem path, always confined under root.
	FSPath string
	// IsDir is true when rawPath ended in "/" or was empty ("/").
	IsDir bool
}

// Clean resolves rawPath against root. It performs no percent-decoding
// (the caller is expected to have already percent-decoded the request
// target once, per spec §4.B) and never follows symlinks itself —
// that is left to the filesystem layer, matching spec §4.C's explicit
// "no symlink awareness" note.
//
// ok is false when rawPath would escape root (e.g. via "..", or a path
// lexically reducing below root after path.Clean).
func Clean(root, rawPath string) (result Result, ok bool) {
	if rawPath == "" {
		rawPath = "/"
	}
	if !strings.HasPrefix(rawPath, "/") {
		rawPath = "/" + rawPath
	}

	isDir := strings.HasSuffix(rawPath, "/")

	cleaned := path.Clean(rawPath)
	if cleaned == "." {
		cleaned = "/"
	}

	// path.Clean clamps ".." at "/" for a rooted path, so escape is
	// detected on the relative form instead: a ".." that survives
	// cleaning there walks above root.
	rel := path.Clean(strings.TrimPrefix(rawPath, "/"))
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return Result{}, false
	}

	root = strings.TrimSuffix(root, "/")
	fsPath := root + cleaned
	if cleaned == "/" {
		fsPath = root
	}

	// Byte-prefix containment check: fsPath must literally start with
	// root, with either nothing after it or a path separator next.
	if fsPath != root && !strings.HasPrefix(fsPath, root+"/") {
		return Result{}, false
	}

	return Result{FSPath: fsPath, IsDir: isDir}, true
}
